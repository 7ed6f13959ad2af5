package voice

import (
	"github.com/bwmarrin/discordgo"
)

// DiscordGateway adapts a discordgo session to Gateway
type DiscordGateway struct {
	session *discordgo.Session
}

// NewDiscordGateway wraps s
func NewDiscordGateway(s *discordgo.Session) *DiscordGateway {
	return &DiscordGateway{session: s}
}

// Channel looks the channel up in the state cache first and falls back to the REST API
func (d *DiscordGateway) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := d.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return d.session.Channel(channelID)
}

// Existing returns the session's voice connection for guildID, if any
func (d *DiscordGateway) Existing(guildID string) Conn {
	d.session.RLock()
	vc, ok := d.session.VoiceConnections[guildID]
	d.session.RUnlock()
	if !ok || vc == nil {
		return nil
	}
	return &discordConn{vc: vc}
}

// Join opens a voice connection, unmuted and deafened
func (d *DiscordGateway) Join(guildID, channelID string) (Conn, error) {
	vc, err := d.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	return &discordConn{vc: vc}, nil
}

type discordConn struct {
	vc *discordgo.VoiceConnection
}

func (c *discordConn) ChannelID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.ChannelID
}

func (c *discordConn) GuildID() string {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.GuildID
}

func (c *discordConn) Ready() bool {
	c.vc.RLock()
	defer c.vc.RUnlock()
	return c.vc.Ready
}

func (c *discordConn) ChangeChannel(channelID string) error {
	return c.vc.ChangeChannel(channelID, false, true)
}

func (c *discordConn) Disconnect() error {
	return c.vc.Disconnect()
}

func (c *discordConn) Voice() *discordgo.VoiceConnection {
	return c.vc
}
