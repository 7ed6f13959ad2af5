// Package voice owns the bot's single voice connection.
package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"loopmuse/internal/boterr"
	"loopmuse/internal/state"
	"loopmuse/pkg/logger"
	"loopmuse/pkg/metrics"
)

// Conn is a live voice session
type Conn interface {
	ChannelID() string
	GuildID() string
	Ready() bool
	ChangeChannel(channelID string) error
	Disconnect() error
	Voice() *discordgo.VoiceConnection
}

// Gateway is the part of the chat gateway the manager needs
type Gateway interface {
	Channel(channelID string) (*discordgo.Channel, error)
	// Existing returns the session the gateway already holds for the guild, or nil
	Existing(guildID string) Conn
	Join(guildID, channelID string) (Conn, error)
}

// Manager connects, moves and tears down the voice session for the target
// channel kept in the state store.
type Manager struct {
	mu      sync.Mutex
	gateway Gateway
	store   *state.Store
	conn    Conn
	timeout time.Duration
	poll    time.Duration
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewManager creates a voice manager. timeout bounds how long a new
// connection may take to become ready.
func NewManager(gateway Gateway, store *state.Store, timeout time.Duration, log *logger.Logger, m *metrics.Metrics) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		gateway: gateway,
		store:   store,
		timeout: timeout,
		poll:    100 * time.Millisecond,
		log:     log.WithComponent("voice"),
		metrics: m,
	}
}

// IsVoiceChannel reports whether audio can be played in ch
func IsVoiceChannel(ch *discordgo.Channel) bool {
	return ch != nil && (ch.Type == discordgo.ChannelTypeGuildVoice || ch.Type == discordgo.ChannelTypeGuildStageVoice)
}

// LookupChannel resolves id to a voice-capable channel
func (m *Manager) LookupChannel(id string) (*discordgo.Channel, error) {
	ch, err := m.gateway.Channel(id)
	if err != nil {
		return nil, boterr.NewChannelError("failed to look up channel", boterr.MsgInvalidChannel, err).
			WithContext("channel_id", id)
	}
	if !IsVoiceChannel(ch) {
		return nil, boterr.NewChannelError("channel is not voice capable", boterr.MsgInvalidChannel, nil).
			WithContext("channel_id", id)
	}
	return ch, nil
}

// ConnectOrMove brings the voice session to the target channel. An existing
// session is moved; otherwise a new one is established. Calling it while
// already in the target channel does nothing.
func (m *Manager) ConnectOrMove(ctx context.Context) (*discordgo.Channel, error) {
	target := m.store.ChannelID()
	if target == "" {
		return nil, boterr.NewConfigError("no target voice channel configured", boterr.MsgNoChannel)
	}

	ch, err := m.LookupChannel(target)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conn := m.conn
	if conn != nil && conn.GuildID() != ch.GuildID {
		m.log.Warn("Dropping voice session in another guild", logger.Fields{
			"old_guild_id": conn.GuildID(),
			"guild_id":     ch.GuildID,
		})
		_ = conn.Disconnect()
		conn, m.conn = nil, nil
	}
	if conn == nil {
		conn = m.gateway.Existing(ch.GuildID)
	}

	log := m.log.WithGuild(ch.GuildID, ch.ID)

	if conn != nil {
		if conn.ChannelID() == ch.ID {
			m.conn = conn
			log.Debug("Already in target channel")
			return ch, nil
		}
		if err := conn.ChangeChannel(ch.ID); err != nil {
			return nil, boterr.NewChannelError("failed to move voice session", fmt.Sprintf(boterr.MsgJoinFailed, err), err).
				WithContext("channel_id", ch.ID)
		}
		m.conn = conn
		m.metrics.RecordVoiceEvent("moved")
		log.LogVoiceEvent("moved", logger.Fields{"channel_name": ch.Name})
		return ch, nil
	}

	conn, err = m.gateway.Join(ch.GuildID, ch.ID)
	if err != nil {
		return nil, boterr.NewChannelError("failed to join voice channel", fmt.Sprintf(boterr.MsgJoinFailed, err), err).
			WithContext("channel_id", ch.ID)
	}

	if err := m.waitReady(ctx, conn); err != nil {
		_ = conn.Disconnect()
		return nil, boterr.NewChannelError("voice connection failed to become ready", fmt.Sprintf(boterr.MsgJoinFailed, err), err).
			WithContext("channel_id", ch.ID)
	}

	m.conn = conn
	m.metrics.RecordVoiceEvent("connected")
	log.LogVoiceEvent("connected", logger.Fields{"channel_name": ch.Name})
	return ch, nil
}

func (m *Manager) waitReady(ctx context.Context, conn Conn) error {
	connectCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for !conn.Ready() {
		select {
		case <-connectCtx.Done():
			return fmt.Errorf("voice connection timeout: %w", connectCtx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// Disconnect tears down the voice session and clears the queue and cursor.
// It returns boterr.ErrNotConnected when there is no session.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return boterr.ErrNotConnected
	}

	conn := m.conn
	m.conn = nil
	if err := conn.Disconnect(); err != nil {
		m.log.Warn("Voice disconnect reported an error", logger.Fields{"error": err.Error()})
	}

	m.store.Reset()
	m.metrics.RecordVoiceEvent("disconnected")
	m.log.LogVoiceEvent("disconnected", logger.Fields{
		"guild_id":   conn.GuildID(),
		"channel_id": conn.ChannelID(),
	})
	return nil
}

// Connected reports whether a ready voice session is held
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.conn.Ready()
}

// Voice returns the underlying connection for audio, nil when disconnected
func (m *Manager) Voice() *discordgo.VoiceConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return nil
	}
	return m.conn.Voice()
}

// Shutdown drops the voice session without touching the queue
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		_ = m.conn.Disconnect()
		m.conn = nil
	}
}
