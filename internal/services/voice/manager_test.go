package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmuse/internal/boterr"
	"loopmuse/internal/state"
)

type fakeConn struct {
	mu           sync.Mutex
	guildID      string
	channelID    string
	ready        bool
	moves        int
	moveErr      error
	disconnected bool
}

func (c *fakeConn) ChannelID() string { c.mu.Lock(); defer c.mu.Unlock(); return c.channelID }
func (c *fakeConn) GuildID() string   { return c.guildID }
func (c *fakeConn) Ready() bool       { c.mu.Lock(); defer c.mu.Unlock(); return c.ready }

func (c *fakeConn) ChangeChannel(channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.moveErr != nil {
		return c.moveErr
	}
	c.channelID = channelID
	c.moves++
	return nil
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.ready = false
	return nil
}

func (c *fakeConn) Voice() *discordgo.VoiceConnection { return nil }

type fakeGateway struct {
	channels  map[string]*discordgo.Channel
	existing  *fakeConn
	joins     int
	joinErr   error
	joinReady bool
}

func (g *fakeGateway) Channel(id string) (*discordgo.Channel, error) {
	ch, ok := g.channels[id]
	if !ok {
		return nil, errors.New("unknown channel")
	}
	return ch, nil
}

func (g *fakeGateway) Existing(string) Conn {
	if g.existing == nil {
		return nil
	}
	return g.existing
}

func (g *fakeGateway) Join(guildID, channelID string) (Conn, error) {
	g.joins++
	if g.joinErr != nil {
		return nil, g.joinErr
	}
	g.existing = &fakeConn{guildID: guildID, channelID: channelID, ready: g.joinReady}
	return g.existing, nil
}

func newGateway() *fakeGateway {
	return &fakeGateway{
		joinReady: true,
		channels: map[string]*discordgo.Channel{
			"100": {ID: "100", GuildID: "g", Name: "Lounge", Type: discordgo.ChannelTypeGuildVoice},
			"101": {ID: "101", GuildID: "g", Name: "Stage", Type: discordgo.ChannelTypeGuildStageVoice},
			"200": {ID: "200", GuildID: "g", Name: "general", Type: discordgo.ChannelTypeGuildText},
		},
	}
}

func newTestManager(gw Gateway, store *state.Store) *Manager {
	m := NewManager(gw, store, 50*time.Millisecond, nil, nil)
	m.poll = time.Millisecond
	return m
}

func TestConnectWithoutTargetChannel(t *testing.T) {
	m := newTestManager(newGateway(), state.New(0.5))

	_, err := m.ConnectOrMove(context.Background())
	require.Error(t, err)
	assert.Equal(t, boterr.ErrorTypeConfig, boterr.TypeOf(err))
	assert.Equal(t, boterr.MsgNoChannel, boterr.UserMessage(err))
}

func TestConnectRejectsBadChannels(t *testing.T) {
	for _, id := range []string{"999", "200"} {
		store := state.New(0.5)
		store.SetChannelID(id)
		gw := newGateway()

		_, err := newTestManager(gw, store).ConnectOrMove(context.Background())
		assert.Equal(t, boterr.ErrorTypeChannel, boterr.TypeOf(err), "channel %s", id)
		assert.Equal(t, boterr.MsgInvalidChannel, boterr.UserMessage(err), "channel %s", id)
		assert.Zero(t, gw.joins)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	store := state.New(0.5)
	store.SetChannelID("100")
	gw := newGateway()
	m := newTestManager(gw, store)

	ch, err := m.ConnectOrMove(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Lounge", ch.Name)

	_, err = m.ConnectOrMove(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, gw.joins)
	assert.Zero(t, gw.existing.moves)
	assert.True(t, m.Connected())
}

func TestMovesExistingSession(t *testing.T) {
	store := state.New(0.5)
	store.SetChannelID("100")
	gw := newGateway()
	m := newTestManager(gw, store)

	_, err := m.ConnectOrMove(context.Background())
	require.NoError(t, err)

	store.SetChannelID("101")
	_, err = m.ConnectOrMove(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, gw.joins)
	assert.Equal(t, 1, gw.existing.moves)
	assert.Equal(t, "101", gw.existing.ChannelID())
}

func TestAdoptsGatewaySession(t *testing.T) {
	store := state.New(0.5)
	store.SetChannelID("100")
	gw := newGateway()
	gw.existing = &fakeConn{guildID: "g", channelID: "101", ready: true}
	m := newTestManager(gw, store)

	_, err := m.ConnectOrMove(context.Background())
	require.NoError(t, err)

	assert.Zero(t, gw.joins)
	assert.Equal(t, "100", gw.existing.ChannelID())
	assert.True(t, m.Connected())
}

func TestJoinFailures(t *testing.T) {
	store := state.New(0.5)
	store.SetChannelID("100")

	gw := newGateway()
	gw.joinErr = errors.New("gateway down")
	_, err := newTestManager(gw, store).ConnectOrMove(context.Background())
	assert.Equal(t, boterr.ErrorTypeChannel, boterr.TypeOf(err))
	assert.Equal(t, "❌ Failed to join voice channel: gateway down", boterr.UserMessage(err))

	gw = newGateway()
	gw.joinReady = false
	m := newTestManager(gw, store)
	_, err = m.ConnectOrMove(context.Background())
	assert.Equal(t, boterr.ErrorTypeChannel, boterr.TypeOf(err))
	assert.Contains(t, boterr.UserMessage(err), "❌ Failed to join voice channel: voice connection timeout")
	assert.True(t, gw.existing.disconnected)
	assert.False(t, m.Connected())

	gw = newGateway()
	gw.existing = &fakeConn{guildID: "g", channelID: "101", ready: true, moveErr: errors.New("move rejected")}
	_, err = newTestManager(gw, store).ConnectOrMove(context.Background())
	assert.Equal(t, "❌ Failed to join voice channel: move rejected", boterr.UserMessage(err))
}

func TestLeaveWhenConnectedClearsQueue(t *testing.T) {
	store := state.New(0.5)
	store.SetChannelID("100")
	store.ReplaceQueue([]string{"a", "b", "c"})
	store.Advance()
	gw := newGateway()
	m := newTestManager(gw, store)

	_, err := m.ConnectOrMove(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Disconnect())

	assert.True(t, gw.existing.disconnected)
	assert.False(t, m.Connected())
	assert.Nil(t, m.Voice())
	assert.Zero(t, store.QueueLen())
	assert.Zero(t, store.Cursor())
	assert.Equal(t, "100", store.ChannelID())
}

func TestLeaveWhenDisconnected(t *testing.T) {
	store := state.New(0.5)
	store.ReplaceQueue([]string{"a", "b", "c"})
	store.Advance()
	m := newTestManager(newGateway(), store)

	err := m.Disconnect()
	require.ErrorIs(t, err, boterr.ErrNotConnected)
	assert.Equal(t, boterr.MsgNotConnected, boterr.UserMessage(err))

	assert.Equal(t, 3, store.QueueLen())
	assert.Equal(t, 1, store.Cursor())
}

func TestIsVoiceChannel(t *testing.T) {
	assert.True(t, IsVoiceChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildVoice}))
	assert.True(t, IsVoiceChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildStageVoice}))
	assert.False(t, IsVoiceChannel(&discordgo.Channel{Type: discordgo.ChannelTypeGuildText}))
	assert.False(t, IsVoiceChannel(nil))
}
