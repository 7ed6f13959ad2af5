package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmuse/internal/boterr"
	"loopmuse/internal/history"
	"loopmuse/internal/playlist"
	"loopmuse/internal/services/audio"
	"loopmuse/internal/state"
)

type fakeVoice struct {
	store     *state.Store
	connected bool
	joins     int
	joinErr   error
}

func (v *fakeVoice) LookupChannel(id string) (*discordgo.Channel, error) {
	if id != "123" {
		return nil, boterr.NewChannelError("unknown", boterr.MsgInvalidChannel, nil)
	}
	return &discordgo.Channel{ID: id, Name: "Lounge", Type: discordgo.ChannelTypeGuildVoice}, nil
}

func (v *fakeVoice) ConnectOrMove(context.Context) (*discordgo.Channel, error) {
	if v.joinErr != nil {
		return nil, v.joinErr
	}
	if !v.connected {
		v.joins++
	}
	v.connected = true
	return &discordgo.Channel{ID: "123"}, nil
}

func (v *fakeVoice) Disconnect() error {
	if !v.connected {
		return boterr.ErrNotConnected
	}
	v.connected = false
	v.store.Reset()
	return nil
}

func (v *fakeVoice) Connected() bool { return v.connected }

type fakePlayer struct {
	state   audio.State
	track   *audio.Track
	gain    float64
	gainSet bool
	stops   int
}

func (p *fakePlayer) Pause() error {
	if p.state != audio.StatePlaying {
		return boterr.NewValidationError("not playing", MsgNothingOn)
	}
	p.state = audio.StatePaused
	return nil
}

func (p *fakePlayer) Resume() error {
	if p.state != audio.StatePaused {
		return boterr.NewValidationError("not paused", "❌ Playback is not paused.")
	}
	p.state = audio.StatePlaying
	return nil
}

func (p *fakePlayer) Stop() error {
	p.stops++
	p.track = nil
	p.state = audio.StateStopped
	return nil
}

func (p *fakePlayer) SetVolume(gain float64) error {
	p.gain, p.gainSet = gain, true
	return nil
}

func (p *fakePlayer) GetState() (audio.State, *audio.Track) { return p.state, p.track }
func (p *fakePlayer) Position() time.Duration               { return 75 * time.Second }

type fakeLoader struct {
	store *state.Store
	calls int
	err   error
}

func (l *fakeLoader) Load(context.Context) (playlist.Result, error) {
	l.calls++
	if l.err != nil {
		return playlist.Result{}, l.err
	}
	l.store.ReplaceQueue([]string{"a", "b"})
	return playlist.Result{Total: 2, Count: 2}, nil
}

type fakeScheduler struct {
	loader   *fakeLoader
	triggers int
}

func (s *fakeScheduler) Refill(ctx context.Context) (playlist.Result, error) {
	if n := s.loader.store.QueueLen(); n > 0 {
		return playlist.Result{Total: n, Count: n}, nil
	}
	return s.loader.Load(ctx)
}

func (s *fakeScheduler) Trigger() { s.triggers++ }

type fixture struct {
	store  *state.Store
	voice  *fakeVoice
	player *fakePlayer
	loader *fakeLoader
	sched  *fakeScheduler
	hist   *history.Manager
	c      *Controller
}

func newFixture() *fixture {
	store := state.New(0.5)
	f := &fixture{
		store:  store,
		voice:  &fakeVoice{store: store},
		player: &fakePlayer{state: audio.StateIdle},
		loader: &fakeLoader{store: store},
		hist:   history.NewManager(10),
	}
	f.sched = &fakeScheduler{loader: f.loader}
	f.c = NewController(f.voice, f.player, f.sched, store, f.hist, nil)
	return f
}

func TestSetChannel(t *testing.T) {
	f := newFixture()

	reply, err := f.c.SetChannel(" 123 ")
	require.NoError(t, err)
	assert.Equal(t, "✅ Set voice channel to: Lounge (ID: 123)", reply)
	assert.Equal(t, "123", f.store.ChannelID())
}

func TestSetChannelRejectsInput(t *testing.T) {
	f := newFixture()

	_, err := f.c.SetChannel("general")
	assert.Equal(t, boterr.ErrorTypeValidation, boterr.TypeOf(err))
	assert.Equal(t, msgBadChanID, boterr.UserMessage(err))

	_, err = f.c.SetChannel("456")
	assert.Equal(t, boterr.ErrorTypeChannel, boterr.TypeOf(err))
	assert.Equal(t, msgBadSetVoice, boterr.UserMessage(err))

	assert.Empty(t, f.store.ChannelID())
}

func TestJoinLoadsEmptyQueueAndTriggers(t *testing.T) {
	f := newFixture()

	reply, err := f.c.Join(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MsgJoined, reply)
	assert.Equal(t, 1, f.loader.calls)
	assert.Equal(t, 1, f.sched.triggers)

	_, err = f.c.Join(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.voice.joins)
	assert.Equal(t, 1, f.loader.calls, "queue already filled")
}

func TestJoinSurfacesConnectErrors(t *testing.T) {
	f := newFixture()
	f.voice.joinErr = boterr.NewConfigError("no channel", boterr.MsgNoChannel)

	_, err := f.c.Join(context.Background())
	assert.Equal(t, boterr.MsgNoChannel, boterr.UserMessage(err))
	assert.Zero(t, f.loader.calls)
	assert.Zero(t, f.sched.triggers)
}

func TestJoinIgnoresLoadFailure(t *testing.T) {
	f := newFixture()
	f.loader.err = boterr.NewUpstreamError("spotify down", errors.New("503"))

	reply, err := f.c.Join(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MsgJoined, reply)
}

func TestLeaveConnected(t *testing.T) {
	f := newFixture()
	_, err := f.c.Join(context.Background())
	require.NoError(t, err)
	f.store.Advance()

	reply, err := f.c.Leave()
	require.NoError(t, err)
	assert.Equal(t, MsgLeft, reply)
	assert.Zero(t, f.store.QueueLen())
	assert.Zero(t, f.store.Cursor())
	assert.Equal(t, 1, f.player.stops)
}

func TestLeaveDisconnected(t *testing.T) {
	f := newFixture()
	f.store.ReplaceQueue([]string{"a", "b"})
	f.store.Advance()

	_, err := f.c.Leave()
	require.ErrorIs(t, err, boterr.ErrNotConnected)
	assert.Equal(t, "❌ I'm not in a voice channel!", boterr.UserMessage(err))
	assert.Equal(t, 2, f.store.QueueLen())
	assert.Equal(t, 1, f.store.Cursor())
	assert.Zero(t, f.player.stops)
}

func TestVolume(t *testing.T) {
	f := newFixture()
	f.voice.connected = true

	_, err := f.c.Volume(150)
	require.Error(t, err)
	assert.Equal(t, boterr.ErrorTypeConfig, boterr.TypeOf(err))
	assert.Equal(t, msgBadVolume, boterr.UserMessage(err))
	assert.Equal(t, 0.5, f.store.Volume())
	assert.False(t, f.player.gainSet)

	_, err = f.c.Volume(-1)
	assert.Equal(t, boterr.ErrorTypeConfig, boterr.TypeOf(err))

	reply, err := f.c.Volume(0)
	require.NoError(t, err)
	assert.Equal(t, "🔊 Volume set to 0%", reply)
	assert.Equal(t, 0.0, f.store.Volume())
	assert.True(t, f.player.gainSet)
	assert.Equal(t, 0.0, f.player.gain)

	reply, err = f.c.Volume(100)
	require.NoError(t, err)
	assert.Equal(t, "🔊 Volume set to 100%", reply)
	assert.Equal(t, 1.0, f.store.Volume())
}

func TestVolumeRequiresConnection(t *testing.T) {
	f := newFixture()

	_, err := f.c.Volume(40)
	require.ErrorIs(t, err, boterr.ErrNotConnected)
	assert.Equal(t, 0.5, f.store.Volume())
}

func TestPauseResumeSkip(t *testing.T) {
	f := newFixture()

	_, err := f.c.Pause()
	require.ErrorIs(t, err, boterr.ErrNotConnected)

	f.voice.connected = true
	f.player.state = audio.StatePlaying
	f.player.track = &audio.Track{Title: "Song"}

	reply, err := f.c.Pause()
	require.NoError(t, err)
	assert.Equal(t, MsgPaused, reply)

	reply, err = f.c.Resume()
	require.NoError(t, err)
	assert.Equal(t, MsgResumed, reply)

	reply, err = f.c.Skip()
	require.NoError(t, err)
	assert.Equal(t, MsgSkipped, reply)
	assert.Equal(t, 1, f.sched.triggers)

	_, err = f.c.Skip()
	assert.Equal(t, MsgNothingOn, boterr.UserMessage(err))
}

func TestNowPlaying(t *testing.T) {
	f := newFixture()

	_, err := f.c.NowPlaying()
	assert.Equal(t, MsgNothingOn, boterr.UserMessage(err))

	f.store.ReplaceQueue([]string{"a", "b", "c"})
	f.player.state = audio.StatePlaying
	f.player.track = &audio.Track{Title: "Song", Duration: 3*time.Minute + 5*time.Second}

	reply, err := f.c.NowPlaying()
	require.NoError(t, err)
	assert.Equal(t, "🎶 Now playing: **Song** [1:15 / 3:05]\nQueue: 3 tracks, volume 50%", reply)
}

func TestHistory(t *testing.T) {
	f := newFixture()

	reply, err := f.c.History(5)
	require.NoError(t, err)
	assert.Equal(t, MsgNoHistory, reply)

	f.hist.Add("First", "", 0)
	f.hist.Add("Second", "", 1)

	reply, err = f.c.History(5)
	require.NoError(t, err)
	assert.Equal(t, "📜 Recently played:\n1. Second\n2. First", reply)

	f.hist.Add("Third", "", 2)
	reply, err = f.c.History(1)
	require.NoError(t, err)
	assert.Equal(t, "📜 Recently played:\n1. Third\n…and 2 more", reply)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:00", formatDuration(0))
	assert.Equal(t, "1:05", formatDuration(65*time.Second))
	assert.Equal(t, "1:01:01", formatDuration(time.Hour+61*time.Second))
}
