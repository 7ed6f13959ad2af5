package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmuse/internal/playlist"
	"loopmuse/internal/resolver"
	"loopmuse/internal/scheduler"
	"loopmuse/internal/services/audio"
	"loopmuse/internal/state"
)

// liveVoice is a Voice that can be read from scheduler goroutines
type liveVoice struct{ connected atomic.Bool }

func (v *liveVoice) LookupChannel(id string) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeGuildVoice}, nil
}

func (v *liveVoice) ConnectOrMove(context.Context) (*discordgo.Channel, error) {
	v.connected.Store(true)
	return &discordgo.Channel{ID: "123"}, nil
}

func (v *liveVoice) Disconnect() error { v.connected.Store(false); return nil }
func (v *liveVoice) Connected() bool  { return v.connected.Load() }

type slowLoader struct {
	store     *state.Store
	delay     time.Duration
	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (l *slowLoader) Load(ctx context.Context) (playlist.Result, error) {
	l.calls.Add(1)
	n := l.active.Add(1)
	defer l.active.Add(-1)
	for {
		peak := l.maxActive.Load()
		if n <= peak || l.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	select {
	case <-time.After(l.delay):
	case <-ctx.Done():
		return playlist.Result{}, ctx.Err()
	}
	l.store.ReplaceQueue([]string{"a", "b"})
	return playlist.Result{Total: 2, Count: 2}, nil
}

type echoResolver struct{}

func (echoResolver) Resolve(_ context.Context, input string) (resolver.Stream, error) {
	return resolver.Stream{Locator: "https://cdn/" + input, Title: input, PageURL: input}, nil
}

// loopPlayer never reports playing, so every tick starts a track
type loopPlayer struct {
	mu     sync.Mutex
	played int
}

func (p *loopPlayer) IsPlaying() bool { return false }
func (p *loopPlayer) IsPaused() bool  { return false }

func (p *loopPlayer) Play(context.Context, audio.Track, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played++
	return nil
}

func (p *loopPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.played
}

func (p *loopPlayer) Pause() error                          { return nil }
func (p *loopPlayer) Resume() error                         { return nil }
func (p *loopPlayer) Stop() error                           { return nil }
func (p *loopPlayer) SetVolume(float64) error               { return nil }
func (p *loopPlayer) GetState() (audio.State, *audio.Track) { return audio.StateIdle, nil }
func (p *loopPlayer) Position() time.Duration               { return 0 }

func TestJoinSharesPlaylistLoadWithTicks(t *testing.T) {
	store := state.New(0.5)
	store.SetChannelID("123")
	voice := &liveVoice{}
	loader := &slowLoader{store: store, delay: 100 * time.Millisecond}
	player := &loopPlayer{}

	sched := scheduler.New(5*time.Millisecond, scheduler.Deps{
		Conn:     voice,
		Player:   player,
		Loader:   loader,
		Resolver: echoResolver{},
		Store:    store,
	})
	c := NewController(voice, player, sched, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sched.Run(ctx) }()

	reply, err := c.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, MsgJoined, reply)
	assert.Equal(t, 2, store.QueueLen(), "join replies after the queue is filled")

	require.Eventually(t, func() bool { return player.count() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	assert.EqualValues(t, 1, loader.calls.Load())
	assert.EqualValues(t, 1, loader.maxActive.Load())
}
