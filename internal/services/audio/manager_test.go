package audio

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmuse/internal/boterr"
)

type noVoice struct{}

func (noVoice) Voice() *discordgo.VoiceConnection { return nil }

func newTestManager() *Manager {
	return NewManager(Config{Bitrate: 128, FrameRate: 48000, FrameDuration: 20, BufferedFrames: 100}, noVoice{}, nil)
}

func TestGainToVolume(t *testing.T) {
	tests := []struct {
		gain float64
		want int
	}{
		{0, 0},
		{0.5, 128},
		{1, 256},
		{0.01, 3},
		{-1, 0},
		{2, 256},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GainToVolume(tt.gain), "gain %v", tt.gain)
	}
}

func TestPlayWithoutVoiceConnection(t *testing.T) {
	m := newTestManager()

	err := m.Play(context.Background(), Track{Title: "A", Locator: "https://cdn/a"}, 0.5)
	require.ErrorIs(t, err, boterr.ErrNotConnected)

	state, track := m.GetState()
	assert.Equal(t, StateIdle, state)
	assert.Nil(t, track)
	assert.False(t, m.IsPlaying())
}

func TestPauseResumeRequirePlayback(t *testing.T) {
	m := newTestManager()

	assert.Equal(t, boterr.ErrorTypeValidation, boterr.TypeOf(m.Pause()))
	assert.Equal(t, boterr.ErrorTypeValidation, boterr.TypeOf(m.Resume()))
	assert.False(t, m.IsPaused())
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.Stop())
	state, _ := m.GetState()
	assert.Equal(t, StateIdle, state)
	assert.Zero(t, m.Position())
}

func TestSetVolumeWhileIdle(t *testing.T) {
	m := newTestManager()

	require.NoError(t, m.SetVolume(0))
	assert.Error(t, m.SetVolume(1.5))
}

func TestEncodeOptions(t *testing.T) {
	m := newTestManager()

	opts := m.encodeOptions(0.25, 0)
	assert.Equal(t, 64, opts.Volume)
	assert.Equal(t, 128, opts.Bitrate)
	assert.Zero(t, opts.StartTime)
	assert.True(t, opts.RawOutput)

	opts = m.encodeOptions(0, 0)
	assert.Zero(t, opts.Volume)
}

func TestShutdownClosesSubscribers(t *testing.T) {
	m := newTestManager()
	ch := m.Subscribe()

	require.NoError(t, m.Shutdown())

	change, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, StateStopped, change.NewState)
	_, ok = <-ch
	assert.False(t, ok)
}
