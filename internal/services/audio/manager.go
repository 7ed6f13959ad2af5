package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"loopmuse/internal/boterr"
	"loopmuse/pkg/logger"
)

// Config holds audio configuration
type Config struct {
	Bitrate          int
	FrameRate        int
	FrameDuration    int
	CompressionLevel int
	PacketLoss       int
	BufferedFrames   int
	EnableVBR        bool
}

// VoiceProvider hands out the live voice connection, nil when disconnected
type VoiceProvider interface {
	Voice() *discordgo.VoiceConnection
}

// Track represents an audio track
type Track struct {
	Title    string
	Source   string // page URL the track was resolved from
	Locator  string // direct stream URL
	Duration time.Duration
}

// State represents the playback state
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
	StateError   State = "error"
)

// StateChange represents a state change event
type StateChange struct {
	OldState  State
	NewState  State
	Track     *Track
	Timestamp time.Time
	Error     error
}

// Manager plays one track at a time over the voice connection
type Manager struct {
	mu     sync.Mutex
	config Config
	voice  VoiceProvider
	log    *logger.Logger

	encoder   *dca.EncodeSession
	stream    *dca.StreamingSession
	vc        *discordgo.VoiceConnection
	current   *Track
	state     State
	gain      float64
	offset    time.Duration // start position of the running encode
	playID    int           // bumped whenever playback is replaced or stopped
	listeners []chan StateChange
}

// NewManager creates a new audio manager
func NewManager(config Config, voice VoiceProvider, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		config: config,
		voice:  voice,
		log:    log.WithComponent("audio"),
		state:  StateIdle,
	}
}

// Play starts track at the given gain, replacing whatever is playing
func (m *Manager) Play(ctx context.Context, track Track, gain float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	vc := m.voice.Voice()
	if vc == nil {
		return boterr.ErrNotConnected
	}

	m.stopLocked()

	if err := m.startLocked(vc, track, gain, 0); err != nil {
		m.setState(StateError, err)
		return err
	}

	m.log.LogAudioEvent("track_started", logger.Fields{
		"title":  track.Title,
		"source": track.Source,
		"gain":   gain,
	})
	return nil
}

func (m *Manager) startLocked(vc *discordgo.VoiceConnection, track Track, gain float64, from time.Duration) error {
	encoder, err := dca.EncodeFile(track.Locator, m.encodeOptions(gain, from))
	if err != nil {
		return boterr.NewAudioError("failed to create encoder", err)
	}

	if err := vc.Speaking(true); err != nil {
		m.log.Debug("Failed to set speaking state", logger.Fields{"error": err.Error()})
	}

	done := make(chan error, 1)
	m.playID++
	m.encoder = encoder
	m.stream = dca.NewStream(encoder, vc, done)
	m.vc = vc
	m.current = &track
	m.gain = gain
	m.offset = from
	m.setState(StatePlaying, nil)

	go m.watch(m.playID, done)
	return nil
}

// watch waits for the stream to end and returns the manager to idle, unless
// the playback it belongs to was already replaced.
func (m *Manager) watch(id int, done <-chan error) {
	defer boterr.Recover(m.log, "audio watcher")

	err := <-done

	m.mu.Lock()
	defer m.mu.Unlock()

	if id != m.playID {
		return
	}

	if err != nil && !errors.Is(err, io.EOF) {
		m.log.Warn("Stream stopped early", logger.Fields{"error": err.Error()})
	}

	title := ""
	if m.current != nil {
		title = m.current.Title
	}
	m.releaseLocked()
	m.current = nil
	m.setState(StateIdle, nil)
	m.log.LogAudioEvent("track_finished", logger.Fields{"title": title})
}

func (m *Manager) encodeOptions(gain float64, from time.Duration) *dca.EncodeOptions {
	options := *dca.StdEncodeOptions
	options.RawOutput = true
	options.Bitrate = m.config.Bitrate
	options.Application = dca.AudioApplicationAudio
	options.Volume = GainToVolume(gain)
	options.CompressionLevel = m.config.CompressionLevel
	options.FrameRate = m.config.FrameRate
	options.FrameDuration = m.config.FrameDuration
	options.PacketLoss = m.config.PacketLoss
	options.VBR = m.config.EnableVBR
	options.BufferedFrames = m.config.BufferedFrames
	options.StartTime = int(from.Seconds())
	return &options
}

// GainToVolume maps a gain in [0.0, 1.0] to the encoder volume scale where
// 256 is unity.
func GainToVolume(gain float64) int {
	if gain <= 0 {
		return 0
	}
	if gain >= 1 {
		return 256
	}
	return int(math.Round(gain * 256))
}

// SetVolume applies gain to the running track by restarting the encoder at the
// current position. With nothing playing the gain is only used by the next Play.
func (m *Manager) SetVolume(gain float64) error {
	if gain < 0 || gain > 1 {
		return fmt.Errorf("gain %.2f out of range [0, 1]", gain)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || m.stream == nil || m.vc == nil {
		m.gain = gain
		return nil
	}

	track := *m.current
	position := m.offset + m.stream.PlaybackPosition()
	paused := m.state == StatePaused
	vc := m.vc

	m.stopLocked()
	if err := m.startLocked(vc, track, gain, position); err != nil {
		m.setState(StateError, err)
		return err
	}
	if paused {
		m.stream.SetPaused(true)
		m.setState(StatePaused, nil)
	}
	return nil
}

// Pause pauses playback
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePlaying || m.stream == nil {
		return boterr.NewValidationError("not playing", "❌ Nothing is playing right now.")
	}

	m.stream.SetPaused(true)
	if m.vc != nil {
		_ = m.vc.Speaking(false)
	}
	m.setState(StatePaused, nil)
	return nil
}

// Resume resumes playback
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaused || m.stream == nil {
		return boterr.NewValidationError("not paused", "❌ Playback is not paused.")
	}

	if m.vc != nil {
		_ = m.vc.Speaking(true)
	}
	m.stream.SetPaused(false)
	m.setState(StatePlaying, nil)
	return nil
}

// Stop stops playback. Stopping while idle is a no-op.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	m.stopLocked()
	m.setState(StateStopped, nil)
	return nil
}

// stopLocked tears down the running encode and detaches its watcher
func (m *Manager) stopLocked() {
	m.playID++
	m.releaseLocked()
	m.current = nil
}

func (m *Manager) releaseLocked() {
	if m.encoder != nil {
		m.encoder.Cleanup()
		m.encoder = nil
	}
	if m.vc != nil {
		_ = m.vc.Speaking(false)
	}
	m.stream = nil
	m.offset = 0
}

// IsPlaying reports whether a track is streaming
func (m *Manager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StatePlaying
}

// IsPaused reports whether a track is paused
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StatePaused
}

// GetState returns the current state and track
func (m *Manager) GetState() (State, *Track) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return m.state, nil
	}
	track := *m.current
	return m.state, &track
}

// Position returns how far into the current track playback is
func (m *Manager) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return 0
	}
	return m.offset + m.stream.PlaybackPosition()
}

// Subscribe subscribes to state changes
func (m *Manager) Subscribe() <-chan StateChange {
	m.mu.Lock()
	defer m.mu.Unlock()

	listener := make(chan StateChange, 10)
	m.listeners = append(m.listeners, listener)
	return listener
}

// setState sets the state and notifies listeners
func (m *Manager) setState(newState State, err error) {
	oldState := m.state
	m.state = newState

	change := StateChange{
		OldState:  oldState,
		NewState:  newState,
		Track:     m.current,
		Timestamp: time.Now(),
		Error:     err,
	}

	for _, listener := range m.listeners {
		select {
		case listener <- change:
		default:
			// Listener buffer full, skip
		}
	}
}

// Shutdown stops playback and closes subscriber channels
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.setState(StateStopped, nil)
	for _, listener := range m.listeners {
		close(listener)
	}
	m.listeners = nil
	return nil
}
