// Package bot implements the user-facing commands on top of the voice
// manager, the audio player and the playback state.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"loopmuse/internal/boterr"
	"loopmuse/internal/history"
	"loopmuse/internal/playlist"
	"loopmuse/internal/services/audio"
	"loopmuse/internal/state"
	"loopmuse/pkg/logger"
)

// Replies that are not errors
const (
	MsgJoined      = "🎵 Joined voice channel and started playing!"
	MsgLeft        = "👋 Left the voice channel"
	MsgPaused      = "⏸️ Paused playback"
	MsgResumed     = "▶️ Resumed playback"
	MsgSkipped     = "⏭️ Skipped"
	MsgNoHistory   = "📭 Nothing has been played yet."
	MsgNothingOn   = "❌ Nothing is playing right now."
	msgBadVolume   = "❌ Volume must be between 0 and 100"
	msgBadChanID   = "❌ Please provide a valid channel ID (numbers only)."
	msgBadSetVoice = "❌ Invalid voice channel ID. Please provide a valid voice channel ID."
)

// Voice is the voice connection manager
type Voice interface {
	LookupChannel(id string) (*discordgo.Channel, error)
	ConnectOrMove(ctx context.Context) (*discordgo.Channel, error)
	Disconnect() error
	Connected() bool
}

// Player is the audio output
type Player interface {
	Pause() error
	Resume() error
	Stop() error
	SetVolume(gain float64) error
	GetState() (audio.State, *audio.Track)
	Position() time.Duration
}

// Scheduler owns the playback timeline: queue refills and early ticks go
// through it
type Scheduler interface {
	Refill(ctx context.Context) (playlist.Result, error)
	Trigger()
}

// Controller executes commands and returns the reply to show the user.
// Errors carry their own user message; see boterr.UserMessage.
type Controller struct {
	voice     Voice
	player    Player
	scheduler Scheduler
	store     *state.Store
	history   *history.Manager
	log       *logger.Logger
}

// NewController wires a controller
func NewController(voice Voice, player Player, scheduler Scheduler, store *state.Store, hist *history.Manager, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Nop()
	}
	if hist == nil {
		hist = history.NewManager(0)
	}
	return &Controller{
		voice:     voice,
		player:    player,
		scheduler: scheduler,
		store:     store,
		history:   hist,
		log:       log.WithComponent("bot"),
	}
}

// SetChannel validates input as a voice channel id and makes it the target
func (c *Controller) SetChannel(input string) (string, error) {
	id := strings.TrimSpace(input)
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", boterr.NewValidationError("channel id is not numeric", msgBadChanID).
			WithContext("input", input)
	}

	ch, err := c.voice.LookupChannel(id)
	if err != nil {
		return "", boterr.NewChannelError("invalid target channel", msgBadSetVoice, err)
	}

	c.store.SetChannelID(ch.ID)
	c.log.Info("Target voice channel set", logger.Fields{
		"channel_id":   ch.ID,
		"channel_name": ch.Name,
	})
	return fmt.Sprintf("✅ Set voice channel to: %s (ID: %s)", ch.Name, ch.ID), nil
}

// Join connects to (or moves to) the target channel and fills the queue if it
// is empty. Playback itself is started by the scheduler.
func (c *Controller) Join(ctx context.Context) (string, error) {
	if _, err := c.voice.ConnectOrMove(ctx); err != nil {
		return "", err
	}

	// load failures are logged by the scheduler and retried on the next tick
	_, _ = c.scheduler.Refill(ctx)

	c.scheduler.Trigger()
	return MsgJoined, nil
}

// Leave disconnects and clears the queue and cursor
func (c *Controller) Leave() (string, error) {
	if err := c.voice.Disconnect(); err != nil {
		return "", err
	}
	if err := c.player.Stop(); err != nil {
		c.log.Warn("Failed to stop playback on leave", logger.Fields{"error": err.Error()})
	}
	return MsgLeft, nil
}

// Volume sets the playback level from a 0-100 percentage. Out of range
// values are rejected without touching the stored level.
func (c *Controller) Volume(level int) (string, error) {
	if level < 0 || level > 100 {
		return "", boterr.NewConfigError("volume out of range", msgBadVolume).
			WithContext("level", level)
	}
	if !c.voice.Connected() {
		return "", boterr.ErrNotConnected
	}

	gain := float64(level) / 100
	if err := c.store.SetVolume(gain); err != nil {
		return "", boterr.NewConfigError(err.Error(), msgBadVolume)
	}
	if err := c.player.SetVolume(gain); err != nil {
		boterr.Log(c.log, "Failed to apply volume to current track", err)
	}

	return fmt.Sprintf("🔊 Volume set to %d%%", level), nil
}

// Pause pauses the current track
func (c *Controller) Pause() (string, error) {
	if !c.voice.Connected() {
		return "", boterr.ErrNotConnected
	}
	if err := c.player.Pause(); err != nil {
		return "", err
	}
	return MsgPaused, nil
}

// Resume resumes a paused track
func (c *Controller) Resume() (string, error) {
	if !c.voice.Connected() {
		return "", boterr.ErrNotConnected
	}
	if err := c.player.Resume(); err != nil {
		return "", err
	}
	return MsgResumed, nil
}

// Skip stops the current track; the scheduler starts the next one
func (c *Controller) Skip() (string, error) {
	if !c.voice.Connected() {
		return "", boterr.ErrNotConnected
	}
	if _, track := c.player.GetState(); track == nil {
		return "", boterr.NewValidationError("nothing to skip", MsgNothingOn)
	}
	if err := c.player.Stop(); err != nil {
		return "", err
	}
	c.scheduler.Trigger()
	return MsgSkipped, nil
}

// NowPlaying describes the current track and queue position
func (c *Controller) NowPlaying() (string, error) {
	st, track := c.player.GetState()
	if track == nil {
		return "", boterr.NewValidationError("nothing playing", MsgNothingOn)
	}

	var b strings.Builder
	icon := "🎶"
	if st == audio.StatePaused {
		icon = "⏸️"
	}
	fmt.Fprintf(&b, "%s Now playing: **%s**", icon, track.Title)

	position := c.player.Position().Truncate(time.Second)
	if track.Duration > 0 {
		fmt.Fprintf(&b, " [%s / %s]", formatDuration(position), formatDuration(track.Duration))
	} else {
		fmt.Fprintf(&b, " [%s]", formatDuration(position))
	}

	snap := c.store.Snapshot()
	if snap.QueueLen > 0 {
		fmt.Fprintf(&b, "\nQueue: %d tracks, volume %d%%", snap.QueueLen, int(snap.Volume*100+0.5))
	}
	return b.String(), nil
}

// History lists the most recently played tracks
func (c *Controller) History(limit int) (string, error) {
	entries := c.history.Recent(limit)
	if len(entries) == 0 {
		return MsgNoHistory, nil
	}

	var b strings.Builder
	b.WriteString("📜 Recently played:")
	for i, e := range entries {
		fmt.Fprintf(&b, "\n%d. %s", i+1, e.Title)
	}
	if stats := c.history.Stats(); stats.Total > len(entries) {
		fmt.Fprintf(&b, "\n…and %d more", stats.Total-len(entries))
	}
	return b.String(), nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
