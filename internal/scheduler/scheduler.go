// Package scheduler drives playback: on every tick it refills the queue when
// empty and starts the track under the cursor once the player goes idle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"loopmuse/internal/boterr"
	"loopmuse/internal/playlist"
	"loopmuse/internal/resolver"
	"loopmuse/internal/services/audio"
	"loopmuse/internal/state"
	"loopmuse/pkg/logger"
	"loopmuse/pkg/metrics"
)

// Outcome describes what a tick did
type Outcome string

const (
	OutcomeIdle    Outcome = "idle"    // not connected
	OutcomeEmpty   Outcome = "empty"   // queue empty after a load attempt
	OutcomeBusy    Outcome = "busy"    // player is playing or paused
	OutcomePlayed  Outcome = "played"  // a track was started
	OutcomeSkipped Outcome = "skipped" // the track under the cursor failed
	OutcomeOverlap Outcome = "overlap" // a previous tick was still running
)

// Connection reports voice liveness
type Connection interface {
	Connected() bool
}

// Player is the audio output
type Player interface {
	IsPlaying() bool
	IsPaused() bool
	Play(ctx context.Context, track audio.Track, gain float64) error
}

// Loader refills the queue
type Loader interface {
	Load(ctx context.Context) (playlist.Result, error)
}

// Resolver turns a queue entry into a playable stream
type Resolver interface {
	Resolve(ctx context.Context, input string) (resolver.Stream, error)
}

// Recorder is told about every track that starts
type Recorder interface {
	Add(title, source string, index int)
}

// Deps groups the scheduler's collaborators
type Deps struct {
	Conn     Connection
	Player   Player
	Loader   Loader
	Resolver Resolver
	Store    *state.Store
	History  Recorder                 // optional
	Events   <-chan audio.StateChange // optional, a track going idle starts a tick
	Log      *logger.Logger
	Metrics  *metrics.Metrics
}

// Scheduler is the periodic playback control loop
type Scheduler struct {
	interval time.Duration
	deps     Deps
	log      *logger.Logger

	running sync.Mutex // held for the duration of a tick
	trigger chan struct{}
}

// New creates a scheduler ticking every interval
func New(interval time.Duration, deps Deps) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		interval: interval,
		deps:     deps,
		log:      log.WithComponent("scheduler"),
		trigger:  make(chan struct{}, 1),
	}
}

// Run ticks until ctx is cancelled, then waits for an in-flight tick to finish.
// Ticks run off the loop goroutine; a tick that fires while the previous one
// is still running is dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	events := s.deps.Events

	s.log.Info("Playback scheduler started", logger.Fields{"interval": s.interval.String()})
	s.dispatch(ctx, &wg)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Playback scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.dispatch(ctx, &wg)
		case <-s.trigger:
			s.dispatch(ctx, &wg)
		case change, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if change.NewState == audio.StateIdle {
				s.dispatch(ctx, &wg)
			}
		}
	}
}

// Trigger asks for a tick as soon as possible without waiting for the interval
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch(ctx context.Context, wg *sync.WaitGroup) {
	if !s.running.TryLock() {
		s.log.Debug("Previous tick still running, skipping")
		s.deps.Metrics.RecordTick(string(OutcomeOverlap), 0)
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer s.running.Unlock()
		defer boterr.Recover(s.log, "scheduler tick")
		_, _ = s.tick(ctx)
	}()
}

// Tick runs one tick on the calling goroutine. It returns OutcomeOverlap
// without doing anything if another tick is in flight.
func (s *Scheduler) Tick(ctx context.Context) (Outcome, error) {
	if !s.running.TryLock() {
		return OutcomeOverlap, nil
	}
	defer s.running.Unlock()
	return s.tick(ctx)
}

// Refill loads the playlist if the queue is empty. Unlike a tick it waits for
// an in-flight tick to finish, so only one load ever runs at a time.
func (s *Scheduler) Refill(ctx context.Context) (playlist.Result, error) {
	s.running.Lock()
	defer s.running.Unlock()

	if n := s.deps.Store.QueueLen(); n > 0 {
		return playlist.Result{Total: n, Count: n}, nil
	}
	return s.load(ctx)
}

func (s *Scheduler) load(ctx context.Context) (playlist.Result, error) {
	result, err := s.deps.Loader.Load(ctx)
	if err != nil {
		boterr.Log(s.log, "Failed to load playlist", err)
		return result, err
	}
	if result.Count > 0 {
		s.log.Info("Loaded playlist", logger.Fields{
			"count":   result.Count,
			"skipped": result.Skipped,
		})
	}
	return result, nil
}

func (s *Scheduler) tick(ctx context.Context) (Outcome, error) {
	start := time.Now()
	outcome, err := s.step(ctx)
	s.deps.Metrics.RecordTick(string(outcome), time.Since(start))
	return outcome, err
}

func (s *Scheduler) step(ctx context.Context) (Outcome, error) {
	d := s.deps

	if !d.Conn.Connected() {
		return OutcomeIdle, nil
	}

	if d.Store.QueueLen() == 0 {
		result, err := s.load(ctx)
		if err != nil {
			return OutcomeEmpty, err
		}
		if result.Count == 0 {
			return OutcomeEmpty, nil
		}
	}

	if d.Player.IsPlaying() || d.Player.IsPaused() {
		return OutcomeBusy, nil
	}

	entry, ok := d.Store.Current()
	if !ok {
		return OutcomeEmpty, nil
	}
	fields := logger.Fields{"index": entry.Index, "source": entry.Source}

	stream, err := d.Resolver.Resolve(ctx, entry.Source)
	if err != nil {
		s.advance(entry)
		boterr.Log(s.log, "Error playing song", err, fields)
		return OutcomeSkipped, err
	}

	track := audio.Track{
		Title:    stream.Title,
		Source:   entry.Source,
		Locator:  stream.Locator,
		Duration: stream.Duration,
	}
	if err := d.Player.Play(ctx, track, d.Store.Volume()); err != nil {
		s.advance(entry)
		boterr.Log(s.log, "Error playing song", err, fields)
		return OutcomeSkipped, err
	}

	s.advance(entry)
	if d.History != nil {
		d.History.Add(stream.Title, entry.Source, entry.Index)
	}
	s.log.WithTrack(stream.Title, entry.Source).Info("Now playing", logger.Fields{"index": entry.Index})
	return OutcomePlayed, nil
}

// advance moves past entry unless the state was reset while it was in flight
func (s *Scheduler) advance(entry state.Entry) {
	if !s.deps.Store.AdvanceFrom(entry) {
		s.log.Debug("State reset during tick, cursor left alone", logger.Fields{"index": entry.Index})
	}
}
