// Package state holds the process-wide playback record shared by the
// scheduler, the voice manager and the command handlers.
package state

import (
	"fmt"
	"sync"
)

// Store is the single playback state record. It is passed by reference to
// every component that reads or mutates it.
type Store struct {
	mu sync.RWMutex

	channelID string
	queue     []string
	cursor    int
	volume    float64
	gen       uint64 // bumped by Reset
}

// Entry is the track under the cursor, tagged with the reset generation it
// was read in
type Entry struct {
	Source string
	Index  int
	Gen    uint64
}

// New creates a Store with the given starting volume
func New(defaultVolume float64) *Store {
	return &Store{volume: defaultVolume}
}

// ChannelID returns the target voice channel, empty when unset
func (s *Store) ChannelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelID
}

// SetChannelID overwrites the target voice channel. Last write wins.
func (s *Store) SetChannelID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = id
}

// Queue returns a copy of the queue
func (s *Store) Queue() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}

// QueueLen returns the number of queued tracks
func (s *Store) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// ReplaceQueue swaps in a new queue. The cursor is left as is; the scheduler
// wraps it on the next tick if it is now out of range.
func (s *Store) ReplaceQueue(tracks []string) {
	next := make([]string, len(tracks))
	copy(next, tracks)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = next
}

// Reset clears the queue and rewinds the cursor. Entries read before the
// reset can no longer move the cursor.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.cursor = 0
	s.gen++
}

// Cursor returns the raw play cursor
func (s *Store) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Current normalizes the cursor and returns the track it points at.
// ok is false when the queue is empty.
func (s *Store) Current() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Entry{}, false
	}
	if s.cursor >= len(s.queue) || s.cursor < 0 {
		s.cursor = 0
	}
	return Entry{Source: s.queue[s.cursor], Index: s.cursor, Gen: s.gen}, true
}

// Advance moves the cursor forward by one. It may land on len(queue);
// Current wraps it before use.
func (s *Store) Advance() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor++
	return s.cursor
}

// AdvanceFrom advances the cursor only if no Reset happened since e was read.
// It reports whether the cursor moved.
func (s *Store) AdvanceFrom(e Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Gen != s.gen {
		return false
	}
	s.cursor++
	return true
}

// Volume returns the current gain in [0.0, 1.0]
func (s *Store) Volume() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// SetVolume stores a new gain. Values outside [0.0, 1.0] are rejected and the
// stored value is kept.
func (s *Store) SetVolume(gain float64) error {
	if gain < 0 || gain > 1 {
		return fmt.Errorf("volume %.2f out of range [0, 1]", gain)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = gain
	return nil
}

// Snapshot is a point-in-time copy of the store for display and logging
type Snapshot struct {
	ChannelID string
	QueueLen  int
	Cursor    int
	Volume    float64
}

// Snapshot returns a consistent copy of the scalar fields
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ChannelID: s.channelID,
		QueueLen:  len(s.queue),
		Cursor:    s.cursor,
		Volume:    s.volume,
	}
}
