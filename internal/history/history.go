// Package history keeps a bounded, most-recent-first list of played tracks.
package history

import (
	"sync"
	"time"
)

// Entry represents a single played track
type Entry struct {
	Title    string    `json:"title"`
	Source   string    `json:"source"`    // page URL the track came from
	Index    int       `json:"index"`     // queue position it was played from
	PlayedAt time.Time `json:"played_at"` // when playback started
}

// Stats summarizes the history
type Stats struct {
	Total  int
	Newest time.Time
	Oldest time.Time
}

// Manager holds played tracks in memory
type Manager struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	now        func() time.Time
}

// NewManager creates a history holding at most maxEntries tracks (default 50)
func NewManager(maxEntries int) *Manager {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	return &Manager{
		entries:    make([]Entry, 0, maxEntries),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Add records a track as just played
func (m *Manager) Add(title, source string, index int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := Entry{
		Title:    title,
		Source:   source,
		Index:    index,
		PlayedAt: m.now(),
	}

	// Most recent first
	m.entries = append([]Entry{entry}, m.entries...)
	if len(m.entries) > m.maxEntries {
		m.entries = m.entries[:m.maxEntries]
	}
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (m *Manager) Recent(limit int) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.entries
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	// Return a copy to prevent external modification
	result := make([]Entry, len(entries))
	copy(result, entries)
	return result
}

// Stats returns statistics for the history
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Total: len(m.entries)}
	if len(m.entries) > 0 {
		stats.Newest = m.entries[0].PlayedAt
		stats.Oldest = m.entries[len(m.entries)-1].PlayedAt
	}
	return stats
}

// Cleanup removes entries older than maxAge and returns how many were dropped
func (m *Manager) Cleanup(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	filtered := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.PlayedAt.After(cutoff) {
			filtered = append(filtered, entry)
		}
	}

	removed := len(m.entries) - len(filtered)
	m.entries = filtered
	return removed
}
