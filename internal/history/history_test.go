package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func TestAddKeepsNewestFirstAndBounded(t *testing.T) {
	m := NewManager(3)
	for i, title := range []string{"A", "B", "C", "D"} {
		m.Add(title, "https://example.com/"+title, i)
	}

	recent := m.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "D", recent[0].Title)
	assert.Equal(t, "B", recent[2].Title)

	assert.Len(t, m.Recent(2), 2)

	assert.Equal(t, 3, recent[0].Index)
}

func TestRecentReturnsCopy(t *testing.T) {
	m := NewManager(5)
	m.Add("A", "", 0)

	recent := m.Recent(0)
	recent[0].Title = "changed"

	assert.Equal(t, "A", m.Recent(0)[0].Title)
}

func TestStatsAndCleanup(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(10)
	m.now = fixedClock(start)

	m.Add("old", "", 0)
	m.Add("new", "", 1)

	assert.Zero(t, NewManager(0).Stats().Total)

	stats := m.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.True(t, stats.Newest.After(stats.Oldest))

	// clock is now start+3m; anything older than 90s goes
	removed := m.Cleanup(90 * time.Second)
	assert.Equal(t, 1, removed)
	assert.Equal(t, "new", m.Recent(0)[0].Title)
}
