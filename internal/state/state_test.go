package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelLastWriteWins(t *testing.T) {
	s := New(0.5)
	assert.Empty(t, s.ChannelID())

	s.SetChannelID("111")
	s.SetChannelID("222")
	assert.Equal(t, "222", s.ChannelID())

	s.Reset()
	assert.Equal(t, "222", s.ChannelID(), "reset must not clear the target channel")
}

func TestCurrentWrapsCursor(t *testing.T) {
	s := New(0.5)
	s.ReplaceQueue([]string{"A", "B", "C"})

	s.Advance()
	s.Advance()
	entry, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "C", entry.Source)
	assert.Equal(t, 2, entry.Index)

	assert.Equal(t, 3, s.Advance())
	entry, ok = s.Current()
	require.True(t, ok)
	assert.Equal(t, "A", entry.Source)
	assert.Equal(t, 0, entry.Index)
	assert.Equal(t, 0, s.Cursor())
}

func TestCurrentOnEmptyQueue(t *testing.T) {
	s := New(0.5)
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestReplaceQueueKeepsCursor(t *testing.T) {
	s := New(0.5)
	s.ReplaceQueue([]string{"A", "B", "C", "D", "E"})
	for i := 0; i < 4; i++ {
		s.Advance()
	}

	s.ReplaceQueue([]string{"X", "Y"})
	assert.Equal(t, 4, s.Cursor())

	entry, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "X", entry.Source)
}

func TestReplaceQueueCopiesInput(t *testing.T) {
	s := New(0.5)
	in := []string{"A", "B"}
	s.ReplaceQueue(in)
	in[0] = "Z"

	assert.Equal(t, []string{"A", "B"}, s.Queue())
}

func TestReset(t *testing.T) {
	s := New(0.5)
	s.ReplaceQueue([]string{"A", "B"})
	s.Advance()

	s.Reset()
	assert.Zero(t, s.QueueLen())
	assert.Zero(t, s.Cursor())
}

func TestAdvanceFromIgnoresEntriesReadBeforeReset(t *testing.T) {
	s := New(0.5)
	s.ReplaceQueue([]string{"A", "B"})

	entry, ok := s.Current()
	require.True(t, ok)
	assert.True(t, s.AdvanceFrom(entry))
	assert.Equal(t, 1, s.Cursor())

	entry, _ = s.Current()
	s.Reset()
	s.ReplaceQueue([]string{"A", "B"})
	assert.False(t, s.AdvanceFrom(entry))
	assert.Zero(t, s.Cursor())

	fresh, _ := s.Current()
	assert.Equal(t, "A", fresh.Source)
}

func TestAdvanceFromSurvivesReload(t *testing.T) {
	s := New(0.5)
	s.ReplaceQueue([]string{"A", "B"})

	entry, _ := s.Current()
	s.ReplaceQueue([]string{"X", "Y", "Z"})
	assert.True(t, s.AdvanceFrom(entry))
	assert.Equal(t, 1, s.Cursor())
}

func TestSetVolume(t *testing.T) {
	s := New(0.5)
	assert.Equal(t, 0.5, s.Volume())

	require.Error(t, s.SetVolume(1.5))
	assert.Equal(t, 0.5, s.Volume())

	require.NoError(t, s.SetVolume(0))
	assert.Equal(t, 0.0, s.Volume())
}

func TestSnapshot(t *testing.T) {
	s := New(0.3)
	s.SetChannelID("42")
	s.ReplaceQueue([]string{"A"})

	assert.Equal(t, Snapshot{ChannelID: "42", QueueLen: 1, Cursor: 0, Volume: 0.3}, s.Snapshot())
}
