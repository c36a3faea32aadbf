package transcript

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsOrderedIDs(t *testing.T) {
	l := New()

	a := l.Append(RoleUser, "reduce onboarding time", nil)
	b := l.Append(RoleAI, "tell me more", map[string]any{"message": "tell me more"})

	assert.Equal(t, uint64(1), a.Seq)
	assert.Equal(t, uint64(2), b.Seq)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, l.Len())

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, RoleAI, last.Role)
	assert.Equal(t, "tell me more", last.Payload["message"])
}

func TestSnapshotIsACopy(t *testing.T) {
	l := New()
	l.Append(RoleUser, "one", nil)

	snap := l.Snapshot()
	snap[0].Content = "mutated"
	l.Append(RoleUser, "two", nil)

	got := l.Snapshot()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Content)
	assert.Len(t, snap, 1)
}

func TestLastOnEmpty(t *testing.T) {
	_, ok := New().Last()
	assert.False(t, ok)
}

func TestConcurrentAppendsKeepSequence(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(RoleAI, "x", nil)
		}()
	}
	wg.Wait()

	msgs := l.Snapshot()
	require.Len(t, msgs, 50)
	for i, m := range msgs {
		assert.Equal(t, uint64(i+1), m.Seq)
	}
}
