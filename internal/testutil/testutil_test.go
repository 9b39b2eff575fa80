package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StartsAtEpoch(t *testing.T) {
	c := NewClock()
	assert.Equal(t, Epoch, c.Now())
}

func TestClock_AdvanceAndSet(t *testing.T) {
	c := NewClock()

	c.Advance(90 * time.Second)
	assert.Equal(t, Epoch.Add(90*time.Second), c.Now())

	later := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	c := NewClock()
	const numGoroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*time.Second), c.Now())
}

func TestSequentialIDs(t *testing.T) {
	var ids SequentialIDs

	first, err := ids.NewID()
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-7000-8000-000000000001", first.String())
	assert.Equal(t, uuid.Version(7), first.Version())
	assert.Equal(t, uuid.RFC4122, first.Variant())

	second, err := ids.NewID()
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-7000-8000-000000000002", second.String())
}
