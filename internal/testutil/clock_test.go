package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/scenesync/internal/element"
)

func TestFakeClock_StartsAtEpoch(t *testing.T) {
	clock := NewFakeClock()
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock()

	clock.Advance(30 * time.Second)
	assert.Equal(t, Epoch.Add(30*time.Second), clock.Now())

	clock.Advance(time.Minute)
	assert.Equal(t, Epoch.Add(90*time.Second), clock.Now())
}

func TestSequenceNonce_NextIncrementsMonotonically(t *testing.T) {
	n := NewSequenceNonce()

	assert.Equal(t, int64(0), n.Current())
	assert.Equal(t, int64(1), n.Next())
	assert.Equal(t, int64(2), n.Next())
	assert.Equal(t, int64(2), n.Current())
}

func TestSequenceNonce_Reset(t *testing.T) {
	n := NewSequenceNonce()
	n.Next()
	n.Next()

	n.Reset()
	assert.Equal(t, int64(0), n.Current())
	assert.Equal(t, int64(1), n.Next())
}

func TestSequenceNonce_ConcurrentAccess(t *testing.T) {
	n := NewSequenceNonce()

	const goroutines = 10
	const calls = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				n.Next()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*calls), n.Current())
}

func TestElementBuilders(t *testing.T) {
	e := Element("a", 2, 7, "a0")
	assert.Equal(t, "a", e.ID)
	assert.Equal(t, int64(2), e.Version)
	assert.False(t, e.IsDeleted)
	assert.True(t, Deleted(e).IsDeleted)
	assert.False(t, e.IsDeleted)

	elements := []element.Element{e, Element("b", 1, 1, "a1")}
	assert.Equal(t, []string{"a", "b"}, IDs(elements))
	assert.Equal(t, map[string]int64{"a": 2, "b": 1}, Versions(elements))
}
