package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func TestAdmitWithinWindowRejects(t *testing.T) {
	l := New(10 * time.Second)

	assert.True(t, l.AdmitAt(1, t0), "first request is admitted")
	assert.False(t, l.AdmitAt(1, t0.Add(5*time.Second)))
}

func TestAdmitAfterWindowAdmits(t *testing.T) {
	l := New(10 * time.Second)

	assert.True(t, l.AdmitAt(1, t0))
	assert.True(t, l.AdmitAt(1, t0.Add(11*time.Second)))
}

func TestRejectDoesNotMoveWindow(t *testing.T) {
	l := New(10 * time.Second)

	assert.True(t, l.AdmitAt(1, t0))
	assert.False(t, l.AdmitAt(1, t0.Add(9*time.Second)))
	// Measured from the admitted request, not from the rejected one.
	assert.True(t, l.AdmitAt(1, t0.Add(10500*time.Millisecond)))
}

func TestUsersAreIndependent(t *testing.T) {
	l := New(10 * time.Second)

	assert.True(t, l.AdmitAt(1, t0))
	assert.True(t, l.AdmitAt(2, t0.Add(time.Second)))
	assert.False(t, l.AdmitAt(1, t0.Add(2*time.Second)))
}

func TestZeroWindowDisablesLimiting(t *testing.T) {
	l := New(0)
	for i := 0; i < 3; i++ {
		assert.True(t, l.AdmitAt(1, t0))
	}
	assert.Zero(t, l.Len())
}

func TestConcurrentSameUserAdmitsOnce(t *testing.T) {
	l := New(time.Minute)
	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.AdmitAt(7, t0) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestPruneKeepsRecentUsers(t *testing.T) {
	l := New(10 * time.Second)
	l.AdmitAt(1, t0)
	l.AdmitAt(2, t0.Add(8*time.Second))

	removed := l.Prune(t0.Add(12 * time.Second))

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.AdmitAt(2, t0.Add(12*time.Second)), "user 2 is still inside its window")
	assert.True(t, l.AdmitAt(1, t0.Add(12*time.Second)))
}
