package state

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	askA State = "ask_a"
	askB State = "ask_b"
)

func TestOpenOverwritesPreviousSlot(t *testing.T) {
	m := NewMemoryManager()
	m.Open(1, askA)
	m.Open(1, askB)

	assert.Equal(t, askB, m.Peek(1))
	assert.Equal(t, 1, m.Len())
}

func TestTakeClosesSlot(t *testing.T) {
	m := NewMemoryManager()
	m.Open(1, askA)

	assert.Equal(t, askA, m.Take(1))
	assert.Equal(t, StateIdle, m.Take(1))
	assert.False(t, m.InProgress(1))
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewMemoryManager()
	m.Close(1)
	m.Open(1, askA)
	m.Close(1)
	m.Close(1)

	assert.Equal(t, StateIdle, m.Peek(1))
	assert.Zero(t, m.Len())
}

func TestOpenIdleCloses(t *testing.T) {
	m := NewMemoryManager()
	m.Open(1, askA)
	m.Open(1, StateIdle)

	assert.False(t, m.InProgress(1))
}

func TestSlotsArePerUser(t *testing.T) {
	m := NewMemoryManager()
	m.Open(1, askA)
	m.Open(2, askB)
	m.Take(1)

	assert.Equal(t, askB, m.Peek(2))
}

func TestConcurrentTakeResolvesOnce(t *testing.T) {
	m := NewMemoryManager()
	m.Open(9, askA)

	var got atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Take(9) == askA {
				got.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), got.Load())
}
