package mailbox

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailboxIsEmpty(t *testing.T) {
	m := New[int](10)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 10, m.Cap())
	assert.Empty(t, m.Items())
}

func TestNewPanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](-1) })
}

func TestEnqueueIncreasesLen(t *testing.T) {
	m := New[int](10)
	m.Enqueue(1)
	assert.Equal(t, 1, m.Len())
	m.Enqueue(2)
	assert.Equal(t, 2, m.Len())
}

func TestLenDoesNotExceedCapacity(t *testing.T) {
	m := New[int](2)
	assert.False(t, m.Enqueue(1))
	assert.False(t, m.Enqueue(2))
	assert.True(t, m.Enqueue(3), "third enqueue should evict")
	assert.Equal(t, 2, m.Len())
}

func TestOverflowKeepsLastN(t *testing.T) {
	for _, k := range []int{1, 2, 5, 10, 23} {
		m := New[int](10)
		total := 10 + k
		for i := 0; i < total; i++ {
			m.Enqueue(i)
		}

		require.Equal(t, 10, m.Len())
		for want := total - 10; want < total; want++ {
			got, err := m.Dequeue()
			require.NoError(t, err)
			assert.Equal(t, want, got, "k=%d", k)
		}
		_, err := m.Dequeue()
		assert.ErrorIs(t, err, ErrEmpty)
	}
}

func TestDequeueEmpty(t *testing.T) {
	m := New[string](2)
	_, err := m.Dequeue()
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = m.Peek()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPeekDoesNotRemove(t *testing.T) {
	m := New[int](2)
	m.Enqueue(1)
	m.Enqueue(2)

	v, err := m.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = m.Peek()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, m.Len())
}

func TestEnqueueDequeueInterleavedWhenFull(t *testing.T) {
	m := New[int](3)
	m.Enqueue(1)
	m.Enqueue(2)
	m.Enqueue(3)

	v, _ := m.Dequeue()
	assert.Equal(t, 1, v)
	m.Enqueue(4)
	v, _ = m.Dequeue()
	assert.Equal(t, 2, v)
	m.Enqueue(5)

	v, _ = m.Peek()
	assert.Equal(t, 3, v)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []int{3, 4, 5}, m.Items())
}

func TestCapacityOne(t *testing.T) {
	m := New[int](1)
	m.Enqueue(1)
	v, err := m.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	m.Enqueue(2)
	m.Enqueue(3)
	v, err = m.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestItemsAfterWraparound(t *testing.T) {
	m := New[int](3)
	for i := 1; i <= 7; i++ {
		m.Enqueue(i)
	}
	assert.Equal(t, []int{5, 6, 7}, m.Items())
}

func TestConcurrentEnqueueDequeue(t *testing.T) {
	m := New[int](DefaultCapacity)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				m.Enqueue(base + i)
			}
		}(p * 1000)
	}

	var dequeued int
	var mu sync.Mutex
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if _, err := m.Dequeue(); err == nil {
					mu.Lock()
					dequeued++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), DefaultCapacity)
	assert.GreaterOrEqual(t, m.Len(), 0)
	assert.LessOrEqual(t, dequeued, 8000)
}
