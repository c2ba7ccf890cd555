// Package mailbox provides a fixed-capacity FIFO that evicts its oldest entry
// on overflow.
//
// A Mailbox holds the messages one connection owes another. Producers never
// block: once the mailbox is full, each new entry silently replaces the
// oldest pending one, so a recipient only ever sees the most recent
// Cap() messages from a sender that outpaces the tick rate.
package mailbox

import (
	"errors"
	"sync"
)

// DefaultCapacity is the per-recipient bound used by the server.
const DefaultCapacity = 10

// ErrEmpty is returned when reading from a mailbox with no pending entries.
var ErrEmpty = errors.New("mailbox is empty")

// Mailbox is a bounded ring buffer safe for concurrent use.
type Mailbox[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int
	count int
}

// New creates a mailbox that holds at most capacity entries.
// It panics if capacity is not positive.
func New[T any](capacity int) *Mailbox[T] {
	if capacity <= 0 {
		panic("mailbox: capacity must be positive")
	}
	return &Mailbox[T]{
		buf: make([]T, capacity),
	}
}

// Cap returns the fixed capacity of the mailbox.
func (m *Mailbox[T]) Cap() int {
	return len(m.buf)
}

// Len returns the number of pending entries.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Enqueue appends val. If the mailbox is full the oldest entry is discarded
// and reported as evicted.
func (m *Mailbox[T]) Enqueue(val T) (evicted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size := len(m.buf)
	rear := (m.head + m.count) % size
	m.buf[rear] = val

	if m.count == size {
		m.head = (m.head + 1) % size
		return true
	}
	m.count++
	return false
}

// Dequeue removes and returns the oldest entry.
func (m *Mailbox[T]) Dequeue() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.count == 0 {
		return zero, ErrEmpty
	}

	val := m.buf[m.head]
	m.buf[m.head] = zero
	m.head = (m.head + 1) % len(m.buf)
	m.count--

	return val, nil
}

// Peek returns the oldest entry without removing it.
func (m *Mailbox[T]) Peek() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return m.buf[m.head], nil
}

// Items returns a snapshot of the pending entries, oldest first.
func (m *Mailbox[T]) Items() []T {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]T, 0, m.count)
	for i := 0; i < m.count; i++ {
		items = append(items, m.buf[(m.head+i)%len(m.buf)])
	}
	return items
}
