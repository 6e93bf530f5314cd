package transfer

import (
	"container/list"
	"context"
	"sync"
)

// Semaphore is a FIFO-fair counting semaphore. Slots are granted strictly in
// the order tickets were reserved, so a task enqueued earlier always
// activates before one enqueued later.
type Semaphore struct {
	mu       sync.Mutex
	capacity int
	held     int
	waiters  *list.List // of *Ticket
}

// Ticket is a place in the semaphore's line. It is either waiting, granted
// or released; Release may be called any number of times but only the first
// call has an effect.
type Ticket struct {
	sem      *Semaphore
	ready    chan struct{}
	elem     *list.Element
	granted  bool
	released bool
}

// NewSemaphore returns a semaphore with n slots. n < 1 is treated as 1.
func NewSemaphore(n int) *Semaphore {
	if n < 1 {
		n = 1
	}
	return &Semaphore{capacity: n, waiters: list.New()}
}

// Reserve takes a place in line without blocking. The ticket's Ready channel
// is closed once a slot is granted.
func (s *Semaphore) Reserve() *Ticket {
	t := &Ticket{sem: s, ready: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held < s.capacity && s.waiters.Len() == 0 {
		s.held++
		t.granted = true
		close(t.ready)
		return t
	}
	t.elem = s.waiters.PushBack(t)
	return t
}

// Acquire reserves a ticket and waits for it to be granted or for ctx to end.
func (s *Semaphore) Acquire(ctx context.Context) (*Ticket, error) {
	t := s.Reserve()
	select {
	case <-t.Ready():
		return t, nil
	case <-ctx.Done():
		t.Release()
		return nil, ctx.Err()
	}
}

// Ready returns a channel that is closed when the ticket holds a slot.
func (t *Ticket) Ready() <-chan struct{} {
	return t.ready
}

// Granted reports whether the ticket currently holds a slot.
func (t *Ticket) Granted() bool {
	t.sem.mu.Lock()
	defer t.sem.mu.Unlock()
	return t.granted && !t.released
}

// Release gives the slot back, or leaves the line if the ticket is still
// waiting. The next waiter is promoted immediately.
func (t *Ticket) Release() {
	s := t.sem
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.released {
		return
	}
	t.released = true

	if !t.granted {
		if t.elem != nil {
			s.waiters.Remove(t.elem)
			t.elem = nil
		}
		return
	}

	s.held--
	s.grantLocked()
}

// SetCapacity changes the number of slots. Growing promotes waiters at once;
// shrinking takes effect as active holders release.
func (s *Semaphore) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = n
	s.grantLocked()
}

// Held returns the number of granted, unreleased tickets.
func (s *Semaphore) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held
}

// Waiting returns the number of tickets still in line.
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

// Capacity returns the number of slots.
func (s *Semaphore) Capacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

func (s *Semaphore) grantLocked() {
	for s.held < s.capacity && s.waiters.Len() > 0 {
		front := s.waiters.Front()
		s.waiters.Remove(front)
		next := front.Value.(*Ticket)
		next.elem = nil
		next.granted = true
		s.held++
		close(next.ready)
	}
}
