package updatemanager

import (
	"sync"

	"github.com/google/uuid"
)

type queued struct {
	snapshot Snapshot
	progress bool
}

// Subscription delivers snapshots in transition order. C is closed after Unsubscribe or Stop.
type Subscription struct {
	ID string
	C  <-chan Snapshot

	mu     sync.Mutex
	queue  []queued
	notify chan struct{}
	out    chan Snapshot
	done   chan struct{}
	once   sync.Once
}

func newSubscription() *Subscription {
	out := make(chan Snapshot)
	s := &Subscription{
		ID:     uuid.NewString(),
		C:      out,
		notify: make(chan struct{}, 1),
		out:    out,
		done:   make(chan struct{}),
	}
	go s.drain()
	return s
}

// push queues a snapshot. A progress update replaces a queued progress update of the same phase,
// phase transitions are always kept.
func (s *Subscription) push(snapshot Snapshot, progress bool) {
	s.mu.Lock()
	if n := len(s.queue); n > 0 && progress {
		last := s.queue[n-1]
		if last.progress && last.snapshot.Phase == snapshot.Phase {
			s.queue[n-1].snapshot = snapshot
			s.mu.Unlock()
			return
		}
	}
	s.queue = append(s.queue, queued{snapshot: snapshot, progress: progress})
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pop() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Snapshot{}, false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.snapshot, true
}

func (s *Subscription) drain() {
	defer close(s.out)

	for {
		select {
		case <-s.done:
			return
		case <-s.notify:
		}

		for {
			snapshot, ok := s.pop()
			if !ok {
				break
			}
			select {
			case s.out <- snapshot:
			case <-s.done:
				return
			}
		}
	}
}

func (s *Subscription) close() {
	s.once.Do(func() {
		close(s.done)
	})
}
