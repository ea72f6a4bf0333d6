package edgeshard

import "sync"

// stateSubscriber is one Subscribe channel.
type stateSubscriber struct {
	ch     chan State
	mu     sync.Mutex
	closed bool
}

// trySend delivers state without blocking. A full channel drops the update.
func (s *stateSubscriber) trySend(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- state:
	default:
	}
}

// close closes the channel once.
func (s *stateSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
