package scheduler

import "sort"

// AddCompletionCallback registers fn to run once per finished drain, on the
// worker goroutine. IDs are sequential. fn must not call Stop, Close or
// Reset.
func (s *Scheduler) AddCompletionCallback(fn func()) int {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	id := s.nextCbID
	s.nextCbID++
	s.callbacks[id] = fn
	return id
}

// RemoveCompletionCallback unregisters a callback; unknown IDs are ignored
func (s *Scheduler) RemoveCompletionCallback(id int) {
	s.cbMu.Lock()
	delete(s.callbacks, id)
	s.cbMu.Unlock()
}

// ClearCompletionCallbacks unregisters every callback
func (s *Scheduler) ClearCompletionCallbacks() {
	s.cbMu.Lock()
	s.callbacks = make(map[int]func())
	s.cbMu.Unlock()
}

// fireCompletionCallbacks runs callbacks in registration order without
// holding any lock, so a callback may register or remove callbacks
func (s *Scheduler) fireCompletionCallbacks() {
	s.cbMu.Lock()
	ids := make([]int, 0, len(s.callbacks))
	for id := range s.callbacks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.callbacks[id])
	}
	s.cbMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
