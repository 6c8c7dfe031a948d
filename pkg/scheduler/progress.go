package scheduler

import "github.com/psantana5/lumirender/pkg/models"

// Progress returns a percentage. While draining it covers the whole drain:
// every stored frame counts as 100 and the in-flight render adds its own
// share, over stored + queued drain jobs + the one in flight. Interactive
// jobs queued during the drain are not part of it.
func (s *Scheduler) Progress() float64 {
	s.mu.Lock()
	mode := s.mode
	queued := s.queue.Count(models.ModeRendering)
	s.mu.Unlock()

	current := s.backend.Progress()
	switch mode {
	case models.ModeRendering:
		finished := float64(s.memory.FrameCount())
		return (finished*100 + current) / (finished + float64(queued) + 1)
	case models.ModeStopped:
		return 0
	default:
		return current
	}
}
