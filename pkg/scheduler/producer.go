package scheduler

import (
	"errors"
	"fmt"

	"github.com/psantana5/lumirender/pkg/models"
)

// Update is called by the control loop every tick. When isUpdateRequired
// accepts devices, the owned devices are copied into a job tagged for the
// current mode and queued. In Interactive and Recording the new job
// supersedes in-flight work, so interrupt is called first. clearChangeFlags
// runs only after a job was queued.
//
// Update is a no-op while Stopped. interrupt runs under the scheduler lock
// and must not call back into the scheduler. It reports whether a job was
// queued.
func (s *Scheduler) Update(devices []*models.Device, isUpdateRequired func([]*models.Device) bool, interrupt, clearChangeFlags func()) bool {
	s.mu.Lock()
	if s.mode == models.ModeStopped || s.closing {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	if !s.epochSet {
		s.epoch = now
		s.epochSet = true
	}
	t := now.Sub(s.epoch)
	gen := s.resetGen
	s.mu.Unlock()

	if isUpdateRequired != nil && !isUpdateRequired(devices) {
		return false
	}

	job := models.NewFrameJob(t, models.ModeInteractive, s.ownedDevices(devices))

	s.mu.Lock()
	if s.mode == models.ModeStopped || s.closing || gen != s.resetGen {
		s.mu.Unlock()
		job.Release()
		return false
	}
	job.Mode = s.mode.SubmissionTag()
	if s.mode.IsInteractiveLike() && interrupt != nil {
		interrupt()
	}
	s.pushLocked(job)
	s.mu.Unlock()

	if clearChangeFlags != nil {
		clearChangeFlags()
	}
	return true
}

// UpdateRig is Update wired to a live rig and this scheduler's backend
func (s *Scheduler) UpdateRig(rig *models.DeviceSet) bool {
	return s.Update(rig.Devices(), rig.IsUpdateRequired, s.backend.Interrupt, rig.ClearChangeFlags)
}

// Enqueue queues a prepared job. Untagged jobs get the tag Update would
// give them. Jobs holding devices outside the ownership set are rejected.
func (s *Scheduler) Enqueue(job *models.FrameJob) error {
	if job == nil {
		return errors.New("nil frame job")
	}
	if job.IsSentinel() {
		return ErrSentinelJob
	}
	if len(s.owned) > 0 {
		for _, id := range job.Snapshot.IDs() {
			if _, ok := s.owned[id]; !ok {
				return fmt.Errorf("%w: %s", ErrDeviceNotOwned, id)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if job.Mode == "" {
		job.Mode = s.mode.SubmissionTag()
	}
	s.pushLocked(job)
	return nil
}

// pushLocked appends and wakes the worker. Callers hold s.mu.
func (s *Scheduler) pushLocked(job *models.FrameJob) {
	s.queue.Push(job)
	s.metrics.JobEnqueued(job.Mode)
	s.metrics.QueueDepth(s.queue.Len())
	s.cond.Signal()
}

// ownedDevices filters devices to the ownership set
func (s *Scheduler) ownedDevices(devices []*models.Device) []*models.Device {
	if len(s.owned) == 0 {
		return devices
	}
	out := make([]*models.Device, 0, len(devices))
	for _, d := range devices {
		if d == nil {
			continue
		}
		if _, ok := s.owned[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}
