package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/render"
	"github.com/psantana5/lumirender/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
)

// run is the worker loop. It exits after taking the sentinel.
func (s *Scheduler) run(done chan struct{}) {
	defer close(done)

	for {
		job, gen := s.next()
		if job.IsSentinel() {
			return
		}

		s.process(job, gen)
		s.finishDrainIfComplete()
		job.Release()
	}
}

// next blocks until the current mode can select a job, then applies that
// mode's policy. Mode and queue are read under the same lock.
func (s *Scheduler) next() (*models.FrameJob, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for !s.queue.Selectable(s.mode) {
		s.cond.Wait()
	}

	var (
		job      *models.FrameJob
		released int
	)
	switch s.mode {
	case models.ModeRendering:
		job = s.queue.PopOldest()
	case models.ModeInteractive:
		job, released = s.queue.TakeNewest()
	case models.ModeRecording:
		job, released = s.queue.SelectRecording()
	}

	if job.IsSentinel() {
		s.metrics.JobsDiscarded(reasonShutdown, released)
		_ = s.setModeLocked(models.ModeStopped)
	} else {
		s.metrics.JobsDiscarded(reasonCoalesced, released)
	}
	s.metrics.QueueDepth(s.queue.Len())
	return job, s.storeGen
}

// qualityFor picks preview sampling for interactive and recording previews
// and full sampling for the drain
func (s *Scheduler) qualityFor(tag models.Mode) render.Quality {
	if tag == models.ModeRendering {
		return s.renderQuality
	}
	return s.previewQuality
}

// process renders one job and stores the result when it belongs to the drain
func (s *Scheduler) process(job *models.FrameJob, gen uint64) {
	s.backend.SetQuality(s.qualityFor(job.Mode))

	ctx, span := s.tracer.Start(context.Background(), "scheduler.render",
		trace.WithAttributes(tracing.JobAttributes(job)...))
	defer span.End()

	start := time.Now()
	err := s.backend.Render(ctx, job.Snapshot)
	elapsed := time.Since(start)

	if err != nil {
		tracing.SetError(ctx, err)
		fields := map[string]interface{}{
			"time_ms":     job.Millis(),
			"tag":         string(job.Mode),
			"duration_ms": elapsed.Milliseconds(),
			"error":       err.Error(),
		}
		if errors.Is(err, render.ErrInterrupted) {
			s.metrics.RenderFinished(job.Mode, resultInterrupted, elapsed)
			s.logger.Debug("Render interrupted", fields)
		} else {
			s.metrics.RenderFinished(job.Mode, resultFailed, elapsed)
			s.logger.Warn("Render failed", fields)
		}
		return
	}

	s.metrics.RenderFinished(job.Mode, resultOK, elapsed)
	s.logger.Debug("Render complete", map[string]interface{}{
		"time_ms":     job.Millis(),
		"tag":         string(job.Mode),
		"duration_ms": elapsed.Milliseconds(),
	})

	if job.Mode == models.ModeRendering {
		s.store(job, gen)
	}
}

// store writes the backend result into the memory store and the archive.
// Results of a render that started before the stores were invalidated are
// dropped.
func (s *Scheduler) store(job *models.FrameJob, gen uint64) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	stale := gen != s.storeGen
	s.mu.Unlock()
	if stale {
		s.metrics.JobsDiscarded(reasonStale, 1)
		s.logger.Debug("Dropping result rendered before reset", map[string]interface{}{"time_ms": job.Millis()})
		return
	}

	pixels, width, height := s.backend.ResultBuffer()
	if pixels == nil {
		s.logger.Error("Render succeeded without a result buffer", map[string]interface{}{"time_ms": job.Millis()})
		return
	}

	s.dump("memory", s.memory, job, pixels, width, height)
	if s.archive != nil {
		s.dump("archive", s.archive, job, pixels, width, height)
	}
}

func (s *Scheduler) dump(name string, fs framestore.FrameStore, job *models.FrameJob, pixels []float32, width, height int) {
	if err := fs.Dump(job.Time, pixels, width, height); err != nil {
		s.metrics.StoreError(name)
		s.logger.Error("Failed to store frame", map[string]interface{}{
			"store":   name,
			"time_ms": job.Millis(),
			"error":   err.Error(),
		})
		return
	}
	s.metrics.FrameStored(name)
}

// finishDrainIfComplete returns to Interactive once a drain has no
// Rendering-tagged work left and fires the completion callbacks on the
// worker goroutine
func (s *Scheduler) finishDrainIfComplete() {
	s.mu.Lock()
	if s.mode != models.ModeRendering || s.queue.Count(models.ModeRendering) > 0 {
		s.mu.Unlock()
		return
	}
	_ = s.setModeLocked(models.ModeInteractive)
	s.mu.Unlock()

	s.metrics.DrainCompleted()
	s.logger.Info("Drain complete", map[string]interface{}{"frames": s.memory.FrameCount()})
	s.fireCompletionCallbacks()
}
