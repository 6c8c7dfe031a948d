package scheduler

import (
	"time"

	"github.com/psantana5/lumirender/pkg/models"
)

// Recorder receives scheduler activity. metrics.SchedulerMetrics implements
// it; a nil Recorder in Options disables recording.
type Recorder interface {
	JobEnqueued(tag models.Mode)
	JobsDiscarded(reason string, n int)
	RenderFinished(tag models.Mode, result string, d time.Duration)
	FrameStored(store string)
	StoreError(store string)
	QueueDepth(n int)
	ModeChanged(mode models.Mode)
	DrainCompleted()
}

// Discard reasons
const (
	reasonCoalesced = "coalesced"
	reasonRecording = "recording_start"
	reasonAbandoned = "abandoned"
	reasonReset     = "reset"
	reasonShutdown  = "shutdown"
	reasonStale     = "stale_generation"
)

// Render results
const (
	resultOK          = "ok"
	resultInterrupted = "interrupted"
	resultFailed      = "failed"
)

type nopRecorder struct{}

func (nopRecorder) JobEnqueued(models.Mode) {}
func (nopRecorder) JobsDiscarded(string, int) {}
func (nopRecorder) RenderFinished(models.Mode, string, time.Duration) {}
func (nopRecorder) FrameStored(string) {}
func (nopRecorder) StoreError(string) {}
func (nopRecorder) QueueDepth(int) {}
func (nopRecorder) ModeChanged(models.Mode) {}
func (nopRecorder) DrainCompleted() {}
