package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrBufferSize is returned when a pixel buffer does not match its dimensions
var ErrBufferSize = errors.New("pixel buffer does not match width*height*4")

// FrameJob is one unit of scheduled work: a time, a mode tag and an owned
// device snapshot.
type FrameJob struct {
	Time     time.Duration `json:"time"` // Since the scheduler epoch
	Mode     Mode          `json:"mode"` // Tag; ModeStopped marks the sentinel
	Snapshot Snapshot      `json:"-"`    // Owned exclusively by this job
	released bool
}

// NewFrameJob creates a job owning a deep copy of devices
func NewFrameJob(t time.Duration, mode Mode, devices []*Device) *FrameJob {
	return &FrameJob{
		Time:     t,
		Mode:     mode,
		Snapshot: NewSnapshot(devices),
	}
}

// NewSentinel creates the job that tells the worker to exit
func NewSentinel(t time.Duration) *FrameJob {
	return &FrameJob{Time: t, Mode: ModeStopped}
}

// IsSentinel reports whether the job signals worker termination
func (j *FrameJob) IsSentinel() bool {
	return j.Mode == ModeStopped
}

// Millis returns the job time in milliseconds
func (j *FrameJob) Millis() int64 {
	return j.Time.Milliseconds()
}

// Clone returns an independent deep copy
func (j *FrameJob) Clone() *FrameJob {
	return &FrameJob{
		Time:     j.Time,
		Mode:     j.Mode,
		Snapshot: j.Snapshot.Clone(),
	}
}

// Release drops the snapshot. A released job must not be rendered.
func (j *FrameJob) Release() {
	j.Snapshot = Snapshot{}
	j.released = true
}

// Released reports whether Release has been called
func (j *FrameJob) Released() bool {
	return j.released
}

func (j *FrameJob) String() string {
	return fmt.Sprintf("%dms(%s)", j.Millis(), j.Mode)
}

// FrameRecord is one completed render held by a frame store
type FrameRecord struct {
	Time   time.Duration `json:"time"`
	Pixels []float32     `json:"-"` // RGBA, row-major
	Width  int           `json:"width"`
	Height int           `json:"height"`
}

// Validate checks that the buffer length matches the dimensions
func (r FrameRecord) Validate() error {
	return ValidateBuffer(r.Pixels, r.Width, r.Height)
}

// ValidateBuffer checks an RGBA buffer against its dimensions
func ValidateBuffer(pixels []float32, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrBufferSize, width, height)
	}
	if len(pixels) != width*height*4 {
		return fmt.Errorf("%w: got %d values for %dx%d", ErrBufferSize, len(pixels), width, height)
	}
	return nil
}
