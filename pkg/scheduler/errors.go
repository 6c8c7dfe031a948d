package scheduler

import "errors"

var (
	// ErrClosed is returned by control calls after Stop or Close until Reset
	ErrClosed = errors.New("scheduler is closed")

	// ErrDeviceNotOwned is returned when a job carries a device this
	// scheduler does not own
	ErrDeviceNotOwned = errors.New("device not owned by scheduler")

	// ErrSentinelJob is returned when a caller tries to enqueue a Stopped-tagged job
	ErrSentinelJob = errors.New("sentinel jobs are reserved for shutdown")

	// ErrAlreadyStarted is returned by Start when the worker is already running
	ErrAlreadyStarted = errors.New("scheduler already started")
)
