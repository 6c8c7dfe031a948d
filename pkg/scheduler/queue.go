package scheduler

import (
	"github.com/psantana5/lumirender/pkg/models"
)

// JobQueue is the insertion-ordered buffer between the producer and the
// worker. It is not synchronized: the Scheduler guards it with the same
// mutex as the mode, so a policy decision always sees a consistent pair.
type JobQueue struct {
	jobs []*models.FrameJob
}

// Len returns the number of queued jobs
func (q *JobQueue) Len() int {
	return len(q.jobs)
}

// Push appends a job
func (q *JobQueue) Push(job *models.FrameJob) {
	q.jobs = append(q.jobs, job)
}

// Count returns the number of jobs carrying tag
func (q *JobQueue) Count(tag models.Mode) int {
	n := 0
	for _, j := range q.jobs {
		if j.Mode == tag {
			n++
		}
	}
	return n
}

// Times returns the queued job times in order, for status reporting
func (q *JobQueue) Times() []int64 {
	out := make([]int64, len(q.jobs))
	for i, j := range q.jobs {
		out[i] = j.Millis()
	}
	return out
}

// Selectable reports whether the worker has something to take in mode
func (q *JobQueue) Selectable(mode models.Mode) bool {
	switch mode {
	case models.ModeInteractive, models.ModeRendering:
		return len(q.jobs) > 0
	case models.ModeRecording:
		return q.newest(models.ModeRecording) >= 0
	default:
		return false
	}
}

// newest returns the index of the newest job with tag, or -1
func (q *JobQueue) newest(tag models.Mode) int {
	for i := len(q.jobs) - 1; i >= 0; i-- {
		if q.jobs[i].Mode == tag {
			return i
		}
	}
	return -1
}

// PopOldest removes and returns the oldest job (Rendering policy)
func (q *JobQueue) PopOldest() *models.FrameJob {
	if len(q.jobs) == 0 {
		return nil
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	return job
}

// TakeNewest removes the newest job, releases every other one and empties
// the queue (Interactive policy). It returns the job and how many were
// released.
func (q *JobQueue) TakeNewest() (*models.FrameJob, int) {
	if len(q.jobs) == 0 {
		return nil, 0
	}
	last := len(q.jobs) - 1
	job := q.jobs[last]
	for _, j := range q.jobs[:last] {
		j.Release()
	}
	q.jobs = nil
	return job, last
}

// SelectRecording applies the Recording policy. Interactive-tagged jobs
// ahead of the newest Recording-tagged job are released; every pending
// Recording-tagged job is retagged Rendering and stays queued for the drain.
// The returned preview is an independent copy of the newest recorded job,
// still tagged Recording.
func (q *JobQueue) SelectRecording() (*models.FrameJob, int) {
	idx := q.newest(models.ModeRecording)
	if idx < 0 {
		return nil, 0
	}

	preview := q.jobs[idx].Clone()

	kept := q.jobs[:0]
	released := 0
	for i, j := range q.jobs {
		switch {
		case i < idx && j.Mode == models.ModeInteractive:
			j.Release()
			released++
			continue
		case j.Mode == models.ModeRecording:
			j.Mode = models.ModeRendering
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	return preview, released
}

// Retag changes every job tagged from to to and returns how many changed
func (q *JobQueue) Retag(from, to models.Mode) int {
	n := 0
	for _, j := range q.jobs {
		if j.Mode == from {
			j.Mode = to
			n++
		}
	}
	return n
}

// Discard releases and removes every job tagged tag
func (q *JobQueue) Discard(tag models.Mode) int {
	kept := q.jobs[:0]
	released := 0
	for _, j := range q.jobs {
		if j.Mode == tag {
			j.Release()
			released++
			continue
		}
		kept = append(kept, j)
	}
	for i := len(kept); i < len(q.jobs); i++ {
		q.jobs[i] = nil
	}
	q.jobs = kept
	return released
}

// Clear releases every job and empties the queue
func (q *JobQueue) Clear() int {
	n := len(q.jobs)
	for _, j := range q.jobs {
		j.Release()
	}
	q.jobs = nil
	return n
}
