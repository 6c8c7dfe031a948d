package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/psantana5/lumirender/pkg/logging"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/render"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options configures a Scheduler. Zero values are usable.
type Options struct {
	ID             string                // Defaults to a random UUID
	OwnedDevices   []string              // Empty means every device
	Memory         framestore.FrameStore // nil creates a MemoryFrameStore
	Archive        framestore.FrameStore // Optional durable copy of rendered frames
	PreviewQuality render.Quality
	RenderQuality  render.Quality
	Logger         *logging.Logger
	Metrics        Recorder
	Tracer         trace.Tracer
	Clock          func() time.Time
}

// Scheduler runs one render worker over a job queue whose dequeue policy
// depends on the current mode. Mode and queue share one mutex.
type Scheduler struct {
	id             string
	backend        render.Backend
	memory         framestore.FrameStore
	archive        framestore.FrameStore
	owned          map[string]struct{}
	previewQuality render.Quality
	renderQuality  render.Quality
	logger         *logging.Logger
	metrics        Recorder
	tracer         trace.Tracer
	now            func() time.Time

	// lifecycle serializes Start, Stop and Reset so a join never races a respawn
	lifecycle sync.Mutex

	// storeMu orders frame writes against store clears
	storeMu sync.Mutex

	mu         sync.Mutex
	cond       *sync.Cond
	mode       models.Mode
	queue      JobQueue
	epoch      time.Time
	epochSet   bool
	resetGen   uint64 // Bumped by Reset; producers drop jobs timed against an old epoch
	storeGen   uint64 // Bumped whenever stored frames are invalidated
	closing    bool
	closed     bool
	workerDone chan struct{} // nil when no worker is alive

	cbMu      sync.Mutex
	callbacks map[int]func()
	nextCbID  int
}

// New creates a stopped scheduler around backend. Call Start to spawn the
// worker.
func New(backend render.Backend, opts Options) *Scheduler {
	s := &Scheduler{
		id:             opts.ID,
		backend:        backend,
		memory:         opts.Memory,
		archive:        opts.Archive,
		owned:          make(map[string]struct{}, len(opts.OwnedDevices)),
		previewQuality: opts.PreviewQuality,
		renderQuality:  opts.RenderQuality,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		tracer:         opts.Tracer,
		now:            opts.Clock,
		mode:           models.ModeStopped,
		callbacks:      make(map[int]func()),
	}

	if s.id == "" {
		s.id = uuid.New().String()
	}
	for _, id := range opts.OwnedDevices {
		s.owned[id] = struct{}{}
	}
	if s.memory == nil {
		s.memory = framestore.NewMemoryFrameStore()
	}
	if s.previewQuality.Samples <= 0 {
		s.previewQuality.Samples = 1
	}
	if s.renderQuality.Samples <= 0 {
		s.renderQuality.Samples = s.previewQuality.Samples
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.WithComponent("scheduler").WithField("scheduler_id", s.id)
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("scheduler")
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.cond = sync.NewCond(&s.mu)
	s.metrics.ModeChanged(s.mode)
	return s
}

// ID returns the scheduler instance ID
func (s *Scheduler) ID() string {
	return s.id
}

// Mode returns the current mode
func (s *Scheduler) Mode() models.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// QueueLen returns the number of queued jobs
func (s *Scheduler) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Closed reports whether the worker has been joined and not reset
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FrameStore returns the in-memory store of rendered frames for playback
func (s *Scheduler) FrameStore() framestore.FrameStore {
	return s.memory
}

// ArchiveStore returns the durable store, or nil when none is configured
func (s *Scheduler) ArchiveStore() framestore.FrameStore {
	return s.archive
}

// Backend returns the render backend
func (s *Scheduler) Backend() render.Backend {
	return s.backend
}

// setModeLocked validates and applies a mode change. Callers hold s.mu.
func (s *Scheduler) setModeLocked(to models.Mode) error {
	from := s.mode
	if err := models.ValidateModeTransition(from, to); err != nil {
		return err
	}
	s.mode = to
	s.cond.Broadcast()
	if from != to {
		s.metrics.ModeChanged(to)
		s.logger.Info("Mode changed", map[string]interface{}{
			"from": string(from),
			"to":   string(to),
		})
	}
	return nil
}

// usableLocked returns ErrClosed once shutdown has begun
func (s *Scheduler) usableLocked() error {
	if s.closed || s.closing {
		return ErrClosed
	}
	return nil
}

// spawnLocked starts the worker goroutine. Callers hold s.mu.
func (s *Scheduler) spawnLocked() {
	done := make(chan struct{})
	s.workerDone = done
	go s.run(done)
	s.logger.Debug("Worker started")
}

// Start moves a fresh scheduler from Stopped to Interactive and spawns the
// worker
func (s *Scheduler) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.workerDone != nil {
		return ErrAlreadyStarted
	}
	if err := s.setModeLocked(models.ModeInteractive); err != nil {
		return err
	}
	s.spawnLocked()
	return nil
}

// StartRecording switches Interactive to Recording. Stored frames are
// dropped from the memory store and the archive; pending interactive jobs
// are discarded.
func (s *Scheduler) StartRecording() error {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.setModeLocked(models.ModeRecording); err != nil {
		s.mu.Unlock()
		return err
	}
	s.storeGen++
	n := s.queue.Discard(models.ModeInteractive)
	s.metrics.JobsDiscarded(reasonRecording, n)
	s.metrics.QueueDepth(s.queue.Len())
	s.mu.Unlock()

	s.resetStoresLocked()
	return nil
}

// EndRecording retags the remaining recorded jobs for the drain and enters
// Rendering, or returns to Interactive when nothing was recorded
func (s *Scheduler) EndRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.mode != models.ModeRecording {
		return fmt.Errorf("%w: end recording in %s mode", models.ErrInvalidModeTransition, s.mode)
	}

	s.queue.Retag(models.ModeRecording, models.ModeRendering)
	pending := s.queue.Count(models.ModeRendering)
	if pending == 0 {
		return s.setModeLocked(models.ModeInteractive)
	}

	s.logger.Info("Recording ended, draining", map[string]interface{}{"pending": pending})
	return s.setModeLocked(models.ModeRendering)
}

// StartInteractive returns to Interactive from any running mode. A recording
// or drain in progress is abandoned and its pending jobs discarded. A fresh
// scheduler is started.
func (s *Scheduler) StartInteractive() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.workerDone == nil {
		if err := s.setModeLocked(models.ModeInteractive); err != nil {
			return err
		}
		s.spawnLocked()
		return nil
	}

	if s.mode == models.ModeRecording || s.mode == models.ModeRendering {
		n := s.queue.Discard(models.ModeRecording) + s.queue.Discard(models.ModeRendering)
		s.storeGen++
		s.metrics.JobsDiscarded(reasonAbandoned, n)
		s.metrics.QueueDepth(s.queue.Len())
	}
	return s.setModeLocked(models.ModeInteractive)
}

// Stop enqueues the sentinel, forces Interactive so the worker takes it
// promptly, interrupts the in-flight render and waits for the worker to
// exit. Producers become no-ops and
// the scheduler stays Stopped until Reset. Stop must not be called from a
// completion callback.
func (s *Scheduler) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.workerDone == nil {
		if s.mode != models.ModeStopped {
			_ = s.setModeLocked(models.ModeStopped)
		}
		s.closed = true
		s.mu.Unlock()
		return nil
	}

	s.closing = true
	var t time.Duration
	if s.epochSet {
		t = s.now().Sub(s.epoch)
	}
	s.queue.Push(models.NewSentinel(t))
	if s.mode != models.ModeInteractive {
		_ = s.setModeLocked(models.ModeInteractive)
	}
	s.cond.Broadcast()
	done := s.workerDone
	s.mu.Unlock()

	s.backend.Interrupt()
	<-done

	s.mu.Lock()
	s.workerDone = nil
	s.closing = false
	s.closed = true
	if n := s.queue.Clear(); n > 0 {
		s.metrics.JobsDiscarded(reasonShutdown, n)
	}
	s.metrics.QueueDepth(0)
	s.mu.Unlock()

	s.logger.Info("Worker stopped")
	return nil
}

// Close stops the scheduler; see Stop
func (s *Scheduler) Close() error {
	return s.Stop()
}

// Reset returns to Interactive with an empty queue, empty stores and a new
// epoch. A live worker has its in-flight render interrupted and the result
// dropped; a joined worker is respawned.
func (s *Scheduler) Reset(interrupt func()) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.storeMu.Lock()
	s.mu.Lock()
	if err := s.setModeLocked(models.ModeInteractive); err != nil {
		s.mu.Unlock()
		s.storeMu.Unlock()
		return err
	}
	n := s.queue.Clear()
	s.metrics.JobsDiscarded(reasonReset, n)
	s.metrics.QueueDepth(0)
	s.epochSet = false
	s.resetGen++
	s.storeGen++
	s.closed = false

	alive := s.workerDone != nil
	if !alive {
		s.spawnLocked()
	}
	s.mu.Unlock()

	s.resetStoresLocked()
	s.storeMu.Unlock()

	if alive && interrupt != nil {
		interrupt()
	}
	s.logger.Info("Scheduler reset", map[string]interface{}{"respawned": !alive})
	return nil
}

// resetStoresLocked clears the memory store and the archive so a new
// recording never shares a store with an older one. Callers hold s.storeMu.
func (s *Scheduler) resetStoresLocked() {
	if err := s.memory.Clear(); err != nil {
		s.logger.Error("Failed to clear frame store", map[string]interface{}{"error": err.Error()})
	}
	if s.archive != nil {
		if err := s.archive.Clear(); err != nil {
			s.logger.Error("Failed to clear archive", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Status is a point-in-time view of the scheduler
type Status struct {
	ID       string      `json:"id"`
	Mode     models.Mode `json:"mode"`
	Queued   int         `json:"queued"`
	Pending  int         `json:"pending_renders"`
	Frames   int         `json:"frames"`
	Progress float64     `json:"progress"`
	Closed   bool        `json:"closed"`
}

// Status returns the current mode, queue and progress
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:      s.id,
		Mode:    s.mode,
		Queued:  s.queue.Len(),
		Pending: s.queue.Count(models.ModeRendering) + s.queue.Count(models.ModeRecording),
		Closed:  s.closed,
	}
	s.mu.Unlock()

	st.Frames = s.memory.FrameCount()
	st.Progress = s.Progress()
	return st
}
