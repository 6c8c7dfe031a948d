package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/render"
)

const frameParam = "frame"

// fakeBackend records what it renders. With a gate set, Render blocks until
// the gate closes or Interrupt is called.
type fakeBackend struct {
	mu          sync.Mutex
	gate        chan struct{}
	interruptCh chan struct{}
	quality     render.Quality
	progress    float64
	failFrames  map[float64]bool

	rendered   []float64
	qualities  []int
	interrupts int
	last       float64

	started chan float64
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		failFrames: make(map[float64]bool),
		started:    make(chan float64, 1024),
	}
}

func frameOf(snap models.Snapshot) float64 {
	devices := snap.Devices()
	if len(devices) == 0 {
		return -1
	}
	return devices[0].Param(frameParam, -1)
}

func (b *fakeBackend) hold() {
	b.mu.Lock()
	b.gate = make(chan struct{})
	b.mu.Unlock()
}

func (b *fakeBackend) release() {
	b.mu.Lock()
	if b.gate != nil {
		close(b.gate)
		b.gate = nil
	}
	b.mu.Unlock()
}

func (b *fakeBackend) Render(ctx context.Context, snap models.Snapshot) error {
	frame := frameOf(snap)

	b.mu.Lock()
	gate := b.gate
	intr := make(chan struct{})
	b.interruptCh = intr
	q := b.quality
	fail := b.failFrames[frame]
	b.mu.Unlock()

	select {
	case b.started <- frame:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-intr:
			return render.ErrInterrupted
		}
	}
	if fail {
		return errors.New("backend exploded")
	}

	b.mu.Lock()
	b.rendered = append(b.rendered, frame)
	b.qualities = append(b.qualities, q.Samples)
	b.last = frame
	b.interruptCh = nil
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) Interrupt() {
	b.mu.Lock()
	b.interrupts++
	if b.interruptCh != nil {
		close(b.interruptCh)
		b.interruptCh = nil
	}
	b.mu.Unlock()
}

func (b *fakeBackend) SetQuality(q render.Quality) {
	b.mu.Lock()
	b.quality = q
	b.mu.Unlock()
}

func (b *fakeBackend) Progress() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.progress
}

// ResultBuffer returns a 1x1 frame whose red channel encodes the frame value
func (b *fakeBackend) ResultBuffer() ([]float32, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return []float32{float32(b.last), 0, 0, 1}, 1, 1
}

func (b *fakeBackend) Rendered() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float64, len(b.rendered))
	copy(out, b.rendered)
	return out
}

func (b *fakeBackend) Qualities() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.qualities))
	copy(out, b.qualities)
	return out
}

// waitStarted blocks until a render of frame begins
func (b *fakeBackend) waitStarted(frame float64, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case f := <-b.started:
			if f == frame {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

// fakeClock is a settable clock
type fakeClock struct {
	mu   sync.Mutex
	base time.Time
	now  time.Time
}

func newFakeClock() *fakeClock {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{base: base, now: base}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// At moves the clock to base + ms
func (c *fakeClock) At(ms int) {
	c.mu.Lock()
	c.now = c.base.Add(time.Duration(ms) * time.Millisecond)
	c.mu.Unlock()
}

// newRig returns a single-device rig
func newRig(id string) *models.DeviceSet {
	return models.NewDeviceSet(models.NewDevice(id))
}
