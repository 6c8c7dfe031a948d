package render

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
)

// Defaults used when a dimension or radius is not configured
const (
	DefaultWidth  = 64
	DefaultHeight = 36
	defaultRadius = 0.25
)

// SoftwareBackend is a CPU renderer that draws every device as a soft
// colored spot. Samples are jittered supersampling passes.
type SoftwareBackend struct {
	width    int
	height   int
	rowDelay time.Duration

	quality     atomic.Int64
	interrupted atomic.Bool
	progress    atomic.Uint64 // math.Float64bits

	mu     sync.Mutex
	result []float32
	frames int64
}

// NewSoftwareBackend creates a renderer from configuration
func NewSoftwareBackend(cfg Config) *SoftwareBackend {
	b := &SoftwareBackend{
		width:    cfg.Width,
		height:   cfg.Height,
		rowDelay: time.Duration(cfg.RowDelayMicros) * time.Microsecond,
	}
	if b.width <= 0 {
		b.width = DefaultWidth
	}
	if b.height <= 0 {
		b.height = DefaultHeight
	}
	b.quality.Store(int64(cfg.PreviewQuality().Samples))
	return b
}

// Size returns the frame dimensions
func (b *SoftwareBackend) Size() (int, int) {
	return b.width, b.height
}

// SetQuality applies to the next Render
func (b *SoftwareBackend) SetQuality(q Quality) {
	b.quality.Store(int64(max(q.Samples, 1)))
}

// Samples returns the configured sample count
func (b *SoftwareBackend) Samples() int {
	return int(b.quality.Load())
}

// Interrupt asks the in-flight render to stop at the next row
func (b *SoftwareBackend) Interrupt() {
	b.interrupted.Store(true)
}

// Progress returns the in-flight render's completion in [0,100]
func (b *SoftwareBackend) Progress() float64 {
	return math.Float64frombits(b.progress.Load())
}

func (b *SoftwareBackend) setProgress(p float64) {
	b.progress.Store(math.Float64bits(p))
}

// RenderedFrames returns how many renders completed
func (b *SoftwareBackend) RenderedFrames() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

type spot struct {
	x, y, r2  float64
	r, g, bl  float64
	intensity float64
}

func spotsFor(snap models.Snapshot) []spot {
	devices := snap.Devices()
	spots := make([]spot, 0, len(devices))
	for _, d := range devices {
		radius := d.Param(models.ParamRadius, defaultRadius)
		if radius <= 0 {
			continue
		}
		intensity := d.Param(models.ParamIntensity, 1)
		spots = append(spots, spot{
			x:         d.Param(models.ParamX, 0.5),
			y:         d.Param(models.ParamY, 0.5),
			r2:        radius * radius,
			r:         d.Param(models.ParamRed, 1),
			g:         d.Param(models.ParamGreen, 1),
			bl:        d.Param(models.ParamBlue, 1),
			intensity: intensity,
		})
	}
	return spots
}

// jitter returns the sub-pixel offset of pass i out of n on a regular grid
func jitter(i, n int) (float64, float64) {
	side := int(math.Ceil(math.Sqrt(float64(n))))
	return (float64(i%side) + 0.5) / float64(side), (float64(i/side) + 0.5) / float64(side)
}

// Render draws snap. The previous result is kept when the render is
// interrupted or ctx is done.
func (b *SoftwareBackend) Render(ctx context.Context, snap models.Snapshot) error {
	b.interrupted.Store(false)
	b.setProgress(0)

	samples := b.Samples()
	spots := spotsFor(snap)
	w, h := b.width, b.height
	accum := make([]float64, w*h*3)

	totalRows := float64(samples * h)
	for pass := 0; pass < samples; pass++ {
		jx, jy := jitter(pass, samples)
		for y := 0; y < h; y++ {
			if b.interrupted.Load() {
				return ErrInterrupted
			}
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrInterrupted, err)
			}

			py := (float64(y) + jy) / float64(h)
			for x := 0; x < w; x++ {
				px := (float64(x) + jx) / float64(w)
				i := (y*w + x) * 3
				for _, s := range spots {
					dx, dy := px-s.x, py-s.y
					d2 := dx*dx + dy*dy
					if d2 >= s.r2 {
						continue
					}
					f := 1 - d2/s.r2
					f *= f * s.intensity
					accum[i] += s.r * f
					accum[i+1] += s.g * f
					accum[i+2] += s.bl * f
				}
			}

			if b.rowDelay > 0 {
				time.Sleep(b.rowDelay)
			}
			b.setProgress(float64(pass*h+y+1) * 100 / totalRows)
		}
	}

	out := make([]float32, w*h*4)
	inv := 1 / float64(samples)
	for p := 0; p < w*h; p++ {
		out[p*4] = float32(accum[p*3] * inv)
		out[p*4+1] = float32(accum[p*3+1] * inv)
		out[p*4+2] = float32(accum[p*3+2] * inv)
		out[p*4+3] = 1
	}

	b.mu.Lock()
	b.result = out
	b.frames++
	b.mu.Unlock()
	return nil
}

// ResultBuffer returns a copy of the last completed frame, or nil before
// the first one
func (b *SoftwareBackend) ResultBuffer() ([]float32, int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.result == nil {
		return nil, b.width, b.height
	}
	out := make([]float32, len(b.result))
	copy(out, b.result)
	return out, b.width, b.height
}
