package render

import (
	"context"
	"errors"

	"github.com/psantana5/lumirender/pkg/models"
)

// ErrInterrupted is returned by Render when Interrupt or ctx stopped it early
var ErrInterrupted = errors.New("render interrupted")

// Quality selects how much work a render spends per frame
type Quality struct {
	Samples int `json:"samples"`
}

// Backend turns a device snapshot into an RGBA pixel buffer.
//
// A backend is not reentrant: at most one Render is outstanding. Interrupt
// may be called from any goroutine and asks the in-flight render to stop as
// soon as it can; it never waits.
type Backend interface {
	// Render blocks until the frame is done, interrupted or failed
	Render(ctx context.Context, snap models.Snapshot) error

	// Interrupt cancels the in-flight render, if any
	Interrupt()

	// SetQuality applies to the next Render
	SetQuality(q Quality)

	// Progress of the in-flight render in [0,100]
	Progress() float64

	// ResultBuffer returns a copy of the last completed frame
	ResultBuffer() ([]float32, int, int)
}

// Config holds render configuration
type Config struct {
	Width          int `mapstructure:"width" yaml:"width"`
	Height         int `mapstructure:"height" yaml:"height"`
	PreviewSamples int `mapstructure:"preview_samples" yaml:"preview_samples"` // Interactive and Recording
	RenderSamples  int `mapstructure:"render_samples" yaml:"render_samples"`   // Rendering drain
	RowDelayMicros int `mapstructure:"row_delay_us" yaml:"row_delay_us"`       // Emulates a slow renderer
}

// PreviewQuality returns the quality for interactive and recorded previews
func (c Config) PreviewQuality() Quality {
	return Quality{Samples: max(c.PreviewSamples, 1)}
}

// FinalQuality returns the quality for the rendering drain
func (c Config) FinalQuality() Quality {
	return Quality{Samples: max(c.RenderSamples, 1)}
}
