package framestore

import (
	"errors"
	"fmt"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
	"github.com/spf13/afero"
)

// FrameStore stores completed renders and plays them back through a cursor.
//
// A store has a single writer (the scheduler worker) and is safe to read from
// another goroutine. Records come back in non-decreasing time order and a
// record's time is never rewritten once stored.
type FrameStore interface {
	// Dump stores one RGBA frame at time t
	Dump(t time.Duration, pixels []float32, width, height int) error

	// Cursor operations
	Reset()
	Next()
	HasNext() bool
	CurrentFrameBuffer() ([]float32, bool)
	CurrentFrame() (models.FrameRecord, bool)
	CurrentTime() (time.Duration, bool)
	NextTime() (time.Duration, bool)

	// Clear releases every stored frame and empties the cursor
	Clear() error
	IsEmpty() bool
	FrameCount() int

	// Lifecycle
	Close() error
}

// Store types
const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeFile   = "file"
	TypeSQLite = "sqlite"
)

// DefaultFPS is the output cadence of image-sequence stores
const DefaultFPS = 24

// Config holds frame store configuration
type Config struct {
	Type      string `mapstructure:"type" yaml:"type"`           // "none", "memory", "file" or "sqlite"
	Directory string `mapstructure:"directory" yaml:"directory"` // File store image directory
	FPS       int    `mapstructure:"fps" yaml:"fps"`             // File store output cadence
	Path      string `mapstructure:"path" yaml:"path"`           // SQLite database path
}

var (
	ErrUnsupportedStore = errors.New("unsupported frame store type")
	ErrMissingLocation  = errors.New("frame store location not configured")
)

// NewStore creates a store based on configuration. fs backs file stores and
// defaults to the OS filesystem. A "none" store returns (nil, nil).
func NewStore(cfg Config, fs afero.Fs) (FrameStore, error) {
	switch cfg.Type {
	case TypeNone, "":
		return nil, nil
	case TypeMemory:
		return NewMemoryFrameStore(), nil
	case TypeFile:
		if cfg.Directory == "" {
			return nil, fmt.Errorf("%w: file store needs a directory", ErrMissingLocation)
		}
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFileFrameStore(fs, cfg.Directory, cfg.FPS)
	case TypeSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: sqlite store needs a path", ErrMissingLocation)
		}
		return NewSQLiteFrameStore(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, cfg.Type)
	}
}

func copyPixels(pixels []float32) []float32 {
	out := make([]float32, len(pixels))
	copy(out, pixels)
	return out
}
