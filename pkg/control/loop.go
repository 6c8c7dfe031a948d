package control

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/psantana5/lumirender/pkg/logging"
	"github.com/psantana5/lumirender/pkg/models"
	"golang.org/x/time/rate"
)

// Submitter receives the rig once per tick. scheduler.Scheduler implements it.
type Submitter interface {
	UpdateRig(rig *models.DeviceSet) bool
}

// Config controls the tick rate of the loop
type Config struct {
	RateHz float64 `mapstructure:"rate_hz" yaml:"rate_hz"`
	Burst  int     `mapstructure:"burst" yaml:"burst"`
}

// DefaultConfig ticks at 30Hz without bursting
func DefaultConfig() Config {
	return Config{RateHz: 30, Burst: 1}
}

// Loop is the fixed-rate control loop: each tick it animates the rig and
// hands it to the submitter, which decides whether anything changed.
type Loop struct {
	rig      *models.DeviceSet
	target   Submitter
	animator Animator
	limiter  *rate.Limiter
	logger   *logging.Logger
	now      func() time.Time

	ticks     atomic.Int64
	submitted atomic.Int64
}

// NewLoop creates a control loop. A nil animator leaves the rig to external
// writers such as the HTTP API.
func NewLoop(rig *models.DeviceSet, target Submitter, animator Animator, cfg Config, logger *logging.Logger) (*Loop, error) {
	if rig == nil || target == nil {
		return nil, errors.New("control loop needs a rig and a submitter")
	}
	if cfg.RateHz <= 0 {
		return nil, fmt.Errorf("invalid control rate %v", cfg.RateHz)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loop{
		rig:      rig,
		target:   target,
		animator: animator,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateHz), cfg.Burst),
		logger:   logger.WithComponent("control"),
		now:      time.Now,
	}, nil
}

// Run ticks until ctx is done. Cancellation is a clean exit.
func (l *Loop) Run(ctx context.Context) error {
	start := l.now()
	l.logger.Info("Control loop started", map[string]interface{}{
		"rate_hz": float64(l.limiter.Limit()),
	})
	defer func() {
		l.logger.Info("Control loop stopped", map[string]interface{}{
			"ticks":     l.ticks.Load(),
			"submitted": l.submitted.Load(),
		})
	}()

	for {
		if err := l.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control loop wait: %w", err)
		}
		l.Tick(l.now().Sub(start))
	}
}

// Tick runs one iteration at the given animation time
func (l *Loop) Tick(elapsed time.Duration) bool {
	l.ticks.Add(1)
	if l.animator != nil {
		if err := l.animator.Animate(l.rig, elapsed); err != nil {
			l.logger.Warn("Animation step failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if !l.target.UpdateRig(l.rig) {
		return false
	}
	l.submitted.Add(1)
	return true
}

// Stats returns the number of ticks and of ticks that queued a frame
func (l *Loop) Stats() (ticks, submitted int64) {
	return l.ticks.Load(), l.submitted.Load()
}
