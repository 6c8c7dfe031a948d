package control

import (
	"errors"
	"math"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
)

// Animator moves the rig to its state at elapsed
type Animator interface {
	Animate(rig *models.DeviceSet, elapsed time.Duration) error
}

// AnimatorFunc adapts a function to Animator
type AnimatorFunc func(rig *models.DeviceSet, elapsed time.Duration) error

func (f AnimatorFunc) Animate(rig *models.DeviceSet, elapsed time.Duration) error {
	return f(rig, elapsed)
}

// Orbit circles every device around the canvas center, evenly phased, and
// pulses its intensity once per period
type Orbit struct {
	Period time.Duration
	Radius float64 // In normalized canvas units
}

// Animate implements Animator
func (o Orbit) Animate(rig *models.DeviceSet, elapsed time.Duration) error {
	if o.Period <= 0 {
		return errors.New("orbit period must be positive")
	}
	devices := rig.Devices()
	if len(devices) == 0 {
		return nil
	}

	base := 2 * math.Pi * float64(elapsed) / float64(o.Period)
	var errs []error
	for i, d := range devices {
		phase := base + 2*math.Pi*float64(i)/float64(len(devices))
		errs = append(errs,
			rig.SetParam(d.ID, models.ParamX, 0.5+o.Radius*math.Cos(phase)),
			rig.SetParam(d.ID, models.ParamY, 0.5+o.Radius*math.Sin(phase)),
			rig.SetParam(d.ID, models.ParamIntensity, 0.75+0.25*math.Sin(phase)),
		)
	}
	return errors.Join(errs...)
}
