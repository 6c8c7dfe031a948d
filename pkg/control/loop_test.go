package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// changeSubmitter accepts the rig only when it changed, like the scheduler
type changeSubmitter struct {
	mu    sync.Mutex
	calls int
	jobs  int
}

func (s *changeSubmitter) UpdateRig(rig *models.DeviceSet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if !rig.IsUpdateRequired(rig.Devices()) {
		return false
	}
	rig.ClearChangeFlags()
	s.jobs++
	return true
}

func (s *changeSubmitter) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, s.jobs
}

func TestNewLoopValidation(t *testing.T) {
	rig := models.NewDeviceSet(models.NewDevice("a"))
	sub := &changeSubmitter{}

	tests := []struct {
		name    string
		rig     *models.DeviceSet
		target  Submitter
		cfg     Config
		wantErr bool
	}{
		{"valid", rig, sub, DefaultConfig(), false},
		{"nil rig", nil, sub, DefaultConfig(), true},
		{"nil submitter", rig, nil, DefaultConfig(), true},
		{"zero rate", rig, sub, Config{RateHz: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoop(tt.rig, tt.target, nil, tt.cfg, nil)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTickSubmitsOnlyChanges(t *testing.T) {
	rig := models.NewDeviceSet(models.NewDevice("a"), models.NewDevice("b"))
	sub := &changeSubmitter{}
	loop, err := NewLoop(rig, sub, Orbit{Period: time.Second, Radius: 0.25}, DefaultConfig(), nil)
	require.NoError(t, err)

	assert.True(t, loop.Tick(0))
	assert.False(t, loop.Tick(0), "same animation time, nothing changed")
	assert.True(t, loop.Tick(250*time.Millisecond))

	ticks, submitted := loop.Stats()
	assert.Equal(t, int64(3), ticks)
	assert.Equal(t, int64(2), submitted)
}

func TestOrbitPhasesDevices(t *testing.T) {
	rig := models.NewDeviceSet(models.NewDevice("a"), models.NewDevice("b"))
	require.NoError(t, Orbit{Period: time.Second, Radius: 0.25}.Animate(rig, 0))

	a, _ := rig.Get("a")
	b, _ := rig.Get("b")
	assert.InDelta(t, 0.75, a.Param(models.ParamX, 0), 1e-9)
	assert.InDelta(t, 0.25, b.Param(models.ParamX, 0), 1e-9)
	assert.InDelta(t, 0.5, a.Param(models.ParamY, 0), 1e-9)

	// A quarter period later a has moved to the bottom of the circle
	require.NoError(t, Orbit{Period: time.Second, Radius: 0.25}.Animate(rig, 250*time.Millisecond))
	a, _ = rig.Get("a")
	assert.InDelta(t, 0.75, a.Param(models.ParamY, 0), 1e-9)

	assert.Error(t, Orbit{}.Animate(rig, 0))
}

func TestRunStopsOnCancel(t *testing.T) {
	rig := models.NewDeviceSet(models.NewDevice("a"))
	sub := &changeSubmitter{}

	var frames int
	animator := AnimatorFunc(func(rig *models.DeviceSet, elapsed time.Duration) error {
		frames++
		return rig.SetParam("a", models.ParamIntensity, float64(frames))
	})
	loop, err := NewLoop(rig, sub, animator, Config{RateHz: 200, Burst: 1}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	calls, jobs := sub.counts()
	assert.Greater(t, calls, 1)
	assert.Equal(t, calls, jobs, "every tick changed the rig")

	ticks, submitted := loop.Stats()
	assert.Equal(t, int64(calls), ticks)
	assert.Equal(t, int64(jobs), submitted)
}
