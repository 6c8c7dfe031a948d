package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/psantana5/lumirender/pkg/config"
	"github.com/psantana5/lumirender/pkg/control"
	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/psantana5/lumirender/pkg/logging"
	"github.com/psantana5/lumirender/pkg/metrics"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/render"
	"github.com/psantana5/lumirender/pkg/scheduler"
	"github.com/psantana5/lumirender/pkg/tracing"
	"github.com/spf13/afero"
)

// app wires a scheduler, its backend, stores and control loop from config
type app struct {
	cfg     config.Config
	logger  *logging.Logger
	metrics *metrics.SchedulerMetrics
	tracer  *tracing.Provider
	backend *render.SoftwareBackend
	archive framestore.FrameStore
	sched   *scheduler.Scheduler
	rig     *models.DeviceSet
	loop    *control.Loop
}

func newApp(cfg config.Config, component string) (*app, error) {
	logger, err := cfg.Log.NewLogger(component)
	if err != nil {
		return nil, err
	}

	tp, err := tracing.InitTracer(cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}

	archive, err := framestore.NewStore(cfg.Archive, afero.NewOsFs())
	if err != nil {
		tp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	m := metrics.NewSchedulerMetrics()
	backend := render.NewSoftwareBackend(cfg.Render)
	sched := scheduler.New(backend, scheduler.Options{
		ID:             cfg.Scheduler.ID,
		OwnedDevices:   cfg.Scheduler.OwnedDevices,
		Archive:        archive,
		PreviewQuality: cfg.Render.PreviewQuality(),
		RenderQuality:  cfg.Render.FinalQuality(),
		Logger:         logger,
		Metrics:        m,
		Tracer:         tp.Tracer(),
	})
	if err := m.WatchProgress(sched.Progress); err != nil {
		logger.Warn("Progress gauge unavailable", map[string]interface{}{"error": err.Error()})
	}

	rig := cfg.Rig.BuildRig()
	var animator control.Animator
	if cfg.Rig.Animation.Enabled {
		animator = control.Orbit{Period: cfg.Rig.Animation.Period, Radius: cfg.Rig.Animation.Radius}
	}
	loop, err := control.NewLoop(rig, sched, animator, cfg.Control, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Scheduler configured", map[string]interface{}{
		"scheduler_id": sched.ID(),
		"devices":      len(rig.Devices()),
		"archive":      cfg.Archive.Type,
		"width":        cfg.Render.Width,
		"height":       cfg.Render.Height,
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		tracer:  tp,
		backend: backend,
		archive: archive,
		sched:   sched,
		rig:     rig,
		loop:    loop,
	}, nil
}

// close joins the worker, then flushes traces and closes the archive
func (a *app) close(ctx context.Context) error {
	var errs []error
	errs = append(errs, a.sched.Close())
	errs = append(errs, a.tracer.Shutdown(ctx))
	if a.archive != nil {
		errs = append(errs, a.archive.Close())
	}
	return errors.Join(errs...)
}
