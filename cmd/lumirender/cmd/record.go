package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/psantana5/lumirender/pkg/models"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const (
	drainBarTotal = 1000
	drainPoll     = 200 * time.Millisecond
)

var (
	recordDuration time.Duration
	recordDir      string
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the animated rig and render it at full quality",
	Long: `Runs the control loop in recording mode for the given duration, then
drains every recorded state at full quality into the archive and exits once
the drain completes.`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().DurationVarP(&recordDuration, "duration", "d", 5*time.Second, "recording length")
	recordCmd.Flags().StringVar(&recordDir, "dir", "", "write an image sequence to this directory (overrides archive)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	if recordDuration <= 0 {
		return fmt.Errorf("invalid duration %s", recordDuration)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if recordDir != "" {
		cfg.Archive.Type = framestore.TypeFile
		cfg.Archive.Directory = recordDir
	}
	cfg.Rig.Animation.Enabled = true
	if cfg.Rig.Animation.Period <= 0 {
		cfg.Rig.Animation.Period = 4 * time.Second
	}

	a, err := newApp(cfg, "record")
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.close(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drained := make(chan struct{})
	var once sync.Once
	a.sched.AddCompletionCallback(func() {
		once.Do(func() { close(drained) })
	})

	if err := a.sched.Start(); err != nil {
		return err
	}
	if err := a.sched.StartRecording(); err != nil {
		return err
	}

	recordCtx, cancel := context.WithTimeout(ctx, recordDuration)
	err = a.loop.Run(recordCtx)
	cancel()
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return errors.New("recording interrupted")
	}

	if err := a.sched.EndRecording(); err != nil {
		return err
	}
	a.logger.Info("Recording finished, draining", map[string]interface{}{
		"pending": a.sched.Status().Pending,
	})

	start := time.Now()
	if err := waitForDrain(ctx, a, drained); err != nil {
		return err
	}

	printRecordSummary(a, time.Since(start))
	return nil
}

// waitForDrain blocks until the completion callback fires or the drain
// ends without one. Table output shows a progress bar, JSON output logs.
func waitForDrain(ctx context.Context, a *app, drained <-chan struct{}) error {
	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if !IsJSONOutput() {
		p = mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(100*time.Millisecond))
		name := "Rendering"
		bar = p.New(drainBarTotal,
			mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
				decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 4}), "Complete"),
			),
			mpb.AppendDecorators(decor.Percentage()),
		)
	}
	finish := func(complete bool) {
		if bar == nil {
			return
		}
		if complete {
			bar.SetCurrent(drainBarTotal)
		} else {
			bar.Abort(false)
		}
		p.Wait()
	}

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for {
		select {
		case <-drained:
			finish(true)
			return nil
		case <-ctx.Done():
			finish(false)
			return fmt.Errorf("drain interrupted at %.1f%%", a.sched.Progress())
		case <-ticker.C:
			if a.sched.Mode() != models.ModeRendering {
				finish(true)
				return nil
			}
			progress := a.sched.Progress()
			if bar != nil {
				bar.SetCurrent(int64(progress * drainBarTotal / 100))
				continue
			}
			a.logger.Info("Rendering", map[string]interface{}{
				"progress": fmt.Sprintf("%.1f%%", progress),
			})
		}
	}
}

func printRecordSummary(a *app, elapsed time.Duration) {
	ticks, submitted := a.loop.Stats()
	mem := a.sched.FrameStore()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticks", "Recorded", "Rendered", "Archived", "Drain")
	archived := "-"
	if a.archive != nil {
		archived = fmt.Sprintf("%d", a.archive.FrameCount())
	}
	table.Append(
		fmt.Sprintf("%d", ticks),
		fmt.Sprintf("%d", submitted),
		fmt.Sprintf("%d", mem.FrameCount()),
		archived,
		elapsed.Round(time.Millisecond).String(),
	)
	table.Render()
}
