package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/psantana5/lumirender/pkg/api"
	"github.com/psantana5/lumirender/pkg/auth"
	"github.com/psantana5/lumirender/pkg/shutdown"
	tlsutil "github.com/psantana5/lumirender/pkg/tls"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, control loop and HTTP API",
	Long: `Starts the render worker in interactive mode, drives the rig from the
control loop and serves the control, playback and metrics API until SIGINT or
SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTP.Addr = serveAddr
	}

	a, err := newApp(cfg, "serve")
	if err != nil {
		return err
	}
	mgr := shutdown.New(cfg.HTTP.ShutdownTimeout, a.logger)
	mgr.Register(a.close)

	if err := a.sched.Start(); err != nil {
		mgr.Shutdown()
		return err
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := a.loop.Run(loopCtx); err != nil {
			a.logger.Error("Control loop failed", map[string]interface{}{"error": err.Error()})
			mgr.Trigger()
		}
	}()
	mgr.Register(func(ctx context.Context) error {
		stopLoop()
		select {
		case <-loopDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var limiter *api.Limiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = api.NewLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-mgr.Done():
					return
				case <-ticker.C:
					limiter.CleanupOldLimiters(10 * time.Minute)
				}
			}
		}()
	}

	keyAuth, err := newKeyAuth(cfg.HTTP.APIKey, cfg.HTTP.APIKeyHash)
	if err != nil {
		mgr.Trigger()
		return errors.Join(err, mgr.Shutdown())
	}

	handler := api.NewHandler(a.sched, a.rig, a.logger)
	router := api.NewRouter(handler, api.RouterOptions{
		Metrics: a.metrics,
		Tracing: a.tracer,
		Limiter: limiter,
		Auth:    keyAuth,
	})
	srv := api.NewServer(cfg.HTTP.Addr, router, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
	useTLS := cfg.HTTP.TLSCert != ""
	if useTLS {
		tlsConfig, err := tlsutil.LoadServerConfig(cfg.HTTP.TLSCert, cfg.HTTP.TLSKey)
		if err != nil {
			mgr.Trigger()
			return errors.Join(err, mgr.Shutdown())
		}
		srv.TLSConfig = tlsConfig
	}
	mgr.Register(shutdown.StopHTTPServer(srv, "api"))

	go func() {
		a.logger.Info("API listening", map[string]interface{}{
			"addr": cfg.HTTP.Addr,
			"tls":  useTLS,
			"auth": keyAuth != nil,
		})
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("API server failed", map[string]interface{}{"error": err.Error()})
			mgr.Trigger()
		}
	}()

	return mgr.Wait(cmd.Context())
}

// newKeyAuth prefers the stored hash; no key disables auth
func newKeyAuth(key, hash string) (*auth.APIKeyAuth, error) {
	switch {
	case hash != "":
		return auth.NewAPIKeyAuthFromHash(hash)
	case key != "":
		return auth.NewAPIKeyAuth(key)
	default:
		return nil, nil
	}
}
