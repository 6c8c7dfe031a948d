package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/lumirender/pkg/logging"
)

// Func releases one resource within the deadline carried by ctx
type Func func(context.Context) error

// Manager runs registered shutdown functions once a signal arrives
type Manager struct {
	funcs    []Func
	mu       sync.Mutex
	timeout  time.Duration
	logger   *logging.Logger
	doneChan chan struct{}
	once     sync.Once
}

// New creates a shutdown manager whose functions share one deadline
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		timeout:  timeout,
		logger:   logger.WithComponent("shutdown"),
		doneChan: make(chan struct{}),
	}
}

// Register adds a shutdown function.
// Functions are called in reverse order (LIFO).
func (m *Manager) Register(fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs = append(m.funcs, fn)
}

// Trigger starts shutdown without a signal
func (m *Manager) Trigger() {
	m.once.Do(func() {
		close(m.doneChan)
	})
}

// Done returns a channel that is closed when shutdown is initiated
func (m *Manager) Done() <-chan struct{} {
	return m.doneChan
}

// Wait blocks until SIGINT, SIGTERM, Trigger or ctx cancellation, then
// runs the shutdown functions
func (m *Manager) Wait(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.logger.Info("Received signal, initiating graceful shutdown", map[string]interface{}{
			"signal": sig.String(),
		})
		m.Trigger()
	case <-m.doneChan:
		m.logger.Info("Shutdown requested")
	case <-ctx.Done():
		m.Trigger()
	}
	return m.Shutdown()
}

// Shutdown executes all registered shutdown functions and joins their errors
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.funcs) - 1; i >= 0; i-- {
		if err := m.funcs[i](ctx); err != nil {
			m.logger.Error("Shutdown function failed", map[string]interface{}{
				"index": i,
				"error": err.Error(),
			})
			errs = append(errs, err)
		}
	}
	m.funcs = nil

	m.logger.Info("Graceful shutdown complete")
	return errors.Join(errs...)
}

// StopHTTPServer creates a shutdown function for http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }, name string) Func {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop %s server: %w", name, err)
		}
		return nil
	}
}

// CloseResource creates a shutdown function for io.Closer
func CloseResource(closer interface{ Close() error }, name string) Func {
	return func(ctx context.Context) error {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", name, err)
		}
		return nil
	}
}

// WaitFor creates a shutdown function that polls check until it reports
// true or the deadline passes
func WaitFor(check func() bool, pollInterval time.Duration, name string) Func {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			if check() {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("timeout waiting for %s: %w", name, ctx.Err())
			case <-ticker.C:
			}
		}
	}
}
