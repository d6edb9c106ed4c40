package restart

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/rbx-watch/internal/status"
	"github.com/yegors/rbx-watch/pkg/logger"
)

// Notifier delivers restart warnings and notices
type Notifier interface {
	NotifyText(text string)
}

const (
	checkInterval = time.Second
	warningLead   = 5 * time.Minute
)

// Coordinator time-boxes the process lifetime: it warns once shortly before
// the configured interval elapses and then replaces the process image with
// a fresh copy of itself. In-memory session state is lost on purpose, only
// the SQLite store survives.
type Coordinator struct {
	notifier  Notifier
	interval  time.Duration
	grace     time.Duration
	startedAt time.Time
	logger    *logger.Logger

	now    func() time.Time
	execFn func(argv0 string, argv []string, envv []string) error

	warned bool // the warning fires once, not on every check inside the window

	restartOnce sync.Once
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewCoordinator creates a restart coordinator for the given process start
// time, restart interval and grace delay
func NewCoordinator(
	notifier Notifier,
	interval time.Duration,
	grace time.Duration,
	startedAt time.Time,
	log *logger.Logger,
) *Coordinator {
	return &Coordinator{
		notifier:  notifier,
		interval:  interval,
		grace:     grace,
		startedAt: startedAt,
		logger:    log.Named("restart"),
		now:       time.Now,
		execFn:    syscall.Exec,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the background restart check loop
func (c *Coordinator) Start(ctx context.Context) error {
	c.logger.Info("Starting restart coordinator",
		logger.Duration("interval", c.interval),
		logger.Time("restart_at", c.startedAt.Add(c.interval)),
	)

	c.wg.Add(1)
	go c.run(ctx)

	return nil
}

// Stop stops the restart check loop
func (c *Coordinator) Stop() {
	c.logger.Info("Stopping restart coordinator")
	close(c.stopCh)
	c.wg.Wait()
	c.logger.Info("Restart coordinator stopped")
}

// RestartNow triggers the restart transition immediately, bypassing the
// elapsed-time check. Blocks through the grace delay and does not return
// when the exec succeeds.
func (c *Coordinator) RestartNow(reason string) {
	c.restartOnce.Do(func() {
		c.restart(reason)
	})
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.check()
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// check runs one restart-clock evaluation
func (c *Coordinator) check() {
	elapsed := c.now().Sub(c.startedAt)
	remaining := c.interval - elapsed

	if !c.warned && remaining > 0 && remaining <= warningLead {
		c.warned = true
		c.logger.Info("Restart warning issued",
			logger.Duration("remaining", remaining),
		)
		if c.notifier != nil {
			c.notifier.NotifyText(fmt.Sprintf("⚠️ Scheduled restart in %s", status.FormatDuration(remaining)))
		}
	}

	if elapsed >= c.interval {
		c.restartOnce.Do(func() {
			c.restart("scheduled restart interval reached")
		})
	}
}

// restart sends the final notice, waits out the grace delay and replaces
// the process image with the same executable, arguments and environment
func (c *Coordinator) restart(reason string) {
	c.logger.Info("Restarting process",
		logger.String("reason", reason),
		logger.Duration("grace", c.grace),
	)

	if c.notifier != nil {
		c.notifier.NotifyText(fmt.Sprintf("🔄 Restarting (%s), back in a moment", reason))
	}

	// Let the notice reach the API before the process image goes away
	time.Sleep(c.grace)

	exe, err := os.Executable()
	if err != nil {
		c.logger.Error("Failed to resolve executable path", logger.Error(err))
		os.Exit(1)
	}

	if err := c.execFn(exe, os.Args, os.Environ()); err != nil {
		c.logger.Error("Failed to restart process", logger.Error(err))
		os.Exit(1)
	}
}
