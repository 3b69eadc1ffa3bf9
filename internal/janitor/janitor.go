// Package janitor periodically deletes rows that can never matter again:
// expired password-reset tokens and denylist entries for JWTs that have
// expired on their own.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/snippetshare/internal/metrics"
	"github.com/sakif/snippetshare/internal/repository"
)

// DefaultSchedule runs the purge at minute 17 of every hour.
const DefaultSchedule = "17 * * * *"

// Janitor runs Purge on a cron schedule.
type Janitor struct {
	targets map[string]repository.Purger // table name → store
	cron    *cron.Cron
	metrics *metrics.Metrics
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// New schedules a purge of every target. targets is keyed by a name used
// in logs and metrics.
func New(schedule string, targets map[string]repository.Purger, m *metrics.Metrics, logger *slog.Logger) (*Janitor, error) {
	j := &Janitor{
		targets: targets,
		// SkipIfStillRunning: a slow purge must not pile up behind itself.
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DiscardLogger),
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		metrics: m,
		logger:  logger,
		timeout: 5 * time.Minute,
		now:     time.Now,
	}

	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("janitor: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins running the schedule in the background.
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("janitor started", slog.Int("targets", len(j.targets)))
}

// Stop stops the scheduler and waits for a running purge, or until ctx
// is done.
func (j *Janitor) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.Purge(ctx); err != nil {
		j.logger.Error("purge failed", slog.String("error", err.Error()))
	}
}

// Purge deletes expired rows from every target once and returns how many
// went per target. A failing target does not stop the others; the first
// error is returned.
func (j *Janitor) Purge(ctx context.Context) (map[string]int64, error) {
	now := j.now()
	deleted := make(map[string]int64, len(j.targets))

	var firstErr error
	for name, target := range j.targets {
		n, err := target.DeleteExpired(ctx, now)
		if err != nil {
			j.logger.Warn("purging expired rows",
				slog.String("table", name),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("janitor: purging %s: %w", name, err)
			}
			continue
		}

		deleted[name] = n
		j.metrics.Purged(name, n)
		if n > 0 {
			j.logger.Info("purged expired rows", slog.String("table", name), slog.Int64("rows", n))
		}
	}
	return deleted, firstErr
}
