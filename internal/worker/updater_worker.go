// Package worker runs the updater on an interval for deployments
// without an external scheduler.
package worker

import (
	"context"
	"time"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/notify"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/runner"
)

// UpdaterWorker wraps the runner in a ticker loop. Each tick executes
// one full run; a panic inside a run is contained and the next tick
// tries again. The watermark mechanism makes overlapping work
// harmless: a run that finds every tenant caught up does nothing.
type UpdaterWorker struct {
	runner   *runner.Runner
	mailer   *notify.Mailer
	interval time.Duration
}

// NewUpdaterWorker creates the interval worker. Intervals under a
// minute fall back to the hourly default.
func NewUpdaterWorker(r *runner.Runner, m *notify.Mailer, interval time.Duration) *UpdaterWorker {
	if interval < time.Minute {
		interval = time.Hour
	}
	return &UpdaterWorker{runner: r, mailer: m, interval: interval}
}

// Start runs the loop until the context is cancelled. The first run
// fires immediately, not after the first interval.
func (w *UpdaterWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithField("interval", w.interval.String()).Info("Starting updater worker")

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Updater worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *UpdaterWorker) runOnce(ctx context.Context) {
	log := logger.GetAppLogger()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Panic during run, continuing on next tick")
		}
	}()

	report := w.runner.Run(ctx)
	if report.HasFailures() {
		log.WithField("errors", len(report.Errors)).Warn("Run finished with failures")
	} else {
		log.WithField("iterations", len(report.Outcomes)).Info("Run finished")
	}
	w.mailer.SendReport(report)
}
