package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/notify"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/runner"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/worker"
)

// initLogger initializes the logger for the whole process.
func initLogger() {
	if err := logger.Init(nil); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	logger.GetAppLogger().Info("Logger system initialized successfully")
}

func splitComma(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func main() {
	loop := flag.Bool("loop", false, "run on an interval instead of a single pass")
	flag.Parse()

	initLogger()
	InitGlobal()
	data := InitDataConfig()

	log := logger.GetAppLogger()
	cfg := global.ServerConfig

	jobs := selectJobs(cfg.Jobs, allJobs())
	if len(jobs) == 0 {
		log.Fatal("No jobs selected to run")
	}

	r := runner.New(cfg, data.Tenants, data.Rules, data.Rates, data.Remaps, jobs)
	defer r.Close()
	mailer := notify.NewMailer(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *loop {
		interval := time.Duration(cfg.WorkerIntervalMinutes) * time.Minute
		worker.NewUpdaterWorker(r, mailer, interval).Start(ctx)
		return
	}

	report := r.Run(ctx)
	log.Info(report.Summary())
	mailer.SendReport(report)

	if report.HasFailures() {
		os.Exit(1)
	}
}
