// Package runner orchestrates the aggregation jobs across tenants.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/config"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/classify"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/currency"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/database"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/job"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/tenant"
)

// Runner executes the configured jobs for every tenant. Tenants run
// under a bounded worker group; stages within a tenant stay
// sequential. A failing tenant never stops the others and never
// touches its watermark, so the next run retries the same day.
type Runner struct {
	cfg     *config.Configuration
	tenants *tenant.Registry
	rules   *classify.Cascade
	rates   *currency.Table
	remaps  *job.RemapSet
	jobs    []job.Job
}

func New(cfg *config.Configuration, tenants *tenant.Registry, rules *classify.Cascade, rates *currency.Table, remaps *job.RemapSet, jobs []job.Job) *Runner {
	return &Runner{cfg: cfg, tenants: tenants, rules: rules, rates: rates, remaps: remaps, jobs: jobs}
}

// TenantError records one failed tenant iteration.
type TenantError struct {
	Job      string
	Tenant   string
	Category string
	Err      error
}

// Report is the outcome of one full run, consumed by logging and the
// notification mail.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []*job.Outcome
	Errors     []TenantError
}

// HasFailures reports whether any tenant iteration failed.
func (r *Report) HasFailures() bool {
	return len(r.Errors) > 0
}

// Summary renders the run as plain text, one line per tenant
// iteration.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s -> %s (%s)\n",
		r.StartedAt.Format(time.RFC3339), r.FinishedAt.Format(time.RFC3339),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Second))
	for _, o := range r.Outcomes {
		b.WriteString(o.String())
		b.WriteByte('\n')
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "FAILED %s/%s [%s]: %v\n", e.Job, e.Tenant, e.Category, e.Err)
	}
	return b.String()
}

// Run executes every job against every tenant and returns the report.
// The whole run is bounded by the configured run timeout.
func (r *Runner) Run(ctx context.Context) *Report {
	report := &Report{StartedAt: time.Now().UTC()}

	if r.cfg.RunTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.RunTimeoutSeconds)*time.Second)
		defer cancel()
	}

	var mu sync.Mutex
	workers := r.cfg.TenantWorkers
	if workers < 1 {
		workers = 1
	}

	for _, jb := range r.jobs {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for i := range r.tenants.Tenants {
			desc := &r.tenants.Tenants[i]
			g.Go(func() error {
				outcome, err := r.runTenant(gctx, jb, desc)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Errors = append(report.Errors, TenantError{
						Job:      jb.Name(),
						Tenant:   desc.Name,
						Category: common.Category(err),
						Err:      err,
					})
					// Tenant failures are isolated, never group-fatal.
					return nil
				}
				report.Outcomes = append(report.Outcomes, outcome)
				return nil
			})
		}
		// The group only propagates context cancellation.
		if err := g.Wait(); err != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	report.FinishedAt = time.Now().UTC()
	return report
}

// runTenant executes one job for one tenant, with panic isolation so a
// misbehaving aggregation cannot take down the run.
func (r *Runner) runTenant(ctx context.Context, jb job.Job, desc *tenant.Descriptor) (outcome *job.Outcome, err error) {
	log := logger.GetAppLogger().WithField("job", jb.Name()).WithField("tenant", desc.Name)

	defer func() {
		if rec := recover(); rec != nil {
			err = common.NewError(common.ErrCodeAggregate, fmt.Sprintf("panic in tenant iteration: %v", rec), nil)
			logger.GetErrorLogger().WithField("job", jb.Name()).WithField("tenant", desc.Name).
				Errorf("Recovered from panic: %v", rec)
		}
	}()

	env, err := r.buildEnv(desc)
	if err != nil {
		log.WithError(err).Warn("Tenant skipped: store connection failed")
		return nil, err
	}

	outcome, err = jb.Run(ctx, env)
	if err != nil {
		log.WithError(err).WithField("category", common.Category(err)).Error("Tenant iteration failed")
		return nil, err
	}

	if outcome.Skipped {
		log.Debug("Up to date")
	} else {
		log.WithField("date", outcome.Date).
			Infof("Processed: %d groups, %d inserted, %d updated, %d failed",
				outcome.Groups, outcome.Write.Inserted, outcome.Write.Updated, outcome.Write.Failed)
	}
	return outcome, nil
}

// buildEnv resolves the tenant's store handles from the shared
// registries, connecting on first use.
func (r *Runner) buildEnv(desc *tenant.Descriptor) (*job.Env, error) {
	client, err := global.RegistryMongoClients.GetOrCreate(desc.Name, func() (*mongo.Client, error) {
		return database.ConnectMongo(desc.MongoURI, r.cfg.ConnectRetries)
	})
	if err != nil {
		return nil, common.NewError(common.ErrCodeMongoConnect, "tenant store unavailable", err)
	}

	var billing *sql.DB
	if desc.MariaDSN != "" {
		billing, err = global.RegistryBillingDBs.GetOrCreate(desc.Name, func() (*sql.DB, error) {
			return database.ConnectMaria(desc.MariaDSN, r.cfg.ConnectRetries)
		})
		if err != nil {
			return nil, common.NewError(common.ErrCodeMariaConnect, "billing store unavailable", err)
		}
	}

	return &job.Env{
		Tenant:       desc,
		Data:         client.Database(desc.MongoDatabase),
		Reports:      client.Database(desc.ReportDatabaseName()),
		Billing:      billing,
		Rules:        r.rules,
		Rates:        r.rates,
		Remaps:       r.remaps,
		Actor:        r.cfg.UpdatedBy,
		QueryTimeout: time.Duration(r.cfg.QueryTimeoutSeconds) * time.Second,
	}, nil
}

// Close releases every store handle opened during the run.
func (r *Runner) Close() {
	if _, err := global.RegistryMongoClients.ClearAll(database.CloseMongo); err != nil {
		logger.GetAppLogger().WithError(err).Warn("MongoDB cleanup reported errors")
	}
	if _, err := global.RegistryBillingDBs.ClearAll(database.CloseMaria); err != nil {
		logger.GetAppLogger().WithError(err).Warn("Billing cleanup reported errors")
	}
}
