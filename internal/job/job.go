// Package job holds the aggregation job variants. Every job follows
// the same shape: resolve the watermark of its report collection, skip
// when caught up, compute the day window, aggregate the source store,
// enrich, and bulk-upsert one civil day of report rows.
package job

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/classify"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/currency"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/tenant"
)

// Env is everything a job needs to run against one tenant. Store
// handles are opened by the runner before the job starts; Billing is
// nil for tenants without a billing store.
type Env struct {
	Tenant  *tenant.Descriptor
	Data    *mongo.Database
	Reports *mongo.Database
	Billing *sql.DB

	Rules  *classify.Cascade
	Rates  *currency.Table
	Remaps *RemapSet

	Actor        string
	QueryTimeout time.Duration
}

// QueryCtx derives a context bounded by the configured per-query
// timeout.
func (e *Env) QueryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.QueryTimeout)
}

// BillingDirectory loads the tenant's billing directory, or an empty
// directory when the tenant has no billing store configured.
func (e *Env) BillingDirectory(ctx context.Context) (pipeline.BillingDirectory, error) {
	if e.Billing == nil {
		return pipeline.BillingDirectory{}, nil
	}
	qctx, cancel := e.QueryCtx(ctx)
	defer cancel()
	return pipeline.LoadBillingDirectory(qctx, e.Billing)
}

// Outcome summarizes one job run against one tenant.
type Outcome struct {
	Job     string
	Tenant  string
	Skipped bool
	Date    string
	Groups  int
	Write   pipeline.WriteResult
}

func (o *Outcome) String() string {
	if o.Skipped {
		return fmt.Sprintf("%s/%s: up to date", o.Job, o.Tenant)
	}
	return fmt.Sprintf("%s/%s %s: %d groups, %d inserted, %d updated, %d failed",
		o.Job, o.Tenant, o.Date, o.Groups, o.Write.Inserted, o.Write.Updated, o.Write.Failed)
}

// Job is one aggregation job variant.
type Job interface {
	Name() string
	Run(ctx context.Context, env *Env) (*Outcome, error)
}

// resolveDay reads the watermark of a report collection and decides
// the civil day to process. ok is false when the tenant is caught up.
func resolveDay(ctx context.Context, env *Env, coll *mongo.Collection, field pipeline.WatermarkField) (pipeline.DayWindow, bool, error) {
	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	wm, err := pipeline.LatestDate(qctx, coll, field)
	if err != nil {
		return pipeline.DayWindow{}, false, err
	}
	day, ok := pipeline.NextDay(wm, time.Now().UTC())
	if !ok {
		return pipeline.DayWindow{}, false, nil
	}
	return pipeline.ComputeWindow(day, env.Tenant.UTCOffsetHours), true, nil
}

// skipped builds the caught-up outcome shared by all jobs.
func skipped(name string, env *Env) *Outcome {
	return &Outcome{Job: name, Tenant: env.Tenant.Name, Skipped: true}
}
