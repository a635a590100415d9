package job

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/logger"
)

// IdentityNormalizeJob is the maintenance pass over the SMS by-day
// report collection: legacy client ids are rewritten to their
// canonical values, and sentinel ids are replaced with the record's
// own account name. Once every row carries a canonical value the job
// matches nothing and is a no-op.
type IdentityNormalizeJob struct{}

func NewIdentityNormalizeJob() *IdentityNormalizeJob {
	return &IdentityNormalizeJob{}
}

func (j *IdentityNormalizeJob) Name() string {
	return "identity_normalize"
}

func (j *IdentityNormalizeJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name}
	if env.Remaps == nil {
		outcome.Skipped = true
		return outcome, nil
	}

	coll := env.Reports.Collection(env.Tenant.OutputCollection)
	log := logger.GetAppLogger()
	now := time.Now().UTC()

	mappings := env.Remaps.Mappings(env.Tenant.Name)
	oldIDs := make([]string, 0, len(mappings))
	for oldID := range mappings {
		oldIDs = append(oldIDs, oldID)
	}
	// Stable application order for reproducible logs.
	sort.Strings(oldIDs)

	for _, oldID := range oldIDs {
		newID := mappings[oldID]

		qctx, cancel := env.QueryCtx(ctx)
		res, err := coll.UpdateMany(qctx,
			bson.M{"client_id": oldID},
			bson.M{"$set": bson.M{
				"client_id":    newID,
				"last_updated": now,
				"updated_by":   env.Actor,
			}})
		cancel()
		if err != nil {
			return nil, common.ConvertMongoError(err)
		}

		outcome.Groups++
		outcome.Write.Updated += res.ModifiedCount
		if res.ModifiedCount > 0 {
			log.WithField("tenant", env.Tenant.Name).
				Infof("Remapped client_id %q -> %q (%d records)", oldID, newID, res.ModifiedCount)
		}
	}

	// Sentinels rewrite from the record's own account_name, which
	// needs a pipeline update.
	for _, sentinel := range env.Remaps.Sentinels {
		qctx, cancel := env.QueryCtx(ctx)
		res, err := coll.UpdateMany(qctx,
			bson.M{"client_id": sentinel},
			mongo.Pipeline{
				{{Key: "$set", Value: bson.M{
					"client_id":    "$account_name",
					"last_updated": now,
					"updated_by":   env.Actor,
				}}},
			})
		cancel()
		if err != nil {
			return nil, common.ConvertMongoError(err)
		}

		outcome.Groups++
		outcome.Write.Updated += res.ModifiedCount
		if res.ModifiedCount > 0 {
			log.WithField("tenant", env.Tenant.Name).
				Infof("Rewrote sentinel %q from account_name (%d records)", sentinel, res.ModifiedCount)
		}
	}

	return outcome, nil
}
