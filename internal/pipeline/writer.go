package pipeline

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// UpsertRecord is one report row headed for a bulk upsert. Key is the
// deterministic _id of the row; writing the same key twice for the
// same day must converge to the same document.
type UpsertRecord struct {
	Key    string
	Fields bson.M
}

// WriteResult reports the outcome of one bulk upsert batch.
type WriteResult struct {
	Inserted int64
	Updated  int64
	Failed   int64
}

// Total returns the number of rows that reached the collection.
func (r WriteResult) Total() int64 {
	return r.Inserted + r.Updated
}

// BuildModels turns upsert records into unordered bulk write models.
// Every row is stamped with last_updated and updated_by. Values are
// written absolute with $set, so replays converge instead of
// accumulating.
func BuildModels(records []UpsertRecord, actor string, now time.Time) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		fields := bson.M{
			"last_updated": now.UTC(),
			"updated_by":   actor,
		}
		for k, v := range rec.Fields {
			fields[k] = v
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": rec.Key}).
			SetUpdate(bson.M{"$set": fields}).
			SetUpsert(true))
	}
	return models
}

// BulkUpsert writes a batch of report rows. The batch is unordered, a
// failed row does not stop the rest, and partial failure is reported
// in the result instead of aborting. No write is issued for an empty
// batch.
func BulkUpsert(ctx context.Context, coll *mongo.Collection, records []UpsertRecord, actor string) (WriteResult, error) {
	if len(records) == 0 {
		return WriteResult{}, nil
	}

	models := BuildModels(records, actor, time.Now())
	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) && res != nil {
			return WriteResult{
				Inserted: res.UpsertedCount,
				Updated:  res.ModifiedCount,
				Failed:   int64(len(bwe.WriteErrors)),
			}, nil
		}
		return WriteResult{}, common.ConvertMongoError(err)
	}

	return WriteResult{Inserted: res.UpsertedCount, Updated: res.ModifiedCount}, nil
}
