package pipeline

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
)

// DefaultLookbackDays is how far back processing starts when a report
// collection is empty.
const DefaultLookbackDays = 2

// Watermark is the most recent civil date present in a report
// collection. Found is false when the collection is empty.
type Watermark struct {
	Last  time.Time
	Found bool
}

// WatermarkField describes where a report collection keeps its day
// marker. Layout is empty for BSON date fields and a time layout
// (2006-01-02) for collections that store the day as a string.
type WatermarkField struct {
	Name   string
	Layout string
}

// LatestDate reads the watermark from a report collection by fetching
// the single most recent record.
func LatestDate(ctx context.Context, coll *mongo.Collection, field WatermarkField) (Watermark, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: field.Name, Value: -1}}).
		SetProjection(bson.M{field.Name: 1})

	var doc bson.M
	err := coll.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Watermark{}, nil
		}
		return Watermark{}, common.ConvertMongoError(err)
	}

	switch v := doc[field.Name].(type) {
	case primitive.DateTime:
		return Watermark{Last: v.Time().UTC(), Found: true}, nil
	case string:
		layout := field.Layout
		if layout == "" {
			layout = "2006-01-02"
		}
		t, perr := time.ParseInLocation(layout, v, time.UTC)
		if perr != nil {
			return Watermark{}, common.NewError(common.ErrCodeAggregate, "malformed watermark value "+v, perr)
		}
		return Watermark{Last: t, Found: true}, nil
	default:
		return Watermark{}, common.NewError(common.ErrCodeAggregate, "unexpected watermark field type", nil)
	}
}

// NextDay resolves the civil day to process after the given watermark.
// The second return value is false when the tenant is already caught
// up and the run should skip it.
//
// An empty collection starts DefaultLookbackDays back from today. A
// found watermark advances exactly one day, and that day must have
// started already in tenant civil time.
func NextDay(w Watermark, now time.Time) (time.Time, bool) {
	if !w.Found {
		return CivilDate(now).AddDate(0, 0, -DefaultLookbackDays), true
	}
	next := CivilDate(w.Last).AddDate(0, 0, 1)
	if !next.Before(now) {
		return time.Time{}, false
	}
	return next, true
}
