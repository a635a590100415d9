package job

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

// Fallbacks for lookups that resolve to nothing.
const (
	unknownAccountName = "Unknown account"
	unknownErrorDesc   = "Unknown error"
)

// ErrorsByDayJob counts failed SMS deliveries per account and delivery
// error code, joined against the account and error code catalogs.
type ErrorsByDayJob struct{}

func NewErrorsByDayJob() *ErrorsByDayJob {
	return &ErrorsByDayJob{}
}

func (j *ErrorsByDayJob) Name() string {
	return "errors_by_day"
}

type errorGroup struct {
	ID struct {
		AccountUID primitive.ObjectID `bson:"account_uid"`
		ErrorCode  int32              `bson:"error_code"`
	} `bson:"_id"`
	AccountName      string `bson:"account_name"`
	ErrorDescription string `bson:"error_description"`
	TotalErrors      int64  `bson:"total_errors"`
}

func (j *ErrorsByDayJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(global.ColNames.ErrorsPerDay)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "datetime", Layout: "2006-01-02"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"datetime":        bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
			"delivery_status": "ERROR",
			"channel_type":    "SMS",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.Accounts,
			"localField":   "account_uid",
			"foreignField": "_id",
			"as":           "account_info",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.DlrStatusCode,
			"localField":   "delivery_error_code",
			"foreignField": "dlr_status_code_id",
			"as":           "error_info",
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"account_uid": "$account_uid",
				"error_code":  "$delivery_error_code",
			},
			"account_name":      bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$account_info.name", 0}}},
			"error_description": bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$error_info.description", 0}}},
			"total_errors":      bson.M{"$sum": 1},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Transactions).Aggregate(qctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var groups []errorGroup
	if err := cursor.All(qctx, &groups); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode error groups", err)
	}

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString(), Groups: len(groups)}
	if len(groups) == 0 {
		return outcome, nil
	}

	records := buildErrorRecords(groups, window)

	wctx, wcancel := env.QueryCtx(ctx)
	defer wcancel()
	outcome.Write, err = pipeline.BulkUpsert(wctx, out, records, env.Actor)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func buildErrorRecords(groups []errorGroup, window pipeline.DayWindow) []pipeline.UpsertRecord {
	records := make([]pipeline.UpsertRecord, 0, len(groups))
	for _, g := range groups {
		uid := g.ID.AccountUID.Hex()
		accountName := g.AccountName
		if accountName == "" {
			accountName = unknownAccountName
		}
		description := g.ErrorDescription
		if description == "" {
			description = unknownErrorDesc
		}
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s-%d", uid, window.DateString(), g.ID.ErrorCode),
			Fields: bson.M{
				"datetime":          window.DateString(),
				"account_uid":       g.ID.AccountUID,
				"account_name":      accountName,
				"error_code":        g.ID.ErrorCode,
				"error_description": description,
				"total_errors":      g.TotalErrors,
			},
		})
	}
	return records
}
