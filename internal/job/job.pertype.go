package job

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

// TransactionsPerTypeJob writes one OK row and one ERROR row per
// account per day. Both branches come out of a single faceted
// aggregation pass over the day's outbound SMS traffic.
type TransactionsPerTypeJob struct{}

func NewTransactionsPerTypeJob() *TransactionsPerTypeJob {
	return &TransactionsPerTypeJob{}
}

func (j *TransactionsPerTypeJob) Name() string {
	return "transactions_per_type"
}

type perTypeOkGroup struct {
	ID struct {
		AccountUID primitive.ObjectID `bson:"account_uid"`
	} `bson:"_id"`
	AccountName string `bson:"account_name"`
	SmsOK       int64  `bson:"sms_ok"`
	SmsError    int64  `bson:"sms_error"`
}

type perTypeErrorDetail struct {
	ErrorCode        int32  `bson:"error_code"`
	ErrorDescription string `bson:"error_description"`
	Total            int64  `bson:"total"`
}

type perTypeErrorGroup struct {
	ID struct {
		AccountUID primitive.ObjectID `bson:"account_uid"`
	} `bson:"_id"`
	AccountName  string               `bson:"account_name"`
	TotalErrors  int64                `bson:"total_errors"`
	ErrorDetails []perTypeErrorDetail `bson:"error_details"`
}

type perTypeFacets struct {
	OK    []perTypeOkGroup    `bson:"ok"`
	Error []perTypeErrorGroup `bson:"error"`
}

func (j *TransactionsPerTypeJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(global.ColNames.TransactionsPerType)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "datetime", Layout: "2006-01-02"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"datetime":     bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
			"channel_type": "SMS",
			"direction":    "OUT",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.Accounts,
			"localField":   "account_uid",
			"foreignField": "_id",
			"as":           "account_info",
		}}},
		{{Key: "$facet", Value: bson.M{
			"ok": bson.A{
				bson.M{"$group": bson.M{
					"_id":          bson.M{"account_uid": "$account_uid"},
					"account_name": bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$account_info.name", 0}}},
					"sms_ok":       bson.M{"$sum": bson.M{"$subtract": bson.A{"$sms_parts", "$error_count"}}},
					"sms_error":    bson.M{"$sum": "$error_count"},
				}},
				bson.M{"$match": bson.M{"sms_ok": bson.M{"$gt": 0}}},
			},
			"error": bson.A{
				bson.M{"$match": bson.M{"delivery_status": "ERROR"}},
				bson.M{"$lookup": bson.M{
					"from":         global.ColNames.DlrStatusCode,
					"localField":   "delivery_error_code",
					"foreignField": "dlr_status_code_id",
					"as":           "error_info",
				}},
				bson.M{"$group": bson.M{
					"_id": bson.M{
						"account_uid": "$account_uid",
						"error_code":  "$delivery_error_code",
					},
					"account_name":      bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$account_info.name", 0}}},
					"error_description": bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$error_info.description", 0}}},
					"total":             bson.M{"$sum": 1},
				}},
				bson.M{"$group": bson.M{
					"_id":          bson.M{"account_uid": "$_id.account_uid"},
					"account_name": bson.M{"$first": "$account_name"},
					"total_errors": bson.M{"$sum": "$total"},
					"error_details": bson.M{"$push": bson.M{
						"error_code":        "$_id.error_code",
						"error_description": "$error_description",
						"total":             "$total",
					}},
				}},
			},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Transactions).Aggregate(qctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var facets []perTypeFacets
	if err := cursor.All(qctx, &facets); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode facet results", err)
	}

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString()}
	if len(facets) == 0 {
		return outcome, nil
	}

	records := buildPerTypeRecords(facets[0], window)
	outcome.Groups = len(records)
	if len(records) == 0 {
		return outcome, nil
	}

	wctx, wcancel := env.QueryCtx(ctx)
	defer wcancel()
	outcome.Write, err = pipeline.BulkUpsert(wctx, out, records, env.Actor)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// buildPerTypeRecords flattens the two facet branches into typed rows.
// Each account gets at most one OK row and one ERROR row per day.
func buildPerTypeRecords(facets perTypeFacets, window pipeline.DayWindow) []pipeline.UpsertRecord {
	records := make([]pipeline.UpsertRecord, 0, len(facets.OK)+len(facets.Error))

	for _, g := range facets.OK {
		uid := g.ID.AccountUID.Hex()
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s-OK", uid, window.DateString()),
			Fields: bson.M{
				"datetime":          window.DateString(),
				"account_uid":       g.ID.AccountUID,
				"client_id":         derivedClientID(g.AccountName),
				"account_name":      fallbackName(g.AccountName),
				"type":              "OK",
				"total":             g.SmsOK,
				"error_code":        nil,
				"error_description": nil,
			},
		})
	}

	for _, g := range facets.Error {
		uid := g.ID.AccountUID.Hex()
		details := make(bson.A, 0, len(g.ErrorDetails))
		for _, d := range g.ErrorDetails {
			details = append(details, bson.M{
				"error_code":        d.ErrorCode,
				"error_description": d.ErrorDescription,
				"total":             d.Total,
			})
		}
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s-ERROR", uid, window.DateString()),
			Fields: bson.M{
				"datetime":      window.DateString(),
				"account_uid":   g.ID.AccountUID,
				"client_id":     derivedClientID(g.AccountName),
				"account_name":  fallbackName(g.AccountName),
				"type":          "ERROR",
				"total_errors":  g.TotalErrors,
				"error_details": details,
			},
		})
	}

	return records
}

// derivedClientID builds the dashboard client key from an account
// name when no billing identity is involved.
func derivedClientID(accountName string) string {
	if accountName == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(strings.Join(strings.Fields(accountName), "_"))
}

func fallbackName(accountName string) string {
	if accountName == "" {
		return unknownAccountName
	}
	return accountName
}
