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

// SmsByDayJob aggregates outbound SMS volume per account and channel
// into the tenant's by-day report collection, enriched with billing
// identity.
type SmsByDayJob struct{}

func NewSmsByDayJob() *SmsByDayJob {
	return &SmsByDayJob{}
}

func (j *SmsByDayJob) Name() string {
	return "sms_byday"
}

// smsGroup is one aggregation group: an (account, channel) pair and
// its message part totals for the day.
type smsGroup struct {
	ID struct {
		AccountUID        primitive.ObjectID `bson:"account_uid"`
		ChannelIdentifier string             `bson:"channel_identifier"`
	} `bson:"_id"`
	SmsOK    int64 `bson:"sms_ok"`
	SmsError int64 `bson:"sms_error"`
}

func (j *SmsByDayJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(env.Tenant.OutputCollection)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "date"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	dir, err := env.BillingDirectory(ctx)
	if err != nil {
		return nil, err
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"direction":    "OUT",
			"channel_type": "SMS",
			"datetime":     bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"account_uid":        "$account_uid",
				"channel_identifier": "$channel_identifier",
			},
			"sms_ok":    bson.M{"$sum": bson.M{"$subtract": bson.A{"$sms_parts", "$error_count"}}},
			"sms_error": bson.M{"$sum": "$error_count"},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Transactions).Aggregate(qctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var groups []smsGroup
	if err := cursor.All(qctx, &groups); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode sms groups", err)
	}

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString(), Groups: len(groups)}
	if len(groups) == 0 {
		return outcome, nil
	}

	records := buildSmsRecords(groups, dir, window)

	wctx, wcancel := env.QueryCtx(ctx)
	defer wcancel()
	outcome.Write, err = pipeline.BulkUpsert(wctx, out, records, env.Actor)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// buildSmsRecords maps aggregation groups onto report rows. The row
// key is account-channel-date so replays of the same day converge.
func buildSmsRecords(groups []smsGroup, dir pipeline.BillingDirectory, window pipeline.DayWindow) []pipeline.UpsertRecord {
	records := make([]pipeline.UpsertRecord, 0, len(groups))
	for _, g := range groups {
		uid := g.ID.AccountUID.Hex()
		identity := dir.Lookup(uid)
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s-%s", uid, g.ID.ChannelIdentifier, window.DateString()),
			Fields: bson.M{
				"account_uid":        uid,
				"client_id":          identity.ClientID,
				"account_name":       identity.AccountName,
				"channel_identifier": g.ID.ChannelIdentifier,
				"date_gtm6":          window.DateString(),
				"date":               window.CivilDate,
				"sms_ok":             g.SmsOK,
				"sms_error":          g.SmsError,
			},
		})
	}
	return records
}
