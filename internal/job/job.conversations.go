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

// conversationFeature gates account eligibility for the conversation
// rollups.
const conversationFeature = "conversation"

// ConversationsByChannelJob counts conversations per eligible account
// and channel. Partner accounts, excluded accounts and accounts
// without the conversation feature stay out of the rollup.
type ConversationsByChannelJob struct{}

func NewConversationsByChannelJob() *ConversationsByChannelJob {
	return &ConversationsByChannelJob{}
}

func (j *ConversationsByChannelJob) Name() string {
	return "conversations_by_channel"
}

type conversationGroup struct {
	ID struct {
		AccountUID  primitive.ObjectID `bson:"account_uid"`
		ChannelType string             `bson:"channel_type"`
	} `bson:"_id"`
	TotalConversations int64 `bson:"total_conversations"`
}

// eligibleAccount is the projection of an account row used by the
// conversation jobs.
type eligibleAccount struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
}

// loadEligibleAccounts fetches accounts allowed into conversation
// rollups and returns their ids plus an id to name map.
func loadEligibleAccounts(ctx context.Context, env *Env) ([]primitive.ObjectID, map[string]string, error) {
	excluded, err := env.Tenant.ExcludedObjectIDs()
	if err != nil {
		return nil, nil, common.NewError(common.ErrCodeConfig, "invalid exclusion list", err)
	}

	filter := bson.M{
		"reach.partner":         bson.M{"$exists": false},
		"_id":                   bson.M{"$nin": excluded},
		"csms.features_enabled": bson.M{"$in": bson.A{conversationFeature}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Accounts).Find(qctx, filter,
		options.Find().SetProjection(bson.M{"_id": 1, "name": 1}))
	if err != nil {
		return nil, nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var accounts []eligibleAccount
	if err := cursor.All(qctx, &accounts); err != nil {
		return nil, nil, common.NewError(common.ErrCodeDecode, "decode eligible accounts", err)
	}

	ids := make([]primitive.ObjectID, 0, len(accounts))
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
		names[a.ID.Hex()] = a.Name
	}
	return ids, names, nil
}

func (j *ConversationsByChannelJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(global.ColNames.ConversationsByType)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "date"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	ids, names, err := loadEligibleAccounts(ctx, env)
	if err != nil {
		return nil, err
	}

	dir, err := env.BillingDirectory(ctx)
	if err != nil {
		return nil, err
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"created_on":  bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
			"account_uid": bson.M{"$in": ids},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"account_uid":  "$account_uid",
				"channel_type": "$channel_type",
			},
			"total_conversations": bson.M{"$sum": 1},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Conversations).Aggregate(qctx, pipe)
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var groups []conversationGroup
	if err := cursor.All(qctx, &groups); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode conversation groups", err)
	}

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString(), Groups: len(groups)}
	if len(groups) == 0 {
		return outcome, nil
	}

	records := buildConversationRecords(groups, names, dir, window)

	wctx, wcancel := env.QueryCtx(ctx)
	defer wcancel()
	outcome.Write, err = pipeline.BulkUpsert(wctx, out, records, env.Actor)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func buildConversationRecords(groups []conversationGroup, names map[string]string, dir pipeline.BillingDirectory, window pipeline.DayWindow) []pipeline.UpsertRecord {
	records := make([]pipeline.UpsertRecord, 0, len(groups))
	for _, g := range groups {
		uid := g.ID.AccountUID.Hex()
		name := names[uid]
		if name == "" {
			name = pipeline.UnknownValue
		}
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s-%s", uid, window.DateString(), g.ID.ChannelType),
			Fields: bson.M{
				"date":                window.CivilDate,
				"month":               window.MonthName(),
				"client_id":           dir.Lookup(uid).ClientID,
				"account_uid":         g.ID.AccountUID,
				"account_name":        name,
				"channel_type":        g.ID.ChannelType,
				"total_conversations": g.TotalConversations,
			},
		})
	}
	return records
}
