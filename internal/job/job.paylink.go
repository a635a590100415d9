package job

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/classify"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

// PaymentLinksJob detects payment links sent through conversations and
// classifies each one with the configured rule cascade. The store-side
// regex prefilter narrows the candidate set; the authoritative
// classification happens here, where rule order and exclusions apply.
type PaymentLinksJob struct{}

func NewPaymentLinksJob() *PaymentLinksJob {
	return &PaymentLinksJob{}
}

func (j *PaymentLinksJob) Name() string {
	return "payment_links"
}

// paymentCandidate is one message that passed the store-side
// prefilter.
type paymentCandidate struct {
	AccountUID      primitive.ObjectID  `bson:"account_uid"`
	ConversationUID *primitive.ObjectID `bson:"conversation_uid"`
	Content         string              `bson:"content"`
	Direction       string              `bson:"direction"`
	Datetime        time.Time           `bson:"datetime"`
	AccountName     string              `bson:"account_name"`
	Alias           string              `bson:"alias"`
	ChannelType     string              `bson:"channel_type"`
}

func (j *PaymentLinksJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(global.ColNames.ExternalPayments)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "datetime", Layout: "2006-01-02"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	prefilter := make(bson.A, 0, env.Rules.Len())
	for _, pattern := range env.Rules.Patterns() {
		prefilter = append(prefilter, bson.M{"content": bson.M{"$regex": pattern, "$options": "i"}})
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"datetime":         bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
			"conversation_uid": bson.M{"$exists": true},
			"$or":              prefilter,
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.Conversations,
			"localField":   "conversation_uid",
			"foreignField": "_id",
			"as":           "conversation_info",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.Accounts,
			"localField":   "account_uid",
			"foreignField": "_id",
			"as":           "account_info",
		}}},
		{{Key: "$project", Value: bson.M{
			"account_uid":      1,
			"conversation_uid": 1,
			"content":          1,
			"direction":        1,
			"datetime":         1,
			"account_name":     bson.M{"$arrayElemAt": bson.A{"$account_info.name", 0}},
			"alias":            bson.M{"$arrayElemAt": bson.A{"$conversation_info.alias", 0}},
			"channel_type":     bson.M{"$arrayElemAt": bson.A{"$conversation_info.channel_type", 0}},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Transactions).Aggregate(qctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var candidates []paymentCandidate
	if err := cursor.All(qctx, &candidates); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode payment candidates", err)
	}

	records := buildPaymentRecords(candidates, env.Rules, window)

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString(), Groups: len(records)}
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

// buildPaymentRecords classifies each candidate and folds them into
// one record per account per day.
func buildPaymentRecords(candidates []paymentCandidate, rules *classify.Cascade, window pipeline.DayWindow) []pipeline.UpsertRecord {
	type accountLinks struct {
		uid        primitive.ObjectID
		name       string
		total      int64
		internal   int64
		external   int64
		processors map[string]int64
		links      bson.A
	}

	byAccount := make(map[string]*accountLinks)
	var order []string
	for _, c := range candidates {
		cls := rules.Classify(c.Content)

		uid := c.AccountUID.Hex()
		acc, seen := byAccount[uid]
		if !seen {
			acc = &accountLinks{uid: c.AccountUID, name: c.AccountName, processors: make(map[string]int64)}
			byAccount[uid] = acc
			order = append(order, uid)
		}

		acc.total++
		acc.processors[cls.Processor]++
		switch cls.Type {
		case classify.TypeInternal:
			acc.internal++
		case classify.TypeExternal:
			acc.external++
		}

		acc.links = append(acc.links, bson.M{
			"conversation_uid": c.ConversationUID,
			"alias":            c.Alias,
			"channel_type":     c.ChannelType,
			"content":          c.Content,
			"direction":        c.Direction,
			"datetime":         c.Datetime,
			"payment_info": bson.M{
				"type":      cls.Type,
				"processor": cls.Processor,
				"domain":    cls.Domain,
			},
		})
	}

	records := make([]pipeline.UpsertRecord, 0, len(byAccount))
	for _, uid := range order {
		acc := byAccount[uid]
		name := acc.name
		if name == "" {
			name = unknownAccountName
		}
		processors := bson.M{}
		for proc, count := range acc.processors {
			processors[proc] = count
		}
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s", uid, window.DateString()),
			Fields: bson.M{
				"datetime":     window.DateString(),
				"account_uid":  acc.uid,
				"account_name": name,
				"summary": bson.M{
					"total_links": acc.total,
					"processors":  processors,
					"types": bson.M{
						"INTERNAL": acc.internal,
						"EXTERNAL": acc.external,
					},
				},
				"links": acc.links,
			},
		})
	}
	return records
}
