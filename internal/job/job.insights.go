package job

import (
	"context"
	"fmt"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

// ConversationInsightsJob builds the per-account conversation quality
// report: volumes, response behavior, session durations and the
// hour-of-day activity profile, overall and per channel.
//
// Ratio metrics with a zero denominator are omitted from the record
// rather than written as NaN or Inf.
type ConversationInsightsJob struct{}

func NewConversationInsightsJob() *ConversationInsightsJob {
	return &ConversationInsightsJob{}
}

func (j *ConversationInsightsJob) Name() string {
	return "conversation_insights"
}

// insightGroup is one (account, channel) aggregation group with the
// raw pushed arrays the Go side derives metrics from.
type insightGroup struct {
	ID struct {
		AccountUID  primitive.ObjectID `bson:"account_uid"`
		ChannelType string             `bson:"channel_type"`
	} `bson:"_id"`
	AccountName       string     `bson:"account_name"`
	ClientID          string     `bson:"client_id"`
	Total             int64      `bson:"total"`
	IncomingMessages  int64      `bson:"incoming_messages"`
	OutgoingMessages  int64      `bson:"outgoing_messages"`
	TotalResponseTime int64      `bson:"total_response_time"`
	TotalResponses    int64      `bson:"total_responses"`
	FirstReplies      []*float64 `bson:"first_replies"`
	NewProfiles       int64      `bson:"new_profiles"`
	Closed            int64      `bson:"closed_conversations"`
	Unanswered        int64      `bson:"unanswered_conversations"`
	Hours             []int32    `bson:"hours"`
	DurationsMillis   []*int64   `bson:"durations"`
}

func (j *ConversationInsightsJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(global.ColNames.ConversationInsights)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "date", Layout: "2006-01-02"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"created_on": bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.Accounts,
			"localField":   "account_uid",
			"foreignField": "_id",
			"as":           "account_info",
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"account_uid":  "$account_uid",
				"channel_type": "$channel_type",
			},
			"account_name":        bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$account_info.name", 0}}},
			"client_id":           bson.M{"$first": bson.M{"$arrayElemAt": bson.A{"$account_info.client_id", 0}}},
			"total":               bson.M{"$sum": 1},
			"incoming_messages":   bson.M{"$sum": "$incoming_messages"},
			"outgoing_messages":   bson.M{"$sum": "$outgoing_messages"},
			"total_response_time": bson.M{"$sum": "$total_response_time"},
			"total_responses":     bson.M{"$sum": "$total_responses"},
			"first_replies":       bson.M{"$push": bson.M{"$ifNull": bson.A{"$first_reply.seconds", nil}}},
			"new_profiles":        bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$is_new_profile", true}}, 1, 0}}},
			"closed_conversations": bson.M{
				"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$state", "CLOSED"}}, 1, 0}},
			},
			"unanswered_conversations": bson.M{
				"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$unanswered", true}}, 1, 0}},
			},
			"hours":     bson.M{"$push": bson.M{"$hour": "$created_on"}},
			"durations": bson.M{"$push": bson.M{"$subtract": bson.A{"$valid_thru", "$valid_since"}}},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Conversations).Aggregate(qctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var groups []insightGroup
	if err := cursor.All(qctx, &groups); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode insight groups", err)
	}

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString(), Groups: len(groups)}
	if len(groups) == 0 {
		return outcome, nil
	}

	records := buildInsightRecords(groups, window)

	wctx, wcancel := env.QueryCtx(ctx)
	defer wcancel()
	outcome.Write, err = pipeline.BulkUpsert(wctx, out, records, env.Actor)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// buildInsightRecords regroups channel rows per account and derives
// the report metrics. One record per account per day.
func buildInsightRecords(groups []insightGroup, window pipeline.DayWindow) []pipeline.UpsertRecord {
	byAccount := make(map[string][]insightGroup)
	var order []string
	for _, g := range groups {
		uid := g.ID.AccountUID.Hex()
		if _, seen := byAccount[uid]; !seen {
			order = append(order, uid)
		}
		byAccount[uid] = append(byAccount[uid], g)
	}

	records := make([]pipeline.UpsertRecord, 0, len(byAccount))
	for _, uid := range order {
		channels := byAccount[uid]
		first := channels[0]

		var total, newProfiles, closed, unanswered int64
		hourly := make(map[int32]int64)
		for _, ch := range channels {
			total += ch.Total
			newProfiles += ch.NewProfiles
			closed += ch.Closed
			unanswered += ch.Unanswered
			for _, h := range ch.Hours {
				hourly[h]++
			}
		}

		profiles := bson.M{
			"new":       newProfiles,
			"returning": total - newProfiles,
		}
		if newProfiles > 0 {
			profiles["conversion_rate"] = ratio(total-newProfiles, newProfiles)
		}

		engagement := bson.M{}
		if avg, ok := avgSessionSeconds(channels); ok {
			engagement["avg_session_duration"] = avg
		}
		if total > 0 {
			engagement["response_rate"] = ratio(total-unanswered, total)
			engagement["completion_rate"] = ratio(closed, total)
		}

		clientID := first.ClientID
		if clientID == "" {
			clientID = pipeline.SentinelNoClientID
		}
		accountName := first.AccountName
		if accountName == "" {
			accountName = pipeline.UnknownValue
		}

		busiest, quietest := peakHours(hourly)
		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s", uid, window.DateString()),
			Fields: bson.M{
				"date":         window.DateString(),
				"account_uid":  first.ID.AccountUID,
				"account_name": accountName,
				"client_id":    clientID,
				"total_metrics": bson.M{
					"conversations": total,
					"profiles":      profiles,
					"engagement":    engagement,
					"peak_hours": bson.M{
						"busiest_hour":  busiest,
						"quietest_hour": quietest,
					},
				},
				"channels":             channelMetrics(channels),
				"channel_distribution": channelDistribution(channels, total),
			},
		})
	}
	return records
}

func channelMetrics(channels []insightGroup) bson.A {
	out := make(bson.A, 0, len(channels))
	for _, ch := range channels {
		responseTimes := bson.M{}
		if avg, ok := avgFirstReplySeconds(ch.FirstReplies); ok {
			responseTimes["first_reply_seconds"] = avg
		}
		if ch.TotalResponses > 0 {
			responseTimes["avg_response_seconds"] = int64(math.Round(float64(ch.TotalResponseTime) / float64(ch.TotalResponses)))
		}

		patterns := bson.M{
			"messages_distribution": bson.M{
				"incoming": ch.IncomingMessages,
				"outgoing": ch.OutgoingMessages,
			},
		}
		quality := bson.M{}
		if ch.Total > 0 {
			patterns["avg_messages_per_conversation"] = int64(math.Round(float64(ch.IncomingMessages+ch.OutgoingMessages) / float64(ch.Total)))
			quality["response_rate"] = ratio(ch.Total-ch.Unanswered, ch.Total)
			quality["completion_rate"] = ratio(ch.Closed, ch.Total)
		}

		out = append(out, bson.M{
			"channel": ch.ID.ChannelType,
			"metrics": bson.M{
				"conversations": bson.M{
					"total":              ch.Total,
					"new_profiles":       ch.NewProfiles,
					"returning_profiles": ch.Total - ch.NewProfiles,
				},
				"response_times":     responseTimes,
				"message_patterns":   patterns,
				"quality_indicators": quality,
			},
		})
	}
	return out
}

func channelDistribution(channels []insightGroup, total int64) bson.A {
	out := make(bson.A, 0, len(channels))
	for _, ch := range channels {
		entry := bson.M{"channel": ch.ID.ChannelType}
		if total > 0 {
			entry["percentage"] = ratio(ch.Total, total)
		}
		out = append(out, entry)
	}
	return out
}

// ratio returns part/whole as a percentage rounded to one decimal.
// Callers must guarantee whole > 0.
func ratio(part, whole int64) float64 {
	return math.Round(float64(part)/float64(whole)*1000) / 10
}

// avgFirstReplySeconds averages the non-null first reply samples.
func avgFirstReplySeconds(samples []*float64) (int64, bool) {
	var sum float64
	var n int
	for _, s := range samples {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return int64(math.Round(sum / float64(n))), true
}

// avgSessionSeconds averages the per-channel mean conversation
// duration, in seconds. Channels without any measured duration do not
// contribute.
func avgSessionSeconds(channels []insightGroup) (int64, bool) {
	var sum float64
	var n int
	for _, ch := range channels {
		var chSum float64
		var chN int
		for _, d := range ch.DurationsMillis {
			if d != nil {
				chSum += float64(*d)
				chN++
			}
		}
		if chN == 0 {
			continue
		}
		sum += chSum / float64(chN)
		n++
	}
	if n == 0 {
		return 0, false
	}
	return int64(math.Round(sum / float64(n) / 1000)), true
}

// peakHours returns the busiest and quietest hour of the histogram.
func peakHours(hourly map[int32]int64) (int32, int32) {
	var busiest, quietest int32
	var max int64 = -1
	var min int64 = math.MaxInt64
	for h := int32(0); h < 24; h++ {
		count, ok := hourly[h]
		if !ok {
			continue
		}
		if count > max {
			max = count
			busiest = h
		}
		if count < min {
			min = count
			quietest = h
		}
	}
	return busiest, quietest
}
