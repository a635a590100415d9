package job

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/common"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/currency"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/global"
	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

// OrdersByChannelJob rolls up paid commerce orders per account,
// channel and payment provider, with revenue converted to USD through
// the configured exchange table.
type OrdersByChannelJob struct{}

func NewOrdersByChannelJob() *OrdersByChannelJob {
	return &OrdersByChannelJob{}
}

func (j *OrdersByChannelJob) Name() string {
	return "orders_by_channel"
}

type orderGroup struct {
	ID struct {
		AccountUID      primitive.ObjectID `bson:"account_uid"`
		ChannelType     string             `bson:"channel_type"`
		PaymentProvider string             `bson:"payment_provider"`
	} `bson:"_id"`
	TotalOrderAmount float64     `bson:"total_order_amount"`
	TotalOrders      int64       `bson:"total_orders"`
	AccountName      string      `bson:"account_name"`
	Country          string      `bson:"country"`
	Currency         interface{} `bson:"currency"`
}

func (j *OrdersByChannelJob) Run(ctx context.Context, env *Env) (*Outcome, error) {
	out := env.Reports.Collection(global.ColNames.OrdersByChannel)

	window, ok, err := resolveDay(ctx, env, out, pipeline.WatermarkField{Name: "date"})
	if err != nil {
		return nil, err
	}
	if !ok {
		return skipped(j.Name(), env), nil
	}

	excluded, err := env.Tenant.ExcludedObjectIDs()
	if err != nil {
		return nil, common.NewError(common.ErrCodeConfig, "invalid exclusion list", err)
	}

	dir, err := env.BillingDirectory(ctx)
	if err != nil {
		return nil, err
	}

	pipe := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":      "PAID",
			"created_on":  bson.M{"$gte": window.StartUTC, "$lt": window.EndUTC},
			"account_uid": bson.M{"$nin": excluded},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         global.ColNames.Accounts,
			"localField":   "account_uid",
			"foreignField": "_id",
			"as":           "account",
		}}},
		{{Key: "$unwind", Value: "$account"}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"account_uid":      "$account_uid",
				"channel_type":     "$channel_type",
				"payment_provider": "$payment_provider",
			},
			"total_order_amount": bson.M{"$sum": "$order_total"},
			"total_orders":       bson.M{"$sum": 1},
			"account_name":       bson.M{"$first": "$account.name"},
			"country":            bson.M{"$first": "$account.country"},
			"currency":           bson.M{"$first": bson.M{"$ifNull": bson.A{"$currency", "$account.available_currencies"}}},
		}}},
	}

	qctx, cancel := env.QueryCtx(ctx)
	defer cancel()

	cursor, err := env.Data.Collection(global.ColNames.Orders).Aggregate(qctx, pipe, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, common.ConvertMongoError(err)
	}
	defer cursor.Close(qctx)

	var groups []orderGroup
	if err := cursor.All(qctx, &groups); err != nil {
		return nil, common.NewError(common.ErrCodeDecode, "decode order groups", err)
	}

	outcome := &Outcome{Job: j.Name(), Tenant: env.Tenant.Name, Date: window.DateString(), Groups: len(groups)}
	if len(groups) == 0 {
		return outcome, nil
	}

	records := buildOrderRecords(groups, dir, env.Rates, window)

	wctx, wcancel := env.QueryCtx(ctx)
	defer wcancel()
	outcome.Write, err = pipeline.BulkUpsert(wctx, out, records, env.Actor)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func buildOrderRecords(groups []orderGroup, dir pipeline.BillingDirectory, rates *currency.Table, window pipeline.DayWindow) []pipeline.UpsertRecord {
	records := make([]pipeline.UpsertRecord, 0, len(groups))
	for _, g := range groups {
		uid := g.ID.AccountUID.Hex()
		cur := rates.Resolve(orderCurrencyCode(g.Currency), g.Country)

		amount := decimal.NewFromFloat(g.TotalOrderAmount)
		usd := rates.ToUSD(amount, cur)

		records = append(records, pipeline.UpsertRecord{
			Key: fmt.Sprintf("%s-%s-%s-%s", uid, window.DateString(), g.ID.ChannelType, g.ID.PaymentProvider),
			Fields: bson.M{
				"date":               window.CivilDate,
				"month":              window.MonthName(),
				"client_id":          dir.Lookup(uid).ClientID,
				"account_name":       g.AccountName,
				"account_uid":        g.ID.AccountUID,
				"channel_type":       g.ID.ChannelType,
				"payment_provider":   g.ID.PaymentProvider,
				"total_order_amount": g.TotalOrderAmount,
				"total_orders":       g.TotalOrders,
				"currency_code":      cur.Code,
				"currency_symbol":    cur.Symbol,
				"exchange_rate":      cur.Rate.InexactFloat64(),
				"total_in_usd":       usd.InexactFloat64(),
			},
		})
	}
	return records
}

// orderCurrencyCode digs the currency code out of whatever shape the
// order carries: a plain code, a currency document, or the account's
// available_currencies array.
func orderCurrencyCode(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bson.M:
		if code, ok := t["code"].(string); ok {
			return code
		}
	case bson.D:
		for _, e := range t {
			if e.Key == "code" {
				if code, ok := e.Value.(string); ok {
					return code
				}
			}
		}
	case bson.A:
		if len(t) > 0 {
			return orderCurrencyCode(t[0])
		}
	}
	return ""
}
