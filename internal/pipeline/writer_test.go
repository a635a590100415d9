package pipeline

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBuildModels(t *testing.T) {
	now := time.Date(2025, 3, 11, 8, 30, 0, 0, time.UTC)
	records := []UpsertRecord{
		{Key: "acc1-2025-03-10", Fields: bson.M{"sms_ok": int64(5)}},
		{Key: "acc2-2025-03-10", Fields: bson.M{"sms_ok": int64(2)}},
	}

	models := BuildModels(records, "updater", now)
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}

	m, ok := models[0].(*mongo.UpdateOneModel)
	if !ok {
		t.Fatalf("model type = %T", models[0])
	}
	if m.Upsert == nil || !*m.Upsert {
		t.Error("model must upsert")
	}

	filter, ok := m.Filter.(bson.M)
	if !ok || filter["_id"] != "acc1-2025-03-10" {
		t.Errorf("filter = %v, want deterministic _id", m.Filter)
	}

	update, ok := m.Update.(bson.M)
	if !ok {
		t.Fatalf("update type = %T", m.Update)
	}
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatal("update must use $set with absolute values")
	}
	if set["sms_ok"] != int64(5) {
		t.Errorf("sms_ok = %v", set["sms_ok"])
	}
	if set["updated_by"] != "updater" {
		t.Errorf("updated_by = %v", set["updated_by"])
	}
	if set["last_updated"] != now {
		t.Errorf("last_updated = %v, want %v", set["last_updated"], now)
	}
}

func TestBuildModelsIdempotentShape(t *testing.T) {
	// The same record built twice must target the same _id with the
	// same absolute values: replaying a day converges.
	rec := []UpsertRecord{{Key: "acc1-2025-03-10", Fields: bson.M{"total": int64(7)}}}
	now := time.Now()

	a := BuildModels(rec, "updater", now)[0].(*mongo.UpdateOneModel)
	b := BuildModels(rec, "updater", now)[0].(*mongo.UpdateOneModel)

	if a.Filter.(bson.M)["_id"] != b.Filter.(bson.M)["_id"] {
		t.Error("same record produced different keys")
	}
	av := a.Update.(bson.M)["$set"].(bson.M)["total"]
	bv := b.Update.(bson.M)["$set"].(bson.M)["total"]
	if av != bv {
		t.Error("same record produced different values")
	}
}
