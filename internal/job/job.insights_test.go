package job

import (
	"testing"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }

func TestRatio(t *testing.T) {
	cases := []struct {
		part, whole int64
		want        float64
	}{
		{1, 2, 50.0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{0, 5, 0.0},
		{5, 5, 100.0},
	}
	for _, c := range cases {
		if got := ratio(c.part, c.whole); got != c.want {
			t.Errorf("ratio(%d, %d) = %v, want %v", c.part, c.whole, got, c.want)
		}
	}
}

func TestAvgFirstReplySeconds(t *testing.T) {
	avg, ok := avgFirstReplySeconds([]*float64{floatPtr(10), nil, floatPtr(20)})
	if !ok || avg != 15 {
		t.Errorf("got %d, %v", avg, ok)
	}

	// Conversations without a first reply push nulls only.
	if _, ok := avgFirstReplySeconds([]*float64{nil, nil}); ok {
		t.Error("all-null samples must report no average")
	}
	if _, ok := avgFirstReplySeconds(nil); ok {
		t.Error("empty samples must report no average")
	}
}

func TestAvgSessionSeconds(t *testing.T) {
	withDurations := insightGroup{DurationsMillis: []*int64{int64Ptr(60_000), int64Ptr(120_000)}}
	noDurations := insightGroup{DurationsMillis: []*int64{nil, nil}}

	// The channel without measured durations must not drag the average
	// toward zero.
	avg, ok := avgSessionSeconds([]insightGroup{withDurations, noDurations})
	if !ok || avg != 90 {
		t.Errorf("got %d, %v, want 90s", avg, ok)
	}

	if _, ok := avgSessionSeconds([]insightGroup{noDurations}); ok {
		t.Error("no measured durations must report no average")
	}
}

func TestPeakHours(t *testing.T) {
	busiest, quietest := peakHours(map[int32]int64{9: 40, 14: 55, 22: 3})
	if busiest != 14 {
		t.Errorf("busiest = %d", busiest)
	}
	if quietest != 22 {
		t.Errorf("quietest = %d", quietest)
	}
}

func TestBuildInsightRecords(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")

	groups := make([]insightGroup, 2)
	groups[0].ID.AccountUID = id
	groups[0].ID.ChannelType = "WHATSAPP"
	groups[0].AccountName = "Banco Uno"
	groups[0].ClientID = "BANCO_UNO"
	groups[0].Total = 10
	groups[0].IncomingMessages = 30
	groups[0].OutgoingMessages = 50
	groups[0].TotalResponseTime = 600
	groups[0].TotalResponses = 20
	groups[0].FirstReplies = []*float64{floatPtr(12), nil, floatPtr(18)}
	groups[0].NewProfiles = 4
	groups[0].Closed = 6
	groups[0].Unanswered = 1
	groups[0].Hours = []int32{9, 9, 14}
	groups[0].DurationsMillis = []*int64{int64Ptr(90_000)}

	groups[1].ID.AccountUID = id
	groups[1].ID.ChannelType = "FACEBOOK"
	groups[1].AccountName = "Banco Uno"
	groups[1].ClientID = "BANCO_UNO"
	groups[1].Total = 2
	groups[1].Hours = []int32{22}

	records := buildInsightRecords(groups, window)
	if len(records) != 1 {
		t.Fatalf("got %d records, want channels folded into one account row", len(records))
	}

	rec := records[0]
	if rec.Key != id.Hex()+"-2025-03-10" {
		t.Errorf("key = %s", rec.Key)
	}

	totals := asM(t, fieldsOf(t, rec, "total_metrics"))
	if totals["conversations"] != int64(12) {
		t.Errorf("conversations = %v", totals["conversations"])
	}

	profiles := asM(t, totals["profiles"])
	if profiles["new"] != int64(4) || profiles["returning"] != int64(8) {
		t.Errorf("profiles = %v", profiles)
	}
	if profiles["conversion_rate"] != 200.0 {
		t.Errorf("conversion_rate = %v", profiles["conversion_rate"])
	}

	engagement := asM(t, totals["engagement"])
	// One channel measured 90s sessions, the other measured nothing.
	if engagement["avg_session_duration"] != int64(90) {
		t.Errorf("avg_session_duration = %v", engagement["avg_session_duration"])
	}

	peaks := asM(t, totals["peak_hours"])
	// Hours 14 and 22 tie at one conversation each; the earlier hour
	// wins the tie.
	if peaks["busiest_hour"] != int32(9) || peaks["quietest_hour"] != int32(14) {
		t.Errorf("peak_hours = %v", peaks)
	}
}

func TestBuildInsightRecordsZeroDenominators(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "6a2b3c4d5e6f708192a3b4c5")

	// No new profiles, no responses, no durations: every ratio with a
	// zero denominator must be absent, not NaN.
	groups := make([]insightGroup, 1)
	groups[0].ID.AccountUID = id
	groups[0].ID.ChannelType = "WHATSAPP"
	groups[0].Total = 3

	records := buildInsightRecords(groups, window)
	totals := asM(t, fieldsOf(t, records[0], "total_metrics"))

	profiles := asM(t, totals["profiles"])
	if _, present := profiles["conversion_rate"]; present {
		t.Error("conversion_rate must be omitted when no new profiles exist")
	}

	engagement := asM(t, totals["engagement"])
	if _, present := engagement["avg_session_duration"]; present {
		t.Error("avg_session_duration must be omitted without measured durations")
	}
	// Total is nonzero, so the response and completion rates do exist.
	if engagement["response_rate"] != 100.0 {
		t.Errorf("response_rate = %v", engagement["response_rate"])
	}

	if fieldsOf(t, records[0], "client_id") != pipeline.SentinelNoClientID {
		t.Errorf("client_id = %v, want the sentinel for unassigned accounts", records[0].Fields["client_id"])
	}
	if fieldsOf(t, records[0], "account_name") != pipeline.UnknownValue {
		t.Errorf("account_name = %v", records[0].Fields["account_name"])
	}
}
