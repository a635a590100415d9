package job

import (
	"testing"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

func TestBuildSmsRecords(t *testing.T) {
	window := testWindow()
	known := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")
	unknown := mustObjectID(t, "6a2b3c4d5e6f708192a3b4c5")

	groups := make([]smsGroup, 2)
	groups[0].ID.AccountUID = known
	groups[0].ID.ChannelIdentifier = "50212345678"
	groups[0].SmsOK = 10
	groups[0].SmsError = 2
	groups[1].ID.AccountUID = unknown
	groups[1].ID.ChannelIdentifier = "50287654321"
	groups[1].SmsOK = 4

	dir := pipeline.BillingDirectory{
		known.Hex(): {ClientID: "BANCO_UNO", AccountName: "Banco Uno"},
	}

	records := buildSmsRecords(groups, dir, window)
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}

	wantKey := known.Hex() + "-50212345678-2025-03-10"
	if records[0].Key != wantKey {
		t.Errorf("key = %s, want %s", records[0].Key, wantKey)
	}
	if fieldsOf(t, records[0], "date_gtm6") != "2025-03-10" {
		t.Errorf("date_gtm6 = %v", records[0].Fields["date_gtm6"])
	}
	if fieldsOf(t, records[0], "date") != window.CivilDate {
		t.Errorf("date = %v, want the civil date instant", records[0].Fields["date"])
	}

	// Accounts with no billing row still produce a record.
	if fieldsOf(t, records[1], "client_id") != pipeline.UnknownValue {
		t.Errorf("client_id = %v, want placeholder on directory miss", records[1].Fields["client_id"])
	}
	if fieldsOf(t, records[1], "account_name") != pipeline.UnknownValue {
		t.Errorf("account_name = %v", records[1].Fields["account_name"])
	}
}

func TestBuildSmsRecordsEmptyDirectory(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")

	groups := make([]smsGroup, 1)
	groups[0].ID.AccountUID = id
	groups[0].ID.ChannelIdentifier = "wa-gt-001"
	groups[0].SmsOK = 1

	// Tenants without a billing store run with an empty directory.
	records := buildSmsRecords(groups, pipeline.BillingDirectory{}, window)
	if fieldsOf(t, records[0], "client_id") != pipeline.UnknownValue {
		t.Errorf("client_id = %v", records[0].Fields["client_id"])
	}
}
