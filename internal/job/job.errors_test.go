package job

import (
	"testing"
)

func TestBuildErrorRecordsFallbacks(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")

	// Lookup misses come back as empty strings from the aggregation.
	groups := []errorGroup{{TotalErrors: 7}}
	groups[0].ID.AccountUID = id
	groups[0].ID.ErrorCode = 1

	records := buildErrorRecords(groups, window)
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	f := records[0].Fields
	if f["account_name"] != unknownAccountName {
		t.Errorf("account_name = %v", f["account_name"])
	}
	if f["error_description"] != unknownErrorDesc {
		t.Errorf("error_description = %v", f["error_description"])
	}
	if f["datetime"] != "2025-03-10" {
		t.Errorf("datetime = %v, want the civil date string", f["datetime"])
	}
}
