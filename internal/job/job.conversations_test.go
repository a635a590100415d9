package job

import (
	"testing"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/pipeline"
)

func TestBuildConversationRecords(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")

	groups := make([]conversationGroup, 2)
	groups[0].ID.AccountUID = id
	groups[0].ID.ChannelType = "WHATSAPP"
	groups[0].TotalConversations = 40
	groups[1].ID.AccountUID = id
	groups[1].ID.ChannelType = "FACEBOOK"
	groups[1].TotalConversations = 3

	names := map[string]string{id.Hex(): "Banco Uno"}
	dir := pipeline.BillingDirectory{id.Hex(): {ClientID: "BANCO_UNO", AccountName: "Banco Uno"}}

	records := buildConversationRecords(groups, names, dir, window)
	if len(records) != 2 {
		t.Fatalf("got %d records, want one per channel", len(records))
	}

	wantKey := id.Hex() + "-2025-03-10-WHATSAPP"
	if records[0].Key != wantKey {
		t.Errorf("key = %s, want %s", records[0].Key, wantKey)
	}
	f := records[0].Fields
	if f["month"] != "March" {
		t.Errorf("month = %v", f["month"])
	}
	if f["client_id"] != "BANCO_UNO" || f["account_name"] != "Banco Uno" {
		t.Errorf("identity fields = %v", f)
	}
	if f["total_conversations"] != int64(40) {
		t.Errorf("total_conversations = %v", f["total_conversations"])
	}
}

func TestBuildConversationRecordsUnknownAccount(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "6a2b3c4d5e6f708192a3b4c5")

	groups := make([]conversationGroup, 1)
	groups[0].ID.AccountUID = id
	groups[0].ID.ChannelType = "WHATSAPP"
	groups[0].TotalConversations = 1

	records := buildConversationRecords(groups, map[string]string{}, pipeline.BillingDirectory{}, window)
	f := records[0].Fields
	if f["account_name"] != pipeline.UnknownValue {
		t.Errorf("account_name = %v", f["account_name"])
	}
	if f["client_id"] != pipeline.UnknownValue {
		t.Errorf("client_id = %v", f["client_id"])
	}
}
