package job

import (
	"regexp"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Pr4yus/sms-bi-dashboard-v2-sub001/internal/classify"
)

func testCascade(t *testing.T) *classify.Cascade {
	t.Helper()
	compile := func(pattern string) *regexp.Regexp {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			t.Fatal(err)
		}
		return re
	}
	return classify.NewCascade([]classify.Rule{
		{Pattern: compile(`pay\.reach\.tools`), Type: classify.TypeInternal, Processor: "Reach", Domain: "pay.reach.tools"},
		{Pattern: compile(`qpaypro`), Type: classify.TypeExternal, Processor: "QPayPro", Domain: "qpaypro.com"},
	})
}

func TestBuildPaymentRecords(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")
	convID := mustObjectID(t, "6a2b3c4d5e6f708192a3b4c5")
	sent := time.Date(2025, 3, 10, 15, 4, 0, 0, time.UTC)

	candidates := []paymentCandidate{
		{
			AccountUID: id, ConversationUID: &convID,
			Content: "Pague aqui: https://pay.reach.tools/abc", Direction: "OUT",
			Datetime: sent, AccountName: "Banco Uno", Alias: "Maria", ChannelType: "WHATSAPP",
		},
		{
			AccountUID: id, ConversationUID: &convID,
			Content: "https://www.qpaypro.com/checkout/9", Direction: "OUT",
			Datetime: sent, AccountName: "Banco Uno", Alias: "Maria", ChannelType: "WHATSAPP",
		},
		{
			AccountUID: id, ConversationUID: &convID,
			Content: "link: qpaypro otra vez", Direction: "OUT",
			Datetime: sent, AccountName: "Banco Uno", Alias: "Jose", ChannelType: "WHATSAPP",
		},
	}

	records := buildPaymentRecords(candidates, testCascade(t), window)
	if len(records) != 1 {
		t.Fatalf("got %d records, want candidates folded per account", len(records))
	}

	rec := records[0]
	if rec.Key != id.Hex()+"-2025-03-10" {
		t.Errorf("key = %s", rec.Key)
	}

	summary := asM(t, fieldsOf(t, rec, "summary"))
	if summary["total_links"] != int64(3) {
		t.Errorf("total_links = %v", summary["total_links"])
	}
	types := asM(t, summary["types"])
	if types["INTERNAL"] != int64(1) || types["EXTERNAL"] != int64(2) {
		t.Errorf("types = %v", types)
	}
	processors := asM(t, summary["processors"])
	if processors["Reach"] != int64(1) || processors["QPayPro"] != int64(2) {
		t.Errorf("processors = %v", processors)
	}

	links, ok := fieldsOf(t, rec, "links").(bson.A)
	if !ok || len(links) != 3 {
		t.Fatalf("links = %v", rec.Fields["links"])
	}
	info := asM(t, asM(t, links[0])["payment_info"])
	if info["type"] != classify.TypeInternal || info["processor"] != "Reach" {
		t.Errorf("payment_info = %v", info)
	}
}

func TestBuildPaymentRecordsUnmatched(t *testing.T) {
	window := testWindow()
	id := mustObjectID(t, "5f1f2a3b4c5d6e7f8a9b0c1d")

	// The store prefilter can pass content the cascade then rejects
	// into UNKNOWN; it still counts toward the total.
	candidates := []paymentCandidate{
		{AccountUID: id, Content: "nada que ver", Direction: "OUT"},
	}

	records := buildPaymentRecords(candidates, testCascade(t), window)
	summary := asM(t, fieldsOf(t, records[0], "summary"))
	if summary["total_links"] != int64(1) {
		t.Errorf("total_links = %v", summary["total_links"])
	}
	types := asM(t, summary["types"])
	if types["INTERNAL"] != int64(0) || types["EXTERNAL"] != int64(0) {
		t.Errorf("types = %v", types)
	}
	processors := asM(t, summary["processors"])
	if processors["Unknown"] != int64(1) {
		t.Errorf("processors = %v", processors)
	}
	if fieldsOf(t, records[0], "account_name") != unknownAccountName {
		t.Errorf("account_name = %v", records[0].Fields["account_name"])
	}
}
