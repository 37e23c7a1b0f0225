package report

import (
	"strings"
	"testing"

	"github.com/Technical-1/email-archive-parser/internal/archive"
	"github.com/Technical-1/email-archive-parser/internal/detect"
)

func sampleResult() *archive.ParseResult {
	return &archive.ParseResult{
		Format: archive.FormatMBOX,
		Stats: archive.Stats{
			EmailCount:     1200,
			DroppedRecords: 3,
			ElapsedSeconds: 1.5,
		},
		Accounts: []detect.AccountResult{
			{ServiceName: "Netflix", Confidence: 90, SignupDate: "2024-01-01", EmailCount: 1},
		},
		Purchases: []detect.PurchaseResult{
			{Merchant: "Amazon", Currency: "USD", Amount: 49.99, OrderNumber: "ABC-123456", Confidence: 95},
		},
	}
}

func TestBuildMarkdown_IncludesStatsAndPopulatedSections(t *testing.T) {
	md := BuildMarkdown(sampleResult())
	if !strings.Contains(md, "1,200") {
		t.Errorf("expected comma-formatted email count, got: %s", md)
	}
	if !strings.Contains(md, "Netflix") {
		t.Error("expected accounts section to include Netflix")
	}
	if !strings.Contains(md, "Amazon") {
		t.Error("expected purchases section to include Amazon")
	}
	if strings.Contains(md, "Subscriptions") {
		t.Error("expected no subscriptions section when none were detected")
	}
}

func TestBuildMarkdown_CancelledNotesPartialState(t *testing.T) {
	result := sampleResult()
	result.Cancelled = true
	md := BuildMarkdown(result)
	if !strings.Contains(md, "cancelled") {
		t.Error("expected a cancellation note in the summary")
	}
}

func TestRenderHTML_WrapsConvertedMarkdown(t *testing.T) {
	html, err := RenderHTML(sampleResult())
	if err != nil {
		t.Fatalf("RenderHTML returned an error: %v", err)
	}
	if !strings.Contains(html, "<!DOCTYPE html>") || !strings.Contains(html, "Netflix") {
		t.Errorf("expected a wrapped html document containing rendered content, got: %s", html)
	}
}

func TestRenderPlainText_StripsMarkdownSyntax(t *testing.T) {
	text := RenderPlainText(sampleResult())
	if strings.Contains(text, "#") || strings.Contains(text, "**") {
		t.Errorf("expected markdown syntax stripped, got: %s", text)
	}
	if !strings.Contains(text, "Archive Summary") {
		t.Error("expected the title text to survive heading-marker stripping")
	}
}
