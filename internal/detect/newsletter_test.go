package detect

import (
	"testing"

	"github.com/Technical-1/email-archive-parser/internal/record"
)

func TestNewsletterDetector_QualifiesAsNewsletter(t *testing.T) {
	e := &record.Email{
		Sender:   "editor@blog.com",
		Subject:  "Your Weekly Digest: Issue #42",
		Body:     "Thanks for reading. Unsubscribe here. Manage preferences. View in browser. Copyright © 2024 Blog Co. All rights reserved.",
		HTMLBody: `<html><body><p>Thanks for reading.</p><a href="https://blog.com/unsubscribe?id=1">Unsubscribe</a></body></html>`,
	}
	d := NewNewsletterDetector()
	res := d.Detect(e)
	if !res.IsNewsletter {
		t.Error("expected this email to be classified as a newsletter")
	}
	if res.IsPromotional {
		t.Error("did not expect this email to also be classified as promotional")
	}
	if res.UnsubscribeLink == "" {
		t.Error("expected an unsubscribe link to be extracted")
	}
}

func TestNewsletterDetector_QualifiesAsPromotional(t *testing.T) {
	e := &record.Email{
		Sender:   "deals@promo.retailer.com",
		Subject:  "Flash sale: use code SAVE30 for exclusive offer",
		Body:     "Unsubscribe. Manage preferences. View in browser.",
		HTMLBody: `<html><body><a href="https://retailer.com/opt-out">Opt out</a></body></html>`,
	}
	d := NewNewsletterDetector()
	res := d.Detect(e)
	if !res.IsPromotional {
		t.Error("expected this email to be classified as promotional")
	}
	if res.IsNewsletter {
		t.Error("a promotional verdict should exclude the newsletter verdict")
	}
}

func TestNewsletterDetector_RegularEmailNotClassified(t *testing.T) {
	e := &record.Email{
		Sender:  "friend@example.com",
		Subject: "Lunch tomorrow?",
		Body:    "Want to grab lunch tomorrow around noon?",
	}
	d := NewNewsletterDetector()
	res := d.Detect(e)
	if res.IsNewsletter || res.IsPromotional {
		t.Error("expected a plain conversational email to be regular")
	}
	if d.Categorize(e) != CategoryRegular {
		t.Errorf("Categorize = %q, want regular", d.Categorize(e))
	}
}

// TestNewsletterDetector_DetectBatch_SeedScenario covers spec's concrete
// seed test #3: three weekly emails from the same sender, each with an
// unsubscribe anchor, should aggregate to one entry with email_count=3,
// frequency=weekly, a non-empty unsubscribe link, and the most recent date.
func TestNewsletterDetector_DetectBatch_SeedScenario(t *testing.T) {
	body := func() string {
		return "Thanks for reading. Unsubscribe here. Manage preferences. View in browser. Copyright © 2024 Blog Co. All rights reserved."
	}
	html := `<html><body><a href="https://blog.com/unsubscribe?id=1">Unsubscribe</a></body></html>`

	emails := []*record.Email{
		{Sender: "newsletter@blog.com", Subject: "Weekly Digest: Issue #1", Body: body(), HTMLBody: html, Date: "2024-01-01T00:00:00Z"},
		{Sender: "newsletter@blog.com", Subject: "Weekly Digest: Issue #2", Body: body(), HTMLBody: html, Date: "2024-01-08T00:00:00Z"},
		{Sender: "newsletter@blog.com", Subject: "Weekly Digest: Issue #3", Body: body(), HTMLBody: html, Date: "2024-01-15T00:00:00Z"},
	}

	d := NewNewsletterDetector()
	results := d.DetectBatch(emails)
	if len(results) != 1 {
		t.Fatalf("got %d groups, want 1", len(results))
	}

	r := results[0]
	if r.EmailCount != 3 {
		t.Errorf("email_count = %d, want 3", r.EmailCount)
	}
	if r.Frequency != "weekly" {
		t.Errorf("frequency = %q, want weekly", r.Frequency)
	}
	if r.UnsubscribeLink == "" {
		t.Error("expected a non-empty unsubscribe link")
	}
	if r.LastEmailDate != "2024-01-15T00:00:00Z" {
		t.Errorf("last_email_date = %q, want 2024-01-15T00:00:00Z", r.LastEmailDate)
	}
}

func TestNewsletterDetector_ExtractUnsubscribeLinkSurface(t *testing.T) {
	d := NewNewsletterDetector()
	link, ok := d.ExtractUnsubscribeLink(`<a href="https://example.com/unsubscribe">Unsubscribe</a>`)
	if !ok || link == "" {
		t.Error("expected the unsubscribe surface method to delegate correctly")
	}
}
