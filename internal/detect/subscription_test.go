package detect

import (
	"testing"

	"github.com/Technical-1/email-archive-parser/internal/record"
)

func TestSubscriptionDetector_StrongSubjectQualifies(t *testing.T) {
	e := &record.Email{
		Sender:  "billing@netflix.com",
		Subject: "Your subscription renewed",
		Body:    "Your monthly subscription renews on the 1st. Total charged: $15.49.",
		Date:    "2024-01-01T00:00:00Z",
	}
	d := NewSubscriptionDetector()
	res, ok := d.Detect(e)
	if !ok {
		t.Fatal("expected a qualifying subscription detection")
	}
	if res.ServiceName != "Netflix" {
		t.Errorf("service name = %q, want Netflix", res.ServiceName)
	}
	if res.Category != "streaming" {
		t.Errorf("category = %q, want streaming", res.Category)
	}
	if res.Frequency != "monthly" {
		t.Errorf("frequency = %q, want monthly", res.Frequency)
	}
	if res.MonthlyAmount != 15.49 {
		t.Errorf("amount = %v, want 15.49", res.MonthlyAmount)
	}
}

func TestSubscriptionDetector_TwoBodyPatternsQualify(t *testing.T) {
	e := &record.Email{
		Sender:  "billing@some-app.example",
		Subject: "Your receipt",
		Body:    "Subscription plan: Pro. Next billing date: 2024-02-01. Billing period: monthly.",
	}
	d := NewSubscriptionDetector()
	if _, ok := d.Detect(e); !ok {
		t.Error("expected >=2 body pattern matches to qualify")
	}
}

func TestSubscriptionDetector_OneBodyPatternDoesNotQualify(t *testing.T) {
	e := &record.Email{
		Sender:  "billing@some-app.example",
		Subject: "Your receipt",
		Body:    "Subscription plan: Pro.",
	}
	d := NewSubscriptionDetector()
	if _, ok := d.Detect(e); ok {
		t.Error("expected a single body pattern match not to qualify")
	}
}

func TestSubscriptionDetector_YearlyFrequency(t *testing.T) {
	e := &record.Email{
		Sender:  "billing@netflix.com",
		Subject: "Your annual subscription renewed",
		Body:    "Thanks for staying with us this year. Renews on 2025-01-01.",
	}
	d := NewSubscriptionDetector()
	res, ok := d.Detect(e)
	if !ok {
		t.Fatal("expected a qualifying subscription detection")
	}
	if res.Frequency != "yearly" {
		t.Errorf("frequency = %q, want yearly", res.Frequency)
	}
}

func TestSubscriptionDetector_DetectBatch_GroupsAndUpdatesLatest(t *testing.T) {
	emails := []*record.Email{
		{
			Sender: "billing@netflix.com", Subject: "Your subscription has been renewed",
			Body: "Your monthly subscription renews on the 1st. Total charged: $15.49.",
			Date: "2024-01-01T00:00:00Z",
		},
		{
			Sender: "billing@netflix.com", Subject: "Your subscription has been renewed",
			Body: "Your monthly subscription renews on the 1st. Total charged: $17.99.",
			Date: "2024-02-01T00:00:00Z",
		},
	}
	d := NewSubscriptionDetector()
	results := d.DetectBatch(emails)
	if len(results) != 1 {
		t.Fatalf("got %d groups, want 1", len(results))
	}
	r := results[0]
	if r.LastRenewalDate != "2024-02-01T00:00:00Z" {
		t.Errorf("last_renewal_date = %q, want the later date", r.LastRenewalDate)
	}
	if r.MonthlyAmount != 17.99 {
		t.Errorf("monthly_amount = %v, want 17.99 (from the more recent email)", r.MonthlyAmount)
	}
	if len(r.EmailIDs) != 2 {
		t.Errorf("got %d email ids, want 2", len(r.EmailIDs))
	}
}

func TestSubscriptionDetector_RenewalNoticeIsActive(t *testing.T) {
	e := &record.Email{
		Sender:  "billing@netflix.com",
		Subject: "Your subscription has been renewed",
		Body:    "Your monthly subscription renews on the 1st. Total charged: $15.49.",
		Date:    "2024-01-01T00:00:00Z",
	}
	d := NewSubscriptionDetector()
	res, ok := d.Detect(e)
	if !ok {
		t.Fatal("expected a qualifying subscription detection")
	}
	if !res.IsActive {
		t.Error("expected a renewal notice to be active")
	}
}

func TestSubscriptionDetector_CancellationNoticeIsInactive(t *testing.T) {
	e := &record.Email{
		Sender:  "billing@netflix.com",
		Subject: "Your subscription has been cancelled",
		Body:    "Your access will end on 2024-03-01. We're sorry to see you go.",
		Date:    "2024-02-15T00:00:00Z",
	}
	d := NewSubscriptionDetector()
	res, ok := d.Detect(e)
	if !ok {
		t.Fatal("expected a cancellation notice to qualify on its own")
	}
	if res.IsActive {
		t.Error("expected a cancellation notice to be inactive")
	}
}

func TestSubscriptionDetector_DetectBatch_CancellationSupersedesActive(t *testing.T) {
	emails := []*record.Email{
		{
			Sender: "billing@netflix.com", Subject: "Your subscription has been renewed",
			Body: "Your monthly subscription renews on the 1st. Total charged: $15.49.",
			Date: "2024-01-01T00:00:00Z",
		},
		{
			Sender: "billing@netflix.com", Subject: "Your subscription has been cancelled",
			Body: "Your access will end on 2024-03-01. We're sorry to see you go.",
			Date: "2024-02-15T00:00:00Z",
		},
	}
	d := NewSubscriptionDetector()
	results := d.DetectBatch(emails)
	if len(results) != 1 {
		t.Fatalf("got %d groups, want 1", len(results))
	}
	r := results[0]
	if r.IsActive {
		t.Error("expected the later cancellation email to supersede the earlier active subscription")
	}
}

func TestSubscriptionDetector_KnownServicesNonEmpty(t *testing.T) {
	d := NewSubscriptionDetector()
	if len(d.KnownServices()) == 0 {
		t.Error("expected a non-empty known subscription services catalog")
	}
}
