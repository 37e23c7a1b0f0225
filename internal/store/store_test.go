package store

import (
	"path/filepath"
	"testing"

	"github.com/Technical-1/email-archive-parser/internal/archive"
	"github.com/Technical-1/email-archive-parser/internal/detect"
	"github.com/Technical-1/email-archive-parser/internal/olmcontacts"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

func sampleResult() *archive.ParseResult {
	return &archive.ParseResult{
		Format: archive.FormatMBOX,
		Emails: []*record.Email{
			{MessageID: "m1", Subject: "Your order confirmation", Sender: "orders@amazon.com", FolderID: "inbox"},
		},
		Contacts: []olmcontacts.SenderContact{
			{Email: "orders@amazon.com", DisplayName: "Amazon", EmailCount: 1, FirstSeen: "2024-01-01T00:00:00Z", LastSeen: "2024-01-01T00:00:00Z"},
		},
		Purchases: []detect.PurchaseResult{
			{Merchant: "Amazon", Currency: "USD", Amount: 49.99, PurchaseDate: "2024-01-01T00:00:00Z", OrderNumber: "ABC-123456", Confidence: 95},
		},
		Accounts: []detect.AccountResult{
			{ServiceName: "Netflix", Domain: "netflix.com", Confidence: 90, SignupDate: "2024-01-01T00:00:00Z", SignupEmailID: "m1", EmailCount: 1},
		},
		Subscriptions: []detect.SubscriptionResult{
			{ServiceName: "Netflix", Currency: "USD", MonthlyAmount: 15.49, Frequency: "monthly", LastRenewalDate: "2024-01-01T00:00:00Z", IsActive: true},
		},
	}
}

func TestSaveResult_PersistsEmailsContactsAndPurchases(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	s, err := NewStore(dbPath, nil)
	if err != nil {
		t.Fatalf("NewStore returned an error: %v", err)
	}
	defer s.Close()

	if err := s.SaveResult(sampleResult()); err != nil {
		t.Fatalf("SaveResult returned an error: %v", err)
	}

	n, err := s.EmailCount()
	if err != nil {
		t.Fatalf("EmailCount returned an error: %v", err)
	}
	if n != 1 {
		t.Errorf("email count = %d, want 1", n)
	}

	var purchases int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM purchases`).Scan(&purchases); err != nil {
		t.Fatalf("query purchases: %v", err)
	}
	if purchases != 1 {
		t.Errorf("purchase count = %d, want 1", purchases)
	}

	var contacts int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&contacts); err != nil {
		t.Fatalf("query contacts: %v", err)
	}
	if contacts != 1 {
		t.Errorf("contact count = %d, want 1", contacts)
	}
}

func TestSaveResult_PersistsAccountAndSubscriptionDetailFields(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	s, err := NewStore(dbPath, nil)
	if err != nil {
		t.Fatalf("NewStore returned an error: %v", err)
	}
	defer s.Close()

	if err := s.SaveResult(sampleResult()); err != nil {
		t.Fatalf("SaveResult returned an error: %v", err)
	}

	var domain, signupEmailID string
	if err := s.db.QueryRow(`SELECT domain, signup_email_id FROM accounts WHERE service_name = 'Netflix'`).Scan(&domain, &signupEmailID); err != nil {
		t.Fatalf("query account: %v", err)
	}
	if domain != "netflix.com" {
		t.Errorf("domain = %q, want netflix.com", domain)
	}
	if signupEmailID != "m1" {
		t.Errorf("signup_email_id = %q, want m1", signupEmailID)
	}

	var purchaseDate string
	if err := s.db.QueryRow(`SELECT purchase_date FROM purchases WHERE merchant = 'Amazon'`).Scan(&purchaseDate); err != nil {
		t.Fatalf("query purchase: %v", err)
	}
	if purchaseDate != "2024-01-01T00:00:00Z" {
		t.Errorf("purchase_date = %q, want 2024-01-01T00:00:00Z", purchaseDate)
	}

	var isActive int
	if err := s.db.QueryRow(`SELECT is_active FROM subscriptions WHERE service_name = 'Netflix'`).Scan(&isActive); err != nil {
		t.Fatalf("query subscription: %v", err)
	}
	if isActive != 1 {
		t.Errorf("is_active = %d, want 1", isActive)
	}
}

func TestSaveResult_UpsertsEmailsByMessageID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")
	s, err := NewStore(dbPath, nil)
	if err != nil {
		t.Fatalf("NewStore returned an error: %v", err)
	}
	defer s.Close()

	result := sampleResult()
	if err := s.SaveResult(result); err != nil {
		t.Fatalf("first SaveResult returned an error: %v", err)
	}
	result.Emails[0].Subject = "Updated subject"
	if err := s.SaveResult(result); err != nil {
		t.Fatalf("second SaveResult returned an error: %v", err)
	}

	n, err := s.EmailCount()
	if err != nil {
		t.Fatalf("EmailCount returned an error: %v", err)
	}
	if n != 1 {
		t.Errorf("email count = %d after re-save, want 1 (upsert, not duplicate)", n)
	}

	var subject string
	if err := s.db.QueryRow(`SELECT subject FROM emails WHERE message_id = 'm1'`).Scan(&subject); err != nil {
		t.Fatalf("query subject: %v", err)
	}
	if subject != "Updated subject" {
		t.Errorf("subject = %q, want %q", subject, "Updated subject")
	}
}
