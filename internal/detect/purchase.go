package detect

import (
	"regexp"

	"github.com/Technical-1/email-archive-parser/internal/catalog"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// purchaseAntiPatterns are promotional-vocabulary signals that a message
// is not a real purchase receipt; ≥3 distinct hits aborts the detector
// entirely (spec §4.6 step 1), and fewer hits leave the score unchanged.
var purchaseAntiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)save \$\d`),
	regexp.MustCompile(`(?i)up to \d+% off`),
	regexp.MustCompile(`(?i)free shipping`),
	regexp.MustCompile(`(?i)limited time`),
	regexp.MustCompile(`(?i)promo code`),
	regexp.MustCompile(`(?i)shop now`),
	regexp.MustCompile(`(?i)unsubscribe`),
}

// purchaseSubjectPatterns are strong subject signals worth +35 (first
// match only).
var purchaseSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:your )?order (?:confirmation|receipt|#)`),
	regexp.MustCompile(`(?i)^receipt (?:for|from)`),
	regexp.MustCompile(`(?i)^invoice`),
	regexp.MustCompile(`(?i)^shipping confirmation`),
}

// purchaseBodyPatterns are strong body signals worth +25 (first match
// only).
var purchaseBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)order total:\s*[$€£¥]`),
	regexp.MustCompile(`(?i)payment of\s*[$€£¥]`),
}

// PurchaseResult is one purchase detection, per PurchaseDetector.detect.
type PurchaseResult struct {
	Merchant     string
	Category     string
	Amount       float64
	Currency     string
	PurchaseDate string
	OrderNumber  string
	Items        []string
	Confidence   int
}

// PurchaseDetector scores emails for "this is an order receipt", per
// spec §4.6.
type PurchaseDetector struct{}

// NewPurchaseDetector constructs a stateless PurchaseDetector.
func NewPurchaseDetector() *PurchaseDetector {
	return &PurchaseDetector{}
}

// Detect scores a single email and returns a result iff score ≥ 70,
// amount > 0, and a merchant was resolved.
func (d *PurchaseDetector) Detect(e *record.Email) (PurchaseResult, bool) {
	text := e.Subject + "\n" + e.Body

	antiHits := 0
	for _, pat := range purchaseAntiPatterns {
		if pat.MatchString(text) {
			antiHits++
		}
	}
	if antiHits >= 3 {
		return PurchaseResult{}, false
	}

	score := 0
	merchant := ""
	category := ""

	domain := mimewalk.SenderDomain(e.Sender)
	if m, ok := catalog.LookupMerchant(domain); ok {
		score += 30
		merchant = m.Name
		category = m.Category
	}

	for _, pat := range purchaseSubjectPatterns {
		if pat.MatchString(e.Subject) {
			score += 35
			break
		}
	}

	for _, pat := range purchaseBodyPatterns {
		if pat.MatchString(e.Body) {
			score += 25
			break
		}
	}

	var amount float64
	var currency string
	var orderNumber string

	if score >= 30 {
		if amt, cur, ok := extractAmount(text); ok {
			amount = amt
			currency = cur
			if amt > 0 && amt < 10000 {
				score += 20
			} else if amt >= 10000 {
				score += 10
			}
		}
		if on, ok := extractOrderNumber(text); ok {
			orderNumber = on
			score += 15
		}
	}

	if score > 100 {
		score = 100
	}

	if score < 70 || amount <= 0 || merchant == "" {
		return PurchaseResult{}, false
	}

	return PurchaseResult{
		Merchant:     merchant,
		Category:     category,
		Amount:       amount,
		Currency:     currency,
		PurchaseDate: e.Date,
		OrderNumber:  orderNumber,
		Confidence:   score,
	}, true
}

// DetectBatch runs Detect over every email, returning one result per
// qualifying email (no deduplication — each purchase is distinct,
// unlike accounts/subscriptions/newsletters which aggregate by sender).
func (d *PurchaseDetector) DetectBatch(emails []*record.Email) []PurchaseResult {
	var out []PurchaseResult
	for _, e := range emails {
		if res, ok := d.Detect(e); ok {
			out = append(out, res)
		}
	}
	return out
}

// Category resolves a merchant display name back to its catalog
// category, for PurchaseDetector.category(merchant).
func (d *PurchaseDetector) Category(merchant string) (string, bool) {
	return catalog.MerchantCategory(merchant)
}

// KnownMerchants returns every canonical merchant display name in the
// catalog, per PurchaseDetector.known_merchants().
func (d *PurchaseDetector) KnownMerchants() []string {
	return catalog.KnownMerchants()
}
