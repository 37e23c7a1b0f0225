package detect

import (
	"regexp"
	"strings"

	"github.com/Technical-1/email-archive-parser/internal/catalog"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// subscriptionStrongSubjectPatterns — a single match qualifies a
// message for subscription scoring outright (spec §4.7 stage one).
var subscriptionStrongSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)subscription (confirmed|renewed|receipt)`),
	regexp.MustCompile(`(?i)your (monthly|yearly|annual) (subscription|membership|plan)`),
	regexp.MustCompile(`(?i)auto.?renew`),
	regexp.MustCompile(`(?i)recurring (payment|charge)`),
}

// subscriptionBodyPatterns — ≥2 distinct matches also qualifies (stage
// one, OR branch).
var subscriptionBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)subscription plan:`),
	regexp.MustCompile(`(?i)billing period:`),
	regexp.MustCompile(`(?i)next billing date:`),
	regexp.MustCompile(`(?i)(monthly|annual|yearly) subscription`),
	regexp.MustCompile(`(?i)renews on`),
	regexp.MustCompile(`(?i)cancel anytime`),
}

// subscriptionCancellationPatterns identify a cancellation notice: a
// message this strong about ending a subscription qualifies the
// detector on its own, the same as a renewal notice, but marks the
// subscription inactive rather than active.
var subscriptionCancellationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)subscription (?:has been |was )?(?:cancelled|canceled)`),
	regexp.MustCompile(`(?i)(?:membership|plan) (?:has been |was )?(?:cancelled|canceled)`),
	regexp.MustCompile(`(?i)your (?:subscription|membership) has ended`),
	regexp.MustCompile(`(?i)access will end on`),
}

var (
	subFrequencyYearly = regexp.MustCompile(`(?i)yearly|annual|per year|/year`)
	subFrequencyWeekly = regexp.MustCompile(`(?i)weekly|per week|/week`)
)

// subscriptionServiceNamePatterns extracts a service name from
// subject/body when no catalog entry applies.
var subscriptionServiceNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)your ([A-Z][A-Za-z0-9&.,' -]{1,28}) subscription`),
	regexp.MustCompile(`(?i)([A-Z][A-Za-z0-9&.,' -]{1,28}) membership`),
}

// SubscriptionResult is one subscription detection, per
// SubscriptionDetector.detect.
type SubscriptionResult struct {
	ServiceName     string
	Category        string
	MonthlyAmount   float64
	Currency        string
	Frequency       string // "monthly", "yearly", or "weekly"
	LastRenewalDate string
	EmailIDs        []string
	IsActive        bool
}

// SubscriptionDetector scores emails for "this is a recurring
// subscription billing notice", per spec §4.7.
type SubscriptionDetector struct{}

// NewSubscriptionDetector constructs a stateless SubscriptionDetector.
func NewSubscriptionDetector() *SubscriptionDetector {
	return &SubscriptionDetector{}
}

func (d *SubscriptionDetector) qualifies(e *record.Email) bool {
	for _, pat := range subscriptionStrongSubjectPatterns {
		if pat.MatchString(e.Subject) {
			return true
		}
	}

	if isCancellationNotice(e) {
		return true
	}

	hits := 0
	for _, pat := range subscriptionBodyPatterns {
		if pat.MatchString(e.Body) {
			hits++
		}
	}
	return hits >= 2
}

// isCancellationNotice reports whether an email itself is the
// cancellation notice rather than an active renewal/confirmation, per
// spec §3's Subscription `is_active` field: a cancellation email
// supersedes an earlier "subscribed" one in DetectBatch's aggregation.
func isCancellationNotice(e *record.Email) bool {
	text := e.Subject + "\n" + e.Body
	for _, pat := range subscriptionCancellationPatterns {
		if pat.MatchString(text) {
			return true
		}
	}
	return false
}

// Detect returns a subscription result iff the email qualifies under
// the two-stage check.
func (d *SubscriptionDetector) Detect(e *record.Email) (SubscriptionResult, bool) {
	if !d.qualifies(e) {
		return SubscriptionResult{}, false
	}

	text := e.Subject + "\n" + e.Body
	amount, currency, _ := extractAmount(text)
	frequency := "monthly"
	switch {
	case subFrequencyYearly.MatchString(text):
		frequency = "yearly"
	case subFrequencyWeekly.MatchString(text):
		frequency = "weekly"
	}

	domain := mimewalk.SenderDomain(e.Sender)
	serviceName := ""
	category := "other"
	if sub, ok := catalog.LookupSubscription(domain); ok {
		serviceName = sub.Name
		category = sub.Category
	} else if name, ok := extractSubscriptionServiceName(text); ok {
		serviceName = name
	} else if e.SenderName != "" {
		serviceName = e.SenderName
	} else {
		serviceName = catalog.HumanizeDomain(domain)
	}

	return SubscriptionResult{
		ServiceName:     serviceName,
		Category:        category,
		MonthlyAmount:   amount,
		Currency:        currency,
		Frequency:       frequency,
		LastRenewalDate: e.Date,
		EmailIDs:        []string{emailID(e)},
		IsActive:        !isCancellationNotice(e),
	}, true
}

func extractSubscriptionServiceName(text string) (string, bool) {
	for _, re := range subscriptionServiceNamePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			name := strings.TrimSpace(m[1])
			if len(name) >= 2 && len(name) <= 30 {
				return name, true
			}
		}
	}
	return "", false
}

// DetectBatch groups case-insensitively by service name. A later
// (more recent by e.Date) email updates last_renewal_date, replaces
// monthly_amount when the new amount is positive, and updates
// frequency; every matching email's id is appended to email_ids.
func (d *SubscriptionDetector) DetectBatch(emails []*record.Email) []SubscriptionResult {
	order := make([]string, 0)
	byKey := make(map[string]*SubscriptionResult)

	for _, e := range emails {
		res, ok := d.Detect(e)
		if !ok {
			continue
		}
		key := strings.ToLower(res.ServiceName)
		existing, found := byKey[key]
		if !found {
			copyRes := res
			byKey[key] = &copyRes
			order = append(order, key)
			continue
		}

		existing.EmailIDs = append(existing.EmailIDs, res.EmailIDs...)
		if res.LastRenewalDate > existing.LastRenewalDate {
			existing.LastRenewalDate = res.LastRenewalDate
			existing.Frequency = res.Frequency
			existing.IsActive = res.IsActive
			if res.MonthlyAmount > 0 {
				existing.MonthlyAmount = res.MonthlyAmount
				existing.Currency = res.Currency
			}
		}
	}

	out := make([]SubscriptionResult, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// KnownServices returns every canonical subscription service display
// name in the catalog, per SubscriptionDetector.known_services().
func (d *SubscriptionDetector) KnownServices() []string {
	return catalog.KnownSubscriptionServices()
}

// emailID resolves the identifier used to reference an email from
// aggregation results: its Message-ID when present, otherwise a
// content-addressed stable id over subject+sender+date (cheap enough
// for batch aggregation without re-hashing raw bytes).
func emailID(e *record.Email) string {
	if e.MessageID != "" {
		return e.MessageID
	}
	return record.StableID([]byte(e.Subject + "|" + e.Sender + "|" + e.Date))
}
