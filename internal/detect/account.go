package detect

import (
	"regexp"
	"strings"

	"github.com/Technical-1/email-archive-parser/internal/catalog"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// accountSubjectPatterns are anchored subject regexes worth +40 toward
// an account-creation score.
var accountSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^welcome to`),
	regexp.MustCompile(`(?i)^verify your.*(email|account)`),
	regexp.MustCompile(`(?i)^activate your.*account`),
	regexp.MustCompile(`(?i)email verification`),
	regexp.MustCompile(`(?i)^confirm your (email|account)`),
	regexp.MustCompile(`(?i)^please verify`),
	regexp.MustCompile(`(?i)^your account (has been created|is ready)`),
	regexp.MustCompile(`(?i)^complete your registration`),
	regexp.MustCompile(`(?i)account confirmation`),
	regexp.MustCompile(`(?i)^confirm your (subscription|signup)`),
}

// accountBodyPatterns are phrasal body patterns worth +30.
var accountBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)click.*to verify your email`),
	regexp.MustCompile(`(?i)your account has been created`),
	regexp.MustCompile(`(?i)verification code:\s*\d{4,8}`),
	regexp.MustCompile(`(?i)welcome aboard`),
	regexp.MustCompile(`(?i)thank you for (signing up|registering)`),
	regexp.MustCompile(`(?i)please confirm your email address`),
	regexp.MustCompile(`(?i)your new account`),
	regexp.MustCompile(`(?i)activate your account by clicking`),
}

// accountServiceNameExtractors pulls a candidate service name out of a
// subject when the catalog has no domain match.
var accountServiceNameExtractors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^welcome to ([A-Z][A-Za-z0-9&.,' -]{1,28})[!.,]?\s*$`),
	regexp.MustCompile(`(?i)thanks? for (?:signing up|joining|registering)(?: for| with)? ([A-Z][A-Za-z0-9&.,' -]{1,28})`),
}

// AccountResult is one account-creation detection, per the spec's
// AccountDetector.detect output shape.
type AccountResult struct {
	ServiceName   string
	ServiceType   catalog.ServiceType
	Domain        string
	Confidence    int
	SignupDate    string
	EmailCount    int
	SignupEmailID string
}

// AccountDetector scores emails for "user just created an account at
// service X", per spec §4.5.
type AccountDetector struct{}

// NewAccountDetector constructs a stateless AccountDetector.
func NewAccountDetector() *AccountDetector {
	return &AccountDetector{}
}

// Detect scores a single email and returns a result iff confidence ≥ 70
// and a service name could be determined.
func (d *AccountDetector) Detect(e *record.Email) (AccountResult, bool) {
	confidence := 0
	serviceName := ""
	serviceType := catalog.ServiceOther

	domain := mimewalk.SenderDomain(e.Sender)
	catalogHit := false
	if svc, ok := catalog.LookupService(domain); ok {
		confidence += 40
		serviceName = svc.Name
		serviceType = svc.Type
		catalogHit = true
	}

	subject := e.Subject
	for _, pat := range accountSubjectPatterns {
		if pat.MatchString(subject) {
			confidence += 40
			break
		}
	}

	body := e.Body
	for _, pat := range accountBodyPatterns {
		if pat.MatchString(body) {
			confidence += 30
			break
		}
	}

	if !catalogHit {
		if name, ok := extractAccountServiceName(subject); ok {
			confidence += 10
			serviceName = name
		}
	}

	if confidence > 100 {
		confidence = 100
	}

	if confidence < 70 || serviceName == "" {
		return AccountResult{}, false
	}

	return AccountResult{
		ServiceName:   serviceName,
		ServiceType:   serviceType,
		Domain:        domain,
		Confidence:    confidence,
		SignupDate:    e.Date,
		EmailCount:    1,
		SignupEmailID: e.MessageID,
	}, true
}

// extractAccountServiceName applies the ordered service-name extractors
// and validates length/leading-character constraints (2-30 chars,
// starts with an alphabetic character).
func extractAccountServiceName(subject string) (string, bool) {
	for _, re := range accountServiceNameExtractors {
		m := re.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if len(name) < 2 || len(name) > 30 {
			continue
		}
		r := []rune(name)[0]
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			continue
		}
		return name, true
	}
	return "", false
}

// DetectBatch detects over every email and deduplicates case-
// insensitively on service name, keeping the earliest signup_date and
// incrementing email_count per additional hit, per spec §4.5.
func (d *AccountDetector) DetectBatch(emails []*record.Email) []AccountResult {
	order := make([]string, 0)
	byKey := make(map[string]*AccountResult)

	for _, e := range emails {
		res, ok := d.Detect(e)
		if !ok {
			continue
		}
		key := strings.ToLower(res.ServiceName)
		if existing, found := byKey[key]; found {
			existing.EmailCount++
			if res.SignupDate != "" && (existing.SignupDate == "" || res.SignupDate < existing.SignupDate) {
				existing.SignupDate = res.SignupDate
				existing.SignupEmailID = res.SignupEmailID
			}
			if res.Confidence > existing.Confidence {
				existing.Confidence = res.Confidence
			}
			continue
		}
		copyRes := res
		byKey[key] = &copyRes
		order = append(order, key)
	}

	out := make([]AccountResult, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// KnownServices returns every canonical service display name in the
// catalog, per AccountDetector.known_services().
func (d *AccountDetector) KnownServices() []string {
	return catalog.KnownServices()
}
