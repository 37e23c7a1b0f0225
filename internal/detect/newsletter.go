package detect

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Technical-1/email-archive-parser/internal/catalog"
	"github.com/Technical-1/email-archive-parser/internal/htmltext"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

var newsletterSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bnewsletter\b`),
	regexp.MustCompile(`(?i)weekly digest`),
	regexp.MustCompile(`(?i)monthly roundup`),
	regexp.MustCompile(`(?i)issue #\d+`),
	regexp.MustCompile(`(?i)vol\.? \d+`),
}

var promotionalSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)save \d+% off`),
	regexp.MustCompile(`(?i)flash sale`),
	regexp.MustCompile(`(?i)limited time`),
	regexp.MustCompile(`(?i)exclusive offer`),
	regexp.MustCompile(`(?i)use code`),
	regexp.MustCompile(`(?i)black friday`),
}

// marketingBodyPatterns score both axes: on the newsletter axis +25 at
// ≥3 distinct hits and +15 at ≥2; on the promotional axis +20 at ≥3 and
// +10 at ≥2.
var marketingBodyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unsubscribe`),
	regexp.MustCompile(`(?i)manage preferences`),
	regexp.MustCompile(`(?i)view in browser`),
	regexp.MustCompile(`(?i)copyright ©`),
	regexp.MustCompile(`(?i)all rights reserved`),
	regexp.MustCompile(`(?i)privacy policy`),
}

var listUnsubscribePhraseRe = regexp.MustCompile(`(?i)list-unsubscribe`)

// NewsletterCategory is the tri-state output of Categorize.
type NewsletterCategory string

const (
	CategoryNewsletter  NewsletterCategory = "newsletter"
	CategoryPromotional NewsletterCategory = "promotional"
	CategoryRegular     NewsletterCategory = "regular"
)

// NewsletterResult is one newsletter/promotional detection, per
// NewsletterDetector.detect.
type NewsletterResult struct {
	IsNewsletter    bool
	IsPromotional   bool
	Confidence      int
	SenderName      string
	UnsubscribeLink string
}

// newsletterGroupEntry pairs an email with its already-computed
// detection result while it sits in a sender-keyed aggregation group.
type newsletterGroupEntry struct {
	email  *record.Email
	result NewsletterResult
}

// NewsletterDetector scores emails along two independent axes
// (newsletter, promotional), per spec §4.8.
type NewsletterDetector struct{}

// NewNewsletterDetector constructs a stateless NewsletterDetector.
func NewNewsletterDetector() *NewsletterDetector {
	return &NewsletterDetector{}
}

// Detect scores a single email on both axes and returns the combined
// verdict. Confidence is the max of the two axis scores, capped at 100.
func (d *NewsletterDetector) Detect(e *record.Email) NewsletterResult {
	domain := mimewalk.SenderDomain(e.Sender)
	promoSubdomain := catalog.IsPromotionalSubdomain(domain)

	unsubLink, hasUnsub := "", false
	if e.HTMLBody != "" {
		unsubLink, hasUnsub = htmltext.ExtractUnsubscribeLink(e.HTMLBody)
	}
	if !hasUnsub && e.Body != "" {
		unsubLink, hasUnsub = htmltext.ExtractUnsubscribeLink(e.Body)
	}

	hasListUnsub := listUnsubscribePhraseRe.MatchString(e.Subject) || listUnsubscribePhraseRe.MatchString(e.Body)

	marketingHits := 0
	for _, pat := range marketingBodyPatterns {
		if pat.MatchString(e.Body) {
			marketingHits++
		}
	}

	newsletterScore := 0
	for _, pat := range newsletterSubjectPatterns {
		if pat.MatchString(e.Subject) {
			newsletterScore += 30
			break
		}
	}
	switch {
	case marketingHits >= 3:
		newsletterScore += 25
	case marketingHits >= 2:
		newsletterScore += 15
	}
	if promoSubdomain {
		newsletterScore += 20
	}
	if hasUnsub {
		newsletterScore += 15
	}
	if hasListUnsub {
		newsletterScore += 10
	}

	promotionalScore := 0
	for _, pat := range promotionalSubjectPatterns {
		if pat.MatchString(e.Subject) {
			promotionalScore += 35
			break
		}
	}
	switch {
	case marketingHits >= 3:
		promotionalScore += 20
	case marketingHits >= 2:
		promotionalScore += 10
	}
	if promoSubdomain {
		promotionalScore += 20
	}
	if hasUnsub {
		promotionalScore += 10
	}

	if newsletterScore > 100 {
		newsletterScore = 100
	}
	if promotionalScore > 100 {
		promotionalScore = 100
	}

	isPromotional := promotionalScore >= 40
	isNewsletter := newsletterScore >= 40 && !isPromotional

	confidence := newsletterScore
	if promotionalScore > confidence {
		confidence = promotionalScore
	}

	return NewsletterResult{
		IsNewsletter:    isNewsletter,
		IsPromotional:   isPromotional,
		Confidence:      confidence,
		SenderName:      resolveSenderName(e, domain),
		UnsubscribeLink: unsubLink,
	}
}

// Categorize reduces Detect's two boolean axes to the tri-state
// surface NewsletterDetector.categorize(email) exposes.
func (d *NewsletterDetector) Categorize(e *record.Email) NewsletterCategory {
	res := d.Detect(e)
	switch {
	case res.IsPromotional:
		return CategoryPromotional
	case res.IsNewsletter:
		return CategoryNewsletter
	default:
		return CategoryRegular
	}
}

// ExtractUnsubscribeLink re-exports htmltext's extractor under the
// NewsletterDetector-named surface (NewsletterDetector.extract_unsubscribe_link).
func (d *NewsletterDetector) ExtractUnsubscribeLink(html string) (string, bool) {
	return htmltext.ExtractUnsubscribeLink(html)
}

func resolveSenderName(e *record.Email, domain string) string {
	if e.SenderName != "" {
		return e.SenderName
	}
	if name, ok := catalog.CanonicalSenderName(domain); ok {
		return name
	}
	return catalog.HumanizeDomain(domain)
}

// NewsletterAggregate is one sender's rolled-up newsletter/promotional
// activity, per the batch-aggregation rules in spec §4.8.
type NewsletterAggregate struct {
	SenderEmail     string
	SenderName      string
	Category        NewsletterCategory
	EmailCount      int
	Frequency       string // "daily", "weekly", "monthly", or "irregular"
	UnsubscribeLink string
	LastEmailDate   string
}

// DetectBatch groups qualifying (non-regular) emails by sender_email,
// sorts each group by date descending, and derives frequency from the
// average inter-arrival gap.
func (d *NewsletterDetector) DetectBatch(emails []*record.Email) []NewsletterAggregate {
	groups := make(map[string][]newsletterGroupEntry)
	order := make([]string, 0)

	for _, e := range emails {
		res := d.Detect(e)
		if !res.IsNewsletter && !res.IsPromotional {
			continue
		}
		key := strings.ToLower(e.Sender)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], newsletterGroupEntry{email: e, result: res})
	}

	out := make([]NewsletterAggregate, 0, len(order))
	for _, key := range order {
		entries := groups[key]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].email.Date > entries[j].email.Date
		})

		mostRecent := entries[0]
		category := CategoryNewsletter
		if mostRecent.result.IsPromotional {
			category = CategoryPromotional
		}

		unsubLink := ""
		for _, ge := range entries {
			if ge.result.UnsubscribeLink != "" {
				unsubLink = ge.result.UnsubscribeLink
				break
			}
		}

		out = append(out, NewsletterAggregate{
			SenderEmail:     key,
			SenderName:      mostRecent.result.SenderName,
			Category:        category,
			EmailCount:      len(entries),
			Frequency:       inferFrequency(entries),
			UnsubscribeLink: unsubLink,
			LastEmailDate:   mostRecent.email.Date,
		})
	}
	return out
}

// inferFrequency computes the average inter-arrival gap (in days)
// across a date-descending-sorted group and buckets it per spec §4.8:
// ≤2 days daily, ≤10 weekly, ≤45 monthly, else irregular.
func inferFrequency(entries []newsletterGroupEntry) string {
	if len(entries) < 2 {
		return "irregular"
	}

	var dates []time.Time
	for _, e := range entries {
		t, err := time.Parse(time.RFC3339, e.email.Date)
		if err == nil {
			dates = append(dates, t)
		}
	}
	if len(dates) < 2 {
		return "irregular"
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	totalDays := 0.0
	for i := 1; i < len(dates); i++ {
		totalDays += dates[i-1].Sub(dates[i]).Hours() / 24
	}
	avg := totalDays / float64(len(dates)-1)

	switch {
	case avg <= 2:
		return "daily"
	case avg <= 10:
		return "weekly"
	case avg <= 45:
		return "monthly"
	default:
		return "irregular"
	}
}
