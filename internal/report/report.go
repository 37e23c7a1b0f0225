// Package report renders a completed archive parse as a human-readable
// summary: markdown first, then optionally HTML or plain text derived
// from that same markdown, in the same two-birds-one-stone shape the
// teacher's mail-compose path uses for its outgoing message bodies.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"

	"github.com/Technical-1/email-archive-parser/internal/archive"
)

// BuildMarkdown renders a ParseResult as a markdown summary: overall
// stats followed by one section per detector aggregate that was
// populated. Detector sections are omitted entirely when their slice is
// nil, so a parse run with no detectors requested yields a short
// stats-only report.
func BuildMarkdown(result *archive.ParseResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Archive Summary\n\n")
	fmt.Fprintf(&b, "- **Format**: %s\n", result.Format)
	fmt.Fprintf(&b, "- **Emails parsed**: %s\n", humanize.Comma(int64(result.Stats.EmailCount)))
	if result.Stats.ContactCount > 0 {
		fmt.Fprintf(&b, "- **Contacts extracted**: %s\n", humanize.Comma(int64(result.Stats.ContactCount)))
	}
	if result.Stats.CalendarCount > 0 {
		fmt.Fprintf(&b, "- **Calendar events**: %s\n", humanize.Comma(int64(result.Stats.CalendarCount)))
	}
	if result.Stats.DroppedRecords > 0 {
		fmt.Fprintf(&b, "- **Dropped records**: %s\n", humanize.Comma(int64(result.Stats.DroppedRecords)))
	}
	fmt.Fprintf(&b, "- **Elapsed**: %.2fs\n", result.Stats.ElapsedSeconds)
	if result.Cancelled {
		fmt.Fprintf(&b, "\n> Parse was cancelled before completion; counts above reflect only what was read.\n")
	}

	writeAccountsSection(&b, result)
	writePurchasesSection(&b, result)
	writeSubscriptionsSection(&b, result)
	writeNewslettersSection(&b, result)

	return b.String()
}

func writeAccountsSection(b *strings.Builder, result *archive.ParseResult) {
	if len(result.Accounts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## Accounts Created (%d)\n\n", len(result.Accounts))
	fmt.Fprintf(b, "| Service | Confidence | Signup Date | Emails |\n")
	fmt.Fprintf(b, "|---|---|---|---|\n")
	for _, a := range result.Accounts {
		fmt.Fprintf(b, "| %s | %d%% | %s | %d |\n", a.ServiceName, a.Confidence, a.SignupDate, a.EmailCount)
	}
}

func writePurchasesSection(b *strings.Builder, result *archive.ParseResult) {
	if len(result.Purchases) == 0 {
		return
	}
	var total float64
	for _, p := range result.Purchases {
		total += p.Amount
	}
	fmt.Fprintf(b, "\n## Purchases (%d, total $%.2f)\n\n", len(result.Purchases), total)
	fmt.Fprintf(b, "| Merchant | Amount | Order Number | Confidence |\n")
	fmt.Fprintf(b, "|---|---|---|---|\n")
	for _, p := range result.Purchases {
		fmt.Fprintf(b, "| %s | %s %.2f | %s | %d%% |\n", p.Merchant, p.Currency, p.Amount, p.OrderNumber, p.Confidence)
	}
}

func writeSubscriptionsSection(b *strings.Builder, result *archive.ParseResult) {
	if len(result.Subscriptions) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## Subscriptions (%d)\n\n", len(result.Subscriptions))
	fmt.Fprintf(b, "| Service | Amount | Frequency | Last Renewal |\n")
	fmt.Fprintf(b, "|---|---|---|---|\n")
	for _, s := range result.Subscriptions {
		fmt.Fprintf(b, "| %s | %s %.2f | %s | %s |\n", s.ServiceName, s.Currency, s.MonthlyAmount, s.Frequency, s.LastRenewalDate)
	}
}

func writeNewslettersSection(b *strings.Builder, result *archive.ParseResult) {
	if len(result.Newsletters) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## Newsletters & Promotions (%d senders)\n\n", len(result.Newsletters))
	fmt.Fprintf(b, "| Sender | Category | Emails | Frequency | Last Email |\n")
	fmt.Fprintf(b, "|---|---|---|---|---|\n")
	for _, n := range result.Newsletters {
		name := n.SenderName
		if name == "" {
			name = n.SenderEmail
		}
		fmt.Fprintf(b, "| %s | %s | %d | %s | %s |\n", name, n.Category, n.EmailCount, n.Frequency, n.LastEmailDate)
	}
}

// renderHTML wraps goldmark's markdown-to-HTML output in a minimal,
// self-contained document with no external resources, matching the
// envelope the teacher's compose path uses for outgoing mail bodies.
func renderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render markdown to html: %w", err)
	}

	html := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Archive Summary</title></head>
<body style="font-family: sans-serif; font-size: 14px; line-height: 1.5;">
%s
</body></html>`, buf.String())

	return html, nil
}

// RenderHTML renders a ParseResult directly to a self-contained HTML
// document.
func RenderHTML(result *archive.ParseResult) (string, error) {
	return renderHTML(BuildMarkdown(result))
}

// Patterns for stripping markdown formatting down to plain text.
var (
	mdBold      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdTableRule = regexp.MustCompile(`(?m)^\|[-| ]+\|\n?`)
	mdBullet    = regexp.MustCompile(`(?m)^-\s+`)
)

// RenderPlainText strips markdown formatting from the summary, leaving
// readable plain text suitable for a terminal or a plain-text email
// body.
func RenderPlainText(result *archive.ParseResult) string {
	s := BuildMarkdown(result)
	s = mdTableRule.ReplaceAllString(s, "")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "  ")
	return strings.TrimSpace(s)
}
