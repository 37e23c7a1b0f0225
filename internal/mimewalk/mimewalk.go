// Package mimewalk turns one raw RFC 822 message block — from either
// the MBOX splitter or a synthesized OLM message — into a normalized
// record.Email. It walks MIME multipart structure, decodes transfer
// encodings and RFC 2047 header words via go-message, and applies the
// binary-content guard and Gmail-label interpretation the spec
// requires on top of that.
package mimewalk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/Technical-1/email-archive-parser/internal/catalog"
	"github.com/Technical-1/email-archive-parser/internal/htmltext"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// ErrDropped signals that a record failed a hard check and must be
// silently skipped per spec §4.3 failure semantics — not a fatal error,
// the caller just continues to the next message.
var ErrDropped = errors.New("record dropped")

// maxBodyBytes caps how much of a single text part is retained, mirroring
// the teacher's truncate-with-note convention for oversized bodies.
const maxBodyBytes = 512 * 1024

// Options configures a single Parse call.
type Options struct {
	Logger               *slog.Logger
	BinaryGuardThreshold  float64 // fraction (0-1); default 0.30
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) threshold() float64 {
	if o.BinaryGuardThreshold > 0 {
		return o.BinaryGuardThreshold
	}
	return 0.30
}

// Parse walks raw (a complete RFC 822 message, with any MBOX "From "
// envelope line already stripped by the caller) and returns a
// normalized email record. It returns ErrDropped, wrapped with a
// reason, when the record fails a hard check and must be silently
// skipped; any other error indicates a genuine parse failure the
// caller may also choose to treat as a drop.
func Parse(raw []byte, opts Options) (*record.Email, error) {
	log := opts.logger()

	mailReader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("create mail reader: %w", err)
	}
	if mailReader == nil {
		return nil, fmt.Errorf("create mail reader: %w", err)
	}
	if err != nil {
		log.Debug("mail reader created with charset warning", "error", err)
	}

	rec := &record.Email{}
	header := mailReader.Header

	rec.Subject = decodeSubject(header)
	if rec.Subject == "" {
		rec.Subject = record.NoSubjectPlaceholder
	}

	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		rec.Sender = strings.ToLower(strings.Trim(from[0].Address, "<> "))
		rec.SenderName = from[0].Name
	} else {
		rec.Sender, rec.SenderName = fallbackAddress(header.Get("From"))
	}

	rec.Recipients = append(rec.Recipients, addressListOrFallback(header, "To")...)
	rec.Recipients = append(rec.Recipients, addressListOrFallback(header, "Cc")...)

	rec.Date = dateOrNow(header)
	rec.MessageID = strings.Trim(header.Get("Message-Id"), "<> ")

	labels := ParseGmailLabels(header.Get("X-Gmail-Labels"))
	rec.Labels = labels
	rec.FolderID = FolderIDFromLabels(labels)
	rec.IsRead = !containsFold(labels, "unread")
	rec.IsStarred = containsFold(labels, "starred")

	threadInputs := record.ThreadIDInputs{
		GmThrid:     header.Get("X-Gm-Thrid"),
		ThreadTopic: header.Get("Thread-Topic"),
		References:  header.Get("References"),
		InReplyTo:   header.Get("In-Reply-To"),
		Subject:     rec.Subject,
	}
	rec.ThreadID = record.DeriveThreadID(threadInputs)

	rawFallback, err := walkParts(mailReader, rec, log)
	if err != nil {
		log.Debug("error walking mime parts", "error", err)
	}

	rec.Size = record.ObservedSize(len(raw))

	if rec.Body == "" && rec.HTMLBody != "" {
		rec.Body = htmltext.Strip(rec.HTMLBody)
	}

	if rec.Body == "" && rec.HTMLBody == "" {
		if candidate := stripMIMEScaffold(rawFallback); printableCount(candidate) >= 20 {
			rec.Body = candidate
		}
	}

	if err := validateHardChecks(rec, opts.threshold()); err != nil {
		return nil, err
	}

	return rec, nil
}

// walkParts depth-first-traverses the MIME tree (go-message's NextPart
// already recurses into nested multiparts), filling Body with the
// first text/plain part and HTMLBody with the first text/html part,
// and setting HasAttachments when any part carries an attachment
// disposition. It also returns the content of the first inline part
// whose content type is neither, as raw material for the no-body
// fallback in Parse.
func walkParts(mailReader *mail.Reader, rec *record.Email, log *slog.Logger) (string, error) {
	var rawFallback string
	for {
		part, err := mailReader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				log.Debug("part has charset warning", "error", err)
			} else if isUnknownEncodingErr(err) {
				log.Warn("unknown content-transfer-encoding, passthrough", "error", err)
			} else {
				return rawFallback, fmt.Errorf("next part: %w", err)
			}
			if part == nil {
				continue
			}
		}
		if part == nil {
			continue
		}

		switch h := part.Header.(type) {
		case *mail.AttachmentHeader:
			rec.HasAttachments = true
			continue
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			switch {
			case contentType == "text/plain" && rec.Body == "":
				rec.Body = readLimited(part.Body, log)
			case contentType == "text/html" && rec.HTMLBody == "":
				rec.HTMLBody = readLimited(part.Body, log)
			case rawFallback == "":
				rawFallback = readLimited(part.Body, log)
			}
		}
	}
	return rawFallback, nil
}

func isUnknownEncodingErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "encoding")
}

func readLimited(r io.Reader, log *slog.Logger) string {
	body, err := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	if err != nil {
		log.Debug("error reading part body", "error", err)
		return ""
	}
	text := string(body)
	if len(body) > maxBodyBytes {
		text = text[:maxBodyBytes] + "\n\n[truncated]"
	}
	return strings.TrimSpace(text)
}

// mimeScaffoldLineRe matches lines that are MIME structure rather than
// message content: boundary delimiters and header-like "Key: value"
// lines that sometimes leak into a part's body when its content type
// went unrecognized.
var mimeScaffoldLineRe = regexp.MustCompile(`(?i)^(--|content-type:|content-transfer-encoding:|content-disposition:|mime-version:)`)

// stripMIMEScaffold drops scaffold lines from a fallback part body, per
// the no-body fallback in Parse.
func stripMIMEScaffold(body string) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if mimeScaffoldLineRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// printableCount counts printable, non-whitespace runes, the measure
// the no-body fallback's 20-character threshold is checked against.
func printableCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsPrint(r) {
			n++
		}
	}
	return n
}

func decodeSubject(header mail.Header) string {
	subject, err := header.Subject()
	if err != nil {
		return strings.TrimSpace(header.Get("Subject"))
	}
	return strings.TrimSpace(subject)
}

func addressListOrFallback(header mail.Header, field string) []string {
	if list, err := header.AddressList(field); err == nil {
		addrs := make([]string, 0, len(list))
		for _, a := range list {
			addrs = append(addrs, strings.ToLower(strings.Trim(a.Address, "<> ")))
		}
		return addrs
	}

	raw := header.Get(field)
	if raw == "" {
		return nil
	}
	return splitAddressList(raw)
}

// addrDelimRe splits a raw recipient header on commas or semicolons,
// per spec §4.3.5.
var addrDelimRe = regexp.MustCompile(`[,;]`)

func splitAddressList(raw string) []string {
	parts := addrDelimRe.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		addr, _ := fallbackAddress(p)
		if addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// nameAddrRe matches `"Name" <addr@host>` or `Name <addr@host>`.
var nameAddrRe = regexp.MustCompile(`^\s*"?([^"<]*?)"?\s*<([^<>]+)>\s*$`)

// fallbackAddress parses a single address token when go-message's
// structured parser rejects it. Malformed tokens yield the raw trimmed
// value as the address and no display name, per spec §4.3.5.
func fallbackAddress(raw string) (addr, name string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if m := nameAddrRe.FindStringSubmatch(raw); m != nil {
		return strings.ToLower(strings.TrimSpace(m[2])), strings.TrimSpace(m[1])
	}
	return strings.ToLower(strings.Trim(raw, "<> ")), ""
}

// timeNow is overridable in tests so "falls back to now" assertions
// don't depend on wall-clock time.
var timeNow = time.Now

func dateOrNow(header mail.Header) string {
	if t, err := header.Date(); err == nil && !t.IsZero() {
		return t.UTC().Format(time.RFC3339)
	}
	return timeNow().UTC().Format(time.RFC3339)
}

func containsFold(list []string, target string) bool {
	for _, v := range list {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// --- Gmail label handling (spec §4.3.6, §6) ---

// systemLabels are excluded from custom-label consideration when
// deriving folder_id.
var systemLabels = map[string]bool{
	"opened": true, "unread": true, "starred": true, "important": true,
	"all mail": true,
}

func isSystemLabel(label string) bool {
	if systemLabels[label] {
		return true
	}
	return strings.HasPrefix(label, "category ")
}

// ParseGmailLabels parses an X-Gmail-Labels header value: a
// comma-separated list with double-quote escaping for labels
// containing commas, each lowercased.
func ParseGmailLabels(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var labels []string
	var current strings.Builder
	inQuotes := false
	runes := []rune(header)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			labels = append(labels, strings.ToLower(strings.TrimSpace(current.String())))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 || len(labels) > 0 {
		labels = append(labels, strings.ToLower(strings.TrimSpace(current.String())))
	}

	out := labels[:0]
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// kebabLabelRe strips anything that isn't a lowercase letter, digit,
// or hyphen from a custom label before it becomes a folder_id.
var kebabLabelRe = regexp.MustCompile(`[^a-z0-9-]`)

func kebabLabel(label string) string {
	s := strings.ReplaceAll(strings.ToLower(label), " ", "-")
	s = kebabLabelRe.ReplaceAllString(s, "")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// FolderIDFromLabels maps a parsed label set to a single canonical
// folder_id, per the priority order in spec §6: inbox > sent >
// drafts > spam > trash > first custom label (kebab-cased) > archive.
func FolderIDFromLabels(labels []string) string {
	has := func(names ...string) bool {
		for _, n := range names {
			if containsFold(labels, n) {
				return true
			}
		}
		return false
	}

	switch {
	case has("inbox"):
		return "inbox"
	case has("sent", "sent mail"):
		return "sent"
	case has("draft", "drafts"):
		return "drafts"
	case has("spam"):
		return "spam"
	case has("trash"):
		return "trash"
	}

	for _, l := range labels {
		if isSystemLabel(l) {
			continue
		}
		if kebab := kebabLabel(l); kebab != "" {
			return kebab
		}
	}

	return "archive"
}

// --- binary-content guard (spec §4.3.7) ---

var (
	binaryPrefixes = [][]byte{
		[]byte("/9j/"),   // JPEG base64 prefix
		[]byte("iVBOR"),  // PNG base64 prefix
		[]byte("GIF8"),   // GIF magic
	}
	binaryTokens = [][]byte{
		[]byte("JFIF"),
		[]byte("Exif"),
	}
)

// looksBinary implements the binary-content guard: JFIF/Exif tokens in
// the first 100 bytes, known base64/magic prefixes, or more than 30%
// non-printable ASCII (excluding CR/LF/TAB) in the first 200 bytes.
func looksBinary(body string, threshold float64) bool {
	b := []byte(body)

	head100 := b
	if len(head100) > 100 {
		head100 = head100[:100]
	}
	for _, tok := range binaryTokens {
		if bytes.Contains(head100, tok) {
			return true
		}
	}
	for _, prefix := range binaryPrefixes {
		if bytes.HasPrefix(bytes.TrimSpace(b), prefix) {
			return true
		}
	}

	head200 := b
	if len(head200) > 200 {
		head200 = head200[:200]
	}
	if len(head200) == 0 {
		return false
	}
	nonPrintable := 0
	for _, c := range head200 {
		if c == '\r' || c == '\n' || c == '\t' {
			continue
		}
		if c < 0x20 || c >= 0x7f {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(head200)) > threshold
}

// validateHardChecks drops a record missing both sender and subject,
// with a sender lacking "@", or whose body is binary under a default
// placeholder subject — per spec §4.3 failure semantics.
func validateHardChecks(rec *record.Email, threshold float64) error {
	if rec.Sender == "" && rec.Subject == record.NoSubjectPlaceholder {
		return fmt.Errorf("%w: no sender and no subject", ErrDropped)
	}
	if rec.Sender != "" && !strings.Contains(rec.Sender, "@") {
		return fmt.Errorf("%w: sender %q missing @", ErrDropped, rec.Sender)
	}
	if rec.Body != "" && looksBinary(rec.Body, threshold) && rec.Subject == record.NoSubjectPlaceholder {
		return fmt.Errorf("%w: binary content guard", ErrDropped)
	}
	if rec.Body == "" && rec.HTMLBody == "" && rec.Subject == record.NoSubjectPlaceholder {
		return fmt.Errorf("%w: empty body and no subject", ErrDropped)
	}
	return nil
}

// SenderDomain returns the domain portion of a normalized sender
// address, or "" if there is no "@".
func SenderDomain(sender string) string {
	idx := strings.LastIndex(sender, "@")
	if idx < 0 {
		return ""
	}
	return sender[idx+1:]
}

// ServiceTypeForDomain is a thin convenience wrapper so callers outside
// the detect package (e.g. reports) can resolve a domain without
// importing catalog directly for this one lookup.
func ServiceTypeForDomain(domain string) (catalog.Service, bool) {
	return catalog.LookupService(domain)
}
