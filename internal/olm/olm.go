// Package olm decodes Outlook-for-Mac archive files: ZIP containers
// holding one XML document per message under
// com.microsoft.__Messages/, plus Contacts.xml and Calendar.xml
// siblings. It normalizes each message into the same record.Email
// shape the MBOX path produces.
package olm

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Technical-1/email-archive-parser/internal/htmltext"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// ErrNotOLM names a source that isn't a ZIP archive at all. No function
// in this package returns it: Decode reports every ZIP open failure,
// including a non-ZIP source, as ErrMalformedArchive.
var ErrNotOLM = errors.New("not an olm archive")

// ErrMalformedArchive signals ZIP-level corruption. Fatal per the
// archive's error taxonomy: unlike a single bad message, a bad ZIP
// central directory means nothing in the file can be trusted.
var ErrMalformedArchive = errors.New("malformed olm archive")

// messagePathRe matches the per-message XML entries, case-sensitively,
// anywhere under a com.microsoft.__Messages directory.
var messagePathRe = regexp.MustCompile(`com\.microsoft\.__Messages/.*message_(\d+)\.xml$`)

func isContactsPath(p string) bool {
	base := path.Base(p)
	if base == "Contacts.xml" && (strings.HasPrefix(p, "Address Book/") || strings.Contains(p, "/Contacts/")) {
		return true
	}
	return false
}

func isCalendarPath(p string) bool {
	base := path.Base(p)
	return strings.Contains(base, "Calendar")
}

// IsOLM reports whether data looks like a ZIP container, sniffing the
// local-file-header or end-of-central-directory magic bytes.
func IsOLM(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	sig := data[:4]
	return bytes.Equal(sig, []byte("PK\x03\x04")) || bytes.Equal(sig, []byte("PK\x05\x06"))
}

// Result is everything a single Decode call extracts.
type Result struct {
	Emails   []*record.Email
	Contacts []Contact
	Events   []CalendarEvent
	Skipped  int // entries matched by path but failed to parse and were skipped
}

// ProgressFunc reports coarse-grained decode progress; stage mirrors
// the archive-level parse_archive progress contract.
type ProgressFunc func(stage string, processed, total int)

// Options configures a single Decode call.
type Options struct {
	Logger   *slog.Logger
	Progress ProgressFunc
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) progress(stage string, processed, total int) {
	if o.Progress != nil {
		o.Progress(stage, processed, total)
	}
}

// Decode reads a complete OLM archive from r (size bytes long, as
// required by archive/zip's reader) and extracts messages, contacts,
// and calendar events. Malformed entries are skipped individually;
// only a corrupt ZIP central directory is fatal.
func Decode(r io.ReaderAt, size int64, opts Options) (*Result, error) {
	log := opts.logger()

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	type numberedEntry struct {
		n     int
		entry *zip.File
	}

	var messageEntries []numberedEntry
	var contactEntries []*zip.File
	var calendarEntries []*zip.File

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if m := messagePathRe.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			messageEntries = append(messageEntries, numberedEntry{n: n, entry: f})
			continue
		}
		if isContactsPath(f.Name) {
			contactEntries = append(contactEntries, f)
			continue
		}
		if isCalendarPath(f.Name) {
			calendarEntries = append(calendarEntries, f)
			continue
		}
	}

	// OLM has no byte-offset ordering like MBOX does, so source order
	// is defined as ascending numeric message_<n> suffix, per spec.
	sort.Slice(messageEntries, func(i, j int) bool {
		return messageEntries[i].n < messageEntries[j].n
	})

	res := &Result{}
	total := len(messageEntries)

	for i, me := range messageEntries {
		rec, err := decodeMessageEntry(me.entry)
		if err != nil {
			log.Debug("skipping malformed olm message entry", "name", me.entry.Name, "error", err)
			res.Skipped++
			continue
		}
		res.Emails = append(res.Emails, rec)
		opts.progress("parsing_emails", i+1, total)
	}

	for _, f := range contactEntries {
		contacts, err := decodeContactsEntry(f)
		if err != nil {
			log.Debug("skipping malformed olm contacts entry", "name", f.Name, "error", err)
			res.Skipped++
			continue
		}
		res.Contacts = append(res.Contacts, contacts...)
	}

	for _, f := range calendarEntries {
		events, err := decodeCalendarEntry(f)
		if err != nil {
			log.Debug("skipping malformed olm calendar entry", "name", f.Name, "error", err)
			res.Skipped++
			continue
		}
		res.Events = append(res.Events, events...)
	}

	return res, nil
}

// --- message XML ---

// olmMessage mirrors the OPF-prefixed element vocabulary used by
// Outlook-for-Mac message exports. Only the fields this decoder
// surfaces are modeled; unknown elements are ignored by encoding/xml.
type olmMessage struct {
	XMLName           xml.Name        `xml:"message"`
	Subject           string          `xml:"OPFMessageCopySubject"`
	Body              string          `xml:"OPFMessageCopyBody"`
	HTMLBody          string          `xml:"OPFMessageCopyHTMLBody"`
	SentTime          string          `xml:"OPFMessageCopySentTime"`
	MessageID         string          `xml:"OPFMessageCopyMessageID"`
	ThreadTopic       string          `xml:"OPFMessageCopyThreadTopic"`
	HasAttachments    string          `xml:"OPFMessageCopyHasAttachment"`
	FlagStatus        string          `xml:"OPFMessageCopyFlagStatus"`
	ReadFlag          string          `xml:"OPFMessageCopyReadFlag"`
	From              olmAddressList  `xml:"OPFMessageCopyFromAddresses"`
	To                olmAddressList  `xml:"OPFMessageCopyToAddresses"`
	CC                olmAddressList  `xml:"OPFMessageCopyCCAddresses"`
}

type olmAddressList struct {
	Addresses []olmAddress `xml:"emailAddress"`
}

type olmAddress struct {
	Address     string `xml:"OPFContactEmailAddressAddress,attr"`
	DisplayName string `xml:"OPFContactEmailAddressName,attr"`
}

func firstAddress(list olmAddressList) (addr, name string) {
	if len(list.Addresses) == 0 {
		return "", ""
	}
	a := list.Addresses[0]
	return strings.ToLower(strings.TrimSpace(a.Address)), strings.TrimSpace(a.DisplayName)
}

func allAddresses(list olmAddressList) []string {
	out := make([]string, 0, len(list.Addresses))
	for _, a := range list.Addresses {
		if addr := strings.ToLower(strings.TrimSpace(a.Address)); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// decodeMessageEntry reads and parses one message_<n>.xml entry into a
// normalized record.Email.
func decodeMessageEntry(f *zip.File) (*record.Email, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var msg olmMessage
	if err := xml.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal message xml: %w", err)
	}

	rec := &record.Email{}

	rec.Subject = strings.TrimSpace(msg.Subject)
	if rec.Subject == "" {
		rec.Subject = record.NoSubjectPlaceholder
	}

	sender, senderName := firstAddress(msg.From)
	rec.Sender = sender
	rec.SenderName = senderName

	rec.Recipients = append(rec.Recipients, allAddresses(msg.To)...)
	rec.Recipients = append(rec.Recipients, allAddresses(msg.CC)...)

	rec.Date = parseOLMTime(msg.SentTime)
	rec.MessageID = strings.Trim(msg.MessageID, "<> ")

	rec.Body = strings.TrimSpace(msg.Body)
	rec.HTMLBody = strings.TrimSpace(msg.HTMLBody)
	if rec.Body == "" && rec.HTMLBody != "" {
		rec.Body = htmltext.Strip(rec.HTMLBody)
	}

	rec.HasAttachments = strings.EqualFold(strings.TrimSpace(msg.HasAttachments), "true") ||
		strings.TrimSpace(msg.HasAttachments) == "1"
	rec.IsRead = strings.EqualFold(strings.TrimSpace(msg.ReadFlag), "true") ||
		strings.TrimSpace(msg.ReadFlag) == "1"
	rec.IsStarred = strings.EqualFold(strings.TrimSpace(msg.FlagStatus), "flagged")

	// OLM has no Gmail-label analog; every message lands in inbox.
	rec.FolderID = "inbox"

	rec.ThreadID = record.DeriveThreadID(record.ThreadIDInputs{
		ThreadTopic: msg.ThreadTopic,
		Subject:     rec.Subject,
	})

	rec.Size = record.ObservedSize(len(raw))

	if err := validateHardChecks(rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// validateHardChecks mirrors the MBOX path's hard checks (spec §4.3):
// a sender must contain "@" if present at all, and a record with
// neither sender nor subject content is dropped.
func validateHardChecks(rec *record.Email) error {
	if rec.Sender == "" && rec.Subject == record.NoSubjectPlaceholder {
		return fmt.Errorf("no sender and no subject")
	}
	if rec.Sender != "" && !strings.Contains(rec.Sender, "@") {
		return fmt.Errorf("sender %q missing @", rec.Sender)
	}
	return nil
}

// olmTimeLayouts are the SentTime formats seen across Outlook-for-Mac
// exports; the element is nominally ISO 8601 but some versions emit a
// trailing "Z" inconsistently.
var olmTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseOLMTime(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range olmTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// --- contacts XML ---

// Contact is a single address-book entry from a Contacts.xml file.
// Sender roll-ups from internal/olmcontacts use their own SenderContact
// type.
type Contact struct {
	DisplayName string
	Emails      []string
}

type olmContactsDoc struct {
	XMLName  xml.Name     `xml:"contacts"`
	Contacts []olmContact `xml:"contact"`
}

type olmContact struct {
	DisplayName string         `xml:"OPFContactCopyDisplayName"`
	Emails      olmAddressList `xml:"OPFContactEmailAddresses"`
}

func decodeContactsEntry(f *zip.File) ([]Contact, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var doc olmContactsDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal contacts xml: %w", err)
	}

	out := make([]Contact, 0, len(doc.Contacts))
	for _, c := range doc.Contacts {
		out = append(out, Contact{
			DisplayName: strings.TrimSpace(c.DisplayName),
			Emails:      allAddresses(c.Emails),
		})
	}
	return out, nil
}

// --- calendar XML ---

// CalendarEvent is a single calendar entry extracted from a
// *Calendar*.xml sibling; the spec treats calendar data as informational
// only — it never feeds the detector pipeline.
type CalendarEvent struct {
	Subject   string
	StartTime string
	EndTime   string
	Location  string
}

type olmCalendarDoc struct {
	XMLName xml.Name        `xml:"events"`
	Events  []olmCalEventXML `xml:"event"`
}

type olmCalEventXML struct {
	Subject   string `xml:"OPFCalendarEventCopySubject"`
	StartTime string `xml:"OPFCalendarEventCopyStartTime"`
	EndTime   string `xml:"OPFCalendarEventCopyEndTime"`
	Location  string `xml:"OPFCalendarEventCopyLocation"`
}

func decodeCalendarEntry(f *zip.File) ([]CalendarEvent, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	var doc olmCalendarDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal calendar xml: %w", err)
	}

	out := make([]CalendarEvent, 0, len(doc.Events))
	for _, e := range doc.Events {
		out = append(out, CalendarEvent{
			Subject:   strings.TrimSpace(e.Subject),
			StartTime: strings.TrimSpace(e.StartTime),
			EndTime:   strings.TrimSpace(e.EndTime),
			Location:  strings.TrimSpace(e.Location),
		})
	}
	return out, nil
}
