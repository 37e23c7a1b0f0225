// Package archive is the top-level entry point: it auto-detects an
// archive's format, dispatches to the MBOX or OLM decoder, runs
// whichever detectors the caller asked for, and assembles one
// ParseResult. This is the parse_archive(source, options) -> ParseResult
// surface of the library.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Technical-1/email-archive-parser/internal/catalog"
	"github.com/Technical-1/email-archive-parser/internal/chunked"
	"github.com/Technical-1/email-archive-parser/internal/detect"
	"github.com/Technical-1/email-archive-parser/internal/mbox"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/olm"
	"github.com/Technical-1/email-archive-parser/internal/olmcontacts"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// Format identifies which decoder produced a ParseResult.
type Format string

const (
	FormatMBOX    Format = "mbox"
	FormatOLM     Format = "olm"
	FormatUnknown Format = "unknown"
)

// ProgressEvent mirrors the on_progress contract from spec §6: a stage
// name, a 0-100 completion estimate, and a free-form message.
type ProgressEvent struct {
	Stage    string
	Progress int
	Message  string
}

// Stage names reported via ProgressFunc.
const (
	StageExtracting      = "extracting"
	StageParsingEmails   = "parsing_emails"
	StageParsingContacts = "parsing_contacts"
	StageParsingCalendar = "parsing_calendar"
	StageDetecting       = "detecting"
	StageComplete        = "complete"
)

// ProgressFunc receives progress events at >=1% intervals, best effort.
type ProgressFunc func(ProgressEvent)

// Options configures a single Parse call. All detector toggles default
// to false. ExtractContacts is also false unless the caller sets it
// (config.Default and config.Load turn it on); it only affects OLM
// archives.
type Options struct {
	Logger   *slog.Logger
	Progress ProgressFunc

	DetectAccounts      bool
	DetectPurchases     bool
	DetectSubscriptions bool
	DetectNewsletters   bool
	ExtractContacts     bool

	MaxMessageBytes      int64
	BinaryGuardThreshold float64
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o Options) emit(stage string, progress int, message string) {
	if o.Progress != nil {
		o.Progress(ProgressEvent{Stage: stage, Progress: progress, Message: message})
	}
}

func (o Options) maxMessageBytes() int64 {
	if o.MaxMessageBytes > 0 {
		return o.MaxMessageBytes
	}
	return 100 << 20
}

func (o Options) mimewalkOptions() mimewalk.Options {
	return mimewalk.Options{
		Logger:               o.logger(),
		BinaryGuardThreshold: o.BinaryGuardThreshold,
	}
}

// Stats summarizes a completed parse, independent of which detectors
// ran.
type Stats struct {
	EmailCount     int
	ContactCount   int
	CalendarCount  int
	DroppedRecords int
	ElapsedSeconds float64
}

// ParseResult is the library's single return value: every normalized
// email plus whatever detector aggregates were requested.
type ParseResult struct {
	Format   Format
	Emails   []*record.Email
	Contacts []olmcontacts.SenderContact
	Events   []olm.CalendarEvent
	Stats    Stats

	Accounts      []detect.AccountResult
	Purchases     []detect.PurchaseResult
	Subscriptions []detect.SubscriptionResult
	Newsletters   []detect.NewsletterAggregate

	// Cancelled is true when ctx was cancelled mid-parse; per spec §5,
	// a cancelled parse discards partial detector state, so the
	// aggregate fields above are left nil and only Emails reflects
	// what was read before the cancellation was observed.
	Cancelled bool
}

// ErrCancelled is returned (wrapping ctx.Err()) when Parse is
// cancelled before it can finish.
type ErrCancelled struct{ Cause error }

func (e *ErrCancelled) Error() string { return fmt.Sprintf("parse cancelled: %v", e.Cause) }
func (e *ErrCancelled) Unwrap() error { return e.Cause }

// ParseBytes auto-detects format from an in-memory buffer and parses
// it completely.
func ParseBytes(ctx context.Context, data []byte, opts Options) (*ParseResult, error) {
	if olm.IsOLM(data) {
		return parseOLM(ctx, bytes.NewReader(data), int64(len(data)), opts)
	}
	return parseMBOXBuffer(ctx, data, opts)
}

// ParsePath auto-detects format from a file on disk and parses it
// completely, streaming from disk for MBOX rather than loading the
// whole file into memory.
func ParsePath(ctx context.Context, path string, opts Options) (*ParseResult, error) {
	head := make([]byte, 4)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	n, _ := f.Read(head)
	f.Close()

	if olm.IsOLM(head[:n]) {
		zf, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer zf.Close()
		info, err := zf.Stat()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		return parseOLM(ctx, zf, info.Size(), opts)
	}

	return parseMBOXPath(ctx, path, opts)
}

func parseMBOXBuffer(ctx context.Context, data []byte, opts Options) (*ParseResult, error) {
	start := time.Now()
	chunks := chunked.NewFromBuffer(opts.logger(), data)
	return runMBOX(ctx, chunks, opts, start)
}

func parseMBOXPath(ctx context.Context, path string, opts Options) (*ParseResult, error) {
	start := time.Now()
	chunks, err := chunked.NewFromPath(opts.logger(), path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer chunks.Close()
	return runMBOX(ctx, chunks, opts, start)
}

func runMBOX(ctx context.Context, chunks *chunked.Reader, opts Options, start time.Time) (*ParseResult, error) {
	opts.emit(StageExtracting, 0, "reading mbox archive")

	reader := mbox.NewReader(chunks, opts.logger(), opts.maxMessageBytes(), opts.mimewalkOptions())

	var emails []*record.Email
	for {
		select {
		case <-ctx.Done():
			return &ParseResult{Format: FormatMBOX, Cancelled: true, Emails: emails}, &ErrCancelled{Cause: ctx.Err()}
		default:
		}

		rec, ok, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("mbox read: %w", err)
		}
		if !ok {
			break
		}
		ensureMessageID(rec)
		emails = append(emails, rec)

		if len(emails)%100 == 0 {
			opts.emit(StageParsingEmails, 0, fmt.Sprintf("parsed %d emails", len(emails)))
		}
	}

	opts.emit(StageParsingEmails, 100, fmt.Sprintf("parsed %d emails", len(emails)))

	result := &ParseResult{Format: FormatMBOX, Emails: emails}
	runDetectors(result, emails, opts)

	result.Stats = Stats{
		EmailCount:     len(emails),
		DroppedRecords: reader.Dropped(),
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	opts.emit(StageComplete, 100, "parse complete")
	return result, nil
}

func parseOLM(ctx context.Context, r olmReaderAt, size int64, opts Options) (*ParseResult, error) {
	start := time.Now()
	opts.emit(StageExtracting, 0, "reading olm archive")

	decoded, err := olm.Decode(r, size, olm.Options{
		Logger: opts.logger(),
		Progress: func(stage string, processed, total int) {
			pct := 0
			if total > 0 {
				pct = processed * 100 / total
			}
			opts.emit(stage, pct, fmt.Sprintf("%d/%d", processed, total))
		},
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return &ParseResult{Format: FormatOLM, Cancelled: true}, &ErrCancelled{Cause: ctx.Err()}
	default:
	}

	for _, rec := range decoded.Emails {
		ensureMessageID(rec)
	}

	result := &ParseResult{
		Format: FormatOLM,
		Emails: decoded.Emails,
		Events: decoded.Events,
	}

	if opts.ExtractContacts {
		opts.emit(StageParsingContacts, 0, "rolling up sender contacts")
		result.Contacts = olmcontacts.RollUp(decoded.Emails)
	}
	if len(decoded.Events) > 0 {
		opts.emit(StageParsingCalendar, 100, fmt.Sprintf("%d calendar events", len(decoded.Events)))
	}

	runDetectors(result, decoded.Emails, opts)

	result.Stats = Stats{
		EmailCount:     len(decoded.Emails),
		ContactCount:   len(result.Contacts),
		CalendarCount:  len(decoded.Events),
		DroppedRecords: decoded.Skipped,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	opts.emit(StageComplete, 100, "parse complete")
	return result, nil
}

// olmReaderAt is the io.ReaderAt surface olm.Decode needs; declared
// here so ParseBytes/ParsePath can share one dispatch path without
// importing archive/zip themselves.
type olmReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

func runDetectors(result *ParseResult, emails []*record.Email, opts Options) {
	if !opts.DetectAccounts && !opts.DetectPurchases && !opts.DetectSubscriptions && !opts.DetectNewsletters {
		return
	}
	opts.emit(StageDetecting, 0, "running detectors")

	if opts.DetectAccounts {
		result.Accounts = detect.NewAccountDetector().DetectBatch(emails)
	}
	if opts.DetectPurchases {
		result.Purchases = detect.NewPurchaseDetector().DetectBatch(emails)
	}
	if opts.DetectSubscriptions {
		result.Subscriptions = detect.NewSubscriptionDetector().DetectBatch(emails)
	}
	if opts.DetectNewsletters {
		result.Newsletters = detect.NewNewsletterDetector().DetectBatch(emails)
	}

	opts.emit(StageDetecting, 100, "detectors complete")
}

// ensureMessageID assigns a synthetic, per-process-unique message ID
// to records lacking an RFC 822 Message-ID — detector batch grouping
// and any downstream join keys need a stable identifier either way.
func ensureMessageID(rec *record.Email) {
	if rec.MessageID == "" {
		rec.MessageID = uuid.NewString()
	}
}

// KnownServices exposes the account-service catalog's known display
// names for hosts that want to render a legend without importing
// internal/catalog directly.
func KnownServices() []string {
	return catalog.KnownServices()
}
