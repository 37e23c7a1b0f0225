package mbox

import (
	"log/slog"

	"github.com/Technical-1/email-archive-parser/internal/chunked"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// ParseGmailLabels re-exports mimewalk's Gmail label parser under the
// name the library surface (spec §6) gives it on MBOXParser.
func ParseGmailLabels(header string) []string {
	return mimewalk.ParseGmailLabels(header)
}

// FolderIDsFromLabels maps a label set to its single canonical
// folder_id, wrapped in a slice for parity with the spec's
// `folder_ids_from_labels(header) -> [id]` surface (in practice exactly
// one id is ever produced, since folder_id is singular on a record).
func FolderIDsFromLabels(labels []string) []string {
	return []string{mimewalk.FolderIDFromLabels(labels)}
}

// Parse reads the entire chunked source and returns every
// successfully-parsed record, in source order. Dropped records are
// silently skipped; a read failure returns whatever was collected so
// far alongside the error.
func Parse(chunks *chunked.Reader, logger *slog.Logger, maxMessageBytes int64, opts mimewalk.Options) ([]*record.Email, error) {
	reader := NewReader(chunks, logger, maxMessageBytes, opts)

	var emails []*record.Email
	for {
		rec, ok, err := reader.Next()
		if err != nil {
			return emails, err
		}
		if !ok {
			return emails, nil
		}
		emails = append(emails, rec)
	}
}

// ParseStreaming drives the reader to completion, invoking onBatch
// every batchSize records (and once more with any remainder) and
// onProgress after every batch, matching
// `MBOXParser.parse_streaming(source, on_progress, on_batch) -> total_count`.
// Returns the total count of emitted (non-dropped) records.
func ParseStreaming(
	chunks *chunked.Reader,
	logger *slog.Logger,
	maxMessageBytes int64,
	opts mimewalk.Options,
	batchSize int,
	onBatch func(batch []*record.Email),
	onProgress func(total int),
) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	reader := NewReader(chunks, logger, maxMessageBytes, opts)

	var batch []*record.Email
	total := 0
	for {
		rec, ok, err := reader.Next()
		if err != nil {
			if len(batch) > 0 && onBatch != nil {
				onBatch(batch)
			}
			return total, err
		}
		if !ok {
			if len(batch) > 0 && onBatch != nil {
				onBatch(batch)
				if onProgress != nil {
					onProgress(total)
				}
			}
			return total, nil
		}

		batch = append(batch, rec)
		total++
		if len(batch) >= batchSize {
			if onBatch != nil {
				onBatch(batch)
			}
			if onProgress != nil {
				onProgress(total)
			}
			batch = nil
		}
	}
}
