package mbox

import (
	"log/slog"
	"testing"

	"github.com/Technical-1/email-archive-parser/internal/chunked"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

func TestIsSeparatorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"From a@b.com Mon Jan  1 00:00:00 2024", true},
		{"From someone Wed Mar 12 10:00:00 2024", true},
		{"From a quoted message in a reply", false}, // no day token
		{"Subject: From the team", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsSeparatorLine(tt.line); got != tt.want {
			t.Errorf("IsSeparatorLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestIsMbox(t *testing.T) {
	valid := []byte("From a@b.com Mon Jan  1 00:00:00 2024\r\nSubject: hi\r\n\r\nbody\r\n")
	if !IsMbox(valid) {
		t.Error("expected valid mbox data to be detected")
	}

	invalid := []byte("Not an mbox file at all\r\njust text\r\n")
	if IsMbox(invalid) {
		t.Error("expected non-mbox data to be rejected")
	}
}

func twoMessageMbox() []byte {
	return []byte(
		"From alice@example.com Mon Jan  1 00:00:00 2024\r\n" +
			"From: alice@example.com\r\n" +
			"Subject: First message\r\n\r\n" +
			"First body\r\n" +
			"From bob@example.com Tue Jan  2 00:00:00 2024\r\n" +
			"From: bob@example.com\r\n" +
			"Subject: Second message\r\n\r\n" +
			"Second body\r\n")
}

func TestReader_ParsesTwoMessagesInOrder(t *testing.T) {
	data := twoMessageMbox()
	chunks := chunked.NewFromBuffer(slog.Default(), data)
	reader := NewReader(chunks, slog.Default(), 0, mimewalk.Options{})

	var subjects []string
	for {
		rec, ok, err := reader.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if !ok {
			break
		}
		subjects = append(subjects, rec.Subject)
	}

	if len(subjects) != 2 {
		t.Fatalf("got %d records, want 2: %v", len(subjects), subjects)
	}
	if subjects[0] != "First message" || subjects[1] != "Second message" {
		t.Errorf("subjects out of order or wrong: %v", subjects)
	}
}

func TestReader_FromLineWithoutDayTokenIsNotASeparator(t *testing.T) {
	data := []byte(
		"From alice@example.com not-a-day\r\n" + // malformed separator line
			"From: alice@example.com\r\n" +
			"Subject: Only message\r\n\r\n" +
			"Body referencing From someone else inline\r\n")

	// With no valid separator at all, the whole blob is one leftover
	// message block; mimewalk will still parse headers out of it,
	// ignoring the bogus "From " content line since it's not the
	// first line of the block passed to Parse here (stripSeparatorLine
	// only strips a genuine separator).
	chunks := chunked.NewFromBuffer(slog.Default(), data)
	reader := NewReader(chunks, slog.Default(), 0, mimewalk.Options{})

	count := 0
	for {
		_, ok, err := reader.Next()
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Errorf("got %d records, want 1", count)
	}
}

func TestParse_AllRecordsReturned(t *testing.T) {
	data := twoMessageMbox()
	chunks := chunked.NewFromBuffer(slog.Default(), data)
	emails, err := Parse(chunks, slog.Default(), 0, mimewalk.Options{})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("got %d emails, want 2", len(emails))
	}
}

func TestParseStreaming_BatchesAndTotal(t *testing.T) {
	data := twoMessageMbox()
	chunks := chunked.NewFromBuffer(slog.Default(), data)

	var batchSizes []int
	var progressCalls []int
	total, err := ParseStreaming(chunks, slog.Default(), 0, mimewalk.Options{}, 1,
		func(batch []*record.Email) { batchSizes = append(batchSizes, len(batch)) },
		func(seen int) { progressCalls = append(progressCalls, seen) },
	)
	if err != nil {
		t.Fatalf("ParseStreaming error: %v", err)
	}
	if total != 2 {
		t.Fatalf("got total %d, want 2", total)
	}
	if len(batchSizes) != 2 {
		t.Fatalf("got %d batches, want 2 (batchSize=1): %v", len(batchSizes), batchSizes)
	}
	for _, n := range batchSizes {
		if n != 1 {
			t.Errorf("batch size %d, want 1", n)
		}
	}
	if len(progressCalls) != 2 || progressCalls[0] != 1 || progressCalls[1] != 2 {
		t.Errorf("unexpected progress calls: %v", progressCalls)
	}
}

// TestParseStreaming_EquivalentToParse covers the streaming-equivalence
// property: concatenating parse_streaming's batches yields the same
// records, in the same order, as a whole-archive parse.
func TestParseStreaming_EquivalentToParse(t *testing.T) {
	data := twoMessageMbox()

	wholeChunks := chunked.NewFromBuffer(slog.Default(), data)
	whole, err := Parse(wholeChunks, slog.Default(), 0, mimewalk.Options{})
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	streamChunks := chunked.NewFromBuffer(slog.Default(), data)
	var streamed []*record.Email
	_, err = ParseStreaming(streamChunks, slog.Default(), 0, mimewalk.Options{}, 1,
		func(batch []*record.Email) { streamed = append(streamed, batch...) }, nil)
	if err != nil {
		t.Fatalf("ParseStreaming error: %v", err)
	}

	if len(whole) != len(streamed) {
		t.Fatalf("whole has %d records, streamed has %d", len(whole), len(streamed))
	}
	for i := range whole {
		if whole[i].Subject != streamed[i].Subject {
			t.Errorf("record %d subject mismatch: whole=%q streamed=%q", i, whole[i].Subject, streamed[i].Subject)
		}
	}
}
