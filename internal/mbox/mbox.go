// Package mbox splits an MBOX byte stream into individual RFC 822
// message blocks and exposes both a whole-archive parse and a
// streaming iterator, grounded in the same Next()/io.EOF shape the
// wider mail-import corpus uses for this exact job.
package mbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Technical-1/email-archive-parser/internal/chunked"
	"github.com/Technical-1/email-archive-parser/internal/mimewalk"
	"github.com/Technical-1/email-archive-parser/internal/record"
)

// dayTokens are the three-letter day-of-week tokens that, together
// with a "From " prefix, confirm a line is a real message separator
// and not a quoted "From" line inside a body.
var dayTokens = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// IsSeparatorLine reports whether line (without its trailing newline)
// is a valid MBOX "From_" separator: it starts with "From " and
// contains a day-of-week token anywhere in the remainder.
func IsSeparatorLine(line string) bool {
	if !strings.HasPrefix(line, "From ") {
		return false
	}
	rest := line[len("From "):]
	for _, day := range dayTokens {
		if strings.Contains(rest, day) {
			return true
		}
	}
	return false
}

// IsMbox sniffs whether data looks like an MBOX file: its first
// non-empty line is a valid separator.
func IsMbox(data []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(normalizeNewlines(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		return IsSeparatorLine(line)
	}
	return false
}

func normalizeNewlines(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	return data
}

// Splitter turns a sequence of chunks into a sequence of complete
// message-text blocks, carrying a leftover buffer across chunk
// boundaries per spec §4.2. It never partially emits a message.
type Splitter struct {
	logger          *slog.Logger
	leftover        []byte
	maxMessageBytes int64
	offset          int64
}

// NewSplitter constructs a Splitter. maxMessageBytes bounds how large a
// single message's leftover buffer may grow before it is emitted early
// (spec §5); 0 means use the package default of 100 MiB.
func NewSplitter(logger *slog.Logger, maxMessageBytes int64) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxMessageBytes <= 0 {
		maxMessageBytes = 100 * (1 << 20)
	}
	return &Splitter{logger: logger, maxMessageBytes: maxMessageBytes}
}

// Block is one emitted message-text block plus its byte range in the
// normalized (LF-only) source, so callers can assert the
// disjoint-byte-range invariant.
type Block struct {
	Text   []byte
	Offset int64
	Length int64
}

// Feed appends a new chunk and returns every message block that can be
// confidently flushed — i.e. everything up to the last confirmed
// separator. The remainder becomes the new leftover. Pass final=true on
// the last chunk (or with an empty chunk at EOF) to flush everything,
// including a trailing message with no following separator.
func (s *Splitter) Feed(chunk []byte, final bool) []Block {
	s.leftover = append(s.leftover, normalizeNewlines(chunk)...)

	if int64(len(s.leftover)) > s.maxMessageBytes && !final {
		// Emit early to bound memory, per spec §5. This may split a
		// pathologically large message into multiple blocks; mimewalk
		// will simply parse whatever arrived as one RFC822 message.
		block := Block{Text: s.leftover, Offset: s.offset, Length: int64(len(s.leftover))}
		s.offset += int64(len(s.leftover))
		s.leftover = nil
		s.logger.Warn("message exceeded max size, emitting early", "bytes", block.Length)
		return []Block{block}
	}

	lastSep := s.lastSeparatorIndex()
	if lastSep < 0 {
		if final {
			return s.flushAll()
		}
		return nil
	}

	return s.flushUpTo(lastSep, final)
}

// lastSeparatorIndex finds the byte offset of the last confirmed
// separator line in s.leftover, excluding the very first one (which
// starts the first still-open message and is never itself a flush
// point), or -1 if none is found.
func (s *Splitter) lastSeparatorIndex() int {
	lines := splitLinesWithOffsets(s.leftover)
	last := -1
	for i, ln := range lines {
		if i == 0 {
			continue // the opening separator of the currently-building message
		}
		if IsSeparatorLine(string(s.leftover[ln.start:ln.end])) {
			last = ln.start
		}
	}
	return last
}

type lineRange struct{ start, end int }

// splitLinesWithOffsets returns the byte ranges of each line (without
// trailing \n) in data.
func splitLinesWithOffsets(data []byte) []lineRange {
	var lines []lineRange
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, lineRange{start, i})
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, lineRange{start, len(data)})
	}
	return lines
}

// flushUpTo emits everything in s.leftover before index sepStart as one
// block (the message that was building before this separator), and
// keeps everything from sepStart onward as the new leftover — unless
// final, in which case everything flushes as two blocks.
func (s *Splitter) flushUpTo(sepStart int, final bool) []Block {
	var blocks []Block

	if sepStart > 0 {
		text := s.leftover[:sepStart]
		blocks = append(blocks, Block{Text: text, Offset: s.offset, Length: int64(len(text))})
		s.offset += int64(len(text))
	}

	rest := s.leftover[sepStart:]
	if final {
		if len(rest) > 0 {
			blocks = append(blocks, Block{Text: rest, Offset: s.offset, Length: int64(len(rest))})
			s.offset += int64(len(rest))
		}
		s.leftover = nil
	} else {
		s.leftover = rest
	}

	return blocks
}

func (s *Splitter) flushAll() []Block {
	if len(s.leftover) == 0 {
		return nil
	}
	text := s.leftover
	block := Block{Text: text, Offset: s.offset, Length: int64(len(text))}
	s.offset += int64(len(text))
	s.leftover = nil
	return []Block{block}
}

// stripSeparatorLine drops the "From " envelope line (the first line)
// from a block before handing it to mimewalk, per spec §4.2 — it is
// retained as the first line of its block but is not part of the
// RFC822 message itself.
func stripSeparatorLine(block []byte) []byte {
	idx := bytes.IndexByte(block, '\n')
	if idx < 0 {
		return nil
	}
	if !IsSeparatorLine(string(block[:idx])) {
		return block
	}
	return block[idx+1:]
}

// Reader is the streaming iterator surface (MBOXParser.parse_streaming):
// Next returns the next parsed email record, or io.EOF-equivalent via
// ok=false once the source is exhausted. Dropped records (failing a
// hard check) are skipped transparently; Next never returns them.
type Reader struct {
	chunks   *chunked.Reader
	splitter *Splitter
	opts     mimewalk.Options

	pending []Block
	done    bool
	dropped int
}

// Dropped returns the number of messages that failed mimewalk.Parse (or
// reduced to an empty block) and were silently skipped so far, per
// spec §7's recovered-locally MalformedRecord semantics. Safe to call
// at any point, including after Next returns (nil, false, nil).
func (r *Reader) Dropped() int {
	return r.dropped
}

// NewReader builds a streaming reader over a chunked.Reader.
func NewReader(chunks *chunked.Reader, logger *slog.Logger, maxMessageBytes int64, opts mimewalk.Options) *Reader {
	return &Reader{
		chunks:   chunks,
		splitter: NewSplitter(logger, maxMessageBytes),
		opts:     opts,
	}
}

// Next returns the next successfully-parsed record and true, or
// (nil, false) once every block has been consumed. A single malformed
// record is skipped internally and never surfaces as a false return.
func (r *Reader) Next() (*record.Email, bool, error) {
	for {
		if len(r.pending) == 0 {
			if r.done {
				return nil, false, nil
			}
			chunk, err := r.chunks.Next()
			final := false
			if err != nil {
				if !errors.Is(err, io.EOF) {
					return nil, false, fmt.Errorf("read chunk: %w", err)
				}
				final = true
				r.done = true
			}
			r.pending = r.splitter.Feed(chunk, final)
			continue
		}

		block := r.pending[0]
		r.pending = r.pending[1:]

		msgBytes := stripSeparatorLine(block.Text)
		if len(bytes.TrimSpace(msgBytes)) == 0 {
			continue
		}

		rec, err := mimewalk.Parse(msgBytes, r.opts)
		if err != nil {
			r.dropped++
			continue // malformed/dropped record: stream continues (spec §4.3, §7)
		}
		rec.SourceOffset = block.Offset
		rec.SourceLength = block.Length
		return rec, true, nil
	}
}
