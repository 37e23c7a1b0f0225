// Package chunked exposes a sequential byte-chunk iterator over a file
// path or an in-memory buffer, so downstream parsers never need the
// entire archive resident in memory at once.
package chunked

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"unicode/utf8"

	"github.com/Technical-1/email-archive-parser/internal/config"
)

// ErrSourceUnavailable wraps any I/O failure opening or reading the
// byte source. It is the sentinel surfaced to callers per the
// SourceUnavailable error-taxonomy member.
var ErrSourceUnavailable = errors.New("source unavailable")

// DefaultPathChunkBytes and DefaultBufferChunkBytes mirror the spec's
// stated defaults (100 MiB for paths, 5 MiB for in-memory buffers) and
// are used when a Reader is built without an explicit *config.Config.
const (
	DefaultPathChunkBytes        = 100 * (1 << 20)
	DefaultBufferChunkBytes      = 5 * (1 << 20)
	DefaultBufferInlineThreshold = 500 * (1 << 20)
)

// sourceMode records which constructor built a Reader, so Next can pick
// the matching chunk-size setting.
type sourceMode int

const (
	modePath sourceMode = iota
	modeBuffer
)

// Reader yields successive, owned byte chunks from a path or buffer
// source. Each chunk is valid UTF-8: invalid byte sequences are
// replaced with utf8.RuneError's encoding, never causing a parse abort.
type Reader struct {
	logger *slog.Logger

	mode             sourceMode
	pathChunkBytes   int64
	bufferChunkBytes int64
	inlineThreshold  int64

	src io.ReadCloser
	err error
}

// chunkBytes returns the chunk size Next should read, per r.mode.
func (r *Reader) chunkBytes() int64 {
	if r.mode == modePath {
		return r.pathChunkBytes
	}
	return r.bufferChunkBytes
}

// Option configures a Reader.
type Option func(*Reader)

// WithConfig applies chunk-size settings from a loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(r *Reader) {
		if cfg == nil {
			return
		}
		if cfg.Reader.PathChunkBytes > 0 {
			r.pathChunkBytes = cfg.Reader.PathChunkBytes
		}
		if cfg.Reader.BufferChunkBytes > 0 {
			r.bufferChunkBytes = cfg.Reader.BufferChunkBytes
		}
		if cfg.Reader.BufferInlineThreshold > 0 {
			r.inlineThreshold = cfg.Reader.BufferInlineThreshold
		}
	}
}

// NewFromPath opens path for streaming in path mode (default 100 MiB
// chunks). The file is not read until Next is called.
func NewFromPath(logger *slog.Logger, path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	r := newReader(logger, f, modePath, opts...)
	return r, nil
}

// NewFromBuffer wraps an in-memory buffer for chunked iteration. Small
// buffers (below BufferInlineThreshold) are still delivered in
// BufferChunkBytes-sized pieces so callers exercise one code path
// regardless of size; this only affects how many Next() calls are
// needed, never correctness.
func NewFromBuffer(logger *slog.Logger, buf []byte, opts ...Option) *Reader {
	r := newReader(logger, io.NopCloser(bytes.NewReader(buf)), modeBuffer, opts...)
	return r
}

func newReader(logger *slog.Logger, src io.ReadCloser, mode sourceMode, opts ...Option) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reader{
		logger:           logger,
		mode:             mode,
		pathChunkBytes:   DefaultPathChunkBytes,
		bufferChunkBytes: DefaultBufferChunkBytes,
		inlineThreshold:  DefaultBufferInlineThreshold,
		src:              src,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Next reads and returns the next chunk. It returns io.EOF (with a nil
// chunk) once the source is exhausted. Any other error is wrapped in
// ErrSourceUnavailable.
func (r *Reader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}

	buf := make([]byte, r.chunkBytes())
	n, err := io.ReadFull(r.src, buf)
	if n > 0 {
		r.logger.Log(context.Background(), config.LevelTrace, "chunk read", "bytes", n)
	}
	chunk := sanitizeUTF8(buf[:n])

	switch {
	case err == nil:
		return chunk, nil
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		r.err = io.EOF
		if n == 0 {
			return nil, io.EOF
		}
		return chunk, nil
	default:
		wrapped := fmt.Errorf("%w: read: %v", ErrSourceUnavailable, err)
		r.err = wrapped
		return nil, wrapped
	}
}

// Close releases the underlying source.
func (r *Reader) Close() error {
	return r.src.Close()
}

// sanitizeUTF8 replaces invalid UTF-8 byte sequences with the Unicode
// replacement character's encoding, so every chunk handed downstream
// decodes cleanly. Valid input is returned unmodified (no allocation).
func sanitizeUTF8(b []byte) []byte {
	if utf8.Valid(b) {
		return b
	}

	var out bytes.Buffer
	out.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			out.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		out.Write(b[:size])
		b = b[size:]
	}
	return out.Bytes()
}
