// Package config handles archivist configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./archivist.yaml, ~/.config/archivist/config.yaml,
// /config/archivist.yaml, /etc/archivist/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"archivist.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "archivist", "config.yaml"))
	}

	paths = append(paths, "/config/archivist.yaml") // Container convention
	paths = append(paths, "/etc/archivist/config.yaml")
	return paths
}

// searchPathsFunc is a variable indirection over DefaultSearchPaths so tests
// can point FindConfig at a temp directory instead of real search paths.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all archivist configuration. It governs how archives are
// read and classified; it never names an archive file itself (those are
// always given on the command line).
type Config struct {
	Reader    ReaderConfig    `yaml:"reader"`
	Detectors DetectorsConfig `yaml:"detectors"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// ReaderConfig controls the chunked reader, MBOX splitter, and MIME
// walker's size limits (spec §3, §5).
type ReaderConfig struct {
	// PathChunkBytes is the chunk size used when reading archives from
	// disk. Default: 100 MiB.
	PathChunkBytes int64 `yaml:"path_chunk_bytes"`
	// BufferChunkBytes is the chunk size used when reading archives from
	// an in-memory buffer of any size. Default: 5 MiB.
	BufferChunkBytes int64 `yaml:"buffer_chunk_bytes"`
	// BufferInlineThreshold is passed to the chunked reader but does not
	// change how it reads: buffers are always read in BufferChunkBytes
	// pieces, whatever their size. Default: 500 MiB.
	BufferInlineThreshold int64 `yaml:"buffer_inline_threshold"`
	// MaxMessageBytes caps a single MBOX message's leftover buffer
	// before it is emitted early (spec §5). Default: 100 MiB.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
	// BinaryGuardThreshold is the fraction (0-1) of non-printable bytes
	// in the first 200 bytes of a body above which the record is
	// rejected as binary (spec §4.3.7, §9). Default: 0.30.
	BinaryGuardThreshold float64 `yaml:"binary_guard_threshold"`
	// YieldEvery is the number of records between cooperative yield
	// checkpoints (spec §5). Default: 100.
	YieldEvery int `yaml:"yield_every"`
	// ExtractContacts controls whether the OLM decoder rolls up sender
	// contacts. Default: true (spec §9 open-question decision).
	ExtractContacts bool `yaml:"extract_contacts"`
}

// DetectorsConfig toggles which detectors run by default (spec §6
// ParseOptions detect_accounts/detect_purchases/detect_subscriptions/
// detect_newsletters, all false by default there; the CLI config may
// flip sensible defaults for standalone use).
type DetectorsConfig struct {
	Accounts      bool `yaml:"accounts"`
	Purchases     bool `yaml:"purchases"`
	Subscriptions bool `yaml:"subscriptions"`
	Newsletters   bool `yaml:"newsletters"`
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable without
// additional zero-value checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${HOME}). Convenience for
	// container deployments; values can also be placed directly in file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{Reader: ReaderConfig{ExtractContacts: true}}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for zero values.
func (c *Config) applyDefaults() {
	const mib = 1 << 20
	if c.Reader.PathChunkBytes == 0 {
		c.Reader.PathChunkBytes = 100 * mib
	}
	if c.Reader.BufferChunkBytes == 0 {
		c.Reader.BufferChunkBytes = 5 * mib
	}
	if c.Reader.BufferInlineThreshold == 0 {
		c.Reader.BufferInlineThreshold = 500 * mib
	}
	if c.Reader.MaxMessageBytes == 0 {
		c.Reader.MaxMessageBytes = 100 * mib
	}
	if c.Reader.BinaryGuardThreshold == 0 {
		c.Reader.BinaryGuardThreshold = 0.30
	}
	if c.Reader.YieldEvery == 0 {
		c.Reader.YieldEvery = 100
	}
	// ExtractContacts has no "unset" sentinel distinct from false in
	// YAML booleans, so it is not handled here: Load starts from true
	// before unmarshalling and Default sets it true. An explicit `false`
	// in the file is kept.
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
}

// Validate checks that the configuration is internally consistent. It
// runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	const gib = 1 << 30
	if c.Reader.PathChunkBytes < 1 {
		return fmt.Errorf("reader.path_chunk_bytes must be positive")
	}
	if c.Reader.BufferChunkBytes < 1 {
		return fmt.Errorf("reader.buffer_chunk_bytes must be positive")
	}
	if c.Reader.MaxMessageBytes < 1 {
		return fmt.Errorf("reader.max_message_bytes must be positive")
	}
	if c.Reader.MaxMessageBytes > 10*gib {
		return fmt.Errorf("reader.max_message_bytes %d exceeds sane upper bound (10 GiB)", c.Reader.MaxMessageBytes)
	}
	if c.Reader.BinaryGuardThreshold < 0 || c.Reader.BinaryGuardThreshold > 1 {
		return fmt.Errorf("reader.binary_guard_threshold %v out of range (0-1)", c.Reader.BinaryGuardThreshold)
	}
	if c.Reader.YieldEvery < 1 {
		return fmt.Errorf("reader.yield_every must be positive")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration with all detectors enabled and
// contact extraction on, suitable for one-shot CLI invocations that
// don't supply a config file.
func Default() *Config {
	cfg := &Config{
		Reader: ReaderConfig{
			ExtractContacts: true,
		},
		Detectors: DetectorsConfig{
			Accounts:      true,
			Purchases:     true,
			Subscriptions: true,
			Newsletters:   true,
		},
	}
	cfg.applyDefaults()
	return cfg
}
