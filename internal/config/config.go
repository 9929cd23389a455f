package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for libstor.
type Config struct {
	HostID     string           `toml:"host_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Database   DatabaseConfig   `toml:"database"`
	Scan       ScanConfig       `toml:"scan"`
	Structure  StructureConfig  `toml:"structure"`
	Diff       DiffConfig       `toml:"diff"`
	Encryption EncryptionConfig `toml:"encryption"`
	Tracing    TracingConfig    `toml:"tracing"`
}

// DatabaseConfig represents configuration for the identity store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ScanConfig holds settings for directory scans.
type ScanConfig struct {
	Ignore    []string `toml:"ignore"`
	BatchSize int      `toml:"batch_size"` // store writes per transaction
}

// StructureConfig selects the snapshot format written by export.
type StructureConfig struct {
	Format   string `toml:"format"` // "csv" or "markdown"
	PageSize int    `toml:"page_size"`
}

// DiffConfig holds settings for diff archives.
type DiffConfig struct {
	Compression string `toml:"compression"` // "deflate" or "store"
}

// EncryptionConfig holds paths to the age key pair used for diff archives.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// TracingConfig enables OpenTelemetry export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string `toml:"endpoint,omitempty"`
	ServiceName string `toml:"service_name,omitempty"`
	Insecure    bool   `toml:"insecure,omitempty"`
}

// Defaults used by NewConfig and ApplyDefaults.
const (
	DefaultBatchSize       = 30
	DefaultPageSize        = 100
	DefaultStructureFormat = "csv"
	DefaultCompression     = "deflate"
	DefaultServiceName     = "libstor"
)

// NewConfig creates a new Config with the provided values and default paths.
func NewConfig(hostID, baseDir string) *Config {
	cfg := &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "libstor.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "libstor.key"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued settings that have a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Scan.BatchSize <= 0 {
		c.Scan.BatchSize = DefaultBatchSize
	}
	if c.Structure.Format == "" {
		c.Structure.Format = DefaultStructureFormat
	}
	if c.Structure.PageSize <= 0 {
		c.Structure.PageSize = DefaultPageSize
	}
	if c.Diff.Compression == "" {
		c.Diff.Compression = DefaultCompression
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "none"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database type: %q", c.Database.Type)
	}
	switch c.Structure.Format {
	case "csv", "markdown":
	default:
		return fmt.Errorf("unknown structure format: %q", c.Structure.Format)
	}
	switch c.Diff.Compression {
	case "deflate", "store":
	default:
		return fmt.Errorf("unknown diff compression: %q", c.Diff.Compression)
	}
	switch c.Encryption.Type {
	case "none", "age", "test":
	default:
		return fmt.Errorf("unknown encryption type: %q", c.Encryption.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path, fills defaults
// and validates it.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
