package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the vecfeed configuration. It is loaded once at startup and
// passed explicitly; nothing reads it from package state.
type Config struct {
	HTTP       HTTPConfig            `yaml:"http"`
	Logging    LoggingConfig         `yaml:"logging"`
	Ingest     IngestConfig          `yaml:"ingest"`
	Transport  TransportConfig       `yaml:"transport"`
	Domains    map[string]DomainSpec `yaml:"domains"`
	Checkpoint CheckpointConfig      `yaml:"checkpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // 0 disables; ingestion requests are long
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IngestConfig holds source file and read batch settings.
type IngestConfig struct {
	DataDir          string `yaml:"data_dir"`
	DefaultChunkSize int    `yaml:"default_chunk_size"`
	MinChunkSize     int    `yaml:"min_chunk_size"`
	MaxChunkSize     int    `yaml:"max_chunk_size"`
}

// TransportConfig holds the batch writer stream settings.
type TransportConfig struct {
	BatchServerAddr string `yaml:"batch_server_addr"`
	BatchSize       int    `yaml:"batch_size"` // records per data chunk; 0 follows the read batch
	AckTimeoutSec   int    `yaml:"ack_timeout_sec"`
	MaxMessageMB    int    `yaml:"max_message_mb"`
	LogEveryChunks  int    `yaml:"log_every_chunks"`
}

// DomainSpec holds per-domain settings.
type DomainSpec struct {
	EmbeddingDimension int `yaml:"embedding_dimension"`
}

// CheckpointConfig holds the optional checkpoint store settings.
type CheckpointConfig struct {
	Driver           string   `yaml:"driver"` // none, redis, valkey (default: none)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLHours         int      `yaml:"ttl_hours"` // 0 keeps checkpoints forever
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Dimensions returns the configured embedding width per domain name.
func (c *Config) Dimensions() map[string]int {
	out := make(map[string]int, len(c.Domains))
	for name, d := range c.Domains {
		out[name] = d.EmbeddingDimension
	}
	return out
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates the configuration at path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ingest.DataDir == "" {
		c.Ingest.DataDir = "data"
	}
	if c.Ingest.DefaultChunkSize <= 0 {
		c.Ingest.DefaultChunkSize = 300
	}
	if c.Ingest.MinChunkSize <= 0 {
		c.Ingest.MinChunkSize = 100
	}
	if c.Ingest.MaxChunkSize <= 0 {
		c.Ingest.MaxChunkSize = 1000
	}
	if c.Transport.AckTimeoutSec <= 0 {
		c.Transport.AckTimeoutSec = 300
	}
	if c.Transport.MaxMessageMB <= 0 {
		c.Transport.MaxMessageMB = 50
	}
	if c.Transport.LogEveryChunks <= 0 {
		c.Transport.LogEveryChunks = 10
	}
	if len(c.Domains) == 0 {
		c.Domains = map[string]DomainSpec{
			"recruit":   {EmbeddingDimension: 384},
			"candidate": {EmbeddingDimension: 384},
			"skill_dic": {EmbeddingDimension: 384},
		}
	}
	if c.Checkpoint.Driver == "" {
		c.Checkpoint.Driver = "none"
	}
	if c.Checkpoint.KeyPrefix == "" {
		c.Checkpoint.KeyPrefix = "vecfeed:"
	}
	if c.Checkpoint.ReadinessTimeout <= 0 {
		c.Checkpoint.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Transport.BatchServerAddr == "" {
		return fmt.Errorf("transport.batch_server_addr is required")
	}
	if c.Transport.BatchSize < 0 {
		return fmt.Errorf("transport.batch_size must not be negative, got %d", c.Transport.BatchSize)
	}
	in := c.Ingest
	if in.MinChunkSize > in.MaxChunkSize || in.DefaultChunkSize < in.MinChunkSize || in.DefaultChunkSize > in.MaxChunkSize {
		return fmt.Errorf("ingest chunk sizes must satisfy min <= default <= max, got %d <= %d <= %d",
			in.MinChunkSize, in.DefaultChunkSize, in.MaxChunkSize)
	}
	for name, d := range c.Domains {
		if d.EmbeddingDimension < 0 {
			return fmt.Errorf("domains.%s.embedding_dimension must not be negative, got %d", name, d.EmbeddingDimension)
		}
	}
	switch c.Checkpoint.Driver {
	case "none":
	case "redis", "valkey":
		if len(c.Checkpoint.Addrs) == 0 {
			return fmt.Errorf("checkpoint.addrs is required for driver %q", c.Checkpoint.Driver)
		}
	default:
		return fmt.Errorf("checkpoint.driver must be \"none\", \"redis\" or \"valkey\", got %q", c.Checkpoint.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
