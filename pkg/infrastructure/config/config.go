// Package config loads and validates the pipeline server's configuration:
// a plain JSON-tagged struct with nested sections per concern, filled in
// with defaults, a config file, and then environment variable overrides, in
// that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds all file-pipeline-server configuration.
type Config struct {
	Queue    QueueConfig    `json:"queue"`
	Source   SourceConfig   `json:"source"`
	ZIP      ZIPConfig      `json:"zip"`
	Image    ImageConfig    `json:"image"`
	Workers  WorkersConfig  `json:"workers"`
	Logging  LoggingConfig  `json:"logging"`
	Server   ServerConfig   `json:"server"`
}

// QueueConfig tunes Queue carriers: Capacity is how many un-consumed chunks
// they buffer. ChunkSize is validated but no producer reads it; producers
// push fixed 64 KiB chunks.
type QueueConfig struct {
	Capacity  int `json:"capacity"`
	ChunkSize int `json:"chunk_size"`
}

// SourceConfig tunes the Url carrier's HTTP client: range-GET look-ahead,
// request timeout, and bounded retry policy.
type SourceConfig struct {
	LookaheadBytes     int `json:"lookahead_bytes"`
	TimeoutSeconds     int `json:"timeout_seconds"`
	RetryMaxAttempts   int `json:"retry_max_attempts"`
	RetryWaitMinMillis int `json:"retry_wait_min_millis"`
	RetryWaitMaxMillis int `json:"retry_wait_max_millis"`
}

// ZIPConfig tunes the ZIP step family.
type ZIPConfig struct {
	SeekBufferLimitBytes int64 `json:"seek_buffer_limit_bytes"`
	FanOutCapacity       int   `json:"fan_out_capacity"`
}

// ImageConfig bounds what a preview_picture caller may request: the step
// always requires explicit max_width/max_height args, but the server caps
// how large those may be to bound memory use.
type ImageConfig struct {
	MaxAllowedWidth  int `json:"max_allowed_width"`
	MaxAllowedHeight int `json:"max_allowed_height"`
}

// WorkersConfig holds the CPU-bound offload pool size. PoolSize is validated
// but not passed to the pool, which starts one goroutine per item.
type WorkersConfig struct {
	PoolSize int `json:"pool_size"`
}

// LoggingConfig configures pkg/infrastructure/logging.
type LoggingConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"`
	ShowCaller       bool   `json:"show_caller"`
	EnableSanitizing bool   `json:"enable_sanitizing"`
}

// ServerConfig configures the HTTP listener the cmd/pipeline-server
// entrypoint binds.
type ServerConfig struct {
	Address string `json:"address"`
}

// DefaultConfig returns a configuration with sensible defaults, matching
// the defaults documented for each step and carrier.
func DefaultConfig() *Config {
	return &Config{
		Queue: QueueConfig{
			Capacity:  8,
			ChunkSize: 64 * 1024,
		},
		Source: SourceConfig{
			LookaheadBytes:     64 * 1024,
			TimeoutSeconds:     30,
			RetryMaxAttempts:   2,
			RetryWaitMinMillis: 200,
			RetryWaitMaxMillis: 2000,
		},
		ZIP: ZIPConfig{
			SeekBufferLimitBytes: 100 * 1024 * 1024,
			FanOutCapacity:       8,
		},
		Image: ImageConfig{
			MaxAllowedWidth:  1024,
			MaxAllowedHeight: 1024,
		},
		Workers: WorkersConfig{
			PoolSize: 4,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "text",
			ShowCaller:       false,
			EnableSanitizing: true,
		},
		Server: ServerConfig{
			Address: ":8080",
		},
	}
}

// LoadConfig loads configuration from file (if configPath is non-empty and
// exists), then applies environment variable overrides, then validates.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("PIPELINE_QUEUE_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Queue.Capacity = n
		}
	}
	if val := os.Getenv("PIPELINE_QUEUE_CHUNK_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Queue.ChunkSize = n
		}
	}

	if val := os.Getenv("PIPELINE_SOURCE_LOOKAHEAD_BYTES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Source.LookaheadBytes = n
		}
	}
	if val := os.Getenv("PIPELINE_SOURCE_TIMEOUT_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Source.TimeoutSeconds = n
		}
	}
	if val := os.Getenv("PIPELINE_SOURCE_RETRY_MAX_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Source.RetryMaxAttempts = n
		}
	}

	if val := os.Getenv("PIPELINE_ZIP_SEEK_BUFFER_LIMIT_BYTES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			c.ZIP.SeekBufferLimitBytes = n
		}
	}
	if val := os.Getenv("PIPELINE_ZIP_FAN_OUT_CAPACITY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.ZIP.FanOutCapacity = n
		}
	}

	if val := os.Getenv("PIPELINE_IMAGE_MAX_ALLOWED_WIDTH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Image.MaxAllowedWidth = n
		}
	}
	if val := os.Getenv("PIPELINE_IMAGE_MAX_ALLOWED_HEIGHT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Image.MaxAllowedHeight = n
		}
	}

	if val := os.Getenv("PIPELINE_WORKERS_POOL_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Workers.PoolSize = n
		}
	}

	if val := os.Getenv("PIPELINE_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("PIPELINE_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	if val := os.Getenv("PIPELINE_LOG_SHOW_CALLER"); val != "" {
		c.Logging.ShowCaller = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("PIPELINE_SERVER_ADDRESS"); val != "" {
		c.Server.Address = val
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue capacity must be positive")
	}
	if c.Queue.ChunkSize <= 0 {
		return fmt.Errorf("queue chunk size must be positive")
	}
	if c.Source.LookaheadBytes <= 0 {
		return fmt.Errorf("source lookahead bytes must be positive")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}
	if c.Source.RetryMaxAttempts < 0 {
		return fmt.Errorf("source retry max attempts cannot be negative")
	}
	if c.ZIP.SeekBufferLimitBytes <= 0 {
		return fmt.Errorf("zip seek buffer limit must be positive")
	}
	if c.ZIP.FanOutCapacity <= 0 {
		return fmt.Errorf("zip fan-out capacity must be positive")
	}
	if c.Image.MaxAllowedWidth <= 0 || c.Image.MaxAllowedHeight <= 0 {
		return fmt.Errorf("image max allowed bounding box must be positive")
	}
	if c.Workers.PoolSize <= 0 {
		return fmt.Errorf("workers pool size must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}

	return nil
}

// SaveToFile writes the configuration to path as indented JSON, creating
// parent directories as needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfigPath returns the default configuration file path under
// the user's home directory.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".file-pipeline-server", "config.json"), nil
}
