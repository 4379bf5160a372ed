package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Queue.Capacity != 8 {
		t.Errorf("Expected default queue capacity 8, got %d", config.Queue.Capacity)
	}

	if config.ZIP.SeekBufferLimitBytes != 100*1024*1024 {
		t.Errorf("Expected default seek buffer limit 100MiB, got %d", config.ZIP.SeekBufferLimitBytes)
	}

	if config.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", config.Logging.Level)
	}
}

func TestConfigValidation(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Errorf("Valid config failed validation: %v", err)
	}

	config.Queue.Capacity = 0
	if err := config.Validate(); err == nil {
		t.Error("Zero queue capacity should fail validation")
	}

	config = DefaultConfig()
	config.Logging.Level = "invalid"
	if err := config.Validate(); err == nil {
		t.Error("Invalid log level should fail validation")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("PIPELINE_QUEUE_CAPACITY", "16")
	os.Setenv("PIPELINE_LOG_LEVEL", "debug")
	os.Setenv("PIPELINE_LOG_SHOW_CALLER", "true")
	defer func() {
		os.Unsetenv("PIPELINE_QUEUE_CAPACITY")
		os.Unsetenv("PIPELINE_LOG_LEVEL")
		os.Unsetenv("PIPELINE_LOG_SHOW_CALLER")
	}()

	config := DefaultConfig()
	config.applyEnvironmentOverrides()

	if config.Queue.Capacity != 16 {
		t.Errorf("Environment override failed for queue capacity, got %d", config.Queue.Capacity)
	}

	if config.Logging.Level != "debug" {
		t.Errorf("Environment override failed for log level, got %s", config.Logging.Level)
	}

	if !config.Logging.ShowCaller {
		t.Error("Environment override failed for show-caller flag")
	}
}

func TestConfigFileOperations(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pipeline_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "config.json")

	config := DefaultConfig()
	config.Server.Address = ":9090"

	if err := config.SaveToFile(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loadedConfig, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loadedConfig.Server.Address != ":9090" {
		t.Errorf("Config not loaded correctly, got %s", loadedConfig.Server.Address)
	}
}

func TestLoadNonexistentConfig(t *testing.T) {
	config, err := LoadConfig("/nonexistent/path/config.json")
	if err != nil {
		t.Fatalf("Loading non-existent config should not error: %v", err)
	}

	if config.Queue.Capacity != 8 {
		t.Errorf("Non-existent config should use defaults, got %d", config.Queue.Capacity)
	}
}
