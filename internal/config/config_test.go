package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns a configuration that passes Validate, rooted in t's temp dir
func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.TemplateDir = dir
	cfg.ScratchDir = filepath.Join(dir, "scratch")
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}
	if cfg.ServerName != "mcp-affidavit" {
		t.Errorf("Expected default server name to be 'mcp-affidavit', got '%s'", cfg.ServerName)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "console" {
		t.Errorf("Expected default logging info/console, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}
	if cfg.LabelPolicy != "extend" {
		t.Errorf("Expected default label policy 'extend', got '%s'", cfg.LabelPolicy)
	}
	if cfg.ConverterTimeout != 2*time.Minute || cfg.ConverterRetries != 1 {
		t.Errorf("Unexpected converter defaults: %s, %d", cfg.ConverterTimeout, cfg.ConverterRetries)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Expected default store 'memory', got '%s'", cfg.Store)
	}
	if cfg.OutputDir != "" {
		t.Errorf("Expected no default output directory, got '%s'", cfg.OutputDir)
	}

	currentDir, _ := os.Getwd()
	if cfg.TemplateDir != filepath.Join(currentDir, "templates") {
		t.Errorf("Expected default template directory under '%s', got '%s'", currentDir, cfg.TemplateDir)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config - stdio mode", mutate: func(c *Config) {}},
		{name: "valid config - server mode", mutate: func(c *Config) { c.Mode = ModeServer }},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "invalid" }, wantErr: true},
		{name: "invalid port - too low (server mode)", mutate: func(c *Config) {
			c.Mode = ModeServer
			c.Port = 0
		}, wantErr: true},
		{name: "invalid port - too high (server mode)", mutate: func(c *Config) {
			c.Mode = ModeServer
			c.Port = 70000
		}, wantErr: true},
		{name: "invalid port ignored in stdio mode", mutate: func(c *Config) { c.Port = 0 }},
		{name: "empty template directory", mutate: func(c *Config) { c.TemplateDir = "" }, wantErr: true},
		{name: "missing template directory", mutate: func(c *Config) {
			c.TemplateDir = filepath.Join(c.TemplateDir, "absent")
		}, wantErr: true},
		{name: "input directory", mutate: func(c *Config) { c.InputDir = c.TemplateDir }},
		{name: "missing input directory", mutate: func(c *Config) {
			c.InputDir = filepath.Join(c.TemplateDir, "absent")
		}, wantErr: true},
		{name: "empty scratch directory", mutate: func(c *Config) { c.ScratchDir = "" }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.LogLevel = "invalid" }, wantErr: true},
		{name: "invalid log format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "invalid max file size", mutate: func(c *Config) { c.MaxFileSize = 0 }, wantErr: true},
		{name: "reject label policy", mutate: func(c *Config) { c.LabelPolicy = "reject" }},
		{name: "invalid label policy", mutate: func(c *Config) { c.LabelPolicy = "wrap" }, wantErr: true},
		{name: "empty converter binary", mutate: func(c *Config) { c.ConverterBinary = "" }, wantErr: true},
		{name: "zero converter timeout", mutate: func(c *Config) { c.ConverterTimeout = 0 }, wantErr: true},
		{name: "negative retries", mutate: func(c *Config) { c.ConverterRetries = -1 }, wantErr: true},
		{name: "no retries", mutate: func(c *Config) { c.ConverterRetries = 0 }},
		{name: "redis store", mutate: func(c *Config) { c.Store = StoreRedis }},
		{name: "redis store without address", mutate: func(c *Config) {
			c.Store = StoreRedis
			c.RedisAddr = ""
		}, wantErr: true},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "s3" }, wantErr: true},
		{name: "negative ttl", mutate: func(c *Config) { c.ArtifactTTL = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	cfg := validConfig(t)
	cfg.ScratchDir = filepath.Join(cfg.TemplateDir, "nested", "scratch")
	cfg.OutputDir = filepath.Join(cfg.TemplateDir, "nested", "out")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() unexpected error: %v", err)
	}

	for _, dir := range []string{cfg.ScratchDir, cfg.OutputDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("Directory should have been created: %s", dir)
		}
	}
}

func TestConfigValidateTemplateDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(cfg.TemplateDir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg.TemplateDir = file

	if err := cfg.Validate(); err == nil {
		t.Error("Config.Validate() should reject a template path that is a file")
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "192.168.1.1",
		Port: 9090,
	}

	expected := "192.168.1.1:9090"
	if got := cfg.Address(); got != expected {
		t.Errorf("Config.Address() = %v, want %v", got, expected)
	}
	if got := cfg.ArtifactBaseURL(); got != "http://192.168.1.1:9090" {
		t.Errorf("Config.ArtifactBaseURL() = %v", got)
	}

	cfg.BaseURL = "https://affidavits.example.com/"
	if got := cfg.ArtifactBaseURL(); got != "https://affidavits.example.com" {
		t.Errorf("Config.ArtifactBaseURL() = %v", got)
	}
}

func TestConfigPolicy(t *testing.T) {
	cfg := &Config{LabelPolicy: "REJECT"}
	if got := cfg.Policy(); got != "reject" {
		t.Errorf("Config.Policy() = %v, want reject", got)
	}
	cfg.LabelPolicy = "bogus"
	if got := cfg.Policy(); got != "extend" {
		t.Errorf("Config.Policy() = %v, want extend fallback", got)
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		logLevel string
		want     bool
	}{
		{"debug", true},
		{"info", false},
		{"warn", false},
		{"error", false},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:          "server",
		Host:          "localhost",
		Port:          8080,
		TemplateDir:   "/srv/templates",
		LogLevel:      "debug",
		MaxFileSize:   1024,
		Store:         StoreRedis,
		RedisPassword: "hunter2",
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Mode: server",
		"Host: localhost",
		"Port: 8080",
		"TemplateDir: /srv/templates",
		"LogLevel: debug",
		"MaxFileSize: 1024",
		"Store: redis",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}
	if strings.Contains(result, "hunter2") {
		t.Errorf("Config.String() leaked the redis password: %s", result)
	}
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeServer}
	if !cfg.IsServerMode() || cfg.IsStdioMode() {
		t.Error("server mode not reported")
	}
	cfg.Mode = ModeStdio
	if cfg.IsServerMode() || !cfg.IsStdioMode() {
		t.Error("stdio mode not reported")
	}
}
