// Package config loads the assembler configuration from flags, environment
// variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-affidavit/internal/exhibit"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Artifact store backends
	StoreMemory = "memory"
	StoreRedis  = "redis"

	// EnvPrefix is prepended to every environment variable, e.g. AFFIDAVIT_PORT
	EnvPrefix = "AFFIDAVIT"

	// Default values
	DefaultPort             = 8080
	DefaultHost             = "127.0.0.1"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
	DefaultMaxFileSize      = 100 * 1024 * 1024 // 100MB
	DefaultConverterTimeout = 2 * time.Minute
	DefaultConverterRetries = 1
	DefaultRedisAddr        = "localhost:6379"
	DefaultArtifactTTL      = time.Hour

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Flag and viper keys
const (
	keyMode             = "mode"
	keyHost             = "host"
	keyPort             = "port"
	keyTemplateDir      = "template-dir"
	keyScratchDir       = "scratch-dir"
	keyOutputDir        = "output-dir"
	keyInputDir         = "input-dir"
	keyBaseURL          = "base-url"
	keyLogLevel         = "log-level"
	keyLogFormat        = "log-format"
	keyMaxFileSize      = "max-file-size"
	keyLabelPolicy      = "label-policy"
	keyConverterBinary  = "converter-binary"
	keyConverterTimeout = "converter-timeout"
	keyConverterRetries = "converter-retries"
	keyStore            = "store"
	keyRedisAddr        = "redis-addr"
	keyRedisPassword    = "redis-password"
	keyRedisDB          = "redis-db"
	keyArtifactTTL      = "artifact-ttl"
)

// Config holds all configuration for the affidavit assembler
type Config struct {
	// Server configuration
	Mode    string // "server" or "stdio"
	Host    string
	Port    int
	BaseURL string // prefix for artifact download links; derived from host:port when empty

	// Directories
	TemplateDir string
	ScratchDir  string
	OutputDir   string // artifacts are also written here when set
	InputDir    string // file paths passed to tools resolve here; empty disables path inputs

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum exhibit file size in bytes
	LabelPolicy string

	// Converter
	ConverterBinary  string
	ConverterTimeout time.Duration
	ConverterRetries int

	// Artifact store
	Store         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ArtifactTTL   time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:             ModeStdio,
		Host:             DefaultHost,
		Port:             DefaultPort,
		TemplateDir:      filepath.Join(currentDir, "templates"),
		ScratchDir:       os.TempDir(),
		Version:          "1.0.0",
		ServerName:       "mcp-affidavit",
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		MaxFileSize:      DefaultMaxFileSize,
		LabelPolicy:      string(exhibit.PolicyExtend),
		ConverterBinary:  "soffice",
		ConverterTimeout: DefaultConverterTimeout,
		ConverterRetries: DefaultConverterRetries,
		Store:            StoreMemory,
		RedisAddr:        DefaultRedisAddr,
		ArtifactTTL:      DefaultArtifactTTL,
	}
}

// RegisterFlags defines every configuration flag on fs with cfg's values as defaults
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String(keyMode, cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	fs.String(keyHost, cfg.Host, "Server host address (server mode only)")
	fs.Int(keyPort, cfg.Port, "Server port (server mode only)")
	fs.String(keyBaseURL, cfg.BaseURL, "Public base URL for artifact links (server mode only)")
	fs.String(keyTemplateDir, cfg.TemplateDir, "Directory containing the DOCX templates")
	fs.String(keyScratchDir, cfg.ScratchDir, "Directory for run-scoped scratch files")
	fs.String(keyOutputDir, cfg.OutputDir, "Directory to also write published artifacts to")
	fs.String(keyInputDir, cfg.InputDir, "Directory exhibit and upload paths are read from (empty accepts inline content only)")
	fs.String(keyLogLevel, cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String(keyLogFormat, cfg.LogFormat, "Log format (console, json)")
	fs.Int64(keyMaxFileSize, cfg.MaxFileSize, "Maximum exhibit file size in bytes")
	fs.String(keyLabelPolicy, cfg.LabelPolicy, "Exhibit labels past 'z': 'extend' (aa, ab, ...) or 'reject'")
	fs.String(keyConverterBinary, cfg.ConverterBinary, "LibreOffice binary used for DOCX to PDF conversion")
	fs.Duration(keyConverterTimeout, cfg.ConverterTimeout, "Deadline for one conversion attempt")
	fs.Int(keyConverterRetries, cfg.ConverterRetries, "Extra attempts after a failed conversion")
	fs.String(keyStore, cfg.Store, "Artifact store: 'memory' or 'redis'")
	fs.String(keyRedisAddr, cfg.RedisAddr, "Redis address (redis store only)")
	fs.String(keyRedisPassword, cfg.RedisPassword, "Redis password (redis store only)")
	fs.Int(keyRedisDB, cfg.RedisDB, "Redis database (redis store only)")
	fs.Duration(keyArtifactTTL, cfg.ArtifactTTL, "How long published artifacts stay downloadable (0 keeps them)")
}

// Load reads configuration from fs (already parsed), AFFIDAVIT_* environment
// variables and the defaults, in that order of precedence
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	populateConfigFromViper(v, cfg)
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads the first .env file found among paths (default ".env")
// and returns its path, or "" when none exists. Variables already set in the
// environment win.
func LoadEnvFile(paths ...string) (string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("failed to load %s: %w", path, err)
		}
		return path, nil
	}
	return "", nil
}

// newViper configures viper with environment variables and defaults
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyMode, cfg.Mode)
	v.SetDefault(keyHost, cfg.Host)
	v.SetDefault(keyPort, cfg.Port)
	v.SetDefault(keyBaseURL, cfg.BaseURL)
	v.SetDefault(keyTemplateDir, cfg.TemplateDir)
	v.SetDefault(keyScratchDir, cfg.ScratchDir)
	v.SetDefault(keyOutputDir, cfg.OutputDir)
	v.SetDefault(keyInputDir, cfg.InputDir)
	v.SetDefault(keyLogLevel, cfg.LogLevel)
	v.SetDefault(keyLogFormat, cfg.LogFormat)
	v.SetDefault(keyMaxFileSize, cfg.MaxFileSize)
	v.SetDefault(keyLabelPolicy, cfg.LabelPolicy)
	v.SetDefault(keyConverterBinary, cfg.ConverterBinary)
	v.SetDefault(keyConverterTimeout, cfg.ConverterTimeout)
	v.SetDefault(keyConverterRetries, cfg.ConverterRetries)
	v.SetDefault(keyStore, cfg.Store)
	v.SetDefault(keyRedisAddr, cfg.RedisAddr)
	v.SetDefault(keyRedisPassword, cfg.RedisPassword)
	v.SetDefault(keyRedisDB, cfg.RedisDB)
	v.SetDefault(keyArtifactTTL, cfg.ArtifactTTL)
	return v
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString(keyMode)
	cfg.Host = v.GetString(keyHost)
	cfg.Port = v.GetInt(keyPort)
	cfg.BaseURL = v.GetString(keyBaseURL)
	cfg.TemplateDir = v.GetString(keyTemplateDir)
	cfg.ScratchDir = v.GetString(keyScratchDir)
	cfg.OutputDir = v.GetString(keyOutputDir)
	cfg.InputDir = v.GetString(keyInputDir)
	cfg.LogLevel = strings.ToLower(v.GetString(keyLogLevel))
	cfg.LogFormat = strings.ToLower(v.GetString(keyLogFormat))
	cfg.MaxFileSize = v.GetInt64(keyMaxFileSize)
	cfg.LabelPolicy = v.GetString(keyLabelPolicy)
	cfg.ConverterBinary = v.GetString(keyConverterBinary)
	cfg.ConverterTimeout = v.GetDuration(keyConverterTimeout)
	cfg.ConverterRetries = v.GetInt(keyConverterRetries)
	cfg.Store = strings.ToLower(v.GetString(keyStore))
	cfg.RedisAddr = v.GetString(keyRedisAddr)
	cfg.RedisPassword = v.GetString(keyRedisPassword)
	cfg.RedisDB = v.GetInt(keyRedisDB)
	cfg.ArtifactTTL = v.GetDuration(keyArtifactTTL)
}

func (c *Config) expandPaths() {
	for _, p := range []*string{&c.TemplateDir, &c.ScratchDir, &c.OutputDir, &c.InputDir} {
		if *p == "" {
			continue
		}
		if abs, err := filepath.Abs(*p); err == nil {
			*p = abs
		}
	}
}

// Validate checks if the configuration is valid. Scratch and output
// directories are created when missing.
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.TemplateDir == "" {
		return errors.New("template directory cannot be empty")
	}
	if err := existingDir(c.TemplateDir, "template"); err != nil {
		return err
	}
	if c.InputDir != "" {
		if err := existingDir(c.InputDir, "input"); err != nil {
			return err
		}
	}

	if c.ScratchDir == "" {
		return errors.New("scratch directory cannot be empty")
	}
	if err := ensureDir(c.ScratchDir, "scratch"); err != nil {
		return err
	}
	if c.OutputDir != "" {
		if err := ensureDir(c.OutputDir, "output"); err != nil {
			return err
		}
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.LogFormat)
	}

	if _, err := exhibit.ParsePolicy(c.LabelPolicy); err != nil {
		return err
	}

	if c.ConverterBinary == "" {
		return errors.New("converter binary cannot be empty")
	}
	if c.ConverterTimeout <= 0 {
		return errors.New("converter timeout must be positive")
	}
	if c.ConverterRetries < 0 {
		return errors.New("converter retries cannot be negative")
	}

	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address is required for the redis store")
		}
		if c.RedisDB < 0 {
			return errors.New("redis database cannot be negative")
		}
	default:
		return fmt.Errorf("invalid artifact store: %s (must be 'memory' or 'redis')", c.Store)
	}
	if c.ArtifactTTL < 0 {
		return errors.New("artifact TTL cannot be negative")
	}

	return nil
}

func existingDir(dir, what string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot access %s directory %s: %w", what, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s directory %s is not a directory", what, dir)
	}
	return nil
}

func ensureDir(dir, what string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create %s directory %s: %w", what, dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access %s directory %s: %w", what, dir, err)
	}
	return nil
}

// Policy returns the parsed exhibit label policy
func (c *Config) Policy() exhibit.LabelPolicy {
	p, err := exhibit.ParsePolicy(c.LabelPolicy)
	if err != nil {
		return exhibit.PolicyExtend
	}
	return p
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ArtifactBaseURL returns the prefix used for artifact download links
func (c *Config) ArtifactBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return "http://" + c.Address()
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. The redis
// password is never printed.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, TemplateDir: %s, ScratchDir: %s, OutputDir: %s, "+
		"LogLevel: %s, MaxFileSize: %d, LabelPolicy: %s, Converter: %s (%s, %d retries), Store: %s}",
		c.Mode, c.Host, c.Port, c.TemplateDir, c.ScratchDir, c.OutputDir,
		c.LogLevel, c.MaxFileSize, c.LabelPolicy, c.ConverterBinary, c.ConverterTimeout, c.ConverterRetries, c.Store)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
