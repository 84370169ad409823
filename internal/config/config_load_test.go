package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// parseFlags registers every flag on a fresh set and parses args
func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("affidavit", pflag.ContinueOnError)
	RegisterFlags(fs, DefaultConfig())
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) unexpected error: %v", args, err)
	}
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	fs := parseFlags(t, "--template-dir="+dir, "--scratch-dir="+filepath.Join(dir, "scratch"))

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("Load() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("Load() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if cfg.TemplateDir != dir {
		t.Errorf("Load() TemplateDir = %v, want %v", cfg.TemplateDir, dir)
	}
	if cfg.ConverterTimeout != DefaultConverterTimeout {
		t.Errorf("Load() ConverterTimeout = %v, want %v", cfg.ConverterTimeout, DefaultConverterTimeout)
	}
}

func TestLoad_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("Load() server = %s %s:%d", cfg.Mode, cfg.Host, cfg.Port)
				}
			},
		},
		{
			name: "debug json logging",
			args: []string{"--log-level=DEBUG", "--log-format=json"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
					t.Errorf("Load() logging = %s/%s", cfg.LogLevel, cfg.LogFormat)
				}
			},
		},
		{
			name: "converter settings",
			args: []string{"--converter-binary=/opt/lo/soffice", "--converter-timeout=45s", "--converter-retries=3"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.ConverterBinary != "/opt/lo/soffice" || cfg.ConverterTimeout != 45*time.Second || cfg.ConverterRetries != 3 {
					t.Errorf("Load() converter = %s %s %d", cfg.ConverterBinary, cfg.ConverterTimeout, cfg.ConverterRetries)
				}
			},
		},
		{
			name: "redis store",
			args: []string{"--store=redis", "--redis-addr=cache:6380", "--redis-db=2", "--artifact-ttl=10m"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Store != StoreRedis || cfg.RedisAddr != "cache:6380" || cfg.RedisDB != 2 || cfg.ArtifactTTL != 10*time.Minute {
					t.Errorf("Load() store = %s %s %d %s", cfg.Store, cfg.RedisAddr, cfg.RedisDB, cfg.ArtifactTTL)
				}
			},
		},
		{
			name: "reject policy and file size",
			args: []string{"--label-policy=reject", "--max-file-size=50000000"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LabelPolicy != "reject" || cfg.MaxFileSize != 50000000 {
					t.Errorf("Load() policy = %s size = %d", cfg.LabelPolicy, cfg.MaxFileSize)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"--template-dir=" + dir, "--scratch-dir=" + filepath.Join(dir, "s")}, tt.args...)

			cfg, err := Load(parseFlags(t, args...))
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid mode", []string{"--mode=invalid"}},
		{"invalid port", []string{"--mode=server", "--port=99999"}},
		{"invalid log level", []string{"--log-level=trace"}},
		{"invalid store", []string{"--store=s3"}},
		{"invalid policy", []string{"--label-policy=wrap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			args := append([]string{"--template-dir=" + dir, "--scratch-dir=" + dir}, tt.args...)

			if _, err := Load(parseFlags(t, args...)); err == nil {
				t.Errorf("Load() expected error for %v", tt.args)
			}
		})
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AFFIDAVIT_MODE", "server")
	t.Setenv("AFFIDAVIT_PORT", "7070")
	t.Setenv("AFFIDAVIT_TEMPLATE_DIR", dir)
	t.Setenv("AFFIDAVIT_SCRATCH_DIR", filepath.Join(dir, "scratch"))
	t.Setenv("AFFIDAVIT_LABEL_POLICY", "reject")
	t.Setenv("AFFIDAVIT_CONVERTER_TIMEOUT", "30s")

	cfg, err := Load(parseFlags(t))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "server" || cfg.Port != 7070 {
		t.Errorf("Load() server = %s:%d, want server:7070", cfg.Mode, cfg.Port)
	}
	if cfg.TemplateDir != dir {
		t.Errorf("Load() TemplateDir = %v, want %v", cfg.TemplateDir, dir)
	}
	if cfg.LabelPolicy != "reject" {
		t.Errorf("Load() LabelPolicy = %v, want reject", cfg.LabelPolicy)
	}
	if cfg.ConverterTimeout != 30*time.Second {
		t.Errorf("Load() ConverterTimeout = %v, want 30s", cfg.ConverterTimeout)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AFFIDAVIT_PORT", "7070")
	t.Setenv("AFFIDAVIT_TEMPLATE_DIR", dir)
	t.Setenv("AFFIDAVIT_SCRATCH_DIR", dir)

	cfg, err := Load(parseFlags(t, "--port=6060"))
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Port != 6060 {
		t.Errorf("Load() Port = %v, want flag value 6060", cfg.Port)
	}
}

func TestLoad_NilFlagSet(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AFFIDAVIT_TEMPLATE_DIR", dir)
	t.Setenv("AFFIDAVIT_SCRATCH_DIR", dir)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load(nil) unexpected error: %v", err)
	}
	if cfg.TemplateDir != dir {
		t.Errorf("Load(nil) TemplateDir = %v, want %v", cfg.TemplateDir, dir)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("AFFIDAVIT_TEST_ONLY_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("AFFIDAVIT_TEST_ONLY_VALUE") })

	loaded, err := LoadEnvFile(filepath.Join(dir, "missing.env"), envFile)
	if err != nil {
		t.Fatalf("LoadEnvFile() unexpected error: %v", err)
	}
	if loaded != envFile {
		t.Errorf("LoadEnvFile() = %v, want %v", loaded, envFile)
	}
	if got := os.Getenv("AFFIDAVIT_TEST_ONLY_VALUE"); got != "from-file" {
		t.Errorf("environment value = %q, want from-file", got)
	}

	loaded, err = LoadEnvFile(filepath.Join(dir, "none.env"))
	if err != nil || loaded != "" {
		t.Errorf("LoadEnvFile() with no file = %q, %v", loaded, err)
	}
}

func TestLoadEnvFile_ExistingVariablesWin(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("AFFIDAVIT_PORT=1111\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AFFIDAVIT_PORT", "2222")

	if _, err := LoadEnvFile(envFile); err != nil {
		t.Fatalf("LoadEnvFile() unexpected error: %v", err)
	}
	if got := os.Getenv("AFFIDAVIT_PORT"); got != "2222" {
		t.Errorf("AFFIDAVIT_PORT = %q, want 2222", got)
	}
}
