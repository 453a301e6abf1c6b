package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Listen != ":5000" || cfg.MaxUploadBytes() != 20<<20 || !cfg.KeepUploads || cfg.JournalKeep != 10000 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataFile != "data_warehouse.json" {
		t.Errorf("DataFile = %q", cfg.DataFile)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	// WHAT: File values override defaults and environment values override both.
	// WHY: The container image ships a file while --env-file tunes a deployment.
	path := filepath.Join(t.TempDir(), "larder.yaml")
	os.WriteFile(path, []byte(`
listen: ":9090"
data_file: "/data/store.json"
max_upload_mb: 50
currency_api_timeout: 2s
log_level: debug
`), 0o644)

	t.Setenv("MAX_UPLOAD_MB", "8")
	t.Setenv("KEEP_UPLOADS", "false")
	t.Setenv("CURRENCY_API_TIMEOUT", "750ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9090" || cfg.DataFile != "/data/store.json" {
		t.Errorf("file values = %+v", cfg)
	}
	if cfg.MaxUploadMB != 8 || cfg.KeepUploads {
		t.Errorf("env values = %+v", cfg)
	}
	if cfg.CurrencyAPITimeout != 750*time.Millisecond {
		t.Errorf("timeout = %v", cfg.CurrencyAPITimeout)
	}
	if cfg.LogLevel != "debug" || cfg.InputDir != "inputs" {
		t.Errorf("untouched values = %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("listen: [unclosed"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for bad yaml")
	}

	t.Setenv("MAX_UPLOAD_MB", "lots")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric env value")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DataFile = ""
	cfg.MaxUploadMB = 0
	cfg.JournalKeep = -1
	cfg.CurrencyAPIURL = "ftp://rates"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"data_file", "journal_keep", "max_upload_mb", "currency_api_url", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
