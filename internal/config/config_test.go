package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"plexadmin/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "plexadmin", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "plexadmin")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.Paths.BackupDir) {
		t.Fatalf("expected absolute backup dir, got %q", cfg.Paths.BackupDir)
	}
	if !cfg.Plex.VerifyTLS {
		t.Fatal("expected TLS verification enabled by default")
	}
	if cfg.Plex.PlexTVURL != "https://plex.tv" {
		t.Fatalf("unexpected plex.tv url: %q", cfg.Plex.PlexTVURL)
	}
	if cfg.Share.KillMessage != "Stream is being killed by admin." {
		t.Fatalf("unexpected kill message: %q", cfg.Share.KillMessage)
	}
	if cfg.KillGrace().Seconds() != 3 {
		t.Fatalf("unexpected kill grace: %v", cfg.KillGrace())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPathNormalizesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[plex]
url = " https://plex.example.com:32400/ "
token = " secret "
verify_tls = false
timeout_seconds = 0

[paths]
backup_dir = "~/backups"

[share]
kill_message = "  "
kill_grace_seconds = 0

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Plex.URL != "https://plex.example.com:32400" {
		t.Fatalf("unexpected url: %q", cfg.Plex.URL)
	}
	if cfg.Plex.Token != "secret" {
		t.Fatalf("unexpected token: %q", cfg.Plex.Token)
	}
	if cfg.Plex.VerifyTLS {
		t.Fatal("expected verify_tls=false to be honoured")
	}
	if cfg.Plex.TimeoutSeconds != 30 {
		t.Fatalf("expected default timeout, got %d", cfg.Plex.TimeoutSeconds)
	}
	if cfg.Paths.BackupDir != filepath.Join(tempHome, "backups") {
		t.Fatalf("unexpected backup dir: %q", cfg.Paths.BackupDir)
	}
	if cfg.Share.KillMessage != "Stream is being killed by admin." {
		t.Fatalf("expected blank kill message to fall back to default, got %q", cfg.Share.KillMessage)
	}
	if cfg.Share.KillGraceSeconds != 0 {
		t.Fatalf("expected zero grace to be kept, got %d", cfg.Share.KillGraceSeconds)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad url scheme", func(c *config.Config) { c.Plex.URL = "ftp://plex" }, "plex.url"},
		{"missing host", func(c *config.Config) { c.Plex.URL = "http://" }, "plex.url"},
		{"negative timeout", func(c *config.Config) { c.Plex.TimeoutSeconds = -1 }, "plex.timeout_seconds"},
		{"negative grace", func(c *config.Config) { c.Share.KillGraceSeconds = -2 }, "share.kill_grace_seconds"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Plex.URL != "http://127.0.0.1:32400" {
		t.Fatalf("unexpected sample url: %q", cfg.Plex.URL)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BackupDir = filepath.Join(base, "backups")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.BackupDir, cfg.Paths.StateDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
