package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"plexadmin/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Plex.Token = OwnerToken
	cfgVal.Paths.BackupDir = filepath.Join(base, "backups")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Share.KillGraceSeconds = 0
	cfgVal.Logging.Level = "error"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPlex points both the server and plex.tv addresses at a fake server.
func WithPlex(fake *FakePlex) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.URL = fake.URL()
		b.cfg.Plex.PlexTVURL = fake.URL()
	}
}

// WithToken overrides the configured account token.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.Token = token
	}
}

// WriteConfig encodes cfg as TOML next to its temp directories and returns
// the file path.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
