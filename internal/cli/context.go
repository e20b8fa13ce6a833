package cli

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"plexadmin/internal/config"
	"plexadmin/internal/inventory"
	"plexadmin/internal/logging"
	"plexadmin/internal/services/plex"
)

// Session is the connected state of one run: the owner's server client and
// the inventory every selection resolves against.
type Session struct {
	Config    *config.Config
	Logger    *slog.Logger
	Tokens    *plex.TokenManager
	Client    *plex.Client
	Server    plex.ServerIdentity
	Inventory *inventory.Inventory
}

// Context loads configuration, the logger and the session at most once per
// process.
type Context struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	sessionOnce sync.Once
	session     *Session
	sessionErr  error
}

// NewContext returns a Context reading the config path from configFlag.
func NewContext(configFlag *string) *Context {
	return &Context{configFlag: configFlag}
}

// EnsureConfig loads and validates the configuration file.
func (c *Context) EnsureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ConfigPath returns the --config value.
func (c *Context) ConfigPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// Logger returns the process logger built from the logging section.
func (c *Context) Logger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.EnsureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// TokenManager builds the account token manager for the loaded config.
func (c *Context) TokenManager() (*plex.TokenManager, error) {
	cfg, err := c.EnsureConfig()
	if err != nil {
		return nil, err
	}
	return plex.NewTokenManager(cfg, plex.WithHTTPClient(plex.NewHTTPClient(cfg)))
}

// Session connects to the server and loads the inventory on first use.
func (c *Context) Session(ctx context.Context, opts inventory.Options) (*Session, error) {
	c.sessionOnce.Do(func() {
		c.session, c.sessionErr = c.openSession(ctx, opts)
	})
	return c.session, c.sessionErr
}

func (c *Context) openSession(ctx context.Context, opts inventory.Options) (*Session, error) {
	cfg, err := c.EnsureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.Logger()
	if err != nil {
		return nil, err
	}
	tokens, err := c.TokenManager()
	if err != nil {
		return nil, err
	}
	client, identity, err := plex.Connect(ctx, cfg, plex.NewHTTPClient(cfg), tokens, logger)
	if err != nil {
		return nil, err
	}
	inv, err := inventory.Load(ctx, client, identity, opts, logging.NewComponentLogger(logger, "inventory"))
	if err != nil {
		return nil, err
	}
	return &Session{
		Config:    cfg,
		Logger:    logger,
		Tokens:    tokens,
		Client:    client,
		Server:    identity,
		Inventory: inv,
	}, nil
}

// ShouldSkipConfig reports whether cmd or one of its parents opted out of
// config loading.
func ShouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

var defaultInventoryOptions = inventory.Options{}
