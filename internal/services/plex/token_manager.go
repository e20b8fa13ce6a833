package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"plexadmin/internal/config"
	"plexadmin/internal/services"
)

// ErrAuthorizationMissing is returned when no token is configured and the link
// flow has not been completed.
var ErrAuthorizationMissing = fmt.Errorf("%w: plex authorization token not linked", services.ErrUnauthorized)

const stateFileName = "plex_auth.json"

// TokenProvider supplies the account token used against the server and plex.tv.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenManagerOption customises TokenManager construction.
type TokenManagerOption func(*TokenManager)

// WithHTTPClient overrides the HTTP client used for plex.tv calls.
func WithHTTPClient(client HTTPDoer) TokenManagerOption {
	return func(m *TokenManager) {
		m.httpClient = client
		m.pinClient = nil
	}
}

// WithBaseURL overrides the plex.tv base URL (used in tests).
func WithBaseURL(baseURL string) TokenManagerOption {
	return func(m *TokenManager) {
		m.baseURL = strings.TrimRight(baseURL, "/")
		m.pinClient = nil
	}
}

// WithTokenStore injects a custom persistence layer.
func WithTokenStore(store TokenStore) TokenManagerOption {
	return func(m *TokenManager) {
		m.store = store
	}
}

// WithPinClient injects a prebuilt link flow client.
func WithPinClient(client PinClient) TokenManagerOption {
	return func(m *TokenManager) {
		m.pinClient = client
	}
}

// TokenManager owns the account token: the configured plex.token when set,
// otherwise the token stored by the device link flow.
type TokenManager struct {
	configuredToken string

	httpClient HTTPDoer
	baseURL    string
	store      TokenStore
	pinClient  PinClient

	stateMu sync.RWMutex
	state   linkState
}

// NewTokenManager builds a TokenManager using the provided configuration.
func NewTokenManager(cfg *config.Config, opts ...TokenManagerOption) (*TokenManager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	statePath := filepath.Join(cfg.Paths.StateDir, stateFileName)
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Plex.PlexTVURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	mgr := &TokenManager{
		configuredToken: strings.TrimSpace(cfg.Plex.Token),
		baseURL:         baseURL,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		store:           NewFileTokenStore(statePath),
	}

	for _, opt := range opts {
		opt(mgr)
	}

	if mgr.httpClient == nil {
		mgr.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if mgr.store == nil {
		mgr.store = NewFileTokenStore(statePath)
	}
	if mgr.pinClient == nil {
		mgr.pinClient = NewHTTPPinClient(mgr.baseURL, mgr.httpClient)
	}

	if err := mgr.loadInitialState(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *TokenManager) loadInitialState() error {
	state, err := m.store.Load()
	if err != nil {
		return err
	}

	dirty := false
	if state.ClientIdentifier == "" {
		state.ClientIdentifier = strings.ReplaceAll(uuid.New().String(), "-", "")
		dirty = true
	}
	m.state = state

	if dirty {
		if err := m.store.Save(m.state); err != nil {
			return err
		}
	}
	return nil
}

// HasAuthorization reports whether a token is available.
func (m *TokenManager) HasAuthorization() bool {
	if m.configuredToken != "" {
		return true
	}
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return strings.TrimSpace(m.state.AuthorizationToken) != ""
}

// Token returns the configured token, falling back to the linked one.
func (m *TokenManager) Token(_ context.Context) (string, error) {
	if m.configuredToken != "" {
		return m.configuredToken, nil
	}
	if token := m.AuthorizationToken(); token != "" {
		return token, nil
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if err := m.reloadLocked(); err != nil {
		return "", err
	}
	if token := strings.TrimSpace(m.state.AuthorizationToken); token != "" {
		return token, nil
	}
	return "", ErrAuthorizationMissing
}

// ClientIdentifier returns the persistent X-Plex-Client-Identifier.
func (m *TokenManager) ClientIdentifier() string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state.ClientIdentifier
}

// AuthorizationToken returns the token stored by the link flow.
func (m *TokenManager) AuthorizationToken() string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return strings.TrimSpace(m.state.AuthorizationToken)
}

// ResolvedPlexURL returns the server address discovered through plex.tv.
func (m *TokenManager) ResolvedPlexURL() string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state.ResolvedURL
}

// SaveResolvedPlexURL records a discovered server address.
func (m *TokenManager) SaveResolvedPlexURL(resolved string) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	updated := m.state
	updated.ResolvedURL = strings.TrimRight(strings.TrimSpace(resolved), "/")
	if err := m.store.Save(updated); err != nil {
		return err
	}
	m.state = updated
	return nil
}

// SetAuthorizationToken stores the token returned by the link flow. Any
// previously resolved server address is discarded.
func (m *TokenManager) SetAuthorizationToken(token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return errors.New("authorization token is empty")
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	updated := m.state
	updated.AuthorizationToken = trimmed
	updated.ResolvedURL = ""

	if err := m.store.Save(updated); err != nil {
		return err
	}
	m.state = updated
	return nil
}

// RequestPin starts the Plex device linking flow.
func (m *TokenManager) RequestPin(ctx context.Context) (*Pin, error) {
	return m.pinClient.RequestPin(ctx, m.ClientIdentifier())
}

// PollPin checks whether the user has approved the Plex link code.
func (m *TokenManager) PollPin(ctx context.Context, id int64) (*PinStatus, error) {
	return m.pinClient.PollPin(ctx, m.ClientIdentifier(), id)
}

func (m *TokenManager) reloadLocked() error {
	loaded, err := m.store.Load()
	if err != nil {
		return err
	}
	if loaded.ClientIdentifier == "" {
		loaded.ClientIdentifier = m.state.ClientIdentifier
	}
	m.state = loaded
	return nil
}
