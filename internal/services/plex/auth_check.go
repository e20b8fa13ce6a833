package plex

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"plexadmin/internal/config"
	"plexadmin/internal/logging"
	"plexadmin/internal/services"
)

type resolvingTokenProvider interface {
	TokenProvider
	ClientIdentifier() string
	AuthorizationToken() string
	ResolvedPlexURL() string
	SaveResolvedPlexURL(string) error
}

// Connect builds a Client for the configured server and verifies that the
// server accepts the token by reading its identity. When plex.url is empty, or
// the configured address presents a plex.direct certificate that does not
// match, the server address is looked up through plex.tv and cached.
func Connect(ctx context.Context, cfg *config.Config, doer HTTPDoer, provider TokenProvider, logger *slog.Logger) (*Client, ServerIdentity, error) {
	if cfg == nil {
		return nil, ServerIdentity{}, errors.New("config is nil")
	}
	if provider == nil {
		return nil, ServerIdentity{}, errors.New("token provider is nil")
	}
	if doer == nil {
		doer = NewHTTPClient(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	token, err := provider.Token(ctx)
	if err != nil {
		return nil, ServerIdentity{}, err
	}

	resolver, _ := provider.(resolvingTokenProvider)
	clientID := ""
	if resolver != nil {
		clientID = resolver.ClientIdentifier()
	}

	activeURL := strings.TrimRight(strings.TrimSpace(cfg.Plex.URL), "/")
	if activeURL == "" {
		if resolver == nil {
			return nil, ServerIdentity{}, services.Wrap(services.ErrConfiguration, "plex", "connect", "plex.url not configured", nil)
		}
		resolved, err := ensureResolvedPlexURL(ctx, doer, cfg, resolver, token)
		if err != nil {
			return nil, ServerIdentity{}, services.Wrap(services.ErrConfiguration, "plex", "connect", "plex.url not configured and discovery failed", err)
		}
		activeURL = resolved
	}

	client, err := NewClient(Options{
		ServerURL:        activeURL,
		Token:            token,
		PlexTVURL:        cfg.Plex.PlexTVURL,
		ClientIdentifier: clientID,
		HTTPClient:       doer,
		Logger:           logging.NewComponentLogger(logger, "plex"),
	})
	if err != nil {
		return nil, ServerIdentity{}, err
	}

	identity, err := client.ServerIdentity(ctx)
	if err == nil {
		return client, identity, nil
	}
	if resolver == nil || !needsPlexDirectFallback(err) {
		return nil, ServerIdentity{}, err
	}

	logger.Info("configured plex url presented a plex.direct certificate; resolving through plex.tv",
		logging.String("url", activeURL))
	resolvedURL, resolveErr := ensureResolvedPlexURL(ctx, doer, cfg, resolver, token)
	if resolveErr != nil {
		return nil, ServerIdentity{}, err
	}
	client = client.WithServerURL(resolvedURL)
	identity, err = client.ServerIdentity(ctx)
	if err != nil {
		return nil, ServerIdentity{}, err
	}
	return client, identity, nil
}

func needsPlexDirectFallback(err error) bool {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}

	var hostnameErr *x509.HostnameError
	if errors.As(urlErr.Err, &hostnameErr) && certificateHasPlexDirect(hostnameErr.Certificate) {
		return true
	}

	var verifyErr *tls.CertificateVerificationError
	if errors.As(urlErr.Err, &verifyErr) {
		for _, cert := range verifyErr.UnverifiedCertificates {
			if certificateHasPlexDirect(cert) {
				return true
			}
		}
		if verifyErr.Err != nil && strings.Contains(strings.ToLower(verifyErr.Err.Error()), "plex.direct") {
			return true
		}
	}

	return strings.Contains(strings.ToLower(urlErr.Error()), "plex.direct")
}

func ensureResolvedPlexURL(ctx context.Context, doer HTTPDoer, cfg *config.Config, provider resolvingTokenProvider, token string) (string, error) {
	if resolved := strings.TrimSpace(provider.ResolvedPlexURL()); resolved != "" {
		return resolved, nil
	}
	authToken := strings.TrimSpace(provider.AuthorizationToken())
	if authToken == "" {
		authToken = token
	}
	resolved, err := ResolveServerURL(ctx, doer, ResourceQuery{
		PlexTVURL:        cfg.Plex.PlexTVURL,
		AuthToken:        authToken,
		ClientIdentifier: provider.ClientIdentifier(),
	})
	if err != nil {
		return "", err
	}
	if err := provider.SaveResolvedPlexURL(resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func certificateHasPlexDirect(cert *x509.Certificate) bool {
	if cert == nil {
		return false
	}
	for _, name := range cert.DNSNames {
		if strings.Contains(strings.ToLower(name), "plex.direct") {
			return true
		}
	}
	return false
}
