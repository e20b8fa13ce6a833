package plex

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"plexadmin/internal/config"
	"plexadmin/internal/services"
)

const identityXML = `<MediaContainer friendlyName="Den" machineIdentifier="machine-1" version="1.40.0" myPlexUsername="owner" myPlexSubscription="1"/>`

type stubTokenProvider struct {
	token string
	err   error
	id    string
	auth  string
	cache string
}

func (s *stubTokenProvider) Token(ctx context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.token, nil
}

func (s *stubTokenProvider) ClientIdentifier() string {
	return s.id
}

func (s *stubTokenProvider) AuthorizationToken() string {
	return s.auth
}

func (s *stubTokenProvider) ResolvedPlexURL() string {
	return s.cache
}

func (s *stubTokenProvider) SaveResolvedPlexURL(url string) error {
	s.cache = url
	return nil
}

func TestConnectSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Plex-Token"); got != "token-123" {
			t.Errorf("expected token header token-123, got %q", got)
		}
		if got := r.Header.Get("X-Plex-Client-Identifier"); got != "client-123" {
			t.Errorf("expected client identifier header client-123, got %q", got)
		}
		_, _ = io.WriteString(w, identityXML)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Plex.URL = server.URL

	client, identity, err := Connect(context.Background(), &cfg, server.Client(), &stubTokenProvider{
		token: "token-123",
		id:    "client-123",
		auth:  "token-123",
	}, nil)
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if client.ServerURL() != server.URL {
		t.Fatalf("unexpected server url %q", client.ServerURL())
	}
	want := ServerIdentity{
		FriendlyName:       "Den",
		MachineIdentifier:  "machine-1",
		Version:            "1.40.0",
		MyPlexUsername:     "owner",
		MyPlexSubscription: true,
	}
	if identity != want {
		t.Fatalf("identity = %#v, want %#v", identity, want)
	}
}

func TestConnectUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Plex.URL = server.URL

	_, _, err := Connect(context.Background(), &cfg, server.Client(), &stubTokenProvider{token: "anything", auth: "anything"}, nil)
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestConnectProviderError(t *testing.T) {
	cfg := config.Default()
	cfg.Plex.URL = "http://unused.example"

	_, _, err := Connect(context.Background(), &cfg, &fallbackHTTPDoer{}, &stubTokenProvider{err: ErrAuthorizationMissing}, nil)
	if !errors.Is(err, ErrAuthorizationMissing) {
		t.Fatalf("expected missing authorization, got %v", err)
	}
}

func TestConnectHostnameMismatchResolves(t *testing.T) {
	cfg := config.Default()
	cfg.Plex.URL = "https://internal.example:32400"
	cfg.Plex.PlexTVURL = "https://plextv.example"

	doer := &fallbackHTTPDoer{}
	provider := &stubTokenProvider{token: "token-123", auth: "token-123", id: "client-123"}

	client, identity, err := Connect(context.Background(), &cfg, doer, provider, nil)
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if identity.MachineIdentifier != "machine-1" {
		t.Fatalf("unexpected identity %#v", identity)
	}
	if provider.cache != "https://resolved.example.plex.direct:32400" {
		t.Fatalf("expected cached resolved URL, got %q", provider.cache)
	}
	if client.ServerURL() != provider.cache {
		t.Fatalf("client not switched to resolved url: %q", client.ServerURL())
	}
	if len(doer.calls) != 3 {
		t.Fatalf("expected 3 HTTP calls, got %v", doer.calls)
	}
	if !strings.HasPrefix(doer.calls[0], "https://internal.example:32400") {
		t.Fatalf("expected first call to configured host, got %q", doer.calls[0])
	}
	if !strings.HasPrefix(doer.calls[1], "https://plextv.example/api/v2/resources") {
		t.Fatalf("expected resources lookup, got %q", doer.calls[1])
	}
	if !strings.HasPrefix(doer.calls[2], "https://resolved.example.plex.direct:32400") {
		t.Fatalf("expected third call to resolved host, got %q", doer.calls[2])
	}
}

func TestConnectWithoutURLUsesDiscovery(t *testing.T) {
	cfg := config.Default()
	cfg.Plex.URL = ""
	cfg.Plex.PlexTVURL = "https://plextv.example"

	doer := &fallbackHTTPDoer{}
	provider := &stubTokenProvider{token: "token-123", auth: "token-123", id: "client-123"}

	client, _, err := Connect(context.Background(), &cfg, doer, provider, nil)
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if client.ServerURL() != "https://resolved.example.plex.direct:32400" {
		t.Fatalf("unexpected server url %q", client.ServerURL())
	}
	if len(doer.calls) != 2 {
		t.Fatalf("expected 2 HTTP calls, got %v", doer.calls)
	}
}

func TestSelectBestConnectionPrefersHTTPSPlexDirect(t *testing.T) {
	got := selectBestConnection([]plexResourceConnection{
		{URI: "http://10.0.0.2:32400", Protocol: "http", Local: "1"},
		{URI: "https://relay.example.plex.direct:8443/", Protocol: "https", Relay: "1"},
		{URI: "https://10-0-0-2.abc.plex.direct:32400", Protocol: "https", Local: "1"},
	})
	if got != "https://10-0-0-2.abc.plex.direct:32400" {
		t.Fatalf("unexpected connection %q", got)
	}
}

type fallbackHTTPDoer struct {
	calls []string
}

func (d *fallbackHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls = append(d.calls, req.URL.String())
	switch {
	case strings.Contains(req.URL.Host, "internal.example"):
		cert := &x509.Certificate{DNSNames: []string{"*.resolved.example.plex.direct"}}
		return nil, &url.Error{
			Op:  "Get",
			URL: req.URL.String(),
			Err: &x509.HostnameError{
				Certificate: cert,
				Host:        req.URL.Host,
			},
		}
	case strings.Contains(req.URL.Host, "plextv.example"):
		return stringResponse(`
<resources>
  <resource name="den" provides="server" owned="1" clientIdentifier="machine-1">
    <connections>
      <connection uri="https://resolved.example.plex.direct:32400" protocol="https" local="1" relay="0"/>
    </connections>
  </resource>
</resources>`), nil
	case strings.Contains(req.URL.Host, "resolved.example.plex.direct"):
		return stringResponse(identityXML), nil
	}
	return nil, fmt.Errorf("unexpected request host %s", req.URL.Host)
}

func stringResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}
