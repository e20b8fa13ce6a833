package plex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"plexadmin/internal/config"
	"plexadmin/internal/logging"
	"plexadmin/internal/services"
)

const (
	defaultBaseURL        = "https://plex.tv"
	managedProductName    = "plexadmin"
	managedProductVersion = "1.0.0"
	userAgent             = "plexadmin/1.0.0"
	errorBodyLimit        = 2048
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	// ServerURL is the Plex Media Server base URL.
	ServerURL string
	// Token authenticates against the server and, for the owner, plex.tv.
	Token string
	// PlexTVURL overrides https://plex.tv.
	PlexTVURL        string
	ClientIdentifier string
	HTTPClient       HTTPDoer
	Logger           *slog.Logger
}

// Client talks to one Plex Media Server on behalf of one account, and to
// plex.tv with the same token.
type Client struct {
	serverURL string
	plexTVURL string
	token     string
	clientID  string
	http      HTTPDoer
	logger    *slog.Logger
}

// NewClient constructs a Client. ServerURL and Token are required.
func NewClient(opts Options) (*Client, error) {
	serverURL := strings.TrimRight(strings.TrimSpace(opts.ServerURL), "/")
	if serverURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "client", "server url not configured", nil)
	}
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "client", "token not configured", nil)
	}
	plexTVURL := strings.TrimRight(strings.TrimSpace(opts.PlexTVURL), "/")
	if plexTVURL == "" {
		plexTVURL = defaultBaseURL
	}
	doer := opts.HTTPClient
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		serverURL: serverURL,
		plexTVURL: plexTVURL,
		token:     token,
		clientID:  strings.TrimSpace(opts.ClientIdentifier),
		http:      doer,
		logger:    logger,
	}, nil
}

// NewHTTPClient builds the transport described by the configuration.
func NewHTTPClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	verify := true
	if cfg != nil {
		if d := cfg.RequestTimeout(); d > 0 {
			timeout = d
		}
		verify = cfg.Plex.VerifyTLS
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !verify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// WithToken returns a Client for the same server acting as another account.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// WithServerURL returns a Client pointed at a different server address.
func (c *Client) WithServerURL(serverURL string) *Client {
	clone := *c
	clone.serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	return &clone
}

// ServerURL returns the base URL of the media server.
func (c *Client) ServerURL() string {
	return c.serverURL
}

type request struct {
	method string
	base   string
	path   string
	query  url.Values
	body   any
	accept string
}

func (c *Client) serverRequest(method, path string, query url.Values) request {
	return request{method: method, base: c.serverURL, path: path, query: query, accept: "application/xml"}
}

func (c *Client) plexTVRequest(method, path string, query url.Values) request {
	return request{method: method, base: c.plexTVURL, path: path, query: query, accept: "application/xml"}
}

func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	target := r.base + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader = http.NoBody
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "plex", r.path, "marshal request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "plex", r.path, "build request", err)
	}
	req.Header.Set("Accept", r.accept)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("X-Plex-Token", c.token)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	applyStandardHeaders(req, c.clientID)

	c.logger.Debug("plex request",
		logging.String("method", r.method),
		logging.String("path", r.path),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "plex", r.method+" "+r.path, "request failed", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, statusError(r.method, r.path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (c *Client) doXML(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "plex", r.path, "decode response", err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	r.accept = "application/json"
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "plex", r.path, "decode response", err)
	}
	return nil
}

func statusError(method, path string, status int, body string) error {
	marker := services.ErrTransient
	switch status {
	case http.StatusUnauthorized:
		marker = services.ErrUnauthorized
	case http.StatusNotFound:
		marker = services.ErrNotFound
	}
	msg := fmt.Sprintf("returned %d", status)
	if body != "" {
		msg += ": " + body
	}
	return services.Wrap(marker, "plex", method+" "+path, msg, nil)
}

func applyStandardHeaders(req *http.Request, clientIdentifier string) {
	if clientIdentifier != "" {
		req.Header.Set("X-Plex-Client-Identifier", clientIdentifier)
	}
	req.Header.Set("X-Plex-Product", managedProductName)
	req.Header.Set("X-Plex-Version", managedProductVersion)
	req.Header.Set("X-Plex-Device-Name", managedProductName)
	req.Header.Set("X-Plex-Platform", runtime.GOOS)
}

func boolParam(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// flag parses the "1"/"0"/"true" attribute values Plex uses for booleans.
type flag bool

func (f *flag) UnmarshalXMLAttr(attr xml.Attr) error {
	switch strings.ToLower(strings.TrimSpace(attr.Value)) {
	case "1", "true":
		*f = true
	default:
		*f = false
	}
	return nil
}
