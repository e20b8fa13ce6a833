package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plexadmin/internal/logging"
	"plexadmin/internal/services"
)

// PinClient handles the plex.tv endpoints of the device link flow.
type PinClient interface {
	RequestPin(ctx context.Context, clientIdentifier string) (*Pin, error)
	PollPin(ctx context.Context, clientIdentifier string, id int64) (*PinStatus, error)
}

// Pin is a pending link code.
type Pin struct {
	ID        int64
	Code      string
	AuthURL   string
	ExpiresAt time.Time
}

// PinStatus reports whether a pin has been approved.
type PinStatus struct {
	Authorized         bool
	AuthorizationToken string
	ExpiresAt          time.Time
}

type pinResponse struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	AuthToken string  `json:"authToken"`
	ExpiresIn float64 `json:"expiresIn"`
	ExpiresAt string  `json:"expiresAt"`
}

func (p pinResponse) expirationTime() time.Time {
	if p.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, p.ExpiresAt); err == nil {
			return t
		}
	}
	if p.ExpiresIn > 0 {
		return time.Now().Add(time.Duration(p.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// httpPinClient implements PinClient on top of the plex.tv JSON API.
type httpPinClient struct {
	client *Client
}

// NewHTTPPinClient constructs a PinClient against baseURL.
func NewHTTPPinClient(baseURL string, doer HTTPDoer) PinClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if doer == nil {
		doer = &http.Client{Timeout: 10 * time.Second}
	}
	return &httpPinClient{client: &Client{plexTVURL: base, http: doer, logger: logging.NewNop()}}
}

func (c *httpPinClient) RequestPin(ctx context.Context, clientIdentifier string) (*Pin, error) {
	var resp pinResponse
	if err := c.withClientID(clientIdentifier).doJSON(ctx, c.client.plexTVRequest(http.MethodPost, "/api/v2/pins", url.Values{"strong": {"true"}}), &resp); err != nil {
		return nil, err
	}
	if resp.ID == 0 || resp.Code == "" {
		return nil, services.Wrap(services.ErrTransient, "plex", "request pin", "response missing pin id or code", nil)
	}
	return &Pin{
		ID:        resp.ID,
		Code:      resp.Code,
		AuthURL:   authURL(clientIdentifier, resp.Code),
		ExpiresAt: resp.expirationTime(),
	}, nil
}

func (c *httpPinClient) PollPin(ctx context.Context, clientIdentifier string, id int64) (*PinStatus, error) {
	path := fmt.Sprintf("/api/v2/pins/%d", id)
	var resp pinResponse
	if err := c.withClientID(clientIdentifier).doJSON(ctx, c.client.plexTVRequest(http.MethodGet, path, nil), &resp); err != nil {
		return nil, err
	}

	status := &PinStatus{ExpiresAt: resp.expirationTime()}
	if token := strings.TrimSpace(resp.AuthToken); token != "" {
		status.Authorized = true
		status.AuthorizationToken = token
	}
	return status, nil
}

func (c *httpPinClient) withClientID(clientIdentifier string) *Client {
	clone := *c.client
	clone.clientID = clientIdentifier
	return &clone
}

func authURL(clientIdentifier, code string) string {
	params := url.Values{
		"clientID":                 {clientIdentifier},
		"code":                     {code},
		"context[device][product]": {managedProductName},
	}
	return "https://app.plex.tv/auth#?" + params.Encode()
}
