package plex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plexadmin/internal/logging"
	"plexadmin/internal/services"
)

type plexResourceList struct {
	Resources []plexResource `xml:"resource"`
}

type plexResource struct {
	Name             string                   `xml:"name,attr"`
	AccessToken      string                   `xml:"accessToken,attr"`
	ClientIdentifier string                   `xml:"clientIdentifier,attr"`
	Provides         string                   `xml:"provides,attr"`
	Owned            flag                     `xml:"owned,attr"`
	Connections      []plexResourceConnection `xml:"connections>connection"`
}

type plexResourceConnection struct {
	URI      string `xml:"uri,attr"`
	Protocol string `xml:"protocol,attr"`
	Local    string `xml:"local,attr"`
	Relay    string `xml:"relay,attr"`
	Address  string `xml:"address,attr"`
	Port     string `xml:"port,attr"`
}

// ResourceQuery selects the server to look up on plex.tv.
type ResourceQuery struct {
	PlexTVURL        string
	AuthToken        string
	ClientIdentifier string
	// MachineIdentifier narrows the match to one server when known.
	MachineIdentifier string
}

// ResolveServerURL asks plex.tv for the owner's servers and returns the best
// connection URI of the matching one.
func ResolveServerURL(ctx context.Context, doer HTTPDoer, q ResourceQuery) (string, error) {
	if doer == nil {
		doer = http.DefaultClient
	}
	base := strings.TrimRight(strings.TrimSpace(q.PlexTVURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := &Client{
		plexTVURL: base,
		token:     strings.TrimSpace(q.AuthToken),
		clientID:  q.ClientIdentifier,
		http:      doer,
		logger:    logging.NewNop(),
	}

	var list plexResourceList
	query := url.Values{"includeHttps": {"1"}}
	if err := client.doXML(ctx, client.plexTVRequest(http.MethodGet, "/api/v2/resources", query), &list); err != nil {
		return "", err
	}

	machineID := strings.TrimSpace(q.MachineIdentifier)
	for _, res := range list.Resources {
		if !strings.Contains(res.Provides, "server") {
			continue
		}
		if machineID != "" && res.ClientIdentifier != machineID {
			continue
		}
		if machineID == "" && !bool(res.Owned) {
			continue
		}
		if uri := selectBestConnection(res.Connections); uri != "" {
			return uri, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "plex", "resources", "matching plex server not found in resources response", nil)
}

func selectBestConnection(connections []plexResourceConnection) string {
	bestScore := -1
	bestURL := ""
	for _, conn := range connections {
		uri := strings.TrimSpace(conn.URI)
		if uri == "" {
			continue
		}
		protocol := strings.ToLower(strings.TrimSpace(conn.Protocol))
		score := 0
		if protocol == "https" {
			score += 50
		} else if protocol != "" {
			score -= 10
		}

		if strings.Contains(uri, ".plex.direct") {
			score += 30
		}

		if parseBool(conn.Local) {
			score += 5
		}
		if parseBool(conn.Relay) {
			score -= 5
		}

		if score > bestScore {
			bestScore = score
			bestURL = strings.TrimRight(uri, "/")
		}
	}
	return bestURL
}

func parseBool(value string) bool {
	if value == "" {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return b
}
