package plex

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"plexadmin/internal/services"
)

const libraryIdentifier = "com.plexapp.plugins.library"

// ServerIdentity describes the media server behind the configured URL.
type ServerIdentity struct {
	FriendlyName       string
	MachineIdentifier  string
	Version            string
	MyPlexUsername     string
	MyPlexSubscription bool
}

// Section is one library on the media server.
type Section struct {
	Key   string
	Title string
	Type  string
}

// Item is a movie, show or episode as seen by the requesting account.
type Item struct {
	RatingKey        string
	Key              string
	Type             string
	Title            string
	GrandparentTitle string
	ViewCount        int
}

// DisplayTitle renders episodes as "<show> - <episode>".
func (i Item) DisplayTitle() string {
	if i.Type == "episode" && i.GrandparentTitle != "" {
		return i.GrandparentTitle + " - " + i.Title
	}
	return i.Title
}

// Session is an active playback.
type Session struct {
	ID               string
	Type             string
	Title            string
	GrandparentTitle string
	Usernames        []string
}

// DisplayTitle renders episodes as "<show> - <episode>".
func (s Session) DisplayTitle() string {
	return Item{Type: s.Type, Title: s.Title, GrandparentTitle: s.GrandparentTitle}.DisplayTitle()
}

type identityContainer struct {
	FriendlyName       string `xml:"friendlyName,attr"`
	MachineIdentifier  string `xml:"machineIdentifier,attr"`
	Version            string `xml:"version,attr"`
	MyPlexUsername     string `xml:"myPlexUsername,attr"`
	MyPlexSubscription flag   `xml:"myPlexSubscription,attr"`
}

type itemXML struct {
	RatingKey        string `xml:"ratingKey,attr"`
	Key              string `xml:"key,attr"`
	Type             string `xml:"type,attr"`
	Title            string `xml:"title,attr"`
	GrandparentTitle string `xml:"grandparentTitle,attr"`
	ViewCount        int    `xml:"viewCount,attr"`
}

type sessionXML struct {
	itemXML
	Users []struct {
		Title string `xml:"title,attr"`
	} `xml:"User"`
	Session struct {
		ID string `xml:"id,attr"`
	} `xml:"Session"`
}

type mediaContainer struct {
	Directories []itemXML `xml:"Directory"`
	Videos      []itemXML `xml:"Video"`
}

type sessionContainer struct {
	Videos []sessionXML `xml:"Video"`
	Tracks []sessionXML `xml:"Track"`
}

func (x itemXML) item() Item {
	return Item(x)
}

// ServerIdentity fetches the root endpoint of the media server.
func (c *Client) ServerIdentity(ctx context.Context) (ServerIdentity, error) {
	var container identityContainer
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, "/", nil), &container); err != nil {
		return ServerIdentity{}, err
	}
	if strings.TrimSpace(container.MachineIdentifier) == "" {
		return ServerIdentity{}, services.Wrap(services.ErrTransient, "plex", "identity", "response missing machine identifier", nil)
	}
	return ServerIdentity{
		FriendlyName:       container.FriendlyName,
		MachineIdentifier:  container.MachineIdentifier,
		Version:            container.Version,
		MyPlexUsername:     container.MyPlexUsername,
		MyPlexSubscription: bool(container.MyPlexSubscription),
	}, nil
}

// Sections lists the libraries visible to the client's account.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var container mediaContainer
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, "/library/sections", nil), &container); err != nil {
		return nil, err
	}
	sections := make([]Section, 0, len(container.Directories))
	for _, dir := range container.Directories {
		if dir.Key == "" || dir.Title == "" {
			continue
		}
		sections = append(sections, Section{Key: dir.Key, Title: dir.Title, Type: dir.Type})
	}
	return sections, nil
}

// ContentRatings lists the content rating values present in a library.
func (c *Client) ContentRatings(ctx context.Context, sectionKey string) ([]string, error) {
	var container mediaContainer
	path := "/library/sections/" + url.PathEscape(sectionKey) + "/contentRating"
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, path, nil), &container); err != nil {
		return nil, err
	}
	ratings := make([]string, 0, len(container.Directories))
	for _, dir := range container.Directories {
		if dir.Title != "" {
			ratings = append(ratings, dir.Title)
		}
	}
	return ratings, nil
}

// WatchedItems lists the top-level items of a library that the client's
// account has watched.
func (c *Client) WatchedItems(ctx context.Context, sectionKey string) ([]Item, error) {
	var container mediaContainer
	path := "/library/sections/" + url.PathEscape(sectionKey) + "/all"
	query := url.Values{"unwatched": {"0"}}
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, path, query), &container); err != nil {
		return nil, err
	}
	return container.items(), nil
}

// WatchedEpisodes lists the episodes of a show that the client's account has
// watched.
func (c *Client) WatchedEpisodes(ctx context.Context, showRatingKey string) ([]Item, error) {
	var container mediaContainer
	path := "/library/metadata/" + url.PathEscape(showRatingKey) + "/allLeaves"
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, path, nil), &container); err != nil {
		return nil, err
	}
	var watched []Item
	for _, item := range container.items() {
		if item.ViewCount > 0 {
			watched = append(watched, item)
		}
	}
	return watched, nil
}

// FetchItem loads one item by rating key. Items the account cannot see report
// services.ErrNotFound.
func (c *Client) FetchItem(ctx context.Context, ratingKey string) (Item, error) {
	ratingKey = strings.TrimSpace(ratingKey)
	if ratingKey == "" {
		return Item{}, services.Wrap(services.ErrValidation, "plex", "fetch item", "rating key is empty", nil)
	}
	var container mediaContainer
	path := "/library/metadata/" + url.PathEscape(ratingKey)
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, path, nil), &container); err != nil {
		return Item{}, err
	}
	items := container.items()
	if len(items) == 0 {
		return Item{}, services.Wrap(services.ErrNotFound, "plex", "fetch item", "no item with rating key "+ratingKey, nil)
	}
	return items[0], nil
}

// MarkWatched scrobbles an item for the client's account.
func (c *Client) MarkWatched(ctx context.Context, ratingKey string) error {
	query := url.Values{"key": {ratingKey}, "identifier": {libraryIdentifier}}
	return c.doXML(ctx, c.serverRequest(http.MethodGet, "/:/scrobble", query), nil)
}

// Sessions lists active playback sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var container sessionContainer
	if err := c.doXML(ctx, c.serverRequest(http.MethodGet, "/status/sessions", nil), &container); err != nil {
		return nil, err
	}
	all := append(append([]sessionXML(nil), container.Videos...), container.Tracks...)
	sessions := make([]Session, 0, len(all))
	for _, s := range all {
		usernames := make([]string, 0, len(s.Users))
		for _, u := range s.Users {
			usernames = append(usernames, u.Title)
		}
		sessions = append(sessions, Session{
			ID:               s.Session.ID,
			Type:             s.Type,
			Title:            s.Title,
			GrandparentTitle: s.GrandparentTitle,
			Usernames:        usernames,
		})
	}
	return sessions, nil
}

// StopSession terminates a playback session, showing reason to the viewer.
func (c *Client) StopSession(ctx context.Context, sessionID, reason string) error {
	if strings.TrimSpace(sessionID) == "" {
		return services.Wrap(services.ErrValidation, "plex", "stop session", "session id is empty", nil)
	}
	query := url.Values{"sessionId": {sessionID}, "reason": {reason}}
	return c.doXML(ctx, c.serverRequest(http.MethodGet, "/status/sessions/terminate", query), nil)
}

func (m mediaContainer) items() []Item {
	items := make([]Item, 0, len(m.Videos)+len(m.Directories))
	for _, v := range m.Videos {
		items = append(items, v.item())
	}
	for _, d := range m.Directories {
		if d.RatingKey == "" {
			continue
		}
		items = append(items, d.item())
	}
	return items
}
