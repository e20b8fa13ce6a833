package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"plexadmin/internal/services"
)

// Account is the plex.tv account that owns the client's token.
type Account struct {
	ID                 int64
	UUID               string
	Username           string
	Title              string
	Email              string
	SubscriptionActive bool
}

// User is a friend or home user of the owner account.
type User struct {
	ID                int64
	Title             string
	Username          string
	Email             string
	Home              bool
	AllowSync         bool
	AllowCameraUpload bool
	AllowChannels     bool
	FilterMovies      string
	FilterTelevision  string
	FilterMusic       string
	Servers           []UserServer
}

// ServerFor returns the user's share entry for the given server.
func (u User) ServerFor(machineID string) (UserServer, bool) {
	for _, server := range u.Servers {
		if server.MachineIdentifier == machineID {
			return server, true
		}
	}
	return UserServer{}, false
}

// UserServer is a server shared with a user. ID is the shared-server id used
// by the shared_servers endpoints.
type UserServer struct {
	ID                int64
	MachineIdentifier string
	Name              string
	NumLibraries      int
	AllLibraries      bool
}

// SharedServer is one entry of the owner's shared_servers listing.
type SharedServer struct {
	ID          int64
	UserID      int64
	Username    string
	Email       string
	AccessToken string
}

// SharedSection is a server library as seen from one share grant.
type SharedSection struct {
	ID     int64
	Key    string
	Title  string
	Type   string
	Shared bool
}

// FriendSettings carries the permission flags and filters of a friend update.
// Nil fields are left unchanged; an empty filter string clears that filter.
type FriendSettings struct {
	AllowSync         *bool
	AllowCameraUpload *bool
	AllowChannels     *bool
	FilterMovies      *string
	FilterTelevision  *string
	FilterMusic       *string
}

// Empty reports whether the update would change nothing.
func (s FriendSettings) Empty() bool {
	return s.AllowSync == nil && s.AllowCameraUpload == nil && s.AllowChannels == nil &&
		s.FilterMovies == nil && s.FilterTelevision == nil && s.FilterMusic == nil
}

type usersContainer struct {
	Users []struct {
		ID                int64  `xml:"id,attr"`
		Title             string `xml:"title,attr"`
		Username          string `xml:"username,attr"`
		Email             string `xml:"email,attr"`
		Home              flag   `xml:"home,attr"`
		AllowSync         flag   `xml:"allowSync,attr"`
		AllowCameraUpload flag   `xml:"allowCameraUpload,attr"`
		AllowChannels     flag   `xml:"allowChannels,attr"`
		FilterMovies      string `xml:"filterMovies,attr"`
		FilterTelevision  string `xml:"filterTelevision,attr"`
		FilterMusic       string `xml:"filterMusic,attr"`
		Servers           []struct {
			ID                int64  `xml:"id,attr"`
			MachineIdentifier string `xml:"machineIdentifier,attr"`
			Name              string `xml:"name,attr"`
			NumLibraries      int    `xml:"numLibraries,attr"`
			AllLibraries      flag   `xml:"allLibraries,attr"`
		} `xml:"Server"`
	} `xml:"User"`
}

type sectionXML struct {
	ID     int64  `xml:"id,attr"`
	Key    string `xml:"key,attr"`
	Title  string `xml:"title,attr"`
	Type   string `xml:"type,attr"`
	Shared flag   `xml:"shared,attr"`
}

type serverContainer struct {
	Servers []struct {
		MachineIdentifier string       `xml:"machineIdentifier,attr"`
		Sections          []sectionXML `xml:"Section"`
	} `xml:"Server"`
}

type sharedServersContainer struct {
	SharedServers []struct {
		ID          int64        `xml:"id,attr"`
		UserID      int64        `xml:"userID,attr"`
		Username    string       `xml:"username,attr"`
		Email       string       `xml:"email,attr"`
		AccessToken string       `xml:"accessToken,attr"`
		Sections    []sectionXML `xml:"Section"`
	} `xml:"SharedServer"`
}

type accountResponse struct {
	ID           int64  `json:"id"`
	UUID         string `json:"uuid"`
	Username     string `json:"username"`
	Title        string `json:"title"`
	Email        string `json:"email"`
	Subscription struct {
		Active bool   `json:"active"`
		Status string `json:"status"`
	} `json:"subscription"`
}

type shareRequest struct {
	ServerID     string             `json:"server_id"`
	SharedServer sharedServerFields `json:"shared_server"`
}

type sharedServerFields struct {
	LibrarySectionIDs []int64 `json:"library_section_ids"`
	InvitedID         int64   `json:"invited_id,omitempty"`
}

// Account fetches the plex.tv account for the client's token.
func (c *Client) Account(ctx context.Context) (Account, error) {
	var resp accountResponse
	if err := c.doJSON(ctx, c.plexTVRequest(http.MethodGet, "/api/v2/user", nil), &resp); err != nil {
		return Account{}, err
	}
	title := resp.Title
	if title == "" {
		title = resp.Username
	}
	return Account{
		ID:                 resp.ID,
		UUID:               resp.UUID,
		Username:           resp.Username,
		Title:              title,
		Email:              resp.Email,
		SubscriptionActive: resp.Subscription.Active,
	}, nil
}

// Users lists the owner's friends and home users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var container usersContainer
	if err := c.doXML(ctx, c.plexTVRequest(http.MethodGet, "/api/users", nil), &container); err != nil {
		return nil, err
	}
	users := make([]User, 0, len(container.Users))
	for _, u := range container.Users {
		user := User{
			ID:                u.ID,
			Title:             u.Title,
			Username:          u.Username,
			Email:             u.Email,
			Home:              bool(u.Home),
			AllowSync:         bool(u.AllowSync),
			AllowCameraUpload: bool(u.AllowCameraUpload),
			AllowChannels:     bool(u.AllowChannels),
			FilterMovies:      u.FilterMovies,
			FilterTelevision:  u.FilterTelevision,
			FilterMusic:       u.FilterMusic,
		}
		for _, s := range u.Servers {
			user.Servers = append(user.Servers, UserServer{
				ID:                s.ID,
				MachineIdentifier: s.MachineIdentifier,
				Name:              s.Name,
				NumLibraries:      s.NumLibraries,
				AllLibraries:      bool(s.AllLibraries),
			})
		}
		users = append(users, user)
	}
	return users, nil
}

// ServerSectionIDs maps library titles to the plex.tv section ids used when
// granting access.
func (c *Client) ServerSectionIDs(ctx context.Context, machineID string) (map[string]int64, error) {
	var container serverContainer
	path := "/api/servers/" + url.PathEscape(machineID)
	if err := c.doXML(ctx, c.plexTVRequest(http.MethodGet, path, nil), &container); err != nil {
		return nil, err
	}
	ids := make(map[string]int64)
	for _, server := range container.Servers {
		if server.MachineIdentifier != "" && server.MachineIdentifier != machineID {
			continue
		}
		for _, section := range server.Sections {
			ids[section.Title] = section.ID
		}
	}
	return ids, nil
}

// SharedServers lists the owner's share grants for a server, including each
// user's server access token.
func (c *Client) SharedServers(ctx context.Context, machineID string) ([]SharedServer, error) {
	var container sharedServersContainer
	path := "/api/servers/" + url.PathEscape(machineID) + "/shared_servers"
	if err := c.doXML(ctx, c.plexTVRequest(http.MethodGet, path, nil), &container); err != nil {
		return nil, err
	}
	servers := make([]SharedServer, 0, len(container.SharedServers))
	for _, s := range container.SharedServers {
		servers = append(servers, SharedServer{
			ID:          s.ID,
			UserID:      s.UserID,
			Username:    s.Username,
			Email:       s.Email,
			AccessToken: s.AccessToken,
		})
	}
	return servers, nil
}

// SharedSections lists the server's libraries for one share grant with their
// shared flag.
func (c *Client) SharedSections(ctx context.Context, machineID string, sharedServerID int64) ([]SharedSection, error) {
	var container sharedServersContainer
	path := fmt.Sprintf("/api/servers/%s/shared_servers/%d", url.PathEscape(machineID), sharedServerID)
	if err := c.doXML(ctx, c.plexTVRequest(http.MethodGet, path, nil), &container); err != nil {
		return nil, err
	}
	var sections []SharedSection
	for _, s := range container.SharedServers {
		for _, section := range s.Sections {
			sections = append(sections, SharedSection{
				ID:     section.ID,
				Key:    section.Key,
				Title:  section.Title,
				Type:   section.Type,
				Shared: bool(section.Shared),
			})
		}
	}
	return sections, nil
}

// ShareSections sets the libraries granted to a user. An existing grant
// (sharedServerID > 0) is replaced; otherwise a new grant is created.
func (c *Client) ShareSections(ctx context.Context, machineID string, sharedServerID, userID int64, sectionIDs []int64) error {
	body := shareRequest{
		ServerID:     machineID,
		SharedServer: sharedServerFields{LibrarySectionIDs: append([]int64{}, sectionIDs...)},
	}
	path := "/api/servers/" + url.PathEscape(machineID) + "/shared_servers"
	method := http.MethodPost
	if sharedServerID > 0 {
		path += "/" + strconv.FormatInt(sharedServerID, 10)
		method = http.MethodPut
	} else {
		body.SharedServer.InvitedID = userID
	}
	r := c.plexTVRequest(method, path, nil)
	r.body = body
	return c.doXML(ctx, r, nil)
}

// RemoveSharedServer deletes every library grant of one share.
func (c *Client) RemoveSharedServer(ctx context.Context, machineID string, sharedServerID int64) error {
	path := fmt.Sprintf("/api/servers/%s/shared_servers/%d", url.PathEscape(machineID), sharedServerID)
	return c.doXML(ctx, c.plexTVRequest(http.MethodDelete, path, nil), nil)
}

// UpdateFriendSettings applies permission flags and filters to a friend.
// An empty update is not sent.
func (c *Client) UpdateFriendSettings(ctx context.Context, userID int64, settings FriendSettings) error {
	if settings.Empty() {
		return nil
	}
	query := url.Values{}
	setBool := func(key string, v *bool) {
		if v != nil {
			query.Set(key, boolParam(*v))
		}
	}
	setString := func(key string, v *string) {
		if v != nil {
			query.Set(key, *v)
		}
	}
	setBool("allowSync", settings.AllowSync)
	setBool("allowCameraUpload", settings.AllowCameraUpload)
	setBool("allowChannels", settings.AllowChannels)
	setString("filterMovies", settings.FilterMovies)
	setString("filterTelevision", settings.FilterTelevision)
	setString("filterMusic", settings.FilterMusic)

	path := "/api/friends/" + strconv.FormatInt(userID, 10)
	return c.doXML(ctx, c.plexTVRequest(http.MethodPut, path, query), nil)
}

// AccessToken returns the server access token plex.tv issued to a user.
func (c *Client) AccessToken(ctx context.Context, machineID string, userID int64) (string, error) {
	servers, err := c.SharedServers(ctx, machineID)
	if err != nil {
		return "", err
	}
	for _, s := range servers {
		if s.UserID == userID && strings.TrimSpace(s.AccessToken) != "" {
			return s.AccessToken, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "plex", "access token",
		fmt.Sprintf("no server access token for user %d", userID), nil)
}
