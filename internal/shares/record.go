package shares

import (
	"bytes"
	"context"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"plexadmin/internal/filter"
	"plexadmin/internal/services/plex"
)

// Record is the backup unit: one user's share settings on one server. Fields
// are declared in JSON key order so encoded records have sorted keys.
type Record struct {
	AllowSync        bool          `json:"allowSync"`
	Camera           bool          `json:"camera"`
	Channels         bool          `json:"channels"`
	Email            string        `json:"email"`
	FilterMovies     filter.Filter `json:"filterMovies"`
	FilterMusic      filter.Filter `json:"filterMusic"`
	FilterTelevision filter.Filter `json:"filterTelevision"`
	Sections         SectionList   `json:"sections"`
	ServerName       string        `json:"serverName"`
	Title            string        `json:"title"`
	UserID           int64         `json:"userID"`
	Username         string        `json:"username"`
}

// ShareRequest replays the record through Share.
func (r Record) ShareRequest() ShareRequest {
	allowSync, camera, channels := r.AllowSync, r.Camera, r.Channels
	var sections []string
	if r.Sections != nil {
		sections = append([]string{}, r.Sections...)
	}
	return ShareRequest{
		Sections:         sections,
		AllowSync:        &allowSync,
		Camera:           &camera,
		Channels:         &channels,
		FilterMovies:     r.FilterMovies.Clone(),
		FilterTelevision: r.FilterTelevision.Clone(),
		FilterMusic:      r.FilterMusic.Clone(),
	}
}

// SectionList is the list of shared library titles. Older backups store an
// empty string for users without a grant on the server; that decodes to nil.
type SectionList []string

// MarshalJSON always writes an array.
func (s SectionList) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(s))
}

// UnmarshalJSON accepts an array, null or a string.
func (s *SectionList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || (len(trimmed) > 0 && trimmed[0] == '"') {
		*s = nil
		return nil
	}
	var titles []string
	if err := json.Unmarshal(trimmed, &titles); err != nil {
		return fmt.Errorf("decode sections: %w", err)
	}
	if titles == nil {
		titles = []string{}
	}
	*s = titles
	return nil
}

// Snapshot reads a user's current permission flags, filters and the titles
// of libraries shared with them on this server.
func (m *Manager) Snapshot(ctx context.Context, name string) (Record, error) {
	user, err := m.lookupUser(ctx, name)
	if err != nil {
		return Record{}, err
	}
	return m.snapshot(ctx, user)
}

func (m *Manager) snapshot(ctx context.Context, user plex.User) (Record, error) {
	rec := Record{
		Title:            user.Title,
		Username:         user.Username,
		Email:            user.Email,
		UserID:           user.ID,
		AllowSync:        user.AllowSync,
		Camera:           user.AllowCameraUpload,
		Channels:         user.AllowChannels,
		FilterMovies:     filter.Decode(user.FilterMovies),
		FilterTelevision: filter.Decode(user.FilterTelevision),
		FilterMusic:      filter.Decode(user.FilterMusic),
		ServerName:       m.server.FriendlyName,
		Sections:         SectionList{},
	}

	share, ok := user.ServerFor(m.server.MachineIdentifier)
	if !ok {
		return rec, nil
	}
	sections, err := m.remote.SharedSections(ctx, m.server.MachineIdentifier, share.ID)
	if err != nil {
		return Record{}, err
	}
	for _, section := range sections {
		if section.Shared {
			rec.Sections = append(rec.Sections, section.Title)
		}
	}
	return rec, nil
}

// WriteRecordJSON prints a record as indented JSON with sorted keys.
func WriteRecordJSON(w io.Writer, user string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encode share settings: %w", err)
	}
	_, err = fmt.Fprintf(w, "Current share settings for %s: %s\n", user, data)
	return err
}
