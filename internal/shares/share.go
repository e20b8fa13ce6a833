package shares

import (
	"context"
	"fmt"
	"strings"

	"plexadmin/internal/filter"
	"plexadmin/internal/logging"
	"plexadmin/internal/selection"
	"plexadmin/internal/services"
	"plexadmin/internal/services/plex"
)

// ShareRequest is the desired state of one user's grant. Nil fields leave the
// server value unchanged. Sections set to an empty, non-nil slice removes every
// grant; an empty, non-nil filter clears that filter.
type ShareRequest struct {
	Sections []string

	AllowSync *bool
	Camera    *bool
	Channels  *bool

	FilterMovies     filter.Filter
	FilterTelevision filter.Filter
	FilterMusic      filter.Filter
}

func (r ShareRequest) settings() plex.FriendSettings {
	return plex.FriendSettings{
		AllowSync:         r.AllowSync,
		AllowCameraUpload: r.Camera,
		AllowChannels:     r.Channels,
		FilterMovies:      encodeFilter(r.FilterMovies),
		FilterTelevision:  encodeFilter(r.FilterTelevision),
		FilterMusic:       encodeFilter(r.FilterMusic),
	}
}

func encodeFilter(f filter.Filter) *string {
	if f == nil {
		return nil
	}
	encoded := filter.Encode(f)
	return &encoded
}

// Share applies a grant to a user and prints a line per changed dimension.
func (m *Manager) Share(ctx context.Context, name string, req ShareRequest) error {
	user, err := m.lookupUser(ctx, name)
	if err != nil {
		return err
	}
	return m.share(ctx, user, req)
}

func (m *Manager) share(ctx context.Context, user plex.User, req ShareRequest) error {
	machineID := m.server.MachineIdentifier
	shareID := int64(0)
	if share, ok := user.ServerFor(machineID); ok {
		shareID = share.ID
	}

	if req.Sections != nil {
		if len(req.Sections) == 0 {
			if shareID > 0 {
				if err := m.remote.RemoveSharedServer(ctx, machineID, shareID); err != nil {
					return fmt.Errorf("share libraries with %s: %w", user.Title, err)
				}
			}
		} else {
			ids, err := m.sectionIDs(ctx, req.Sections)
			if err != nil {
				return fmt.Errorf("share libraries with %s: %w", user.Title, err)
			}
			if err := m.remote.ShareSections(ctx, machineID, shareID, user.ID, ids); err != nil {
				return fmt.Errorf("share libraries with %s: %w", user.Title, err)
			}
		}
	}
	if err := m.remote.UpdateFriendSettings(ctx, user.ID, req.settings()); err != nil {
		return fmt.Errorf("update settings of %s: %w", user.Title, err)
	}

	logging.WithContext(ctx, m.logger).Info("share updated",
		logging.Strings("sections", req.Sections),
	)
	m.printShareSummary(user.Title, req)
	return nil
}

func (m *Manager) printShareSummary(name string, req ShareRequest) {
	if len(req.Sections) > 0 {
		m.printf("%s's updated shared libraries: \n%s\n", name, formatTitles(req.Sections))
	}
	m.printToggle("Sync", req.AllowSync)
	m.printToggle("Camera Upload", req.Camera)
	m.printToggle("Plugins", req.Channels)
	m.printFilter("Movie Filters", req.FilterMovies)
	m.printFilter("Show Filters", req.FilterTelevision)
	m.printFilter("Music Filters", req.FilterMusic)
}

func (m *Manager) printToggle(label string, value *bool) {
	if value == nil {
		return
	}
	state := "Disabled"
	if *value {
		state = "Enabled"
	}
	m.printf("%s: %s\n", label, state)
}

func (m *Manager) printFilter(label string, f filter.Filter) {
	switch {
	case f == nil:
	case len(f) == 0:
		m.printf("%s:\n", label)
	default:
		m.printf("%s: %s\n", label, f)
	}
}

// Add grants libraries on top of the user's current grant. Without libraries
// it re-shares the current grant with the requested flags and filters.
func (m *Manager) Add(ctx context.Context, name string, libraries []string, settings ShareRequest) error {
	user, err := m.lookupUser(ctx, name)
	if err != nil {
		return err
	}
	current, err := m.snapshot(ctx, user)
	if err != nil {
		return err
	}
	return m.add(ctx, user, current.Sections, libraries, settings)
}

func (m *Manager) add(ctx context.Context, user plex.User, current, libraries []string, settings ShareRequest) error {
	req := settings
	req.Sections = nil
	if len(libraries) > 0 {
		if len(current) == 0 {
			logging.WithContext(ctx, m.logger).Warn("user has no libraries shared; nothing to add to")
			return nil
		}
		req.Sections = selection.Union(current, libraries)
	} else if len(current) > 0 {
		req.Sections = append([]string(nil), current...)
	}
	return m.share(ctx, user, req)
}

// Remove revokes libraries from the user's current grant. Without libraries
// it disables each requested flag and clears each requested filter.
func (m *Manager) Remove(ctx context.Context, name string, libraries []string, settings ShareRequest) error {
	user, err := m.lookupUser(ctx, name)
	if err != nil {
		return err
	}
	current, err := m.snapshot(ctx, user)
	if err != nil {
		return err
	}
	return m.remove(ctx, user, current.Sections, libraries, settings)
}

func (m *Manager) remove(ctx context.Context, user plex.User, current, libraries []string, settings ShareRequest) error {
	if len(libraries) > 0 {
		if len(current) == 0 {
			logging.WithContext(ctx, m.logger).Warn("user has no libraries shared; nothing to remove")
			return nil
		}
		req := settings
		req.Sections = selection.Difference(current, libraries)
		return m.share(ctx, user, req)
	}

	disabled := false
	req := ShareRequest{
		AllowSync: disableIfSet(settings.AllowSync, &disabled),
		Camera:    disableIfSet(settings.Camera, &disabled),
		Channels:  disableIfSet(settings.Channels, &disabled),
	}
	if settings.FilterMovies != nil {
		req.FilterMovies = filter.Filter{}
	}
	if settings.FilterTelevision != nil {
		req.FilterTelevision = filter.Filter{}
	}
	if settings.FilterMusic != nil {
		req.FilterMusic = filter.Filter{}
	}
	return m.share(ctx, user, req)
}

func disableIfSet(flag *bool, disabled *bool) *bool {
	if flag == nil || !*flag {
		return flag
	}
	return disabled
}

// Unshare removes every library grant from the user. The friend or home user
// relationship is kept.
func (m *Manager) Unshare(ctx context.Context, name string) error {
	user, err := m.lookupUser(ctx, name)
	if err != nil {
		return err
	}
	return m.unshare(ctx, user)
}

func (m *Manager) unshare(ctx context.Context, user plex.User) error {
	if share, ok := user.ServerFor(m.server.MachineIdentifier); ok {
		if err := m.remote.RemoveSharedServer(ctx, m.server.MachineIdentifier, share.ID); err != nil {
			return fmt.Errorf("unshare libraries from %s: %w", user.Title, err)
		}
	} else {
		logging.WithContext(ctx, m.logger).Debug("user has no grant on this server")
	}
	m.printf("Unshared all libraries from %s.\n", user.Title)
	return nil
}

// Kill stops every active session owned by the user. An empty message uses
// the configured default. Stops are not retried.
func (m *Manager) Kill(ctx context.Context, name, message string) error {
	reason := strings.TrimSpace(message)
	if reason == "" {
		reason = m.killMessage
	}
	sessions, err := m.remote.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	for _, session := range sessions {
		if len(session.Usernames) == 0 || session.Usernames[0] != name {
			continue
		}
		m.printf("%s was watching %s. Killing stream and unsharing.\n", name, session.DisplayTitle())
		if err := m.remote.StopSession(ctx, session.ID, reason); err != nil {
			return fmt.Errorf("stop session %s of %s: %w", session.ID, name, err)
		}
	}
	return nil
}

func (m *Manager) sectionIDs(ctx context.Context, titles []string) ([]int64, error) {
	known, err := m.remote.ServerSectionIDs(ctx, m.server.MachineIdentifier)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(titles))
	for _, title := range titles {
		id, ok := known[title]
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "shares", "section ids", fmt.Sprintf("library %q is not on server %s", title, m.server.FriendlyName), nil)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatTitles(titles []string) string {
	quoted := make([]string, len(titles))
	for i, title := range titles {
		quoted[i] = fmt.Sprintf("%q", title)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
