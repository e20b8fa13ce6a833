// Package inventory holds the server state a run works from: identity, owner
// account, users and libraries. It is fetched once at start and never
// refreshed, so every selection in a run resolves against the same snapshot.
package inventory

import (
	"context"
	"log/slog"
	"strings"

	"plexadmin/internal/logging"
	"plexadmin/internal/services/plex"
)

// Remote is the subset of the Plex client the inventory reads from.
type Remote interface {
	Account(ctx context.Context) (plex.Account, error)
	Users(ctx context.Context) ([]plex.User, error)
	Sections(ctx context.Context) ([]plex.Section, error)
	ContentRatings(ctx context.Context, sectionKey string) ([]string, error)
}

// Options controls optional lookups.
type Options struct {
	// ContentRatings fetches movie and show rating values when the owner has
	// an active subscription.
	ContentRatings bool
}

// Inventory is the authoritative snapshot for one run.
type Inventory struct {
	Server       plex.ServerIdentity
	Owner        plex.Account
	Users        []plex.User
	Sections     []plex.Section
	PlexPass     bool
	MovieRatings []string
	ShowRatings  []string
}

// Load reads the snapshot from the remote.
func Load(ctx context.Context, remote Remote, server plex.ServerIdentity, opts Options, logger *slog.Logger) (*Inventory, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	owner, err := remote.Account(ctx)
	if err != nil {
		return nil, err
	}
	users, err := remote.Users(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := remote.Sections(ctx)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{
		Server:   server,
		Owner:    owner,
		Sections: sections,
		PlexPass: server.MyPlexSubscription || owner.SubscriptionActive,
	}
	for _, user := range users {
		if strings.TrimSpace(user.Title) == "" {
			continue
		}
		inv.Users = append(inv.Users, user)
	}

	if opts.ContentRatings && inv.PlexPass {
		if inv.MovieRatings, err = collectRatings(ctx, remote, inv.SectionsOfType("movie")); err != nil {
			return nil, err
		}
		if inv.ShowRatings, err = collectRatings(ctx, remote, inv.SectionsOfType("show")); err != nil {
			return nil, err
		}
	}

	logger.Debug("inventory loaded",
		logging.String("server", server.FriendlyName),
		logging.Int("users", len(inv.Users)),
		logging.Int("libraries", len(inv.Sections)),
		logging.Bool("plex_pass", inv.PlexPass),
	)
	return inv, nil
}

// UserNames returns user titles in server order.
func (i *Inventory) UserNames() []string {
	names := make([]string, 0, len(i.Users))
	for _, user := range i.Users {
		names = append(names, user.Title)
	}
	return names
}

// AccountNames returns user titles followed by the owner's title.
func (i *Inventory) AccountNames() []string {
	names := i.UserNames()
	if i.Owner.Title != "" {
		names = append(names, i.Owner.Title)
	}
	return names
}

// IsOwner reports whether name refers to the owner account.
func (i *Inventory) IsOwner(name string) bool {
	return i.Owner.Title != "" && name == i.Owner.Title
}

// User looks up a user by title.
func (i *Inventory) User(name string) (plex.User, bool) {
	for _, user := range i.Users {
		if user.Title == name {
			return user, true
		}
	}
	return plex.User{}, false
}

// SectionTitles returns library titles in server order.
func (i *Inventory) SectionTitles() []string {
	titles := make([]string, 0, len(i.Sections))
	for _, section := range i.Sections {
		titles = append(titles, section.Title)
	}
	return titles
}

// Section looks up a library by title.
func (i *Inventory) Section(title string) (plex.Section, bool) {
	for _, section := range i.Sections {
		if section.Title == title {
			return section, true
		}
	}
	return plex.Section{}, false
}

// SectionsOfType returns the libraries with the given type tag.
func (i *Inventory) SectionsOfType(kind string) []plex.Section {
	var out []plex.Section
	for _, section := range i.Sections {
		if section.Type == kind {
			out = append(out, section)
		}
	}
	return out
}

func collectRatings(ctx context.Context, remote Remote, sections []plex.Section) ([]string, error) {
	seen := make(map[string]struct{})
	var ratings []string
	for _, section := range sections {
		values, err := remote.ContentRatings(ctx, section.Key)
		if err != nil {
			return nil, err
		}
		for _, value := range values {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			ratings = append(ratings, value)
		}
	}
	return ratings, nil
}
