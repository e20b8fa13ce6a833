package watchsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"plexadmin/internal/logging"
	"plexadmin/internal/services"
	"plexadmin/internal/services/plex"
)

// Account is a server connection authenticated as one user.
type Account interface {
	Sections(ctx context.Context) ([]plex.Section, error)
	WatchedItems(ctx context.Context, sectionKey string) ([]plex.Item, error)
	WatchedEpisodes(ctx context.Context, showRatingKey string) ([]plex.Item, error)
	FetchItem(ctx context.Context, ratingKey string) (plex.Item, error)
	MarkWatched(ctx context.Context, ratingKey string) error
}

// Resolver opens the account for a user name.
type Resolver interface {
	Account(ctx context.Context, name string) (Account, error)
}

// Request is one sync run.
type Request struct {
	From string
	To   []string
	// Libraries is the resolved library selection.
	Libraries []string
	RatingKey string
}

// Engine prints one line per synced item.
type Engine struct {
	resolver Resolver
	out      io.Writer
	logger   *slog.Logger
}

// NewEngine constructs an Engine. A nil writer prints to stdout.
func NewEngine(resolver Resolver, out io.Writer, logger *slog.Logger) *Engine {
	if out == nil {
		out = os.Stdout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{resolver: resolver, out: out, logger: logger}
}

// Run syncs From to every user in To. Libraries take precedence over the
// rating key. Library failures are reported and skipped; account failures
// and rating key failures stop the run.
func (e *Engine) Run(ctx context.Context, req Request) error {
	source, err := e.resolver.Account(ctx, req.From)
	if err != nil {
		return fmt.Errorf("open account %s: %w", req.From, err)
	}
	ratingKey := strings.TrimSpace(req.RatingKey)
	for _, name := range req.To {
		target, err := e.resolver.Account(ctx, name)
		if err != nil {
			return fmt.Errorf("open account %s: %w", name, err)
		}
		userCtx := services.WithUser(ctx, name)
		switch {
		case len(req.Libraries) > 0:
			if err := e.SyncLibraries(userCtx, source, req.From, req.Libraries, target, name); err != nil {
				return err
			}
		case ratingKey != "":
			if err := e.SyncItem(userCtx, target, name, ratingKey); err != nil {
				return err
			}
		default:
			e.printf("No libraries or rating key provided.\n")
		}
	}
	return nil
}

// SyncLibraries syncs each library in turn and prints a diagnostic for any
// library that fails. It only returns an error when ctx is done.
func (e *Engine) SyncLibraries(ctx context.Context, source Account, sourceLabel string, libraries []string, target Account, targetLabel string) error {
	for _, library := range libraries {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.printf("Checking library: %s\n", library)
		err := e.SyncLibrary(services.WithLibrary(ctx, library), source, library, target, targetLabel)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		logging.WithContext(services.WithLibrary(ctx, library), e.logger).Debug("library sync failed",
			logging.String("kind", KindOf(err).String()),
			logging.Error(err),
		)
		switch KindOf(err) {
		case KindNoWatchStatus:
			e.printf("Library (%s) does not have a watch status.\n", library)
		case KindNotSharedToSource:
			e.printf("Library (%s) not shared to user: %s.\n", library, sourceLabel)
		case KindNotSharedToTarget:
			e.printf("Library (%s) not shared to user: %s.\n", library, targetLabel)
		default:
			e.printf("%v\n", err)
		}
	}
	return nil
}

// SyncLibrary marks every item the source account has watched in the named
// library as watched on the target account. Shows are synced episode by
// episode.
func (e *Engine) SyncLibrary(ctx context.Context, source Account, library string, target Account, targetLabel string) error {
	sections, err := source.Sections(ctx)
	if err != nil {
		return &SyncError{Kind: KindOther, Library: library, Err: err}
	}
	section, ok := findSection(sections, library)
	if !ok {
		return &SyncError{Kind: KindNotSharedToSource, Library: library,
			Err: services.Wrap(services.ErrNotFound, "watchsync", "find library", "library not visible to source account", nil)}
	}
	if section.Type != "movie" && section.Type != "show" {
		return &SyncError{Kind: KindNoWatchStatus, Library: library,
			Err: services.Wrap(services.ErrUnsupported, "watchsync", "sync library", "library type "+section.Type+" has no watch status", nil)}
	}

	items, err := source.WatchedItems(ctx, section.Key)
	if err != nil {
		return &SyncError{Kind: KindOther, Library: library, Err: err}
	}
	for _, item := range items {
		switch item.Type {
		case "movie":
			if err := e.markOnTarget(ctx, target, item.RatingKey); err != nil {
				return libraryError(library, err)
			}
			e.printf("Synced watch status of %s to %s's account.\n", item.Title, targetLabel)
		case "show":
			episodes, err := source.WatchedEpisodes(ctx, item.RatingKey)
			if err != nil {
				return &SyncError{Kind: KindOther, Library: library, Err: err}
			}
			for _, episode := range episodes {
				if err := e.markOnTarget(ctx, target, episode.RatingKey); err != nil {
					return libraryError(library, err)
				}
				e.printf("Synced watch status of %s - %s to %s's account.\n", item.Title, episode.Title, targetLabel)
			}
		default:
			e.logger.Debug("skipping item without watch status",
				logging.String("type", item.Type),
				logging.String("title", item.Title),
			)
		}
	}
	return nil
}

// SyncItem marks one item watched on the target account.
func (e *Engine) SyncItem(ctx context.Context, target Account, targetLabel, ratingKey string) error {
	item, err := target.FetchItem(ctx, ratingKey)
	if err != nil {
		return fmt.Errorf("fetch item %s for %s: %w", ratingKey, targetLabel, err)
	}
	e.printf("Syncing watch status of %s to %s's account.\n", item.Title, targetLabel)
	if err := target.MarkWatched(ctx, item.RatingKey); err != nil {
		return fmt.Errorf("mark %s watched for %s: %w", item.Title, targetLabel, err)
	}
	return nil
}

func (e *Engine) markOnTarget(ctx context.Context, target Account, ratingKey string) error {
	item, err := target.FetchItem(ctx, ratingKey)
	if err != nil {
		return err
	}
	return target.MarkWatched(ctx, item.RatingKey)
}

func libraryError(library string, err error) error {
	kind := KindOther
	if errors.Is(err, services.ErrNotFound) {
		kind = KindNotSharedToTarget
	}
	return &SyncError{Kind: kind, Library: library, Err: err}
}

func findSection(sections []plex.Section, title string) (plex.Section, bool) {
	for _, section := range sections {
		if section.Title == title {
			return section, true
		}
	}
	return plex.Section{}, false
}

func (e *Engine) printf(format string, args ...any) {
	fmt.Fprintf(e.out, format, args...)
}
