package shares

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"plexadmin/internal/logging"
	"plexadmin/internal/services"
	"plexadmin/internal/services/plex"
)

// DefaultKillMessage is shown to viewers whose stream is stopped.
const DefaultKillMessage = "Stream is being killed by admin."

// Remote is the subset of the Plex client used for share management.
type Remote interface {
	Users(ctx context.Context) ([]plex.User, error)
	ServerSectionIDs(ctx context.Context, machineID string) (map[string]int64, error)
	SharedSections(ctx context.Context, machineID string, sharedServerID int64) ([]plex.SharedSection, error)
	ShareSections(ctx context.Context, machineID string, sharedServerID, userID int64, sectionIDs []int64) error
	RemoveSharedServer(ctx context.Context, machineID string, sharedServerID int64) error
	UpdateFriendSettings(ctx context.Context, userID int64, settings plex.FriendSettings) error
	Sessions(ctx context.Context) ([]plex.Session, error)
	StopSession(ctx context.Context, sessionID, reason string) error
}

// RecordRenderer prints one user's current share settings.
type RecordRenderer func(w io.Writer, user string, rec Record) error

// Options configures a Manager.
type Options struct {
	Server      plex.ServerIdentity
	Out         io.Writer
	Logger      *slog.Logger
	BackupDir   string
	KillMessage string
	KillGrace   time.Duration
	Renderer    RecordRenderer
	Now         func() time.Time
	Sleep       func(context.Context, time.Duration) error
}

// Manager runs share operations against one server and prints what it did.
type Manager struct {
	remote      Remote
	server      plex.ServerIdentity
	out         io.Writer
	logger      *slog.Logger
	backupDir   string
	killMessage string
	killGrace   time.Duration
	render      RecordRenderer
	now         func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// NewManager constructs a Manager.
func NewManager(remote Remote, opts Options) *Manager {
	m := &Manager{
		remote:      remote,
		server:      opts.Server,
		out:         opts.Out,
		logger:      opts.Logger,
		backupDir:   opts.BackupDir,
		killMessage: strings.TrimSpace(opts.KillMessage),
		killGrace:   opts.KillGrace,
		render:      opts.Renderer,
		now:         opts.Now,
		sleep:       opts.Sleep,
	}
	if m.out == nil {
		m.out = os.Stdout
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	if m.backupDir == "" {
		m.backupDir = "."
	}
	if m.killMessage == "" {
		m.killMessage = DefaultKillMessage
	}
	if m.render == nil {
		m.render = WriteRecordJSON
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.sleep == nil {
		m.sleep = sleepContext
	}
	return m
}

// Plan is one invocation of the share manager: the resolved users and
// libraries plus the requested actions.
type Plan struct {
	Users []string
	// Libraries is the resolved library selection; empty means none requested.
	Libraries []string

	Share   bool
	Add     bool
	Remove  bool
	Shared  bool
	Unshare bool
	Kill    bool

	// KillMessage overrides the configured message when set.
	KillMessage string
	// Request carries the permission flags and filters; its Sections are
	// ignored in favour of Libraries.
	Request ShareRequest

	Backup      bool
	RestorePath string
}

// Apply runs the plan user by user in the order given, then the backup and
// restore steps. The first failure stops the run.
func (m *Manager) Apply(ctx context.Context, plan Plan) error {
	settings := plan.Request
	settings.Sections = nil

	for _, name := range plan.Users {
		userCtx := services.WithUser(ctx, name)
		logger := logging.WithContext(userCtx, m.logger)

		user, err := m.lookupUser(userCtx, name)
		if err != nil {
			return err
		}
		current, err := m.snapshot(userCtx, user)
		if err != nil {
			return fmt.Errorf("read shares of %s: %w", name, err)
		}
		logger.Debug("current shares", logging.Strings("sections", current.Sections))

		if len(plan.Libraries) > 0 {
			if plan.Share {
				req := settings
				req.Sections = append([]string(nil), plan.Libraries...)
				if err := m.share(userCtx, user, req); err != nil {
					return err
				}
			}
			if plan.Add {
				if err := m.add(userCtx, user, current.Sections, plan.Libraries, settings); err != nil {
					return err
				}
			}
			if plan.Remove {
				if err := m.remove(userCtx, user, current.Sections, plan.Libraries, settings); err != nil {
					return err
				}
			}
		} else {
			if plan.Share {
				logger.Warn("share requested without libraries; nothing to share")
			}
			if plan.Add {
				if err := m.add(userCtx, user, current.Sections, nil, settings); err != nil {
					return err
				}
			}
			if plan.Remove {
				if err := m.remove(userCtx, user, current.Sections, nil, settings); err != nil {
					return err
				}
			}
		}

		if plan.Shared {
			if err := m.render(m.out, name, current); err != nil {
				return err
			}
		}

		switch {
		case plan.Unshare && plan.Kill:
			if err := m.Kill(userCtx, name, plan.KillMessage); err != nil {
				return err
			}
			if err := m.sleep(userCtx, m.killGrace); err != nil {
				return err
			}
			if err := m.unshare(userCtx, user); err != nil {
				return err
			}
		case plan.Unshare:
			if err := m.unshare(userCtx, user); err != nil {
				return err
			}
		case plan.Kill:
			if err := m.Kill(userCtx, name, plan.KillMessage); err != nil {
				return err
			}
		}
	}

	if plan.Backup {
		if _, err := m.Backup(ctx, plan.Users); err != nil {
			return err
		}
	}
	if strings.TrimSpace(plan.RestorePath) != "" {
		if err := m.Restore(ctx, plan.RestorePath, plan.Users); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) lookupUser(ctx context.Context, name string) (plex.User, error) {
	users, err := m.remote.Users(ctx)
	if err != nil {
		return plex.User{}, fmt.Errorf("list users: %w", err)
	}
	for _, user := range users {
		if user.Title == name {
			return user, nil
		}
	}
	return plex.User{}, services.Wrap(services.ErrNotFound, "shares", "lookup user", fmt.Sprintf("user %q is not a friend or home user", name), nil)
}

func (m *Manager) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
