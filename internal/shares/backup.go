package shares

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"plexadmin/internal/logging"
	"plexadmin/internal/selection"
	"plexadmin/internal/services"
)

const (
	backupMarker     = "_Plex_share_backup_"
	backupTimeLayout = "20060102-150405"
	backupExt        = ".json"
)

// BackupFileName returns the file name for a backup taken at t.
func BackupFileName(serverName string, t time.Time) string {
	return fileSafe(serverName) + backupMarker + t.Format(backupTimeLayout) + backupExt
}

// Backup snapshots each named user, or every user when names is empty, and
// writes the records to a timestamped JSON file in the backup directory. A
// failed snapshot aborts the backup before anything is written.
func (m *Manager) Backup(ctx context.Context, names []string) (string, error) {
	m.printf("Backing up share information...\n")

	users, err := m.remote.Users(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	records := make([]Record, 0, len(users))
	for _, user := range users {
		if strings.TrimSpace(user.Title) == "" {
			continue
		}
		if len(names) > 0 && !selection.Contains(names, user.Title) {
			continue
		}
		rec, err := m.snapshot(services.WithUser(ctx, user.Title), user)
		if err != nil {
			return "", fmt.Errorf("back up shares of %s: %w", user.Title, err)
		}
		records = append(records, rec)
	}
	if len(names) > 0 && len(records) != len(names) {
		for _, name := range names {
			if !containsTitle(records, name) {
				return "", services.Wrap(services.ErrNotFound, "shares", "backup", fmt.Sprintf("user %q is not a friend or home user", name), nil)
			}
		}
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode backup: %w", err)
	}
	path := filepath.Join(m.backupDir, BackupFileName(m.server.FriendlyName, m.now()))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	m.logger.Info("backup written",
		logging.String("path", path),
		logging.Int("users", len(records)),
	)
	return path, nil
}

// Restore replays the records of a backup file through Share. With names, only
// records whose title is listed are restored. Friend membership is not
// restored; users must already exist.
func (m *Manager) Restore(ctx context.Context, path string, names []string) error {
	m.printf("Using existing .json to restore Plex shares.\n")

	records, err := ReadBackup(path)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if len(names) > 0 && !selection.Contains(names, rec.Title) {
			continue
		}
		m.printf("Restoring user %s's shares and settings...\n", rec.Title)
		if err := m.Share(services.WithUser(ctx, rec.Title), rec.Title, rec.ShareRequest()); err != nil {
			return err
		}
	}
	return nil
}

// ReadBackup decodes a backup file.
func ReadBackup(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, services.Wrap(services.ErrValidation, "shares", "read backup", filepath.Base(path), err)
	}
	return records, nil
}

// BackupCandidates lists the backup files for a server in dir, oldest first.
func BackupCandidates(dir, serverName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	prefix := fileSafe(serverName)
	type candidate struct {
		name    string
		modTime time.Time
	}
	var found []candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat backup %s: %w", name, err)
		}
		found = append(found, candidate{name: name, modTime: info.ModTime()})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].modTime.Equal(found[j].modTime) {
			return found[i].name < found[j].name
		}
		return found[i].modTime.Before(found[j].modTime)
	})
	names := make([]string, len(found))
	for i, c := range found {
		names[i] = c.name
	}
	return names, nil
}

func containsTitle(records []Record, title string) bool {
	for _, rec := range records {
		if rec.Title == title {
			return true
		}
	}
	return false
}

func fileSafe(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}
