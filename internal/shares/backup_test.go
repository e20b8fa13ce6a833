package shares_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"plexadmin/internal/services"
	"plexadmin/internal/shares"
)

func TestBackupFileName(t *testing.T) {
	when := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	if got := shares.BackupFileName("Den", when); got != "Den_Plex_share_backup_20240309-140506.json" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := shares.BackupFileName("a/b\\c", when); got != "a_b_c_Plex_share_backup_20240309-140506.json" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestBackupThenRestoreReplaysGrants(t *testing.T) {
	dir := t.TempDir()
	remote := newFakeRemote()
	manager, out := newManager(t, remote, shares.Options{BackupDir: dir})

	path, err := manager.Backup(context.Background(), nil)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if filepath.Base(path) != "Den_Plex_share_backup_20240309-140506.json" {
		t.Fatalf("unexpected backup path %s", path)
	}
	if out.String() != "Backing up share information...\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	records, err := shares.ReadBackup(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected three records, got %d", len(records))
	}
	if records[0].Title != "bob" || !reflect.DeepEqual([]string(records[0].Sections), []string{"Movies"}) {
		t.Fatalf("unexpected bob record %#v", records[0])
	}

	restored := newFakeRemote()
	restorer, restoreOut := newManager(t, restored, shares.Options{BackupDir: dir})
	if err := restorer.Restore(context.Background(), path, nil); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if len(restored.shareCalls) != 2 {
		t.Fatalf("expected bob and carol re-shared, got %#v", restored.shareCalls)
	}
	if call := restored.shareCalls[0]; call.shareID != 77 || !reflect.DeepEqual(call.sectionIDs, []int64{101}) {
		t.Fatalf("unexpected bob restore %#v", call)
	}
	if call := restored.shareCalls[1]; call.shareID != 78 || !reflect.DeepEqual(call.sectionIDs, []int64{101, 102}) {
		t.Fatalf("unexpected carol restore %#v", call)
	}
	if len(restored.removed) != 0 {
		t.Fatalf("dave has nothing to remove, got %v", restored.removed)
	}
	if len(restored.settingsCalls) != 3 {
		t.Fatalf("expected settings for every record, got %d", len(restored.settingsCalls))
	}
	bob := restored.settingsCalls[0].settings
	if !*bob.AllowSync || *bob.AllowChannels || *bob.FilterMovies != "label=kids" || *bob.FilterTelevision != "" {
		t.Fatalf("unexpected bob settings %#v", bob)
	}
	carol := restored.settingsCalls[1].settings
	if *carol.FilterTelevision != "contentRating=TV-Y%2CTV-G" || !*carol.AllowChannels {
		t.Fatalf("unexpected carol settings %#v", carol)
	}

	text := restoreOut.String()
	if !strings.HasPrefix(text, "Using existing .json to restore Plex shares.\nRestoring user bob's shares and settings...\n") {
		t.Fatalf("unexpected restore output %q", text)
	}
}

func TestBackupSelectedUsers(t *testing.T) {
	remote := newFakeRemote()
	manager, _ := newManager(t, remote, shares.Options{})

	path, err := manager.Backup(context.Background(), []string{"carol"})
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	records, err := shares.ReadBackup(path)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(records) != 1 || records[0].Title != "carol" {
		t.Fatalf("unexpected records %#v", records)
	}

	if _, err := manager.Backup(context.Background(), []string{"carol", "mallory"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestRestoreLegacyBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Den_Plex_share_backup_20200101-000000.json")
	legacy := `[{"title": "bob", "username": "bobby", "email": "", "userID": 5,
		"allowSync": false, "camera": false, "channels": true,
		"filterMovies": "", "filterTelevision": "", "filterMusic": "",
		"serverName": "Den", "sections": ""},
		{"title": "carol", "sections": ["TV Shows"]}]`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy backup: %v", err)
	}

	remote := newFakeRemote()
	manager, _ := newManager(t, remote, shares.Options{})
	if err := manager.Restore(context.Background(), path, []string{"bob"}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(remote.shareCalls) != 0 || len(remote.removed) != 0 {
		t.Fatalf("legacy empty sections must leave grants alone, got shares=%v removed=%v", remote.shareCalls, remote.removed)
	}
	if len(remote.settingsCalls) != 1 {
		t.Fatalf("expected one settings update, got %#v", remote.settingsCalls)
	}
	settings := remote.settingsCalls[0].settings
	if *settings.AllowSync || !*settings.AllowChannels || *settings.FilterMovies != "" {
		t.Fatalf("unexpected settings %#v", settings)
	}
}

func TestReadBackupRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := shares.ReadBackup(path); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBackupCandidatesOldestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := map[string]time.Time{
		"Den_Plex_share_backup_20240103-000000.json": base.Add(2 * time.Hour),
		"Den_Plex_share_backup_20240101-000000.json": base,
		"Den_Plex_share_backup_20240102-000000.json": base.Add(time.Hour),
		"Attic_Plex_share_backup_20240101-000000.json": base,
		"Den_notes.txt": base,
	}
	for name, mod := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}

	got, err := shares.BackupCandidates(dir, "Den")
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	want := []string{
		"Den_Plex_share_backup_20240101-000000.json",
		"Den_Plex_share_backup_20240102-000000.json",
		"Den_Plex_share_backup_20240103-000000.json",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected candidates %v", got)
	}
}
