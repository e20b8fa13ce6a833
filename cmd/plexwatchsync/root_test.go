package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"plexadmin/internal/cli"
	"plexadmin/internal/services"
	"plexadmin/internal/testsupport"
)

func setupSyncEnv(t *testing.T) (*testsupport.FakePlex, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	fake := testsupport.NewFakePlex(t)
	fake.Grants[77] = []string{"Movies"}
	carol := testsupport.FakeUser{ID: 6}.Token()
	fake.Items = []testsupport.FakeItem{
		{RatingKey: "100", SectionKey: "1", Type: "movie", Title: "Title A", WatchedBy: map[string]bool{carol: true, testsupport.OwnerToken: true}},
		{RatingKey: "101", SectionKey: "1", Type: "movie", Title: "Title Unseen"},
		{RatingKey: "200", SectionKey: "2", Type: "show", Title: "Series B"},
		{RatingKey: "201", SectionKey: "2", Type: "episode", Title: "S01E01", ShowKey: "200", WatchedBy: map[string]bool{carol: true}},
		{RatingKey: "202", SectionKey: "2", Type: "episode", Title: "S01E02", ShowKey: "200"},
	}
	cfg := testsupport.NewConfig(t, testsupport.WithPlex(fake))
	return fake, testsupport.WriteConfig(t, cfg)
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(cli.ExpandArgs(append([]string{"--config", configPath}, args...), argSpec))
	err := cmd.Execute()
	return stdout.String(), err
}

func TestSyncLibrariesToAnotherUser(t *testing.T) {
	fake, configPath := setupSyncEnv(t)
	fake.Grants[77] = []string{"Movies", "TV Shows"}
	fake.Items[0].WatchedBy = map[string]bool{"token-6": true}

	out, err := runCLI(t, configPath, "--userFrom", "carol", "--userTo", "bob", "--libraries", "Movies", "TV Shows")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	want := "Checking library: Movies\n" +
		"Synced watch status of Title A to bob's account.\n" +
		"Checking library: TV Shows\n" +
		"Synced watch status of Series B - S01E01 to bob's account.\n"
	if out != want {
		t.Fatalf("output mismatch\n got: %q\nwant: %q", out, want)
	}
	for _, key := range []string{"100", "201"} {
		if !fake.WatchedBy(key, "token-5") {
			t.Fatalf("item %s should be watched for bob", key)
		}
	}
	if fake.WatchedBy("202", "token-5") || fake.WatchedBy("101", "token-5") {
		t.Fatal("unwatched items must not be marked")
	}
	for _, call := range fake.Calls() {
		if strings.HasPrefix(call.Path, "/library/sections/3") {
			t.Fatalf("unrequested library was read: %s", call.Path)
		}
	}
}

func TestSyncReportsUnsharedLibraryAndContinues(t *testing.T) {
	fake, configPath := setupSyncEnv(t)

	out, err := runCLI(t, configPath, "--userFrom", "carol", "--userTo", "bob", "--libraries", "TV Shows", "Music", "Movies")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	want := "Checking library: TV Shows\n" +
		"Library (TV Shows) not shared to user: bob.\n" +
		"Checking library: Music\n" +
		"Library (Music) does not have a watch status.\n" +
		"Checking library: Movies\n" +
		"Synced watch status of Title A to bob's account.\n"
	if out != want {
		t.Fatalf("output mismatch\n got: %q\nwant: %q", out, want)
	}
	if !fake.WatchedBy("100", "token-5") {
		t.Fatal("Movies should still be synced")
	}
}

func TestSyncFromUserWithoutLibrary(t *testing.T) {
	_, configPath := setupSyncEnv(t)

	out, err := runCLI(t, configPath, "--userFrom", "bob", "--userTo", "carol", "--libraries", "TV Shows")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if out != "Checking library: TV Shows\nLibrary (TV Shows) not shared to user: bob.\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSyncFromOwnerWithAllLibrariesExcluding(t *testing.T) {
	fake, configPath := setupSyncEnv(t)
	delete(fake.Items[0].WatchedBy, "token-6")

	out, err := runCLI(t, configPath, "--userFrom", "Admin", "--userTo", "carol", "--allLibraries", "--libraries", "TV Shows", "Music")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if out != "Checking library: Movies\nSynced watch status of Title A to carol's account.\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if !fake.WatchedBy("100", "token-6") {
		t.Fatal("carol should have Title A watched")
	}
}

func TestSyncRatingKey(t *testing.T) {
	fake, configPath := setupSyncEnv(t)

	out, err := runCLI(t, configPath, "--userFrom", "carol", "--userTo", "bob", "Admin", "--ratingKey", "100")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	want := "Syncing watch status of Title A to bob's account.\nSyncing watch status of Title A to Admin's account.\n"
	if out != want {
		t.Fatalf("unexpected output %q", out)
	}
	if !fake.WatchedBy("100", "token-5") {
		t.Fatal("bob should have Title A watched")
	}
}

func TestSyncWithoutLibrariesOrRatingKey(t *testing.T) {
	_, configPath := setupSyncEnv(t)

	out, err := runCLI(t, configPath, "--userFrom", "carol", "--userTo", "bob")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if out != "No libraries or rating key provided.\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestSyncRejectsUnknownUser(t *testing.T) {
	fake, configPath := setupSyncEnv(t)

	_, err := runCLI(t, configPath, "--userFrom", "carol", "--userTo", "mallory", "--ratingKey", "100")
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "--userTo") {
		t.Fatalf("expected invalid --userTo, got %v", err)
	}
	for _, call := range fake.Calls() {
		if call.Path == "/:/scrobble" {
			t.Fatal("nothing should be marked after a validation failure")
		}
	}
}

func TestSyncRequiresUserFlags(t *testing.T) {
	_, configPath := setupSyncEnv(t)

	if _, err := runCLI(t, configPath, "--libraries", "Movies"); err == nil {
		t.Fatal("expected missing --userFrom/--userTo to fail")
	}
}
