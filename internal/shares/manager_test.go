package shares_test

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"plexadmin/internal/services"
	"plexadmin/internal/services/plex"
	"plexadmin/internal/shares"
)

func TestApplyKillsBeforeUnsharing(t *testing.T) {
	remote := newFakeRemote()
	remote.sessions = []plex.Session{{ID: "s1", Type: "movie", Title: "Title A", Usernames: []string{"bob"}}}
	manager, out := newManager(t, remote, shares.Options{})

	err := manager.Apply(context.Background(), shares.Plan{
		Users:       []string{"bob"},
		Unshare:     true,
		Kill:        true,
		KillMessage: "Bye",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(remote.events, []string{"kill", "sleep", "unshare"}) {
		t.Fatalf("unexpected event order %v", remote.events)
	}
	if !reflect.DeepEqual(remote.stopped, []string{"s1:Bye"}) {
		t.Fatalf("unexpected stops %v", remote.stopped)
	}
	if !strings.HasSuffix(out.String(), "Unshared all libraries from bob.\n") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestApplyKillAloneDoesNotUnshare(t *testing.T) {
	remote := newFakeRemote()
	remote.sessions = []plex.Session{{ID: "s1", Type: "movie", Title: "Title A", Usernames: []string{"bob"}}}
	manager, _ := newManager(t, remote, shares.Options{})

	if err := manager.Apply(context.Background(), shares.Plan{Users: []string{"bob"}, Kill: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(remote.events, []string{"kill"}) {
		t.Fatalf("unexpected events %v", remote.events)
	}
}

func TestApplyShareWithoutLibrariesIsNoop(t *testing.T) {
	remote := newFakeRemote()
	manager, out := newManager(t, remote, shares.Options{})

	if err := manager.Apply(context.Background(), shares.Plan{Users: []string{"bob", "carol"}, Share: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(remote.events) != 0 || len(remote.settingsCalls) != 0 || out.Len() != 0 {
		t.Fatalf("expected nothing to happen, events=%v output=%q", remote.events, out.String())
	}
}

func TestApplyAppliesSameLibrariesToEveryUser(t *testing.T) {
	remote := newFakeRemote()
	manager, _ := newManager(t, remote, shares.Options{})

	err := manager.Apply(context.Background(), shares.Plan{
		Users:     []string{"bob", "dave"},
		Libraries: []string{"Music"},
		Share:     true,
		Request:   shares.ShareRequest{AllowSync: boolPtr(false)},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(remote.shareCalls) != 2 {
		t.Fatalf("expected two share calls, got %#v", remote.shareCalls)
	}
	for _, call := range remote.shareCalls {
		if !reflect.DeepEqual(call.sectionIDs, []int64{103}) {
			t.Fatalf("expected only Music for user %d, got %v", call.userID, call.sectionIDs)
		}
	}
	if len(remote.settingsCalls) != 2 {
		t.Fatalf("expected settings for both users, got %#v", remote.settingsCalls)
	}
}

func TestApplyStopsOnUnknownUser(t *testing.T) {
	remote := newFakeRemote()
	manager, _ := newManager(t, remote, shares.Options{})

	err := manager.Apply(context.Background(), shares.Plan{Users: []string{"mallory", "bob"}, Unshare: true})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(remote.removed) != 0 {
		t.Fatalf("later users must not be processed, got %v", remote.removed)
	}
}

func TestApplySharedPrintsCurrentSettings(t *testing.T) {
	remote := newFakeRemote()
	manager, out := newManager(t, remote, shares.Options{})

	if err := manager.Apply(context.Background(), shares.Plan{Users: []string{"bob"}, Shared: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	text := out.String()
	if !strings.HasPrefix(text, "Current share settings for bob: {\n    \"allowSync\": true,") {
		t.Fatalf("unexpected output %q", text)
	}
	keys := []string{"allowSync", "camera", "channels", "email", "filterMovies", "filterMusic", "filterTelevision", "sections", "serverName", "title", "userID", "username"}
	last := -1
	for _, key := range keys {
		idx := strings.Index(text, `"`+key+`"`)
		if idx <= last {
			t.Fatalf("key %s missing or out of order in %q", key, text)
		}
		last = idx
	}
	for _, fragment := range []string{`"Movies"`, `"kids"`, `"serverName": "Den"`, `"userID": 5`, `"username": "bobby"`} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %s in %q", fragment, text)
		}
	}
}

func TestApplyUsesCustomRenderer(t *testing.T) {
	remote := newFakeRemote()
	var rendered []shares.Record
	manager, _ := newManager(t, remote, shares.Options{
		Renderer: func(_ io.Writer, _ string, rec shares.Record) error {
			rendered = append(rendered, rec)
			return nil
		},
	})

	if err := manager.Apply(context.Background(), shares.Plan{Users: []string{"carol", "dave"}, Shared: true}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(rendered) != 2 {
		t.Fatalf("expected two records, got %d", len(rendered))
	}
	if !reflect.DeepEqual([]string(rendered[0].Sections), []string{"Movies", "TV Shows"}) {
		t.Fatalf("carol should see only this server's grant, got %v", rendered[0].Sections)
	}
	if rendered[1].Sections == nil || len(rendered[1].Sections) != 0 {
		t.Fatalf("dave should have an empty section list, got %#v", rendered[1].Sections)
	}
}
