package shares_test

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"plexadmin/internal/services/plex"
	"plexadmin/internal/shares"
)

const machineID = "machine-1"

type shareCall struct {
	shareID    int64
	userID     int64
	sectionIDs []int64
}

type settingsCall struct {
	userID   int64
	settings plex.FriendSettings
}

type fakeRemote struct {
	users      []plex.User
	sectionIDs map[string]int64
	grants     map[int64][]string
	sessions   []plex.Session
	stopErr    error

	shareCalls    []shareCall
	removed       []int64
	settingsCalls []settingsCall
	stopped       []string
	events        []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		users: []plex.User{
			{
				ID: 5, Title: "bob", Username: "bobby", Email: "bob@example.com",
				AllowSync: true, FilterMovies: "label=kids",
				Servers: []plex.UserServer{{ID: 77, MachineIdentifier: machineID, Name: "Den"}},
			},
			{
				ID: 6, Title: "carol", Username: "carol", Email: "carol@example.com",
				AllowChannels: true, FilterTelevision: "contentRating=TV-Y%2CTV-G",
				Servers: []plex.UserServer{
					{ID: 80, MachineIdentifier: "other-machine", Name: "Elsewhere"},
					{ID: 78, MachineIdentifier: machineID, Name: "Den"},
				},
			},
			{ID: 7, Title: "dave", Username: "dave"},
		},
		sectionIDs: map[string]int64{"Movies": 101, "TV Shows": 102, "Music": 103},
		grants: map[int64][]string{
			77: {"Movies"},
			78: {"Movies", "TV Shows"},
		},
	}
}

func (f *fakeRemote) Users(context.Context) ([]plex.User, error) {
	return f.users, nil
}

func (f *fakeRemote) ServerSectionIDs(_ context.Context, machine string) (map[string]int64, error) {
	if machine != machineID {
		return nil, nil
	}
	return f.sectionIDs, nil
}

func (f *fakeRemote) SharedSections(_ context.Context, _ string, shareID int64) ([]plex.SharedSection, error) {
	granted := f.grants[shareID]
	var out []plex.SharedSection
	for _, title := range []string{"Movies", "TV Shows", "Music"} {
		shared := false
		for _, g := range granted {
			if g == title {
				shared = true
			}
		}
		out = append(out, plex.SharedSection{ID: f.sectionIDs[title], Title: title, Shared: shared})
	}
	return out, nil
}

func (f *fakeRemote) ShareSections(_ context.Context, _ string, shareID, userID int64, sectionIDs []int64) error {
	f.shareCalls = append(f.shareCalls, shareCall{shareID: shareID, userID: userID, sectionIDs: append([]int64(nil), sectionIDs...)})
	f.events = append(f.events, "share")
	return nil
}

func (f *fakeRemote) RemoveSharedServer(_ context.Context, _ string, shareID int64) error {
	f.removed = append(f.removed, shareID)
	f.events = append(f.events, "unshare")
	return nil
}

func (f *fakeRemote) UpdateFriendSettings(_ context.Context, userID int64, settings plex.FriendSettings) error {
	if !settings.Empty() {
		f.settingsCalls = append(f.settingsCalls, settingsCall{userID: userID, settings: settings})
	}
	return nil
}

func (f *fakeRemote) Sessions(context.Context) ([]plex.Session, error) {
	return f.sessions, nil
}

func (f *fakeRemote) StopSession(_ context.Context, id, reason string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	f.stopped = append(f.stopped, id+":"+reason)
	f.events = append(f.events, "kill")
	return nil
}

func newManager(t *testing.T, remote *fakeRemote, opts shares.Options) (*shares.Manager, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts.Server = plex.ServerIdentity{FriendlyName: "Den", MachineIdentifier: machineID}
	opts.Out = &out
	if opts.BackupDir == "" {
		opts.BackupDir = t.TempDir()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 6, 0, time.Local) }
	}
	if opts.Sleep == nil {
		opts.Sleep = func(context.Context, time.Duration) error {
			remote.events = append(remote.events, "sleep")
			return nil
		}
	}
	return shares.NewManager(remote, opts), &out
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func boolPtr(v bool) *bool {
	return &v
}
