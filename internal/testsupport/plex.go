package testsupport

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
)

// OwnerToken is the account token the fake server accepts for the owner.
const OwnerToken = "owner-token"

// FakeUser is a friend or home user of the fake server.
type FakeUser struct {
	ID               int64
	Title            string
	Username         string
	Email            string
	AllowSync        bool
	AllowCamera      bool
	AllowChannels    bool
	FilterMovies     string
	FilterTelevision string
	FilterMusic      string
	// ShareID is the user's grant on the server; zero means no grant.
	ShareID int64
}

// Token returns the server access token the fake issues to the user.
func (u FakeUser) Token() string {
	return "token-" + strconv.FormatInt(u.ID, 10)
}

// FakeSection is a library of the fake server.
type FakeSection struct {
	ID      int64
	Key     string
	Title   string
	Type    string
	Ratings []string
}

// FakeItem is a movie, show or episode.
type FakeItem struct {
	RatingKey  string
	SectionKey string
	Type       string
	Title      string
	// ShowKey links an episode to its show.
	ShowKey string
	// WatchedBy holds the tokens of accounts that have watched the item.
	WatchedBy map[string]bool
}

// FakeSession is an active playback session.
type FakeSession struct {
	ID               string
	User             string
	Type             string
	Title            string
	GrandparentTitle string
}

// Call is one request received by the fake.
type Call struct {
	Method string
	Path   string
	Query  string
	Body   string
	Token  string
}

// FakePlex serves the subset of the media server and plex.tv APIs the tools
// use, backed by in-memory state.
type FakePlex struct {
	FriendlyName string
	MachineID    string
	OwnerTitle   string
	PlexPass     bool

	Users    []FakeUser
	Sections []FakeSection
	// Grants maps a share id to the titles of the libraries it grants.
	Grants   map[int64][]string
	Items    []FakeItem
	Sessions []FakeSession

	server *httptest.Server
	mu     sync.Mutex
	calls  []Call
}

// NewFakePlex starts a fake server with a small default library and
// registers its shutdown with t.
func NewFakePlex(t testing.TB) *FakePlex {
	t.Helper()

	fake := &FakePlex{
		FriendlyName: "Den",
		MachineID:    "machine-1",
		OwnerTitle:   "Admin",
		PlexPass:     true,
		Users: []FakeUser{
			{ID: 5, Title: "bob", Username: "bobby", Email: "bob@example.com", AllowSync: true, FilterMovies: "label=kids", ShareID: 77},
			{ID: 6, Title: "carol", Username: "carol", Email: "carol@example.com", ShareID: 78},
			{ID: 7, Title: "dave", Username: "dave"},
		},
		Sections: []FakeSection{
			{ID: 101, Key: "1", Title: "Movies", Type: "movie", Ratings: []string{"G", "PG"}},
			{ID: 102, Key: "2", Title: "TV Shows", Type: "show", Ratings: []string{"TV-Y", "TV-PG"}},
			{ID: 103, Key: "3", Title: "Music", Type: "artist"},
		},
		Grants: map[int64][]string{
			77: {"Movies"},
			78: {"Movies", "TV Shows", "Music"},
		},
	}
	fake.server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.server.Close)
	return fake
}

// URL returns the base URL of the fake.
func (f *FakePlex) URL() string {
	return f.server.URL
}

// Calls returns the requests received so far.
func (f *FakePlex) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the requests with the given method and path.
func (f *FakePlex) CallsTo(method, path string) []Call {
	var out []Call
	for _, call := range f.Calls() {
		if call.Method == method && call.Path == path {
			out = append(out, call)
		}
	}
	return out
}

// User returns the current state of a user.
func (f *FakePlex) User(title string) (FakeUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.Users {
		if u.Title == title {
			return u, true
		}
	}
	return FakeUser{}, false
}

// Granted returns the library titles granted by a share.
func (f *FakePlex) Granted(shareID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Grants[shareID]...)
}

// WatchedBy reports whether the account behind token has watched an item.
func (f *FakePlex) WatchedBy(ratingKey, token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.Items {
		if item.RatingKey == ratingKey {
			return item.WatchedBy[token]
		}
	}
	return false
}

func (f *FakePlex) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	token := r.Header.Get("X-Plex-Token")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body), Token: token})

	if !f.knownToken(token) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	segments := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case path == "/":
		fmt.Fprintf(w, `<MediaContainer friendlyName=%s machineIdentifier=%s version="1.40.0" myPlexUsername=%s myPlexSubscription=%s/>`,
			attr(f.FriendlyName), attr(f.MachineID), attr(f.OwnerTitle), attr(boolAttr(f.PlexPass)))
	case path == "/api/v2/user":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           1,
			"username":     strings.ToLower(f.OwnerTitle),
			"title":        f.OwnerTitle,
			"subscription": map[string]any{"active": f.PlexPass},
		})
	case path == "/api/users":
		f.writeUsers(w)
	case path == "/library/sections":
		f.writeSections(w, token)
	case len(segments) == 4 && segments[0] == "library" && segments[1] == "sections" && segments[3] == "contentRating":
		f.writeRatings(w, segments[2])
	case len(segments) == 4 && segments[0] == "library" && segments[1] == "sections" && segments[3] == "all":
		f.writeWatched(w, segments[2], token)
	case len(segments) == 4 && segments[0] == "library" && segments[1] == "metadata" && segments[3] == "allLeaves":
		f.writeEpisodes(w, segments[2], token)
	case len(segments) == 3 && segments[0] == "library" && segments[1] == "metadata":
		f.writeItem(w, segments[2], token)
	case path == "/:/scrobble":
		f.scrobble(w, r.URL.Query().Get("key"), token)
	case path == "/status/sessions":
		f.writeSessions(w)
	case path == "/status/sessions/terminate":
		f.terminate(r.URL.Query().Get("sessionId"))
	case path == "/api/servers/"+f.MachineID:
		f.writeServerSections(w)
	case path == "/api/servers/"+f.MachineID+"/shared_servers":
		if r.Method == http.MethodPost {
			f.createShare(w, body)
			return
		}
		f.writeSharedServers(w)
	case strings.HasPrefix(path, "/api/servers/"+f.MachineID+"/shared_servers/"):
		id, _ := strconv.ParseInt(segments[len(segments)-1], 10, 64)
		switch r.Method {
		case http.MethodGet:
			f.writeSharedSections(w, id)
		case http.MethodPut:
			f.updateShare(w, id, body)
		case http.MethodDelete:
			f.deleteShare(id)
		}
	case len(segments) == 3 && segments[0] == "api" && segments[1] == "friends":
		id, _ := strconv.ParseInt(segments[2], 10, 64)
		f.updateFriend(w, id, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakePlex) knownToken(token string) bool {
	if token == OwnerToken {
		return true
	}
	_, ok := f.userByToken(token)
	return ok
}

func (f *FakePlex) userByToken(token string) (FakeUser, bool) {
	for _, u := range f.Users {
		if u.ShareID > 0 && u.Token() == token {
			return u, true
		}
	}
	return FakeUser{}, false
}

// visibleSections returns the section keys the account behind token can see.
func (f *FakePlex) visibleSections(token string) map[string]bool {
	visible := make(map[string]bool)
	if token == OwnerToken {
		for _, s := range f.Sections {
			visible[s.Key] = true
		}
		return visible
	}
	user, ok := f.userByToken(token)
	if !ok {
		return visible
	}
	for _, title := range f.Grants[user.ShareID] {
		for _, s := range f.Sections {
			if s.Title == title {
				visible[s.Key] = true
			}
		}
	}
	return visible
}

func (f *FakePlex) writeUsers(w io.Writer) {
	fmt.Fprint(w, "<MediaContainer>")
	for _, u := range f.Users {
		fmt.Fprintf(w, `<User id="%d" title=%s username=%s email=%s allowSync=%s allowCameraUpload=%s allowChannels=%s filterMovies=%s filterTelevision=%s filterMusic=%s>`,
			u.ID, attr(u.Title), attr(u.Username), attr(u.Email),
			attr(boolAttr(u.AllowSync)), attr(boolAttr(u.AllowCamera)), attr(boolAttr(u.AllowChannels)),
			attr(u.FilterMovies), attr(u.FilterTelevision), attr(u.FilterMusic))
		if u.ShareID > 0 {
			fmt.Fprintf(w, `<Server id="%d" machineIdentifier=%s name=%s numLibraries="%d"/>`,
				u.ShareID, attr(f.MachineID), attr(f.FriendlyName), len(f.Grants[u.ShareID]))
		}
		fmt.Fprint(w, "</User>")
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) writeSections(w io.Writer, token string) {
	visible := f.visibleSections(token)
	fmt.Fprint(w, "<MediaContainer>")
	for _, s := range f.Sections {
		if visible[s.Key] {
			fmt.Fprintf(w, `<Directory key=%s title=%s type=%s/>`, attr(s.Key), attr(s.Title), attr(s.Type))
		}
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) writeRatings(w io.Writer, key string) {
	fmt.Fprint(w, "<MediaContainer>")
	for _, s := range f.Sections {
		if s.Key != key {
			continue
		}
		for _, rating := range s.Ratings {
			fmt.Fprintf(w, `<Directory key=%s title=%s/>`, attr(rating), attr(rating))
		}
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) writeWatched(w http.ResponseWriter, key, token string) {
	if !f.visibleSections(token)[key] {
		http.NotFound(w, nil)
		return
	}
	fmt.Fprint(w, "<MediaContainer>")
	for _, item := range f.Items {
		if item.SectionKey != key {
			continue
		}
		switch item.Type {
		case "movie":
			if item.WatchedBy[token] {
				fmt.Fprintf(w, `<Video ratingKey=%s key=%s type="movie" title=%s viewCount="1"/>`,
					attr(item.RatingKey), attr("/library/metadata/"+item.RatingKey), attr(item.Title))
			}
		case "show":
			if f.anyEpisodeWatched(item.RatingKey, token) {
				fmt.Fprintf(w, `<Directory ratingKey=%s key=%s type="show" title=%s/>`,
					attr(item.RatingKey), attr("/library/metadata/"+item.RatingKey+"/children"), attr(item.Title))
			}
		}
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) anyEpisodeWatched(showKey, token string) bool {
	for _, item := range f.Items {
		if item.ShowKey == showKey && item.WatchedBy[token] {
			return true
		}
	}
	return false
}

func (f *FakePlex) writeEpisodes(w io.Writer, showKey, token string) {
	show, _ := f.item(showKey)
	fmt.Fprint(w, "<MediaContainer>")
	for _, item := range f.Items {
		if item.ShowKey != showKey {
			continue
		}
		views := 0
		if item.WatchedBy[token] {
			views = 1
		}
		fmt.Fprintf(w, `<Video ratingKey=%s type="episode" title=%s grandparentTitle=%s viewCount="%d"/>`,
			attr(item.RatingKey), attr(item.Title), attr(show.Title), views)
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) writeItem(w http.ResponseWriter, ratingKey, token string) {
	item, ok := f.item(ratingKey)
	if !ok || !f.visibleSections(token)[item.SectionKey] {
		http.NotFound(w, nil)
		return
	}
	grandparent := ""
	if show, ok := f.item(item.ShowKey); ok && item.ShowKey != "" {
		grandparent = show.Title
	}
	fmt.Fprintf(w, `<MediaContainer><Video ratingKey=%s type=%s title=%s grandparentTitle=%s/></MediaContainer>`,
		attr(item.RatingKey), attr(item.Type), attr(item.Title), attr(grandparent))
}

func (f *FakePlex) scrobble(w http.ResponseWriter, ratingKey, token string) {
	for i := range f.Items {
		if f.Items[i].RatingKey != ratingKey {
			continue
		}
		if !f.visibleSections(token)[f.Items[i].SectionKey] {
			break
		}
		if f.Items[i].WatchedBy == nil {
			f.Items[i].WatchedBy = make(map[string]bool)
		}
		f.Items[i].WatchedBy[token] = true
		return
	}
	http.NotFound(w, nil)
}

func (f *FakePlex) item(ratingKey string) (FakeItem, bool) {
	for _, item := range f.Items {
		if item.RatingKey == ratingKey {
			return item, true
		}
	}
	return FakeItem{}, false
}

func (f *FakePlex) writeSessions(w io.Writer) {
	fmt.Fprint(w, "<MediaContainer>")
	for _, s := range f.Sessions {
		fmt.Fprintf(w, `<Video type=%s title=%s grandparentTitle=%s><User title=%s/><Session id=%s/></Video>`,
			attr(s.Type), attr(s.Title), attr(s.GrandparentTitle), attr(s.User), attr(s.ID))
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) terminate(id string) {
	kept := f.Sessions[:0]
	for _, s := range f.Sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.Sessions = kept
}

func (f *FakePlex) writeServerSections(w io.Writer) {
	fmt.Fprintf(w, `<MediaContainer><Server machineIdentifier=%s>`, attr(f.MachineID))
	for _, s := range f.Sections {
		fmt.Fprintf(w, `<Section id="%d" key=%s title=%s type=%s/>`, s.ID, attr(s.Key), attr(s.Title), attr(s.Type))
	}
	fmt.Fprint(w, "</Server></MediaContainer>")
}

func (f *FakePlex) writeSharedServers(w io.Writer) {
	fmt.Fprint(w, "<MediaContainer>")
	for _, u := range f.Users {
		if u.ShareID > 0 {
			fmt.Fprintf(w, `<SharedServer id="%d" userID="%d" username=%s email=%s accessToken=%s/>`,
				u.ShareID, u.ID, attr(u.Username), attr(u.Email), attr(u.Token()))
		}
	}
	fmt.Fprint(w, "</MediaContainer>")
}

func (f *FakePlex) writeSharedSections(w io.Writer, shareID int64) {
	granted := make(map[string]bool)
	for _, title := range f.Grants[shareID] {
		granted[title] = true
	}
	fmt.Fprintf(w, `<MediaContainer><SharedServer id="%d">`, shareID)
	for _, s := range f.Sections {
		fmt.Fprintf(w, `<Section id="%d" key=%s title=%s type=%s shared=%s/>`,
			s.ID, attr(s.Key), attr(s.Title), attr(s.Type), attr(boolAttr(granted[s.Title])))
	}
	fmt.Fprint(w, "</SharedServer></MediaContainer>")
}

type fakeShareBody struct {
	SharedServer struct {
		LibrarySectionIDs []int64 `json:"library_section_ids"`
		InvitedID         int64   `json:"invited_id"`
	} `json:"shared_server"`
}

func (f *FakePlex) sectionTitles(ids []int64) []string {
	var titles []string
	for _, id := range ids {
		for _, s := range f.Sections {
			if s.ID == id {
				titles = append(titles, s.Title)
			}
		}
	}
	return titles
}

func (f *FakePlex) createShare(w http.ResponseWriter, body []byte) {
	var req fakeShareBody
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range f.Users {
		if f.Users[i].ID == req.SharedServer.InvitedID {
			f.Users[i].ShareID = 1000 + f.Users[i].ID
			f.Grants[f.Users[i].ShareID] = f.sectionTitles(req.SharedServer.LibrarySectionIDs)
			return
		}
	}
	http.NotFound(w, nil)
}

func (f *FakePlex) updateShare(w http.ResponseWriter, shareID int64, body []byte) {
	var req fakeShareBody
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.Grants[shareID] = f.sectionTitles(req.SharedServer.LibrarySectionIDs)
}

func (f *FakePlex) deleteShare(shareID int64) {
	delete(f.Grants, shareID)
	for i := range f.Users {
		if f.Users[i].ShareID == shareID {
			f.Users[i].ShareID = 0
		}
	}
}

func (f *FakePlex) updateFriend(w http.ResponseWriter, id int64, r *http.Request) {
	q := r.URL.Query()
	for i := range f.Users {
		u := &f.Users[i]
		if u.ID != id {
			continue
		}
		if q.Has("allowSync") {
			u.AllowSync = q.Get("allowSync") == "1"
		}
		if q.Has("allowCameraUpload") {
			u.AllowCamera = q.Get("allowCameraUpload") == "1"
		}
		if q.Has("allowChannels") {
			u.AllowChannels = q.Get("allowChannels") == "1"
		}
		if q.Has("filterMovies") {
			u.FilterMovies = q.Get("filterMovies")
		}
		if q.Has("filterTelevision") {
			u.FilterTelevision = q.Get("filterTelevision")
		}
		if q.Has("filterMusic") {
			u.FilterMusic = q.Get("filterMusic")
		}
		return
	}
	http.NotFound(w, r)
}

func attr(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	_ = xml.EscapeText(&b, []byte(value))
	b.WriteByte('"')
	return b.String()
}

func boolAttr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
