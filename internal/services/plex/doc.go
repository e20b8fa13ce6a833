// Package plex talks to a Plex Media Server and to plex.tv on behalf of the
// server owner and, with per-user access tokens, on behalf of shared users.
//
// Client covers the media server endpoints (identity, libraries, watched
// items, scrobbling, sessions) and the plex.tv endpoints used for friend
// sharing (users, shared servers, friend settings). Connect builds a Client
// from configuration and verifies it against the server, falling back to
// plex.tv resource discovery for plex.direct certificates. TokenManager keeps
// the account token and runs the device link flow.
//
// Status codes are classified through the services error markers: 401 is
// ErrUnauthorized, 404 is ErrNotFound, everything else is ErrTransient.
package plex
