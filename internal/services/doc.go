// Package services defines shared utilities consumed by the share manager, the
// watch-status sync engine, and the Plex integration.
//
// Key responsibilities:
//   - Context helpers that stamp the user, library, and correlation identifier
//     being processed so log lines can be traced back to a single command.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     remote failure (not found, unauthorized, transient) without inspecting
//     message text.
//
// Use these helpers when wiring new operations so error handling and
// observability stay uniform across both tools.
package services
