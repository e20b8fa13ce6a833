// Package logging assembles structured slog loggers and formatting helpers used
// by both plexadmin tools.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so operations can tag log lines
// with the user and library being processed. Loggers write to stderr so the
// human-readable results printed on stdout stay clean for scripting. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
