// Package cli holds the command plumbing shared by plexshare and
// plexwatchsync: the lazily built command context, argument expansion for
// space-separated flag values, the config, link and check subcommands, and
// table rendering.
package cli
