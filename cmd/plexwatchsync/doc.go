// Package main hosts the plexwatchsync CLI, which copies watched state from
// one account to others on the same server. It is meant to be triggered by a
// notification agent passing the watched item's rating key and the user
// names, or run by hand for whole libraries.
package main
