// Package watchsync copies watched state from one account to others on the
// same server.
//
// Library syncs walk the source account's watched movies and shows and mark
// each item watched on the target account. Failures are classified per
// library so one missing library does not stop the rest of the run. A single
// item can also be synced by rating key.
package watchsync
