// Package main hosts the plexshare CLI: share, unshare, add and remove
// library grants for friends and home users, show current grants, stop
// streams, and back up or restore share settings.
//
// Multi-value flags accept space-separated values in the style
// `--user alice bob --libraries Movies "TV Shows"`. Every user, library and
// content rating is validated against the server before any change is made.
package main
