// Package shares manages library grants for friends and home users of one
// server: sharing, adding and removing libraries, toggling sync, camera upload
// and channel access, content filters, stopping streams, and backing up and
// restoring all of it as JSON.
//
// Every operation goes straight to the remote; nothing is cached between
// calls, so changes made elsewhere show up on the next snapshot. Human
// readable results are written to the Manager's output writer, diagnostics go
// to its logger.
package shares
