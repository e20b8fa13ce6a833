package watchsync

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a library could not be synced.
type ErrorKind int

const (
	// KindOther is any failure without a more specific diagnosis.
	KindOther ErrorKind = iota
	// KindNoWatchStatus means the library type does not track watch state.
	KindNoWatchStatus
	// KindNotSharedToSource means the source account cannot see the library.
	KindNotSharedToSource
	// KindNotSharedToTarget means the target account cannot see an item.
	KindNotSharedToTarget
)

func (k ErrorKind) String() string {
	switch k {
	case KindNoWatchStatus:
		return "no_watch_status"
	case KindNotSharedToSource:
		return "not_shared_to_source"
	case KindNotSharedToTarget:
		return "not_shared_to_target"
	default:
		return "other"
	}
}

// SyncError is returned by SyncLibrary.
type SyncError struct {
	Kind    ErrorKind
	Library string
	Err     error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sync library %s: %s", e.Library, e.Kind)
	}
	return fmt.Sprintf("sync library %s: %v", e.Library, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// KindOf reports the classification of err. Errors that are not a SyncError
// report KindOther.
func KindOf(err error) ErrorKind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return KindOther
}
