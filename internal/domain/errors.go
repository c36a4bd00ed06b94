package domain

import "errors"

// Error taxonomy for sync and persistence failures. Every failure mode
// degrades to "no data change, error reported"; none of these are fatal.
var (
	// ErrUnauthorized means the external store denied or has not granted
	// access. Callers report it and do not retry automatically.
	ErrUnauthorized = errors.New("health store access not authorized")

	// ErrStoreUnavailable means the external store could not be reached.
	ErrStoreUnavailable = errors.New("health store unavailable")

	// ErrEncode and ErrDecode classify snapshot codec failures.
	ErrEncode = errors.New("snapshot encode failed")
	ErrDecode = errors.New("snapshot decode failed")

	// ErrSizeExceeded means a blob breached the per-key size ceiling of
	// the key-value store. Previously persisted data is left intact.
	ErrSizeExceeded = errors.New("persisted blob exceeds size limit")

	// ErrSyncDisabled means an operation requiring sync ran while the
	// tracker's sync flag was off.
	ErrSyncDisabled = errors.New("sync is disabled for this tracker")

	// ErrSuppressed means an incremental sync was skipped because a
	// manual write was still being mirrored out.
	ErrSuppressed = errors.New("sync suppressed during manual write mirror")

	// ErrSyncInFlight means a reconciliation was requested while another
	// one for the same tracker was still running.
	ErrSyncInFlight = errors.New("reconciliation already in flight")
)
