package engine

import "errors"

// Engine misuse and fault sentinels. Store-level violations
// (store.ErrTypeViolation, store.ErrAccessViolation) surface through
// commit results and the run outcome rather than through these
var (
	// ErrSchedulerMisuse marks API misuse: negative delay, scheduling
	// after the run completed, registering after the run started
	ErrSchedulerMisuse = errors.New("engine: scheduler misuse")

	// ErrUnknownComponent marks an event addressed to an unregistered id
	ErrUnknownComponent = errors.New("engine: unknown component")

	// ErrDuplicatePath marks a registration reusing an existing path
	ErrDuplicatePath = errors.New("engine: component path already registered")

	// ErrBadPath marks a component name that is not a clean /-path
	ErrBadPath = errors.New("engine: component path must be a clean absolute path")
)
