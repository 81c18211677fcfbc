package session

import "errors"

var (
	// ErrInit wraps any failure to start the runtime. It is fatal for the
	// session and is not retried.
	ErrInit = errors.New("session: runtime initialization failed")

	// ErrAlreadySubmitted is returned by a second Submit on one session.
	ErrAlreadySubmitted = errors.New("session: work already submitted")

	// ErrClosed is returned by Submit on a session closed without work.
	ErrClosed = errors.New("session: closed")

	// ErrNilWork is returned by Submit when work is nil.
	ErrNilWork = errors.New("session: nil work")

	// ErrWorkPanic is the failure recorded when work panics.
	ErrWorkPanic = errors.New("session: work panicked")

	// ErrNilFuture is the failure recorded when work returns no future.
	ErrNilFuture = errors.New("session: work returned nil future")

	// ErrInvalidHandle is returned for a handle not produced by Submit on
	// the same session.
	ErrInvalidHandle = errors.New("session: handle does not belong to session")

	// ErrCloseTimeout reports that the runtime did not confirm its close in
	// time. Subsystems are still drained.
	ErrCloseTimeout = errors.New("session: runtime close not confirmed")
)
