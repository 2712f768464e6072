// Package ferrors defines the error taxonomy shared by every fleetd
// component: a closed set of kinds that the facade, supervisor, worker, and
// backend adapters use to classify every failure that can cross a component
// boundary.
package ferrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error. Callers should switch on Kind, never on the
// error's formatted message.
type Kind string

const (
	// NotLoaded means the worker has not completed Load yet (Fresh state).
	NotLoaded Kind = "not_loaded"
	// WorkerDead means the worker can no longer serve requests: its Load
	// failed, it was unloaded, or it is no longer registered.
	WorkerDead Kind = "worker_dead"
	// BusySession means the session already has an in-flight prompt and the
	// backend does not support concurrent prompts on one session.
	BusySession Kind = "busy_session"
	// UnknownSession means the session id is not known to the worker.
	UnknownSession Kind = "unknown_session"
	// ConfigInvalid means a Model Descriptor's config map failed adapter
	// validation at load time.
	ConfigInvalid Kind = "config_invalid"
	// BackendUnavailable means a remote backend could not be reached or
	// returned a fatal transport error.
	BackendUnavailable Kind = "backend_unavailable"
	// PermissionDenied means the caller's Permissions forbid the operation.
	PermissionDenied Kind = "permission_denied"
	// Cancelled marks a generation that ended because of an interrupt. It is
	// never surfaced to a caller as a failed call — it ends a stream as a
	// normal Completion, but the adapter layer uses this kind internally to
	// distinguish "stopped on purpose" from every other early exit.
	Cancelled Kind = "cancelled"
	// InternalInvariant means an assumption the code depends on did not
	// hold. The only kind a worker mailbox goroutine may panic with; the
	// worker's dispatch recovers the panic and moves the worker to Gone.
	InternalInvariant Kind = "internal_invariant"
)

// Error is the concrete error type returned across fleetd component
// boundaries. It always carries a Kind and, optionally, a wrapped cause with
// its stack trace preserved via github.com/pkg/errors.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a stack trace attached at the
// call site.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, cause: errors.New(detail)}
}

// Wrap attaches kind and detail to an existing cause, preserving its stack
// trace (or adding one, if cause does not already carry one).
func Wrap(kind Kind, cause error, detail string) *Error {
	if cause == nil {
		return New(kind, detail)
	}
	return &Error{Kind: kind, Detail: detail, cause: errors.WithStack(cause)}
}

// Is reports whether err is a fleetd Error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	return fe.Kind == kind
}
