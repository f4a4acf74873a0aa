// Package dfserr implements the distfs error taxonomy (spec §7): a
// closed set of error Kinds shared by every component, carried over
// the RPC wire exactly like any other reply value.
//
// Modeled on quay/claircore's pkg/jsonerr, generalized from an
// HTTP-response helper into a wire-transparent error type: jsonerr.Response
// only ever traveled as a JSON body written directly to a
// http.ResponseWriter, whereas dfserr.Error must also survive a gob
// round-trip through the RPC substrate (internal/rpc), so it is
// registered with encoding/gob at package init.
package dfserr

import (
	"encoding/gob"
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy of spec §7.
type Kind string

const (
	// InvalidArgument signals a malformed path, a negative offset or
	// length, or null where the contract forbids it.
	InvalidArgument Kind = "InvalidArgument"
	// NotFound signals a path that does not resolve, or that resolves
	// to the wrong kind of node for the operation.
	NotFound Kind = "NotFound"
	// AlreadyExists signals a creation that would collide with an
	// existing tree entry. Client-service operations express this as
	// a boolean return rather than raising it; it exists in the
	// taxonomy for internal signaling inside the tree package.
	AlreadyExists Kind = "AlreadyExists"
	// InvalidState signals a server not yet started, a storage
	// identity already registered, or no storage nodes available.
	InvalidState Kind = "InvalidState"
	// IO signals a local storage read/write failure.
	IO Kind = "IO"
	// RPC signals a transport or dispatch failure on either peer.
	RPC Kind = "RPC"
	// Cancelled signals a lock wait unwound by context cancellation.
	Cancelled Kind = "Cancelled"
)

// Error is the concrete error type every distfs component returns.
type Error struct {
	Kind    Kind
	Message string
}

func init() {
	gob.Register(&Error{})
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil dfserr.Error>"
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New constructs an *Error of the given Kind.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given Kind whose message includes
// the wrapped error's text. The original err is not chained via
// errors.Unwrap since *Error must remain gob-encodable without
// dragging an arbitrary error value across the wire.
func Wrap(k Kind, err error, context string) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf("%s: %v", context, err)}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == k
}

// KindOf returns the Kind of err, or the empty Kind if err is not a
// *Error.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
