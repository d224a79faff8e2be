package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Kind classifies an RPC failure for retry and HTTP mapping decisions.
type Kind int

const (
	// KindTransport covers connection errors, timeouts and HTTP 5xx.
	// Transport failures are retryable.
	KindTransport Kind = iota
	// KindProtocol covers JSON-RPC error objects and HTTP 4xx.
	KindProtocol
	// KindMalformed covers unparseable bodies and missing required fields.
	KindMalformed
	// KindNotFound is reported when the requested object does not exist
	// (the RPC returns null).
	KindNotFound
	// KindInternal flags invariant violations on our side.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not found"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// ErrNotFound is wrapped into the Error returned when a block or other
// object is absent upstream.
var ErrNotFound = errors.New("not found")

// Error is the failure type returned by all Client accessors.
type Error struct {
	Kind   Kind
	Method string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s: %s error: %v", e.Method, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from any error returned by this
// package. Errors from elsewhere report KindInternal.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err represents an absent object.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound || errors.Is(err, ErrNotFound)
}

// classify maps an error coming out of rpc.Client.CallContext onto a Kind.
func classify(err error) Kind {
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return KindTransport
		}
		return KindProtocol
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return KindProtocol
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	// Anything else out of the transport is a network-level failure.
	return KindTransport
}
