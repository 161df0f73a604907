// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error for programmatic handling, per the engine's
// error taxonomy.
type Kind uint8

const (
	// Transport reports an I/O failure or peer-closed condition.
	Transport Kind = iota
	// ProtocolViolation reports malformed wire data: reserved bits set,
	// oversize frames, a malformed greeting or command.
	ProtocolViolation
	// HandshakeFailure reports an incompatible peer socket type, a
	// mechanism mismatch, a handshake timeout, or a denied authentication.
	HandshakeFailure
	// StateViolation reports REQ/REP ordering broken by the application,
	// or a ROUTER send to an unknown identity under router_mandatory.
	StateViolation
	// Resource reports a multipart limit exceeded.
	Resource
	// Backpressure reports a local high-water mark hit on a non-blocking
	// send.
	Backpressure
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case ProtocolViolation:
		return "protocol_violation"
	case HandshakeFailure:
		return "handshake_failure"
	case StateViolation:
		return "state_violation"
	case Resource:
		return "resource"
	case Backpressure:
		return "backpressure"
	default:
		return "unknown"
	}
}

// Error is the engine's structured error type: a Kind plus the endpoint
// it happened on and the underlying cause, if any.
type Error struct {
	Kind     Kind
	Endpoint string
	cause    error
}

func (e *Error) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("zmtp: %s: %s: %v", e.Endpoint, e.Kind, e.cause)
	}
	return fmt.Sprintf("zmtp: %s: %v", e.Kind, e.cause)
}

// Unwrap exposes cause for errors.Is/errors.As chaining.
func (e *Error) Unwrap() error { return e.cause }

// WrapError builds an Error of kind around cause, identifying endpoint
// (may be empty). A nil cause returns nil.
func WrapError(kind Kind, endpoint string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Endpoint: endpoint, cause: errors.Wrapf(cause, "%s", kind)}
}

// Sentinel errors for the codec's hot, allocation-free paths, mirroring
// the teacher's own ErrTooLong/ErrInvalidArgument style: compared with
// == or errors.Is rather than unwrapped through Error.
var (
	// ErrReservedBits reports a frame header with a reserved flag bit set.
	ErrReservedBits = errors.New("zmtp: reserved flag bit set")

	// ErrSizeTooLarge reports a frame or message exceeding a configured
	// size limit.
	ErrSizeTooLarge = errors.New("zmtp: size exceeds configured limit")

	// ErrClosed reports an operation attempted on a closed socket.
	ErrClosed = errors.New("zmtp: socket closed")
)
