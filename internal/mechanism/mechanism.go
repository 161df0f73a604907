// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mechanism implements the ZMTP security mechanism handshake: NULL,
// PLAIN, and CURVE. Each is a small state machine driven entirely by
// inbound command frames, with no I/O of its own — a connection actor feeds
// it frames and drains its outbound queue, so the machine itself stays
// testable without a socket.
package mechanism

import (
	"context"
	"errors"

	"code.hybscloud.com/zmtp/internal/wire"
)

// Kind names a security mechanism, mirroring the 20-byte ASCII field in the
// greeting.
type Kind uint8

const (
	NULL Kind = iota
	PLAIN
	CURVE
)

func (k Kind) String() string {
	switch k {
	case NULL:
		return "NULL"
	case PLAIN:
		return "PLAIN"
	case CURVE:
		return "CURVE"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrExpectedCommand      = errors.New("mechanism: expected a command frame during handshake")
	ErrUnexpectedCommand    = errors.New("mechanism: unexpected command in current state")
	ErrMissingSocketType    = errors.New("mechanism: READY missing Socket-Type property")
	ErrIncompatibleSocket   = errors.New("mechanism: incompatible peer socket type")
	ErrPeerError            = errors.New("mechanism: peer sent ERROR command")
	ErrAuthenticationDenied = errors.New("mechanism: ZAP backend denied credentials")
	ErrHandshakeAlreadyDone = errors.New("mechanism: OnInbound called after handshake completed")
)

// Mechanism drives one side of a security handshake. Implementations are
// NOT safe for concurrent use; exactly one goroutine (the connection actor)
// calls OnInbound/NextOutbound/IsDone in sequence.
type Mechanism interface {
	Kind() Kind

	// OnInbound processes one inbound frame. frame.Command must be true for
	// every handshake frame; a data frame before IsDone is a protocol
	// violation. ctx bounds any external call the mechanism makes while
	// processing (PLAIN's ZAP round trip); NULL and CURVE ignore it.
	OnInbound(ctx context.Context, frame wire.Frame) error

	// NextOutbound returns the next pending outbound frame body and true,
	// or (nil, false) if nothing is queued right now. The connection actor
	// wraps the returned bytes as a command frame (wire.Encode with
	// command=true) before writing it.
	NextOutbound() ([]byte, bool)

	// IsDone reports whether this side expects no further inbound
	// handshake frame. A server is done as soon as it queues its own
	// READY, which NextOutbound may still be holding at that point.
	IsDone() bool

	// PeerIdentity returns the routing identity the peer presented, or nil
	// if it presented none (the caller then mints an auto-identity).
	PeerIdentity() []byte

	// PeerSocketType returns the peer's advertised socket type once known.
	PeerSocketType() string
}

// socketCompat is the libzmq-compatible socket pairing table: a socket may
// only connect to a peer of a type listed here.
var socketCompat = map[[2]string]bool{
	{"PAIR", "PAIR"}:     true,
	{"PUB", "SUB"}:       true,
	{"SUB", "PUB"}:       true,
	{"REQ", "REP"}:       true,
	{"REP", "REQ"}:       true,
	{"REQ", "ROUTER"}:    true,
	{"ROUTER", "REQ"}:    true,
	{"DEALER", "REP"}:    true,
	{"REP", "DEALER"}:    true,
	{"DEALER", "ROUTER"}: true,
	{"ROUTER", "DEALER"}: true,
	{"DEALER", "DEALER"}: true,
	{"ROUTER", "ROUTER"}: true,
	{"PUSH", "PULL"}:     true,
	{"PULL", "PUSH"}:     true,
	{"XPUB", "XSUB"}:     true,
	{"XSUB", "XPUB"}:     true,
	{"XPUB", "SUB"}:      true,
	{"SUB", "XPUB"}:      true,
	{"XSUB", "PUB"}:      true,
	{"PUB", "XSUB"}:      true,
	{"STREAM", "STREAM"}: true,
}

// Compatible reports whether a local socket of type local may connect to a
// peer advertising type peer.
func Compatible(local, peer string) bool {
	return socketCompat[[2]string{local, peer}]
}

// propsBody builds the marshaled property bag carried by READY/INITIATE:
// Socket-Type is mandatory, Identity only included when non-empty.
func propsBody(socketType string, identity []byte) ([]byte, error) {
	props := []wire.Property{{Name: "Socket-Type", Value: []byte(socketType)}}
	if len(identity) > 0 {
		props = append(props, wire.Property{Name: "Identity", Value: identity})
	}
	return wire.MarshalProperties(props)
}

// readyBody builds a complete plaintext READY command: name plus the
// property bag from propsBody.
func readyBody(socketType string, identity []byte) ([]byte, error) {
	body, err := propsBody(socketType, identity)
	if err != nil {
		return nil, err
	}
	return wire.MarshalCommand(wire.Command{Name: wire.CmdReady, Body: body})
}

// parseProps extracts (socketType, identity) straight from a property bag
// (as opposed to parseReady, which takes a whole decoded READY command).
func parseProps(body []byte) (socketType string, identity []byte, err error) {
	props, err := wire.ParseProperties(body)
	if err != nil {
		return "", nil, err
	}
	st, ok := wire.PropertyValue(props, "Socket-Type")
	if !ok {
		return "", nil, ErrMissingSocketType
	}
	if id, ok := wire.PropertyValue(props, "Identity"); ok && len(id) > 0 {
		identity = append([]byte(nil), id...)
	}
	return string(st), identity, nil
}

// parseReady extracts (socketType, identity) from a decoded READY command.
func parseReady(cmd wire.Command) (socketType string, identity []byte, err error) {
	props, err := wire.ParseProperties(cmd.Body)
	if err != nil {
		return "", nil, err
	}
	st, ok := wire.PropertyValue(props, "Socket-Type")
	if !ok {
		return "", nil, ErrMissingSocketType
	}
	id, _ := wire.PropertyValue(props, "Identity")
	if len(id) > 0 {
		identity = append([]byte(nil), id...)
	}
	return string(st), identity, nil
}
