// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package behavior implements the per-role socket state machines: DEALER,
// ROUTER, REQ, REP, PUB, SUB, XPUB, XSUB, and PUSH/PULL. Each role is a
// thin wrapper around a connection actor (internal/conn, single peer) or a
// hub (internal/hub, many peers), adding only the ordering and framing
// rules specific to that role. None of these types touch a transport
// directly.
package behavior

import "errors"

// ErrStateViolation reports that Send or Recv was called out of turn for a
// role with strict alternation (REQ, REP).
var ErrStateViolation = errors.New("behavior: operation violates role's send/recv ordering")

// ErrProtocolViolation reports a peer message that does not fit the
// role's expected frame shape (a ROUTER send missing its identity frame,
// a REP recv with no delimiter frame).
var ErrProtocolViolation = errors.New("behavior: message does not match role's expected frame shape")

// ErrClosed reports a send with no usable peer.
var ErrClosed = errors.New("behavior: no peer available")
