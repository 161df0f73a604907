// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"time"

	"github.com/moby/pubsub"
)

// EventKind enumerates the socket lifecycle transitions observable
// through a Socket's optional event channel. Connected/Disconnected/
// Bound/Listening/Accepted/BindFailed/ConnectFailed come from the wire
// spec (§6); HandshakeFailed and PeerIdentitySet are carried over from
// the original engine's monitor, present there but only mentioned in
// passing by the distilled spec.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventBound
	EventListening
	EventAccepted
	EventBindFailed
	EventConnectFailed
	EventHandshakeFailed
	EventPeerIdentitySet
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventBound:
		return "bound"
	case EventListening:
		return "listening"
	case EventAccepted:
		return "accepted"
	case EventBindFailed:
		return "bind_failed"
	case EventConnectFailed:
		return "connect_failed"
	case EventHandshakeFailed:
		return "handshake_failed"
	case EventPeerIdentitySet:
		return "peer_identity_set"
	default:
		return "unknown"
	}
}

// Event is one lifecycle notification published on a Socket's monitor
// channel.
type Event struct {
	Kind      EventKind
	Endpoint  string
	PeerID    string
	Err       error
	Timestamp time.Time
}

// monitor fans one internal event stream out to any number of
// application subscribers, built on the same publisher internal/hub uses
// for its own lifecycle events, so a slow listener never blocks the
// engine.
type monitor struct {
	pub *pubsub.Publisher
}

func newMonitor() *monitor {
	return &monitor{pub: pubsub.NewPublisher(100*time.Millisecond, 64)}
}

func (m *monitor) publish(ev Event) { m.pub.Publish(ev) }

// Subscribe returns a channel of Event values. Callers must drain it; use
// Evict to unsubscribe.
func (m *monitor) Subscribe() chan interface{} { return m.pub.Subscribe() }

// Evict unsubscribes a channel returned by Subscribe.
func (m *monitor) Evict(ch chan interface{}) { m.pub.Evict(ch) }

func (m *monitor) close() { m.pub.Close() }
