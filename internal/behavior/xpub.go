// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"sync"

	"code.hybscloud.com/zmtp/internal/hub"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// XPub is like Pub, but every peer SUBSCRIBE/CANCEL is surfaced upward as
// a recv()-able event frame (first byte 0x01/0x00 followed by the
// prefix). In non-verbose mode (the default) only the first subscribe and
// last unsubscribe for a given prefix, counted across all peers, are
// surfaced; verbose mode surfaces every one.
type XPub struct {
	h       *hub.Hub
	verbose bool

	mu     sync.Mutex
	counts map[string]int

	events chan multipart.Message
}

// NewXPub wraps a Hub as an XPUB.
func NewXPub(h *hub.Hub, verbose bool) *XPub {
	return &XPub{
		h:       h,
		verbose: verbose,
		counts:  make(map[string]int),
		events:  make(chan multipart.Message, 256),
	}
}

func (x *XPub) Send(ctx context.Context, msg multipart.Message) error {
	var topic string
	if len(msg) > 0 {
		topic = string(msg[0])
	}
	x.h.Broadcast(ctx, topic, msg)
	return nil
}

// HandleSubscription registers peerID's interest in prefix with the hub
// and, if this subscription crosses the first/last threshold for prefix
// (or verbose mode is on), enqueues the upward event frame for Recv.
// subscribe's caller is whichever code drains peerID's inbound frames,
// translating either command-frame (SUBSCRIBE/CANCEL) or data-frame
// (\x01/\x00-prefixed) subscription notation into this call.
func (x *XPub) HandleSubscription(peerID string, subscribe bool, prefix string) {
	if subscribe {
		x.h.Subscribe(peerID, prefix)
	} else {
		x.h.Unsubscribe(peerID, prefix)
	}

	boundary := x.track(prefix, subscribe)
	if !x.verbose && !boundary {
		return
	}

	flag := byte(0x00)
	if subscribe {
		flag = 0x01
	}
	frame := append([]byte{flag}, prefix...)
	select {
	case x.events <- multipart.Message{frame}:
	default:
		// Event backlog full: drop rather than block the peer's read pump.
	}
}

// track updates the prefix's cross-peer subscriber count and reports
// whether this call crossed a 0<->1 boundary (first subscribe or last
// unsubscribe).
func (x *XPub) track(prefix string, subscribe bool) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if subscribe {
		x.counts[prefix]++
		return x.counts[prefix] == 1
	}
	if x.counts[prefix] > 0 {
		x.counts[prefix]--
	}
	return x.counts[prefix] == 0
}

// Recv returns the next surfaced subscription event.
func (x *XPub) Recv(ctx context.Context) (multipart.Message, error) {
	select {
	case ev := <-x.events:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
