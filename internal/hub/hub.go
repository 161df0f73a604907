// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hub is the multi-peer coordinator ROUTER, PUB, and XPUB sockets
// own: the peer map keyed by routing identity, the subscription index, a
// fair-queued inbound mailbox, and fan-out to one or many peers. It is the
// sole owner of the peer map and subscription index — every other actor
// touches them only by sending the Hub a request, never directly, so no
// lock is ever visible outside this package.
package hub

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/moby/pubsub"
	"github.com/sirupsen/logrus"

	"code.hybscloud.com/zmtp/internal/identity"
	"code.hybscloud.com/zmtp/internal/multipart"
	"code.hybscloud.com/zmtp/internal/subscribe"
)

// ErrUnknownPeer reports a Send to an identity absent from the peer map,
// surfaced to the caller when router_mandatory is enabled.
var ErrUnknownPeer = errors.New("hub: no peer registered for identity")

// Peer is what the Hub fans messages out to and drains inbound messages
// from. *conn.Conn satisfies this directly; tests use lightweight doubles.
type Peer interface {
	SendMessage(ctx context.Context, msg multipart.Message) error
	Close() error
}

// Event is a peer lifecycle notification published on the Hub's event bus.
type Event struct {
	Kind     EventKind
	PeerID   string
	Endpoint string
}

// EventKind enumerates the lifecycle transitions a Hub reports.
type EventKind int

const (
	PeerConnected EventKind = iota
	PeerDisconnected
	PeerSubscribed
	PeerUnsubscribed
)

// Envelope pairs an inbound message with the identity of the peer it
// arrived from, the unit the Hub's mailbox carries.
type Envelope struct {
	PeerID string
	Msg    multipart.Message
}

type request struct {
	run  func(*state)
	done chan struct{}
}

type state struct {
	peers  *identity.Map
	subs   *subscribe.Index
	minter identity.Minter
	hwm    *hwmTracker
}

// Hub runs its own goroutine owning state; every method hands state
// mutation to that goroutine via a request channel, so state itself is
// never touched concurrently.
type Hub struct {
	reqs    chan request
	mailbox chan Envelope
	events  *pubsub.Publisher
	log     *logrus.Entry
	stop    chan struct{}
}

// New starts a Hub. log may be nil. subscriberHWM bounds the number of
// in-flight sends a single PUB/XPUB subscriber may have outstanding before
// further broadcasts to it are dropped silently; 0 means unbounded.
func New(log *logrus.Entry, subscriberHWM int) *Hub {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = logrus.NewEntry(discard)
	}
	h := &Hub{
		reqs:    make(chan request),
		mailbox: make(chan Envelope, 256),
		events:  pubsub.NewPublisher(100*time.Millisecond, 64),
		log:     log,
		stop:    make(chan struct{}),
	}
	go h.run(subscriberHWM)
	return h
}

func (h *Hub) run(subscriberHWM int) {
	st := &state{peers: identity.NewMap(), subs: subscribe.New(), hwm: newHWMTracker(subscriberHWM)}
	for {
		select {
		case req := <-h.reqs:
			req.run(st)
			close(req.done)
		case <-h.stop:
			return
		}
	}
}

func (h *Hub) do(fn func(*state)) {
	done := make(chan struct{})
	select {
	case h.reqs <- request{run: fn, done: done}:
		<-done
	case <-h.stop:
	}
}

// Close stops the Hub's goroutine and its event publisher. It does not
// close registered peers; callers close those themselves as they are
// removed.
func (h *Hub) Close() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
	h.events.Close()
}

// Events returns a channel of Event values. Callers must drain it; use
// Evict to unsubscribe.
func (h *Hub) Events() chan interface{} { return h.events.Subscribe() }

// Evict unsubscribes a channel returned by Events.
func (h *Hub) Evict(ch chan interface{}) { h.events.Evict(ch) }

// AddPeer registers p under id, or mints a fresh identity if id is empty.
// It returns the identity actually assigned.
func (h *Hub) AddPeer(id string, p Peer) (string, error) {
	var assigned string
	var addErr error
	h.do(func(st *state) {
		if id == "" {
			id = st.minter.Next()
		}
		if err := st.peers.Add(id, p); err != nil {
			addErr = err
			return
		}
		assigned = id
	})
	if addErr != nil {
		return "", addErr
	}
	h.events.Publish(Event{Kind: PeerConnected, PeerID: assigned})
	return assigned, nil
}

// RemovePeer unregisters id and sweeps its subscriptions.
func (h *Hub) RemovePeer(id string) {
	h.do(func(st *state) {
		st.peers.Remove(id)
		st.subs.RemovePeer(id)
		st.hwm.forget(id)
	})
	h.events.Publish(Event{Kind: PeerDisconnected, PeerID: id})
}

// SendTo delivers msg to the peer registered under id. It reports
// ErrUnknownPeer if no such peer is registered; the ROUTER behavior turns
// that into either a silent drop or a user-visible error depending on
// router_mandatory.
func (h *Hub) SendTo(ctx context.Context, id string, msg multipart.Message) error {
	var peer Peer
	h.do(func(st *state) {
		if p, ok := st.peers.Lookup(id); ok {
			peer = p.(Peer)
		}
	})
	if peer == nil {
		return ErrUnknownPeer
	}
	return peer.SendMessage(ctx, msg)
}

// Broadcast fans msg out to every peer whose subscription prefixes match
// topic (msg's first frame). Per-subscriber send failures are logged and
// do not abort delivery to the rest; a subscriber already at its HWM of
// outstanding sends is skipped before the send is even attempted. Both are
// the HWM drop-silently policy: a blocked or broken subscriber never holds
// up the others.
func (h *Hub) Broadcast(ctx context.Context, topic string, msg multipart.Message) {
	type target struct {
		id string
		p  Peer
	}
	var targets []target
	h.do(func(st *state) {
		for _, id := range st.subs.Matches(topic) {
			p, ok := st.peers.Lookup(id)
			if !ok {
				continue
			}
			if !st.hwm.tryBegin(id) {
				h.log.WithField("peer", id).Debug("broadcast: dropping, subscriber at HWM")
				continue
			}
			targets = append(targets, target{id: id, p: p.(Peer)})
		}
	})
	for _, t := range targets {
		err := t.p.SendMessage(ctx, msg)
		h.do(func(st *state) { st.hwm.end(t.id) })
		if err != nil {
			h.log.WithError(err).Debug("broadcast: dropping to unresponsive subscriber")
		}
	}
}

// Subscribe registers peer's interest in prefix.
func (h *Hub) Subscribe(peer, prefix string) {
	h.do(func(st *state) { st.subs.Subscribe(peer, prefix) })
	h.events.Publish(Event{Kind: PeerSubscribed, PeerID: peer, Endpoint: prefix})
}

// Unsubscribe removes peer's interest in prefix.
func (h *Hub) Unsubscribe(peer, prefix string) {
	h.do(func(st *state) { st.subs.Unsubscribe(peer, prefix) })
	h.events.Publish(Event{Kind: PeerUnsubscribed, PeerID: peer, Endpoint: prefix})
}

// Deliver enqueues an inbound message onto the fair-queued mailbox, from
// the peer's own read pump goroutine. It blocks if the mailbox is full,
// providing inbound backpressure without unbounded queueing.
func (h *Hub) Deliver(ctx context.Context, env Envelope) error {
	select {
	case h.mailbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stop:
		return errors.New("hub: closed")
	}
}

// Mailbox returns the channel ROUTER/PULL-style recv() drains: messages
// from every peer, fairly interleaved by Go's runtime-randomized channel
// select rather than an explicit round-robin scan.
func (h *Hub) Mailbox() <-chan Envelope { return h.mailbox }

// Lookup reports whether id is registered, without retrieving the peer —
// useful for router_mandatory existence checks without a SendMessage call.
func (h *Hub) Lookup(id string) bool {
	var ok bool
	h.do(func(st *state) { _, ok = st.peers.Lookup(id) })
	return ok
}
