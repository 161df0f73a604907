// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/zmtp/internal/behavior"
	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/hub"
	"code.hybscloud.com/zmtp/internal/multipart"
	"code.hybscloud.com/zmtp/internal/wire"
)

// hubSocket holds what ROUTER/PUB/XPUB share: a Hub coordinating however
// many peers have connected, an accept loop feeding it, and the per-peer
// drain goroutine that turns each connection's inbound frames into either
// a Hub delivery (data frames) or a subscription-command callback
// (SUBSCRIBE/CANCEL), the latter relevant only to PUB/XPUB.
type hubSocket struct {
	role Role
	cfg  Config
	mon  *monitor
	h    *hub.Hub

	// onSubscription, when non-nil, is called for every SUBSCRIBE/CANCEL
	// command frame a peer sends. PUB uses it to update the Hub's
	// subscription index; XPUB additionally surfaces it as an event.
	onSubscription func(peerID string, subscribe bool, prefix string)

	// eg supervises the accept loop and every per-peer drain goroutine
	// this socket spawns, so Close can wait for all of them to unwind
	// instead of leaving them to exit on their own time.
	eg *errgroup.Group

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	conns    map[string]*conn.Conn // tracked so Close can force every drain goroutine to unwind
}

func newHubSocket(role Role, cfg Config) *hubSocket {
	return &hubSocket{
		role:  role,
		cfg:   cfg,
		mon:   newMonitor(),
		h:     hub.New(logrus.NewEntry(logrus.StandardLogger()), cfg.RecvHWM),
		eg:    &errgroup.Group{},
		conns: make(map[string]*conn.Conn),
	}
}

// decodeSubscriptionCommand reports whether body is a SUBSCRIBE or CANCEL
// command frame, and if so, which prefix it names.
func decodeSubscriptionCommand(body []byte) (subscribe bool, prefix string, ok bool) {
	cmd, err := wire.UnmarshalCommand(body)
	if err != nil {
		return false, "", false
	}
	switch cmd.Name {
	case wire.CmdSubscribe:
		return true, string(cmd.Body), true
	case wire.CmdCancel:
		return false, string(cmd.Body), true
	default:
		return false, "", false
	}
}

// decodeSubscriptionMessage reports whether msg is an XSUB-style
// data-frame subscription notation (a single frame whose first byte is
// behavior.XSubSubscribeByte/XSubUnsubscribeByte), and if so, which
// prefix it names. spec.md §6 requires accepting both the command-frame
// and data-frame forms.
func decodeSubscriptionMessage(msg multipart.Message) (subscribe bool, prefix string, ok bool) {
	if len(msg) != 1 || len(msg[0]) == 0 {
		return false, "", false
	}
	switch msg[0][0] {
	case behavior.XSubSubscribeByte:
		return true, string(msg[0][1:]), true
	case behavior.XSubUnsubscribeByte:
		return false, string(msg[0][1:]), true
	default:
		return false, "", false
	}
}

// servePeer completes the handshake with rwc, registers the resulting
// connection with the Hub, and pumps its inbound frames: data frames are
// assembled and either routed to onSubscription (command frames carrying
// a subscription, or a single data frame in XSUB's 0x01/0x00-prefixed
// notation) or delivered to the Hub's mailbox; every other command is
// ignored. Returns once the peer disconnects.
func (h *hubSocket) servePeer(ctx context.Context, rwc net.Conn, asServer bool, endpoint string) {
	applyTCPOptions(rwc, h.cfg)
	res, err := handshake(ctx, rwc, h.role, h.cfg, asServer, h.mon, endpoint)
	if err != nil {
		return
	}
	id, err := h.h.AddPeer(string(res.peerIdentity), res.conn)
	if err != nil {
		res.conn.Close()
		return
	}
	h.mon.publish(Event{Kind: EventPeerIdentitySet, Endpoint: endpoint, PeerID: id})
	h.mu.Lock()
	h.conns[id] = res.conn
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.conns, id)
		h.mu.Unlock()
	}()

	asm := newAssembler(h.cfg)
	for {
		frame, err := res.conn.ReadFrame()
		if err != nil {
			h.h.RemovePeer(id)
			res.conn.Close()
			h.mon.publish(Event{Kind: EventDisconnected, Endpoint: endpoint, PeerID: id})
			return
		}
		if frame.Command {
			if sub, prefix, ok := decodeSubscriptionCommand(frame.Body); ok && h.onSubscription != nil {
				h.onSubscription(id, sub, prefix)
			}
			continue
		}
		msg, err := asm.Push(frame.Body, frame.More)
		if err != nil {
			continue
		}
		if msg == nil {
			continue
		}
		if h.onSubscription != nil {
			if sub, prefix, ok := decodeSubscriptionMessage(msg); ok {
				h.onSubscription(id, sub, prefix)
				continue
			}
		}
		if err := h.h.Deliver(ctx, hub.Envelope{PeerID: id, Msg: msg}); err != nil {
			return
		}
	}
}

// Listen binds endpoint and accepts peers until Close.
func (h *hubSocket) Listen(ctx context.Context, endpoint string) error {
	l, err := listen(endpoint)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.listener = l
	h.mu.Unlock()
	h.mon.publish(Event{Kind: EventListening, Endpoint: endpoint})
	h.eg.Go(func() error {
		acceptLoop(l, h.mon, endpoint, func(rwc net.Conn) {
			h.eg.Go(func() error { h.servePeer(ctx, rwc, true, endpoint); return nil })
		})
		return nil
	})
	return nil
}

// Dial connects out to endpoint and registers it as one more peer, the
// way a ROUTER or PUB may actively connect to a known peer instead of
// only accepting inbound connections.
func (h *hubSocket) Dial(ctx context.Context, endpoint string) error {
	rwc, err := dial(ctx, endpoint, h.cfg)
	if err != nil {
		return err
	}
	h.eg.Go(func() error { h.servePeer(ctx, rwc, false, endpoint); return nil })
	return nil
}

func (h *hubSocket) Events() chan interface{}  { return h.mon.Subscribe() }
func (h *hubSocket) Evict(ch chan interface{}) { h.mon.Evict(ch) }

func (h *hubSocket) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	if h.listener != nil {
		h.listener.Close()
	}
	for _, c := range h.conns {
		c.Close()
	}
	h.h.Close()
	h.mu.Unlock()
	h.eg.Wait()
	return nil
}

// RouterSocket is a ROUTER socket: addressed send by peer identity, and
// recv with the sending peer's identity prepended.
type RouterSocket struct {
	*hubSocket
	b *behavior.Router
}

func NewRouter(opts ...Option) (*RouterSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	hs := newHubSocket(RoleRouter, cfg)
	return &RouterSocket{hubSocket: hs, b: behavior.NewRouter(hs.h, cfg.RouterMandatory)}, nil
}

func (s *RouterSocket) Send(ctx context.Context, msg multipart.Message) error {
	return s.b.Send(ctx, msg)
}
func (s *RouterSocket) Recv(ctx context.Context) (multipart.Message, error) { return s.b.Recv(ctx) }

// PubSocket is a PUB socket: broadcast-only, filtered by each peer's
// subscriptions.
type PubSocket struct {
	*hubSocket
	b *behavior.Pub
}

func NewPub(opts ...Option) (*PubSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	hs := newHubSocket(RolePub, cfg)
	s := &PubSocket{hubSocket: hs, b: behavior.NewPub(hs.h)}
	s.onSubscription = func(peerID string, subscribe bool, prefix string) {
		if subscribe {
			s.h.Subscribe(peerID, prefix)
		} else {
			s.h.Unsubscribe(peerID, prefix)
		}
	}
	return s, nil
}

func (s *PubSocket) Send(ctx context.Context, msg multipart.Message) error { return s.b.Send(ctx, msg) }

// XPubSocket is an XPUB socket: like PUB, but every peer subscription
// change is itself recv()-able as an event frame.
type XPubSocket struct {
	*hubSocket
	b *behavior.XPub
}

// NewXPub wraps a Hub as an XPUB. verbose surfaces every SUBSCRIBE/CANCEL
// rather than only the first/last per prefix.
func NewXPub(verbose bool, opts ...Option) (*XPubSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	hs := newHubSocket(RoleXPub, cfg)
	s := &XPubSocket{hubSocket: hs, b: behavior.NewXPub(hs.h, verbose)}
	s.onSubscription = s.b.HandleSubscription
	return s, nil
}

func (s *XPubSocket) Send(ctx context.Context, msg multipart.Message) error {
	return s.b.Send(ctx, msg)
}
func (s *XPubSocket) Recv(ctx context.Context) (multipart.Message, error) { return s.b.Recv(ctx) }
