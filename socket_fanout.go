// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/zmtp/internal/behavior"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// fanSocket holds what PUSH/PULL share: no Hub (per the scoping decision
// that only ROUTER/PUB/XPUB need identity/subscription bookkeeping), just
// an accept loop and/or repeated dials feeding whichever behavior.Push or
// behavior.Pull the embedding type owns.
type fanSocket struct {
	role Role
	cfg  Config
	mon  *monitor
	eg   *errgroup.Group

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func newFanSocket(role Role, cfg Config) *fanSocket {
	return &fanSocket{role: role, cfg: cfg, mon: newMonitor(), eg: &errgroup.Group{}}
}

func (f *fanSocket) Events() chan interface{}  { return f.mon.Subscribe() }
func (f *fanSocket) Evict(ch chan interface{}) { f.mon.Evict(ch) }

func (f *fanSocket) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	if f.listener != nil {
		f.listener.Close()
	}
	f.mu.Unlock()
	f.eg.Wait()
	return nil
}

// PushSocket is a PUSH socket: round-robin send across connected peers,
// never recvs.
type PushSocket struct {
	*fanSocket
	p *behavior.Push
}

func NewPush(opts ...Option) (*PushSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &PushSocket{fanSocket: newFanSocket(RolePush, cfg), p: behavior.NewPush()}, nil
}

// Dial connects out to endpoint and adds it as one more round-robin
// target.
func (s *PushSocket) Dial(ctx context.Context, endpoint string) error {
	rwc, err := dial(ctx, endpoint, s.cfg)
	if err != nil {
		return err
	}
	res, err := handshake(ctx, rwc, s.role, s.cfg, false, s.mon, endpoint)
	if err != nil {
		return err
	}
	s.p.AddPeer(res.conn)
	return nil
}

// Listen binds endpoint and adds every accepted peer as a round-robin
// target.
func (s *PushSocket) Listen(ctx context.Context, endpoint string) error {
	l, err := listen(endpoint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.mon.publish(Event{Kind: EventListening, Endpoint: endpoint})
	s.eg.Go(func() error {
		acceptLoop(l, s.mon, endpoint, func(rwc net.Conn) {
			applyTCPOptions(rwc, s.cfg)
			res, err := handshake(ctx, rwc, s.role, s.cfg, true, s.mon, endpoint)
			if err != nil {
				return
			}
			s.p.AddPeer(res.conn)
		})
		return nil
	})
	return nil
}

func (s *PushSocket) Send(ctx context.Context, msg multipart.Message) error { return s.p.Send(ctx, msg) }

// PullSocket is a PULL socket: fair-queued recv across connected peers,
// never sends.
type PullSocket struct {
	*fanSocket
	p *behavior.Pull
}

func NewPull(opts ...Option) (*PullSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &PullSocket{fanSocket: newFanSocket(RolePull, cfg), p: behavior.NewPull()}, nil
}

func (s *PullSocket) Dial(ctx context.Context, endpoint string) error {
	rwc, err := dial(ctx, endpoint, s.cfg)
	if err != nil {
		return err
	}
	res, err := handshake(ctx, rwc, s.role, s.cfg, false, s.mon, endpoint)
	if err != nil {
		return err
	}
	s.p.AddPeer(res.conn, newAssembler(s.cfg))
	return nil
}

func (s *PullSocket) Listen(ctx context.Context, endpoint string) error {
	l, err := listen(endpoint)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.mon.publish(Event{Kind: EventListening, Endpoint: endpoint})
	s.eg.Go(func() error {
		acceptLoop(l, s.mon, endpoint, func(rwc net.Conn) {
			applyTCPOptions(rwc, s.cfg)
			res, err := handshake(ctx, rwc, s.role, s.cfg, true, s.mon, endpoint)
			if err != nil {
				return
			}
			s.p.AddPeer(res.conn, newAssembler(s.cfg))
		})
		return nil
	})
	return nil
}

func (s *PullSocket) Recv(ctx context.Context) (multipart.Message, error) { return s.p.Recv(ctx) }

func (s *PullSocket) Close() error {
	s.p.Close()
	return s.fanSocket.Close()
}
