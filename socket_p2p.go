// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"sync"

	"code.hybscloud.com/zmtp/internal/behavior"
	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// p2p holds what every single-connection role needs: the live conn once
// connected, its assembler, and the monitor its constructor created. Each
// role type embeds it and adds its own behavior.* wrapper and Send/Recv.
type p2p struct {
	role Role
	cfg  Config
	mon  *monitor

	mu  sync.Mutex
	c   *conn.Conn
	asm *multipart.Assembler
}

func newP2P(role Role, cfg Config) *p2p {
	return &p2p{role: role, cfg: cfg, mon: newMonitor()}
}

func (p *p2p) connectOut(ctx context.Context, endpoint string) (*conn.Conn, error) {
	rwc, err := dial(ctx, endpoint, p.cfg)
	if err != nil {
		return nil, err
	}
	res, err := handshake(ctx, rwc, p.role, p.cfg, false, p.mon, endpoint)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.c = res.conn
	p.asm = newAssembler(p.cfg)
	p.mu.Unlock()
	return res.conn, nil
}

// acceptOne listens on endpoint and completes the handshake with whichever
// peer connects first, then stops listening: single-connection roles only
// ever serve one peer at a time.
func (p *p2p) acceptOne(ctx context.Context, endpoint string) (*conn.Conn, error) {
	l, err := listen(endpoint)
	if err != nil {
		return nil, err
	}
	p.mon.publish(Event{Kind: EventListening, Endpoint: endpoint})
	rwc, err := l.Accept()
	l.Close()
	if err != nil {
		return nil, WrapError(Transport, endpoint, err)
	}
	applyTCPOptions(rwc, p.cfg)
	res, err := handshake(ctx, rwc, p.role, p.cfg, true, p.mon, endpoint)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.c = res.conn
	p.asm = newAssembler(p.cfg)
	p.mu.Unlock()
	return res.conn, nil
}

func (p *p2p) conn() (*conn.Conn, *multipart.Assembler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c == nil {
		return nil, nil, ErrClosed
	}
	return p.c, p.asm, nil
}

func (p *p2p) Events() chan interface{} { return p.mon.Subscribe() }
func (p *p2p) Evict(ch chan interface{}) { p.mon.Evict(ch) }

func (p *p2p) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c == nil {
		return nil
	}
	err := p.c.Close()
	p.c = nil
	return err
}

// ReqSocket is a REQ socket: one outstanding request at a time, strictly
// alternating Send/Recv.
type ReqSocket struct {
	*p2p
	b *behavior.Req
}

func NewReq(opts ...Option) (*ReqSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &ReqSocket{p2p: newP2P(RoleReq, cfg)}, nil
}

func (s *ReqSocket) Dial(ctx context.Context, endpoint string) error {
	c, err := s.connectOut(ctx, endpoint)
	if err != nil {
		return err
	}
	s.b = behavior.NewReq(c)
	return nil
}

func (s *ReqSocket) Send(ctx context.Context, msg multipart.Message) error {
	if s.b == nil {
		return ErrClosed
	}
	return s.b.Send(ctx, msg)
}

func (s *ReqSocket) Recv(ctx context.Context) (multipart.Message, error) {
	_, asm, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.b.Recv(asm)
}

// RepSocket is a REP socket: Recv stashes the envelope, Send must follow
// before the next Recv.
type RepSocket struct {
	*p2p
	b *behavior.Rep
}

func NewRep(opts ...Option) (*RepSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &RepSocket{p2p: newP2P(RoleRep, cfg)}, nil
}

// Listen binds endpoint and completes a handshake with the first peer
// that connects.
func (s *RepSocket) Listen(ctx context.Context, endpoint string) error {
	c, err := s.acceptOne(ctx, endpoint)
	if err != nil {
		return err
	}
	s.b = behavior.NewRep(c)
	return nil
}

func (s *RepSocket) Recv(ctx context.Context) (multipart.Message, error) {
	_, asm, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.b.Recv(asm)
}

func (s *RepSocket) Send(ctx context.Context, msg multipart.Message) error {
	if s.b == nil {
		return ErrClosed
	}
	return s.b.Send(ctx, msg)
}

// DealerSocket is a DEALER socket: unmatched send/recv, FIFO in each
// direction.
type DealerSocket struct {
	*p2p
	b *behavior.Dealer
}

func NewDealer(opts ...Option) (*DealerSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &DealerSocket{p2p: newP2P(RoleDealer, cfg)}, nil
}

func (s *DealerSocket) Dial(ctx context.Context, endpoint string) error {
	c, err := s.connectOut(ctx, endpoint)
	if err != nil {
		return err
	}
	s.b = behavior.NewDealer(c)
	return nil
}

func (s *DealerSocket) Listen(ctx context.Context, endpoint string) error {
	c, err := s.acceptOne(ctx, endpoint)
	if err != nil {
		return err
	}
	s.b = behavior.NewDealer(c)
	return nil
}

func (s *DealerSocket) Send(ctx context.Context, msg multipart.Message) error {
	if s.b == nil {
		return ErrClosed
	}
	return s.b.Send(ctx, msg)
}

func (s *DealerSocket) Recv(ctx context.Context) (multipart.Message, error) {
	_, asm, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.b.Recv(asm)
}

// SubSocket is a SUB socket: recv-only, topic-filtered.
type SubSocket struct {
	*p2p
	b *behavior.Sub
}

func NewSub(opts ...Option) (*SubSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &SubSocket{p2p: newP2P(RoleSub, cfg)}, nil
}

func (s *SubSocket) Dial(ctx context.Context, endpoint string) error {
	c, err := s.connectOut(ctx, endpoint)
	if err != nil {
		return err
	}
	s.b = behavior.NewSub(c)
	return nil
}

func (s *SubSocket) Subscribe(ctx context.Context, prefix string) error {
	return s.b.Subscribe(ctx, prefix)
}

func (s *SubSocket) Unsubscribe(ctx context.Context, prefix string) error {
	return s.b.Unsubscribe(ctx, prefix)
}

func (s *SubSocket) Recv(ctx context.Context) (multipart.Message, error) {
	_, asm, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.b.Recv(asm)
}

// XSubSocket is an XSUB socket: like SUB, but subscriptions are
// application-driven data frames rather than protocol commands.
type XSubSocket struct {
	*p2p
	b *behavior.XSub
}

func NewXSub(opts ...Option) (*XSubSocket, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return &XSubSocket{p2p: newP2P(RoleXSub, cfg)}, nil
}

func (s *XSubSocket) Dial(ctx context.Context, endpoint string) error {
	c, err := s.connectOut(ctx, endpoint)
	if err != nil {
		return err
	}
	s.b = behavior.NewXSub(c)
	return nil
}

func (s *XSubSocket) Subscribe(ctx context.Context, prefix string) error {
	return s.b.Subscribe(ctx, prefix)
}

func (s *XSubSocket) Unsubscribe(ctx context.Context, prefix string) error {
	return s.b.Unsubscribe(ctx, prefix)
}

func (s *XSubSocket) Recv(ctx context.Context) (multipart.Message, error) {
	_, asm, err := s.conn()
	if err != nil {
		return nil, err
	}
	return s.b.Recv(asm)
}
