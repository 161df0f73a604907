// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"sync"

	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// Push load-balances sends round-robin over its connected peers. Unlike
// ROUTER/PUB/XPUB, PUSH/PULL fan-out does not need a peer map keyed by
// identity or a subscription index, so it manages its own small peer list
// rather than pulling in a Hub.
type Push struct {
	mu    sync.Mutex
	peers []*conn.Conn
	next  int
}

// NewPush returns an empty PUSH; peers are added with AddPeer as
// connections complete their handshake.
func NewPush() *Push { return &Push{} }

func (p *Push) AddPeer(c *conn.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers = append(p.peers, c)
}

func (p *Push) RemovePeer(c *conn.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, peer := range p.peers {
		if peer == c {
			p.peers = append(p.peers[:i], p.peers[i+1:]...)
			return
		}
	}
}

// Send writes msg to the next peer in round-robin order.
func (p *Push) Send(ctx context.Context, msg multipart.Message) error {
	p.mu.Lock()
	if len(p.peers) == 0 {
		p.mu.Unlock()
		return ErrClosed
	}
	c := p.peers[p.next%len(p.peers)]
	p.next++
	p.mu.Unlock()
	return c.SendMessage(ctx, msg)
}

// Pull fair-queues inbound messages from all connected peers into a single
// mailbox, drained by Recv. Each AddPeer spawns a goroutine pumping that
// peer's messages into the shared mailbox; Go's runtime-randomized channel
// select across peer goroutines provides the fairness, mirroring the
// hub's own mailbox design.
type Pull struct {
	mailbox chan multipart.Message
	stop    chan struct{}
	once    sync.Once
}

// NewPull returns an empty PULL.
func NewPull() *Pull {
	return &Pull{
		mailbox: make(chan multipart.Message, 256),
		stop:    make(chan struct{}),
	}
}

// AddPeer starts draining c's messages into the shared mailbox using asm
// to reassemble its frames. The drain goroutine exits when c.RecvMessage
// errors (peer closed) or the Pull is closed.
func (p *Pull) AddPeer(c *conn.Conn, asm *multipart.Assembler) {
	go func() {
		for {
			msg, err := c.RecvMessage(asm)
			if err != nil {
				return
			}
			select {
			case p.mailbox <- msg:
			case <-p.stop:
				return
			}
		}
	}()
}

// Recv returns the next fair-queued inbound message.
func (p *Pull) Recv(ctx context.Context) (multipart.Message, error) {
	select {
	case msg := <-p.mailbox:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.stop:
		return nil, ErrClosed
	}
}

// Close stops draining every added peer.
func (p *Pull) Close() {
	p.once.Do(func() { close(p.stop) })
}
