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

type reqState uint8

const (
	reqIdle reqState = iota
	reqSent
)

// Req drives the REQ state machine: Idle -> Sent on Send (which prepends
// an empty delimiter frame), Sent -> Idle on Recv (which strips it).
// Strict send/recv alternation; calling either out of turn is a state
// violation.
type Req struct {
	c *conn.Conn

	mu    sync.Mutex
	state reqState
}

// NewReq wraps a handshaken connection as a REQ.
func NewReq(c *conn.Conn) *Req { return &Req{c: c} }

func (r *Req) Send(ctx context.Context, msg multipart.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != reqIdle {
		return ErrStateViolation
	}
	framed := make(multipart.Message, 0, len(msg)+1)
	framed = append(framed, nil)
	framed = append(framed, msg...)
	if err := r.c.SendMessage(ctx, framed); err != nil {
		return err
	}
	r.state = reqSent
	return nil
}

// Recv strips the REQ/REP envelope delimiter and returns the payload. A
// recv error (including a timeout) unlocks the next Send per the REQ/REP
// recv-timeout rule, rather than leaving the machine stuck in Sent.
func (r *Req) Recv(asm *multipart.Assembler) (multipart.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != reqSent {
		return nil, ErrStateViolation
	}
	msg, err := r.c.RecvMessage(asm)
	r.state = reqIdle
	if err != nil {
		return nil, err
	}
	if len(msg) < 1 {
		return nil, ErrProtocolViolation
	}
	return msg[1:], nil
}
