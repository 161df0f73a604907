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

type repState uint8

const (
	repWaiting repState = iota
	repStashed
)

// Rep drives the REP state machine: Waiting -> Stashed on Recv (which
// splits off the envelope, every frame up to and including the first
// empty delimiter frame), Stashed -> Waiting on Send (which prepends the
// stashed envelope back on). Strict recv/send alternation.
type Rep struct {
	c *conn.Conn

	mu    sync.Mutex
	state repState
	stash multipart.Message
}

// NewRep wraps a handshaken connection as a REP.
func NewRep(c *conn.Conn) *Rep { return &Rep{c: c} }

func (r *Rep) Recv(asm *multipart.Assembler) (multipart.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != repWaiting {
		return nil, ErrStateViolation
	}
	msg, err := r.c.RecvMessage(asm)
	if err != nil {
		return nil, err
	}
	delim := -1
	for i, frame := range msg {
		if len(frame) == 0 {
			delim = i
			break
		}
	}
	if delim == -1 {
		return nil, ErrProtocolViolation
	}
	r.stash = append(multipart.Message(nil), msg[:delim+1]...)
	r.state = repStashed
	return msg[delim+1:], nil
}

func (r *Rep) Send(ctx context.Context, msg multipart.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != repStashed {
		return ErrStateViolation
	}
	framed := make(multipart.Message, 0, len(r.stash)+len(msg))
	framed = append(framed, r.stash...)
	framed = append(framed, msg...)
	err := r.c.SendMessage(ctx, framed)
	r.stash = nil
	r.state = repWaiting
	return err
}
