// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"

	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// Dealer is a single-state role: every send enqueues frames verbatim,
// every recv returns the next assembled message, with no envelope
// manipulation. FIFO in each direction.
type Dealer struct {
	c *conn.Conn
}

// NewDealer wraps a handshaken connection as a DEALER.
func NewDealer(c *conn.Conn) *Dealer { return &Dealer{c: c} }

func (d *Dealer) Send(ctx context.Context, msg multipart.Message) error {
	return d.c.SendMessage(ctx, msg)
}

func (d *Dealer) Recv(asm *multipart.Assembler) (multipart.Message, error) {
	return d.c.RecvMessage(asm)
}
