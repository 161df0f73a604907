// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"

	"code.hybscloud.com/zmtp/internal/hub"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// Pub is send-only: broadcasts to every peer whose subscription prefixes
// match the topic (msg's first frame). It never recvs.
type Pub struct {
	h *hub.Hub
}

// NewPub wraps a Hub as a PUB.
func NewPub(h *hub.Hub) *Pub { return &Pub{h: h} }

func (p *Pub) Send(ctx context.Context, msg multipart.Message) error {
	var topic string
	if len(msg) > 0 {
		topic = string(msg[0])
	}
	p.h.Broadcast(ctx, topic, msg)
	return nil
}
