// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"errors"

	"code.hybscloud.com/zmtp/internal/hub"
	"code.hybscloud.com/zmtp/internal/multipart"
)

// Router is a single-state role backed by a Hub: Recv prepends the
// sending peer's routing identity as the first frame; Send takes the
// first frame as a routing identity, looked up in the hub's peer map. A
// Send to an identity not present in the map is dropped silently unless
// mandatory is set, in which case it returns hub.ErrUnknownPeer.
type Router struct {
	h         *hub.Hub
	mandatory bool
}

// NewRouter wraps a Hub as a ROUTER. mandatory mirrors the router_mandatory
// socket option.
func NewRouter(h *hub.Hub, mandatory bool) *Router {
	return &Router{h: h, mandatory: mandatory}
}

func (r *Router) Send(ctx context.Context, msg multipart.Message) error {
	if len(msg) < 1 {
		return ErrProtocolViolation
	}
	id := string(msg[0])
	err := r.h.SendTo(ctx, id, msg[1:])
	if errors.Is(err, hub.ErrUnknownPeer) && !r.mandatory {
		return nil
	}
	return err
}

// Recv returns the next fair-queued inbound message with the sending
// peer's identity prepended as the first frame.
func (r *Router) Recv(ctx context.Context) (multipart.Message, error) {
	select {
	case env := <-r.h.Mailbox():
		out := make(multipart.Message, 0, len(env.Msg)+1)
		out = append(out, []byte(env.PeerID))
		out = append(out, env.Msg...)
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
