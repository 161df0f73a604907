// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"strings"
	"sync"

	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/multipart"
	"code.hybscloud.com/zmtp/internal/wire"
)

// Sub is recv-only: Subscribe/Unsubscribe send SUBSCRIBE/CANCEL command
// frames upstream; Recv applies topic filtering locally too, since the
// peer PUB may not have filtered on its side (Open Question 2's "both"
// decision).
type Sub struct {
	c *conn.Conn

	mu       sync.Mutex
	prefixes map[string]int // prefix -> reference count
}

// NewSub wraps a handshaken connection as a SUB.
func NewSub(c *conn.Conn) *Sub {
	return &Sub{c: c, prefixes: make(map[string]int)}
}

func (s *Sub) Subscribe(ctx context.Context, prefix string) error {
	s.mu.Lock()
	s.prefixes[prefix]++
	s.mu.Unlock()
	body, err := wire.MarshalCommand(wire.Command{Name: wire.CmdSubscribe, Body: []byte(prefix)})
	if err != nil {
		return err
	}
	return s.c.WriteFrame(ctx, false, true, body)
}

func (s *Sub) Unsubscribe(ctx context.Context, prefix string) error {
	s.mu.Lock()
	if s.prefixes[prefix] > 0 {
		s.prefixes[prefix]--
		if s.prefixes[prefix] == 0 {
			delete(s.prefixes, prefix)
		}
	}
	s.mu.Unlock()
	body, err := wire.MarshalCommand(wire.Command{Name: wire.CmdCancel, Body: []byte(prefix)})
	if err != nil {
		return err
	}
	return s.c.WriteFrame(ctx, false, true, body)
}

// Recv blocks until a message matching a locally-registered prefix
// arrives, silently discarding anything that doesn't match.
func (s *Sub) Recv(asm *multipart.Assembler) (multipart.Message, error) {
	for {
		msg, err := s.c.RecvMessage(asm)
		if err != nil {
			return nil, err
		}
		if len(msg) == 0 {
			continue
		}
		if s.matches(string(msg[0])) {
			return msg, nil
		}
	}
}

func (s *Sub) matches(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix := range s.prefixes {
		if strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}
