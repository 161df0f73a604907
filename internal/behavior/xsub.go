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
)

// XSubUnsubscribeByte and XSubSubscribeByte are the leading bytes an
// XSUB's data-frame subscription notation uses, shared with whatever
// reads the wire on the XPUB/PUB side of the connection.
const (
	XSubUnsubscribeByte = 0x00
	XSubSubscribeByte   = 0x01
)

// XSub is like Sub, except subscription state is application-driven and
// transmitted as ordinary data frames (first byte 0x01/0x00 followed by
// the prefix) rather than as command frames — the form an XPUB/XSUB pair
// uses between themselves so an intermediary can forward subscriptions
// without understanding ZMTP commands.
type XSub struct {
	c *conn.Conn

	mu       sync.Mutex
	prefixes map[string]int
}

// NewXSub wraps a handshaken connection as an XSUB.
func NewXSub(c *conn.Conn) *XSub {
	return &XSub{c: c, prefixes: make(map[string]int)}
}

func (x *XSub) Subscribe(ctx context.Context, prefix string) error {
	x.mu.Lock()
	x.prefixes[prefix]++
	x.mu.Unlock()
	frame := append([]byte{XSubSubscribeByte}, prefix...)
	return x.c.SendMessage(ctx, multipart.Message{frame})
}

func (x *XSub) Unsubscribe(ctx context.Context, prefix string) error {
	x.mu.Lock()
	if x.prefixes[prefix] > 0 {
		x.prefixes[prefix]--
		if x.prefixes[prefix] == 0 {
			delete(x.prefixes, prefix)
		}
	}
	x.mu.Unlock()
	frame := append([]byte{XSubUnsubscribeByte}, prefix...)
	return x.c.SendMessage(ctx, multipart.Message{frame})
}

func (x *XSub) Recv(asm *multipart.Assembler) (multipart.Message, error) {
	for {
		msg, err := x.c.RecvMessage(asm)
		if err != nil {
			return nil, err
		}
		if len(msg) == 0 {
			continue
		}
		if x.matches(string(msg[0])) {
			return msg, nil
		}
	}
}

func (x *XSub) matches(topic string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	for prefix := range x.prefixes {
		if strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}
