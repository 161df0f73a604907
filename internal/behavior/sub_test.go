// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/multipart"
)

func TestSub_FiltersUnmatchedTopicsLocally(t *testing.T) {
	pub, subConn := pipePair(t, "PUB", "SUB")
	sub := NewSub(subConn)

	if err := sub.Subscribe(context.Background(), "weather."); err != nil {
		t.Fatal(err)
	}

	// An unfiltered publisher (as if it hadn't tracked the SUBSCRIBE yet)
	// sends both a matching and a non-matching topic; SUB must still only
	// surface the matching one.
	go func() {
		publisher := rawSend(pub)
		publisher(multipart.Message{[]byte("news.sports"), []byte("score")})
		publisher(multipart.Message{[]byte("weather.storm"), []byte("data")})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := recvWithTimeout(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if string(msg[0]) != "weather.storm" {
		t.Fatalf("got topic %q, want weather.storm (news.sports should have been filtered)", msg[0])
	}
}

func rawSend(c *conn.Conn) func(multipart.Message) {
	return func(msg multipart.Message) {
		_ = c.SendMessage(context.Background(), msg)
	}
}

func recvWithTimeout(ctx context.Context, sub *Sub) (multipart.Message, error) {
	type result struct {
		msg multipart.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := sub.Recv(multipart.New(multipart.Limits{}))
		ch <- result{msg, err}
	}()
	select {
	case r := <-ch:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestXSub_SubscribeSendsDataFrameNotation(t *testing.T) {
	pubSideConn, xsubConn := pipePair(t, "PUB", "XSUB")
	xsub := NewXSub(xsubConn)

	if err := xsub.Subscribe(context.Background(), "topic-a"); err != nil {
		t.Fatal(err)
	}

	asm := multipart.New(multipart.Limits{})
	msg, err := pubSideConn.RecvMessage(asm)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) != 1 || len(msg[0]) == 0 {
		t.Fatalf("got %v", msg)
	}
	if msg[0][0] != XSubSubscribeByte {
		t.Fatalf("first byte = %#x, want 0x01", msg[0][0])
	}
	if string(msg[0][1:]) != "topic-a" {
		t.Fatalf("prefix = %q", msg[0][1:])
	}
}
