// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/zmtp/internal/multipart"
)

func TestPush_RoundRobinsOverPeers(t *testing.T) {
	a1, b1 := pipePair(t, "PUSH", "PULL")
	a2, b2 := pipePair(t, "PUSH", "PULL")

	push := NewPush()
	push.AddPeer(a1)
	push.AddPeer(a2)

	if err := push.Send(context.Background(), multipart.Message{[]byte("m1")}); err != nil {
		t.Fatal(err)
	}
	if err := push.Send(context.Background(), multipart.Message{[]byte("m2")}); err != nil {
		t.Fatal(err)
	}

	msg1, err := b1.RecvMessage(multipart.New(multipart.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if string(msg1[0]) != "m1" {
		t.Fatalf("peer 1 got %v, want m1", msg1)
	}

	msg2, err := b2.RecvMessage(multipart.New(multipart.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if string(msg2[0]) != "m2" {
		t.Fatalf("peer 2 got %v, want m2", msg2)
	}
}

func TestPush_SendWithNoPeersReturnsClosed(t *testing.T) {
	push := NewPush()
	if err := push.Send(context.Background(), multipart.Message{[]byte("x")}); err != ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestPull_FairQueuesMultiplePeers(t *testing.T) {
	a1, b1 := pipePair(t, "PUSH", "PULL")
	a2, b2 := pipePair(t, "PUSH", "PULL")

	pull := NewPull()
	defer pull.Close()
	pull.AddPeer(b1, multipart.New(multipart.Limits{}))
	pull.AddPeer(b2, multipart.New(multipart.Limits{}))

	if err := a1.SendMessage(context.Background(), multipart.Message{[]byte("from-1")}); err != nil {
		t.Fatal(err)
	}
	if err := a2.SendMessage(context.Background(), multipart.Message{[]byte("from-2")}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		msg, err := pull.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		seen[string(msg[0])] = true
	}
	if !seen["from-1"] || !seen["from-2"] {
		t.Fatalf("seen = %v", seen)
	}
}
