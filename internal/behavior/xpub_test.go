// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package behavior

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/zmtp/internal/hub"
	"code.hybscloud.com/zmtp/internal/multipart"
)

func TestXPub_NonVerboseSurfacesOnlyFirstAndLast(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()
	xpub := NewXPub(h, false)

	xpub.HandleSubscription("p1", true, "topic")  // first subscribe: surfaced
	xpub.HandleSubscription("p2", true, "topic")  // second subscriber, same prefix: not a boundary
	xpub.HandleSubscription("p1", false, "topic") // one subscriber remains: not a boundary
	xpub.HandleSubscription("p2", false, "topic") // last unsubscribe: surfaced

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, err := xpub.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first[0][0] != 0x01 || string(first[0][1:]) != "topic" {
		t.Fatalf("first event = %v", first)
	}

	last, err := xpub.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last[0][0] != 0x00 || string(last[0][1:]) != "topic" {
		t.Fatalf("last event = %v", last)
	}

	// No third event should be queued: the middle two calls were not
	// boundaries.
	shortCtx, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := xpub.Recv(shortCtx); err == nil {
		t.Fatal("expected no further events in non-verbose mode")
	}
}

func TestXPub_VerboseSurfacesEveryEvent(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()
	xpub := NewXPub(h, true)

	xpub.HandleSubscription("p1", true, "topic")
	xpub.HandleSubscription("p2", true, "topic")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := xpub.Recv(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := xpub.Recv(ctx); err != nil {
		t.Fatal("expected a second surfaced event in verbose mode:", err)
	}
}

func TestPub_BroadcastGoesOnlyToMatchingSubscriber(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()

	pubConn, subConn := pipePair(t, "PUB", "SUB")
	if _, err := h.AddPeer("sub1", pubConn); err != nil {
		t.Fatal(err)
	}
	h.Subscribe("sub1", "weather.")

	pub := NewPub(h)
	if err := pub.Send(context.Background(), multipart.Message{[]byte("weather.rain"), []byte("1in")}); err != nil {
		t.Fatal(err)
	}

	msg, err := subConn.RecvMessage(multipart.New(multipart.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) != 2 || string(msg[0]) != "weather.rain" {
		t.Fatalf("got %v", msg)
	}
}
