// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/zmtp/internal/multipart"
)

type fakePeer struct {
	mu       sync.Mutex
	received []multipart.Message
	closed   bool
	failNext bool
}

func (p *fakePeer) SendMessage(_ context.Context, msg multipart.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext {
		return errClosedFake
	}
	p.received = append(p.received, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) snapshot() []multipart.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]multipart.Message(nil), p.received...)
}

// blockingPeer holds its first SendMessage open until release is closed,
// so a test can assert a concurrent second Broadcast is dropped at HWM
// rather than queued behind it.
type blockingPeer struct {
	mu       sync.Mutex
	received []multipart.Message
	entered  chan struct{}
	once     sync.Once
	release  chan struct{}
}

func (p *blockingPeer) SendMessage(_ context.Context, msg multipart.Message) error {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, msg)
	return nil
}

func (p *blockingPeer) Close() error { return nil }

func (p *blockingPeer) snapshot() []multipart.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]multipart.Message(nil), p.received...)
}

var errClosedFake = &fakeErr{"fake peer unreachable"}

type fakeErr struct{ s string }

func (e *fakeErr) Error() string { return e.s }

func TestHub_AddPeerMintsIdentityWhenEmpty(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	id, err := h.AddPeer("", &fakePeer{})
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 5 || id[0] != 0x00 {
		t.Fatalf("minted id = % x", id)
	}
}

func TestHub_AddPeerRejectsDuplicate(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	if _, err := h.AddPeer("A", &fakePeer{}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.AddPeer("A", &fakePeer{}); err == nil {
		t.Fatal("expected duplicate identity error")
	}
}

func TestHub_SendToUnknownPeer(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	if err := h.SendTo(context.Background(), "ghost", multipart.Message{[]byte("x")}); err != ErrUnknownPeer {
		t.Fatalf("err = %v, want ErrUnknownPeer", err)
	}
}

func TestHub_SendToRoutesByIdentity(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	target := &fakePeer{}
	if _, err := h.AddPeer("target", target); err != nil {
		t.Fatal(err)
	}
	if err := h.SendTo(context.Background(), "target", multipart.Message{[]byte("hi")}); err != nil {
		t.Fatal(err)
	}
	got := target.snapshot()
	if len(got) != 1 || string(got[0][0]) != "hi" {
		t.Fatalf("got %v", got)
	}
}

func TestHub_BroadcastMatchesSubscribers(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	weather := &fakePeer{}
	news := &fakePeer{}
	if _, err := h.AddPeer("weather-sub", weather); err != nil {
		t.Fatal(err)
	}
	if _, err := h.AddPeer("news-sub", news); err != nil {
		t.Fatal(err)
	}
	h.Subscribe("weather-sub", "weather.")
	h.Subscribe("news-sub", "news.")

	h.Broadcast(context.Background(), "weather.storm", multipart.Message{[]byte("weather.storm"), []byte("data")})

	if got := weather.snapshot(); len(got) != 1 {
		t.Fatalf("weather subscriber got %v", got)
	}
	if got := news.snapshot(); len(got) != 0 {
		t.Fatalf("news subscriber got %v, want none", got)
	}
}

func TestHub_BroadcastSkipsFailingSubscriberWithoutAbortingOthers(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	bad := &fakePeer{failNext: true}
	good := &fakePeer{}
	if _, err := h.AddPeer("bad", bad); err != nil {
		t.Fatal(err)
	}
	if _, err := h.AddPeer("good", good); err != nil {
		t.Fatal(err)
	}
	h.Subscribe("bad", "")
	h.Subscribe("good", "")

	h.Broadcast(context.Background(), "anything", multipart.Message{[]byte("anything")})

	if got := good.snapshot(); len(got) != 1 {
		t.Fatalf("good subscriber got %v, want 1 delivery", got)
	}
}

func TestHub_RemovePeerSweepsSubscriptions(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	p := &fakePeer{}
	if _, err := h.AddPeer("p", p); err != nil {
		t.Fatal(err)
	}
	h.Subscribe("p", "topic")
	h.RemovePeer("p")

	if h.Lookup("p") {
		t.Fatal("expected peer removed")
	}
	// Re-add under the same id and confirm the stale subscription is gone.
	p2 := &fakePeer{}
	if _, err := h.AddPeer("p", p2); err != nil {
		t.Fatal(err)
	}
	h.Broadcast(context.Background(), "topicX", multipart.Message{[]byte("topicX")})
	if got := p2.snapshot(); len(got) != 0 {
		t.Fatalf("expected no stale-subscription delivery, got %v", got)
	}
}

func TestHub_MailboxDeliverAndDrain(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Deliver(ctx, Envelope{PeerID: "p1", Msg: multipart.Message{[]byte("m")}}); err != nil {
		t.Fatal(err)
	}

	select {
	case env := <-h.Mailbox():
		if env.PeerID != "p1" {
			t.Fatalf("got peer %q", env.PeerID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for mailbox delivery")
	}
}

func TestHub_BroadcastDropsAtSubscriberHWM(t *testing.T) {
	h := New(nil, 1)
	defer h.Close()

	slow := &blockingPeer{release: make(chan struct{}), entered: make(chan struct{})}
	if _, err := h.AddPeer("slow", slow); err != nil {
		t.Fatal(err)
	}
	h.Subscribe("slow", "")

	done := make(chan struct{})
	go func() {
		h.Broadcast(context.Background(), "t1", multipart.Message{[]byte("t1")})
		close(done)
	}()
	<-slow.entered

	// A second broadcast arriving while the first send is still in flight
	// must be dropped rather than queued or blocked on, since the
	// subscriber's HWM of 1 outstanding send is already claimed.
	h.Broadcast(context.Background(), "t2", multipart.Message{[]byte("t2")})

	close(slow.release)
	<-done

	if got := slow.snapshot(); len(got) != 1 {
		t.Fatalf("slow subscriber got %d deliveries, want exactly 1 (second should drop at HWM)", len(got))
	}
}

func TestHub_EventsPublishesLifecycle(t *testing.T) {
	h := New(nil, 0)
	defer h.Close()

	ch := h.Events()
	defer h.Evict(ch)

	if _, err := h.AddPeer("e1", &fakePeer{}); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-ch:
		ev, ok := v.(Event)
		if !ok || ev.Kind != PeerConnected || ev.PeerID != "e1" {
			t.Fatalf("got %#v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for PeerConnected event")
	}
}
