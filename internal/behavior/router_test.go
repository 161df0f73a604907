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

func TestRouter_SendRoutesByIdentityPrefix(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()

	routerSide, peerSide := pipePair(t, "ROUTER", "DEALER")
	if _, err := h.AddPeer("peer-a", routerSide); err != nil {
		t.Fatal(err)
	}

	router := NewRouter(h, false)
	if err := router.Send(context.Background(), multipart.Message{[]byte("peer-a"), []byte("payload")}); err != nil {
		t.Fatal(err)
	}

	msg, err := peerSide.RecvMessage(multipart.New(multipart.Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) != 1 || string(msg[0]) != "payload" {
		t.Fatalf("got %v", msg)
	}
}

func TestRouter_SendToUnknownDropsSilentlyWhenNotMandatory(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()
	router := NewRouter(h, false)

	if err := router.Send(context.Background(), multipart.Message{[]byte("ghost"), []byte("x")}); err != nil {
		t.Fatalf("err = %v, want nil (silent drop)", err)
	}
}

func TestRouter_SendToUnknownErrorsWhenMandatory(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()
	router := NewRouter(h, true)

	if err := router.Send(context.Background(), multipart.Message{[]byte("ghost"), []byte("x")}); err != hub.ErrUnknownPeer {
		t.Fatalf("err = %v, want hub.ErrUnknownPeer", err)
	}
}

func TestRouter_RecvPrependsPeerIdentity(t *testing.T) {
	h := hub.New(nil, 0)
	defer h.Close()
	router := NewRouter(h, false)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Deliver(ctx, hub.Envelope{PeerID: "peer-b", Msg: multipart.Message{[]byte("hello")}}); err != nil {
		t.Fatal(err)
	}

	msg, err := router.Recv(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg) != 2 || string(msg[0]) != "peer-b" || string(msg[1]) != "hello" {
		t.Fatalf("got %v", msg)
	}
}
