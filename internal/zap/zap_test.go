// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zap

import (
	"context"
	"testing"
	"time"
)

func TestClient_AllowDeny(t *testing.T) {
	backend := BackendFunc(func(_ context.Context, req Request) (Response, error) {
		if string(req.Credentials[0]) == "secret" {
			return Response{StatusCode: StatusOK, RequestID: req.RequestID}, nil
		}
		return Response{StatusCode: StatusBadRequest, RequestID: req.RequestID}, nil
	})
	c := NewClient(backend)

	resp, err := c.Request(context.Background(), Request{
		Domain:      "global",
		Mechanism:   "PLAIN",
		Credentials: [][]byte{[]byte("secret")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Allowed() {
		t.Fatalf("expected allow, got %+v", resp)
	}

	resp, err = c.Request(context.Background(), Request{
		Credentials: [][]byte{[]byte("wrong")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Allowed() {
		t.Fatalf("expected deny, got %+v", resp)
	}
}

func TestClient_TimesOut(t *testing.T) {
	backend := BackendFunc(func(ctx context.Context, _ Request) (Response, error) {
		<-ctx.Done()
		return Response{}, ctx.Err()
	})
	c := NewClient(backend)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Request(ctx, Request{}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_AssignsRequestID(t *testing.T) {
	var seen string
	backend := BackendFunc(func(_ context.Context, req Request) (Response, error) {
		seen = req.RequestID
		return Response{StatusCode: StatusOK}, nil
	})
	c := NewClient(backend)
	if _, err := c.Request(context.Background(), Request{}); err != nil {
		t.Fatal(err)
	}
	if seen == "" {
		t.Fatal("expected a generated request id")
	}
}
