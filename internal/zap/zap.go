// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package zap implements the client side of the ZeroMQ Authentication
// Protocol envelope: the PLAIN server's mechanism handshake issues a
// Request and gates READY on a 200 Response; the CURVE mechanism issues no
// Request. The actual authentication backend is an external collaborator —
// named out of scope for this engine — reached here through the Backend
// interface; this package only owns the request/response shapes, the
// Backend contract, and the RFC's conventional in-process address name
// (LoopbackAddress, zeromq.zap.01). It provides no transport to that
// address.
package zap

import (
	"context"

	"github.com/google/uuid"
)

// Status codes a Response may carry.
const (
	StatusOK          = 200
	StatusTemporary   = 300
	StatusBadRequest  = 400
	StatusInternalErr = 500
)

// Request is one ZAP authentication request.
type Request struct {
	Version     string
	RequestID   string
	Domain      string
	Address     string
	Identity    []byte
	Mechanism   string
	Credentials [][]byte
}

// Response is one ZAP authentication response.
type Response struct {
	Version    string
	RequestID  string
	StatusCode int
	StatusText string
	UserID     string
	Metadata   []byte
}

// Allowed reports whether r grants access.
func (r Response) Allowed() bool { return r.StatusCode == StatusOK }

// NewRequestID returns a fresh request id for a Request, using
// github.com/google/uuid (required by moby/moby's go.mod).
func NewRequestID() string { return uuid.NewString() }

// Backend answers ZAP requests. It is the external authentication
// collaborator this engine treats as out of scope: production code
// wires a real ZAP backend process through some RPC transport; this
// package only needs the contract.
type Backend interface {
	Authenticate(ctx context.Context, req Request) (Response, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, req Request) (Response, error)

func (f BackendFunc) Authenticate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// LoopbackAddress is the conventional ZAP endpoint name from the RFC.
const LoopbackAddress = "zeromq.zap.01"

// Client issues ZAP requests against a Backend, honoring ctx cancellation
// (the mechanism's handshake timeout).
type Client struct {
	backend Backend
}

// NewClient returns a Client that authenticates against backend.
func NewClient(backend Backend) *Client {
	return &Client{backend: backend}
}

// Request issues req and waits for a Response or ctx to end.
func (c *Client) Request(ctx context.Context, req Request) (Response, error) {
	if req.RequestID == "" {
		req.RequestID = NewRequestID()
	}
	if req.Version == "" {
		req.Version = "1.0"
	}

	type result struct {
		resp Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := c.backend.Authenticate(ctx, req)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}
