// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mechanism

import (
	"context"
	"errors"

	"code.hybscloud.com/zmtp/internal/wire"
	"code.hybscloud.com/zmtp/internal/zap"
)

var (
	// ErrPlainCredentialsRequired reports a HELLO missing Username/Password.
	ErrPlainCredentialsRequired = errors.New("mechanism: PLAIN HELLO missing Username or Password")
)

type plainState uint8

const (
	plainHelloSent plainState = iota
	plainAwaitWelcome
	plainAwaitHello
	plainAwaitInitiate
	plainAwaitReady
	plainDone
)

// PlainClient drives the client side of the PLAIN handshake: HELLO,
// await WELCOME, INITIATE, await READY.
type PlainClient struct {
	localSocketType string
	localIdentity   []byte
	username        string
	password        string

	state   plainState
	pending [][]byte

	peerSocketType string
	peerIdentity   []byte
}

// NewPlainClient queues a HELLO carrying username/password.
func NewPlainClient(localSocketType string, localIdentity []byte, username, password string) *PlainClient {
	c := &PlainClient{
		localSocketType: localSocketType,
		localIdentity:   localIdentity,
		username:        username,
		password:        password,
		state:           plainHelloSent,
	}
	body, _ := wire.MarshalCommand(wire.Command{
		Name: "HELLO",
		Body: lengthPrefixedPair(username, password),
	})
	c.pending = append(c.pending, body)
	return c
}

func (c *PlainClient) Kind() Kind { return PLAIN }

func (c *PlainClient) OnInbound(_ context.Context, frame wire.Frame) error {
	if !frame.Command {
		return ErrExpectedCommand
	}
	cmd, err := wire.UnmarshalCommand(frame.Body)
	if err != nil {
		return err
	}
	switch c.state {
	case plainHelloSent:
		if cmd.Name == wire.CmdError {
			return ErrAuthenticationDenied
		}
		if cmd.Name != "WELCOME" {
			return ErrUnexpectedCommand
		}
		body, err := readyBody(c.localSocketType, c.localIdentity)
		if err != nil {
			return err
		}
		initiate, err := wire.MarshalCommand(wire.Command{Name: "INITIATE", Body: body})
		if err != nil {
			return err
		}
		c.pending = append(c.pending, initiate)
		c.state = plainAwaitReady
		return nil
	case plainAwaitReady:
		if cmd.Name == wire.CmdError {
			return ErrPeerError
		}
		if cmd.Name != wire.CmdReady {
			return ErrUnexpectedCommand
		}
		st, id, err := parseReady(cmd)
		if err != nil {
			return err
		}
		if !Compatible(c.localSocketType, st) {
			return ErrIncompatibleSocket
		}
		c.peerSocketType = st
		c.peerIdentity = id
		c.state = plainDone
		return nil
	default:
		return ErrHandshakeAlreadyDone
	}
}

func (c *PlainClient) NextOutbound() ([]byte, bool) {
	if len(c.pending) == 0 {
		return nil, false
	}
	out := c.pending[0]
	c.pending = c.pending[1:]
	return out, true
}

func (c *PlainClient) IsDone() bool { return c.state == plainDone }

func (c *PlainClient) PeerIdentity() []byte { return c.peerIdentity }

func (c *PlainClient) PeerSocketType() string { return c.peerSocketType }

// PlainServer drives the server side: await HELLO, gate it on a ZAP
// Backend, WELCOME, await INITIATE, READY.
type PlainServer struct {
	localSocketType string
	localIdentity   []byte
	zapClient       *zap.Client
	domain          string
	peerAddress     string

	state   plainState
	pending [][]byte

	peerSocketType string
	peerIdentity   []byte
}

// NewPlainServer returns a server-side PLAIN mechanism. zapClient may be
// nil, in which case every HELLO is accepted unconditionally (useful for
// tests and for deployments with authentication disabled).
func NewPlainServer(localSocketType string, localIdentity []byte, zapClient *zap.Client, domain, peerAddress string) *PlainServer {
	return &PlainServer{
		localSocketType: localSocketType,
		localIdentity:   localIdentity,
		zapClient:       zapClient,
		domain:          domain,
		peerAddress:     peerAddress,
		state:           plainAwaitHello,
	}
}

func (s *PlainServer) Kind() Kind { return PLAIN }

func (s *PlainServer) OnInbound(ctx context.Context, frame wire.Frame) error {
	if !frame.Command {
		return ErrExpectedCommand
	}
	cmd, err := wire.UnmarshalCommand(frame.Body)
	if err != nil {
		return err
	}
	switch s.state {
	case plainAwaitHello:
		if cmd.Name != "HELLO" {
			return ErrUnexpectedCommand
		}
		username, password, err := parseLengthPrefixedPair(cmd.Body)
		if err != nil {
			return err
		}
		allowed, err := s.authenticate(ctx, username, password)
		if err != nil {
			// A ZAP request that times out or otherwise fails is
			// indistinguishable from a DENY to the peer: it still gets
			// an ERROR command before the connection closes.
			errCmd, _ := wire.MarshalCommand(wire.Command{Name: wire.CmdError, Body: []byte("authentication request failed")})
			s.pending = append(s.pending, errCmd)
			return err
		}
		if !allowed {
			errCmd, _ := wire.MarshalCommand(wire.Command{Name: wire.CmdError, Body: []byte("credentials rejected")})
			s.pending = append(s.pending, errCmd)
			return ErrAuthenticationDenied
		}
		welcome, _ := wire.MarshalCommand(wire.Command{Name: "WELCOME"})
		s.pending = append(s.pending, welcome)
		s.state = plainAwaitInitiate
		return nil
	case plainAwaitInitiate:
		if cmd.Name != "INITIATE" {
			return ErrUnexpectedCommand
		}
		st, id, err := parseReady(cmd)
		if err != nil {
			return err
		}
		if !Compatible(s.localSocketType, st) {
			return ErrIncompatibleSocket
		}
		s.peerSocketType = st
		s.peerIdentity = id
		body, err := readyBody(s.localSocketType, s.localIdentity)
		if err != nil {
			return err
		}
		ready, err := wire.MarshalCommand(wire.Command{Name: wire.CmdReady, Body: body})
		if err != nil {
			return err
		}
		s.pending = append(s.pending, ready)
		s.state = plainDone
		return nil
	default:
		return ErrHandshakeAlreadyDone
	}
}

func (s *PlainServer) authenticate(ctx context.Context, username, password string) (bool, error) {
	if s.zapClient == nil {
		return true, nil
	}
	resp, err := s.zapClient.Request(ctx, zap.Request{
		Domain:      s.domain,
		Address:     s.peerAddress,
		Mechanism:   "PLAIN",
		Credentials: [][]byte{[]byte(username), []byte(password)},
	})
	if err != nil {
		return false, err
	}
	return resp.Allowed(), nil
}

func (s *PlainServer) NextOutbound() ([]byte, bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	out := s.pending[0]
	s.pending = s.pending[1:]
	return out, true
}

func (s *PlainServer) IsDone() bool { return s.state == plainDone }

func (s *PlainServer) PeerIdentity() []byte { return s.peerIdentity }

func (s *PlainServer) PeerSocketType() string { return s.peerSocketType }

// lengthPrefixedPair encodes (username, password) as u8_len+bytes twice,
// the wire form RFC 27 specifies for HELLO.
func lengthPrefixedPair(a, b string) []byte {
	out := make([]byte, 0, 2+len(a)+len(b))
	out = append(out, byte(len(a)))
	out = append(out, a...)
	out = append(out, byte(len(b)))
	out = append(out, b...)
	return out
}

func parseLengthPrefixedPair(body []byte) (a, b string, err error) {
	if len(body) < 1 {
		return "", "", ErrPlainCredentialsRequired
	}
	aLen := int(body[0])
	body = body[1:]
	if len(body) < aLen+1 {
		return "", "", ErrPlainCredentialsRequired
	}
	a = string(body[:aLen])
	body = body[aLen:]
	bLen := int(body[0])
	body = body[1:]
	if len(body) < bLen {
		return "", "", ErrPlainCredentialsRequired
	}
	b = string(body[:bLen])
	return a, b, nil
}
