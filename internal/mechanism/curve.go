// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mechanism

import (
	"context"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/nacl/box"

	"code.hybscloud.com/zmtp/internal/wire"
)

// KeyPair is a CURVE long-term or ephemeral key pair.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair returns a fresh Curve25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: *pub, Private: *priv}, nil
}

// Curve performs the authenticated-encryption primitive the CURVE
// mechanism needs. The handshake state machines below only ever call
// through this interface, never touch Curve25519/Salsa20/Poly1305 bytes
// directly, so a caller may substitute a hardware-backed or test double
// implementation. DefaultCurve delegates to golang.org/x/crypto/nacl/box.
type Curve interface {
	Seal(message []byte, nonce *[24]byte, peerPublic, localPrivate *[32]byte) []byte
	Open(boxed []byte, nonce *[24]byte, peerPublic, localPrivate *[32]byte) ([]byte, bool)
}

// DefaultCurve is the production Curve, backed by nacl/box.
type DefaultCurve struct{}

func (DefaultCurve) Seal(message []byte, nonce *[24]byte, peerPublic, localPrivate *[32]byte) []byte {
	return box.Seal(nil, message, nonce, peerPublic, localPrivate)
}

func (DefaultCurve) Open(boxed []byte, nonce *[24]byte, peerPublic, localPrivate *[32]byte) ([]byte, bool) {
	return box.Open(nil, boxed, nonce, peerPublic, localPrivate)
}

var (
	ErrCurveBadBox    = errors.New("mechanism: CURVE box failed to open (bad key or corrupted frame)")
	ErrCurveShortBody = errors.New("mechanism: CURVE command body too short")
)

func randomNonce() (*[24]byte, error) {
	var n [24]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, err
	}
	return &n, nil
}

// sealedCommand builds a command whose body is nonce||ciphertext.
func sealedCommand(c Curve, name string, message []byte, peerPublic, localPrivate *[32]byte) ([]byte, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	sealed := c.Seal(message, nonce, peerPublic, localPrivate)
	body := append(append([]byte{}, nonce[:]...), sealed...)
	return wire.MarshalCommand(wire.Command{Name: name, Body: body})
}

func openSealed(c Curve, body []byte, peerPublic, localPrivate *[32]byte) ([]byte, error) {
	if len(body) < 24 {
		return nil, ErrCurveShortBody
	}
	var nonce [24]byte
	copy(nonce[:], body[:24])
	plain, ok := c.Open(body[24:], &nonce, peerPublic, localPrivate)
	if !ok {
		return nil, ErrCurveBadBox
	}
	return plain, nil
}

type curveState uint8

const (
	curveHelloSent curveState = iota
	curveAwaitWelcome
	curveAwaitHello
	curveAwaitInitiate
	curveAwaitReady
	curveDone
)

// CurveClient drives the client side of a simplified CURVE envelope:
// plaintext HELLO carrying the client's ephemeral public key, an
// encrypted WELCOME carrying the server's ephemeral public key, an
// encrypted INITIATE carrying the client's READY-equivalent metadata, and
// an encrypted READY from the server. Full CurveZMQ additionally signs a
// long-term-key vouch inside INITIATE; that vouch plumbing is left to a
// higher layer that has a certificate store to check against.
type CurveClient struct {
	curve           Curve
	localSocketType string
	localIdentity   []byte
	ephemeral       KeyPair
	serverLongTerm  [32]byte

	state          curveState
	pending        [][]byte
	serverEphemeral [32]byte

	peerSocketType string
	peerIdentity   []byte
}

// NewCurveClient queues a plaintext HELLO containing an ephemeral public
// key, to be encrypted against in subsequent exchanges with serverLongTerm.
func NewCurveClient(curve Curve, localSocketType string, localIdentity []byte, serverLongTerm [32]byte) (*CurveClient, error) {
	if curve == nil {
		curve = DefaultCurve{}
	}
	eph, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	c := &CurveClient{
		curve:           curve,
		localSocketType: localSocketType,
		localIdentity:   localIdentity,
		ephemeral:       eph,
		serverLongTerm:  serverLongTerm,
		state:           curveHelloSent,
	}
	hello, err := wire.MarshalCommand(wire.Command{Name: "HELLO", Body: eph.Public[:]})
	if err != nil {
		return nil, err
	}
	c.pending = append(c.pending, hello)
	return c, nil
}

func (c *CurveClient) Kind() Kind { return CURVE }

func (c *CurveClient) OnInbound(_ context.Context, frame wire.Frame) error {
	if !frame.Command {
		return ErrExpectedCommand
	}
	cmd, err := wire.UnmarshalCommand(frame.Body)
	if err != nil {
		return err
	}
	switch c.state {
	case curveHelloSent:
		if cmd.Name == wire.CmdError {
			return ErrPeerError
		}
		if cmd.Name != "WELCOME" {
			return ErrUnexpectedCommand
		}
		plain, err := openSealed(c.curve, cmd.Body, &c.serverLongTerm, &c.ephemeral.Private)
		if err != nil {
			return err
		}
		if len(plain) != 32 {
			return ErrCurveShortBody
		}
		copy(c.serverEphemeral[:], plain)

		body, err := propsBody(c.localSocketType, c.localIdentity)
		if err != nil {
			return err
		}
		initiate, err := sealedCommand(c.curve, "INITIATE", body, &c.serverEphemeral, &c.ephemeral.Private)
		if err != nil {
			return err
		}
		c.pending = append(c.pending, initiate)
		c.state = curveAwaitReady
		return nil
	case curveAwaitReady:
		if cmd.Name == wire.CmdError {
			return ErrPeerError
		}
		if cmd.Name != wire.CmdReady {
			return ErrUnexpectedCommand
		}
		plain, err := openSealed(c.curve, cmd.Body, &c.serverEphemeral, &c.ephemeral.Private)
		if err != nil {
			return err
		}
		st, id, err := parseProps(plain)
		if err != nil {
			return err
		}
		if !Compatible(c.localSocketType, st) {
			return ErrIncompatibleSocket
		}
		c.peerSocketType = st
		c.peerIdentity = id
		c.state = curveDone
		return nil
	default:
		return ErrHandshakeAlreadyDone
	}
}

func (c *CurveClient) NextOutbound() ([]byte, bool) {
	if len(c.pending) == 0 {
		return nil, false
	}
	out := c.pending[0]
	c.pending = c.pending[1:]
	return out, true
}

func (c *CurveClient) IsDone() bool { return c.state == curveDone }

func (c *CurveClient) PeerIdentity() []byte { return c.peerIdentity }

func (c *CurveClient) PeerSocketType() string { return c.peerSocketType }

// CurveServer drives the server side of the envelope: await HELLO, send
// an encrypted WELCOME carrying a fresh ephemeral key, await an encrypted
// INITIATE, send an encrypted READY.
type CurveServer struct {
	curve           Curve
	localSocketType string
	localIdentity   []byte
	longTerm        KeyPair
	ephemeral       KeyPair

	state           curveState
	pending         [][]byte
	clientEphemeral [32]byte

	peerSocketType string
	peerIdentity   []byte
}

// NewCurveServer returns a server-side CURVE mechanism bound to longTerm,
// its long-term key pair.
func NewCurveServer(curve Curve, localSocketType string, localIdentity []byte, longTerm KeyPair) (*CurveServer, error) {
	if curve == nil {
		curve = DefaultCurve{}
	}
	eph, err := GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &CurveServer{
		curve:           curve,
		localSocketType: localSocketType,
		localIdentity:   localIdentity,
		longTerm:        longTerm,
		ephemeral:       eph,
		state:           curveAwaitHello,
	}, nil
}

func (s *CurveServer) Kind() Kind { return CURVE }

func (s *CurveServer) OnInbound(_ context.Context, frame wire.Frame) error {
	if !frame.Command {
		return ErrExpectedCommand
	}
	cmd, err := wire.UnmarshalCommand(frame.Body)
	if err != nil {
		return err
	}
	switch s.state {
	case curveAwaitHello:
		if cmd.Name != "HELLO" {
			return ErrUnexpectedCommand
		}
		if len(cmd.Body) != 32 {
			return ErrCurveShortBody
		}
		copy(s.clientEphemeral[:], cmd.Body)

		welcome, err := sealedCommand(s.curve, "WELCOME", s.ephemeral.Public[:], &s.clientEphemeral, &s.longTerm.Private)
		if err != nil {
			return err
		}
		s.pending = append(s.pending, welcome)
		s.state = curveAwaitInitiate
		return nil
	case curveAwaitInitiate:
		if cmd.Name != "INITIATE" {
			return ErrUnexpectedCommand
		}
		plain, err := openSealed(s.curve, cmd.Body, &s.clientEphemeral, &s.ephemeral.Private)
		if err != nil {
			return err
		}
		st, id, err := parseProps(plain)
		if err != nil {
			return err
		}
		if !Compatible(s.localSocketType, st) {
			return ErrIncompatibleSocket
		}
		s.peerSocketType = st
		s.peerIdentity = id

		body, err := propsBody(s.localSocketType, s.localIdentity)
		if err != nil {
			return err
		}
		ready, err := sealedCommand(s.curve, wire.CmdReady, body, &s.clientEphemeral, &s.ephemeral.Private)
		if err != nil {
			return err
		}
		s.pending = append(s.pending, ready)
		s.state = curveDone
		return nil
	default:
		return ErrHandshakeAlreadyDone
	}
}

func (s *CurveServer) NextOutbound() ([]byte, bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	out := s.pending[0]
	s.pending = s.pending[1:]
	return out, true
}

func (s *CurveServer) IsDone() bool { return s.state == curveDone }

func (s *CurveServer) PeerIdentity() []byte { return s.peerIdentity }

func (s *CurveServer) PeerSocketType() string { return s.peerSocketType }
