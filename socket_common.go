// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/zmtp/internal/conn"
	"code.hybscloud.com/zmtp/internal/mechanism"
	"code.hybscloud.com/zmtp/internal/multipart"
	"code.hybscloud.com/zmtp/internal/permit"
	"code.hybscloud.com/zmtp/internal/session"
	"code.hybscloud.com/zmtp/internal/zap"
)

// Role names a ZMTP socket type, used for both the handshake's
// Socket-Type property and libzmq's peer-compatibility check.
type Role string

const (
	RoleReq    Role = "REQ"
	RoleRep    Role = "REP"
	RoleDealer Role = "DEALER"
	RoleRouter Role = "ROUTER"
	RolePub    Role = "PUB"
	RoleSub    Role = "SUB"
	RoleXPub   Role = "XPUB"
	RoleXSub   Role = "XSUB"
	RolePush   Role = "PUSH"
	RolePull   Role = "PULL"
)

func mechanismKind(cfg Config) mechanism.Kind {
	switch {
	case cfg.CurveServer || cfg.CurveServerKey != ([32]byte{}):
		return mechanism.CURVE
	case cfg.PlainServer || cfg.PlainUsername != "":
		return mechanism.PLAIN
	default:
		return mechanism.NULL
	}
}

func sessionConfig(role Role, cfg Config, asServer bool, peerAddr string) session.Config {
	var zapClient *zap.Client
	if cfg.ZapBackend != nil {
		zapClient = zap.NewClient(cfg.ZapBackend)
	}
	return session.Config{
		LocalSocketType: string(role),
		LocalIdentity:   cfg.RoutingID,
		AsServer:        asServer,
		MechanismKind:   mechanismKind(cfg),
		PlainUsername:   cfg.PlainUsername,
		PlainPassword:   cfg.PlainPassword,
		ZapClient:       zapClient,
		ZapDomain:       cfg.ZapDomain,
		PeerAddress:     peerAddr,
		Curve:           mechanism.DefaultCurve{},
		CurveKeyPair:    mechanism.KeyPair{Public: cfg.CurvePublicKey, Private: cfg.CurveSecretKey},
		CurveServerKey:  cfg.CurveServerKey,
	}
}

func newPermits(cfg Config) permit.Pool {
	if cfg.SendHWM <= 0 {
		return permit.NoOp{}
	}
	return permit.NewBoundedSemaphore(int64(cfg.SendHWM) * int64(maxInt(cfg.MaxMsgSize, 4096)))
}

func newAssembler(cfg Config) *multipart.Assembler {
	return multipart.New(multipart.Limits{
		MaxBytes:  cfg.MaxMsgSize,
		MaxFrames: cfg.MultipartMaxFrames,
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// handshakeResult is what a completed ZMTP handshake gives the caller:
// the live connection plus whatever the peer advertised.
type handshakeResult struct {
	conn           *conn.Conn
	peerIdentity   []byte
	peerSocketType string
}

// handshake wraps rwc, runs the greeting exchange and security
// mechanism to completion, and checks the resulting peer socket type
// against libzmq's compatibility table before handing back a live Conn.
func handshake(ctx context.Context, rwc net.Conn, role Role, cfg Config, asServer bool, mon *monitor, endpoint string) (handshakeResult, error) {
	sc := sessionConfig(role, cfg, asServer, endpoint)
	greeting, mech, err := session.Build(sc)
	if err != nil {
		return handshakeResult{}, WrapError(HandshakeFailure, endpoint, err)
	}

	hsTimeout := cfg.HandshakeTimeout
	if hsTimeout <= 0 {
		hsTimeout = defaultConfig.HandshakeTimeout
	}
	hctx, cancel := context.WithTimeout(ctx, hsTimeout)
	defer cancel()

	c := conn.New(rwc, newPermits(cfg), logrus.NewEntry(logrus.StandardLogger()))
	if _, err := c.Handshake(hctx, greeting, mech); err != nil {
		c.Close()
		wrapped := WrapError(HandshakeFailure, endpoint, err)
		mon.publish(Event{Kind: EventHandshakeFailed, Endpoint: endpoint, Err: wrapped, Timestamp: time.Now()})
		return handshakeResult{}, wrapped
	}
	if !mechanism.Compatible(string(role), mech.PeerSocketType()) {
		c.Close()
		wrapped := WrapError(HandshakeFailure, endpoint,
			fmt.Errorf("peer socket type %q is not compatible with %s", mech.PeerSocketType(), role))
		mon.publish(Event{Kind: EventHandshakeFailed, Endpoint: endpoint, Err: wrapped, Timestamp: time.Now()})
		return handshakeResult{}, wrapped
	}
	mon.publish(Event{Kind: EventConnected, Endpoint: endpoint, PeerID: string(mech.PeerIdentity()), Timestamp: time.Now()})
	return handshakeResult{conn: c, peerIdentity: mech.PeerIdentity(), peerSocketType: mech.PeerSocketType()}, nil
}

// acceptLoop accepts connections from l until Accept fails, handing each
// one to onAccept in its own goroutine. Any Accept error, including the
// one returned once l is closed, publishes EventConnectFailed and ends the
// loop.
func acceptLoop(l net.Listener, mon *monitor, endpoint string, onAccept func(net.Conn)) {
	for {
		rwc, err := l.Accept()
		if err != nil {
			mon.publish(Event{Kind: EventConnectFailed, Endpoint: endpoint, Err: err, Timestamp: time.Now()})
			return
		}
		mon.publish(Event{Kind: EventAccepted, Endpoint: endpoint, Timestamp: time.Now()})
		go onAccept(rwc)
	}
}
