// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session is the sans-I/O glue between a socket's configuration
// and the concrete (greeting, Mechanism) pair a connection actor drives.
// It never touches a transport; Build is a pure function of Config.
package session

import (
	"errors"

	"code.hybscloud.com/zmtp/internal/mechanism"
	"code.hybscloud.com/zmtp/internal/wire"
	"code.hybscloud.com/zmtp/internal/zap"
)

// ErrUnknownMechanism reports a Config.MechanismKind outside {NULL, PLAIN,
// CURVE}.
var ErrUnknownMechanism = errors.New("session: unknown mechanism kind")

// ErrMissingCurveKeys reports a CURVE config missing the keys its role
// needs.
var ErrMissingCurveKeys = errors.New("session: CURVE mechanism requires the appropriate key material")

// Config fully describes one end of a connection's handshake. Which
// fields matter depends on MechanismKind and AsServer.
type Config struct {
	LocalSocketType string
	LocalIdentity   []byte
	AsServer        bool
	MechanismKind   mechanism.Kind

	// PLAIN
	PlainUsername string
	PlainPassword string
	ZapClient     *zap.Client
	ZapDomain     string
	PeerAddress   string

	// CURVE
	Curve          mechanism.Curve
	CurveKeyPair   mechanism.KeyPair // this side's long-term key pair (server) or ignored (client)
	CurveServerKey [32]byte         // the server's long-term public key (client only)
}

// Build constructs the local greeting and the Mechanism that drives the
// handshake described by cfg.
func Build(cfg Config) (wire.Greeting, mechanism.Mechanism, error) {
	greeting := wire.Greeting{
		Major:     3,
		Minor:     1,
		Mechanism: cfg.MechanismKind.String(),
		AsServer:  cfg.AsServer,
	}

	switch cfg.MechanismKind {
	case mechanism.NULL:
		m, err := mechanism.NewNull(cfg.LocalSocketType, cfg.LocalIdentity)
		return greeting, m, err

	case mechanism.PLAIN:
		if cfg.AsServer {
			return greeting, mechanism.NewPlainServer(cfg.LocalSocketType, cfg.LocalIdentity, cfg.ZapClient, cfg.ZapDomain, cfg.PeerAddress), nil
		}
		return greeting, mechanism.NewPlainClient(cfg.LocalSocketType, cfg.LocalIdentity, cfg.PlainUsername, cfg.PlainPassword), nil

	case mechanism.CURVE:
		if cfg.AsServer {
			if cfg.CurveKeyPair.Public == ([32]byte{}) {
				return greeting, nil, ErrMissingCurveKeys
			}
			m, err := mechanism.NewCurveServer(cfg.Curve, cfg.LocalSocketType, cfg.LocalIdentity, cfg.CurveKeyPair)
			return greeting, m, err
		}
		if cfg.CurveServerKey == ([32]byte{}) {
			return greeting, nil, ErrMissingCurveKeys
		}
		m, err := mechanism.NewCurveClient(cfg.Curve, cfg.LocalSocketType, cfg.LocalIdentity, cfg.CurveServerKey)
		return greeting, m, err

	default:
		return greeting, nil, ErrUnknownMechanism
	}
}
