// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Transport names the network family an Endpoint addresses.
type Transport int

const (
	TransportTCP Transport = iota
	TransportIPC
)

// Endpoint is a parsed tcp:// or ipc:// address, mirroring the original
// engine's endpoint grammar (tcp://host:port, ipc:///path/to/socket).
type Endpoint struct {
	Transport Transport
	Addr      string // host:port for TCP, filesystem path for IPC
}

func (e Endpoint) String() string {
	switch e.Transport {
	case TransportIPC:
		return "ipc://" + e.Addr
	default:
		return "tcp://" + e.Addr
	}
}

func (e Endpoint) network() string {
	if e.Transport == TransportIPC {
		return "unix"
	}
	return "tcp"
}

// ParseEndpoint parses s as tcp://host:port or ipc:///path. Any other
// scheme, or a missing address, is a protocol violation.
func ParseEndpoint(s string) (Endpoint, error) {
	if addr, ok := strings.CutPrefix(s, "tcp://"); ok {
		if addr == "" {
			return Endpoint{}, WrapError(ProtocolViolation, s, fmt.Errorf("empty tcp address"))
		}
		return Endpoint{Transport: TransportTCP, Addr: addr}, nil
	}
	if path, ok := strings.CutPrefix(s, "ipc://"); ok {
		if path == "" {
			return Endpoint{}, WrapError(ProtocolViolation, s, fmt.Errorf("empty ipc path"))
		}
		return Endpoint{Transport: TransportIPC, Addr: path}, nil
	}
	return Endpoint{}, WrapError(ProtocolViolation, s, fmt.Errorf("unsupported scheme, want tcp:// or ipc://"))
}

// dial opens a transport connection to endpoint, honoring ctx cancellation,
// and applies cfg's TCP_NODELAY/keepalive options when it's a TCP endpoint.
func dial(ctx context.Context, endpoint string, cfg Config) (net.Conn, error) {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, ep.network(), ep.Addr)
	if err != nil {
		return nil, WrapError(Transport, endpoint, err)
	}
	applyTCPOptions(conn, cfg)
	return conn, nil
}

// listen opens a listener on endpoint.
func listen(endpoint string) (net.Listener, error) {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen(ep.network(), ep.Addr)
	if err != nil {
		return nil, WrapError(Transport, endpoint, err)
	}
	return l, nil
}

// applyTCPOptions configures TCP_NODELAY (always enabled, per spec.md §6)
// and keepalive behavior on c per cfg, when c is a *net.TCPConn. IPC (Unix
// domain) connections have no such options and are left untouched; errors
// are best-effort, mirroring dittofs's own accept-path SetNoDelay call.
func applyTCPOptions(c net.Conn, cfg Config) {
	tcp, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tcp.SetNoDelay(true)
	switch cfg.TCPKeepalive {
	case 0:
		_ = tcp.SetKeepAlive(false)
	case 1:
		_ = tcp.SetKeepAlive(true)
		if cfg.TCPKeepaliveIdle > 0 || cfg.TCPKeepaliveIntvl > 0 || cfg.TCPKeepaliveCnt > 0 {
			_ = tcp.SetKeepAliveConfig(net.KeepAliveConfig{
				Enable:   true,
				Idle:     time.Duration(cfg.TCPKeepaliveIdle) * time.Second,
				Interval: time.Duration(cfg.TCPKeepaliveIntvl) * time.Second,
				Count:    cfg.TCPKeepaliveCnt,
			})
		}
	default:
		// -1: leave the system default alone.
	}
}
