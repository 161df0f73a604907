// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package zmtp

import (
	"time"

	"github.com/go-playground/validator/v10"

	"code.hybscloud.com/zmtp/internal/zap"
)

// Config holds every socket option from the wire-level spec (§6), built
// the same way the teacher's Options is: a struct assembled through
// With*(...)  Option constructors over a package-level default
// (defaultConfig). The zero value does not pass ValidateConfig, since
// HandshakeTimeout must be positive.
type Config struct {
	SendHWM int `validate:"gte=0"` // messages; 0 = unbounded
	RecvHWM int `validate:"gte=0"`

	HandshakeTimeout time.Duration `validate:"gt=0"`
	SendTimeout      time.Duration // 0 = no timeout
	RecvTimeout      time.Duration

	RoutingID []byte `validate:"max=255"`

	RouterMandatory bool
	ReqCorrelate    bool
	ReqRelaxed      bool

	IPv6 bool

	TCPKeepalive      int `validate:"oneof=-1 0 1"` // -1 = system default, 0 = off, 1 = on
	TCPKeepaliveCnt   int `validate:"gte=0"`
	TCPKeepaliveIdle  int `validate:"gte=0"`
	TCPKeepaliveIntvl int `validate:"gte=0"`

	MaxMsgSize         int `validate:"gte=0"` // bytes; 0 = unbounded
	MultipartMaxFrames int `validate:"gte=0"` // 0 = unbounded

	PlainServer   bool
	PlainUsername string
	PlainPassword string

	CurveServer    bool
	CurveServerKey [32]byte
	CurvePublicKey [32]byte
	CurveSecretKey [32]byte

	ZapDomain string

	// ZapBackend, when set, gates the PLAIN server's READY on a ZAP
	// authentication round trip against this backend instead of accepting
	// every peer. CURVE handshakes issue no ZAP request, set or not. Nil
	// means no ZAP check is performed, matching libzmq's default.
	ZapBackend zap.Backend `validate:"-"`
}

var defaultConfig = Config{
	SendHWM:          1000,
	RecvHWM:          1000,
	HandshakeTimeout: 30 * time.Second,
	TCPKeepalive:     -1,
	MaxMsgSize:       0,
}

// validate is shared across every Config-consuming constructor; a single
// *validator.Validate is safe for concurrent use once built, per its own
// documentation, so one package-level instance suffices.
var validate = validator.New()

// ValidateConfig runs struct-tag validation over cfg (byte-length caps,
// enum checks, non-negative bounds) the way the teacher's Options never
// needed to, since none of its fields cross-validate.
func ValidateConfig(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return WrapError(ProtocolViolation, "", err)
	}
	return nil
}

// Option configures a Config at construction time.
type Option func(*Config)

func WithSendHWM(n int) Option { return func(c *Config) { c.SendHWM = n } }
func WithRecvHWM(n int) Option { return func(c *Config) { c.RecvHWM = n } }

func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) { c.HandshakeTimeout = d }
}

func WithSendTimeout(d time.Duration) Option { return func(c *Config) { c.SendTimeout = d } }
func WithRecvTimeout(d time.Duration) Option { return func(c *Config) { c.RecvTimeout = d } }

func WithRoutingID(id []byte) Option {
	return func(c *Config) { c.RoutingID = append([]byte(nil), id...) }
}

// WithRouterMandatory toggles ROUTER's unknown-identity-send behavior
// between a silent drop (false, the default) and a user-visible error
// (true).
func WithRouterMandatory(mandatory bool) Option {
	return func(c *Config) { c.RouterMandatory = mandatory }
}

func WithReqCorrelate(b bool) Option { return func(c *Config) { c.ReqCorrelate = b } }
func WithReqRelaxed(b bool) Option   { return func(c *Config) { c.ReqRelaxed = b } }

func WithIPv6(b bool) Option { return func(c *Config) { c.IPv6 = b } }

func WithTCPKeepalive(mode int) Option { return func(c *Config) { c.TCPKeepalive = mode } }

func WithTCPKeepaliveParams(cnt, idle, intvl int) Option {
	return func(c *Config) {
		c.TCPKeepaliveCnt = cnt
		c.TCPKeepaliveIdle = idle
		c.TCPKeepaliveIntvl = intvl
	}
}

func WithMaxMsgSize(n int) Option         { return func(c *Config) { c.MaxMsgSize = n } }
func WithMultipartMaxFrames(n int) Option { return func(c *Config) { c.MultipartMaxFrames = n } }

func WithPlainServer(username, password string) Option {
	return func(c *Config) {
		c.PlainServer = true
		c.PlainUsername = username
		c.PlainPassword = password
	}
}

func WithPlainClient(username, password string) Option {
	return func(c *Config) {
		c.PlainServer = false
		c.PlainUsername = username
		c.PlainPassword = password
	}
}

func WithCurveServer(secretKey [32]byte) Option {
	return func(c *Config) {
		c.CurveServer = true
		c.CurveSecretKey = secretKey
	}
}

func WithCurveClient(serverKey, publicKey, secretKey [32]byte) Option {
	return func(c *Config) {
		c.CurveServer = false
		c.CurveServerKey = serverKey
		c.CurvePublicKey = publicKey
		c.CurveSecretKey = secretKey
	}
}

func WithZapDomain(domain string) Option { return func(c *Config) { c.ZapDomain = domain } }

// WithZapBackend wires an authentication backend that every PLAIN server
// handshake's READY is gated on; CURVE handshakes do not consult it. Use
// zap.BackendFunc to adapt a plain function, or any Backend implementation
// reaching a real ZAP authenticator (this module ships no such transport).
func WithZapBackend(backend zap.Backend) Option {
	return func(c *Config) { c.ZapBackend = backend }
}

// buildConfig applies opts over defaultConfig and validates the result.
func buildConfig(opts []Option) (Config, error) {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
