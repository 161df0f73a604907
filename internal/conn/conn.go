// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conn drives one ZMTP connection's byte-level protocol: the
// greeting exchange, feeding inbound bytes through the mechanism handshake,
// and, once READY, reading and writing multipart messages. It is the only
// package that touches an io.ReadWriteCloser directly; everything above it
// (behavior, hub, the zmtp facade) works in terms of multipart.Message.
//
// Reads and writes run as independent pumps. A write call acquires its byte
// permit and hands the encoded frame to a background write-pump goroutine,
// then returns immediately; the pump does the actual, possibly-blocking,
// transport write and reports failures through LastWriteError. This is
// what lets both sides of a handshake emit their greeting and queued
// commands without either one blocking on the other's read loop first —
// on a fully synchronous transport (net.Pipe, a Unix socketpair under
// MSG_WAITALL) a naive write-then-read greeting exchange deadlocks, since
// neither side's first write can complete until the other side reads.
//
// Every blocking point on the transport (greeting read, frame fill, frame
// write) is non-blocking-first: a rwc that surfaces code.hybscloud.com/iox's
// ErrWouldBlock is retried according to the Conn's retry policy
// (WithBlock/WithNonblock/WithRetryDelay) rather than treated as a hard
// failure, the same convention the teacher's framer uses for its own
// transport-agnostic I/O.
package conn

import (
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/zmtp/internal/buffer"
	"code.hybscloud.com/zmtp/internal/mechanism"
	"code.hybscloud.com/zmtp/internal/multipart"
	"code.hybscloud.com/zmtp/internal/permit"
	"code.hybscloud.com/zmtp/internal/wire"
)

// ErrHandshakeTimedOut is returned when a handshake does not converge
// before ctx is done.
var ErrHandshakeTimedOut = errors.New("conn: handshake did not complete before context was done")

// ErrClosed reports that a write was attempted after Close, or after the
// write pump observed a transport failure.
var ErrClosed = errors.New("conn: connection closed")

// readChunk is the size of each underlying Read call feeding the inbound
// SegmentedBuffer.
const readChunk = 32 * 1024

// Option configures a Conn at construction time.
type Option func(*Conn)

// WithRetryDelay sets the retry policy used when the underlying transport
// surfaces iox.ErrWouldBlock: negative means propagate it immediately
// (nonblock), zero means yield (runtime.Gosched) and retry, positive means
// sleep for the duration and retry. Mirrors the teacher's own
// RetryDelay/WithBlock/WithNonblock convention.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Conn) { c.retryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on
// iox.ErrWouldBlock. This is the default, since a ZMTP connection actor
// always wants eventual completion rather than a non-blocking bailout.
func WithBlock() Option {
	return func(c *Conn) { c.retryDelay = 0 }
}

// WithNonblock forces iox.ErrWouldBlock to propagate to the caller
// immediately instead of being retried.
func WithNonblock() Option {
	return func(c *Conn) { c.retryDelay = -1 }
}

type writeJob struct {
	buf    []byte
	permit int64 // bytes to release once the write completes; 0 if unmetered
}

// Conn wraps one transport connection (a net.Conn, an in-process pipe, or
// any io.ReadWriteCloser) with ZMTP framing. ReadFrame/RecvMessage must be
// called from a single goroutine at a time; WriteFrame/SendMessage may be
// called concurrently with reads and with each other.
type Conn struct {
	rwc     io.ReadWriteCloser
	in      buffer.SegmentedBuffer
	permits permit.Pool
	log     *logrus.Entry

	outbox    chan writeJob
	stop      chan struct{}
	closeOnce sync.Once
	writeErr  atomic.Value // error

	retryDelay  time.Duration
	readScratch [readChunk]byte
}

// New wraps rwc and starts its write pump. permits may be nil, in which
// case writes are never backpressured (equivalent to permit.NoOp{}). log
// may be nil, in which case a disabled logger is used. By default,
// iox.ErrWouldBlock from rwc is retried (WithBlock); pass WithNonblock or
// WithRetryDelay to change that.
func New(rwc io.ReadWriteCloser, permits permit.Pool, log *logrus.Entry, opts ...Option) *Conn {
	if permits == nil {
		permits = permit.NoOp{}
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = logrus.NewEntry(discard)
	}
	c := &Conn{
		rwc:        rwc,
		permits:    permits,
		log:        log,
		outbox:     make(chan writeJob, 16),
		stop:       make(chan struct{}),
		retryDelay: 0,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.writePump()
	return c
}

// retryOnWouldBlock runs op until it succeeds, fails with something other
// than iox.ErrWouldBlock, or c.retryDelay says not to retry at all.
func (c *Conn) retryOnWouldBlock(op func() (int, error)) (int, error) {
	for {
		n, err := op()
		if !errors.Is(err, iox.ErrWouldBlock) {
			return n, err
		}
		if c.retryDelay < 0 {
			return n, err
		}
		if c.retryDelay == 0 {
			runtime.Gosched()
		} else {
			time.Sleep(c.retryDelay)
		}
	}
}

func (c *Conn) writePump() {
	for {
		select {
		case job := <-c.outbox:
			_, err := c.retryOnWouldBlock(func() (int, error) { return c.rwc.Write(job.buf) })
			if job.permit > 0 {
				c.permits.Release(job.permit)
			}
			if err != nil {
				c.writeErr.Store(err)
				c.log.WithError(err).Warn("write pump: transport write failed")
				c.closeOnce.Do(func() { close(c.stop) })
				return
			}
		case <-c.stop:
			return
		}
	}
}

// LastWriteError returns the error that stopped the write pump, if any.
func (c *Conn) LastWriteError() error {
	if v := c.writeErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Close stops the write pump and closes the underlying transport.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return c.rwc.Close()
}

// writeRaw hands buf to the write pump and returns once it has been
// enqueued (not once the transport write has completed).
func (c *Conn) writeRaw(ctx context.Context, buf []byte, acquirePermit bool) error {
	if err := c.LastWriteError(); err != nil {
		return err
	}
	var n int64
	if acquirePermit {
		n = int64(len(buf))
		if err := c.permits.Acquire(ctx, n); err != nil {
			return err
		}
	}
	select {
	case c.outbox <- writeJob{buf: buf, permit: n}:
		return nil
	case <-ctx.Done():
		if acquirePermit {
			c.permits.Release(n)
		}
		return ctx.Err()
	case <-c.stop:
		if acquirePermit {
			c.permits.Release(n)
		}
		if err := c.LastWriteError(); err != nil {
			return err
		}
		return ErrClosed
	}
}

// SendGreeting queues g for writing; the greeting is exempt from the byte
// budget since exactly one is sent per connection.
func (c *Conn) SendGreeting(g wire.Greeting) error {
	buf, err := wire.Emit(g)
	if err != nil {
		return err
	}
	return c.writeRaw(context.Background(), buf, false)
}

// ReadGreeting blocks until a full 64-byte greeting has been read,
// retrying on iox.ErrWouldBlock per c.retryDelay.
func (c *Conn) ReadGreeting() (wire.Greeting, error) {
	var buf [wire.GreetingLen]byte
	read := 0
	for read < len(buf) {
		n, err := c.retryOnWouldBlock(func() (int, error) { return c.rwc.Read(buf[read:]) })
		read += n
		if err != nil {
			if err == io.EOF && read == len(buf) {
				break
			}
			return wire.Greeting{}, err
		}
	}
	return wire.Parse(buf[:])
}

// fill reads one chunk from the transport into the inbound buffer,
// retrying on iox.ErrWouldBlock per c.retryDelay.
func (c *Conn) fill() error {
	n, err := c.retryOnWouldBlock(func() (int, error) { return c.rwc.Read(c.readScratch[:]) })
	if n > 0 {
		c.in.Push(append([]byte(nil), c.readScratch[:n]...))
	}
	return err
}

// ReadFrame blocks until one complete wire frame is available, reading
// from the transport as needed.
func (c *Conn) ReadFrame() (wire.Frame, error) {
	for {
		frame, err := wire.Decode(&c.in)
		if err == nil {
			return frame, nil
		}
		if err != wire.ErrNeedMore {
			return wire.Frame{}, err
		}
		if fillErr := c.fill(); fillErr != nil {
			return wire.Frame{}, fillErr
		}
	}
}

// WriteFrame acquires a byte permit sized to the encoded frame and queues
// it on the write pump.
func (c *Conn) WriteFrame(ctx context.Context, more, command bool, body []byte) error {
	encoded, err := wire.Encode(more, command, body)
	if err != nil {
		return err
	}
	return c.writeRaw(ctx, encoded, true)
}

// Handshake drives the greeting exchange and security mechanism to
// completion, returning once mech.IsDone() and every frame the mechanism
// queued on its final step has been handed to the write pump. ctx
// cancellation aborts the handshake, including a read blocked on a silent
// peer; the caller should then Close the connection.
func (c *Conn) Handshake(ctx context.Context, local wire.Greeting, mech mechanism.Mechanism) (wire.Greeting, error) {
	// Reads never observe ctx on their own; closing the transport when ctx
	// ends unblocks them.
	stopWatch := context.AfterFunc(ctx, func() { c.rwc.Close() })
	defer stopWatch()

	if err := c.SendGreeting(local); err != nil {
		return wire.Greeting{}, err
	}
	peerGreeting, err := c.ReadGreeting()
	if err != nil {
		if ctx.Err() != nil {
			return wire.Greeting{}, ErrHandshakeTimedOut
		}
		return wire.Greeting{}, err
	}

	for !mech.IsDone() {
		select {
		case <-ctx.Done():
			return wire.Greeting{}, ErrHandshakeTimedOut
		default:
		}

		for {
			body, ok := mech.NextOutbound()
			if !ok {
				break
			}
			if err := c.WriteFrame(ctx, false, true, body); err != nil {
				return wire.Greeting{}, err
			}
		}
		if mech.IsDone() {
			break
		}

		frame, err := c.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return wire.Greeting{}, ErrHandshakeTimedOut
			}
			return wire.Greeting{}, err
		}
		if err := mech.OnInbound(ctx, frame); err != nil {
			c.log.WithError(err).Warn("mechanism rejected inbound frame")
			// A rejecting mechanism (DENY, ZAP failure) may have queued an
			// ERROR command for the peer; flush it before the caller closes
			// the connection, or it never reaches the wire.
			for {
				body, ok := mech.NextOutbound()
				if !ok {
					break
				}
				if werr := c.WriteFrame(ctx, false, true, body); werr != nil {
					break
				}
			}
			return wire.Greeting{}, err
		}
	}

	// The step that completes a server-side mechanism also queues its own
	// READY; write it before reporting success.
	for {
		body, ok := mech.NextOutbound()
		if !ok {
			break
		}
		if err := c.WriteFrame(ctx, false, true, body); err != nil {
			return wire.Greeting{}, err
		}
	}

	c.log.WithFields(logrus.Fields{
		"mechanism":        mech.Kind().String(),
		"peer_socket_type": mech.PeerSocketType(),
	}).Debug("handshake complete")
	return peerGreeting, nil
}

// RecvMessage reads wire frames until a complete multipart message has
// been assembled. PING commands are answered with PONG inline and never
// surfaced to the caller; every other command is ignored since it
// interleaves with data traffic without affecting message assembly.
func (c *Conn) RecvMessage(asm *multipart.Assembler) (multipart.Message, error) {
	for {
		frame, err := c.ReadFrame()
		if err != nil {
			return nil, err
		}
		if frame.Command {
			c.handleCommand(frame.Body)
			continue
		}
		msg, err := asm.Push(frame.Body, frame.More)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}

// handleCommand answers PING in place; any other command (SUBSCRIBE,
// CANCEL, ERROR, ...) is left for the behavior layer above to interpret
// from the raw frame stream where that role cares about it, so it is a
// no-op here.
func (c *Conn) handleCommand(body []byte) {
	cmd, err := wire.UnmarshalCommand(body)
	if err != nil || cmd.Name != wire.CmdPing {
		return
	}
	// Body is a 2-byte TTL followed by an opaque context; PONG echoes only
	// the context, not the TTL.
	if len(cmd.Body) < 2 {
		return
	}
	pong, err := wire.MarshalCommand(wire.Command{Name: wire.CmdPong, Body: cmd.Body[2:]})
	if err != nil {
		return
	}
	if err := c.WriteFrame(context.Background(), false, true, pong); err != nil {
		c.log.WithError(err).Debug("failed to answer PING with PONG")
	}
}

// SendMessage writes msg as a chain of data frames, MORE set on every
// frame but the last.
func (c *Conn) SendMessage(ctx context.Context, msg multipart.Message) error {
	for i, part := range msg {
		more := i != len(msg)-1
		if err := c.WriteFrame(ctx, more, false, part); err != nil {
			return err
		}
	}
	return nil
}
