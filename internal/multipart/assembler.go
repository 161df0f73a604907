// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package multipart assembles a chain of MORE-flagged wire frames into one
// application-facing Message, enforcing per-peer frame-count and byte
// limits.
package multipart

import "errors"

var (
	// ErrTooManyFrames reports that a message exceeded MaxFrames before its
	// MORE chain terminated. The assembler resets; the connection is not
	// torn down (a Resource error resets the current message
	// but leaves the connection intact).
	ErrTooManyFrames = errors.New("multipart: too many frames")

	// ErrTooLarge reports that a message exceeded MaxBytes.
	ErrTooLarge = errors.New("multipart: message too large")
)

// Limits bounds a single in-flight message. A zero value in either field
// means unbounded.
type Limits struct {
	MaxFrames int
	MaxBytes  int
}

// Message is an ordered sequence of frame payloads making up one
// application message (at least one frame, MORE=0 on the
// last).
type Message [][]byte

// Assembler collects MORE-chained frame payloads into Messages. Not safe
// for concurrent use; each peer (one direction of one connection) owns
// exactly one.
type Assembler struct {
	limits Limits

	frames    Message
	nFrames   int
	nBytes    int
}

// New returns an Assembler enforcing limits.
func New(limits Limits) *Assembler {
	return &Assembler{limits: limits}
}

// Push appends payload to the in-flight message. When more is false the
// message is complete: Push returns it and resets internal state for the
// next message. Exceeding either configured limit resets state and returns
// the corresponding error with a nil message.
func (a *Assembler) Push(payload []byte, more bool) (Message, error) {
	a.nFrames++
	a.nBytes += len(payload)

	if a.limits.MaxFrames > 0 && a.nFrames > a.limits.MaxFrames {
		a.reset()
		return nil, ErrTooManyFrames
	}
	if a.limits.MaxBytes > 0 && a.nBytes > a.limits.MaxBytes {
		a.reset()
		return nil, ErrTooLarge
	}

	a.frames = append(a.frames, payload)
	if more {
		return nil, nil
	}

	msg := a.frames
	a.frames = nil
	a.nFrames = 0
	a.nBytes = 0
	return msg, nil
}

func (a *Assembler) reset() {
	a.frames = nil
	a.nFrames = 0
	a.nBytes = 0
}
