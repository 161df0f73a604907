// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package wire implements the ZMTP 3.x bit-exact wire format: frame
// encode/decode, the fixed 64-byte greeting, and the command payload
// grammar. It is sans-I/O: Decode operates on a buffer.SegmentedBuffer that
// the caller (internal/conn) keeps fed from the transport. State lives in
// the buffer, not in the decoder, so Decode itself stays a pure function
// from buffer contents to (Frame, error) with no scratch fields of its own.
package wire

import (
	"encoding/binary"
	"errors"
	"math"

	"code.hybscloud.com/zmtp/internal/buffer"
)

// Frame flag bits, per the ZMTP 3.x RFC.
const (
	flagMore    byte = 0x01
	flagLong    byte = 0x02
	flagCommand byte = 0x04
	flagReservedMask byte = 0xF8
)

const (
	shortLenMax = 255          // payloads <= this use the 1-byte length form
	maxPayload  = 1<<63 - 1    // top bit of the 8-byte length must be zero
)

var (
	// ErrNeedMore reports that the buffer does not yet hold a complete
	// frame; the caller should feed it more bytes and retry Decode.
	ErrNeedMore = errors.New("wire: need more data")

	// ErrReservedBits reports that flag bits 3..7 were set (reserved for
	// future ZMTP versions).
	ErrReservedBits = errors.New("wire: reserved flag bits set")

	// ErrSizeTooLarge reports a LONG frame whose 8-byte length has its top
	// bit set (reserved).
	ErrSizeTooLarge = errors.New("wire: frame size too large")
)

// Frame is a single ZMTP wire frame as seen by the codec layer: a MORE bit,
// a COMMAND bit, and an opaque payload. Body aliases bytes owned by the
// SegmentedBuffer it was decoded from (zero-copy) or, when the frame
// straddled more than one underlying read, a single coalescing copy.
type Frame struct {
	More    bool
	Command bool
	Body    []byte
}

// Encode serializes a frame. The LONG bit is computed from len(body) and
// must not be passed in more/command; callers only ever choose MORE and
// COMMAND.
func Encode(more, command bool, body []byte) ([]byte, error) {
	if len(body) > maxPayload {
		return nil, ErrSizeTooLarge
	}

	var flags byte
	if more {
		flags |= flagMore
	}
	if command {
		flags |= flagCommand
	}

	if len(body) <= shortLenMax {
		out := make([]byte, 2+len(body))
		out[0] = flags
		out[1] = byte(len(body))
		copy(out[2:], body)
		return out, nil
	}

	flags |= flagLong
	out := make([]byte, 9+len(body))
	out[0] = flags
	binary.BigEndian.PutUint64(out[1:9], uint64(len(body)))
	copy(out[9:], body)
	return out, nil
}

// Decode attempts to remove exactly one frame from buf. It returns
// ErrNeedMore, leaving buf untouched, if buf does not yet hold a complete
// frame.
func Decode(buf *buffer.SegmentedBuffer) (Frame, error) {
	var hdr [9]byte

	n := buf.CopyPrefix(2, hdr[:2])
	if n < 2 {
		return Frame{}, ErrNeedMore
	}

	flags := hdr[0]
	if flags&flagReservedMask != 0 {
		return Frame{}, ErrReservedBits
	}

	isLong := flags&flagLong != 0
	hdrLen := 2
	var length uint64
	if isLong {
		hdrLen = 9
		n = buf.CopyPrefix(9, hdr[:9])
		if n < 9 {
			return Frame{}, ErrNeedMore
		}
		length = binary.BigEndian.Uint64(hdr[1:9])
		if length&(1<<63) != 0 {
			return Frame{}, ErrSizeTooLarge
		}
	} else {
		length = uint64(hdr[1])
	}
	// Guard against int overflow on 32-bit platforms before any conversion.
	if length > uint64(math.MaxInt-hdrLen) {
		return Frame{}, ErrSizeTooLarge
	}

	total := hdrLen + int(length)
	if buf.Len() < total {
		return Frame{}, ErrNeedMore
	}

	region, err := buf.Take(total)
	if err != nil {
		// buf.Len() was already checked above; this would be a logic bug.
		return Frame{}, err
	}

	return Frame{
		More:    flags&flagMore != 0,
		Command: flags&flagCommand != 0,
		Body:    region[hdrLen:],
	}, nil
}
