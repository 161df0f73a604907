// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package buffer provides SegmentedBuffer, an append-and-peel byte queue
// used to hold bytes read off the wire pending frame decode.
//
// Ownership: Push takes ownership of the region passed to it; the caller
// must not mutate or reuse that slice afterward. Take returns an owned
// region back to the caller: zero-copy (a sub-slice of an existing segment)
// when the head segment alone satisfies the request, a single coalescing
// copy otherwise. This mirrors a scratch-buffer
// discipline in internal.go, generalized from a single in-flight message to
// a queue of arbitrarily many pending segments (ZMTP frames are read off
// the wire at arbitrary chunk boundaries, so more than one frame's worth of
// bytes can arrive in a single read).
package buffer

import "errors"

// ErrShortBuffer reports that fewer bytes are queued than requested.
var ErrShortBuffer = errors.New("buffer: not enough bytes queued")

// SegmentedBuffer is a FIFO of owned byte regions with a cached total length.
// Not safe for concurrent use; each connection actor owns exactly one.
type SegmentedBuffer struct {
	segs [][]byte // segs[0][off0:] is the unconsumed head
	off0 int
	size int
}

// Push appends region to the queue. Empty regions are ignored. Push takes
// ownership of region.
func (b *SegmentedBuffer) Push(region []byte) {
	if len(region) == 0 {
		return
	}
	b.segs = append(b.segs, region)
	b.size += len(region)
}

// Len returns the total number of unconsumed bytes queued.
func (b *SegmentedBuffer) Len() int { return b.size }

// Take removes and returns exactly n bytes. Zero-copy when the head segment
// alone holds at least n bytes; otherwise allocates one region and copies
// from consecutive head segments. Returns ErrShortBuffer if fewer than n
// bytes are queued, in which case the buffer is left unmodified.
func (b *SegmentedBuffer) Take(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if n > b.size {
		return nil, ErrShortBuffer
	}

	head := b.segs[0][b.off0:]
	if len(head) >= n {
		out := head[:n]
		b.advanceHead(n)
		return out, nil
	}

	// Slow path: coalesce across segments into one fresh region.
	out := make([]byte, n)
	got := 0
	for got < n {
		head = b.segs[0][b.off0:]
		take := n - got
		if take > len(head) {
			take = len(head)
		}
		copy(out[got:got+take], head[:take])
		got += take
		b.advanceHead(take)
	}
	return out, nil
}

// Advance discards n bytes without returning them. Panics if n exceeds the
// number of queued bytes (a caller bug: every Advance is paired with a
// prior length check).
func (b *SegmentedBuffer) Advance(n int) {
	if n > b.size {
		panic("buffer: Advance past end")
	}
	remaining := n
	for remaining > 0 {
		head := b.segs[0][b.off0:]
		take := remaining
		if take > len(head) {
			take = len(head)
		}
		b.advanceHead(take)
		remaining -= take
	}
}

// CopyPrefix copies min(n, Len()) queued bytes into dst without consuming
// them, for header peeks. dst must have length >= n. Returns the number of
// bytes copied; a short result means fewer than n bytes are queued yet.
func (b *SegmentedBuffer) CopyPrefix(n int, dst []byte) int {
	if n > b.size {
		n = b.size
	}
	got := 0
	segIdx := 0
	off := b.off0
	for got < n {
		seg := b.segs[segIdx][off:]
		take := n - got
		if take > len(seg) {
			take = len(seg)
		}
		copy(dst[got:got+take], seg[:take])
		got += take
		off = 0
		segIdx++
	}
	return got
}

// advanceHead consumes n bytes from the head segment (n must not exceed the
// head segment's remaining length) and drops the segment once exhausted.
func (b *SegmentedBuffer) advanceHead(n int) {
	b.off0 += n
	b.size -= n
	if b.off0 == len(b.segs[0]) {
		b.segs[0] = nil // release the reference promptly
		b.segs = b.segs[1:]
		b.off0 = 0
	}
}
