// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buffer

import (
	"bytes"
	"testing"
)

func TestSegmentedBuffer_TakeZeroCopyWhenSingleSegment(t *testing.T) {
	var b SegmentedBuffer
	region := []byte("hello world")
	b.Push(region)

	got, err := b.Take(5)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q", got)
	}
	// Zero-copy: got must alias region's backing array.
	if &got[0] != &region[0] {
		t.Fatalf("expected zero-copy take to alias the pushed region")
	}
	if b.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", b.Len())
	}
}

func TestSegmentedBuffer_TakeCoalescesAcrossSegments(t *testing.T) {
	var b SegmentedBuffer
	b.Push([]byte("ab"))
	b.Push([]byte("cd"))
	b.Push([]byte("ef"))

	got, err := b.Take(5)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if !bytes.Equal(got, []byte("abcde")) {
		t.Fatalf("got %q", got)
	}
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}
	rest, err := b.Take(1)
	if err != nil || string(rest) != "f" {
		t.Fatalf("rest = %q, err = %v", rest, err)
	}
}

func TestSegmentedBuffer_TakeShortBuffer(t *testing.T) {
	var b SegmentedBuffer
	b.Push([]byte("ab"))
	if _, err := b.Take(3); err != ErrShortBuffer {
		t.Fatalf("err = %v, want ErrShortBuffer", err)
	}
	// Buffer must be unmodified after a failed Take.
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (unmodified)", b.Len())
	}
}

func TestSegmentedBuffer_AdvanceDropsExhaustedSegments(t *testing.T) {
	var b SegmentedBuffer
	b.Push([]byte("abc"))
	b.Push([]byte("def"))
	b.Advance(4)
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	got, _ := b.Take(2)
	if string(got) != "ef" {
		t.Fatalf("got %q, want ef", got)
	}
}

func TestSegmentedBuffer_CopyPrefixDoesNotConsume(t *testing.T) {
	var b SegmentedBuffer
	b.Push([]byte("ab"))
	b.Push([]byte("cdef"))

	dst := make([]byte, 4)
	n := b.CopyPrefix(4, dst)
	if n != 4 || string(dst) != "abcd" {
		t.Fatalf("CopyPrefix = %q (n=%d), want abcd", dst, n)
	}
	if b.Len() != 6 {
		t.Fatalf("Len() = %d, want 6 (peek must not consume)", b.Len())
	}
}

func TestSegmentedBuffer_CopyPrefixShortReturnsAvailable(t *testing.T) {
	var b SegmentedBuffer
	b.Push([]byte("ab"))
	dst := make([]byte, 5)
	n := b.CopyPrefix(5, dst)
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
}

func TestSegmentedBuffer_PushIgnoresEmpty(t *testing.T) {
	var b SegmentedBuffer
	b.Push(nil)
	b.Push([]byte{})
	if b.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", b.Len())
	}
}
