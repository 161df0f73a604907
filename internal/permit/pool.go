// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package permit implements the write pump's byte-budget backpressure gate
// Two implementations: NoOp (always grants, unbounded) and
// BoundedSemaphore (bounded by total outstanding bytes). BoundedSemaphore is
// built on golang.org/x/sync/semaphore — the same weighted-semaphore
// primitive NVIDIA/aistore's go.mod pulls in — because a byte budget is
// exactly a weighted semaphore: each write acquires weight equal to its
// encoded length and releases it once flushed.
package permit

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool grants byte-sized permits to a write pump before it writes an
// n-byte frame, gating outstanding buffered bytes. Acquire is interruptible
// via ctx (the connection actor's close signal cancels ctx).
type Pool interface {
	// Acquire blocks until n bytes of budget are available or ctx is done.
	Acquire(ctx context.Context, n int64) error
	// Release returns n bytes of budget to the pool.
	Release(n int64)
}

// NoOp grants every request immediately; it models an unbounded write pump
// a connection may hold outstanding at once.
type NoOp struct{}

func (NoOp) Acquire(context.Context, int64) error { return nil }
func (NoOp) Release(int64)                        {}

// BoundedSemaphore bounds outstanding buffered bytes to maxBytes across
// every write pump sharing the pool.
type BoundedSemaphore struct {
	sem *semaphore.Weighted
}

// NewBoundedSemaphore returns a Pool capping outstanding bytes at maxBytes.
func NewBoundedSemaphore(maxBytes int64) *BoundedSemaphore {
	return &BoundedSemaphore{sem: semaphore.NewWeighted(maxBytes)}
}

func (p *BoundedSemaphore) Acquire(ctx context.Context, n int64) error {
	return p.sem.Acquire(ctx, n)
}

func (p *BoundedSemaphore) Release(n int64) {
	p.sem.Release(n)
}
