// Package tee provides the teeing wrappers: TeeStream and TeeChannel
// multicast a single upstream to N dynamically-attached side consumers plus
// the primary receiver, with correct lifetime, backpressure, and
// cancellation semantics. The cache-through adapter is built on top of it.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package tee

import (
	"context"
	"sync"

	"github.com/aistore-oss/dstore/cmn/cos"
)

// pipe is the bounded in-memory channel a side consumer reads from. Its
// capacity is the tee's bufSize: the primary's ReceiveSome/Receive blocks
// on a full pipe exactly as long as the slowest attached side consumer.
type pipe[T any] struct {
	ch         chan T
	gaveUp     chan struct{}
	giveUpOnce sync.Once
	endOnce    sync.Once
}

func newPipe[T any](capacity int) *pipe[T] {
	return &pipe[T]{
		ch:     make(chan T, capacity),
		gaveUp: make(chan struct{}),
	}
}

// send delivers one item to the pipe, blocking for backpressure. It fails
// with cos.ErrBrokenResource if the side consumer gave up early (closed its
// receiving end via giveUp), and with ctx.Err() if ctx is cancelled first.
func (p *pipe[T]) send(ctx context.Context, v T) error {
	select {
	case <-p.gaveUp:
		return cos.ErrBrokenResource
	default:
	}
	select {
	case p.ch <- v:
		return nil
	case <-p.gaveUp:
		return cos.ErrBrokenResource
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sendEnd signals graceful end-of-stream to the side consumer.
func (p *pipe[T]) sendEnd() {
	p.endOnce.Do(func() { close(p.ch) })
}

// giveUp is called by the side consumer to abandon the pipe early (a
// broken downstream): further sends observe cos.ErrBrokenResource
// instead of blocking forever.
func (p *pipe[T]) giveUp() {
	p.giveUpOnce.Do(func() { close(p.gaveUp) })
}

// receive is used by the side-consumer goroutine.
func (p *pipe[T]) receive(ctx context.Context) (v T, end bool, err error) {
	select {
	case item, ok := <-p.ch:
		if !ok {
			return v, true, nil
		}
		return item, false, nil
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
}

// receiveNowait is the non-suspending variant: cos.ErrWouldBlock when no
// item is immediately available.
func (p *pipe[T]) receiveNowait() (v T, end bool, err error) {
	select {
	case item, ok := <-p.ch:
		if !ok {
			return v, true, nil
		}
		return item, false, nil
	default:
		return v, false, cos.ErrWouldBlock
	}
}
