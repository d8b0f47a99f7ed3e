package dsio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsmeta"
)

// RChannel is the canonical item-by-item source: same shape as
// RStream, item-typed, with Clone as the only way to create a co-owner.
// Receive signals end by returning cos.ErrEndOfChannel; ReceiveNowait
// signals cos.ErrWouldBlock when no value is immediately available.
type RChannel[T any] interface {
	Receive(ctx context.Context) (T, error)
	ReceiveNowait() (T, error)
	// Collect drains to end and always closes, even on error.
	Collect(ctx context.Context) ([]T, error)
	Clone() RChannel[T]
	Close() error
	Meta() dsmeta.Meta
}

type channelSource[T any] interface {
	next(ctx context.Context) (item T, end bool, err error)
	nextNowait() (item T, end bool, err error)
	close() error
}

// channelShared is the reference-counted record backing every clone of a
// wrapChannel: at most one task drives `source` at a time (guarded
// by mu); the source is closed for good once refcount reaches zero, as soon
// as it reports end (the source has nothing left to close over), or when a
// blocking receive from it fails.
type channelShared[T any] struct {
	mu       sync.Mutex
	refcount int
	source   channelSource[T] // nil once drained or fully closed
}

func (cs *channelShared[T]) receive(ctx context.Context) (T, error) {
	var zero T
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.source == nil {
		return zero, cos.ErrEndOfChannel
	}
	item, end, err := cs.source.next(ctx)
	if err != nil {
		cs.closeSourceLocked()
		return zero, err
	}
	if end {
		cs.closeSourceLocked()
		return zero, cos.ErrEndOfChannel
	}
	return item, nil
}

func (cs *channelShared[T]) receiveNowait() (T, error) {
	var zero T
	if !cs.mu.TryLock() {
		return zero, cos.ErrWouldBlock
	}
	defer cs.mu.Unlock()
	if cs.source == nil {
		return zero, cos.ErrEndOfChannel
	}
	item, end, err := cs.source.nextNowait()
	if err != nil {
		return zero, err
	}
	if end {
		cs.closeSourceLocked()
		return zero, cos.ErrEndOfChannel
	}
	return item, nil
}

func (cs *channelShared[T]) closeSourceLocked() {
	if cs.source == nil {
		return
	}
	cs.source.close()
	cs.source = nil
}

type wrapChannel[T any] struct {
	shared *channelShared[T]
	meta   dsmeta.Meta
	closed bool
}

func newWrapChannel[T any](src channelSource[T], meta dsmeta.Meta) *wrapChannel[T] {
	return &wrapChannel[T]{
		shared: &channelShared[T]{refcount: 1, source: src},
		meta:   meta,
	}
}

func (w *wrapChannel[T]) Meta() dsmeta.Meta { return w.meta }

func (w *wrapChannel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	if w.closed {
		return zero, cos.ErrClosedResource
	}
	return w.shared.receive(ctx)
}

func (w *wrapChannel[T]) ReceiveNowait() (T, error) {
	var zero T
	if w.closed {
		return zero, cos.ErrClosedResource
	}
	return w.shared.receiveNowait()
}

func (w *wrapChannel[T]) Collect(ctx context.Context) ([]T, error) {
	defer w.Close()
	var out []T
	for {
		v, err := w.Receive(ctx)
		if errors.Is(err, cos.ErrEndOfChannel) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// Clone returns a new co-owning handle sharing this channel's upstream;
// the upstream is only closed once every clone (including this one) has
// been closed.
func (w *wrapChannel[T]) Clone() RChannel[T] {
	w.shared.mu.Lock()
	w.shared.refcount++
	w.shared.mu.Unlock()
	return &wrapChannel[T]{shared: w.shared, meta: w.meta}
}

func (w *wrapChannel[T]) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.shared.mu.Lock()
	defer w.shared.mu.Unlock()
	w.shared.refcount--
	if w.shared.refcount <= 0 {
		w.shared.closeSourceLocked()
	}
	return nil
}

// --- channelSource implementations ---

type chanItemSource[T any] struct{ ch <-chan T }

func (s *chanItemSource[T]) next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case item, ok := <-s.ch:
		if !ok {
			return zero, true, nil
		}
		return item, false, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (s *chanItemSource[T]) nextNowait() (T, bool, error) {
	var zero T
	select {
	case item, ok := <-s.ch:
		if !ok {
			return zero, true, nil
		}
		return item, false, nil
	default:
		return zero, false, cos.ErrWouldBlock
	}
}

func (*chanItemSource[T]) close() error { return nil }

type sliceItemSource[T any] struct {
	items []T
	idx   int
}

func (s *sliceItemSource[T]) next(context.Context) (T, bool, error) { return s.nextNowait() }

func (s *sliceItemSource[T]) nextNowait() (T, bool, error) {
	var zero T
	if s.idx >= len(s.items) {
		return zero, true, nil
	}
	item := s.items[s.idx]
	s.idx++
	return item, false, nil
}

func (*sliceItemSource[T]) close() error { return nil }

type awaitableItemSource[T any] struct {
	fn   func(context.Context) (T, error)
	done bool
}

func (s *awaitableItemSource[T]) next(ctx context.Context) (T, bool, error) {
	var zero T
	if s.done {
		return zero, true, nil
	}
	s.done = true
	v, err := s.fn(ctx)
	if err != nil {
		return zero, false, err
	}
	return v, false, nil
}

func (s *awaitableItemSource[T]) nextNowait() (T, bool, error) {
	var zero T
	return zero, false, cos.ErrWouldBlock
}

func (*awaitableItemSource[T]) close() error { return nil }

type funcIterItemSource[T any] struct {
	next_ func() (T, bool)
}

func (s *funcIterItemSource[T]) next(context.Context) (T, bool, error) { return s.nextNowait() }

func (s *funcIterItemSource[T]) nextNowait() (T, bool, error) {
	var zero T
	item, ok := s.next_()
	if !ok {
		return zero, true, nil
	}
	return item, false, nil
}

func (*funcIterItemSource[T]) close() error { return nil }

// RChannelFrom accepts any of the five input shapes (object-channel
// variant of RStreamFrom) and returns the canonical RChannel[T] for it.
func RChannelFrom[T any](x any) (RChannel[T], error) {
	switch v := x.(type) {
	case RChannel[T]:
		return v, nil

	case []T:
		return newWrapChannel[T](&sliceItemSource[T]{items: v}, dsmeta.Meta{Count: dsmeta.Some(uint64(len(v)))}), nil

	case func() (T, bool):
		return newWrapChannel[T](&funcIterItemSource[T]{next_: v}, dsmeta.Meta{}), nil

	case <-chan T:
		return newWrapChannel[T](&chanItemSource[T]{ch: v}, dsmeta.Meta{}), nil

	case func(context.Context) (T, error):
		return newWrapChannel[T](&awaitableItemSource[T]{fn: v}, dsmeta.Meta{Count: dsmeta.Some(uint64(1))}), nil

	default:
		return nil, fmt.Errorf("dsio: %T is not a valid object-channel source", x)
	}
}
