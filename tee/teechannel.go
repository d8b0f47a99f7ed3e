package tee

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/cmn/nlog"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
)

// ItemSideConsumer is the function handed to TeeChannel's StartTask: it
// drains recv exactly like any other dsio.RChannel[T].
type ItemSideConsumer[T any] func(ctx context.Context, recv dsio.RChannel[T]) error

// TeeChannel is the object-channel analog of TeeStream. A TeeChannel is
// itself a dsio.RChannel[T] and supports Clone like any other channel handle;
// cloning a tee shares the same underlying fan-out machinery and upstream.
type TeeChannel[T any] struct {
	shared *teeShared[T]
	meta   dsmeta.Meta
	closed bool
}

type teeShared[T any] struct {
	mu       sync.Mutex
	upstream dsio.RChannel[T]
	bufSize  int
	sides    []*pipe[T]
	group    *errgroup.Group
	state    state
	any      bool
	refcount int
}

// NewTeeChannel builds a tee over upstream (may be nil; set later via
// SetSource) with bufSize as each side consumer's pipe capacity.
func NewTeeChannel[T any](upstream dsio.RChannel[T], bufSize int) *TeeChannel[T] {
	shared := &teeShared[T]{upstream: upstream, bufSize: bufSize, group: &errgroup.Group{}, refcount: 1}
	tc := &TeeChannel[T]{shared: shared}
	if upstream != nil {
		shared.state = stateOpen
		tc.meta = upstream.Meta()
	} else {
		shared.state = stateFresh
	}
	return tc
}

func (t *TeeChannel[T]) Meta() dsmeta.Meta { return t.meta }

func (t *TeeChannel[T]) SetSource(upstream dsio.RChannel[T]) error {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	if t.shared.state != stateFresh || t.shared.any {
		return fmt.Errorf("tee: SetSource called after first receive, close, or side attach")
	}
	t.shared.upstream = upstream
	t.shared.state = stateOpen
	t.meta = upstream.Meta()
	return nil
}

func (t *TeeChannel[T]) StartTask(ctx context.Context, f ItemSideConsumer[T]) error {
	t.shared.mu.Lock()
	defer t.shared.mu.Unlock()
	return t.shared.attachLocked(ctx, f)
}

func (t *TeeChannel[T]) StartTaskSoon(ctx context.Context, f ItemSideConsumer[T]) error {
	if !t.shared.mu.TryLock() {
		return cos.ErrTeeBusy
	}
	defer t.shared.mu.Unlock()
	return t.shared.attachLocked(ctx, f)
}

func (s *teeShared[T]) attachLocked(ctx context.Context, f ItemSideConsumer[T]) error {
	switch s.state {
	case stateClosed:
		return cos.ErrClosedResource
	case stateDraining:
		return fmt.Errorf("tee: cannot attach a side consumer after upstream end")
	case stateFresh:
		return fmt.Errorf("tee: cannot attach a side consumer before a source is set")
	}

	side, p := newSideItemStream[T](s.bufSize)
	s.sides = append(s.sides, p)
	s.any = true

	id := uuid.NewString()[:8]
	s.group.Go(func() error {
		if err := f(ctx, side); err != nil {
			nlog.Warningf("tee: side consumer [%s] returned error: %v", id, err)
			return err
		}
		return nil
	})
	return nil
}

func (t *TeeChannel[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	s := t.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	s.any = true

	if t.closed {
		return zero, cos.ErrClosedResource
	}
	switch s.state {
	case stateClosed:
		return zero, cos.ErrClosedResource
	case stateFresh:
		return zero, cos.ErrClosedResource
	case stateDraining:
		return zero, cos.ErrEndOfChannel
	}

	item, err := s.upstream.Receive(ctx)
	if err != nil {
		if errors.Is(err, cos.ErrEndOfChannel) {
			for _, p := range s.sides {
				p.sendEnd()
			}
			_ = s.group.Wait()
			s.sides = nil
			s.state = stateDraining
			return zero, cos.ErrEndOfChannel
		}
		s.forceCloseLocked()
		return zero, err
	}

	for _, p := range s.sides {
		if sendErr := p.send(ctx, item); sendErr != nil {
			s.forceCloseLocked()
			return zero, cos.ErrBrokenResource
		}
	}
	return item, nil
}

func (t *TeeChannel[T]) Collect(ctx context.Context) ([]T, error) {
	defer t.Close()
	var out []T
	for {
		v, err := t.Receive(ctx)
		if errors.Is(err, cos.ErrEndOfChannel) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// ReceiveNowait is offered for parity with dsio.RChannel[T]. It never
// receives from upstream: every call, contended or not, reports
// cos.ErrWouldBlock, so no item can bypass the side fan-out.
func (t *TeeChannel[T]) ReceiveNowait() (T, error) {
	var zero T
	if !t.shared.mu.TryLock() {
		return zero, cos.ErrWouldBlock
	}
	t.shared.mu.Unlock()
	return zero, cos.ErrWouldBlock
}

// Clone returns a new handle sharing this tee's upstream and side fan-out
// machinery; the underlying tee is only torn down once every clone's Close
// has been called (mirrors wrapChannel's refcounting in dsio).
func (t *TeeChannel[T]) Clone() dsio.RChannel[T] {
	t.shared.mu.Lock()
	t.shared.refcount++
	t.shared.mu.Unlock()
	return &TeeChannel[T]{shared: t.shared, meta: t.meta}
}

func (t *TeeChannel[T]) Close() error {
	s := t.shared
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	s.refcount--
	if s.refcount > 0 {
		return nil
	}
	if s.state == stateClosed {
		return nil
	}
	return s.forceCloseLocked()
}

func (s *teeShared[T]) forceCloseLocked() error {
	for _, p := range s.sides {
		p.giveUp()
		p.sendEnd()
	}
	s.sides = nil

	var errs cos.Errs
	if s.upstream != nil {
		errs.Add(s.upstream.Close())
	}
	errs.Add(s.group.Wait())

	s.state = stateClosed
	return errs.Err()
}
