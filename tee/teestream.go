package tee

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/cmn/nlog"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
)

type state int

const (
	stateFresh state = iota
	stateOpen
	stateDraining
	stateClosed
)

// ByteSideConsumer is the function a caller hands to StartTask/StartTaskSoon:
// it drains recv like any other dsio.RStream. recv.(interface{ GiveUp() })
// lets a consumer abandon its pipe early, breaking the side.
type ByteSideConsumer func(ctx context.Context, recv dsio.RStream) error

// TeeStream multicasts one upstream dsio.RStream to N side consumers plus
// the primary caller. It is itself a dsio.RStream, so tees
// can be stacked or substituted anywhere an RStream is expected.
type TeeStream struct {
	mu       sync.Mutex
	upstream dsio.RStream
	bufSize  int
	sides    []*pipe[[]byte]
	group    *errgroup.Group
	state    state
	any      bool // a receive or side attach has happened -- gates SetSource
}

// NewTeeStream builds a tee over upstream (may be nil; set later via
// SetSource) with bufSize as each side consumer's pipe capacity.
func NewTeeStream(upstream dsio.RStream, bufSize int) *TeeStream {
	t := &TeeStream{upstream: upstream, bufSize: bufSize, group: &errgroup.Group{}}
	if upstream != nil {
		t.state = stateOpen
	} else {
		t.state = stateFresh
	}
	return t
}

func (t *TeeStream) Meta() dsmeta.Meta {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.upstream == nil {
		return dsmeta.Meta{}
	}
	return t.upstream.Meta()
}

// SetSource attaches the deferred upstream. Valid only in the fresh state,
// before any receive, close, or side attach has happened.
func (t *TeeStream) SetSource(upstream dsio.RStream) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateFresh || t.any {
		return fmt.Errorf("tee: SetSource called after first receive, close, or side attach")
	}
	t.upstream = upstream
	t.state = stateOpen
	return nil
}

// StartTask attaches a side consumer synchronously w.r.t. stream position:
// by the time StartTask returns, f's pipe is already present in the fan-out
// list, so f is guaranteed to see every chunk delivered to the primary from
// this point onward.
func (t *TeeStream) StartTask(ctx context.Context, f ByteSideConsumer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attachLocked(ctx, f)
}

// StartTaskSoon is the non-blocking-acquire variant: if the tee is
// currently mid-receive (lock held elsewhere), it fails loudly with
// cos.ErrTeeBusy rather than silently losing data.
func (t *TeeStream) StartTaskSoon(ctx context.Context, f ByteSideConsumer) error {
	if !t.mu.TryLock() {
		return cos.ErrTeeBusy
	}
	defer t.mu.Unlock()
	return t.attachLocked(ctx, f)
}

func (t *TeeStream) attachLocked(ctx context.Context, f ByteSideConsumer) error {
	switch t.state {
	case stateClosed:
		return cos.ErrClosedResource
	case stateDraining:
		return fmt.Errorf("tee: cannot attach a side consumer after upstream end")
	case stateFresh:
		return fmt.Errorf("tee: cannot attach a side consumer before a source is set")
	}

	side, p := newSideByteStream(t.bufSize)
	t.sides = append(t.sides, p)
	t.any = true

	id := uuid.NewString()[:8]
	t.group.Go(func() error {
		if err := f(ctx, side); err != nil {
			nlog.Warningf("tee: side consumer [%s] returned error: %v", id, err)
			return err
		}
		return nil
	})
	return nil
}

// ReceiveSome fans chunk out to every attached side sender, in attach
// order, before the primary observes it; at end it closes every side
// sender (in attach order) and joins the task group before returning empty.
func (t *TeeStream) ReceiveSome(ctx context.Context, max int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.any = true

	switch t.state {
	case stateClosed:
		return nil, cos.ErrClosedResource
	case stateFresh:
		return nil, cos.ErrClosedResource
	case stateDraining:
		return nil, nil
	}

	chunk, err := t.upstream.ReceiveSome(ctx, max)
	if err != nil {
		t.forceCloseLocked()
		return nil, err
	}
	if len(chunk) == 0 {
		for _, p := range t.sides {
			p.sendEnd()
		}
		_ = t.group.Wait() // side errors are logged, not propagated on graceful end
		t.sides = nil
		t.state = stateDraining
		return nil, nil
	}

	for _, p := range t.sides {
		if sendErr := p.send(ctx, chunk); sendErr != nil {
			t.forceCloseLocked()
			return nil, cos.ErrBrokenResource
		}
	}
	return chunk, nil
}

func (t *TeeStream) Collect(ctx context.Context) ([]byte, error) {
	defer t.Close()
	var out []byte
	for {
		chunk, err := t.ReceiveSome(ctx, 0)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return out, nil
		}
		out = append(out, chunk...)
	}
}

// Close forcefully closes every side sender (so goroutines blocked on
// send unblock via giveUp rather than leaking), closes upstream, then
// drains the task group. Idempotent.
func (t *TeeStream) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == stateClosed {
		return nil
	}
	return t.forceCloseLocked()
}

// forceCloseLocked performs teardown without observing any caller-supplied
// cancellation: side pipes are torn down, upstream is closed, and the task
// group is joined unconditionally. Closing already-allocated channels
// never blocks on a context, so no separate shielding mechanism is needed.
func (t *TeeStream) forceCloseLocked() error {
	for _, p := range t.sides {
		p.giveUp()
		p.sendEnd()
	}
	t.sides = nil

	var errs cos.Errs
	if t.upstream != nil {
		errs.Add(t.upstream.Close())
	}
	errs.Add(t.group.Wait())

	t.state = stateClosed
	return errs.Err()
}
