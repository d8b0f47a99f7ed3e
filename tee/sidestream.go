package tee

import (
	"context"
	"errors"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
)

// sideByteStream is the dsio.RStream a side consumer function receives: a
// thin read-only view over its pipe. GiveUp lets the consumer abandon the
// pipe early (simulating a broken downstream sink); every subsequent send
// from the tee then fails with cos.ErrBrokenResource.
type sideByteStream struct {
	p *pipe[[]byte]
}

func newSideByteStream(capacity int) (*sideByteStream, *pipe[[]byte]) {
	p := newPipe[[]byte](capacity)
	return &sideByteStream{p: p}, p
}

func (s *sideByteStream) ReceiveSome(ctx context.Context, _ int) ([]byte, error) {
	v, end, err := s.p.receive(ctx)
	if err != nil || end {
		return nil, err
	}
	return v, nil
}

func (s *sideByteStream) Collect(ctx context.Context) ([]byte, error) {
	var out []byte
	for {
		chunk, err := s.ReceiveSome(ctx, 0)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return out, nil
		}
		out = append(out, chunk...)
	}
}

func (s *sideByteStream) Close() error { return nil }

func (s *sideByteStream) Meta() dsmeta.Meta { return dsmeta.Meta{} }

// GiveUp abandons this side consumer's pipe early; the tee's next fan-out
// attempt to this consumer will observe cos.ErrBrokenResource.
func (s *sideByteStream) GiveUp() { s.p.giveUp() }

// sideItemStream is the RChannel[T]-shaped view a side consumer of
// TeeChannel[T] receives.
type sideItemStream[T any] struct {
	p *pipe[T]
}

func newSideItemStream[T any](capacity int) (*sideItemStream[T], *pipe[T]) {
	p := newPipe[T](capacity)
	return &sideItemStream[T]{p: p}, p
}

func (s *sideItemStream[T]) Receive(ctx context.Context) (T, error) {
	v, end, err := s.p.receive(ctx)
	if err != nil {
		return v, err
	}
	if end {
		return v, cos.ErrEndOfChannel
	}
	return v, nil
}

func (s *sideItemStream[T]) ReceiveNowait() (T, error) {
	v, end, err := s.p.receiveNowait()
	if err != nil {
		return v, err
	}
	if end {
		return v, cos.ErrEndOfChannel
	}
	return v, nil
}

func (s *sideItemStream[T]) Collect(ctx context.Context) ([]T, error) {
	var out []T
	for {
		v, err := s.Receive(ctx)
		if errors.Is(err, cos.ErrEndOfChannel) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// Clone returns the same view: a side pipe has exactly one reader slot, so
// co-ownership collapses to sharing the handle.
func (s *sideItemStream[T]) Clone() dsio.RChannel[T] { return s }

func (s *sideItemStream[T]) Close() error { return nil }

func (s *sideItemStream[T]) Meta() dsmeta.Meta { return dsmeta.Meta{} }

func (s *sideItemStream[T]) GiveUp() { s.p.giveUp() }
