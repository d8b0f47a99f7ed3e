// Package dsio provides the canonical byte-stream (RStream) and object-
// channel (RChannel) abstractions, and the normalizers that accept any of
// the five input shapes a caller might hand a datastore and turn them into
// one of the above.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package dsio

import (
	"context"
	"io"
	"sync"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsmeta"
)

// RStream is the canonical chunked byte source. Lifecycle:
// open -> draining -> closed. Once Close has run, every operation fails
// with cos.ErrClosedResource. ReceiveSome returns at most max bytes;
// it returns an empty slice exactly once to signal end, after which it
// keeps returning empty (no error) on every subsequent call until Close.
type RStream interface {
	// ReceiveSome returns between 1 and max bytes (max<=0 means "no limit"),
	// or an empty slice at end of stream.
	ReceiveSome(ctx context.Context, max int) ([]byte, error)
	// Collect drains to end and always closes, even on error.
	Collect(ctx context.Context) ([]byte, error)
	// Close is idempotent and releases the underlying resource.
	Close() error
	// Meta returns this stream's metadata header (a hint, not a promise).
	Meta() dsmeta.Meta
}

// streamSource is the minimal shape every RStream implementation normalizes
// down to: something that can hand back the next non-empty chunk, or
// signal end, and can be closed.
type streamSource interface {
	next(ctx context.Context) (chunk []byte, end bool, err error)
	nextNowait() (chunk []byte, end bool, err error)
	close() error
}

// wrapStream is this package's sole RStream implementation: every normalizer variant
// (native reader, async iterable, awaitable, sync iterable, raw buffer)
// produces a streamSource that wrapStream then drives uniformly, so a
// single struct plays every non-canonical role instead of one per shape.
type wrapStream struct {
	mu       sync.Mutex
	meta     dsmeta.Meta
	src      streamSource
	buf      []byte // over-supply buffer: bytes a source handed us beyond max
	closed   bool
	released bool
	atEnd    bool
}

func newWrapStream(src streamSource, meta dsmeta.Meta) *wrapStream {
	return &wrapStream{src: src, meta: meta}
}

func (w *wrapStream) Meta() dsmeta.Meta { return w.meta }

func (w *wrapStream) ReceiveSome(ctx context.Context, max int) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, cos.ErrClosedResource
	}
	if w.atEnd {
		return nil, nil
	}

	if len(w.buf) > 0 {
		return w.takeFromBuf(max), nil
	}

	for {
		chunk, end, err := w.src.next(ctx)
		if err != nil {
			return nil, err
		}
		if end {
			// Self-close: the underlying resource is released now, but the
			// stream stays receivable -- every subsequent call returns empty
			// until an explicit Close.
			w.atEnd = true
			w.releaseLocked()
			return nil, nil
		}
		// Empty-chunk filter: underlying iterables may yield empty byte
		// buffers; only the canonical end signal closes the stream.
		if len(chunk) == 0 {
			continue
		}
		if max > 0 && len(chunk) > max {
			w.buf = chunk[max:]
			chunk = chunk[:max]
		}
		return chunk, nil
	}
}

func (w *wrapStream) takeFromBuf(max int) []byte {
	if max <= 0 || max >= len(w.buf) {
		out := w.buf
		w.buf = nil
		return out
	}
	out := w.buf[:max]
	w.buf = w.buf[max:]
	return out
}

func (w *wrapStream) Collect(ctx context.Context) ([]byte, error) {
	defer w.Close()

	hint := 0
	if sz, ok := w.meta.Size.Get(); ok {
		hint = int(sz)
	}

	var out []byte
	for {
		chunk, err := w.ReceiveSome(ctx, hint)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (w *wrapStream) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *wrapStream) closeLocked() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.releaseLocked()
}

func (w *wrapStream) releaseLocked() error {
	if w.released {
		return nil
	}
	w.released = true
	return w.src.close()
}

// --- streamSource implementations, one per accepted shape ---

// readerSource wraps a native io.Reader (the Go analogue of a "native
// async stream" -- Go has no distinct sync/async reader types).
type readerSource struct {
	r      io.Reader
	closer io.Closer
	buf    []byte
}

func newReaderSource(r io.Reader) *readerSource {
	rc, _ := r.(io.Closer)
	return &readerSource{r: r, closer: rc, buf: make([]byte, 32*1024)}
}

func (s *readerSource) next(context.Context) ([]byte, bool, error) {
	n, err := s.r.Read(s.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, s.buf[:n])
		if err == io.EOF {
			// Deliver the final chunk now; the next call reports end.
			return out, false, nil
		}
		return out, false, err
	}
	if err == io.EOF || err == nil {
		return nil, true, nil
	}
	return nil, false, err
}

func (s *readerSource) nextNowait() ([]byte, bool, error) { return s.next(context.Background()) }

func (s *readerSource) close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// chanSource wraps an async iterable of []byte: a receive-only channel.
type chanSource struct {
	ch <-chan []byte
}

func (s *chanSource) next(ctx context.Context) ([]byte, bool, error) {
	select {
	case chunk, ok := <-s.ch:
		if !ok {
			return nil, true, nil
		}
		return chunk, false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (s *chanSource) nextNowait() ([]byte, bool, error) {
	select {
	case chunk, ok := <-s.ch:
		if !ok {
			return nil, true, nil
		}
		return chunk, false, nil
	default:
		return nil, false, cos.ErrWouldBlock
	}
}

func (*chanSource) close() error { return nil }

// awaitableSource treats a one-shot async function as an iterable yielding
// its value exactly once.
type awaitableSource struct {
	fn   func(context.Context) ([]byte, error)
	done bool
}

func (s *awaitableSource) next(ctx context.Context) ([]byte, bool, error) {
	if s.done {
		return nil, true, nil
	}
	s.done = true
	v, err := s.fn(ctx)
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

func (s *awaitableSource) nextNowait() ([]byte, bool, error) { return nil, false, cos.ErrWouldBlock }
func (*awaitableSource) close() error                        { return nil }

// sliceSource wraps a sync iterable of chunks (e.g. a pre-built [][]byte,
// including the degenerate single-buffer case).
type sliceSource struct {
	chunks [][]byte
	idx    int
}

func (s *sliceSource) next(context.Context) ([]byte, bool, error) { return s.nextNowait() }

func (s *sliceSource) nextNowait() ([]byte, bool, error) {
	if s.idx >= len(s.chunks) {
		return nil, true, nil
	}
	c := s.chunks[s.idx]
	s.idx++
	return c, false, nil
}

func (*sliceSource) close() error { return nil }

// funcIterSource wraps a sync iterator function: repeated calls return the
// next chunk until ok is false.
type funcIterSource struct {
	next_ func() ([]byte, bool)
}

func (s *funcIterSource) next(context.Context) ([]byte, bool, error) { return s.nextNowait() }

func (s *funcIterSource) nextNowait() ([]byte, bool, error) {
	chunk, ok := s.next_()
	if !ok {
		return nil, true, nil
	}
	return chunk, false, nil
}

func (*funcIterSource) close() error { return nil }
