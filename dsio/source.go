package dsio

import (
	"context"
	"fmt"
	"io"

	"github.com/aistore-oss/dstore/dsmeta"
)

// Awaitable is the Go analogue of a one-shot async value: a function that,
// when called, blocks until it produces a single []byte or fails.
type Awaitable = func(ctx context.Context) ([]byte, error)

// SyncIter is the Go analogue of a synchronous iterable of byte chunks:
// repeated calls return the next chunk until ok is false.
type SyncIter = func() (chunk []byte, ok bool)

// lenner is implemented by in-memory readers (bytes.Reader, bytes.Buffer,
// strings.Reader) that can report their remaining length without
// consuming it.
type lenner interface {
	Len() int
}

// NewBytesStream returns the canonical RStream for b with an explicit
// metadata header, for callers (e.g. adapters that decode a stored
// envelope) that already know metadata the plain []byte case of
// RStreamFrom would otherwise have to re-derive or would get wrong.
func NewBytesStream(b []byte, meta dsmeta.Meta) RStream {
	buf := make([]byte, len(b))
	copy(buf, b)
	return newWrapStream(&sliceSource{chunks: [][]byte{buf}}, meta)
}

// RStreamFrom accepts any of the five accepted input shapes and returns
// the canonical RStream for it. Dispatch is a type switch, not reflection.
// RStreamFrom(RStreamFrom(x)) is x: an already canonical stream is returned
// unchanged (no double wrapping).
func RStreamFrom(x any) (RStream, error) {
	switch v := x.(type) {
	case RStream:
		return v, nil

	case []byte:
		buf := make([]byte, len(v))
		copy(buf, v)
		meta := dsmeta.Meta{Size: dsmeta.Some(uint64(len(buf)))}
		return newWrapStream(&sliceSource{chunks: [][]byte{buf}}, meta), nil

	case [][]byte:
		var size uint64
		for _, c := range v {
			size += uint64(len(c))
		}
		return newWrapStream(&sliceSource{chunks: v}, dsmeta.Meta{Size: dsmeta.Some(size)}), nil

	case SyncIter:
		return newWrapStream(&funcIterSource{next_: v}, dsmeta.Meta{}), nil

	case <-chan []byte:
		return newWrapStream(&chanSource{ch: v}, dsmeta.Meta{}), nil

	case Awaitable:
		return newWrapStream(&awaitableSource{fn: v}, dsmeta.Meta{}), nil

	case io.Reader:
		meta := dsmeta.Meta{}
		if l, ok := v.(lenner); ok {
			meta.Size = dsmeta.Some(uint64(l.Len()))
		}
		return newWrapStream(newReaderSource(v), meta), nil

	default:
		return nil, fmt.Errorf("dsio: %T is not a valid byte-stream source", x)
	}
}
