// Package adapter provides the stacking adapters: transform adapters that
// change byte size (Gzip, JSON envelope) and the Prometheus stats-exporting
// adapter, which embed datastore.Adapter, plus the erasure-coded fan-out
// adapter and the tiered cache-through adapter, which hold several children
// directly.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package adapter

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// Gzip transparently compresses values on Put and decompresses on Get. It
// does not forward Contains/GetAll/Stat: the compressed size on Child is
// not the logical size the caller should see, so the embedded
// datastore.Adapter's safe defaults apply unmodified -- Gzip never sets
// ForwardGetAll or ForwardStat.
type Gzip struct {
	*datastore.Adapter
}

func NewGzip(child datastore.Datastore) *Gzip {
	return &Gzip{Adapter: datastore.NewAdapter(child)}
}

// Get wraps the child's RStream in a streaming gzip reader. Size/count
// metadata from the child is not meaningful post-decompression, so the
// returned stream reports no size hint (matches GetAll/Stat's Get-based
// derivation, which drains and measures directly).
func (g *Gzip) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	child, err := g.Child.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(&streamReader{ctx: ctx, s: child})
	if err != nil {
		child.Close()
		return nil, err
	}
	return dsio.RStreamFrom(&gzipReadCloser{zr: zr, child: child})
}

// Put drains the canonical stream and hands the child a gzip-compressed
// copy: compression operates on the fully collected value rather than
// chunk-by-chunk, since gzip.Writer's flush boundaries don't align with the
// caller's chunk boundaries and the child's Put already takes a full-size
// canonical stream either way.
func (g *Gzip) Put(ctx context.Context, k key.Key, v any) error {
	src, err := dsio.RStreamFrom(v)
	if err != nil {
		return err
	}
	raw, err := src.Collect(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return g.Child.Put(ctx, k, buf.Bytes())
}

// Contains, GetAll, and Stat must go through Gzip's own Get (so they see
// decompressed content), not the embedded datastore.Adapter's Child-based
// defaults (which would open the compressed stream directly): the
// forwarding flags only gate whether Child.Contains/GetAll/Stat are trusted
// as-is, and here they never are.
func (g *Gzip) Contains(ctx context.Context, k key.Key) (bool, error) {
	s, err := g.Get(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	s.Close()
	return true, nil
}

func (g *Gzip) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	s, err := g.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

// Stat drains and measures: a decompressing stream cannot know its logical
// size up front, so the only truthful size is the one observed end-to-end.
func (g *Gzip) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	b, err := g.GetAll(ctx, k)
	if err != nil {
		return dsmeta.Meta{}, err
	}
	return dsmeta.Meta{Size: dsmeta.Some(uint64(len(b)))}, nil
}

// streamReader adapts a dsio.RStream to io.Reader so gzip.NewReader (which
// wants the stdlib shape) can drive it.
type streamReader struct {
	ctx context.Context
	s   dsio.RStream
	buf []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk, err := r.s.ReceiveSome(r.ctx, len(p))
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return 0, io.EOF
		}
		r.buf = chunk
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// gzipReadCloser closes both the gzip reader and the underlying child
// stream on Close, so decompressing adapters never leak the compressed
// source's resource when the caller closes early.
type gzipReadCloser struct {
	zr    *gzip.Reader
	child dsio.RStream
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.zr.Read(p) }

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	cerr := g.child.Close()
	if zerr != nil {
		return zerr
	}
	return cerr
}
