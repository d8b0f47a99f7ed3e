package backend

import (
	"bytes"
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

// GCSBackend wraps cloud.google.com/go/storage behind the datastore
// contract: bucket.Object(name) for a reader/writer pair, Attrs() for stat.
type GCSBackend struct {
	bucket *storage.BucketHandle
}

func NewGCS(bucket *storage.BucketHandle) *datastore.Base {
	return datastore.NewBase(&GCSBackend{bucket: bucket})
}

func (g *GCSBackend) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	obj := g.bucket.Object(objectName(k))
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, gcsErr(k, err)
	}
	meta := dsmeta.Meta{Size: dsmeta.Some(uint64(r.Attrs.Size))}
	if !r.Attrs.LastModified.IsZero() {
		meta.MTime = dsmeta.Some(float64(r.Attrs.LastModified.Unix()))
	}
	return newReaderStream(r, meta), nil
}

func (g *GCSBackend) PutStream(ctx context.Context, k key.Key, v dsio.RStream) error {
	b, err := v.Collect(ctx)
	if err != nil {
		return err
	}
	obj := g.bucket.Object(objectName(k))
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(b)); err != nil {
		w.Close()
		return gcsErr(k, err)
	}
	if err := w.Close(); err != nil {
		return gcsErr(k, err)
	}
	return nil
}

func (g *GCSBackend) Delete(ctx context.Context, k key.Key) error {
	if err := g.bucket.Object(objectName(k)).Delete(ctx); err != nil {
		return gcsErr(k, err)
	}
	return nil
}

func (g *GCSBackend) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	attrs, err := g.bucket.Object(objectName(k)).Attrs(ctx)
	if err != nil {
		return dsmeta.Meta{}, gcsErr(k, err)
	}
	m := dsmeta.Meta{Size: dsmeta.Some(uint64(attrs.Size))}
	if !attrs.Updated.IsZero() {
		m.MTime = dsmeta.Some(float64(attrs.Updated.Unix()))
	}
	return m, nil
}

func (g *GCSBackend) Contains(ctx context.Context, k key.Key) (bool, error) {
	_, err := g.Stat(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (g *GCSBackend) Close() error { return nil }

// Query lists objects under q.Prefix's namespace; iterator.Done ends the
// cursor per the google-cloud-go iterator convention (unrelated to this
// module's own cos.ErrEndOfChannel, which stays internal to dsio).
func (g *GCSBackend) Query(ctx context.Context, q query.Query) (query.Cursor, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: objectName(q.Prefix)})
	var entries []query.Entry
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, cos.WrapInternal(err, "gcs: list "+q.Prefix.String())
		}
		k := key.New(attrs.Name)
		if q.Filter != nil && !q.Filter(k) {
			continue
		}
		entries = append(entries, query.Entry{Key: k})
		if q.Limit > 0 && len(entries) >= q.Limit {
			break
		}
	}
	return query.NewSliceCursor(entries), nil
}

func gcsErr(k key.Key, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return cos.NewErrNotFound(k.String())
	}
	return cos.WrapInternal(err, "gcs: "+k.String())
}
