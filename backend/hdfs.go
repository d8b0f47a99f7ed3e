package backend

import (
	"context"
	"os"

	"github.com/colinmarc/hdfs/v2"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

// HDFSBackend wraps colinmarc/hdfs behind the datastore contract:
// client.Open/Create/Remove/Stat.
type HDFSBackend struct {
	client *hdfs.Client
}

func NewHDFS(client *hdfs.Client) *datastore.Base {
	return datastore.NewBase(&HDFSBackend{client: client})
}

func (h *HDFSBackend) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	f, err := h.client.Open(objectName(k))
	if err != nil {
		return nil, hdfsErr(k, err)
	}
	meta := dsmeta.Meta{Size: dsmeta.Some(uint64(f.Stat().Size()))}
	meta.MTime = dsmeta.Some(float64(f.Stat().ModTime().Unix()))
	return newReaderStream(f, meta), nil
}

func (h *HDFSBackend) PutStream(ctx context.Context, k key.Key, v dsio.RStream) error {
	b, err := v.Collect(ctx)
	if err != nil {
		return err
	}
	w, err := h.client.Create(objectName(k))
	if err != nil {
		return hdfsErr(k, err)
	}
	if _, err := w.Write(b); err != nil {
		w.Close()
		return hdfsErr(k, err)
	}
	return w.Close()
}

func (h *HDFSBackend) Delete(ctx context.Context, k key.Key) error {
	if err := h.client.Remove(objectName(k)); err != nil {
		return hdfsErr(k, err)
	}
	return nil
}

func (h *HDFSBackend) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	fi, err := h.client.Stat(objectName(k))
	if err != nil {
		return dsmeta.Meta{}, hdfsErr(k, err)
	}
	return dsmeta.Meta{
		Size:  dsmeta.Some(uint64(fi.Size())),
		MTime: dsmeta.Some(float64(fi.ModTime().Unix())),
	}, nil
}

func (h *HDFSBackend) Contains(ctx context.Context, k key.Key) (bool, error) {
	_, err := h.Stat(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (h *HDFSBackend) Close() error { return nil }

func (h *HDFSBackend) Query(context.Context, query.Query) (query.Cursor, error) {
	return query.NewSliceCursor(nil), nil
}

func hdfsErr(k key.Key, err error) error {
	if os.IsNotExist(err) {
		return cos.NewErrNotFound(k.String())
	}
	return cos.WrapInternal(err, "hdfs: "+k.String())
}
