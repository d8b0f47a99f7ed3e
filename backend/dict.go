package backend

import (
	"context"
	"sync"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

// Dict is the in-memory conformance backend: a two-level map,
// namespace (stringified key.Path()) to leaf name to bytes. put drains the
// stream fully; an empty namespace is removed on its last delete so no
// stale namespace entries accumulate.
type Dict struct {
	mu sync.Mutex
	ns map[string]map[string][]byte
}

// DictStore is Dict's caller-facing handle: the full Datastore surface from
// datastore.Base plus the enumeration surface backends may optionally offer.
type DictStore struct {
	*datastore.Base
	d *Dict
}

func NewDict() *DictStore {
	d := &Dict{ns: make(map[string]map[string][]byte)}
	return &DictStore{Base: datastore.NewBase(d), d: d}
}

func (s *DictStore) Query(ctx context.Context, q query.Query) (query.Cursor, error) {
	return s.d.Query(ctx, q)
}

func (d *Dict) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	d.mu.Lock()
	b, ok := d.lookupLocked(k)
	d.mu.Unlock()
	if !ok {
		return nil, cos.NewErrNotFound(k.String())
	}
	return dsio.RStreamFrom(b)
}

func (d *Dict) PutStream(ctx context.Context, k key.Key, v dsio.RStream) error {
	b, err := v.Collect(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ns := k.Path().String()
	bucket, ok := d.ns[ns]
	if !ok {
		bucket = make(map[string][]byte)
		d.ns[ns] = bucket
	}
	bucket[k.Name()] = b
	return nil
}

func (d *Dict) Delete(ctx context.Context, k key.Key) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ns := k.Path().String()
	bucket, ok := d.ns[ns]
	if !ok {
		return cos.NewErrNotFound(k.String())
	}
	if _, ok := bucket[k.Name()]; !ok {
		return cos.NewErrNotFound(k.String())
	}
	delete(bucket, k.Name())
	if len(bucket) == 0 {
		delete(d.ns, ns)
	}
	return nil
}

func (d *Dict) Contains(ctx context.Context, k key.Key) (bool, error) {
	d.mu.Lock()
	_, ok := d.lookupLocked(k)
	d.mu.Unlock()
	return ok, nil
}

func (d *Dict) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	d.mu.Lock()
	b, ok := d.lookupLocked(k)
	d.mu.Unlock()
	if !ok {
		return nil, cos.NewErrNotFound(k.String())
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (d *Dict) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	d.mu.Lock()
	b, ok := d.lookupLocked(k)
	d.mu.Unlock()
	if !ok {
		return dsmeta.Meta{}, cos.NewErrNotFound(k.String())
	}
	return dsmeta.Meta{Size: dsmeta.Some(uint64(len(b)))}, nil
}

// DatastoreStats reports exact total byte size and object count, optionally
// restricted to the subtree under selector.
func (d *Dict) DatastoreStats(_ context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var size, count uint64
	for ns, bucket := range d.ns {
		for name, b := range bucket {
			if selector != nil && !key.NewChild(key.New(ns), name).HasPrefix(*selector) {
				continue
			}
			size += uint64(len(b))
			count++
		}
	}
	return dsmeta.DatastoreMeta{
		Size:         dsmeta.Some(size),
		SizeAccuracy: dsmeta.AccuracyExact,
		ObjectCount:  dsmeta.Some(count),
	}, nil
}

func (d *Dict) Close() error { return nil }

func (d *Dict) Query(ctx context.Context, q query.Query) (query.Cursor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var entries []query.Entry
	for ns, bucket := range d.ns {
		for name, b := range bucket {
			k := key.NewChild(key.New(ns), name)
			if q.Filter != nil && !q.Filter(k) {
				continue
			}
			e := query.Entry{Key: k}
			if !q.KeysOnly {
				v := make([]byte, len(b))
				copy(v, b)
				e.Value = v
			}
			entries = append(entries, e)
			if q.Limit > 0 && len(entries) >= q.Limit {
				return query.NewSliceCursor(entries), nil
			}
		}
	}
	return query.NewSliceCursor(entries), nil
}

func (d *Dict) lookupLocked(k key.Key) ([]byte, bool) {
	bucket, ok := d.ns[k.Path().String()]
	if !ok {
		return nil, false
	}
	b, ok := bucket[k.Name()]
	return b, ok
}
