package datastore

import (
	"context"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// Adapter is the delegating base that the single-child adapters (gzip, JSON
// envelope, stats-exporting) embed; the erasure-coded fan-out and tiered
// cache-through adapters hold several children and do not embed it. Default
// behavior forwards every operation to Child; the three forwarding flags
// default false (the safe choice) so an adapter that changes byte sizes
// must opt in deliberately before Contains/GetAll/Stat delegate directly.
type Adapter struct {
	Child Datastore

	// ForwardContains, if false, computes Contains via Get (open then
	// close) instead of delegating to Child.Contains.
	ForwardContains bool
	// ForwardGetAll, if false, computes GetAll via Get+Collect instead of
	// delegating to Child.GetAll.
	ForwardGetAll bool
	// ForwardStat, if false, computes Stat via Get+Meta instead of
	// delegating to Child.Stat.
	ForwardStat bool
}

func NewAdapter(child Datastore) *Adapter { return &Adapter{Child: child} }

func (a *Adapter) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	return a.Child.Get(ctx, k)
}

func (a *Adapter) Put(ctx context.Context, k key.Key, v any) error {
	return a.Child.Put(ctx, k, v)
}

func (a *Adapter) Delete(ctx context.Context, k key.Key) error {
	return a.Child.Delete(ctx, k)
}

func (a *Adapter) Contains(ctx context.Context, k key.Key) (bool, error) {
	if a.ForwardContains {
		return a.Child.Contains(ctx, k)
	}
	s, err := a.Child.Get(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	s.Close()
	return true, nil
}

func (a *Adapter) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	if a.ForwardGetAll {
		return a.Child.GetAll(ctx, k)
	}
	s, err := a.Child.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

func (a *Adapter) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	if a.ForwardStat {
		return a.Child.Stat(ctx, k)
	}
	s, err := a.Child.Get(ctx, k)
	if err != nil {
		return dsmeta.Meta{}, err
	}
	defer s.Close()
	return s.Meta(), nil
}

// DatastoreStats recurses into Child through the cycle-safe walk:
// a child already visited in this walk (DAG/cycle) contributes IGNORE.
func (a *Adapter) DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	return ChildStats(ctx, a.Child, selector)
}

// Close closes the child first, then returns; specialized adapters that
// own local resources (file handles, metric registrations) override Close
// to call a.Adapter.Close() first and perform local teardown unconditionally
// afterward: child first, local teardown guaranteed even when the child
// close failed.
func (a *Adapter) Close() error {
	return a.Child.Close()
}
