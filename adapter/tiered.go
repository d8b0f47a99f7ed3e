package adapter

import (
	"context"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/cmn/nlog"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/tee"
)

// Tiered is the cache-through adapter: a write-through cache populating
// its backing store from the same byte stream the caller reads.
// Get tries Fast first; on not-found it reads
// Slow and tees the returned stream so the primary branch goes to the
// caller while a side consumer (tee.StartTask) drains the other branch
// into Fast.Put, so a subsequent Get for the same key is served by Fast
// without re-reading Slow.
type Tiered struct {
	Fast, Slow datastore.Datastore
	// TeeBufSize is each side consumer's pipe capacity, in chunks; 0
	// makes the pipe unbuffered, so every fan-out send waits for the
	// side consumer.
	TeeBufSize int
}

func NewTiered(fast, slow datastore.Datastore) *Tiered {
	return &Tiered{Fast: fast, Slow: slow, TeeBufSize: 32 * 1024}
}

func (t *Tiered) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	s, err := t.Fast.Get(ctx, k)
	if err == nil {
		return s, nil
	}
	if !cos.IsErrNotFound(err) {
		return nil, err
	}

	slow, err := t.Slow.Get(ctx, k)
	if err != nil {
		return nil, err
	}

	tm := tee.NewTeeStream(slow, t.TeeBufSize)
	if startErr := tm.StartTask(ctx, func(ctx context.Context, recv dsio.RStream) error {
		b, err := recv.Collect(ctx)
		if err != nil {
			return err
		}
		if err := t.Fast.Put(ctx, k, b); err != nil {
			nlog.Warningf("tiered: populate fast tier for %s: %v", k, err)
			return err
		}
		return nil
	}); startErr != nil {
		// Fast-tier population is best-effort: if the side consumer can't be
		// attached, the caller still gets Slow's data uncached.
		nlog.Warningf("tiered: could not attach fast-tier populator for %s: %v", k, startErr)
		return slow, nil
	}
	return tm, nil
}

// Put writes through to Slow only; Fast is populated lazily by Get misses.
func (t *Tiered) Put(ctx context.Context, k key.Key, v any) error {
	return t.Slow.Put(ctx, k, v)
}

// Delete applies to both tiers; a not-found on Fast (the common case, since
// Fast only ever holds what Get has cached) is not itself an error as long
// as Slow's delete succeeds.
func (t *Tiered) Delete(ctx context.Context, k key.Key) error {
	err := t.Slow.Delete(ctx, k)
	if ferr := t.Fast.Delete(ctx, k); ferr != nil && !cos.IsErrNotFound(ferr) {
		if err == nil {
			err = ferr
		}
	}
	return err
}

// Contains checks Fast then Slow.
func (t *Tiered) Contains(ctx context.Context, k key.Key) (bool, error) {
	ok, err := t.Fast.Contains(ctx, k)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return t.Slow.Contains(ctx, k)
}

func (t *Tiered) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	s, err := t.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

// Stat checks Fast then Slow.
func (t *Tiered) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	m, err := t.Fast.Stat(ctx, k)
	if err == nil {
		return m, nil
	}
	if !cos.IsErrNotFound(err) {
		return dsmeta.Meta{}, err
	}
	return t.Slow.Stat(ctx, k)
}

// DatastoreStats aggregates both tiers via the cycle-safe walk; a
// backing store mounted as both Fast and Slow of two different Tiered
// stacks is still counted once thanks to ChildStats' seen set.
func (t *Tiered) DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	fast, err := datastore.ChildStats(ctx, t.Fast, selector)
	if err != nil {
		return dsmeta.DatastoreMeta{}, err
	}
	slow, err := datastore.ChildStats(ctx, t.Slow, selector)
	if err != nil {
		return dsmeta.DatastoreMeta{}, err
	}
	return fast.Add(slow), nil
}

// Close closes Fast first, then Slow, with Slow's teardown guaranteed even
// if Fast's close failed.
func (t *Tiered) Close() error {
	var errs cos.Errs
	errs.Add(t.Fast.Close())
	errs.Add(t.Slow.Close())
	return errs.Err()
}
