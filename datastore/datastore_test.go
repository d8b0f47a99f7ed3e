package datastore_test

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"

	"github.com/aistore-oss/dstore/backend"
	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// Stacking any number of default-forwarding adapters over a backend must
// preserve round-trip, not-found-after-delete, contains fidelity, and stat
// size fidelity.
func TestAdapterStackPassThrough(t *testing.T) {
	ctx := context.Background()
	leaf := backend.NewDict()
	var d datastore.Datastore = leaf
	for i := 0; i < 3; i++ {
		d = datastore.NewAdapter(d)
	}

	k := key.New("/ns/a")
	want := []byte("stacked")
	if err := d.Put(ctx, k, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := d.GetAll(ctx, k)
	if err != nil || !bytes.Equal(got, want) {
		t.Fatalf("getall through stack: got %q err=%v", got, err)
	}
	ok, err := d.Contains(ctx, k)
	if err != nil || !ok {
		t.Fatalf("contains through stack: ok=%v err=%v", ok, err)
	}
	meta, err := d.Stat(ctx, k)
	if err != nil {
		t.Fatalf("stat through stack: %v", err)
	}
	if sz, valid := meta.Size.Get(); valid && sz != uint64(len(want)) {
		t.Fatalf("stat size %d != %d", sz, len(want))
	}
	if err := d.Delete(ctx, k); err != nil {
		t.Fatalf("delete through stack: %v", err)
	}
	if _, err := d.Get(ctx, k); !cos.IsErrNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	if ok, _ := d.Contains(ctx, k); ok {
		t.Fatalf("contains true after delete")
	}
}

// An adapter DAG where the same leaf is reachable via two distinct paths
// must count the leaf exactly once in DatastoreStats.
func TestDatastoreStatsDAGCountsLeafOnce(t *testing.T) {
	ctx := context.Background()
	leaf := backend.NewDict()
	if err := leaf.Put(ctx, key.New("/a"), []byte("12345")); err != nil {
		t.Fatalf("put: %v", err)
	}

	inner := datastore.NewAdapter(leaf)
	outer := &twoChildren{a: inner, b: leaf}

	stats, err := outer.DatastoreStats(ctx, nil)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	sz, ok := stats.Size.Get()
	if !ok || sz != 5 {
		t.Fatalf("expected leaf counted once (size 5), got %d ok=%v", sz, ok)
	}
}

// A cyclic adapter topology must terminate rather than recurse forever.
func TestDatastoreStatsCycleTerminates(t *testing.T) {
	ctx := context.Background()
	leaf := backend.NewDict()
	if err := leaf.Put(ctx, key.New("/a"), []byte("abc")); err != nil {
		t.Fatalf("put: %v", err)
	}

	a := datastore.NewAdapter(nil)
	b := datastore.NewAdapter(a)
	a.Child = &twoChildren{a: b, b: leaf}

	stats, err := a.DatastoreStats(ctx, nil)
	if err != nil {
		t.Fatalf("stats on cycle: %v", err)
	}
	if sz, ok := stats.Size.Get(); !ok || sz != 3 {
		t.Fatalf("expected size 3 from the one real leaf, got %d ok=%v", sz, ok)
	}
}

// twoChildren is a minimal fan-out adapter used to build DAG and cycle
// topologies in these tests: stats aggregate both children through the
// cycle-safe walk, everything else delegates to the first child.
type twoChildren struct {
	a, b datastore.Datastore
}

func (t *twoChildren) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	return t.a.Get(ctx, k)
}
func (t *twoChildren) Put(ctx context.Context, k key.Key, v any) error { return t.a.Put(ctx, k, v) }
func (t *twoChildren) Delete(ctx context.Context, k key.Key) error     { return t.a.Delete(ctx, k) }
func (t *twoChildren) Contains(ctx context.Context, k key.Key) (bool, error) {
	return t.a.Contains(ctx, k)
}
func (t *twoChildren) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	return t.a.GetAll(ctx, k)
}
func (t *twoChildren) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	return t.a.Stat(ctx, k)
}
func (t *twoChildren) DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	am, err := datastore.ChildStats(ctx, t.a, selector)
	if err != nil {
		return dsmeta.DatastoreMeta{}, err
	}
	bm, err := datastore.ChildStats(ctx, t.b, selector)
	if err != nil {
		return dsmeta.DatastoreMeta{}, err
	}
	return am.Add(bm), nil
}
func (t *twoChildren) Close() error { return nil }

// An invalid put value is a programmer error: it must fail before any side
// effect reaches the backend.
func TestPutRejectsInvalidShape(t *testing.T) {
	ctx := context.Background()
	d := backend.NewDict()
	k := key.New("/a")

	err := d.Put(ctx, k, 42)
	if !cos.IsErrInvalidValueType(err) {
		t.Fatalf("expected invalid-value-type error, got %v", err)
	}
	err = d.Put(ctx, k, "strings are disallowed")
	if !cos.IsErrInvalidValueType(err) {
		t.Fatalf("expected invalid-value-type for string, got %v", err)
	}
	if ok, _ := d.Contains(ctx, k); ok {
		t.Fatalf("rejected put must leave no side effect")
	}
}

// countingChild tallies which operations an adapter actually delegates, so
// the forwarding-flag behavior is observable.
type countingChild struct {
	datastore.Datastore
	gets, contains, getAlls, stats atomic.Int64
}

func (c *countingChild) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	c.gets.Add(1)
	return c.Datastore.Get(ctx, k)
}
func (c *countingChild) Contains(ctx context.Context, k key.Key) (bool, error) {
	c.contains.Add(1)
	return c.Datastore.Contains(ctx, k)
}
func (c *countingChild) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	c.getAlls.Add(1)
	return c.Datastore.GetAll(ctx, k)
}
func (c *countingChild) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	c.stats.Add(1)
	return c.Datastore.Stat(ctx, k)
}

func TestForwardingFlags(t *testing.T) {
	ctx := context.Background()
	k := key.New("/a")

	setup := func() (*countingChild, *datastore.Adapter) {
		child := &countingChild{Datastore: backend.NewDict()}
		if err := child.Datastore.Put(ctx, k, []byte("v")); err != nil {
			t.Fatalf("seed: %v", err)
		}
		return child, datastore.NewAdapter(child)
	}

	// Defaults (all false): Contains/GetAll/Stat are derived from Get.
	child, a := setup()
	if ok, err := a.Contains(ctx, k); err != nil || !ok {
		t.Fatalf("contains: ok=%v err=%v", ok, err)
	}
	if _, err := a.GetAll(ctx, k); err != nil {
		t.Fatalf("getall: %v", err)
	}
	if _, err := a.Stat(ctx, k); err != nil {
		t.Fatalf("stat: %v", err)
	}
	if n := child.contains.Load() + child.getAlls.Load() + child.stats.Load(); n != 0 {
		t.Fatalf("default flags must not delegate Contains/GetAll/Stat, saw %d delegations", n)
	}
	if child.gets.Load() != 3 {
		t.Fatalf("expected 3 Get-derived calls, got %d", child.gets.Load())
	}

	// All flags on: the three operations delegate directly.
	child, a = setup()
	a.ForwardContains = true
	a.ForwardGetAll = true
	a.ForwardStat = true
	if ok, err := a.Contains(ctx, k); err != nil || !ok {
		t.Fatalf("contains: ok=%v err=%v", ok, err)
	}
	if _, err := a.GetAll(ctx, k); err != nil {
		t.Fatalf("getall: %v", err)
	}
	if _, err := a.Stat(ctx, k); err != nil {
		t.Fatalf("stat: %v", err)
	}
	if child.contains.Load() != 1 || child.getAlls.Load() != 1 || child.stats.Load() != 1 {
		t.Fatalf("expected one delegation each, got contains=%d getall=%d stat=%d",
			child.contains.Load(), child.getAlls.Load(), child.stats.Load())
	}
	if child.gets.Load() != 0 {
		t.Fatalf("forwarding flags set; expected no Get-derived calls, got %d", child.gets.Load())
	}
}
