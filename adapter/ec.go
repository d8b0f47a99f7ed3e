package adapter

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// EC is the erasure-coded fan-out adapter: a sharded-cluster composition
// over N child datastores. Put splits the collected value into dataShards
// equal (padded) slices, computes parityShards parity slices via
// klauspost/reedsolomon, and writes one shard per child keyed by the same
// key with a shard-index suffix. Get tolerates up to parityShards
// missing/broken children.
type EC struct {
	children     []datastore.Datastore
	dataShards   int
	parityShards int
	enc          reedsolomon.Encoder
}

// NewEC builds an EC adapter over len(children) == dataShards+parityShards
// child datastores.
func NewEC(children []datastore.Datastore, dataShards, parityShards int) (*EC, error) {
	if len(children) != dataShards+parityShards {
		return nil, fmt.Errorf("adapter: EC needs %d children, got %d", dataShards+parityShards, len(children))
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &EC{children: children, dataShards: dataShards, parityShards: parityShards, enc: enc}, nil
}

func shardKey(k key.Key, i int) key.Key {
	return key.NewChild(k.Path(), fmt.Sprintf("%s.shard%d", k.Name(), i))
}

// Put collects the full value, splits+encodes it into data+parity shards,
// and writes each shard to its child keyed by a shard-index suffix.
func (e *EC) Put(ctx context.Context, k key.Key, v any) error {
	src, err := dsio.RStreamFrom(v)
	if err != nil {
		return err
	}
	raw, err := src.Collect(ctx)
	if err != nil {
		return err
	}

	shards, err := e.enc.Split(raw)
	if err != nil {
		return cos.WrapInternal(err, "ec: split "+k.String())
	}
	if err := e.enc.Encode(shards); err != nil {
		return cos.WrapInternal(err, "ec: encode "+k.String())
	}

	// Split pads the final data shard with zeros; every shard carries an
	// 8-byte header recording the true pre-padding length so Get can trim
	// the reconstructed output back to exactly what was Put, regardless of
	// which shards were actually read back.
	origSize := uint64(len(raw))
	var errs cos.Errs
	for i, shard := range shards {
		sk := shardKey(k, i)
		if err := e.children[i].Put(ctx, sk, withLenHeader(origSize, shard)); err != nil {
			errs.Add(fmt.Errorf("ec: shard %d: %w", i, err))
		}
	}
	return errs.Err()
}

const lenHeaderSize = 8

func withLenHeader(origSize uint64, shard []byte) []byte {
	out := make([]byte, lenHeaderSize+len(shard))
	binary.BigEndian.PutUint64(out[:lenHeaderSize], origSize)
	copy(out[lenHeaderSize:], shard)
	return out
}

// Get reads back shards from every child (tolerating up to ParityShards
// missing/broken ones), reconstructs via reedsolomon, and returns the
// reassembled RStream trimmed to the value's original length.
func (e *EC) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	total := e.dataShards + e.parityShards
	shards := make([][]byte, total)
	missing := 0
	var origSize uint64
	haveSize := false
	for i := 0; i < total; i++ {
		b, err := e.children[i].GetAll(ctx, shardKey(k, i))
		if err != nil || len(b) < lenHeaderSize {
			shards[i] = nil
			missing++
			continue
		}
		if !haveSize {
			origSize = binary.BigEndian.Uint64(b[:lenHeaderSize])
			haveSize = true
		}
		shards[i] = b[lenHeaderSize:]
	}
	if missing > e.parityShards || !haveSize {
		return nil, cos.NewErrNotFound(k.String())
	}

	if err := e.enc.Reconstruct(shards); err != nil {
		return nil, cos.WrapInternal(err, "ec: reconstruct "+k.String())
	}

	var out []byte
	for i := 0; i < e.dataShards; i++ {
		out = append(out, shards[i]...)
	}
	if uint64(len(out)) > origSize {
		out = out[:origSize]
	}
	return dsio.NewBytesStream(out, dsmeta.Meta{Size: dsmeta.Some(uint64(len(out)))}), nil
}

func (e *EC) Delete(ctx context.Context, k key.Key) error {
	var errs cos.Errs
	for i, child := range e.children {
		if err := child.Delete(ctx, shardKey(k, i)); err != nil && !cos.IsErrNotFound(err) {
			errs.Add(fmt.Errorf("ec: shard %d: %w", i, err))
		}
	}
	return errs.Err()
}

func (e *EC) Contains(ctx context.Context, k key.Key) (bool, error) {
	present := 0
	for i, child := range e.children {
		ok, err := child.Contains(ctx, shardKey(k, i))
		if err != nil {
			return false, err
		}
		if ok {
			present++
		}
	}
	return present >= e.dataShards, nil
}

func (e *EC) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	s, err := e.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

func (e *EC) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	s, err := e.Get(ctx, k)
	if err != nil {
		return dsmeta.Meta{}, err
	}
	defer s.Close()
	return s.Meta(), nil
}

// DatastoreStats sums children via the cycle-safe walk, dividing the
// reported size by the data/total shard ratio so the aggregate reflects
// logical, not on-disk, bytes; accuracy degrades to approximate because of
// the division.
func (e *EC) DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	total := dsmeta.IGNORE
	for _, child := range e.children {
		m, err := datastore.ChildStats(ctx, child, selector)
		if err != nil {
			return dsmeta.DatastoreMeta{}, err
		}
		total = total.Add(m)
	}
	if sz, ok := total.Size.Get(); ok {
		total.Size = dsmeta.Some(sz * uint64(e.dataShards) / uint64(e.dataShards+e.parityShards))
	}
	if total.SizeAccuracy > dsmeta.AccuracyApproximate {
		total.SizeAccuracy = dsmeta.AccuracyApproximate
	}
	return total, nil
}

func (e *EC) Close() error {
	var errs cos.Errs
	for _, child := range e.children {
		errs.Add(child.Close())
	}
	return errs.Err()
}
