// Package backend provides the trivial conformance backends (Null, Dict)
// and the cloud leaf backends (S3, Azure, GCS, HDFS) that implement the
// datastore.Backend surface.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package backend

import (
	"context"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

// Null is the trivial always-empty backend used for contract conformance
// testing: get/delete always not-found, put discards, contains
// is always false, query always returns an empty cursor.
type Null struct{}

// NullStore is Null's caller-facing handle, mirroring DictStore's shape.
type NullStore struct {
	*datastore.Base
	n *Null
}

func NewNull() *NullStore {
	n := &Null{}
	return &NullStore{Base: datastore.NewBase(n), n: n}
}

func (s *NullStore) Query(ctx context.Context, q query.Query) (query.Cursor, error) {
	return s.n.Query(ctx, q)
}

func (*Null) Get(context.Context, key.Key) (dsio.RStream, error) {
	return nil, cos.NewErrNotFound("key")
}

func (*Null) PutStream(ctx context.Context, _ key.Key, v dsio.RStream) error {
	_, err := v.Collect(ctx)
	return err
}

func (*Null) Delete(context.Context, key.Key) error {
	return cos.NewErrNotFound("key")
}

func (*Null) Contains(context.Context, key.Key) (bool, error) { return false, nil }

func (*Null) Close() error { return nil }

func (*Null) Query(context.Context, query.Query) (query.Cursor, error) {
	return query.NewSliceCursor(nil), nil
}
