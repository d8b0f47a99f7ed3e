// Package datastore defines the core key/value contract and the delegating
// adapter base that every backend and adapter in this module implements or
// embeds.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package datastore

import (
	"context"
	"fmt"

	"github.com/aistore-oss/dstore/cmn/cos"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// Datastore is the caller-facing contract: every backend,
// adapter, and composed stack implements this same surface.
type Datastore interface {
	Get(ctx context.Context, k key.Key) (dsio.RStream, error)
	Put(ctx context.Context, k key.Key, v any) error
	Delete(ctx context.Context, k key.Key) error
	Contains(ctx context.Context, k key.Key) (bool, error)
	GetAll(ctx context.Context, k key.Key) ([]byte, error)
	Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error)
	DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error)
	Close() error
}

// Backend is what a leaf implementation provides: Get, PutStream (the value
// already normalized to a canonical RStream by Base), Delete, and Close. Contains/GetAll/Stat/DatastoreStats
// are optional overrides detected by type assertion -- a backend that wants
// the efficient path implements the matching *Overrider interface below;
// otherwise Base derives Contains/GetAll/Stat from Get and reports an
// all-unknown DatastoreStats record.
type Backend interface {
	Get(ctx context.Context, k key.Key) (dsio.RStream, error)
	PutStream(ctx context.Context, k key.Key, v dsio.RStream) error
	Delete(ctx context.Context, k key.Key) error
	Close() error
}

type containsOverrider interface {
	Contains(ctx context.Context, k key.Key) (bool, error)
}

type getAllOverrider interface {
	GetAll(ctx context.Context, k key.Key) ([]byte, error)
}

type statOverrider interface {
	Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error)
}

type statsOverrider interface {
	DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error)
}

// Base turns a Backend into a full Datastore: it validates and normalizes
// Put's input shape, and derives Contains/GetAll/Stat from Get when the
// backend does not override them. Without an override, DatastoreStats
// returns an empty record (size and object count unknown).
type Base struct {
	backend Backend
}

func NewBase(b Backend) *Base { return &Base{backend: b} }

func (b *Base) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	return b.backend.Get(ctx, k)
}

// Put validates that v is one of the five accepted shapes before touching
// the backend at all: an invalid shape is a programmer error and must fail
// with no side effects.
func (b *Base) Put(ctx context.Context, k key.Key, v any) error {
	stream, err := dsio.RStreamFrom(v)
	if err != nil {
		return cos.NewErrInvalidValueType(fmt.Sprintf("%T", v))
	}
	return b.backend.PutStream(ctx, k, stream)
}

func (b *Base) Delete(ctx context.Context, k key.Key) error {
	return b.backend.Delete(ctx, k)
}

func (b *Base) Contains(ctx context.Context, k key.Key) (bool, error) {
	if o, ok := b.backend.(containsOverrider); ok {
		return o.Contains(ctx, k)
	}
	s, err := b.backend.Get(ctx, k)
	if err != nil {
		if cos.IsErrNotFound(err) {
			return false, nil
		}
		return false, err
	}
	s.Close()
	return true, nil
}

func (b *Base) GetAll(ctx context.Context, k key.Key) ([]byte, error) {
	if o, ok := b.backend.(getAllOverrider); ok {
		return o.GetAll(ctx, k)
	}
	s, err := b.backend.Get(ctx, k)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx)
}

func (b *Base) Stat(ctx context.Context, k key.Key) (dsmeta.Meta, error) {
	if o, ok := b.backend.(statOverrider); ok {
		return o.Stat(ctx, k)
	}
	s, err := b.backend.Get(ctx, k)
	if err != nil {
		return dsmeta.Meta{}, err
	}
	defer s.Close()
	return s.Meta(), nil
}

func (b *Base) DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	if o, ok := b.backend.(statsOverrider); ok {
		return o.DatastoreStats(ctx, selector)
	}
	return dsmeta.DatastoreMeta{}, nil
}

func (b *Base) Close() error { return b.backend.Close() }
