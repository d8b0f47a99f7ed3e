// Package query provides the minimal cursor/predicate surface backends
// that support enumeration return from Query. The query algebra is
// deliberately left to each backend; this package only fixes the types.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package query

import "github.com/aistore-oss/dstore/key"

// Entry is one result of a query: the key and, if the backend chose to
// include it, the value.
type Entry struct {
	Key   key.Key
	Value []byte
}

// Filter is a predicate over keys; a nil Filter matches everything under
// Prefix.
type Filter func(key.Key) bool

// Query selects a subset of a datastore's keys.
type Query struct {
	Prefix   key.Key
	Filter   Filter
	Limit    int // 0 == unlimited
	KeysOnly bool
}

// Cursor is a forward-only iterator of Query results.
type Cursor interface {
	// Next advances the cursor and reports whether an entry is available.
	Next() bool
	// Entry returns the current entry; valid only after a Next call returned true.
	Entry() Entry
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases resources held by the cursor. Idempotent.
	Close() error
}

// sliceCursor is the trivial in-memory Cursor implementation shared by the
// Null and Dict backends.
type sliceCursor struct {
	entries []Entry
	idx     int
}

func NewSliceCursor(entries []Entry) Cursor {
	return &sliceCursor{entries: entries, idx: -1}
}

func (c *sliceCursor) Next() bool {
	c.idx++
	return c.idx < len(c.entries)
}

func (c *sliceCursor) Entry() Entry {
	return c.entries[c.idx]
}

func (*sliceCursor) Err() error   { return nil }
func (*sliceCursor) Close() error { return nil }
