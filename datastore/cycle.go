package datastore

import (
	"context"

	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

type seenKeyType struct{}

var seenCtxKey seenKeyType

// ChildStats implements the cycle-safe stats walk: before an
// adapter recurses into a child, it consults a "seen" set of child
// identities carried on ctx. The set is created lazily on the first call
// in a given walk and shared by reference down every recursive call, so a
// leaf reachable via two distinct adapter paths (a DAG) is counted once,
// and a cycle terminates instead of recursing forever.
//
// Identity is the Datastore interface value itself: every concrete
// implementation in this module uses a pointer receiver, so two handles to
// the same underlying datastore compare equal as map keys.
func ChildStats(ctx context.Context, child Datastore, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	seen, ctx := seenSet(ctx)
	if _, already := seen[child]; already {
		return dsmeta.IGNORE, nil
	}
	seen[child] = struct{}{}
	return child.DatastoreStats(ctx, selector)
}

func seenSet(ctx context.Context) (map[Datastore]struct{}, context.Context) {
	if s, ok := ctx.Value(seenCtxKey).(map[Datastore]struct{}); ok {
		return s, ctx
	}
	s := make(map[Datastore]struct{})
	return s, context.WithValue(ctx, seenCtxKey, s)
}
