package adapter_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aistore-oss/dstore/adapter"
	"github.com/aistore-oss/dstore/backend"
	"github.com/aistore-oss/dstore/key"
)

func TestPromStatsCountsCallsAndBytes(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	ps := adapter.NewPromStats(backend.NewDict(), reg, "dstore_test")

	k := key.New("/a")
	if err := ps.Put(ctx, k, []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := ps.GetAll(ctx, k); err != nil {
		t.Fatalf("getall: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "dstore_test_datastore_calls_total" {
			found = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("expected at least one call sample")
			}
		}
	}
	if !found {
		t.Fatalf("expected dstore_test_datastore_calls_total to be registered")
	}
}
