package adapter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aistore-oss/dstore/datastore"
	"github.com/aistore-oss/dstore/dsio"
	"github.com/aistore-oss/dstore/dsmeta"
	"github.com/aistore-oss/dstore/key"
)

// PromStats wraps get/put/delete with Prometheus counters for call counts
// and byte totals, and publishes the aggregated DatastoreStats size as a
// gauge before returning it unchanged. It is pure
// pass-through otherwise: it never transforms bytes, so all three
// forwarding flags delegate directly.
type PromStats struct {
	*datastore.Adapter

	calls     *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	sizeGauge prometheus.Gauge
}

// NewPromStats registers its metrics under the given namespace in reg (pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across cases).
func NewPromStats(child datastore.Datastore, reg prometheus.Registerer, namespace string) *PromStats {
	a := datastore.NewAdapter(child)
	a.ForwardContains = true
	a.ForwardGetAll = true
	a.ForwardStat = true

	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datastore_calls_total",
		Help:      "Number of datastore operations, by op and outcome.",
	}, []string{"op", "outcome"})
	bytesCtr := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datastore_bytes_total",
		Help:      "Bytes transferred through get/put, by op.",
	}, []string{"op"})
	sizeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "datastore_size_bytes",
		Help:      "Last observed DatastoreStats size.",
	})
	reg.MustRegister(calls, bytesCtr, sizeGauge)

	return &PromStats{Adapter: a, calls: calls, bytes: bytesCtr, sizeGauge: sizeGauge}
}

func (p *PromStats) outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *PromStats) Get(ctx context.Context, k key.Key) (dsio.RStream, error) {
	s, err := p.Child.Get(ctx, k)
	p.calls.WithLabelValues("get", p.outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	return &countingStream{RStream: s, counter: p.bytes.WithLabelValues("get")}, nil
}

func (p *PromStats) Put(ctx context.Context, k key.Key, v any) error {
	src, err := dsio.RStreamFrom(v)
	if err != nil {
		return err
	}
	raw, err := src.Collect(ctx)
	if err == nil {
		p.bytes.WithLabelValues("put").Add(float64(len(raw)))
		err = p.Child.Put(ctx, k, raw)
	}
	p.calls.WithLabelValues("put", p.outcome(err)).Inc()
	return err
}

func (p *PromStats) Delete(ctx context.Context, k key.Key) error {
	err := p.Child.Delete(ctx, k)
	p.calls.WithLabelValues("delete", p.outcome(err)).Inc()
	return err
}

func (p *PromStats) DatastoreStats(ctx context.Context, selector *key.Key) (dsmeta.DatastoreMeta, error) {
	m, err := datastore.ChildStats(ctx, p.Child, selector)
	if err == nil {
		if sz, ok := m.Size.Get(); ok {
			p.sizeGauge.Set(float64(sz))
		}
	}
	return m, err
}

// countingStream tallies bytes delivered by ReceiveSome/Collect into a
// Prometheus counter without altering what the caller observes.
type countingStream struct {
	dsio.RStream
	counter prometheus.Counter
}

func (c *countingStream) ReceiveSome(ctx context.Context, max int) ([]byte, error) {
	b, err := c.RStream.ReceiveSome(ctx, max)
	c.counter.Add(float64(len(b)))
	return b, err
}

func (c *countingStream) Collect(ctx context.Context) ([]byte, error) {
	b, err := c.RStream.Collect(ctx)
	c.counter.Add(float64(len(b)))
	return b, err
}
