package dsio_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/aistore-oss/dstore/dsio"
)

func drain(t *testing.T, s dsio.RStream) []byte {
	t.Helper()
	b, err := s.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return b
}

func TestRStreamFromShapes(t *testing.T) {
	want := []byte("xy")

	cases := map[string]any{
		"raw buffer":    []byte("xy"),
		"chunk slice":   [][]byte{[]byte("x"), []byte(""), []byte("y")},
		"sync iterator": chunkIter([][]byte{[]byte("x"), []byte("y")}),
		"reader":        bytes.NewReader([]byte("xy")),
		"async chan":    asyncChan([][]byte{[]byte("x"), []byte("y")}),
		"awaitable":     dsio.Awaitable(func(context.Context) ([]byte, error) { return []byte("xy"), nil }),
	}

	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			s, err := dsio.RStreamFrom(src)
			if err != nil {
				t.Fatalf("RStreamFrom: %v", err)
			}
			got := drain(t, s)
			if !bytes.Equal(got, want) {
				t.Fatalf("got %q, want %q", got, want)
			}
		})
	}
}

func TestRStreamFromIdempotent(t *testing.T) {
	s, err := dsio.RStreamFrom([]byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	s2, err := dsio.RStreamFrom(s)
	if err != nil {
		t.Fatal(err)
	}
	if s2 != s {
		t.Fatalf("expected RStreamFrom(RStreamFrom(x)) to return the same instance")
	}
}

func TestReceiveSomeEmptyThenClosed(t *testing.T) {
	s, _ := dsio.RStreamFrom([]byte("a"))
	ctx := context.Background()

	chunk, err := s.ReceiveSome(ctx, 0)
	if err != nil || string(chunk) != "a" {
		t.Fatalf("chunk=%q err=%v", chunk, err)
	}
	chunk, err = s.ReceiveSome(ctx, 0)
	if err != nil || len(chunk) != 0 {
		t.Fatalf("expected empty end-of-stream, got chunk=%q err=%v", chunk, err)
	}
	// After EOF, ReceiveSome keeps returning empty until an explicit Close.
	chunk, err = s.ReceiveSome(ctx, 0)
	if err != nil || len(chunk) != 0 {
		t.Fatalf("expected empty again after EOF, got chunk=%q err=%v", chunk, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.ReceiveSome(ctx, 0); err == nil {
		t.Fatalf("expected closed-resource error after explicit Close")
	}
}

func TestReceiveSomeOverSupplyBuffering(t *testing.T) {
	s, _ := dsio.RStreamFrom([]byte("abcdef"))
	ctx := context.Background()

	chunk, _ := s.ReceiveSome(ctx, 2)
	if string(chunk) != "ab" {
		t.Fatalf("got %q", chunk)
	}
	chunk, _ = s.ReceiveSome(ctx, 2)
	if string(chunk) != "cd" {
		t.Fatalf("got %q", chunk)
	}
	chunk, _ = s.ReceiveSome(ctx, 10)
	if string(chunk) != "ef" {
		t.Fatalf("got %q", chunk)
	}
}

func TestEmptyChunkTransparency(t *testing.T) {
	chunks := [][]byte{{}, []byte("a"), {}, {}, []byte("b"), {}}
	s, _ := dsio.RStreamFrom(chunks)
	got := drain(t, s)
	if string(got) != "ab" {
		t.Fatalf("got %q, want ab", got)
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, _ := dsio.RStreamFrom([]byte("a"))
	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("close #%d: %v", i, err)
		}
	}
}

// --- helpers ---

func chunkIter(chunks [][]byte) dsio.SyncIter {
	i := 0
	return func() ([]byte, bool) {
		if i >= len(chunks) {
			return nil, false
		}
		c := chunks[i]
		i++
		return c, true
	}
}

func asyncChan(chunks [][]byte) <-chan []byte {
	ch := make(chan []byte, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch
}
