package query_test

import (
	"testing"

	"github.com/aistore-oss/dstore/key"
	"github.com/aistore-oss/dstore/query"
)

func TestSliceCursor(t *testing.T) {
	entries := []query.Entry{
		{Key: key.New("/a"), Value: []byte("1")},
		{Key: key.New("/b"), Value: []byte("2")},
	}
	cur := query.NewSliceCursor(entries)

	var got []query.Entry
	for cur.Next() {
		got = append(got, cur.Entry())
	}
	if len(got) != 2 || !got[0].Key.Equal(key.New("/a")) || !got[1].Key.Equal(key.New("/b")) {
		t.Fatalf("got %v", got)
	}
	if cur.Next() {
		t.Fatalf("cursor advanced past its end")
	}
	if cur.Err() != nil {
		t.Fatalf("err: %v", cur.Err())
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := cur.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestSliceCursorEmpty(t *testing.T) {
	cur := query.NewSliceCursor(nil)
	if cur.Next() {
		t.Fatalf("expected no entries")
	}
}
