package key_test

import (
	"testing"

	"github.com/aistore-oss/dstore/key"
)

func TestPathAndEquality(t *testing.T) {
	a := key.New("/ns/a")
	b := key.New("ns/a")
	if !a.Equal(b) {
		t.Fatalf("expected %s == %s", a, b)
	}
	if a.Path().String() != "/ns" {
		t.Fatalf("expected parent /ns, got %s", a.Path())
	}
	if a.Name() != "a" {
		t.Fatalf("expected name a, got %s", a.Name())
	}
}

func TestTrailingSlashCollapsed(t *testing.T) {
	a := key.New("/ns/a/")
	if a.String() != "/ns/a" {
		t.Fatalf("expected trailing slash collapsed, got %s", a)
	}
}

func TestHasPrefix(t *testing.T) {
	ns := key.New("/ns")
	if !key.New("/ns/a").HasPrefix(ns) {
		t.Fatalf("expected /ns/a to be under /ns")
	}
	if key.New("/other/a").HasPrefix(ns) {
		t.Fatalf("expected /other/a not to be under /ns")
	}
	if !key.New("/x").HasPrefix(key.New("/")) {
		t.Fatalf("expected every key to be under root")
	}
}

func TestNewChild(t *testing.T) {
	ns := key.New("/ns")
	c := key.NewChild(ns, "a")
	if c.String() != "/ns/a" {
		t.Fatalf("expected /ns/a, got %s", c)
	}
	root := key.New("/")
	if key.NewChild(root, "a").String() != "/a" {
		t.Fatalf("expected /a, got %s", key.NewChild(root, "a"))
	}
}
