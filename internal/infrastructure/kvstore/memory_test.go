package kvstore

import (
	"context"
	"testing"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("session")

	_ = s.Set(ctx, "b", "2")
	_ = s.Set(ctx, "a", "1")

	keys, _ := s.Keys(ctx)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys = %v; want sorted [a b]", keys)
	}

	if v, ok, _ := s.Get(ctx, "a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}

	_ = s.Remove(ctx, "a")
	_ = s.Remove(ctx, "missing")
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("expected a to be removed")
	}
	if s.Name() != "session" {
		t.Fatalf("Name = %q", s.Name())
	}
}
