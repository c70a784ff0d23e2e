package gateway

import (
	"context"
	"testing"
)

func TestFilterMayForward(t *testing.T) {
	dir := newFakeDirectory()
	dir.setOwned("alice", "dev-1", "dev-3")
	f := NewFilter(dir)

	cases := []struct {
		user, device string
		want         bool
	}{
		{"alice", "dev-1", true},
		{"alice", "dev-3", true},
		{"alice", "dev-2", false},
		{"bob", "dev-1", false},
		{"", "dev-1", false},
	}
	for _, c := range cases {
		ok, err := f.MayForward(context.Background(), c.user, c.device)
		if err != nil {
			t.Fatalf("MayForward(%s,%s) error: %v", c.user, c.device, err)
		}
		if ok != c.want {
			t.Fatalf("MayForward(%s,%s) = %v, want %v", c.user, c.device, ok, c.want)
		}
	}
}

func TestFilterDeniesOnError(t *testing.T) {
	dir := newFakeDirectory()
	dir.setOwned("alice", "dev-1")
	dir.failLookups(1)
	f := NewFilter(dir)

	ok, err := f.MayForward(context.Background(), "alice", "dev-1")
	if err == nil {
		t.Fatal("expected lookup error to surface")
	}
	if ok {
		t.Fatal("fail-closed violated: forwarded on uncertainty")
	}
}
