package kv

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	if _, err := s.Get(ctx, Key{"calendar", "accounts", "acme"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, Key{"calendar", "accounts", "acme"}, []byte("creds")); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get(ctx, Key{"calendar", "accounts", "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "creds" {
		t.Errorf("Get = %q, want %q", v, "creds")
	}

	// Overwrite replaces, not appends.
	if err := s.Set(ctx, Key{"calendar", "accounts", "acme"}, []byte("creds2")); err != nil {
		t.Fatal(err)
	}
	v, _ = s.Get(ctx, Key{"calendar", "accounts", "acme"})
	if string(v) != "creds2" {
		t.Errorf("Get after overwrite = %q, want %q", v, "creds2")
	}

	if err := s.Delete(ctx, Key{"calendar", "accounts", "acme"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, Key{"calendar", "accounts", "acme"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is a no-op.
	if err := s.Delete(ctx, Key{"nope"}); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryListPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_ = s.Set(ctx, Key{"kb", "services", "b"}, []byte("2"))
	_ = s.Set(ctx, Key{"kb", "services", "a"}, []byte("1"))
	_ = s.Set(ctx, Key{"kb", "products", "c"}, []byte("3"))

	var got []string
	for e, err := range s.List(ctx, Key{"kb", "services"}) {
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, e.Key.String()+"="+string(e.Value))
	}
	want := []string{"kb:services:a=1", "kb:services:b=2"}
	if len(got) != len(want) {
		t.Fatalf("List returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMemoryListPrefixBoundary(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_ = s.Set(ctx, Key{"kb", "services", "a"}, []byte("1"))
	_ = s.Set(ctx, Key{"kb", "services2", "x"}, []byte("9"))

	n := 0
	for _, err := range s.List(ctx, Key{"kb", "services"}) {
		if err != nil {
			t.Fatal(err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("prefix matched %d entries, want 1 (must not match 'services2')", n)
	}
}

func TestKeyString(t *testing.T) {
	k := Key{"calendar", "accounts", "acme"}
	if k.String() != "calendar:accounts:acme" {
		t.Errorf("Key.String() = %q", k.String())
	}
}

func TestBadgerInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenBadger(BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.Set(ctx, Key{"kb", "services", "doc1"}, []byte("v")); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get(ctx, Key{"kb", "services", "doc1"})
	if err != nil {
		t.Fatal(err)
	}
	if string(v) != "v" {
		t.Errorf("Get = %q, want %q", v, "v")
	}

	if _, err := s.Get(ctx, Key{"missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}

	n := 0
	for _, err := range s.List(ctx, Key{"kb"}) {
		if err != nil {
			t.Fatal(err)
		}
		n++
	}
	if n != 1 {
		t.Errorf("List count = %d, want 1", n)
	}
}
