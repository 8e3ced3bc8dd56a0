package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "vocastar_a"); ok || err != nil {
		t.Fatalf("Get() on empty store = %v, %v", ok, err)
	}
	for _, key := range []string{"vocastar_b", "vocastar_a", "admin"} {
		if err := kv.Set(ctx, key, "{}"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if err := kv.Set(ctx, "vocastar_a", `{"score":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := kv.Get(ctx, "vocastar_a")
	if err != nil || !ok || v != `{"score":1}` {
		t.Fatalf("Get() = %q, %v, %v", v, ok, err)
	}
	keys, err := kv.ListByPrefix(ctx, "vocastar_")
	if err != nil {
		t.Fatalf("ListByPrefix() error = %v", err)
	}
	if want := []string{"vocastar_a", "vocastar_b"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("ListByPrefix() = %v, want %v", keys, want)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseKV(t, NewMemoryStore())
}

func TestNewByEngineSQLite(t *testing.T) {
	kv, closer, err := NewByEngine(context.Background(), EngineSQLite, filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewByEngine() error = %v", err)
	}
	defer closer.Close()
	exerciseKV(t, kv)
}

func TestNewByEngineUnknown(t *testing.T) {
	_, _, err := NewByEngine(context.Background(), "cassandra", "")
	if !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("expected ErrUnsupportedEngine, got %v", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("a*b?[c]"); got != `a\*b\?\[c\]` {
		t.Fatalf("escapeGlob() = %q", got)
	}
}
