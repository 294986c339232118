package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"yojana/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	key := "timesheets/t1/signature"
	info, err := store.Put(ctx, key, bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "image/png", Metadata: map[string]string{"owner": "e1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != key || info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected duplicate failure, got %v", err)
	}
	head, err := store.Head(ctx, key)
	if err != nil || head.ContentType != "image/png" || head.Metadata["owner"] != "e1" {
		t.Fatalf("head: %v %+v", err, head)
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("unexpected content %q", b)
	}

	if _, err := store.Put(ctx, key, bytes.NewReader([]byte("bye")), core.PutOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	list, err := store.List(ctx, "timesheets/")
	if err != nil || len(list) != 1 || list[0].Size != 3 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if list, _ := store.List(ctx, "employees/"); len(list) != 0 {
		t.Fatalf("expected empty prefix listing")
	}

	ok, err := store.Delete(ctx, key)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, key); err != nil || ok {
		t.Fatalf("expected delete of missing key to report false")
	}
	if _, err := store.Head(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStore_RejectsUnsafeKeys(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "/etc/passwd", "../outside", "a/../../b", "x.meta"} {
		if _, err := store.Put(ctx, key, bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestStore_CorruptMetadata(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.root, "k.meta"), []byte("{"), 0o600); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if _, err := store.Head(ctx, "k"); err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
