package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  Config
		want Driver
	}{
		{Config{FSRoot: t.TempDir()}, DriverFilesystem},
		{Config{Driver: DriverFilesystem, FSRoot: t.TempDir()}, DriverFilesystem},
		{Config{Driver: DriverMemory}, DriverMemory},
		{Config{Driver: DriverS3, S3: S3Config{Bucket: "signatures", AccessKeyID: "a", SecretAccessKey: "b"}}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %q: %v", tc.cfg.Driver, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestBackendsShareSemantics(t *testing.T) {
	ctx := context.Background()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{NewMemory(), fsStore, NewMockS3ForTests()} {
		if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); err != nil {
			t.Fatalf("%s put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, "k", strings.NewReader("v"), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected ErrExists, got %v", store.Driver(), err)
		}
		if _, err := store.Head(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", store.Driver(), err)
		}
	}
}
