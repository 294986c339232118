package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{`{"a":1}`, `{"a":2}`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "projects"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	stored := conn.Rows("state")
	if len(stored) != 1 || string(stored[0]["payload"].([]byte)) != `{"a":2}` {
		t.Fatalf("expected a single replaced row, got %v", stored)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("next: %v", err)
	}
	if dest[0] != "projects" {
		t.Fatalf("unexpected row values: %v", dest)
	}

	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "x"}}); err == nil {
		t.Fatalf("expected column/arg mismatch error")
	}
}
