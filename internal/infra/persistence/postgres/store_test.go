package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"yojana/internal/infra/persistence/memory"
	"yojana/internal/infra/persistence/postgres/testutil"
	"yojana/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)

func TestStorePersistsEveryBucketAfterCommit(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	store, err := New(ctx, db, nil, memory.WithNow(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateEmployee(domain.Employee{ID: "e1", FullName: "Asha Rao"}); err != nil {
			return err
		}
		_, err := tx.CreateProject(domain.Project{ID: "p1", Name: "Apollo", ProjectManagerID: "e1"})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	rows := conn.Rows("state")
	if len(rows) != len(memory.BucketNames) {
		t.Fatalf("expected %d buckets, got %d", len(memory.BucketNames), len(rows))
	}
	for _, row := range rows {
		if row["updated_at"] != fixedNow {
			t.Fatalf("expected updated_at stamped from the store clock, got %v", row["updated_at"])
		}
		if row["bucket"] != "projects" {
			continue
		}
		var projects map[string]domain.Project
		if err := json.Unmarshal(row["payload"].([]byte), &projects); err != nil {
			t.Fatalf("decode projects: %v", err)
		}
		if projects["p1"].ProjectManagerID != "e1" {
			t.Fatalf("unexpected persisted projects: %+v", projects)
		}
	}
	if conn.Commits != 1 {
		t.Fatalf("expected one commit, got %d", conn.Commits)
	}
}

func TestStoreHydratesFromExistingSnapshot(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	conn.Tables["state"] = []map[string]any{
		{"bucket": "employees", "payload": []byte(`{"e1":{"id":"e1","fullName":"Asha Rao"}}`)},
		{"bucket": "projects", "payload": []byte(`{"p1":{"id":"p1","name":"Apollo","projectManagerId":"e1"}}`)},
		{"bucket": "legacy", "payload": []byte(`{}`)},
	}
	store, err := New(ctx, db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p, ok := store.GetProject("p1"); !ok || p.Name != "Apollo" {
		t.Fatalf("expected hydrated project, got %+v", p)
	}
}

func TestStoreSurfacesPersistFailures(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	store, err := New(ctx, db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	conn.FailTables = map[string]bool{"state": true}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateEmployee(domain.Employee{ID: "e1", FullName: "Asha Rao"})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "upsert employees") {
		t.Fatalf("expected upsert failure, got %v", err)
	}

	conn.Tables["state"] = []map[string]any{{"bucket": "projects", "payload": []byte(`{broken`)}}
	conn.FailTables = nil
	if _, err := New(ctx, db, nil); err == nil || !strings.Contains(err.Error(), "decode projects") {
		t.Fatalf("expected decode failure, got %v", err)
	}
}

func TestStoreSkipsPersistOnFailedTransaction(t *testing.T) {
	ctx := context.Background()
	db, conn := testutil.NewStubDB()
	store, err := New(ctx, db, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateProject(domain.Project{ID: "p1", ProjectManagerID: "ghost"})
		return err
	})
	if err == nil {
		t.Fatalf("expected missing manager error")
	}
	if len(conn.Execs) != 0 {
		t.Fatalf("expected no statements after a failed transaction, got %v", conn.Execs)
	}
}
