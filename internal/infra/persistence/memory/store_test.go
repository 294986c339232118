package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"yojana/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC)

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(nil, WithNow(func() time.Time { return fixedNow }))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateEmployee(domain.Employee{ID: "e1", FullName: "Asha Rao", IsProjectManager: true}); err != nil {
			return err
		}
		if _, err := tx.CreateEmployee(domain.Employee{ID: "e2", FullName: "Ben Ode"}); err != nil {
			return err
		}
		if _, err := tx.CreateProject(domain.Project{ID: "p1", Name: "Apollo", ProjectManagerID: "e1"}); err != nil {
			return err
		}
		_, err := tx.CreateWorkPackage(domain.WorkPackage{ID: "wp1", ProjectID: "p1", Name: "Design"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := newSeededStore(t)
	ctx := domain.ContextWithActor(context.Background(), "e1")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateTimesheet(domain.Timesheet{OwnerID: "e2", EndWeek: "2024-03-08", Status: domain.TimesheetStatusDraft})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if created.Audit.CreatedBy != "e1" || !created.Audit.CreatedAt.Equal(fixedNow) {
			t.Fatalf("expected audit stamped from actor and clock, got %+v", created.Audit)
		}
		if len(tx.Snapshot().ListTimesheets(domain.TimesheetFilter{})) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListTimesheets(domain.TimesheetFilter{})) != 1 {
		t.Fatalf("expected persisted timesheet")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListProjects()) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListProjects()) != 1 || len(store.ListTimesheets(domain.TimesheetFilter{OwnerID: "e2"})) != 1 {
		t.Fatalf("expected restored state")
	}
	if _, ok := store.GetWorkPackage(domain.WorkPackageKey{ID: "wp1", ProjectID: "p1"}); !ok {
		t.Fatalf("expected restored work package")
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected engine and clock")
	}
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateEmployee(domain.Employee{FullName: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListEmployees()) != 0 {
		t.Fatalf("expected blocked transaction to leave state untouched")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.RuleView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock}}}, nil
}

func TestFailedTransactionDiscardsChanges(t *testing.T) {
	store := newSeededStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateProject(domain.Project{ID: "p2", Name: "Gemini", ProjectManagerID: "e1"}); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := store.GetProject("p2"); ok {
		t.Fatalf("expected rollback of p2")
	}
}

func TestUpdatePreservesIdentityAndCreationAudit(t *testing.T) {
	store := newSeededStore(t)
	later := fixedNow.Add(time.Hour)
	store.nowFn = func() time.Time { return later }
	ctx := domain.ContextWithActor(context.Background(), "e2")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateProject("missing", func(*domain.Project) error { return nil }); !domain.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		updated, err := tx.UpdateProject("p1", func(p *domain.Project) error {
			p.ID = "hijack"
			p.Name = "Apollo II"
			p.Audit = domain.Audit{}
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ID != "p1" || updated.Name != "Apollo II" {
			t.Fatalf("unexpected update result %+v", updated)
		}
		if !updated.Audit.CreatedAt.Equal(fixedNow) || !updated.Audit.ModifiedAt.Equal(later) || updated.Audit.ModifiedBy != "e2" {
			t.Fatalf("unexpected audit %+v", updated.Audit)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestProjectRequiresExistingManager(t *testing.T) {
	store := newSeededStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateProject(domain.Project{Name: "Orphan", ProjectManagerID: "ghost"})
		return err
	})
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) || nf.Entity != domain.EntityEmployee || nf.ID != "ghost" {
		t.Fatalf("expected employee not found, got %v", err)
	}
}

func TestCredentialUsernameUnique(t *testing.T) {
	store := newSeededStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.PutCredential(domain.Credential{ID: "e1", Username: "asha", PasswordHash: "x"}); err != nil {
			return err
		}
		_, err := tx.PutCredential(domain.Credential{ID: "e2", Username: "asha", PasswordHash: "y"})
		return err
	})
	var conflict domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if _, ok := store.GetCredentialByUsername("asha"); ok {
		t.Fatalf("expected rolled back credential")
	}
}

func TestDeleteEmployeeCascadesCredentialAndGuardsReferences(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.PutCredential(domain.Credential{ID: "e2", Username: "ben", PasswordHash: "h"})
		return err
	})
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteEmployee("e1")
	})
	var conflict domain.ErrConflict
	if !errors.As(err, &conflict) || conflict.Field != "projectManagerId" {
		t.Fatalf("expected manager conflict, got %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteEmployee("e2")
	})
	if err != nil {
		t.Fatalf("delete employee: %v", err)
	}
	if _, ok := store.GetCredential("e2"); ok {
		t.Fatalf("expected credential removed with employee")
	}
}

func TestDeleteEmployeeClearsReviewer(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateEmployee(domain.Employee{ID: "e3", FullName: "Cy Reviewer"}); err != nil {
			return err
		}
		_, err := tx.CreateTimesheet(domain.Timesheet{ID: "ts1", OwnerID: "e2", ReviewerID: "e3"})
		return err
	})
	if err != nil {
		t.Fatalf("seed timesheet: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteEmployee("e3")
	})
	if err != nil {
		t.Fatalf("delete reviewer: %v", err)
	}
	ts, ok := store.GetTimesheet("ts1")
	if !ok || ts.ReviewerID != "" {
		t.Fatalf("expected reviewer cleared, got %+v", ts)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateTimesheet("ts1", func(t *domain.Timesheet) error {
			t.Feedback = "looks good"
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update after reviewer removal: %v", err)
	}
	if ts, _ := store.GetTimesheet("ts1"); ts.Feedback != "looks good" {
		t.Fatalf("expected feedback stored, got %+v", ts)
	}
}

func TestWorkPackageCompositeIdentity(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateProject(domain.Project{ID: "p2", Name: "Gemini", ProjectManagerID: "e1"}); err != nil {
			return err
		}
		if _, err := tx.CreateWorkPackage(domain.WorkPackage{ID: "wp1", ProjectID: "p2", Name: "Same id, other project"}); err != nil {
			return err
		}
		if _, err := tx.CreateWorkPackage(domain.WorkPackage{ID: "wp1", ProjectID: "p1"}); err == nil {
			t.Fatalf("expected duplicate conflict")
		}
		if _, err := tx.CreateWorkPackage(domain.WorkPackage{ProjectID: "nope"}); !domain.IsNotFound(err) {
			t.Fatalf("expected missing project, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if got := store.ListWorkPackages(domain.WorkPackageFilter{ProjectID: "p1"}); len(got) != 1 {
		t.Fatalf("expected one package in p1, got %d", len(got))
	}
	if got := store.ListWorkPackages(domain.WorkPackageFilter{}); len(got) != 2 {
		t.Fatalf("expected two packages overall, got %d", len(got))
	}
}

func TestTimesheetRowsLifecycle(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	var tsID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		ts, err := tx.CreateTimesheet(domain.Timesheet{
			OwnerID: "e2",
			Status:  domain.TimesheetStatusDraft,
			Rows:    []domain.TimesheetRow{{Index: 0, ProjectID: "p1", WorkPackageID: "wp1", Hours: []float64{8}}},
		})
		tsID = ts.ID
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateTimesheetRow(domain.TimesheetRow{TimesheetID: tsID, Index: 0, ProjectID: "p1", WorkPackageID: "wp1"}); err == nil {
			t.Fatalf("expected index conflict")
		}
		row, created, err := tx.PutTimesheetRow(domain.TimesheetRow{TimesheetID: tsID, Index: 0, ProjectID: "p1", WorkPackageID: "wp1", Hours: []float64{4, 4}, Notes: "replaced"})
		if err != nil {
			return err
		}
		if created || row.Notes != "replaced" {
			t.Fatalf("expected replace of existing row, got created=%v row=%+v", created, row)
		}
		_, created, err = tx.PutTimesheetRow(domain.TimesheetRow{TimesheetID: tsID, Index: 3, ProjectID: "p1", WorkPackageID: "wp1"})
		if err != nil {
			return err
		}
		if !created {
			t.Fatalf("expected insert at new index")
		}
		if _, _, err := tx.PutTimesheetRow(domain.TimesheetRow{TimesheetID: tsID, Index: 4, ProjectID: "p1", WorkPackageID: "ghost"}); !domain.IsNotFound(err) {
			t.Fatalf("expected missing work package, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	rows := store.ListTimesheetRows(tsID)
	if len(rows) != 2 || rows[0].Index != 0 || rows[1].Index != 3 {
		t.Fatalf("expected ordered rows 0,3 got %+v", rows)
	}
	if rows[0].TotalHours() != 8 {
		t.Fatalf("expected replaced hours to total 8, got %v", rows[0].TotalHours())
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateTimesheet(tsID, func(ts *domain.Timesheet) error {
			ts.Rows = []domain.TimesheetRow{}
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := store.GetTimesheet(tsID); len(got.Rows) != 0 {
		t.Fatalf("expected rows cleared, got %+v", got.Rows)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteTimesheet(tsID) })
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.GetTimesheet(tsID); ok {
		t.Fatalf("expected timesheet deleted")
	}
}

func TestRowValidation(t *testing.T) {
	store := newSeededStore(t)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateTimesheet(domain.Timesheet{
			OwnerID: "e2",
			Rows:    []domain.TimesheetRow{{Index: 0, ProjectID: "p1", WorkPackageID: "wp1", Hours: make([]float64, 8)}},
		})
		return err
	})
	var invalid domain.ErrInvalid
	if !errors.As(err, &invalid) || invalid.Field != "hours" {
		t.Fatalf("expected hours invalid, got %v", err)
	}
}

func TestEstimatesFilterAndDelete(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	var id string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		est, err := tx.CreateEstimate(domain.Estimate{ProjectID: "p1", WorkPackageID: "wp1", Hours: 12})
		id = est.ID
		return err
	})
	if err != nil {
		t.Fatalf("create estimate: %v", err)
	}
	if got := store.ListEstimates(domain.EstimateFilter{WorkPackageID: "wp1"}); len(got) != 1 {
		t.Fatalf("expected one estimate, got %d", len(got))
	}
	if got := store.ListEstimates(domain.EstimateFilter{ProjectID: "other"}); len(got) != 0 {
		t.Fatalf("expected no estimates for other project")
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteEstimate(id) })
	if err != nil {
		t.Fatalf("delete estimate: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error { return tx.DeleteEstimate(id) })
	if !domain.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestImportDropsDanglingRecords(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{
		Employees:   map[string]Employee{"e1": {ID: "e1"}},
		Credentials: map[string]Credential{"e1": {ID: "e1", Username: "a"}, "ghost": {ID: "ghost", Username: "g"}},
		WorkPackages: map[string]WorkPackage{
			"p9/wp1": {ID: "wp1", ProjectID: "p9"},
		},
		TimesheetRows: map[string][]TimesheetRow{"missing": {{Index: 0}}},
	})
	if _, ok := store.GetCredential("ghost"); ok {
		t.Fatalf("expected orphaned credential dropped")
	}
	if len(store.ListWorkPackages(domain.WorkPackageFilter{})) != 0 {
		t.Fatalf("expected orphaned work package dropped")
	}
	if len(store.ListTimesheetRows("missing")) != 0 {
		t.Fatalf("expected orphaned rows dropped")
	}
}

func TestImportRepairsTimesheetReferences(t *testing.T) {
	store := NewStore(nil)
	store.ImportState(Snapshot{
		Employees: map[string]Employee{"e1": {ID: "e1"}},
		Timesheets: map[string]Timesheet{
			"kept":     {ID: "kept", OwnerID: "e1", ReviewerID: "gone"},
			"orphaned": {ID: "orphaned", OwnerID: "gone"},
		},
		TimesheetRows: map[string][]TimesheetRow{"orphaned": {{Index: 0}}},
	})
	ts, ok := store.GetTimesheet("kept")
	if !ok || ts.ReviewerID != "" {
		t.Fatalf("expected dangling reviewer cleared, got %+v", ts)
	}
	if _, ok := store.GetTimesheet("orphaned"); ok {
		t.Fatalf("expected timesheet of a missing owner dropped")
	}
	if len(store.ListTimesheetRows("orphaned")) != 0 {
		t.Fatalf("expected rows of the dropped timesheet dropped")
	}
}

func TestSnapshotBucketsCoverEveryField(t *testing.T) {
	var snapshot Snapshot
	for _, name := range BucketNames {
		if snapshot.Bucket(name) == nil {
			t.Fatalf("bucket %s has no target", name)
		}
	}
	if snapshot.Bucket("organisms") != nil {
		t.Fatalf("expected unknown bucket to be nil")
	}
	store := newSeededStore(t)
	exported := store.ExportState()
	projects, ok := exported.Bucket("projects").(*map[string]Project)
	if !ok || len(*projects) != 1 {
		t.Fatalf("expected projects bucket to point at exported projects")
	}
}
