// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"yojana/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Employee aliases domain.Employee for in-memory persistence operations.
	Employee = domain.Employee
	// Credential aliases domain.Credential.
	Credential = domain.Credential
	// Project aliases domain.Project.
	Project = domain.Project
	// WorkPackage aliases domain.WorkPackage.
	WorkPackage = domain.WorkPackage
	// Estimate aliases domain.Estimate.
	Estimate = domain.Estimate
	// Timesheet aliases domain.Timesheet.
	Timesheet = domain.Timesheet
	// TimesheetRow aliases domain.TimesheetRow.
	TimesheetRow = domain.TimesheetRow
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	employees    map[string]Employee
	credentials  map[string]Credential
	projects     map[string]Project
	workPackages map[string]WorkPackage
	estimates    map[string]Estimate
	timesheets   map[string]Timesheet
	rows         map[string]map[int]TimesheetRow
}

// Snapshot captures a point-in-time clone of the store state. Work packages
// are keyed by "projectID/id"; rows are grouped by timesheet id.
type Snapshot struct {
	Employees     map[string]Employee       `json:"employees"`
	Credentials   map[string]Credential     `json:"credentials"`
	Projects      map[string]Project        `json:"projects"`
	WorkPackages  map[string]WorkPackage    `json:"workPackages"`
	Estimates     map[string]Estimate       `json:"estimates"`
	Timesheets    map[string]Timesheet      `json:"timesheets"`
	TimesheetRows map[string][]TimesheetRow `json:"timesheetRows"`
}

// BucketNames lists the snapshot buckets in the order durable backends write them.
var BucketNames = []string{"employees", "credentials", "projects", "workPackages", "estimates", "timesheets", "timesheetRows"}

// Bucket returns a pointer to the named bucket for JSON encoding or decoding,
// or nil for an unknown name.
func (s *Snapshot) Bucket(name string) any {
	switch name {
	case "employees":
		return &s.Employees
	case "credentials":
		return &s.Credentials
	case "projects":
		return &s.Projects
	case "workPackages":
		return &s.WorkPackages
	case "estimates":
		return &s.Estimates
	case "timesheets":
		return &s.Timesheets
	case "timesheetRows":
		return &s.TimesheetRows
	default:
		return nil
	}
}

func newMemoryState() memoryState {
	return memoryState{
		employees:    make(map[string]Employee),
		credentials:  make(map[string]Credential),
		projects:     make(map[string]Project),
		workPackages: make(map[string]WorkPackage),
		estimates:    make(map[string]Estimate),
		timesheets:   make(map[string]Timesheet),
		rows:         make(map[string]map[int]TimesheetRow),
	}
}

func (s memoryState) clone() memoryState {
	out := newMemoryState()
	for k, v := range s.employees {
		out.employees[k] = v
	}
	for k, v := range s.credentials {
		out.credentials[k] = v
	}
	for k, v := range s.projects {
		out.projects[k] = v
	}
	for k, v := range s.workPackages {
		out.workPackages[k] = cloneWorkPackage(v)
	}
	for k, v := range s.estimates {
		out.estimates[k] = v
	}
	for k, v := range s.timesheets {
		out.timesheets[k] = cloneTimesheet(v)
	}
	for k, rows := range s.rows {
		copied := make(map[int]TimesheetRow, len(rows))
		for idx, row := range rows {
			copied[idx] = cloneRow(row)
		}
		out.rows[k] = copied
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cloned := state.clone()
	s := Snapshot{
		Employees:     cloned.employees,
		Credentials:   cloned.credentials,
		Projects:      cloned.projects,
		WorkPackages:  cloned.workPackages,
		Estimates:     cloned.estimates,
		Timesheets:    cloned.timesheets,
		TimesheetRows: make(map[string][]TimesheetRow, len(cloned.rows)),
	}
	for id := range cloned.rows {
		s.TimesheetRows[id] = sortedRows(cloned.rows[id])
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Employees {
		state.employees[k] = v
	}
	for k, v := range s.Credentials {
		state.credentials[k] = v
	}
	for k, v := range s.Projects {
		state.projects[k] = v
	}
	for _, v := range s.WorkPackages {
		state.workPackages[v.Key().String()] = cloneWorkPackage(v)
	}
	for k, v := range s.Estimates {
		state.estimates[k] = v
	}
	for k, v := range s.Timesheets {
		v.Rows = nil
		state.timesheets[k] = cloneTimesheet(v)
	}
	for id, rows := range s.TimesheetRows {
		if _, ok := state.timesheets[id]; !ok {
			continue
		}
		bucket := make(map[int]TimesheetRow, len(rows))
		for _, row := range rows {
			row.TimesheetID = id
			bucket[row.Index] = cloneRow(row)
		}
		state.rows[id] = bucket
	}
	return state
}

// migrateSnapshot drops dangling records so an imported snapshot satisfies the
// same referential guarantees the transactional API enforces.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	for id, cred := range snapshot.Credentials {
		if _, ok := snapshot.Employees[id]; !ok || cred.ID != id {
			delete(snapshot.Credentials, id)
		}
	}
	for key, wp := range snapshot.WorkPackages {
		if _, ok := snapshot.Projects[wp.ProjectID]; !ok {
			delete(snapshot.WorkPackages, key)
		}
	}
	for id, est := range snapshot.Estimates {
		if _, ok := snapshot.WorkPackages[est.WorkPackageKey().String()]; !ok {
			delete(snapshot.Estimates, id)
		}
	}
	for id, ts := range snapshot.Timesheets {
		if _, ok := snapshot.Employees[ts.OwnerID]; ts.OwnerID != "" && !ok {
			delete(snapshot.Timesheets, id)
			continue
		}
		if _, ok := snapshot.Employees[ts.ReviewerID]; ts.ReviewerID != "" && !ok {
			ts.ReviewerID = ""
			snapshot.Timesheets[id] = ts
		}
	}
	return snapshot
}

func cloneWorkPackage(wp WorkPackage) WorkPackage {
	if wp.ParentID != nil {
		parent := *wp.ParentID
		wp.ParentID = &parent
	}
	return wp
}

func cloneRow(r TimesheetRow) TimesheetRow {
	if r.Hours != nil {
		r.Hours = append([]float64(nil), r.Hours...)
	}
	return r
}

func cloneTimesheet(t Timesheet) Timesheet {
	if t.ApprovedAt != nil {
		at := *t.ApprovedAt
		t.ApprovedAt = &at
	}
	if t.Rows != nil {
		rows := make([]TimesheetRow, len(t.Rows))
		for i, r := range t.Rows {
			rows[i] = cloneRow(r)
		}
		t.Rows = rows
	}
	return t
}

func sortedRows(bucket map[int]TimesheetRow) []TimesheetRow {
	out := make([]TimesheetRow, 0, len(bucket))
	for _, row := range bucket {
		out = append(out, cloneRow(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// decorateTimesheet attaches the ordered rows owned by the timesheet.
func decorateTimesheet(state *memoryState, t Timesheet) Timesheet {
	t = cloneTimesheet(t)
	t.Rows = sortedRows(state.rows[t.ID])
	return t
}

func findCredentialByUsername(state *memoryState, username string) (Credential, bool) {
	for _, cred := range state.credentials {
		if cred.Username == username {
			return cred, true
		}
	}
	return Credential{}, false
}

func listWorkPackages(state *memoryState, filter domain.WorkPackageFilter) []WorkPackage {
	out := make([]WorkPackage, 0)
	for _, wp := range state.workPackages {
		if filter.Matches(wp) {
			out = append(out, cloneWorkPackage(wp))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

func listTimesheets(state *memoryState, filter domain.TimesheetFilter) []Timesheet {
	out := make([]Timesheet, 0)
	for _, t := range state.timesheets {
		if filter.Matches(t) {
			out = append(out, decorateTimesheet(state, t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EndWeek != out[j].EndWeek {
			return out[i].EndWeek < out[j].EndWeek
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func listEstimates(state *memoryState, filter domain.EstimateFilter) []Estimate {
	out := make([]Estimate, 0)
	for _, e := range state.estimates {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedValues[T any](m map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

// Option customises a Store.
type Option func(*Store)

// WithNow overrides the clock used to stamp audit fields.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The acting employee recorded on ctx is stamped into audit fields.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
		actor: domain.ActorFromContext(ctx),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// Read helpers ---------------------------------------------------------------

// GetEmployee retrieves an employee by ID from committed state.
func (s *Store) GetEmployee(id string) (Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.employees[id]
	return e, ok
}

// ListEmployees returns all employees ordered by ID.
func (s *Store) ListEmployees() []Employee {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.employees, func(e Employee) string { return e.ID })
}

// GetCredential retrieves the credential for an employee ID.
func (s *Store) GetCredential(id string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.credentials[id]
	return c, ok
}

// GetCredentialByUsername retrieves a credential by its unique username.
func (s *Store) GetCredentialByUsername(username string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return findCredentialByUsername(&s.state, username)
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	return p, ok
}

// ListProjects returns all projects ordered by ID.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.state.projects, func(p Project) string { return p.ID })
}

// GetWorkPackage retrieves a work package by composite key.
func (s *Store) GetWorkPackage(key domain.WorkPackageKey) (WorkPackage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wp, ok := s.state.workPackages[key.String()]
	if !ok {
		return WorkPackage{}, false
	}
	return cloneWorkPackage(wp), true
}

// ListWorkPackages returns work packages matching the filter.
func (s *Store) ListWorkPackages(filter domain.WorkPackageFilter) []WorkPackage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listWorkPackages(&s.state, filter)
}

// GetEstimate retrieves an estimate by ID.
func (s *Store) GetEstimate(id string) (Estimate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.estimates[id]
	return e, ok
}

// ListEstimates returns estimates matching the filter.
func (s *Store) ListEstimates(filter domain.EstimateFilter) []Estimate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEstimates(&s.state, filter)
}

// GetTimesheet retrieves a timesheet with its ordered rows.
func (s *Store) GetTimesheet(id string) (Timesheet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.timesheets[id]
	if !ok {
		return Timesheet{}, false
	}
	return decorateTimesheet(&s.state, t), true
}

// ListTimesheets returns timesheets matching the filter, ordered by week.
func (s *Store) ListTimesheets(filter domain.TimesheetFilter) []Timesheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTimesheets(&s.state, filter)
}

// ListTimesheetRows returns the rows of a timesheet ordered by index.
func (s *Store) ListTimesheetRows(timesheetID string) []TimesheetRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRows(s.state.rows[timesheetID])
}
