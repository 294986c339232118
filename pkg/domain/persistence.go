package domain

import "context"

// TimesheetFilter narrows timesheet listings. Zero values disable a criterion.
type TimesheetFilter struct {
	OwnerID    string
	ReviewerID string
	Status     TimesheetStatus
}

// Matches reports whether the timesheet satisfies every set criterion.
func (f TimesheetFilter) Matches(t Timesheet) bool {
	if f.OwnerID != "" && t.OwnerID != f.OwnerID {
		return false
	}
	if f.ReviewerID != "" && t.ReviewerID != f.ReviewerID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

// WorkPackageFilter narrows work package listings within a project.
type WorkPackageFilter struct {
	ProjectID      string
	HierarchyLevel *int
	ParentID       *string
}

// Matches reports whether the work package satisfies every set criterion.
func (f WorkPackageFilter) Matches(wp WorkPackage) bool {
	if f.ProjectID != "" && wp.ProjectID != f.ProjectID {
		return false
	}
	if f.HierarchyLevel != nil && wp.HierarchyLevel != *f.HierarchyLevel {
		return false
	}
	if f.ParentID != nil && (wp.ParentID == nil || *wp.ParentID != *f.ParentID) {
		return false
	}
	return true
}

// EstimateFilter narrows estimate listings.
type EstimateFilter struct {
	ProjectID     string
	WorkPackageID string
}

// Matches reports whether the estimate satisfies every set criterion.
func (f EstimateFilter) Matches(e Estimate) bool {
	if f.ProjectID != "" && e.ProjectID != f.ProjectID {
		return false
	}
	if f.WorkPackageID != "" && e.WorkPackageID != f.WorkPackageID {
		return false
	}
	return true
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateEmployee(Employee) (Employee, error)
	UpdateEmployee(id string, mutator func(*Employee) error) (Employee, error)
	DeleteEmployee(id string) error
	PutCredential(Credential) (Credential, error)
	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	CreateWorkPackage(WorkPackage) (WorkPackage, error)
	UpdateWorkPackage(key WorkPackageKey, mutator func(*WorkPackage) error) (WorkPackage, error)
	CreateEstimate(Estimate) (Estimate, error)
	UpdateEstimate(id string, mutator func(*Estimate) error) (Estimate, error)
	DeleteEstimate(id string) error
	CreateTimesheet(Timesheet) (Timesheet, error)
	UpdateTimesheet(id string, mutator func(*Timesheet) error) (Timesheet, error)
	DeleteTimesheet(id string) error
	CreateTimesheetRow(TimesheetRow) (TimesheetRow, error)
	PutTimesheetRow(TimesheetRow) (TimesheetRow, bool, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// reference resolution.
type TransactionView interface {
	RuleView
	FindCredential(id string) (Credential, bool)
	FindCredentialByUsername(username string) (Credential, bool)
	FindEstimate(id string) (Estimate, bool)
	ListEmployees() []Employee
	ListTimesheets(filter TimesheetFilter) []Timesheet
	ListTimesheetRows(timesheetID string) []TimesheetRow
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetEmployee(id string) (Employee, bool)
	ListEmployees() []Employee
	GetCredential(id string) (Credential, bool)
	GetCredentialByUsername(username string) (Credential, bool)
	GetProject(id string) (Project, bool)
	ListProjects() []Project
	GetWorkPackage(key WorkPackageKey) (WorkPackage, bool)
	ListWorkPackages(filter WorkPackageFilter) []WorkPackage
	GetEstimate(id string) (Estimate, bool)
	ListEstimates(filter EstimateFilter) []Estimate
	GetTimesheet(id string) (Timesheet, bool)
	ListTimesheets(filter TimesheetFilter) []Timesheet
	ListTimesheetRows(timesheetID string) []TimesheetRow
}
