// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by yojana.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, persistence buckets
// and error envelopes.
const (
	// EntityEmployee identifies an employee record.
	EntityEmployee EntityType = "employee"
	// EntityCredential identifies the login credential sharing an employee's identity.
	EntityCredential EntityType = "credential"
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
	// EntityWorkPackage identifies a work package scoped to a project.
	EntityWorkPackage EntityType = "workPackage"
	// EntityEstimate identifies an estimate against a work package.
	EntityEstimate EntityType = "estimate"
	// EntityTimesheet identifies a weekly timesheet.
	EntityTimesheet EntityType = "timesheet"
	// EntityTimesheetRow identifies a single line of a timesheet.
	EntityTimesheetRow EntityType = "timesheetRow"
	// EntitySignature identifies the signature image attached to a timesheet.
	EntitySignature EntityType = "signature"
)

// TimesheetStatus is the workflow state of a timesheet. Any status may follow
// any other; there is no enforced transition graph.
type TimesheetStatus string

// Timesheet statuses accepted on create and merge.
const (
	TimesheetStatusDraft     TimesheetStatus = "draft"
	TimesheetStatusSubmitted TimesheetStatus = "submitted"
	TimesheetStatusApproved  TimesheetStatus = "approved"
	TimesheetStatusRejected  TimesheetStatus = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s TimesheetStatus) Valid() bool {
	switch s {
	case TimesheetStatusDraft, TimesheetStatusSubmitted, TimesheetStatusApproved, TimesheetStatusRejected:
		return true
	}
	return false
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// MaxRowDays bounds the per-day hour entries of a timesheet row.
const MaxRowDays = 7

// Audit carries the created/modified metadata embedded in every record.
type Audit struct {
	CreatedAt  time.Time `json:"createdAt" xml:"createdAt"`
	CreatedBy  string    `json:"createdBy,omitempty" xml:"createdBy,omitempty"`
	ModifiedAt time.Time `json:"modifiedAt" xml:"modifiedAt"`
	ModifiedBy string    `json:"modifiedBy,omitempty" xml:"modifiedBy,omitempty"`
}

// Employee is a person who records time and may hold admin or project manager roles.
type Employee struct {
	ID               string `json:"id"`
	FullName         string `json:"fullName"`
	IsAdmin          bool   `json:"isAdmin"`
	IsProjectManager bool   `json:"isProjectManager"`
	Audit            Audit  `json:"audit"`
}

// Credential holds the login secret for an employee. Its ID is the employee's ID.
type Credential struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	Audit        Audit  `json:"audit"`
}

// Project groups work packages under a managing employee.
type Project struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	ProjectManagerID string `json:"projectManagerId"`
	Audit            Audit  `json:"audit"`
}

// WorkPackageKey is the composite identity of a work package.
type WorkPackageKey struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
}

// String renders the key as projectID/id, the form used for storage buckets.
func (k WorkPackageKey) String() string {
	return k.ProjectID + "/" + k.ID
}

// WorkPackage is a unit of project work arranged in a tree under its project.
type WorkPackage struct {
	ID             string  `json:"id"`
	ProjectID      string  `json:"projectId"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	HierarchyLevel int     `json:"hierarchyLevel"`
	ParentID       *string `json:"parentId"`
	Audit          Audit   `json:"audit"`
}

// Key returns the composite identity of the work package.
func (wp WorkPackage) Key() WorkPackageKey {
	return WorkPackageKey{ID: wp.ID, ProjectID: wp.ProjectID}
}

// Estimate records the expected effort for a work package.
type Estimate struct {
	ID            string  `json:"id"`
	ProjectID     string  `json:"projectId"`
	WorkPackageID string  `json:"workPackageId"`
	Hours         float64 `json:"hours"`
	Description   string  `json:"description"`
	Audit         Audit   `json:"audit"`
}

// WorkPackageKey returns the identity of the estimated work package.
func (e Estimate) WorkPackageKey() WorkPackageKey {
	return WorkPackageKey{ID: e.WorkPackageID, ProjectID: e.ProjectID}
}

// Timesheet is an employee's weekly record of hours.
type Timesheet struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"ownerId"`
	ReviewerID string          `json:"reviewerId"`
	EndWeek    string          `json:"endWeek"`
	Status     TimesheetStatus `json:"status"`
	Signature  string          `json:"signature"`
	Feedback   string          `json:"feedback"`
	Overtime   float64         `json:"overtime"`
	Flextime   float64         `json:"flextime"`
	ApprovedAt *time.Time      `json:"approvedAt"`
	Rows       []TimesheetRow  `json:"timesheetRows"`
	Audit      Audit           `json:"audit"`
}

// TimesheetRowKey is the composite identity of a timesheet row.
type TimesheetRowKey struct {
	TimesheetID string `json:"timesheetId"`
	Index       int    `json:"index"`
}

// TimesheetRow is one line of hours against a project work package.
type TimesheetRow struct {
	TimesheetID   string    `json:"timesheetId"`
	Index         int       `json:"index"`
	ProjectID     string    `json:"projectId"`
	WorkPackageID string    `json:"workPackageId"`
	Hours         []float64 `json:"hours"`
	Notes         string    `json:"notes"`
}

// Key returns the composite identity of the row.
func (r TimesheetRow) Key() TimesheetRowKey {
	return TimesheetRowKey{TimesheetID: r.TimesheetID, Index: r.Index}
}

// WorkPackageKey returns the identity of the work package the row books against.
func (r TimesheetRow) WorkPackageKey() WorkPackageKey {
	return WorkPackageKey{ID: r.WorkPackageID, ProjectID: r.ProjectID}
}

// TotalHours sums the per-day entries of the row.
func (r TimesheetRow) TotalHours() float64 {
	var total float64
	for _, h := range r.Hours {
		total += h
	}
	return total
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entityId"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
