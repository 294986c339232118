package domain

import "time"

// Patch payloads carry optional fields. A nil pointer means the field was
// omitted or explicitly null, and either way the current value is kept.

// EmployeePatch updates an employee and, optionally, its credential.
type EmployeePatch struct {
	ID               *string `json:"id" xml:"id"`
	FullName         *string `json:"fullName" xml:"fullName"`
	IsAdmin          *bool   `json:"isAdmin" xml:"isAdmin"`
	IsProjectManager *bool   `json:"isProjectManager" xml:"isProjectManager"`
	Username         *string `json:"username" xml:"credential>username"`
	Password         *string `json:"password" xml:"credential>password"`
}

// ProjectPatch updates a project.
type ProjectPatch struct {
	ID               *string `json:"id"`
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	ProjectManagerID *string `json:"projectManagerId"`
}

// WorkPackagePatch updates a work package.
type WorkPackagePatch struct {
	ID             *string `json:"id"`
	ProjectID      *string `json:"projectId"`
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	HierarchyLevel *int    `json:"hierarchyLevel"`
	ParentID       *string `json:"parentId"`
}

// EstimatePatch updates an estimate.
type EstimatePatch struct {
	ID            *string  `json:"id"`
	ProjectID     *string  `json:"projectId"`
	WorkPackageID *string  `json:"workPackageId"`
	Hours         *float64 `json:"hours"`
	Description   *string  `json:"description"`
}

// TimesheetRowInput is a row as submitted by a client. Index may be omitted
// on insert, in which case the next free index is assigned.
type TimesheetRowInput struct {
	Index         *int      `json:"index"`
	ProjectID     string    `json:"projectId"`
	WorkPackageID string    `json:"workPackageId"`
	Hours         []float64 `json:"hours"`
	Notes         string    `json:"notes"`
}

// TimesheetPatch updates a timesheet. Rows, when present (including an empty
// list), replace the stored rows wholesale.
type TimesheetPatch struct {
	ID         *string              `json:"id"`
	OwnerID    *string              `json:"ownerId"`
	ReviewerID *string              `json:"reviewerId"`
	EndWeek    *string              `json:"endWeek"`
	Status     *TimesheetStatus     `json:"status"`
	Signature  *string              `json:"signature"`
	Feedback   *string              `json:"feedback"`
	Overtime   *float64             `json:"overtime"`
	Flextime   *float64             `json:"flextime"`
	ApprovedAt *time.Time           `json:"approvedAt"`
	Rows       *[]TimesheetRowInput `json:"timesheetRows"`
}
