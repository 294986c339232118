package core

import (
	"fmt"
	"math"
	"time"

	"yojana/pkg/domain"
)

// EndWeekLayout is the wire format of Timesheet.EndWeek.
const EndWeekLayout = "2006-01-02"

// TimesheetIDMismatch is the reason reported when a PATCH body names a
// different timesheet than its route.
const TimesheetIDMismatch = "TimesheetID in route doesn't match timesheet id in body"

// References resolves relation ids during reconciliation. domain.TransactionView
// satisfies it.
type References interface {
	FindEmployee(id string) (Employee, bool)
	FindProject(id string) (Project, bool)
	FindWorkPackage(key WorkPackageKey) (WorkPackage, bool)
}

// The Reconcile functions merge a patch onto the current state of an entity.
// Present fields overwrite, absent fields keep the current value, and relation
// ids are re-resolved through References. They do not touch the store and are
// safe for concurrent use.

// ReconcileEmployee merges an employee patch. Credential fields are handled by
// the caller since they live on a separate record.
func ReconcileEmployee(current Employee, in domain.EmployeePatch) (Employee, error) {
	if in.ID != nil && *in.ID != current.ID {
		return Employee{}, domain.Invalid("id", "employee id in route doesn't match employee id in body")
	}
	out := current
	if in.FullName != nil {
		out.FullName = *in.FullName
	}
	if in.IsAdmin != nil {
		out.IsAdmin = *in.IsAdmin
	}
	if in.IsProjectManager != nil {
		out.IsProjectManager = *in.IsProjectManager
	}
	return out, nil
}

// ReconcileProject merges a project patch.
func ReconcileProject(current Project, in domain.ProjectPatch, refs References) (Project, error) {
	if in.ID != nil && *in.ID != current.ID {
		return Project{}, domain.Invalid("id", "project id in route doesn't match project id in body")
	}
	out := current
	if in.Name != nil {
		out.Name = *in.Name
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if in.ProjectManagerID != nil {
		manager, ok := refs.FindEmployee(*in.ProjectManagerID)
		if !ok {
			return Project{}, domain.NotFound(EntityEmployee, *in.ProjectManagerID)
		}
		out.ProjectManagerID = manager.ID
	}
	return out, nil
}

// ReconcileWorkPackage merges a work package patch. The parent must live in the
// same project and may not be the package itself or one of its descendants.
func ReconcileWorkPackage(current WorkPackage, in domain.WorkPackagePatch, refs References) (WorkPackage, error) {
	if in.ID != nil && *in.ID != current.ID {
		return WorkPackage{}, domain.Invalid("id", "work package id in route doesn't match work package id in body")
	}
	if in.ProjectID != nil && *in.ProjectID != current.ProjectID {
		return WorkPackage{}, domain.Invalid("projectId", "project id in route doesn't match project id in body")
	}
	if _, ok := refs.FindProject(current.ProjectID); !ok {
		return WorkPackage{}, domain.NotFound(EntityProject, current.ProjectID)
	}
	out := current
	if in.Name != nil {
		out.Name = *in.Name
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if in.HierarchyLevel != nil {
		if *in.HierarchyLevel < 0 {
			return WorkPackage{}, domain.Invalid("hierarchyLevel", "must be non-negative")
		}
		out.HierarchyLevel = *in.HierarchyLevel
	}
	if in.ParentID != nil {
		parentID := *in.ParentID
		if err := checkParent(out, parentID, refs); err != nil {
			return WorkPackage{}, err
		}
		out.ParentID = &parentID
	}
	return out, nil
}

func checkParent(wp WorkPackage, parentID string, refs References) error {
	if parentID == wp.ID {
		return domain.Invalid("parentId", "work package cannot be its own parent")
	}
	parent, ok := refs.FindWorkPackage(WorkPackageKey{ID: parentID, ProjectID: wp.ProjectID})
	if !ok {
		return domain.NotFound(EntityWorkPackage, parentID)
	}
	seen := map[string]struct{}{wp.ID: {}}
	for parent.ParentID != nil {
		next := *parent.ParentID
		if _, loop := seen[next]; loop {
			return domain.Invalid("parentId", fmt.Sprintf("parent %s would introduce a cycle", parentID))
		}
		seen[next] = struct{}{}
		ancestor, ok := refs.FindWorkPackage(WorkPackageKey{ID: next, ProjectID: wp.ProjectID})
		if !ok {
			break
		}
		parent = ancestor
	}
	return nil
}

// ReconcileEstimate merges an estimate patch and re-resolves its work package.
func ReconcileEstimate(current Estimate, in domain.EstimatePatch, refs References) (Estimate, error) {
	if in.ID != nil && current.ID != "" && *in.ID != current.ID {
		return Estimate{}, domain.Invalid("id", "estimate id in route doesn't match estimate id in body")
	}
	out := current
	if in.ProjectID != nil {
		out.ProjectID = *in.ProjectID
	}
	if in.WorkPackageID != nil {
		out.WorkPackageID = *in.WorkPackageID
	}
	if in.Hours != nil {
		if *in.Hours < 0 || math.IsNaN(*in.Hours) {
			return Estimate{}, domain.Invalid("hours", "must be non-negative")
		}
		out.Hours = *in.Hours
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if err := resolveWorkPackage(out.WorkPackageKey(), refs); err != nil {
		return Estimate{}, err
	}
	return out, nil
}

// ReconcileTimesheet merges a timesheet patch. When the patch carries rows,
// including an empty list, they replace the current rows wholesale.
func ReconcileTimesheet(current Timesheet, in domain.TimesheetPatch, refs References) (Timesheet, error) {
	if in.ID != nil && *in.ID != current.ID {
		return Timesheet{}, domain.Invalid("id", TimesheetIDMismatch)
	}
	out := current
	out.Rows = append([]TimesheetRow(nil), current.Rows...)
	if in.OwnerID != nil {
		owner, ok := refs.FindEmployee(*in.OwnerID)
		if !ok {
			return Timesheet{}, domain.NotFound(EntityEmployee, *in.OwnerID)
		}
		out.OwnerID = owner.ID
	}
	if in.ReviewerID != nil {
		if *in.ReviewerID == "" {
			out.ReviewerID = ""
		} else {
			reviewer, ok := refs.FindEmployee(*in.ReviewerID)
			if !ok {
				return Timesheet{}, domain.NotFound(EntityEmployee, *in.ReviewerID)
			}
			out.ReviewerID = reviewer.ID
		}
	}
	if in.EndWeek != nil {
		if _, err := time.Parse(EndWeekLayout, *in.EndWeek); err != nil {
			return Timesheet{}, domain.Invalid("endWeek", "must be an ISO date (YYYY-MM-DD)")
		}
		out.EndWeek = *in.EndWeek
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return Timesheet{}, domain.Invalid("status", fmt.Sprintf("unknown status %q", *in.Status))
		}
		out.Status = *in.Status
	}
	if in.Signature != nil {
		out.Signature = *in.Signature
	}
	if in.Feedback != nil {
		out.Feedback = *in.Feedback
	}
	if in.Overtime != nil {
		out.Overtime = *in.Overtime
	}
	if in.Flextime != nil {
		out.Flextime = *in.Flextime
	}
	if in.ApprovedAt != nil {
		at := in.ApprovedAt.UTC()
		out.ApprovedAt = &at
	}
	if in.Rows != nil {
		rows, err := buildRows(current.ID, *in.Rows, refs)
		if err != nil {
			return Timesheet{}, err
		}
		out.Rows = rows
	}
	return out, nil
}

func buildRows(timesheetID string, inputs []domain.TimesheetRowInput, refs References) ([]TimesheetRow, error) {
	rows := make([]TimesheetRow, 0, len(inputs))
	seen := make(map[int]struct{}, len(inputs))
	for i, input := range inputs {
		index := i
		if input.Index != nil {
			index = *input.Index
		}
		if _, dup := seen[index]; dup {
			return nil, domain.Invalid("timesheetRows", fmt.Sprintf("duplicate row index %d", index))
		}
		seen[index] = struct{}{}
		row, err := NewTimesheetRow(timesheetID, index, input, refs)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReplaceTimesheetRow builds the full replacement state of the row identified
// by (timesheetID, in.Index). Nothing from a previously stored row survives.
func ReplaceTimesheetRow(timesheetID string, in domain.TimesheetRowInput, refs References) (TimesheetRow, error) {
	if in.Index == nil {
		return TimesheetRow{}, domain.Invalid("index", "required to identify the row")
	}
	return NewTimesheetRow(timesheetID, *in.Index, in, refs)
}

// NewTimesheetRow validates a row input and resolves its project and work package.
func NewTimesheetRow(timesheetID string, index int, in domain.TimesheetRowInput, refs References) (TimesheetRow, error) {
	if index < 0 {
		return TimesheetRow{}, domain.Invalid("index", "must be non-negative")
	}
	if err := validateHours(in.Hours); err != nil {
		return TimesheetRow{}, err
	}
	row := TimesheetRow{
		TimesheetID:   timesheetID,
		Index:         index,
		ProjectID:     in.ProjectID,
		WorkPackageID: in.WorkPackageID,
		Hours:         append([]float64(nil), in.Hours...),
		Notes:         in.Notes,
	}
	if err := resolveWorkPackage(row.WorkPackageKey(), refs); err != nil {
		return TimesheetRow{}, err
	}
	return row, nil
}

func validateHours(hours []float64) error {
	if len(hours) > domain.MaxRowDays {
		return domain.Invalid("hours", fmt.Sprintf("at most %d daily entries", domain.MaxRowDays))
	}
	for day, h := range hours {
		if h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
			return domain.Invalid("hours", fmt.Sprintf("day %d must be a non-negative number", day))
		}
	}
	return nil
}

func resolveWorkPackage(key WorkPackageKey, refs References) error {
	if key.ProjectID == "" {
		return domain.Invalid("projectId", "required")
	}
	if key.ID == "" {
		return domain.Invalid("workPackageId", "required")
	}
	if _, ok := refs.FindProject(key.ProjectID); !ok {
		return domain.NotFound(EntityProject, key.ProjectID)
	}
	if _, ok := refs.FindWorkPackage(key); !ok {
		return domain.NotFound(EntityWorkPackage, key.ID)
	}
	return nil
}
