package core

import (
	"context"
	"fmt"

	"yojana/pkg/domain"
)

const workPackageHierarchyRuleName = "work_package_hierarchy"

// NewWorkPackageHierarchyRule blocks commits that leave a created or updated
// work package with a missing parent, itself as parent, or a parent chain that
// loops. A level that does not follow its parent's level is reported as a
// warning.
func NewWorkPackageHierarchyRule() domain.Rule {
	return workPackageHierarchyRule{}
}

type workPackageHierarchyRule struct{}

func (workPackageHierarchyRule) Name() string { return workPackageHierarchyRuleName }

func (workPackageHierarchyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityWorkPackage || change.After == nil {
			continue
		}
		wp, ok := change.After.(domain.WorkPackage)
		if !ok || wp.ParentID == nil {
			continue
		}
		evaluateHierarchy(&res, view, wp)
	}
	return res, nil
}

func evaluateHierarchy(res *domain.Result, view domain.RuleView, wp domain.WorkPackage) {
	parentID := *wp.ParentID
	if parentID == wp.ID {
		res.Violations = append(res.Violations, hierarchyViolation(wp, domain.SeverityBlock, fmt.Sprintf("work package %s references itself as parent", wp.ID)))
		return
	}
	parent, ok := view.FindWorkPackage(domain.WorkPackageKey{ID: parentID, ProjectID: wp.ProjectID})
	if !ok {
		res.Violations = append(res.Violations, hierarchyViolation(wp, domain.SeverityBlock, fmt.Sprintf("work package %s references missing parent %s", wp.ID, parentID)))
		return
	}
	if parent.HierarchyLevel+1 != wp.HierarchyLevel {
		res.Violations = append(res.Violations, hierarchyViolation(wp, domain.SeverityWarn,
			fmt.Sprintf("work package %s has level %d under parent %s at level %d", wp.ID, wp.HierarchyLevel, parent.ID, parent.HierarchyLevel)))
	}

	seen := map[string]struct{}{wp.ID: {}}
	cursor := parent
	for cursor.ParentID != nil {
		if _, loop := seen[cursor.ID]; loop {
			res.Violations = append(res.Violations, hierarchyViolation(wp, domain.SeverityBlock, fmt.Sprintf("work package %s is part of a parent cycle", wp.ID)))
			return
		}
		seen[cursor.ID] = struct{}{}
		next, ok := view.FindWorkPackage(domain.WorkPackageKey{ID: *cursor.ParentID, ProjectID: wp.ProjectID})
		if !ok {
			return
		}
		cursor = next
	}
	if _, loop := seen[cursor.ID]; loop {
		res.Violations = append(res.Violations, hierarchyViolation(wp, domain.SeverityBlock, fmt.Sprintf("work package %s is part of a parent cycle", wp.ID)))
	}
}

func hierarchyViolation(wp domain.WorkPackage, severity domain.Severity, message string) domain.Violation {
	return domain.Violation{
		Rule:     workPackageHierarchyRuleName,
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityWorkPackage,
		EntityID: wp.Key().String(),
	}
}
