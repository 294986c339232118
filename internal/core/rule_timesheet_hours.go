package core

import (
	"context"
	"fmt"

	"yojana/pkg/domain"
)

const timesheetHoursRuleName = "timesheet_daily_hours"

// hoursPerDay is the most a single day can plausibly hold.
const hoursPerDay = 24

// NewTimesheetRowRule warns when the rows of a touched timesheet add up to
// more than a day's worth of hours on any weekday.
func NewTimesheetRowRule() domain.Rule {
	return timesheetHoursRule{}
}

type timesheetHoursRule struct{}

func (timesheetHoursRule) Name() string { return timesheetHoursRuleName }

func (timesheetHoursRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := make(map[string]struct{})
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.Timesheet:
			touched[after.ID] = struct{}{}
		case domain.TimesheetRow:
			touched[after.TimesheetID] = struct{}{}
		}
	}
	for id := range touched {
		ts, ok := view.FindTimesheet(id)
		if !ok {
			continue
		}
		var totals [domain.MaxRowDays]float64
		for _, row := range ts.Rows {
			for day, h := range row.Hours {
				if day < len(totals) {
					totals[day] += h
				}
			}
		}
		for day, total := range totals {
			if total > hoursPerDay {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     timesheetHoursRuleName,
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("timesheet %s books %.1f hours on day %d", id, total, day),
					Entity:   domain.EntityTimesheet,
					EntityID: id,
				})
			}
		}
	}
	return res, nil
}
