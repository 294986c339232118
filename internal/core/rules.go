package core

import "yojana/pkg/domain"

// Rule is evaluated against the pending state of every transaction.
type Rule = domain.Rule

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewWorkPackageHierarchyRule())
	engine.Register(NewTimesheetRowRule())
	return engine
}
