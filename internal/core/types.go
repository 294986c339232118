package core

import "yojana/pkg/domain"

type (
	EntityType         = domain.EntityType
	Employee           = domain.Employee
	Credential         = domain.Credential
	Project            = domain.Project
	WorkPackage        = domain.WorkPackage
	WorkPackageKey     = domain.WorkPackageKey
	Estimate           = domain.Estimate
	Timesheet          = domain.Timesheet
	TimesheetRow       = domain.TimesheetRow
	TimesheetStatus    = domain.TimesheetStatus
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityEmployee     = domain.EntityEmployee
	EntityCredential   = domain.EntityCredential
	EntityProject      = domain.EntityProject
	EntityWorkPackage  = domain.EntityWorkPackage
	EntityEstimate     = domain.EntityEstimate
	EntityTimesheet    = domain.EntityTimesheet
	EntityTimesheetRow = domain.EntityTimesheetRow
	EntitySignature    = domain.EntitySignature
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

var (
	ContextWithActor = domain.ContextWithActor
	ActorFromContext = domain.ActorFromContext
)
