package memory

import (
	"fmt"
	"time"

	"yojana/pkg/domain"
)

// transaction represents a mutation set applied to a cloned copy of the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
	actor   string
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListProjects() []Project {
	return sortedValues(v.state.projects, func(p Project) string { return p.ID })
}

func (v transactionView) ListWorkPackages(projectID string) []WorkPackage {
	return listWorkPackages(v.state, domain.WorkPackageFilter{ProjectID: projectID})
}

func (v transactionView) FindProject(id string) (Project, bool) {
	p, ok := v.state.projects[id]
	return p, ok
}

func (v transactionView) FindWorkPackage(key domain.WorkPackageKey) (WorkPackage, bool) {
	wp, ok := v.state.workPackages[key.String()]
	if !ok {
		return WorkPackage{}, false
	}
	return cloneWorkPackage(wp), true
}

func (v transactionView) FindEmployee(id string) (Employee, bool) {
	e, ok := v.state.employees[id]
	return e, ok
}

func (v transactionView) FindTimesheet(id string) (Timesheet, bool) {
	t, ok := v.state.timesheets[id]
	if !ok {
		return Timesheet{}, false
	}
	return decorateTimesheet(v.state, t), true
}

func (v transactionView) FindCredential(id string) (Credential, bool) {
	c, ok := v.state.credentials[id]
	return c, ok
}

func (v transactionView) FindCredentialByUsername(username string) (Credential, bool) {
	return findCredentialByUsername(v.state, username)
}

func (v transactionView) FindEstimate(id string) (Estimate, bool) {
	e, ok := v.state.estimates[id]
	return e, ok
}

func (v transactionView) ListEmployees() []Employee {
	return sortedValues(v.state.employees, func(e Employee) string { return e.ID })
}

func (v transactionView) ListTimesheets(filter domain.TimesheetFilter) []Timesheet {
	return listTimesheets(v.state, filter)
}

func (v transactionView) ListTimesheetRows(timesheetID string) []TimesheetRow {
	return sortedRows(v.state.rows[timesheetID])
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) stampCreate(a *domain.Audit) {
	a.CreatedAt = tx.now
	a.CreatedBy = tx.actor
	a.ModifiedAt = tx.now
	a.ModifiedBy = tx.actor
}

// stampUpdate keeps the creation metadata from before and refreshes the modification fields.
func (tx *transaction) stampUpdate(a *domain.Audit, before domain.Audit) {
	a.CreatedAt = before.CreatedAt
	a.CreatedBy = before.CreatedBy
	a.ModifiedAt = tx.now
	a.ModifiedBy = tx.actor
}

// Employees ------------------------------------------------------------------

// CreateEmployee stores a new employee.
func (tx *transaction) CreateEmployee(e Employee) (Employee, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.employees[e.ID]; exists {
		return Employee{}, domain.ErrConflict{Entity: domain.EntityEmployee, Field: "id", Value: e.ID}
	}
	tx.stampCreate(&e.Audit)
	tx.state.employees[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityEmployee, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateEmployee mutates an employee using the provided mutator function.
func (tx *transaction) UpdateEmployee(id string, mutator func(*Employee) error) (Employee, error) {
	current, ok := tx.state.employees[id]
	if !ok {
		return Employee{}, domain.NotFound(domain.EntityEmployee, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Employee{}, err
	}
	current.ID = id
	tx.stampUpdate(&current.Audit, before.Audit)
	tx.state.employees[id] = current
	tx.recordChange(Change{Entity: domain.EntityEmployee, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteEmployee removes an employee and its credential. Employees still
// managing a project or owning a timesheet cannot be removed.
func (tx *transaction) DeleteEmployee(id string) error {
	current, ok := tx.state.employees[id]
	if !ok {
		return domain.NotFound(domain.EntityEmployee, id)
	}
	for _, p := range tx.state.projects {
		if p.ProjectManagerID == id {
			return domain.ErrConflict{Entity: domain.EntityEmployee, Field: "projectManagerId", Value: id}
		}
	}
	for _, t := range tx.state.timesheets {
		if t.OwnerID == id {
			return domain.ErrConflict{Entity: domain.EntityEmployee, Field: "ownerId", Value: id}
		}
	}
	// timesheets reviewed by the employee go back to having no reviewer
	for tsID, t := range tx.state.timesheets {
		if t.ReviewerID != id {
			continue
		}
		before := decorateTimesheet(&tx.state, t)
		t.ReviewerID = ""
		tx.stampUpdate(&t.Audit, before.Audit)
		tx.state.timesheets[tsID] = t
		tx.recordChange(Change{Entity: domain.EntityTimesheet, Action: domain.ActionUpdate, Before: before, After: decorateTimesheet(&tx.state, t)})
	}
	if cred, ok := tx.state.credentials[id]; ok {
		delete(tx.state.credentials, id)
		tx.recordChange(Change{Entity: domain.EntityCredential, Action: domain.ActionDelete, Before: cred})
	}
	delete(tx.state.employees, id)
	tx.recordChange(Change{Entity: domain.EntityEmployee, Action: domain.ActionDelete, Before: current})
	return nil
}

// PutCredential inserts or replaces the credential of an existing employee.
func (tx *transaction) PutCredential(c Credential) (Credential, error) {
	if _, ok := tx.state.employees[c.ID]; !ok {
		return Credential{}, domain.NotFound(domain.EntityEmployee, c.ID)
	}
	if c.Username == "" {
		return Credential{}, domain.Invalid("username", "must not be empty")
	}
	if other, ok := findCredentialByUsername(&tx.state, c.Username); ok && other.ID != c.ID {
		return Credential{}, domain.ErrConflict{Entity: domain.EntityCredential, Field: "username", Value: c.Username}
	}
	before, exists := tx.state.credentials[c.ID]
	if exists {
		tx.stampUpdate(&c.Audit, before.Audit)
		tx.recordChange(Change{Entity: domain.EntityCredential, Action: domain.ActionUpdate, Before: before, After: c})
	} else {
		tx.stampCreate(&c.Audit)
		tx.recordChange(Change{Entity: domain.EntityCredential, Action: domain.ActionCreate, After: c})
	}
	tx.state.credentials[c.ID] = c
	return c, nil
}

// Projects -------------------------------------------------------------------

// CreateProject stores a project record.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return Project{}, domain.ErrConflict{Entity: domain.EntityProject, Field: "id", Value: p.ID}
	}
	if err := tx.requireEmployee(p.ProjectManagerID); err != nil {
		return Project{}, err
	}
	tx.stampCreate(&p.Audit)
	tx.state.projects[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdateProject mutates an existing project record.
func (tx *transaction) UpdateProject(id string, mutator func(*Project) error) (Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return Project{}, domain.NotFound(domain.EntityProject, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	current.ID = id
	if err := tx.requireEmployee(current.ProjectManagerID); err != nil {
		return Project{}, err
	}
	tx.stampUpdate(&current.Audit, before.Audit)
	tx.state.projects[id] = current
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) requireEmployee(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := tx.state.employees[id]; !ok {
		return domain.NotFound(domain.EntityEmployee, id)
	}
	return nil
}

// Work packages --------------------------------------------------------------

// CreateWorkPackage stores a work package under an existing project.
func (tx *transaction) CreateWorkPackage(wp WorkPackage) (WorkPackage, error) {
	if _, ok := tx.state.projects[wp.ProjectID]; !ok {
		return WorkPackage{}, domain.NotFound(domain.EntityProject, wp.ProjectID)
	}
	if wp.ID == "" {
		wp.ID = tx.store.newID()
	}
	key := wp.Key().String()
	if _, exists := tx.state.workPackages[key]; exists {
		return WorkPackage{}, domain.ErrConflict{Entity: domain.EntityWorkPackage, Field: "id", Value: wp.ID}
	}
	tx.stampCreate(&wp.Audit)
	tx.state.workPackages[key] = cloneWorkPackage(wp)
	tx.recordChange(Change{Entity: domain.EntityWorkPackage, Action: domain.ActionCreate, After: cloneWorkPackage(wp)})
	return cloneWorkPackage(wp), nil
}

// UpdateWorkPackage mutates a work package. Its composite identity is immutable.
func (tx *transaction) UpdateWorkPackage(key domain.WorkPackageKey, mutator func(*WorkPackage) error) (WorkPackage, error) {
	current, ok := tx.state.workPackages[key.String()]
	if !ok {
		return WorkPackage{}, domain.NotFound(domain.EntityWorkPackage, key.ID)
	}
	before := cloneWorkPackage(current)
	current = cloneWorkPackage(current)
	if err := mutator(&current); err != nil {
		return WorkPackage{}, err
	}
	current.ID = key.ID
	current.ProjectID = key.ProjectID
	tx.stampUpdate(&current.Audit, before.Audit)
	tx.state.workPackages[key.String()] = cloneWorkPackage(current)
	tx.recordChange(Change{Entity: domain.EntityWorkPackage, Action: domain.ActionUpdate, Before: before, After: cloneWorkPackage(current)})
	return cloneWorkPackage(current), nil
}

// Estimates ------------------------------------------------------------------

// CreateEstimate stores an estimate against an existing work package.
func (tx *transaction) CreateEstimate(e Estimate) (Estimate, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.estimates[e.ID]; exists {
		return Estimate{}, domain.ErrConflict{Entity: domain.EntityEstimate, Field: "id", Value: e.ID}
	}
	if err := tx.requireWorkPackage(e.WorkPackageKey()); err != nil {
		return Estimate{}, err
	}
	tx.stampCreate(&e.Audit)
	tx.state.estimates[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityEstimate, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateEstimate mutates an existing estimate.
func (tx *transaction) UpdateEstimate(id string, mutator func(*Estimate) error) (Estimate, error) {
	current, ok := tx.state.estimates[id]
	if !ok {
		return Estimate{}, domain.NotFound(domain.EntityEstimate, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Estimate{}, err
	}
	current.ID = id
	if err := tx.requireWorkPackage(current.WorkPackageKey()); err != nil {
		return Estimate{}, err
	}
	tx.stampUpdate(&current.Audit, before.Audit)
	tx.state.estimates[id] = current
	tx.recordChange(Change{Entity: domain.EntityEstimate, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteEstimate removes an estimate.
func (tx *transaction) DeleteEstimate(id string) error {
	current, ok := tx.state.estimates[id]
	if !ok {
		return domain.NotFound(domain.EntityEstimate, id)
	}
	delete(tx.state.estimates, id)
	tx.recordChange(Change{Entity: domain.EntityEstimate, Action: domain.ActionDelete, Before: current})
	return nil
}

func (tx *transaction) requireWorkPackage(key domain.WorkPackageKey) error {
	if _, ok := tx.state.projects[key.ProjectID]; !ok {
		return domain.NotFound(domain.EntityProject, key.ProjectID)
	}
	if _, ok := tx.state.workPackages[key.String()]; !ok {
		return domain.NotFound(domain.EntityWorkPackage, key.ID)
	}
	return nil
}

// Timesheets -----------------------------------------------------------------

// CreateTimesheet stores a timesheet together with any rows it carries.
func (tx *transaction) CreateTimesheet(t Timesheet) (Timesheet, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.timesheets[t.ID]; exists {
		return Timesheet{}, domain.ErrConflict{Entity: domain.EntityTimesheet, Field: "id", Value: t.ID}
	}
	if err := tx.validateTimesheet(t); err != nil {
		return Timesheet{}, err
	}
	bucket, err := tx.buildRowBucket(t.ID, t.Rows)
	if err != nil {
		return Timesheet{}, err
	}
	tx.stampCreate(&t.Audit)
	t.Rows = nil
	tx.state.timesheets[t.ID] = cloneTimesheet(t)
	tx.state.rows[t.ID] = bucket
	created := decorateTimesheet(&tx.state, t)
	tx.recordChange(Change{Entity: domain.EntityTimesheet, Action: domain.ActionCreate, After: created})
	return created, nil
}

// UpdateTimesheet mutates a timesheet. The mutator receives the timesheet with
// its current rows; the rows it leaves behind replace the stored rows.
func (tx *transaction) UpdateTimesheet(id string, mutator func(*Timesheet) error) (Timesheet, error) {
	stored, ok := tx.state.timesheets[id]
	if !ok {
		return Timesheet{}, domain.NotFound(domain.EntityTimesheet, id)
	}
	before := decorateTimesheet(&tx.state, stored)
	current := cloneTimesheet(before)
	if err := mutator(&current); err != nil {
		return Timesheet{}, err
	}
	current.ID = id
	if err := tx.validateTimesheet(current); err != nil {
		return Timesheet{}, err
	}
	bucket, err := tx.buildRowBucket(id, current.Rows)
	if err != nil {
		return Timesheet{}, err
	}
	tx.stampUpdate(&current.Audit, before.Audit)
	current.Rows = nil
	tx.state.timesheets[id] = cloneTimesheet(current)
	tx.state.rows[id] = bucket
	after := decorateTimesheet(&tx.state, current)
	tx.recordChange(Change{Entity: domain.EntityTimesheet, Action: domain.ActionUpdate, Before: before, After: after})
	return after, nil
}

// DeleteTimesheet removes a timesheet and the rows it owns.
func (tx *transaction) DeleteTimesheet(id string) error {
	stored, ok := tx.state.timesheets[id]
	if !ok {
		return domain.NotFound(domain.EntityTimesheet, id)
	}
	before := decorateTimesheet(&tx.state, stored)
	delete(tx.state.timesheets, id)
	delete(tx.state.rows, id)
	tx.recordChange(Change{Entity: domain.EntityTimesheet, Action: domain.ActionDelete, Before: before})
	return nil
}

// CreateTimesheetRow inserts a row; the index must be free.
func (tx *transaction) CreateTimesheetRow(r TimesheetRow) (TimesheetRow, error) {
	if _, ok := tx.state.timesheets[r.TimesheetID]; !ok {
		return TimesheetRow{}, domain.NotFound(domain.EntityTimesheet, r.TimesheetID)
	}
	if _, exists := tx.state.rows[r.TimesheetID][r.Index]; exists {
		return TimesheetRow{}, domain.ErrConflict{Entity: domain.EntityTimesheetRow, Field: "index", Value: fmt.Sprint(r.Index)}
	}
	if err := tx.validateRow(r); err != nil {
		return TimesheetRow{}, err
	}
	tx.putRow(r)
	tx.recordChange(Change{Entity: domain.EntityTimesheetRow, Action: domain.ActionCreate, After: cloneRow(r)})
	return cloneRow(r), nil
}

// PutTimesheetRow inserts a row or fully replaces the row at the same index.
// The boolean result reports whether the row was newly created.
func (tx *transaction) PutTimesheetRow(r TimesheetRow) (TimesheetRow, bool, error) {
	if _, ok := tx.state.timesheets[r.TimesheetID]; !ok {
		return TimesheetRow{}, false, domain.NotFound(domain.EntityTimesheet, r.TimesheetID)
	}
	if err := tx.validateRow(r); err != nil {
		return TimesheetRow{}, false, err
	}
	before, exists := tx.state.rows[r.TimesheetID][r.Index]
	tx.putRow(r)
	if exists {
		tx.recordChange(Change{Entity: domain.EntityTimesheetRow, Action: domain.ActionUpdate, Before: before, After: cloneRow(r)})
	} else {
		tx.recordChange(Change{Entity: domain.EntityTimesheetRow, Action: domain.ActionCreate, After: cloneRow(r)})
	}
	return cloneRow(r), !exists, nil
}

func (tx *transaction) putRow(r TimesheetRow) {
	bucket := tx.state.rows[r.TimesheetID]
	if bucket == nil {
		bucket = make(map[int]TimesheetRow)
		tx.state.rows[r.TimesheetID] = bucket
	}
	bucket[r.Index] = cloneRow(r)
	ts := tx.state.timesheets[r.TimesheetID]
	tx.stampUpdate(&ts.Audit, ts.Audit)
	tx.state.timesheets[r.TimesheetID] = ts
}

func (tx *transaction) validateTimesheet(t Timesheet) error {
	if err := tx.requireEmployee(t.OwnerID); err != nil {
		return err
	}
	return tx.requireEmployee(t.ReviewerID)
}

func (tx *transaction) buildRowBucket(timesheetID string, rows []TimesheetRow) (map[int]TimesheetRow, error) {
	bucket := make(map[int]TimesheetRow, len(rows))
	for _, r := range rows {
		r.TimesheetID = timesheetID
		if _, dup := bucket[r.Index]; dup {
			return nil, domain.ErrConflict{Entity: domain.EntityTimesheetRow, Field: "index", Value: fmt.Sprint(r.Index)}
		}
		if err := tx.validateRow(r); err != nil {
			return nil, err
		}
		bucket[r.Index] = cloneRow(r)
	}
	return bucket, nil
}

func (tx *transaction) validateRow(r TimesheetRow) error {
	if r.Index < 0 {
		return domain.Invalid("index", "must be non-negative")
	}
	if len(r.Hours) > domain.MaxRowDays {
		return domain.Invalid("hours", fmt.Sprintf("at most %d entries", domain.MaxRowDays))
	}
	return tx.requireWorkPackage(r.WorkPackageKey())
}
