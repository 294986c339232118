package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"yojana/internal/blob"
	"yojana/pkg/domain"
)

// Service exposes the transactional operations behind the HTTP resources.
// Updates load and reconcile the current state in one step and merge it in a
// second, so two concurrent updates of the same entity are last-writer-wins.
type Service struct {
	store        PersistentStore
	blobs        blob.Store
	clock        Clock
	logger       Logger
	audit        AuditRecorder
	metrics      MetricsRecorder
	tracer       Tracer
	passwordCost int
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:        store,
		blobs:        o.blobs,
		clock:        o.clock,
		logger:       o.logger,
		audit:        o.audit,
		metrics:      o.metrics,
		tracer:       o.tracer,
		passwordCost: o.passwordCost,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(NewMemoryStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// EmployeeAccount pairs an employee with the username of its credential.
type EmployeeAccount struct {
	Employee Employee
	Username string
}

// TimesheetQuery carries the listing filters of GET /timesheets.
type TimesheetQuery struct {
	Status     string
	GetAll     bool
	EmployeeID string
}

func (s *Service) transact(ctx context.Context, fn func(Transaction) error) error {
	res, err := s.store.RunInTransaction(ctx, fn)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule violation", "rule", v.Rule, "entity", v.Entity, "id", v.EntityID, "message", v.Message)
		}
	}
	return err
}

func (s *Service) view(ctx context.Context, fn func(TransactionView) error) error {
	return s.store.View(ctx, fn)
}

func withActor(ctx context.Context, caller Employee) context.Context {
	if ActorFromContext(ctx) != "" || caller.ID == "" {
		return ctx
	}
	return ContextWithActor(ctx, caller.ID)
}

func idOrNew(id *string) string {
	if id != nil && *id != "" {
		return *id
	}
	return uuid.NewString()
}

// Employees ------------------------------------------------------------------

func (s *Service) account(e Employee) EmployeeAccount {
	acct := EmployeeAccount{Employee: e}
	if cred, ok := s.store.GetCredential(e.ID); ok {
		acct.Username = cred.Username
	}
	return acct
}

// GetEmployee returns an employee and its username.
func (s *Service) GetEmployee(ctx context.Context, id string) (EmployeeAccount, error) {
	var acct EmployeeAccount
	err := s.run(ctx, "get_employee", func(context.Context) (string, error) {
		e, ok := s.store.GetEmployee(id)
		if !ok {
			return id, domain.NotFound(EntityEmployee, id)
		}
		acct = s.account(e)
		return id, nil
	})
	return acct, err
}

// ListEmployees returns every employee ordered by id.
func (s *Service) ListEmployees(ctx context.Context) ([]EmployeeAccount, error) {
	var out []EmployeeAccount
	err := s.run(ctx, "list_employees", func(context.Context) (string, error) {
		for _, e := range s.store.ListEmployees() {
			out = append(out, s.account(e))
		}
		return "", nil
	})
	return out, err
}

// CreateEmployee creates an employee with its login credential. Username and
// password are required; the password is stored as a bcrypt hash.
func (s *Service) CreateEmployee(ctx context.Context, in domain.EmployeePatch) (EmployeeAccount, error) {
	var acct EmployeeAccount
	id := idOrNew(in.ID)
	in.ID = nil
	err := s.run(ctx, "create_employee", func(ctx context.Context) (string, error) {
		if in.Username == nil || *in.Username == "" {
			return id, domain.Invalid("username", "required")
		}
		if in.Password == nil || *in.Password == "" {
			return id, domain.Invalid("password", "required")
		}
		employee, err := ReconcileEmployee(Employee{ID: id}, in)
		if err != nil {
			return id, err
		}
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return id, err
		}
		err = s.transact(ctx, func(tx Transaction) error {
			created, err := tx.CreateEmployee(employee)
			if err != nil {
				return err
			}
			cred, err := tx.PutCredential(Credential{ID: created.ID, Username: *in.Username, PasswordHash: hash})
			if err != nil {
				return err
			}
			acct = EmployeeAccount{Employee: created, Username: cred.Username}
			return nil
		})
		return id, err
	})
	return acct, err
}

// UpdateEmployee merges a patch into an employee. Username and password, when
// present, update the credential.
func (s *Service) UpdateEmployee(ctx context.Context, id string, in domain.EmployeePatch) (EmployeeAccount, error) {
	var acct EmployeeAccount
	err := s.run(ctx, "update_employee", func(ctx context.Context) (string, error) {
		current, ok := s.store.GetEmployee(id)
		if !ok {
			return id, domain.NotFound(EntityEmployee, id)
		}
		next, err := ReconcileEmployee(current, in)
		if err != nil {
			return id, err
		}
		var hash string
		if in.Password != nil {
			if *in.Password == "" {
				return id, domain.Invalid("password", "must not be empty")
			}
			if hash, err = s.hashPassword(*in.Password); err != nil {
				return id, err
			}
		}
		err = s.transact(ctx, func(tx Transaction) error {
			updated, err := tx.UpdateEmployee(id, func(e *Employee) error {
				*e = next
				return nil
			})
			if err != nil {
				return err
			}
			cred, hasCred := tx.Snapshot().FindCredential(id)
			if in.Username != nil || in.Password != nil {
				if !hasCred && hash == "" {
					return domain.Invalid("password", "required to create a credential")
				}
				cred.ID = id
				if in.Username != nil {
					cred.Username = *in.Username
				}
				if hash != "" {
					cred.PasswordHash = hash
				}
				if cred, err = tx.PutCredential(cred); err != nil {
					return err
				}
			}
			acct = EmployeeAccount{Employee: updated, Username: cred.Username}
			return nil
		})
		return id, err
	})
	return acct, err
}

// DeleteEmployee removes an employee and its credential. Employees still
// managing projects or owning timesheets cannot be deleted.
func (s *Service) DeleteEmployee(ctx context.Context, id string) error {
	return s.run(ctx, "delete_employee", func(ctx context.Context) (string, error) {
		return id, s.transact(ctx, func(tx Transaction) error {
			return tx.DeleteEmployee(id)
		})
	})
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.Invalid("password", "too long")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Projects -------------------------------------------------------------------

// CreateProject creates a project managed by the caller.
func (s *Service) CreateProject(ctx context.Context, caller Employee, in domain.ProjectPatch) (Project, error) {
	ctx = withActor(ctx, caller)
	var created Project
	id := idOrNew(in.ID)
	in.ID = nil
	err := s.run(ctx, "create_project", func(ctx context.Context) (string, error) {
		err := s.transact(ctx, func(tx Transaction) error {
			in.ProjectManagerID = &caller.ID
			project, err := ReconcileProject(Project{ID: id}, in, tx.Snapshot())
			if err != nil {
				return err
			}
			created, err = tx.CreateProject(project)
			return err
		})
		return id, err
	})
	return created, err
}

// UpdateProject merges a patch into a project.
func (s *Service) UpdateProject(ctx context.Context, id string, in domain.ProjectPatch) (Project, error) {
	var updated Project
	err := s.run(ctx, "update_project", func(ctx context.Context) (string, error) {
		var next Project
		err := s.view(ctx, func(v TransactionView) error {
			current, ok := v.FindProject(id)
			if !ok {
				return domain.NotFound(EntityProject, id)
			}
			var err error
			next, err = ReconcileProject(current, in, v)
			return err
		})
		if err != nil {
			return id, err
		}
		updated, err = s.mergeProject(ctx, next)
		return id, err
	})
	return updated, err
}

func (s *Service) mergeProject(ctx context.Context, next Project) (Project, error) {
	var merged Project
	err := s.transact(ctx, func(tx Transaction) error {
		var err error
		merged, err = tx.UpdateProject(next.ID, func(p *Project) error {
			*p = next
			return nil
		})
		return err
	})
	return merged, err
}

// GetProject returns a project.
func (s *Service) GetProject(ctx context.Context, id string) (Project, error) {
	var project Project
	err := s.run(ctx, "get_project", func(context.Context) (string, error) {
		p, ok := s.store.GetProject(id)
		if !ok {
			return id, domain.NotFound(EntityProject, id)
		}
		project = p
		return id, nil
	})
	return project, err
}

// ListProjects returns every project ordered by id.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := s.run(ctx, "list_projects", func(context.Context) (string, error) {
		out = s.store.ListProjects()
		return "", nil
	})
	return out, err
}

// Work packages --------------------------------------------------------------

// CreateWorkPackage adds a work package to a project. The id is generated when
// absent and must be unique within the project.
func (s *Service) CreateWorkPackage(ctx context.Context, projectID string, in domain.WorkPackagePatch) (WorkPackage, error) {
	var created WorkPackage
	id := idOrNew(in.ID)
	in.ID = nil
	key := WorkPackageKey{ID: id, ProjectID: projectID}
	err := s.run(ctx, "create_work_package", func(ctx context.Context) (string, error) {
		err := s.transact(ctx, func(tx Transaction) error {
			wp, err := ReconcileWorkPackage(WorkPackage{ID: id, ProjectID: projectID}, in, tx.Snapshot())
			if err != nil {
				return err
			}
			created, err = tx.CreateWorkPackage(wp)
			return err
		})
		return key.String(), err
	})
	return created, err
}

// UpdateWorkPackage merges a patch into a work package.
func (s *Service) UpdateWorkPackage(ctx context.Context, key WorkPackageKey, in domain.WorkPackagePatch) (WorkPackage, error) {
	var updated WorkPackage
	err := s.run(ctx, "update_work_package", func(ctx context.Context) (string, error) {
		var next WorkPackage
		err := s.view(ctx, func(v TransactionView) error {
			current, ok := v.FindWorkPackage(key)
			if !ok {
				return domain.NotFound(EntityWorkPackage, key.ID)
			}
			var err error
			next, err = ReconcileWorkPackage(current, in, v)
			return err
		})
		if err != nil {
			return key.String(), err
		}
		err = s.transact(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateWorkPackage(key, func(wp *WorkPackage) error {
				*wp = next
				return nil
			})
			return err
		})
		return key.String(), err
	})
	return updated, err
}

// GetWorkPackage returns a work package by its composite key.
func (s *Service) GetWorkPackage(ctx context.Context, key WorkPackageKey) (WorkPackage, error) {
	var wp WorkPackage
	err := s.run(ctx, "get_work_package", func(context.Context) (string, error) {
		found, ok := s.store.GetWorkPackage(key)
		if !ok {
			return key.String(), domain.NotFound(EntityWorkPackage, key.ID)
		}
		wp = found
		return key.String(), nil
	})
	return wp, err
}

// ListWorkPackages lists a project's work packages, optionally only those at
// one hierarchy level.
func (s *Service) ListWorkPackages(ctx context.Context, projectID string, level *int) ([]WorkPackage, error) {
	var out []WorkPackage
	err := s.run(ctx, "list_work_packages", func(context.Context) (string, error) {
		if _, ok := s.store.GetProject(projectID); !ok {
			return projectID, domain.NotFound(EntityProject, projectID)
		}
		out = s.store.ListWorkPackages(domain.WorkPackageFilter{ProjectID: projectID, HierarchyLevel: level})
		return projectID, nil
	})
	return out, err
}

// ListChildWorkPackages lists the direct children of a work package.
func (s *Service) ListChildWorkPackages(ctx context.Context, parent WorkPackageKey) ([]WorkPackage, error) {
	var out []WorkPackage
	err := s.run(ctx, "list_child_work_packages", func(context.Context) (string, error) {
		if _, ok := s.store.GetWorkPackage(parent); !ok {
			return parent.String(), domain.NotFound(EntityWorkPackage, parent.ID)
		}
		parentID := parent.ID
		out = s.store.ListWorkPackages(domain.WorkPackageFilter{ProjectID: parent.ProjectID, ParentID: &parentID})
		return parent.String(), nil
	})
	return out, err
}

// Estimates ------------------------------------------------------------------

// CreateEstimate records an estimate for an existing work package.
func (s *Service) CreateEstimate(ctx context.Context, in domain.EstimatePatch) (Estimate, error) {
	var created Estimate
	id := idOrNew(in.ID)
	in.ID = nil
	err := s.run(ctx, "create_estimate", func(ctx context.Context) (string, error) {
		err := s.transact(ctx, func(tx Transaction) error {
			estimate, err := ReconcileEstimate(Estimate{ID: id}, in, tx.Snapshot())
			if err != nil {
				return err
			}
			created, err = tx.CreateEstimate(estimate)
			return err
		})
		return id, err
	})
	return created, err
}

// UpdateEstimate merges a patch into an estimate.
func (s *Service) UpdateEstimate(ctx context.Context, id string, in domain.EstimatePatch) (Estimate, error) {
	var updated Estimate
	err := s.run(ctx, "update_estimate", func(ctx context.Context) (string, error) {
		var next Estimate
		err := s.view(ctx, func(v TransactionView) error {
			current, ok := v.FindEstimate(id)
			if !ok {
				return domain.NotFound(EntityEstimate, id)
			}
			var err error
			next, err = ReconcileEstimate(current, in, v)
			return err
		})
		if err != nil {
			return id, err
		}
		err = s.transact(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateEstimate(id, func(e *Estimate) error {
				*e = next
				return nil
			})
			return err
		})
		return id, err
	})
	return updated, err
}

// DeleteEstimate removes an estimate.
func (s *Service) DeleteEstimate(ctx context.Context, id string) error {
	return s.run(ctx, "delete_estimate", func(ctx context.Context) (string, error) {
		return id, s.transact(ctx, func(tx Transaction) error {
			return tx.DeleteEstimate(id)
		})
	})
}

// GetEstimate returns an estimate.
func (s *Service) GetEstimate(ctx context.Context, id string) (Estimate, error) {
	var estimate Estimate
	err := s.run(ctx, "get_estimate", func(context.Context) (string, error) {
		e, ok := s.store.GetEstimate(id)
		if !ok {
			return id, domain.NotFound(EntityEstimate, id)
		}
		estimate = e
		return id, nil
	})
	return estimate, err
}

// ListEstimates returns the estimates matching filter.
func (s *Service) ListEstimates(ctx context.Context, filter domain.EstimateFilter) ([]Estimate, error) {
	var out []Estimate
	err := s.run(ctx, "list_estimates", func(context.Context) (string, error) {
		out = s.store.ListEstimates(filter)
		return "", nil
	})
	return out, err
}

// Timesheets -----------------------------------------------------------------

// GetTimesheet returns a timesheet with its rows.
func (s *Service) GetTimesheet(ctx context.Context, id string) (Timesheet, error) {
	var ts Timesheet
	err := s.run(ctx, "get_timesheet", func(context.Context) (string, error) {
		found, ok := s.store.GetTimesheet(id)
		if !ok {
			return id, domain.NotFound(EntityTimesheet, id)
		}
		ts = found
		return id, nil
	})
	return ts, err
}

// CreateTimesheet creates a timesheet owned by the caller under a fresh id. Any
// id or owner in the payload is ignored; the status defaults to draft.
func (s *Service) CreateTimesheet(ctx context.Context, caller Employee, in domain.TimesheetPatch) (Timesheet, error) {
	ctx = withActor(ctx, caller)
	var created Timesheet
	id := uuid.NewString()
	in.ID = nil
	in.OwnerID = nil
	err := s.run(ctx, "create_timesheet", func(ctx context.Context) (string, error) {
		err := s.transact(ctx, func(tx Transaction) error {
			seed := Timesheet{ID: id, OwnerID: caller.ID, Status: domain.TimesheetStatusDraft}
			ts, err := ReconcileTimesheet(seed, in, tx.Snapshot())
			if err != nil {
				return err
			}
			created, err = tx.CreateTimesheet(ts)
			return err
		})
		return id, err
	})
	return created, err
}

// UpdateTimesheet merges a patch into a timesheet. Rows in the patch replace
// the stored rows; without them the rows are left as stored at merge time.
func (s *Service) UpdateTimesheet(ctx context.Context, id string, in domain.TimesheetPatch) (Timesheet, error) {
	var updated Timesheet
	err := s.run(ctx, "update_timesheet", func(ctx context.Context) (string, error) {
		var next Timesheet
		err := s.view(ctx, func(v TransactionView) error {
			current, ok := v.FindTimesheet(id)
			if !ok {
				return domain.NotFound(EntityTimesheet, id)
			}
			var err error
			next, err = ReconcileTimesheet(current, in, v)
			return err
		})
		if err != nil {
			return id, err
		}
		err = s.transact(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateTimesheet(id, func(t *Timesheet) error {
				rows := t.Rows
				*t = next
				if in.Rows == nil {
					t.Rows = rows
				}
				return nil
			})
			return err
		})
		return id, err
	})
	return updated, err
}

// DeleteTimesheet removes a timesheet, its rows and its signature blob.
func (s *Service) DeleteTimesheet(ctx context.Context, id string) error {
	return s.run(ctx, "delete_timesheet", func(ctx context.Context) (string, error) {
		var signature string
		err := s.transact(ctx, func(tx Transaction) error {
			if ts, ok := tx.Snapshot().FindTimesheet(id); ok {
				signature = ts.Signature
			}
			return tx.DeleteTimesheet(id)
		})
		if err == nil && signature != "" && s.blobs != nil {
			s.dropSignature(ctx, id, signature)
		}
		return id, err
	})
}

// ListTimesheets applies the GET /timesheets filters: status=submitted with
// getAll lists every submitted timesheet, status=submitted alone lists those
// awaiting the caller's review, and otherwise empId narrows to one owner.
func (s *Service) ListTimesheets(ctx context.Context, caller Employee, q TimesheetQuery) ([]Timesheet, error) {
	var out []Timesheet
	err := s.run(ctx, "list_timesheets", func(context.Context) (string, error) {
		var filter domain.TimesheetFilter
		switch {
		case q.Status == string(domain.TimesheetStatusSubmitted) && q.GetAll:
			filter.Status = domain.TimesheetStatusSubmitted
		case q.Status == string(domain.TimesheetStatusSubmitted):
			filter.Status = domain.TimesheetStatusSubmitted
			filter.ReviewerID = caller.ID
		case q.EmployeeID != "":
			filter.OwnerID = q.EmployeeID
		}
		out = s.store.ListTimesheets(filter)
		return "", nil
	})
	return out, err
}

// Timesheet rows -------------------------------------------------------------

// AddTimesheetRow inserts a row. Without an index the row goes after the last
// existing row; an index already in use is a conflict.
func (s *Service) AddTimesheetRow(ctx context.Context, timesheetID string, in domain.TimesheetRowInput) (TimesheetRow, error) {
	var created TimesheetRow
	err := s.run(ctx, "create_timesheet_row", func(ctx context.Context) (string, error) {
		err := s.transact(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindTimesheet(timesheetID); !ok {
				return domain.NotFound(EntityTimesheet, timesheetID)
			}
			index := 0
			if in.Index != nil {
				index = *in.Index
			} else {
				for _, r := range view.ListTimesheetRows(timesheetID) {
					if r.Index >= index {
						index = r.Index + 1
					}
				}
			}
			row, err := NewTimesheetRow(timesheetID, index, in, view)
			if err != nil {
				return err
			}
			created, err = tx.CreateTimesheetRow(row)
			return err
		})
		return timesheetID, err
	})
	return created, err
}

// PutTimesheetRow inserts the row at in.Index or fully replaces the row
// already there. The boolean reports whether the row was created.
func (s *Service) PutTimesheetRow(ctx context.Context, timesheetID string, in domain.TimesheetRowInput) (TimesheetRow, bool, error) {
	var (
		stored  TimesheetRow
		created bool
	)
	err := s.run(ctx, "put_timesheet_row", func(ctx context.Context) (string, error) {
		err := s.transact(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			if _, ok := view.FindTimesheet(timesheetID); !ok {
				return domain.NotFound(EntityTimesheet, timesheetID)
			}
			row, err := ReplaceTimesheetRow(timesheetID, in, view)
			if err != nil {
				return err
			}
			stored, created, err = tx.PutTimesheetRow(row)
			return err
		})
		return timesheetID, err
	})
	return stored, created, err
}

// ListTimesheetRows returns the rows of a timesheet ordered by index.
func (s *Service) ListTimesheetRows(ctx context.Context, timesheetID string) ([]TimesheetRow, error) {
	var out []TimesheetRow
	err := s.run(ctx, "list_timesheet_rows", func(context.Context) (string, error) {
		if _, ok := s.store.GetTimesheet(timesheetID); !ok {
			return timesheetID, domain.NotFound(EntityTimesheet, timesheetID)
		}
		out = s.store.ListTimesheetRows(timesheetID)
		return timesheetID, nil
	})
	return out, err
}

// Signatures -----------------------------------------------------------------

// ErrSignatureStorageDisabled is returned when no blob store is configured.
var ErrSignatureStorageDisabled = errors.New("signature storage is not configured")

// SignaturePrefix is the blob prefix holding a timesheet's signature uploads.
func SignaturePrefix(timesheetID string) string {
	return "timesheets/" + timesheetID + "/signatures/"
}

// SignatureKey names a single signature upload of a timesheet.
func SignatureKey(timesheetID, upload string) string {
	return SignaturePrefix(timesheetID) + upload
}

// PutTimesheetSignature stores the caller's signature for a timesheet they
// own. Each upload lands under a fresh key; the previous blob is removed once
// the timesheet points at the new one, and the new blob is removed when the
// update fails.
func (s *Service) PutTimesheetSignature(ctx context.Context, caller Employee, timesheetID, contentType string, body io.Reader) (Timesheet, error) {
	ctx = withActor(ctx, caller)
	var updated Timesheet
	err := s.run(ctx, "put_signature", func(ctx context.Context) (string, error) {
		if s.blobs == nil {
			return timesheetID, ErrSignatureStorageDisabled
		}
		ts, ok := s.store.GetTimesheet(timesheetID)
		if !ok {
			return timesheetID, domain.NotFound(EntityTimesheet, timesheetID)
		}
		if ts.OwnerID != caller.ID {
			return timesheetID, domain.ErrForbidden
		}
		key := SignatureKey(timesheetID, uuid.NewString())
		if _, err := s.blobs.Put(ctx, key, body, blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"timesheet": timesheetID, "signed-by": caller.ID},
		}); err != nil {
			s.dropSignature(ctx, timesheetID, key)
			return timesheetID, fmt.Errorf("store signature: %w", err)
		}
		var previous string
		err := s.transact(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateTimesheet(timesheetID, func(t *Timesheet) error {
				previous = t.Signature
				t.Signature = key
				return nil
			})
			return err
		})
		if err != nil {
			s.dropSignature(ctx, timesheetID, key)
			return timesheetID, err
		}
		if previous != "" && previous != key {
			s.dropSignature(ctx, timesheetID, previous)
		}
		return timesheetID, nil
	})
	return updated, err
}

// dropSignature removes a signature blob; failures are logged only.
func (s *Service) dropSignature(ctx context.Context, timesheetID, key string) {
	if _, err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("delete signature blob", "timesheet", timesheetID, "key", key, "error", err)
	}
}

// OpenTimesheetSignature streams a timesheet's signature to its owner, its
// reviewer or an admin. The caller closes the reader.
func (s *Service) OpenTimesheetSignature(ctx context.Context, caller Employee, timesheetID string) (blob.Info, io.ReadCloser, error) {
	var (
		info blob.Info
		rc   io.ReadCloser
	)
	err := s.run(ctx, "get_signature", func(ctx context.Context) (string, error) {
		if s.blobs == nil {
			return timesheetID, ErrSignatureStorageDisabled
		}
		ts, ok := s.store.GetTimesheet(timesheetID)
		if !ok {
			return timesheetID, domain.NotFound(EntityTimesheet, timesheetID)
		}
		if ts.OwnerID != caller.ID && ts.ReviewerID != caller.ID && !caller.IsAdmin {
			return timesheetID, domain.ErrForbidden
		}
		if ts.Signature == "" {
			return timesheetID, domain.NotFound(EntitySignature, timesheetID)
		}
		var err error
		info, rc, err = s.blobs.Get(ctx, ts.Signature)
		if errors.Is(err, blob.ErrNotFound) {
			return timesheetID, domain.NotFound(EntitySignature, timesheetID)
		}
		return timesheetID, err
	})
	return info, rc, err
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.clock.Now() }
