package core

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"yojana/internal/blob"
)

// Logger is the structured logging surface the service depends on. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AuditStatus reports the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one mutating service operation.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    EntityType    `json:"entity"`
	Action    Action        `json:"action"`
	EntityID  string        `json:"entityId,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	Status    AuditStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes the outcome and latency of every service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts a span per service operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

type serviceOptions struct {
	clock        Clock
	logger       Logger
	audit        AuditRecorder
	metrics      MetricsRecorder
	tracer       Tracer
	blobs        blob.Store
	passwordCost int
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:        ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:       noopLogger{},
		audit:        noopAuditRecorder{},
		metrics:      noopMetricsRecorder{},
		tracer:       noopTracer{},
		passwordCost: bcrypt.DefaultCost,
	}
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

// WithClock overrides the clock used for audit timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger routes service logs to logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithBlobStore sets the store holding timesheet signatures. Without one,
// signature operations fail.
func WithBlobStore(store blob.Store) ServiceOption {
	return func(o *serviceOptions) {
		o.blobs = store
	}
}

// WithPasswordCost sets the bcrypt cost for new credentials. Tests use
// bcrypt.MinCost.
func WithPasswordCost(cost int) ServiceOption {
	return func(o *serviceOptions) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			o.passwordCost = cost
		}
	}
}

type operationMeta struct {
	entity EntityType
	action Action
}

// auditedOperations maps mutating operation names to their audit metadata.
// Reads are traced and measured but never audited.
var auditedOperations = map[string]operationMeta{
	"create_employee":      {EntityEmployee, ActionCreate},
	"update_employee":      {EntityEmployee, ActionUpdate},
	"delete_employee":      {EntityEmployee, ActionDelete},
	"create_project":       {EntityProject, ActionCreate},
	"update_project":       {EntityProject, ActionUpdate},
	"create_work_package":  {EntityWorkPackage, ActionCreate},
	"update_work_package":  {EntityWorkPackage, ActionUpdate},
	"create_estimate":      {EntityEstimate, ActionCreate},
	"update_estimate":      {EntityEstimate, ActionUpdate},
	"delete_estimate":      {EntityEstimate, ActionDelete},
	"create_timesheet":     {EntityTimesheet, ActionCreate},
	"update_timesheet":     {EntityTimesheet, ActionUpdate},
	"delete_timesheet":     {EntityTimesheet, ActionDelete},
	"create_timesheet_row": {EntityTimesheetRow, ActionCreate},
	"put_timesheet_row":    {EntityTimesheetRow, ActionUpdate},
	"put_signature":        {EntitySignature, ActionUpdate},
}

// run wraps fn with a trace span, a metrics observation and, for mutations, an
// audit entry. fn returns the id of the affected entity.
func (s *Service) run(ctx context.Context, op string, fn func(context.Context) (string, error)) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	entityID, err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Debug("service operation failed", "operation", op, "error", err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return err
	}
	s.logger.Debug("service operation", "operation", op, "id", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Actor:     ActorFromContext(ctx),
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}
