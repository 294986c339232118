package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// OperationStats aggregates the observations for one operation.
type OperationStats struct {
	TotalMS float64 `json:"total_ms"`
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
}

// ExpvarMetricsRecorder publishes per-operation totals through expvar, which
// the debug server exposes at /debug/vars.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]OperationStats
}

// ExpvarMetricsSnapshot is a point-in-time copy of the recorder state.
type ExpvarMetricsSnapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	RecordedAt time.Time                 `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when empty. expvar names are process global, so
// publishing the same name twice panics.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("yojana_service_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot copies the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make(map[string]OperationStats, len(r.ops))
	for op, stats := range r.ops {
		ops[op] = stats
	}
	return ExpvarMetricsSnapshot{Operations: ops, RecordedAt: time.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := r.ops[operation]
	stats.TotalMS += float64(duration) / float64(time.Millisecond)
	if success {
		stats.Success++
	} else {
		stats.Error++
	}
	r.ops[operation] = stats
}

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Actor      string    `json:"actor,omitempty"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines and keeps them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
	now     func() time.Time
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	t := &JSONTraceTracer{now: func() time.Time { return time.Now().UTC() }}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the finished spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	return ctx, &jsonTraceSpan{
		tracer:    t,
		operation: operation,
		actor:     ActorFromContext(ctx),
		started:   t.now(),
	}
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	actor     string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := s.tracer.now()
	entry := JSONTraceEntry{
		Operation:  s.operation,
		Actor:      s.actor,
		Status:     "success",
		DurationMS: float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:  s.started,
		EndedAt:    ended,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}

// LogAuditRecorder writes audit entries to a Logger at info level, or warn
// when the operation failed.
type LogAuditRecorder struct {
	logger Logger
}

// NewLogAuditRecorder returns a recorder logging to logger.
func NewLogAuditRecorder(logger Logger) *LogAuditRecorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogAuditRecorder{logger: logger}
}

func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	args := []any{
		"operation", entry.Operation,
		"entity", string(entry.Entity),
		"action", string(entry.Action),
		"id", entry.EntityID,
		"actor", entry.Actor,
		"duration", entry.Duration,
	}
	if entry.Status == AuditStatusError {
		r.logger.Warn("audit", append(args, "error", entry.Error)...)
		return
	}
	r.logger.Info("audit", args...)
}

// MultiAuditRecorder forwards every entry to each recorder in order.
type MultiAuditRecorder []AuditRecorder

func (m MultiAuditRecorder) Record(ctx context.Context, entry AuditEntry) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, entry)
		}
	}
}
