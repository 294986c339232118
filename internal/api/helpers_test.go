package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"yojana/internal/api"
	"yojana/internal/blob"
	"yojana/internal/core"
	"yojana/pkg/domain"
)

// countingStore counts write transactions so tests can assert that a request
// never reached persistence.
type countingStore struct {
	core.PersistentStore
	mu  sync.Mutex
	txs int
}

func (c *countingStore) RunInTransaction(ctx context.Context, fn func(core.Transaction) error) (core.Result, error) {
	c.mu.Lock()
	c.txs++
	c.mu.Unlock()
	return c.PersistentStore.RunInTransaction(ctx, fn)
}

func (c *countingStore) writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txs
}

type harness struct {
	t     *testing.T
	srv   http.Handler
	svc   *core.Service
	store *countingStore
}

type envelope struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []api.ErrorMessage         `json:"errors"`
}

// newHarness seeds an admin (ada), a project manager (pat) and a plain
// employee (sam). Each password is "pw-" followed by the username.
func newHarness(t *testing.T, opts ...api.Option) *harness {
	t.Helper()
	store := &countingStore{PersistentStore: core.NewMemoryStore(core.NewDefaultRulesEngine())}
	svc := core.NewService(store, core.WithPasswordCost(bcrypt.MinCost), core.WithBlobStore(blob.NewMemory()))
	yes := true
	for _, seed := range []domain.EmployeePatch{
		{ID: str("ada"), FullName: str("Ada Admin"), IsAdmin: &yes, Username: str("ada"), Password: str("pw-ada")},
		{ID: str("pat"), FullName: str("Pat Manager"), IsProjectManager: &yes, Username: str("pat"), Password: str("pw-pat")},
		{ID: str("sam"), FullName: str("Sam Staff"), Username: str("sam"), Password: str("pw-sam")},
	} {
		if _, err := svc.CreateEmployee(context.Background(), seed); err != nil {
			t.Fatalf("seed employee: %v", err)
		}
	}
	return &harness{t: t, srv: api.NewServer(svc, opts...), svc: svc, store: store}
}

func str(s string) *string { return &s }

func (h *harness) do(method, path, user, contentType, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.SetBasicAuth(user, "pw-"+user)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) send(method, path, user, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	return h.do(method, path, user, "application/json", body)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

func dataSlot[T any](t *testing.T, env envelope, slot string) T {
	t.Helper()
	var out T
	raw, ok := env.Data[slot]
	if !ok {
		t.Fatalf("missing data slot %q in %v", slot, env.Data)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode slot %q: %v", slot, err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
