package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"yojana/internal/api"
	"yojana/pkg/domain"
)

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/projects", "/timesheets"} {
		rec := h.send(http.MethodGet, path, "", "")
		expectStatus(t, rec, http.StatusUnauthorized)
		if rec.Header().Get("WWW-Authenticate") == "" {
			t.Fatalf("expected a Basic challenge on %s", path)
		}
		env := decodeEnvelope(t, rec)
		if len(env.Errors) != 1 || env.Errors[0].Kind != api.KindUnauthorized {
			t.Fatalf("unexpected errors %+v", env.Errors)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.SetBasicAuth("ada", "wrong")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestForbiddenRequestsNeverTouchTheStore(t *testing.T) {
	h := newHarness(t)
	before := h.store.writes()

	cases := []struct {
		method string
		path   string
		user   string
		body   string
	}{
		{http.MethodPost, "/projects", "sam", `{"name":"Apollo"}`},
		{http.MethodGet, "/projects", "pat", ""},
		{http.MethodPatch, "/projects/p1", "sam", `{"name":"x"}`},
		{http.MethodPost, "/projects/p1/workPackages", "sam", `{"name":"x"}`},
		{http.MethodPost, "/estimates", "sam", `{"hours":1}`},
		{http.MethodDelete, "/estimates/e1", "sam", ""},
	}
	for _, tc := range cases {
		rec := h.send(tc.method, tc.path, tc.user, tc.body)
		expectStatus(t, rec, http.StatusForbidden)
		env := decodeEnvelope(t, rec)
		if len(env.Errors) != 1 || env.Errors[0].Kind != api.KindForbidden {
			t.Fatalf("%s %s: unexpected errors %+v", tc.method, tc.path, env.Errors)
		}
	}

	rec := h.do(http.MethodDelete, "/employees/sam", "pat", "", "")
	expectStatus(t, rec, http.StatusForbidden)
	if !strings.Contains(rec.Header().Get("Content-Type"), "xml") || !strings.Contains(rec.Body.String(), "<kind>forbidden</kind>") {
		t.Fatalf("expected an XML error envelope, got %q", rec.Body.String())
	}

	if got := h.store.writes(); got != before {
		t.Fatalf("forbidden requests performed %d writes", got-before)
	}
}

func TestCreateThenGetProject(t *testing.T) {
	h := newHarness(t)
	rec := h.send(http.MethodPost, "/projects", "pat", `{"id":"apollo","name":"Apollo","description":"moon","projectManagerId":"ada","audit":{"createdBy":"mallory"}}`)
	expectStatus(t, rec, http.StatusCreated)
	if loc := rec.Header().Get("Location"); loc != "/projects/apollo" {
		t.Fatalf("unexpected Location %q", loc)
	}

	rec = h.send(http.MethodGet, "/projects/apollo", "pat", "")
	expectStatus(t, rec, http.StatusOK)
	project := dataSlot[domain.Project](t, decodeEnvelope(t, rec), "project")
	if project.Name != "Apollo" || project.Description != "moon" {
		t.Fatalf("unexpected project %+v", project)
	}
	if project.ProjectManagerID != "pat" {
		t.Fatalf("expected the caller as project manager, got %q", project.ProjectManagerID)
	}
	if project.Audit.CreatedBy != "pat" {
		t.Fatalf("expected audit from the request actor, got %q", project.Audit.CreatedBy)
	}

	rec = h.send(http.MethodGet, "/projects", "ada", "")
	expectStatus(t, rec, http.StatusOK)
	if projects := dataSlot[[]domain.Project](t, decodeEnvelope(t, rec), "projects"); len(projects) != 1 {
		t.Fatalf("expected one project, got %d", len(projects))
	}
}

func TestPatchProject(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.send(http.MethodPost, "/projects", "pat", `{"id":"apollo","name":"Apollo","description":"moon"}`), http.StatusCreated)
	writes := h.store.writes()

	rec := h.send(http.MethodPatch, "/projects/apollo", "pat", `{"id":"gemini","name":"Renamed"}`)
	expectStatus(t, rec, http.StatusBadRequest)
	if h.store.writes() != writes {
		t.Fatalf("mismatched id must not write")
	}

	rec = h.send(http.MethodPatch, "/projects/apollo", "ada", `{"name":"Artemis","description":null}`)
	expectStatus(t, rec, http.StatusOK)
	project := dataSlot[domain.Project](t, decodeEnvelope(t, rec), "project")
	if project.Name != "Artemis" || project.Description != "moon" || project.ProjectManagerID != "pat" {
		t.Fatalf("unexpected merge result %+v", project)
	}

	rec = h.send(http.MethodPatch, "/projects/ghost", "pat", `{"name":"x"}`)
	expectStatus(t, rec, http.StatusNotFound)
	env := decodeEnvelope(t, rec)
	if env.Errors[0].Resource != "project" || env.Errors[0].ID != "ghost" {
		t.Fatalf("unexpected not found entry %+v", env.Errors[0])
	}

	rec = h.send(http.MethodPatch, "/projects/apollo", "pat", `{"projectManagerId":"nobody"}`)
	expectStatus(t, rec, http.StatusNotFound)

	rec = h.send(http.MethodPatch, "/projects/apollo", "pat", `{"name":`)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestEmptyProjectListIsNotFound(t *testing.T) {
	h := newHarness(t)
	rec := h.send(http.MethodGet, "/projects", "ada", "")
	expectStatus(t, rec, http.StatusNotFound)
	env := decodeEnvelope(t, rec)
	if len(env.Errors) != 1 || env.Errors[0].Resource != "projects" || env.Errors[0].Kind != api.KindNotFound {
		t.Fatalf("unexpected errors %+v", env.Errors)
	}
}

func TestWorkPackageRoutes(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.send(http.MethodPost, "/projects", "pat", `{"id":"apollo","name":"Apollo"}`), http.StatusCreated)

	rec := h.send(http.MethodPost, "/projects/apollo/workPackages", "pat", `{"id":"design","name":"Design"}`)
	expectStatus(t, rec, http.StatusCreated)
	if loc := rec.Header().Get("Location"); loc != "/projects/apollo/workPackages/design" {
		t.Fatalf("unexpected Location %q", loc)
	}
	if id := dataSlot[string](t, decodeEnvelope(t, rec), "id"); id != "design" {
		t.Fatalf("unexpected id %q", id)
	}

	rec = h.send(http.MethodPost, "/projects/apollo/workPackages", "pat", `{"name":"Sketches","hierarchyLevel":1,"parentId":"design"}`)
	expectStatus(t, rec, http.StatusCreated)
	childID := dataSlot[string](t, decodeEnvelope(t, rec), "id")

	expectStatus(t, h.send(http.MethodPost, "/projects/apollo/workPackages", "pat", `{"id":"design"}`), http.StatusConflict)
	expectStatus(t, h.send(http.MethodPost, "/projects/apollo/workPackages", "pat", `{"parentId":"ghost","hierarchyLevel":1}`), http.StatusNotFound)

	rec = h.send(http.MethodGet, "/projects/apollo/workPackages/design/children", "sam", "")
	expectStatus(t, rec, http.StatusOK)
	children := dataSlot[[]domain.WorkPackage](t, decodeEnvelope(t, rec), "workPackages")
	if len(children) != 1 || children[0].ID != childID {
		t.Fatalf("unexpected children %+v", children)
	}
	expectStatus(t, h.send(http.MethodGet, "/projects/apollo/workPackages/"+childID+"/children", "sam", ""), http.StatusNotFound)

	rec = h.send(http.MethodGet, "/projects/apollo/workPackages?hierarchyLevel=0", "sam", "")
	expectStatus(t, rec, http.StatusOK)
	if wps := dataSlot[[]domain.WorkPackage](t, decodeEnvelope(t, rec), "workPackages"); len(wps) != 1 || wps[0].ID != "design" {
		t.Fatalf("unexpected level 0 listing %+v", wps)
	}
	expectStatus(t, h.send(http.MethodGet, "/projects/apollo/workPackages?hierarchyLevel=top", "sam", ""), http.StatusBadRequest)

	rec = h.send(http.MethodPatch, "/projects/apollo/workPackages/design", "pat", `{"description":"first pass"}`)
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, h.send(http.MethodPatch, "/projects/apollo/workPackages/ghost", "pat", `{"name":"x"}`), http.StatusNotFound)
	expectStatus(t, h.send(http.MethodPatch, "/projects/apollo/workPackages/design", "pat", `{"parentId":"`+childID+`"}`), http.StatusBadRequest)

	rec = h.send(http.MethodGet, "/projects/apollo/workPackages/design", "ada", "")
	expectStatus(t, rec, http.StatusOK)
	if wp := dataSlot[domain.WorkPackage](t, decodeEnvelope(t, rec), "workPackage"); wp.Description != "first pass" || wp.Name != "Design" {
		t.Fatalf("unexpected work package %+v", wp)
	}
}

func TestEstimateRoutes(t *testing.T) {
	h := newHarness(t)
	expectStatus(t, h.send(http.MethodPost, "/projects", "pat", `{"id":"apollo","name":"Apollo"}`), http.StatusCreated)
	expectStatus(t, h.send(http.MethodPost, "/projects/apollo/workPackages", "pat", `{"id":"design"}`), http.StatusCreated)

	expectStatus(t, h.send(http.MethodGet, "/estimates", "pat", ""), http.StatusNotFound)
	rec := h.send(http.MethodPost, "/estimates", "pat", `{"projectId":"apollo","workPackageId":"design","hours":12.5}`)
	expectStatus(t, rec, http.StatusCreated)
	id := dataSlot[string](t, decodeEnvelope(t, rec), "id")
	if rec.Header().Get("Location") != "/estimates/"+id {
		t.Fatalf("unexpected Location %q", rec.Header().Get("Location"))
	}
	expectStatus(t, h.send(http.MethodPost, "/estimates", "pat", `{"projectId":"apollo","workPackageId":"design","hours":-1}`), http.StatusBadRequest)
	expectStatus(t, h.send(http.MethodPost, "/estimates", "pat", `{"projectId":"apollo","hours":3}`), http.StatusBadRequest)
	expectStatus(t, h.send(http.MethodPost, "/estimates", "pat", `{"hours":3}`), http.StatusBadRequest)

	rec = h.send(http.MethodPatch, "/estimates/"+id, "pat", `{"hours":20}`)
	expectStatus(t, rec, http.StatusOK)
	if est := dataSlot[domain.Estimate](t, decodeEnvelope(t, rec), "estimate"); est.Hours != 20 || est.WorkPackageID != "design" {
		t.Fatalf("unexpected estimate %+v", est)
	}
	rec = h.send(http.MethodGet, "/estimates?workPackageId=design", "ada", "")
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, h.send(http.MethodGet, "/estimates?projectId=other", "ada", ""), http.StatusNotFound)
	expectStatus(t, h.send(http.MethodDelete, "/estimates/"+id, "pat", ""), http.StatusOK)
	expectStatus(t, h.send(http.MethodGet, "/estimates/"+id, "pat", ""), http.StatusNotFound)
}
