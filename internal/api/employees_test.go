package api_test

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type employeeDoc struct {
	XMLName          xml.Name `xml:"employee"`
	ID               string   `xml:"id"`
	FullName         string   `xml:"fullName"`
	IsAdmin          bool     `xml:"isAdmin"`
	IsProjectManager bool     `xml:"isProjectManager"`
	Username         string   `xml:"credential>username"`
}

type errorDoc struct {
	Errors []struct {
		Status   int    `xml:"status"`
		Kind     string `xml:"kind"`
		Resource string `xml:"resource"`
		ID       string `xml:"id"`
		Message  string `xml:"message"`
	} `xml:"errors>error"`
}

func decodeXML[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := xml.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode xml %q: %v", rec.Body.String(), err)
	}
	return out
}

const newHire = `<employee>
  <id>lin</id>
  <fullName>Lin Developer</fullName>
  <isProjectManager>true</isProjectManager>
  <credential><username>lin</username><password>pw-lin</password></credential>
</employee>`

func TestEmployeeXMLLifecycle(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/employees", "ada", "application/xml", newHire)
	expectStatus(t, rec, http.StatusCreated)
	if loc := rec.Header().Get("Location"); loc != "/employees/lin" {
		t.Fatalf("unexpected Location %q", loc)
	}

	rec = h.do(http.MethodGet, "/employees/lin", "lin", "", "")
	expectStatus(t, rec, http.StatusOK)
	if strings.Contains(rec.Body.String(), "pw-lin") || strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("password leaked: %s", rec.Body.String())
	}
	doc := decodeXML[employeeDoc](t, rec)
	if doc.FullName != "Lin Developer" || !doc.IsProjectManager || doc.IsAdmin || doc.Username != "lin" {
		t.Fatalf("unexpected employee %+v", doc)
	}

	rec = h.do(http.MethodGet, "/employees/all", "sam", "", "")
	expectStatus(t, rec, http.StatusOK)
	list := decodeXML[struct {
		Employees []employeeDoc `xml:"employee"`
	}](t, rec)
	if len(list.Employees) != 4 {
		t.Fatalf("expected 4 employees, got %d", len(list.Employees))
	}

	rec = h.do(http.MethodPatch, "/employees/lin", "ada", "application/xml", `<employee><fullName>Lin Lead</fullName></employee>`)
	expectStatus(t, rec, http.StatusNoContent)
	rec = h.do(http.MethodGet, "/employees/lin", "ada", "", "")
	if doc := decodeXML[employeeDoc](t, rec); doc.FullName != "Lin Lead" || !doc.IsProjectManager {
		t.Fatalf("unexpected merge result %+v", doc)
	}

	expectStatus(t, h.do(http.MethodPost, "/employees", "ada", "application/xml", newHire), http.StatusConflict)

	expectStatus(t, h.do(http.MethodDelete, "/employees/lin", "ada", "", ""), http.StatusOK)
	rec = h.do(http.MethodGet, "/employees/lin", "ada", "", "")
	expectStatus(t, rec, http.StatusNotFound)
	errs := decodeXML[errorDoc](t, rec)
	if len(errs.Errors) != 1 || errs.Errors[0].Resource != "employee" || errs.Errors[0].ID != "lin" {
		t.Fatalf("unexpected XML errors %+v", errs)
	}
}

func TestEmployeeXMLValidation(t *testing.T) {
	h := newHarness(t)
	before := h.store.writes()

	expectStatus(t, h.do(http.MethodPost, "/employees", "ada", "application/xml", `<employee><fullName>`), http.StatusBadRequest)
	expectStatus(t, h.do(http.MethodPost, "/employees", "ada", "application/xml", `<employee><id>x</id></employee>`), http.StatusBadRequest)
	expectStatus(t, h.do(http.MethodPatch, "/employees/ghost", "ada", "application/xml", `<employee><fullName>x</fullName></employee>`), http.StatusNotFound)
	expectStatus(t, h.do(http.MethodPost, "/employees", "sam", "application/xml", newHire), http.StatusForbidden)

	if h.store.writes() != before {
		t.Fatalf("rejected employee requests must not write")
	}

	// pat manages a project and cannot be removed.
	expectStatus(t, h.send(http.MethodPost, "/projects", "pat", `{"id":"apollo","name":"Apollo"}`), http.StatusCreated)
	rec := h.do(http.MethodDelete, "/employees/pat", "ada", "", "")
	expectStatus(t, rec, http.StatusConflict)
	if !strings.Contains(rec.Header().Get("Content-Type"), "xml") {
		t.Fatalf("expected an XML error, got %q", rec.Header().Get("Content-Type"))
	}
}
