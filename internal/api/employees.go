package api

import (
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"yojana/internal/core"
	"yojana/pkg/domain"
)

// employeeXML is the wire form of an employee. The password is accepted on
// input only and never rendered.
type employeeXML struct {
	XMLName          xml.Name       `xml:"employee"`
	ID               string         `xml:"id"`
	FullName         string         `xml:"fullName"`
	IsAdmin          bool           `xml:"isAdmin"`
	IsProjectManager bool           `xml:"isProjectManager"`
	Credential       *credentialXML `xml:"credential,omitempty"`
	Audit            domain.Audit   `xml:"audit"`
}

type credentialXML struct {
	Username string `xml:"username"`
}

type employeeListXML struct {
	XMLName   xml.Name      `xml:"employees"`
	Employees []employeeXML `xml:"employee"`
}

func toEmployeeXML(acct core.EmployeeAccount) employeeXML {
	out := employeeXML{
		ID:               acct.Employee.ID,
		FullName:         acct.Employee.FullName,
		IsAdmin:          acct.Employee.IsAdmin,
		IsProjectManager: acct.Employee.IsProjectManager,
		Audit:            acct.Employee.Audit,
	}
	if acct.Username != "" {
		out.Credential = &credentialXML{Username: acct.Username}
	}
	return out
}

func decodeEmployee(r *http.Request) (domain.EmployeePatch, error) {
	var in domain.EmployeePatch
	if r.Body == nil {
		return in, nil
	}
	if err := xml.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		return in, domain.Invalid("body", "malformed XML payload: "+err.Error())
	}
	return in, nil
}

func (s *Server) getEmployee(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	acct, err := s.svc.GetEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, true, err)
		return
	}
	writeXML(w, http.StatusOK, toEmployeeXML(acct))
}

func (s *Server) listEmployees(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	accounts, err := s.svc.ListEmployees(r.Context())
	if err != nil {
		s.fail(w, r, true, err)
		return
	}
	if len(accounts) == 0 {
		writeMessages(w, true, notFoundMultiple("employees"))
		return
	}
	out := employeeListXML{Employees: make([]employeeXML, 0, len(accounts))}
	for _, acct := range accounts {
		out.Employees = append(out.Employees, toEmployeeXML(acct))
	}
	writeXML(w, http.StatusOK, out)
}

func (s *Server) createEmployee(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	in, err := decodeEmployee(r)
	if err != nil {
		s.fail(w, r, true, err)
		return
	}
	acct, err := s.svc.CreateEmployee(r.Context(), in)
	if err != nil {
		s.fail(w, r, true, err)
		return
	}
	w.Header().Set("Location", "/employees/"+url.PathEscape(acct.Username))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) updateEmployee(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	in, err := decodeEmployee(r)
	if err != nil {
		s.fail(w, r, true, err)
		return
	}
	if _, err := s.svc.UpdateEmployee(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		s.fail(w, r, true, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	if err := s.svc.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, true, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
