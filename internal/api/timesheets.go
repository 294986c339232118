package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"yojana/internal/core"
	"yojana/pkg/domain"
)

// maxSignatureBytes caps signature uploads.
const maxSignatureBytes = 1 << 20

func (s *Server) getTimesheet(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	ts, err := s.svc.GetTimesheet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"timesheet": ts})
}

func (s *Server) listTimesheets(w http.ResponseWriter, r *http.Request, caller core.Employee) {
	q := r.URL.Query()
	getAll, _ := strconv.ParseBool(q.Get("getAll"))
	timesheets, err := s.svc.ListTimesheets(r.Context(), caller, core.TimesheetQuery{
		Status:     q.Get("status"),
		GetAll:     getAll,
		EmployeeID: q.Get("empId"),
	})
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	if len(timesheets) == 0 {
		writeMessages(w, false, notFoundMultiple("timesheets"))
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"timesheets": timesheets})
}

func (s *Server) createTimesheet(w http.ResponseWriter, r *http.Request, caller core.Employee) {
	var in domain.TimesheetPatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	ts, err := s.svc.CreateTimesheet(r.Context(), caller, in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	w.Header().Set("Location", "/timesheets/"+url.PathEscape(ts.ID))
	s.ok(w, http.StatusCreated, map[string]any{"id": ts.ID})
}

func (s *Server) updateTimesheet(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.TimesheetPatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	ts, err := s.svc.UpdateTimesheet(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"timesheet": ts})
}

func (s *Server) deleteTimesheet(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	if err := s.svc.DeleteTimesheet(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, nil)
}

func (s *Server) listTimesheetRows(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	rows, err := s.svc.ListTimesheetRows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	if len(rows) == 0 {
		writeMessages(w, false, notFoundMultiple("timesheetRows"))
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"timesheetRows": rows})
}

func rowLocation(row core.TimesheetRow) string {
	return "/timesheets/" + url.PathEscape(row.TimesheetID) +
		"/rows/project/" + url.PathEscape(row.ProjectID) +
		"/wp/" + url.PathEscape(row.WorkPackageID)
}

func (s *Server) createTimesheetRow(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.TimesheetRowInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	row, err := s.svc.AddTimesheetRow(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	w.Header().Set("Location", rowLocation(row))
	s.ok(w, http.StatusCreated, map[string]any{"timesheetRow": row})
}

// putTimesheetRow upserts the row at the payload's index. Both insert and
// replace answer 201.
func (s *Server) putTimesheetRow(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.TimesheetRowInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	row, _, err := s.svc.PutTimesheetRow(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	w.Header().Set("Location", rowLocation(row))
	s.ok(w, http.StatusCreated, map[string]any{"timesheetRow": row})
}

func (s *Server) putSignature(w http.ResponseWriter, r *http.Request, caller core.Employee) {
	body := http.MaxBytesReader(w, r.Body, maxSignatureBytes)
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ts, err := s.svc.PutTimesheetSignature(r.Context(), caller, chi.URLParam(r, "id"), contentType, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessages(w, false, badRequest("body", "signature exceeds "+strconv.Itoa(maxSignatureBytes)+" bytes"))
			return
		}
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"timesheet": ts})
}

func (s *Server) getSignature(w http.ResponseWriter, r *http.Request, caller core.Employee) {
	info, rc, err := s.svc.OpenTimesheetSignature(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	defer func() { _ = rc.Close() }()
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream signature", "timesheet", chi.URLParam(r, "id"), "error", err)
	}
}
