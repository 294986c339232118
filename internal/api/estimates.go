package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"yojana/internal/core"
	"yojana/pkg/domain"
)

func (s *Server) listEstimates(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	q := r.URL.Query()
	estimates, err := s.svc.ListEstimates(r.Context(), domain.EstimateFilter{
		ProjectID:     q.Get("projectId"),
		WorkPackageID: q.Get("workPackageId"),
	})
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	if len(estimates) == 0 {
		writeMessages(w, false, notFoundMultiple("estimates"))
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"estimates": estimates})
}

func (s *Server) createEstimate(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.EstimatePatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	estimate, err := s.svc.CreateEstimate(r.Context(), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	w.Header().Set("Location", "/estimates/"+url.PathEscape(estimate.ID))
	s.ok(w, http.StatusCreated, map[string]any{"id": estimate.ID, "estimate": estimate})
}

func (s *Server) getEstimate(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	estimate, err := s.svc.GetEstimate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"estimate": estimate})
}

func (s *Server) updateEstimate(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.EstimatePatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	estimate, err := s.svc.UpdateEstimate(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"estimate": estimate})
}

func (s *Server) deleteEstimate(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	if err := s.svc.DeleteEstimate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, nil)
}
