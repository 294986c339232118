package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"yojana/internal/core"
	"yojana/pkg/domain"
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	projects, err := s.svc.ListProjects(r.Context())
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	if len(projects) == 0 {
		writeMessages(w, false, notFoundMultiple("projects"))
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"projects": projects})
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request, caller core.Employee) {
	var in domain.ProjectPatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	project, err := s.svc.CreateProject(r.Context(), caller, in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	w.Header().Set("Location", "/projects/"+url.PathEscape(project.ID))
	s.ok(w, http.StatusCreated, map[string]any{"id": project.ID, "project": project})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	project, err := s.svc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"project": project})
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.ProjectPatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	project, err := s.svc.UpdateProject(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"project": project})
}

func workPackageKey(r *http.Request) core.WorkPackageKey {
	return core.WorkPackageKey{ID: chi.URLParam(r, "wpId"), ProjectID: chi.URLParam(r, "id")}
}

func (s *Server) listWorkPackages(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var level *int
	if raw := r.URL.Query().Get("hierarchyLevel"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeMessages(w, false, badRequest("hierarchyLevel", "hierarchyLevel must be an integer"))
			return
		}
		level = &n
	}
	wps, err := s.svc.ListWorkPackages(r.Context(), chi.URLParam(r, "id"), level)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	if len(wps) == 0 {
		writeMessages(w, false, notFoundMultiple("workPackages"))
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"workPackages": wps})
}

func (s *Server) listChildWorkPackages(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	wps, err := s.svc.ListChildWorkPackages(r.Context(), workPackageKey(r))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	if len(wps) == 0 {
		writeMessages(w, false, notFoundMultiple("workPackages"))
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"workPackages": wps})
}

func (s *Server) createWorkPackage(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.WorkPackagePatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	projectID := chi.URLParam(r, "id")
	wp, err := s.svc.CreateWorkPackage(r.Context(), projectID, in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	w.Header().Set("Location", "/projects/"+url.PathEscape(projectID)+"/workPackages/"+url.PathEscape(wp.ID))
	s.ok(w, http.StatusCreated, map[string]any{"id": wp.ID})
}

func (s *Server) getWorkPackage(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	wp, err := s.svc.GetWorkPackage(r.Context(), workPackageKey(r))
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"workPackage": wp})
}

func (s *Server) updateWorkPackage(w http.ResponseWriter, r *http.Request, _ core.Employee) {
	var in domain.WorkPackagePatch
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, false, err)
		return
	}
	wp, err := s.svc.UpdateWorkPackage(r.Context(), workPackageKey(r), in)
	if err != nil {
		s.fail(w, r, false, err)
		return
	}
	s.ok(w, http.StatusOK, map[string]any{"workPackage": wp})
}
