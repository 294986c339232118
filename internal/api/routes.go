package api

import (
	"net/http"

	"yojana/internal/auth"
	"yojana/internal/core"
)

type handlerFunc func(s *Server, w http.ResponseWriter, r *http.Request, caller core.Employee)

// route binds a method and pattern to its policy. Employee routes speak XML,
// including their errors.
type route struct {
	method  string
	pattern string
	policy  auth.Policy
	xml     bool
	handle  handlerFunc
}

var routeTable = []route{
	{http.MethodGet, "/employees/all", auth.Authenticated, true, (*Server).listEmployees},
	{http.MethodGet, "/employees/{id}", auth.Authenticated, true, (*Server).getEmployee},
	{http.MethodPost, "/employees", auth.AdminOnly, true, (*Server).createEmployee},
	{http.MethodPatch, "/employees/{id}", auth.AdminOnly, true, (*Server).updateEmployee},
	{http.MethodDelete, "/employees/{id}", auth.AdminOnly, true, (*Server).deleteEmployee},

	{http.MethodGet, "/projects", auth.AdminOnly, false, (*Server).listProjects},
	{http.MethodPost, "/projects", auth.AdminOrProjectManager, false, (*Server).createProject},
	{http.MethodGet, "/projects/{id}", auth.AdminOrProjectManager, false, (*Server).getProject},
	{http.MethodPatch, "/projects/{id}", auth.AdminOrProjectManager, false, (*Server).updateProject},
	{http.MethodGet, "/projects/{id}/workPackages", auth.Authenticated, false, (*Server).listWorkPackages},
	{http.MethodPost, "/projects/{id}/workPackages", auth.AdminOrProjectManager, false, (*Server).createWorkPackage},
	{http.MethodGet, "/projects/{id}/workPackages/{wpId}", auth.AdminOrProjectManager, false, (*Server).getWorkPackage},
	{http.MethodPatch, "/projects/{id}/workPackages/{wpId}", auth.AdminOrProjectManager, false, (*Server).updateWorkPackage},
	{http.MethodGet, "/projects/{id}/workPackages/{wpId}/children", auth.Authenticated, false, (*Server).listChildWorkPackages},

	{http.MethodGet, "/estimates", auth.AdminOrProjectManager, false, (*Server).listEstimates},
	{http.MethodPost, "/estimates", auth.AdminOrProjectManager, false, (*Server).createEstimate},
	{http.MethodGet, "/estimates/{id}", auth.AdminOrProjectManager, false, (*Server).getEstimate},
	{http.MethodPatch, "/estimates/{id}", auth.AdminOrProjectManager, false, (*Server).updateEstimate},
	{http.MethodDelete, "/estimates/{id}", auth.AdminOrProjectManager, false, (*Server).deleteEstimate},

	{http.MethodGet, "/timesheets", auth.Authenticated, false, (*Server).listTimesheets},
	{http.MethodPost, "/timesheets", auth.Authenticated, false, (*Server).createTimesheet},
	{http.MethodGet, "/timesheets/{id}", auth.Authenticated, false, (*Server).getTimesheet},
	{http.MethodPatch, "/timesheets/{id}", auth.Authenticated, false, (*Server).updateTimesheet},
	{http.MethodDelete, "/timesheets/{id}", auth.Authenticated, false, (*Server).deleteTimesheet},
	{http.MethodGet, "/timesheets/{id}/rows", auth.Authenticated, false, (*Server).listTimesheetRows},
	{http.MethodPost, "/timesheets/{id}/rows", auth.Authenticated, false, (*Server).createTimesheetRow},
	{http.MethodPut, "/timesheets/{id}/rows", auth.Authenticated, false, (*Server).putTimesheetRow},
	{http.MethodGet, "/timesheets/{id}/signature", auth.Authenticated, false, (*Server).getSignature},
	{http.MethodPut, "/timesheets/{id}/signature", auth.Authenticated, false, (*Server).putSignature},
}
