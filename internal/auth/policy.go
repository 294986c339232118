package auth

import "yojana/internal/core"

// Policy decides whether an authenticated employee may use a route.
type Policy string

const (
	// Authenticated admits any authenticated employee.
	Authenticated Policy = "authenticated"
	// AdminOnly admits administrators.
	AdminOnly Policy = "admin"
	// AdminOrProjectManager admits administrators and project managers.
	AdminOrProjectManager Policy = "admin_or_project_manager"
)

// Allows reports whether e satisfies the policy. Unknown policies deny.
func (p Policy) Allows(e core.Employee) bool {
	switch p {
	case Authenticated:
		return true
	case AdminOnly:
		return e.IsAdmin
	case AdminOrProjectManager:
		return e.IsAdmin || e.IsProjectManager
	}
	return false
}
