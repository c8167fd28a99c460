// Package nav resolves which navigation capabilities an identity may see.
package nav

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Surfaces a capability can be declared for.
const (
	SurfaceMain  = "main"
	SurfaceAdmin = "admin"
)

// Capability describes one navigation entry gated by a single permission.
type Capability struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Path     string `json:"path"`
	Icon     string `json:"icon,omitempty"`
	Required string `json:"-"`
	Surface  string `json:"-"`
}

var titleCaser = cases.Title(language.English)

// LabelFromKey derives a display label from a capability key, e.g.
// "holidays.upcoming" becomes "Holidays Upcoming". Used when a catalog
// entry declares no explicit label.
func LabelFromKey(key string) string {
	parts := strings.Split(key, ".")
	for i, part := range parts {
		parts[i] = titleCaser.String(part)
	}
	return strings.Join(parts, " ")
}

// DefaultCatalog returns the built-in capability catalog. Declaration order
// is the order entries are rendered in; the resolver preserves it.
func DefaultCatalog() []Capability {
	return []Capability{
		{Key: "dashboard", Label: "Dashboard", Path: "/", Icon: "home", Required: "dashboard.view", Surface: SurfaceMain},
		{Key: "employees", Label: "Employees", Path: "/employees", Icon: "users", Required: "employees.view", Surface: SurfaceMain},
		{Key: "holidays", Label: "Holidays", Path: "/holidays", Icon: "calendar", Required: "holidays.view", Surface: SurfaceMain},
		{Key: "absences", Label: "Absences", Path: "/absences", Icon: "clock", Required: "absences.view", Surface: SurfaceMain},
		{Key: "documents", Label: "Documents", Path: "/documents", Icon: "file", Required: "documents.view", Surface: SurfaceMain},
		{Key: "reports", Label: "Reports", Path: "/reports", Icon: "chart", Required: "reports.view", Surface: SurfaceMain},

		{Key: "admin.users", Label: "Users", Path: "/admin/users", Icon: "user-cog", Required: "admin.users.view", Surface: SurfaceAdmin},
		{Key: "admin.profiles", Label: "Profiles", Path: "/admin/profiles", Icon: "id-badge", Required: "admin.profiles.view", Surface: SurfaceAdmin},
		{Key: "admin.permission-sets", Label: "Permission Sets", Path: "/admin/permission-sets", Icon: "layers", Required: "admin.permission-sets.view", Surface: SurfaceAdmin},
		{Key: "admin.permissions", Label: "Permissions", Path: "/admin/permissions", Icon: "key", Required: "admin.permissions.view", Surface: SurfaceAdmin},
		{Key: "admin.audit", Label: "Audit Log", Path: "/admin/audit", Icon: "scroll", Required: "admin.audit.view", Surface: SurfaceAdmin},
	}
}
