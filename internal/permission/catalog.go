package permission

import "sort"

// Role is the global, user-wide capability tier.
type Role string

const (
	RoleSuperAdmin      Role = "super_admin"
	RolePropertyOwner   Role = "property_owner"
	RolePropertyAdmin   Role = "property_admin"
	RoleRegionalManager Role = "regional_manager"
	RolePropertyManager Role = "property_manager"
	RoleSupervisor      Role = "supervisor"
	RoleUser            Role = "user"
	RoleReadonly        Role = "readonly"
)

// roleRank orders roles from lowest (1) to highest (8). Unknown roles rank 0.
var roleRank = map[Role]int{
	RoleReadonly:        1,
	RoleUser:            2,
	RoleSupervisor:      3,
	RolePropertyManager: 4,
	RoleRegionalManager: 5,
	RolePropertyAdmin:   6,
	RolePropertyOwner:   7,
	RoleSuperAdmin:      8,
}

// AccessHierarchy returns the rank of a role for ordering comparisons.
// Unknown roles rank 0, below every valid role.
func AccessHierarchy(r Role) int {
	return roleRank[r]
}

// HasHigherAccess reports whether role a outranks role b.
func HasHigherAccess(a, b Role) bool {
	return roleRank[a] > roleRank[b]
}

// ValidRole reports whether r is one of the eight defined roles.
func ValidRole(r Role) bool {
	_, ok := roleRank[r]
	return ok
}

// Roles returns all defined roles ordered from highest to lowest rank.
func Roles() []Role {
	return []Role{
		RoleSuperAdmin, RolePropertyOwner, RolePropertyAdmin,
		RoleRegionalManager, RolePropertyManager, RoleSupervisor,
		RoleUser, RoleReadonly,
	}
}

// AccessLevel is the per-property capability tier, distinct from Role.
type AccessLevel string

const (
	LevelReadOnly    AccessLevel = "read_only"
	LevelDataEntry   AccessLevel = "data_entry"
	LevelManagement  AccessLevel = "management"
	LevelFullControl AccessLevel = "full_control"
	LevelOwner       AccessLevel = "owner"
)

var levelRank = map[AccessLevel]int{
	LevelReadOnly:    1,
	LevelDataEntry:   2,
	LevelManagement:  3,
	LevelFullControl: 4,
	LevelOwner:       5,
}

// Each access level aliases onto a role's permission set, so the same
// permission logic serves role-based and property-scoped checks.
var levelRole = map[AccessLevel]Role{
	LevelOwner:       RolePropertyOwner,
	LevelFullControl: RolePropertyAdmin,
	LevelManagement:  RolePropertyManager,
	LevelDataEntry:   RoleSupervisor,
	LevelReadOnly:    RoleReadonly,
}

// LevelRank returns the rank of an access level (unknown levels rank 0).
func LevelRank(l AccessLevel) int {
	return levelRank[l]
}

// ValidLevel reports whether l is one of the five defined access levels.
func ValidLevel(l AccessLevel) bool {
	_, ok := levelRank[l]
	return ok
}

// AccessLevelRole returns the role whose permission set an access level
// aliases onto.
func AccessLevelRole(l AccessLevel) Role {
	return levelRole[l]
}

// Levels returns all access levels ordered from lowest to highest rank.
func Levels() []AccessLevel {
	return []AccessLevel{LevelReadOnly, LevelDataEntry, LevelManagement, LevelFullControl, LevelOwner}
}

// LevelsAtOrAbove returns the level names whose rank is >= the given level's
// rank. Used to build query filters over stored PropertyAccess rows.
func LevelsAtOrAbove(l AccessLevel) []string {
	min := levelRank[l]
	out := make([]string, 0, len(levelRank))
	for _, lv := range Levels() {
		if levelRank[lv] >= min {
			out = append(out, string(lv))
		}
	}
	return out
}

// Definition describes one permission in the catalog. Codes follow the
// category.resource.action shape, e.g. "financial.food_costs.read".
type Definition struct {
	Code     string
	Name     string
	Category string
	Action   string
}

var catalog = []Definition{
	{Code: "financial.food_costs.read", Name: "View food cost entries", Category: "financial", Action: "read"},
	{Code: "financial.food_costs.create", Name: "Record food cost entries", Category: "financial", Action: "create"},
	{Code: "financial.food_costs.update", Name: "Edit food cost entries", Category: "financial", Action: "update"},
	{Code: "financial.food_costs.delete", Name: "Delete food cost entries", Category: "financial", Action: "delete"},
	{Code: "financial.beverage_costs.read", Name: "View beverage cost entries", Category: "financial", Action: "read"},
	{Code: "financial.beverage_costs.create", Name: "Record beverage cost entries", Category: "financial", Action: "create"},
	{Code: "financial.beverage_costs.update", Name: "Edit beverage cost entries", Category: "financial", Action: "update"},
	{Code: "financial.beverage_costs.delete", Name: "Delete beverage cost entries", Category: "financial", Action: "delete"},
	{Code: "financial.budgets.read", Name: "View budgets", Category: "financial", Action: "read"},
	{Code: "financial.budgets.manage", Name: "Manage budgets", Category: "financial", Action: "manage"},
	{Code: "reports.variance.read", Name: "View budget variance reports", Category: "reports", Action: "read"},
	{Code: "reports.export", Name: "Export reports", Category: "reports", Action: "export"},
	{Code: "properties.read", Name: "View properties", Category: "properties", Action: "read"},
	{Code: "properties.manage", Name: "Manage properties", Category: "properties", Action: "manage"},
	{Code: "properties.access.read", Name: "View property access grants", Category: "properties", Action: "read"},
	{Code: "properties.access.manage", Name: "Grant and revoke property access", Category: "properties", Action: "manage"},
	{Code: "users.read", Name: "View users", Category: "users", Action: "read"},
	{Code: "users.manage", Name: "Manage users", Category: "users", Action: "manage"},
	{Code: "users.deactivate", Name: "Deactivate users", Category: "users", Action: "deactivate"},
	{Code: "users.permissions.manage", Name: "Manage explicit user permissions", Category: "users", Action: "manage"},
	{Code: "roles.read", Name: "View roles and permissions", Category: "roles", Action: "read"},
	{Code: "roles.manage", Name: "Manage the role permission matrix", Category: "roles", Action: "manage"},
	{Code: "settings.outlets.read", Name: "View outlets", Category: "settings", Action: "read"},
	{Code: "settings.outlets.manage", Name: "Manage outlets", Category: "settings", Action: "manage"},
	{Code: "settings.categories.read", Name: "View cost categories", Category: "settings", Action: "read"},
	{Code: "settings.categories.manage", Name: "Manage cost categories", Category: "settings", Action: "manage"},
	{Code: "settings.currencies.read", Name: "View currencies", Category: "settings", Action: "read"},
	{Code: "settings.currencies.manage", Name: "Manage currencies", Category: "settings", Action: "manage"},
	{Code: "dashboard.view", Name: "View dashboard", Category: "dashboard", Action: "view"},
	{Code: "audit.read", Name: "View audit log", Category: "audit", Action: "read"},
	{Code: "system.cache.manage", Name: "Inspect and clear the permission cache", Category: "system", Action: "manage"},
	{Code: "system.templates.manage", Name: "Manage permission templates", Category: "system", Action: "manage"},
	{Code: "system.delegations.manage", Name: "Manage access delegations", Category: "system", Action: "manage"},
	{Code: "system.compliance.read", Name: "Run compliance scans", Category: "system", Action: "read"},
}

var catalogByCode = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.Code] = d
	}
	return m
}()

// Catalog returns every permission definition.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// AllPermissions returns every permission code, sorted.
func AllPermissions() []string {
	out := make([]string, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d.Code)
	}
	sort.Strings(out)
	return out
}

// IsValidPermission reports whether code exists in the catalog. Unknown
// codes are never satisfiable; callers treat them as fail-closed denials,
// not errors.
func IsValidPermission(code string) bool {
	_, ok := catalogByCode[code]
	return ok
}

// Lookup returns the definition for a permission code.
func Lookup(code string) (Definition, bool) {
	d, ok := catalogByCode[code]
	return d, ok
}

// defaultMatrix is the static role → permission mapping. It seeds the
// persisted matrix at startup; the database copy is the mutable source of
// truth afterwards. super_admin is handled in RolePermissions and always
// maps to the full catalog.
var defaultMatrix = map[Role][]string{
	RolePropertyOwner: {
		"financial.food_costs.read", "financial.food_costs.create", "financial.food_costs.update", "financial.food_costs.delete",
		"financial.beverage_costs.read", "financial.beverage_costs.create", "financial.beverage_costs.update", "financial.beverage_costs.delete",
		"financial.budgets.read", "financial.budgets.manage",
		"reports.variance.read", "reports.export",
		"properties.read", "properties.manage", "properties.access.read", "properties.access.manage",
		"users.read", "users.manage", "users.deactivate", "users.permissions.manage",
		"settings.outlets.read", "settings.outlets.manage",
		"settings.categories.read", "settings.categories.manage",
		"settings.currencies.read", "settings.currencies.manage",
		"dashboard.view", "audit.read",
		"system.templates.manage", "system.delegations.manage", "system.compliance.read",
	},
	RolePropertyAdmin: {
		"financial.food_costs.read", "financial.food_costs.create", "financial.food_costs.update", "financial.food_costs.delete",
		"financial.beverage_costs.read", "financial.beverage_costs.create", "financial.beverage_costs.update", "financial.beverage_costs.delete",
		"financial.budgets.read", "financial.budgets.manage",
		"reports.variance.read", "reports.export",
		"properties.read", "properties.manage", "properties.access.read", "properties.access.manage",
		"users.read", "users.manage",
		"settings.outlets.read", "settings.outlets.manage",
		"settings.categories.read", "settings.categories.manage",
		"settings.currencies.read", "settings.currencies.manage",
		"dashboard.view", "audit.read",
		"system.delegations.manage",
	},
	RoleRegionalManager: {
		"financial.food_costs.read", "financial.beverage_costs.read", "financial.budgets.read",
		"reports.variance.read", "reports.export",
		"properties.read", "properties.access.read",
		"users.read",
		"settings.outlets.read", "settings.categories.read", "settings.currencies.read",
		"dashboard.view", "audit.read",
	},
	RolePropertyManager: {
		"financial.food_costs.read", "financial.food_costs.create", "financial.food_costs.update",
		"financial.beverage_costs.read", "financial.beverage_costs.create", "financial.beverage_costs.update",
		"financial.budgets.read", "financial.budgets.manage",
		"reports.variance.read", "reports.export",
		"properties.read", "properties.access.read",
		"users.read",
		"settings.outlets.read", "settings.outlets.manage",
		"settings.categories.read", "settings.categories.manage",
		"settings.currencies.read",
		"dashboard.view",
	},
	RoleSupervisor: {
		"financial.food_costs.read", "financial.food_costs.create", "financial.food_costs.update",
		"financial.beverage_costs.read", "financial.beverage_costs.create", "financial.beverage_costs.update",
		"financial.budgets.read",
		"reports.variance.read",
		"properties.read",
		"settings.outlets.read", "settings.categories.read", "settings.currencies.read",
		"dashboard.view",
	},
	RoleUser: {
		"financial.food_costs.read", "financial.beverage_costs.read", "financial.budgets.read",
		"reports.variance.read",
		"properties.read",
		"settings.outlets.read", "settings.categories.read", "settings.currencies.read",
		"dashboard.view",
	},
	RoleReadonly: {
		"financial.food_costs.read", "financial.beverage_costs.read", "financial.budgets.read",
		"reports.variance.read",
		"properties.read",
		"dashboard.view",
	},
}

// RolePermissions returns the default permission codes for a role, sorted.
// super_admin always receives the full catalog; unknown roles receive
// nothing. Pure and deterministic — the persisted matrix may diverge from
// these defaults at runtime.
func RolePermissions(r Role) []string {
	if r == RoleSuperAdmin {
		return AllPermissions()
	}
	codes, ok := defaultMatrix[r]
	if !ok {
		return nil
	}
	out := make([]string, len(codes))
	copy(out, codes)
	sort.Strings(out)
	return out
}

// AccessLevelPermissions returns the default permission codes an access
// level grants, via its role alias.
func AccessLevelPermissions(l AccessLevel) []string {
	r, ok := levelRole[l]
	if !ok {
		return nil
	}
	return RolePermissions(r)
}
