package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleHierarchyOrdering(t *testing.T) {
	ordered := []Role{
		RoleReadonly, RoleUser, RoleSupervisor, RolePropertyManager,
		RoleRegionalManager, RolePropertyAdmin, RolePropertyOwner, RoleSuperAdmin,
	}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, HasHigherAccess(ordered[i], ordered[i-1]),
			"%s should outrank %s", ordered[i], ordered[i-1])
	}
	assert.False(t, HasHigherAccess(RoleUser, RoleUser))
}

func TestValidRole(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, ValidRole(r))
	}
	assert.False(t, ValidRole(Role("manager")))
	assert.False(t, ValidRole(Role("")))
}

func TestAccessLevelOrdering(t *testing.T) {
	assert.Greater(t, LevelRank(LevelOwner), LevelRank(LevelFullControl))
	assert.Greater(t, LevelRank(LevelFullControl), LevelRank(LevelManagement))
	assert.Greater(t, LevelRank(LevelManagement), LevelRank(LevelDataEntry))
	assert.Greater(t, LevelRank(LevelDataEntry), LevelRank(LevelReadOnly))
	assert.False(t, ValidLevel(AccessLevel("admin")))
}

func TestLevelsAtOrAbove(t *testing.T) {
	all := LevelsAtOrAbove(LevelReadOnly)
	assert.Len(t, all, 5)

	top := LevelsAtOrAbove(LevelOwner)
	assert.Equal(t, []string{string(LevelOwner)}, top)

	mgmt := LevelsAtOrAbove(LevelManagement)
	assert.ElementsMatch(t, []string{
		string(LevelManagement), string(LevelFullControl), string(LevelOwner),
	}, mgmt)
}

func TestAccessLevelRoleAliases(t *testing.T) {
	assert.Equal(t, RolePropertyOwner, AccessLevelRole(LevelOwner))
	assert.Equal(t, RolePropertyAdmin, AccessLevelRole(LevelFullControl))
	assert.Equal(t, RolePropertyManager, AccessLevelRole(LevelManagement))
	assert.Equal(t, RoleSupervisor, AccessLevelRole(LevelDataEntry))
	assert.Equal(t, RoleReadonly, AccessLevelRole(LevelReadOnly))
}

func TestCatalogCodesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range Catalog() {
		assert.False(t, seen[d.Code], "duplicate code %s", d.Code)
		seen[d.Code] = true
		assert.True(t, IsValidPermission(d.Code))
	}
	assert.False(t, IsValidPermission("financial.food_costs.fly"))
}

func TestSuperAdminHoldsFullCatalog(t *testing.T) {
	assert.ElementsMatch(t, AllPermissions(), RolePermissions(RoleSuperAdmin))
}

func TestDefaultMatrixCodesExist(t *testing.T) {
	for _, r := range Roles() {
		for _, code := range RolePermissions(r) {
			assert.True(t, IsValidPermission(code), "role %s references unknown code %s", r, code)
		}
	}
}

func TestDefaultMatrixIsMonotonic(t *testing.T) {
	// Higher roles never hold fewer permissions than readonly.
	base := len(RolePermissions(RoleReadonly))
	for _, r := range []Role{RoleUser, RoleSupervisor, RolePropertyManager, RolePropertyAdmin, RolePropertyOwner} {
		assert.GreaterOrEqual(t, len(RolePermissions(r)), base, "role %s", r)
	}
}

func TestAccessLevelPermissions(t *testing.T) {
	assert.ElementsMatch(t, RolePermissions(RoleSupervisor), AccessLevelPermissions(LevelDataEntry))
	assert.Nil(t, AccessLevelPermissions(AccessLevel("none")))
}
