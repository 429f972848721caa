package permission

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCacheRoleRoundTrip(t *testing.T) {
	c := NewCache()

	_, ok := c.RolePermissions(RoleUser)
	assert.False(t, ok)

	c.SetRolePermissions(RoleUser, []string{"dashboard.view"})
	codes, ok := c.RolePermissions(RoleUser)
	assert.True(t, ok)
	assert.Equal(t, []string{"dashboard.view"}, codes)

	stats := c.GetStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.RoleEntries)
}

func TestCacheInvalidateRole(t *testing.T) {
	c := NewCache()
	c.SetRolePermissions(RoleUser, []string{"dashboard.view"})
	c.SetRolePermissions(RoleSupervisor, []string{"financial.food_costs.read"})

	c.InvalidateRole(RoleUser)

	_, ok := c.RolePermissions(RoleUser)
	assert.False(t, ok)
	_, ok = c.RolePermissions(RoleSupervisor)
	assert.True(t, ok, "other roles must survive")
}

func TestCacheInvalidateUserDropsGrantsAndAccess(t *testing.T) {
	c := NewCache()
	userID, otherID, propID := uuid.New(), uuid.New(), uuid.New()

	c.SetUserGrants(userID, []string{"reports.export"})
	c.SetPropertyAccess(AccessRecord{UserID: userID, PropertyID: propID, Level: LevelOwner})
	c.SetPropertyAccess(AccessRecord{UserID: otherID, PropertyID: propID, Level: LevelReadOnly})

	c.InvalidateUser(userID)

	_, ok := c.UserGrants(userID)
	assert.False(t, ok)
	_, ok = c.PropertyAccess(userID, propID)
	assert.False(t, ok)
	_, ok = c.PropertyAccess(otherID, propID)
	assert.True(t, ok, "other users' access must survive")
}

func TestCacheInvalidatePropertySpansUsers(t *testing.T) {
	c := NewCache()
	userA, userB := uuid.New(), uuid.New()
	propX, propY := uuid.New(), uuid.New()

	c.SetPropertyAccess(AccessRecord{UserID: userA, PropertyID: propX, Level: LevelOwner})
	c.SetPropertyAccess(AccessRecord{UserID: userA, PropertyID: propY, Level: LevelReadOnly})
	c.SetPropertyAccess(AccessRecord{UserID: userB, PropertyID: propX, Level: LevelManagement})

	c.InvalidateProperty(propX)

	_, ok := c.PropertyAccess(userA, propX)
	assert.False(t, ok)
	_, ok = c.PropertyAccess(userB, propX)
	assert.False(t, ok)
	_, ok = c.PropertyAccess(userA, propY)
	assert.True(t, ok, "other properties must survive")
}

func TestCacheClearKeepsCounters(t *testing.T) {
	c := NewCache()
	c.SetRolePermissions(RoleUser, []string{"dashboard.view"})
	c.RolePermissions(RoleUser)
	c.RolePermissions(RoleSupervisor)

	c.Clear()

	stats := c.GetStats()
	assert.Zero(t, stats.RoleEntries)
	assert.Zero(t, stats.UserEntries)
	assert.Zero(t, stats.AccessEntries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCacheDropPropertyAccess(t *testing.T) {
	c := NewCache()
	userID, propA, propB := uuid.New(), uuid.New(), uuid.New()
	c.SetPropertyAccess(AccessRecord{UserID: userID, PropertyID: propA, Level: LevelOwner})
	c.SetPropertyAccess(AccessRecord{UserID: userID, PropertyID: propB, Level: LevelReadOnly})

	c.DropPropertyAccess(userID, propA)

	_, ok := c.PropertyAccess(userID, propA)
	assert.False(t, ok)
	_, ok = c.PropertyAccess(userID, propB)
	assert.True(t, ok)
}
