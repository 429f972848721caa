package permission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// fakeStore is an in-memory Store for evaluator tests. Call counters let
// tests assert on cache behavior.
type fakeStore struct {
	rolePerms  map[string][]string
	userGrants map[uuid.UUID][]string
	access     map[uuid.UUID]map[uuid.UUID]AccessRecord

	roleCalls   int
	grantCalls  int
	accessCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rolePerms:  make(map[string][]string),
		userGrants: make(map[uuid.UUID][]string),
		access:     make(map[uuid.UUID]map[uuid.UUID]AccessRecord),
	}
}

func (s *fakeStore) RolePermissionCodes(_ context.Context, role string) ([]string, error) {
	s.roleCalls++
	return s.rolePerms[role], nil
}

func (s *fakeStore) UserPermissionCodes(_ context.Context, userID uuid.UUID) ([]string, error) {
	s.grantCalls++
	return s.userGrants[userID], nil
}

func (s *fakeStore) PropertyAccess(_ context.Context, userID, propertyID uuid.UUID) (*AccessRecord, error) {
	s.accessCalls++
	rec, ok := s.access[userID][propertyID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *fakeStore) AccessiblePropertyIDs(_ context.Context, userID uuid.UUID, levels []string) ([]uuid.UUID, error) {
	allowed := make(map[string]bool, len(levels))
	for _, l := range levels {
		allowed[l] = true
	}
	var ids []uuid.UUID
	for propID, rec := range s.access[userID] {
		if allowed[string(rec.Level)] {
			ids = append(ids, propID)
		}
	}
	return ids, nil
}

func (s *fakeStore) grantAccess(userID, propertyID uuid.UUID, level AccessLevel, expiresAt *time.Time) {
	if s.access[userID] == nil {
		s.access[userID] = make(map[uuid.UUID]AccessRecord)
	}
	s.access[userID][propertyID] = AccessRecord{
		UserID: userID, PropertyID: propertyID, Level: level, ExpiresAt: expiresAt,
	}
}

func TestHasPermissionFromRole(t *testing.T) {
	store := newFakeStore()
	store.rolePerms["supervisor"] = []string{"financial.food_costs.read"}
	eval := NewEvaluator(store, NewCache())

	sub := Subject{ID: uuid.New(), Role: RoleSupervisor}

	ok, err := eval.HasPermission(context.Background(), sub, "financial.food_costs.read")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = eval.HasPermission(context.Background(), sub, "users.manage")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionFromExplicitGrant(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	store.userGrants[userID] = []string{"reports.export"}
	eval := NewEvaluator(store, NewCache())

	sub := Subject{ID: userID, Role: RoleUser}
	ok, err := eval.HasPermission(context.Background(), sub, "reports.export")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestHasPermissionUnknownCodeFailsClosed(t *testing.T) {
	store := newFakeStore()
	eval := NewEvaluator(store, NewCache())

	// Even super_admin cannot hold a code outside the catalog.
	sub := Subject{ID: uuid.New(), Role: RoleSuperAdmin}
	ok, err := eval.HasPermission(context.Background(), sub, "no.such.permission")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.roleCalls, "unknown codes must not hit the store")
}

func TestSuperAdminHoldsEverything(t *testing.T) {
	store := newFakeStore()
	eval := NewEvaluator(store, NewCache())
	sub := Subject{ID: uuid.New(), Role: RoleSuperAdmin}

	for _, code := range AllPermissions() {
		ok, err := eval.HasPermission(context.Background(), sub, code)
		assert.NoError(t, err)
		assert.True(t, ok, code)
	}
	assert.Zero(t, store.roleCalls)

	perms, err := eval.EffectivePermissions(context.Background(), sub)
	assert.NoError(t, err)
	assert.ElementsMatch(t, AllPermissions(), perms)
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	store := newFakeStore()
	store.rolePerms["user"] = []string{"dashboard.view", "properties.read"}
	eval := NewEvaluator(store, NewCache())
	sub := Subject{ID: uuid.New(), Role: RoleUser}

	any, err := eval.HasAnyPermission(context.Background(), sub, "users.manage", "dashboard.view")
	assert.NoError(t, err)
	assert.True(t, any)

	all, err := eval.HasAllPermissions(context.Background(), sub, "dashboard.view", "properties.read")
	assert.NoError(t, err)
	assert.True(t, all)

	all, err = eval.HasAllPermissions(context.Background(), sub, "dashboard.view", "users.manage")
	assert.NoError(t, err)
	assert.False(t, all)
}

func TestRolePermissionsAreCached(t *testing.T) {
	store := newFakeStore()
	store.rolePerms["user"] = []string{"dashboard.view"}
	eval := NewEvaluator(store, NewCache())
	sub := Subject{ID: uuid.New(), Role: RoleUser}

	for i := 0; i < 3; i++ {
		_, err := eval.HasPermission(context.Background(), sub, "dashboard.view")
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, store.roleCalls)
}

func TestCanAccessPropertyRanks(t *testing.T) {
	store := newFakeStore()
	userID, propID := uuid.New(), uuid.New()
	store.grantAccess(userID, propID, LevelManagement, nil)
	eval := NewEvaluator(store, NewCache())
	sub := Subject{ID: userID, Role: RolePropertyManager}

	ok, err := eval.CanAccessProperty(context.Background(), sub, propID, LevelDataEntry)
	assert.NoError(t, err)
	assert.True(t, ok, "higher stored level satisfies lower requirement")

	ok, err = eval.CanAccessProperty(context.Background(), sub, propID, LevelManagement)
	assert.NoError(t, err)
	assert.True(t, ok, "equal level satisfies")

	ok, err = eval.CanAccessProperty(context.Background(), sub, propID, LevelOwner)
	assert.NoError(t, err)
	assert.False(t, ok, "lower stored level denies")

	ok, err = eval.CanAccessProperty(context.Background(), sub, uuid.New(), LevelReadOnly)
	assert.NoError(t, err)
	assert.False(t, ok, "no row denies")
}

func TestCanAccessPropertySuperAdminBypass(t *testing.T) {
	eval := NewEvaluator(newFakeStore(), NewCache())
	sub := Subject{ID: uuid.New(), Role: RoleSuperAdmin}

	ok, err := eval.CanAccessProperty(context.Background(), sub, uuid.New(), LevelOwner)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestExpiredAccessDenies(t *testing.T) {
	store := newFakeStore()
	userID, propID := uuid.New(), uuid.New()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	store.grantAccess(userID, propID, LevelOwner, &expired)

	eval := NewEvaluator(store, NewCache(), WithClock(func() time.Time { return now }))
	sub := Subject{ID: userID, Role: RolePropertyOwner}

	ok, err := eval.CanAccessProperty(context.Background(), sub, propID, LevelReadOnly)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCachedAccessExpiresBetweenChecks(t *testing.T) {
	store := newFakeStore()
	userID, propID := uuid.New(), uuid.New()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := now.Add(time.Minute)
	store.grantAccess(userID, propID, LevelManagement, &expiresAt)

	clock := now
	eval := NewEvaluator(store, NewCache(), WithClock(func() time.Time { return clock }))
	sub := Subject{ID: userID, Role: RolePropertyManager}

	ok, _ := eval.CanAccessProperty(context.Background(), sub, propID, LevelReadOnly)
	assert.True(t, ok, "grant is live before expiry")

	// Advance past expiry; the cached record must not outlive the grant.
	clock = now.Add(2 * time.Minute)
	ok, _ = eval.CanAccessProperty(context.Background(), sub, propID, LevelReadOnly)
	assert.False(t, ok, "cached record past expiry must deny")
}

func TestRequirePropertyAccessDenialShape(t *testing.T) {
	eval := NewEvaluator(newFakeStore(), NewCache())
	sub := Subject{ID: uuid.New(), Role: RoleUser}
	propID := uuid.New()

	err := eval.RequirePropertyAccess(context.Background(), sub, propID, LevelDataEntry)
	var denied *PropertyAccessDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, propID, denied.PropertyID)
	assert.Equal(t, LevelDataEntry, denied.Level)
}

func TestEffectivePermissionsDeduplicates(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	store.rolePerms["user"] = []string{"dashboard.view", "properties.read"}
	store.userGrants[userID] = []string{"properties.read", "reports.export"}
	eval := NewEvaluator(store, NewCache())

	perms, err := eval.EffectivePermissions(context.Background(), Subject{ID: userID, Role: RoleUser})
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"dashboard.view", "properties.read", "reports.export"}, perms)
}

func TestPropertiesFilter(t *testing.T) {
	store := newFakeStore()
	userID := uuid.New()
	propA, propB := uuid.New(), uuid.New()
	store.grantAccess(userID, propA, LevelManagement, nil)
	store.grantAccess(userID, propB, LevelReadOnly, nil)
	eval := NewEvaluator(store, NewCache())

	f, err := eval.PropertiesFilter(context.Background(), Subject{ID: userID, Role: RoleUser}, LevelManagement)
	assert.NoError(t, err)
	assert.False(t, f.All)
	assert.ElementsMatch(t, []uuid.UUID{propA}, f.PropertyIDs)
	assert.True(t, f.Allows(propA))
	assert.False(t, f.Allows(propB))

	admin, err := eval.PropertiesFilter(context.Background(), Subject{ID: uuid.New(), Role: RoleSuperAdmin}, LevelReadOnly)
	assert.NoError(t, err)
	assert.True(t, admin.All)
	assert.True(t, admin.Allows(propB))

	none, err := eval.PropertiesFilter(context.Background(), Subject{ID: uuid.New(), Role: RoleUser}, LevelReadOnly)
	assert.NoError(t, err)
	assert.False(t, none.All)
	assert.Empty(t, none.PropertyIDs)
	assert.False(t, none.Allows(propA))
}

func TestWarmPrimesCache(t *testing.T) {
	store := newFakeStore()
	userID, propID := uuid.New(), uuid.New()
	store.rolePerms["user"] = []string{"dashboard.view"}
	store.grantAccess(userID, propID, LevelReadOnly, nil)

	cache := NewCache()
	eval := NewEvaluator(store, cache)
	assert.NoError(t, eval.Warm(context.Background(), []uuid.UUID{userID}, []uuid.UUID{propID}))

	roleCallsAfterWarm := store.roleCalls
	_, err := eval.HasPermission(context.Background(), Subject{ID: userID, Role: RoleUser}, "dashboard.view")
	assert.NoError(t, err)
	assert.Equal(t, roleCallsAfterWarm, store.roleCalls, "warm lookups must come from cache")
}
