package service

import (
	"context"
	"fmt"
	"testing"

	"costcompass/internal/events"
	"costcompass/internal/model"
	"costcompass/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePermRepo is a map-backed PermissionRepository.
type fakePermRepo struct {
	perms    map[uuid.UUID]*model.Permission
	assigned map[string]map[uuid.UUID]bool
}

func newFakePermRepo() *fakePermRepo {
	return &fakePermRepo{
		perms:    make(map[uuid.UUID]*model.Permission),
		assigned: make(map[string]map[uuid.UUID]bool),
	}
}

func (r *fakePermRepo) add(code string) *model.Permission {
	p := &model.Permission{ID: uuid.New(), Code: code, Name: code, Category: "test", Action: "read"}
	r.perms[p.ID] = p
	return p
}

func (r *fakePermRepo) ListPermissions(context.Context) ([]model.Permission, error) {
	var out []model.Permission
	for _, p := range r.perms {
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakePermRepo) FindPermissionByID(_ context.Context, id uuid.UUID) (*model.Permission, error) {
	p, ok := r.perms[id]
	if !ok {
		return nil, fmt.Errorf("record not found")
	}
	return p, nil
}

func (r *fakePermRepo) FindPermissionByCode(_ context.Context, code string) (*model.Permission, error) {
	for _, p := range r.perms {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, fmt.Errorf("record not found")
}

func (r *fakePermRepo) FindOrCreatePermission(_ context.Context, perm *model.Permission) error {
	for _, p := range r.perms {
		if p.Code == perm.Code {
			*perm = *p
			return nil
		}
	}
	perm.ID = uuid.New()
	cp := *perm
	r.perms[perm.ID] = &cp
	return nil
}

func (r *fakePermRepo) RolePermissions(_ context.Context, role string) ([]model.Permission, error) {
	var out []model.Permission
	for id := range r.assigned[role] {
		out = append(out, *r.perms[id])
	}
	return out, nil
}

func (r *fakePermRepo) RolePermissionCodes(_ context.Context, role string) ([]string, error) {
	var codes []string
	for id := range r.assigned[role] {
		codes = append(codes, r.perms[id].Code)
	}
	return codes, nil
}

func (r *fakePermRepo) IsAssigned(_ context.Context, role string, permissionID uuid.UUID) (bool, error) {
	return r.assigned[role][permissionID], nil
}

func (r *fakePermRepo) Assign(_ context.Context, role string, permissionID uuid.UUID) error {
	if r.assigned[role] == nil {
		r.assigned[role] = make(map[uuid.UUID]bool)
	}
	r.assigned[role][permissionID] = true
	return nil
}

func (r *fakePermRepo) Remove(_ context.Context, role string, permissionID uuid.UUID) error {
	delete(r.assigned[role], permissionID)
	return nil
}

func (r *fakePermRepo) RemoveAll(_ context.Context, role string) error {
	delete(r.assigned, role)
	return nil
}

// stubTM runs the callback without a real transaction.
type stubTM struct{}

func (stubTM) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// memoryBus records published events.
type memoryBus struct {
	events []events.Event
}

func (b *memoryBus) Publish(ev events.Event) { b.events = append(b.events, ev) }

// nopAudit discards audit records.
type nopAudit struct{}

func (nopAudit) Record(context.Context, *uuid.UUID, string, string, string, any) {}
func (nopAudit) GetAuditLogs(context.Context, int, int) ([]AuditLogResponse, int64, error) {
	return nil, 0, nil
}

func newMatrixService(repo *fakePermRepo) (RolePermissionService, *permission.Cache, *memoryBus) {
	cache := permission.NewCache()
	bus := &memoryBus{}
	svc := NewRolePermissionService(repo, stubTM{}, cache, bus, nopAudit{})
	return svc, cache, bus
}

func TestAssignPermissionIsIdempotent(t *testing.T) {
	repo := newFakePermRepo()
	perm := repo.add("dashboard.view")
	svc, _, bus := newMatrixService(repo)
	actor := uuid.New()

	res, err := svc.AssignPermission(context.Background(), &actor, "supervisor", perm.ID.String())
	require.NoError(t, err)
	assert.False(t, res.AlreadyAssigned)
	assert.Equal(t, "dashboard.view", res.PermissionCode)
	assert.Len(t, bus.events, 1)

	res, err = svc.AssignPermission(context.Background(), &actor, "supervisor", perm.ID.String())
	require.NoError(t, err)
	assert.True(t, res.AlreadyAssigned)
	assert.Len(t, bus.events, 1, "no event when nothing changed")
}

func TestAssignPermissionRejectsUnknownRole(t *testing.T) {
	repo := newFakePermRepo()
	perm := repo.add("dashboard.view")
	svc, _, _ := newMatrixService(repo)

	_, err := svc.AssignPermission(context.Background(), nil, "manager", perm.ID.String())
	assert.Error(t, err)

	_, err = svc.AssignPermission(context.Background(), nil, "supervisor", "not-a-uuid")
	assert.Error(t, err)
}

func TestAssignPermissionInvalidatesRoleCache(t *testing.T) {
	repo := newFakePermRepo()
	perm := repo.add("reports.export")
	svc, cache, bus := newMatrixService(repo)

	cache.SetRolePermissions(permission.RoleSupervisor, []string{"dashboard.view"})

	_, err := svc.AssignPermission(context.Background(), nil, "supervisor", perm.ID.String())
	require.NoError(t, err)

	_, ok := cache.RolePermissions(permission.RoleSupervisor)
	assert.False(t, ok, "stale role entry must be dropped")

	require.Len(t, bus.events, 1)
	ev := bus.events[0]
	assert.Equal(t, events.TypeRoleUpdated, ev.Type)
	assert.Equal(t, "supervisor", ev.AffectedRole)
	assert.Equal(t, "granted", ev.Action)
	assert.True(t, ev.RequiresRefresh)
}

func TestRemovePermissionPublishesRevoked(t *testing.T) {
	repo := newFakePermRepo()
	perm := repo.add("users.manage")
	require.NoError(t, repo.Assign(context.Background(), "property_admin", perm.ID))
	svc, _, bus := newMatrixService(repo)

	err := svc.RemovePermission(context.Background(), nil, "property_admin", perm.ID.String())
	require.NoError(t, err)

	assigned, _ := repo.IsAssigned(context.Background(), "property_admin", perm.ID)
	assert.False(t, assigned)
	require.Len(t, bus.events, 1)
	assert.Equal(t, "revoked", bus.events[0].Action)
}

func TestBulkAssignCountsChangedAndSkipped(t *testing.T) {
	repo := newFakePermRepo()
	a, b, c := repo.add("properties.read"), repo.add("dashboard.view"), repo.add("reports.export")
	require.NoError(t, repo.Assign(context.Background(), "user", a.ID))
	svc, _, bus := newMatrixService(repo)

	res, err := svc.BulkAssign(context.Background(), nil, "user",
		[]string{a.ID.String(), b.ID.String(), c.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Changed)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, bus.events, 1, "bulk change publishes once")
}

func TestBulkRemoveSkipsUnassigned(t *testing.T) {
	repo := newFakePermRepo()
	a, b := repo.add("properties.read"), repo.add("dashboard.view")
	require.NoError(t, repo.Assign(context.Background(), "user", a.ID))
	svc, _, bus := newMatrixService(repo)

	res, err := svc.BulkRemove(context.Background(), nil, "user",
		[]string{a.ID.String(), b.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, bus.events, 1)

	res, err = svc.BulkRemove(context.Background(), nil, "user", []string{b.ID.String()})
	require.NoError(t, err)
	assert.Zero(t, res.Changed)
	assert.Len(t, bus.events, 1, "no-op bulk publishes nothing")
}

func TestCopyRolePermissionsSkipsExisting(t *testing.T) {
	repo := newFakePermRepo()
	a, b := repo.add("properties.read"), repo.add("dashboard.view")
	require.NoError(t, repo.Assign(context.Background(), "supervisor", a.ID))
	require.NoError(t, repo.Assign(context.Background(), "supervisor", b.ID))
	require.NoError(t, repo.Assign(context.Background(), "user", a.ID))
	svc, _, _ := newMatrixService(repo)

	res, err := svc.CopyRolePermissions(context.Background(), nil, "supervisor", "user")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.Skipped)

	codes, _ := repo.RolePermissionCodes(context.Background(), "user")
	assert.ElementsMatch(t, []string{"properties.read", "dashboard.view"}, codes)
}

func TestCopyRolePermissionsRejectsSameRole(t *testing.T) {
	svc, _, _ := newMatrixService(newFakePermRepo())
	_, err := svc.CopyRolePermissions(context.Background(), nil, "user", "user")
	assert.Error(t, err)
}

func TestSeedDefaultsPopulatesEmptyRolesOnly(t *testing.T) {
	repo := newFakePermRepo()
	// A pre-seeded role simulates an admin override that restarts must keep.
	custom := repo.add("dashboard.view")
	require.NoError(t, repo.Assign(context.Background(), "supervisor", custom.ID))

	svc, _, _ := newMatrixService(repo)
	require.NoError(t, svc.SeedDefaults(context.Background()))

	assert.Len(t, repo.perms, len(permission.Catalog()),
		"catalog is upserted without duplicating existing codes")

	supCodes, _ := repo.RolePermissionCodes(context.Background(), "supervisor")
	assert.Equal(t, []string{"dashboard.view"}, supCodes, "non-empty roles are left alone")

	userCodes, _ := repo.RolePermissionCodes(context.Background(), "user")
	assert.ElementsMatch(t, permission.RolePermissions(permission.RoleUser), userCodes)

	adminCodes, _ := repo.RolePermissionCodes(context.Background(), "super_admin")
	assert.ElementsMatch(t, permission.AllPermissions(), adminCodes)
}

func TestSeedDefaultsIsIdempotent(t *testing.T) {
	repo := newFakePermRepo()
	svc, _, _ := newMatrixService(repo)

	require.NoError(t, svc.SeedDefaults(context.Background()))
	require.NoError(t, svc.SeedDefaults(context.Background()))

	assert.Len(t, repo.perms, len(permission.Catalog()))
	userCodes, _ := repo.RolePermissionCodes(context.Background(), "user")
	assert.ElementsMatch(t, permission.RolePermissions(permission.RoleUser), userCodes)
}
