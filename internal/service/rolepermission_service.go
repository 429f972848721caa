package service

import (
	"context"
	"fmt"

	"costcompass/internal/events"
	"costcompass/internal/model"
	"costcompass/internal/permission"
	"costcompass/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type PermissionResponse struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

type RoleResponse struct {
	Role        string               `json:"role"`
	Rank        int                  `json:"rank"`
	Permissions []PermissionResponse `json:"permissions"`
}

type AssignResult struct {
	Role            string `json:"role"`
	PermissionCode  string `json:"permission_code"`
	AlreadyAssigned bool   `json:"already_assigned"`
}

type BulkResult struct {
	Role    string `json:"role"`
	Changed int    `json:"changed"`
	Skipped int    `json:"skipped"`
}

type BulkPermissionsRequest struct {
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

// --- Interface ---

// RolePermissionService administers the persisted role → permission matrix.
// Every mutation invalidates the affected role's cache entry and publishes
// a role_updated event before returning; both are best-effort side channels
// and never fail the mutation.
type RolePermissionService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, role string) (*RoleResponse, error)
	ListCatalog(ctx context.Context) ([]PermissionResponse, error)
	AssignPermission(ctx context.Context, actorID *uuid.UUID, role, permissionID string) (*AssignResult, error)
	RemovePermission(ctx context.Context, actorID *uuid.UUID, role, permissionID string) error
	BulkAssign(ctx context.Context, actorID *uuid.UUID, role string, permissionIDs []string) (*BulkResult, error)
	BulkRemove(ctx context.Context, actorID *uuid.UUID, role string, permissionIDs []string) (*BulkResult, error)
	CopyRolePermissions(ctx context.Context, actorID *uuid.UUID, fromRole, toRole string) (*BulkResult, error)
	SeedDefaults(ctx context.Context) error
}

type rolePermissionService struct {
	repo  repository.PermissionRepository
	tm    repository.TransactionManager
	cache *permission.Cache
	bus   events.Publisher
	audit AuditService
}

func NewRolePermissionService(
	repo repository.PermissionRepository,
	tm repository.TransactionManager,
	cache *permission.Cache,
	bus events.Publisher,
	audit AuditService,
) RolePermissionService {
	return &rolePermissionService{repo: repo, tm: tm, cache: cache, bus: bus, audit: audit}
}

// --- Implementation ---

func (s *rolePermissionService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	res := make([]RoleResponse, 0, len(permission.Roles()))
	for _, r := range permission.Roles() {
		resp, err := s.GetRole(ctx, string(r))
		if err != nil {
			return nil, err
		}
		res = append(res, *resp)
	}
	return res, nil
}

func (s *rolePermissionService) GetRole(ctx context.Context, role string) (*RoleResponse, error) {
	if !permission.ValidRole(permission.Role(role)) {
		return nil, fmt.Errorf("unknown role '%s'", role)
	}

	perms, err := s.repo.RolePermissions(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions for role '%s': %w", role, err)
	}

	resp := RoleResponse{
		Role:        role,
		Rank:        permission.AccessHierarchy(permission.Role(role)),
		Permissions: toPermissionResponses(perms),
	}
	return &resp, nil
}

func (s *rolePermissionService) ListCatalog(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permission catalog: %w", err)
	}
	return toPermissionResponses(perms), nil
}

func (s *rolePermissionService) AssignPermission(ctx context.Context, actorID *uuid.UUID, role, permissionID string) (*AssignResult, error) {
	if !permission.ValidRole(permission.Role(role)) {
		return nil, fmt.Errorf("unknown role '%s'", role)
	}
	permID, err := uuid.Parse(permissionID)
	if err != nil {
		return nil, fmt.Errorf("invalid permission id: %w", err)
	}

	perm, err := s.repo.FindPermissionByID(ctx, permID)
	if err != nil {
		return nil, fmt.Errorf("permission not found: %w", err)
	}

	result := &AssignResult{Role: role, PermissionCode: perm.Code}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		assigned, err := s.repo.IsAssigned(txCtx, role, permID)
		if err != nil {
			return err
		}
		if assigned {
			result.AlreadyAssigned = true
			return nil
		}
		return s.repo.Assign(txCtx, role, permID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign permission: %w", err)
	}

	if !result.AlreadyAssigned {
		s.audit.Record(ctx, actorID, model.ActionAssignPermission, "role", role, result)
		s.afterMatrixChange(role, perm.Code, "granted")
	}
	return result, nil
}

func (s *rolePermissionService) RemovePermission(ctx context.Context, actorID *uuid.UUID, role, permissionID string) error {
	if !permission.ValidRole(permission.Role(role)) {
		return fmt.Errorf("unknown role '%s'", role)
	}
	permID, err := uuid.Parse(permissionID)
	if err != nil {
		return fmt.Errorf("invalid permission id: %w", err)
	}

	perm, err := s.repo.FindPermissionByID(ctx, permID)
	if err != nil {
		return fmt.Errorf("permission not found: %w", err)
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.Remove(txCtx, role, permID)
	}); err != nil {
		return fmt.Errorf("failed to remove permission: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionRemovePermission, "role", role, map[string]string{"permission_code": perm.Code})
	s.afterMatrixChange(role, perm.Code, "revoked")
	return nil
}

func (s *rolePermissionService) BulkAssign(ctx context.Context, actorID *uuid.UUID, role string, permissionIDs []string) (*BulkResult, error) {
	return s.bulk(ctx, actorID, role, permissionIDs, true)
}

func (s *rolePermissionService) BulkRemove(ctx context.Context, actorID *uuid.UUID, role string, permissionIDs []string) (*BulkResult, error) {
	return s.bulk(ctx, actorID, role, permissionIDs, false)
}

func (s *rolePermissionService) bulk(ctx context.Context, actorID *uuid.UUID, role string, permissionIDs []string, assign bool) (*BulkResult, error) {
	if !permission.ValidRole(permission.Role(role)) {
		return nil, fmt.Errorf("unknown role '%s'", role)
	}

	permIDs := make([]uuid.UUID, 0, len(permissionIDs))
	for _, pid := range permissionIDs {
		parsed, err := uuid.Parse(pid)
		if err != nil {
			return nil, fmt.Errorf("invalid permission id '%s': %w", pid, err)
		}
		permIDs = append(permIDs, parsed)
	}

	result := &BulkResult{Role: role}
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		for _, permID := range permIDs {
			assigned, err := s.repo.IsAssigned(txCtx, role, permID)
			if err != nil {
				return err
			}
			switch {
			case assign && assigned, !assign && !assigned:
				result.Skipped++
			case assign:
				if err := s.repo.Assign(txCtx, role, permID); err != nil {
					return err
				}
				result.Changed++
			default:
				if err := s.repo.Remove(txCtx, role, permID); err != nil {
					return err
				}
				result.Changed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bulk permission update failed: %w", err)
	}

	if result.Changed > 0 {
		action := model.ActionAssignPermission
		eventAction := "granted"
		if !assign {
			action = model.ActionRemovePermission
			eventAction = "revoked"
		}
		s.audit.Record(ctx, actorID, action, "role", role, result)
		s.afterMatrixChange(role, "", eventAction)
	}
	return result, nil
}

// CopyRolePermissions adds every permission of fromRole to toRole. Existing
// assignments on toRole are kept.
func (s *rolePermissionService) CopyRolePermissions(ctx context.Context, actorID *uuid.UUID, fromRole, toRole string) (*BulkResult, error) {
	if !permission.ValidRole(permission.Role(fromRole)) {
		return nil, fmt.Errorf("unknown role '%s'", fromRole)
	}
	if !permission.ValidRole(permission.Role(toRole)) {
		return nil, fmt.Errorf("unknown role '%s'", toRole)
	}
	if fromRole == toRole {
		return nil, fmt.Errorf("source and target role are the same")
	}

	perms, err := s.repo.RolePermissions(ctx, fromRole)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions for role '%s': %w", fromRole, err)
	}

	result := &BulkResult{Role: toRole}
	err = s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		for _, perm := range perms {
			assigned, err := s.repo.IsAssigned(txCtx, toRole, perm.ID)
			if err != nil {
				return err
			}
			if assigned {
				result.Skipped++
				continue
			}
			if err := s.repo.Assign(txCtx, toRole, perm.ID); err != nil {
				return err
			}
			result.Changed++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to copy permissions: %w", err)
	}

	if result.Changed > 0 {
		s.audit.Record(ctx, actorID, model.ActionCopyPermissions, "role", toRole, map[string]any{"from": fromRole, "copied": result.Changed})
		s.afterMatrixChange(toRole, "", "granted")
	}
	return result, nil
}

// SeedDefaults upserts the permission catalog and populates the matrix for
// any role with no rows yet. Roles that already have rows are left alone so
// restarts do not clobber admin overrides.
func (s *rolePermissionService) SeedDefaults(ctx context.Context) error {
	permByCode := make(map[string]*model.Permission)
	for _, def := range permission.Catalog() {
		p := &model.Permission{
			Code:     def.Code,
			Name:     def.Name,
			Category: def.Category,
			Action:   def.Action,
		}
		if err := s.repo.FindOrCreatePermission(ctx, p); err != nil {
			return fmt.Errorf("failed to seed permission '%s': %w", def.Code, err)
		}
		permByCode[def.Code] = p
	}

	for _, role := range permission.Roles() {
		existing, err := s.repo.RolePermissionCodes(ctx, string(role))
		if err != nil {
			return fmt.Errorf("failed to check matrix for role '%s': %w", role, err)
		}
		if len(existing) > 0 {
			continue
		}

		for _, code := range permission.RolePermissions(role) {
			p, ok := permByCode[code]
			if !ok {
				continue
			}
			if err := s.repo.Assign(ctx, string(role), p.ID); err != nil {
				return fmt.Errorf("failed to seed role '%s': %w", role, err)
			}
		}
	}
	return nil
}

// afterMatrixChange runs the post-mutation bookkeeping: invalidate the
// role's cached permission set, then notify connected clients with that
// role.
func (s *rolePermissionService) afterMatrixChange(role, permissionCode, action string) {
	s.cache.InvalidateRole(permission.Role(role))
	s.bus.Publish(events.Event{
		Type:            events.TypeRoleUpdated,
		Message:         fmt.Sprintf("permissions for role %s changed", role),
		AffectedRole:    role,
		PermissionName:  permissionCode,
		Action:          action,
		RequiresRefresh: true,
	})
}

// --- Helpers ---

func toPermissionResponses(perms []model.Permission) []PermissionResponse {
	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, PermissionResponse{
			ID:       p.ID.String(),
			Code:     p.Code,
			Name:     p.Name,
			Category: p.Category,
			Action:   p.Action,
		})
	}
	return res
}
