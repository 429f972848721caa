package repository

import (
	"context"

	"costcompass/internal/permission"

	"github.com/google/uuid"
)

// permissionStore adapts the repositories to the evaluator's read surface.
type permissionStore struct {
	perms PermissionRepository
	users UserRepository
	props PropertyRepository
}

// NewPermissionStore wires the repositories into a permission.Store for the
// evaluator.
func NewPermissionStore(perms PermissionRepository, users UserRepository, props PropertyRepository) permission.Store {
	return &permissionStore{perms: perms, users: users, props: props}
}

func (s *permissionStore) RolePermissionCodes(ctx context.Context, role string) ([]string, error) {
	return s.perms.RolePermissionCodes(ctx, role)
}

func (s *permissionStore) UserPermissionCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return s.users.PermissionCodes(ctx, userID)
}

func (s *permissionStore) PropertyAccess(ctx context.Context, userID, propertyID uuid.UUID) (*permission.AccessRecord, error) {
	row, err := s.props.FindAccess(ctx, userID, propertyID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &permission.AccessRecord{
		UserID:     row.UserID,
		PropertyID: row.PropertyID,
		Level:      permission.AccessLevel(row.AccessLevel),
		ExpiresAt:  row.ExpiresAt,
	}, nil
}

func (s *permissionStore) AccessiblePropertyIDs(ctx context.Context, userID uuid.UUID, levels []string) ([]uuid.UUID, error) {
	return s.props.AccessiblePropertyIDs(ctx, userID, levels)
}
