package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"costcompass/internal/events"
	"costcompass/internal/model"
	"costcompass/internal/permission"
	"costcompass/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Role     string `json:"role"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// UserService manages user accounts and their explicit permission grants.
// Accounts are deactivated, never deleted, so the audit trail keeps its
// actors.
type UserService interface {
	CreateUser(ctx context.Context, actor permission.Subject, req CreateUserRequest) (*UserResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actor permission.Subject, id string, req UpdateUserRequest) (*UserResponse, error)
	DeactivateUser(ctx context.Context, actor permission.Subject, id string) error
	GrantPermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) error
	RevokePermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) error
}

type userService struct {
	repo   repository.UserRepository
	perms  repository.PermissionRepository
	tokens repository.TokenRepository
	tm     repository.TransactionManager
	cache  *permission.Cache
	bus    events.Publisher
	audit  AuditService
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	perms repository.PermissionRepository,
	tokens repository.TokenRepository,
	tm repository.TransactionManager,
	cache *permission.Cache,
	bus events.Publisher,
	audit AuditService,
) UserService {
	return &userService{repo: repo, perms: perms, tokens: tokens, tm: tm, cache: cache, bus: bus, audit: audit}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	grants := make([]string, 0, len(user.Permissions))
	for _, p := range user.Permissions {
		grants = append(grants, p.Code)
	}
	return &UserResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		Role:        user.Role,
		IsActive:    user.IsActive,
		Permissions: grants,
		CreatedAt:   user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *userService) CreateUser(ctx context.Context, actor permission.Subject, req CreateUserRequest) (*UserResponse, error) {
	if !permission.ValidRole(permission.Role(req.Role)) {
		return nil, fmt.Errorf("unknown role '%s'", req.Role)
	}
	// An actor cannot mint an account above their own rank.
	if permission.HasHigherAccess(permission.Role(req.Role), actor.Role) {
		return nil, errors.New("cannot create a user with a higher role than your own")
	}

	// Basic Email format validation fallback
	emailRegex := regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,4}$`)
	if !emailRegex.MatchString(req.Email) {
		return nil, errors.New("invalid email format")
	}

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, errors.New("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.New("email already exists")
	}

	// Hash password automatically
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     req.Role,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.ID, model.ActionCreateUser, "user", user.ID.String(),
		map[string]string{"username": user.Username, "role": user.Role})
	return mapToResponse(user), nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	var responses []UserResponse
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor permission.Subject, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.New("user not found")
	}

	roleChanged := false
	if req.Role != "" && req.Role != user.Role {
		if !permission.ValidRole(permission.Role(req.Role)) {
			return nil, fmt.Errorf("unknown role '%s'", req.Role)
		}
		if permission.HasHigherAccess(permission.Role(req.Role), actor.Role) {
			return nil, errors.New("cannot assign a higher role than your own")
		}
		if permission.HasHigherAccess(permission.Role(user.Role), actor.Role) {
			return nil, errors.New("cannot modify a user with a higher role than your own")
		}
		user.Role = req.Role
		roleChanged = true
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, errors.New("username already exists")
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, errors.New("email already exists")
		}
		user.Email = req.Email
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, &actor.ID, model.ActionUpdateUser, "user", id, req)
	if roleChanged {
		// The cached grants keyed by user are role-independent, but the
		// connected clients need to re-fetch their session.
		s.afterUserChange(userID, "role_changed")
	}
	return mapToResponse(user), nil
}

// DeactivateUser disables the account and revokes its refresh tokens so open
// sessions die at the next token refresh.
func (s *userService) DeactivateUser(ctx context.Context, actor permission.Subject, id string) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return errors.New("user not found")
	}
	if permission.HasHigherAccess(permission.Role(user.Role), actor.Role) {
		return errors.New("cannot deactivate a user with a higher role than your own")
	}
	if user.ID == actor.ID {
		return errors.New("cannot deactivate your own account")
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.SetActive(txCtx, userID, false); err != nil {
			return err
		}
		return s.tokens.DeleteForUser(txCtx, userID)
	}); err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.ActionDeactivateUser, "user", id, nil)
	s.afterUserChange(userID, "deactivated")
	return nil
}

func (s *userService) GrantPermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) error {
	uID, permID, perm, err := s.resolveGrant(ctx, userID, permissionID)
	if err != nil {
		return err
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.GrantPermission(txCtx, uID, permID)
	}); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionGrantUserPerm, "user", userID,
		map[string]string{"permission_code": perm.Code})
	s.afterUserChange(uID, "granted")
	return nil
}

func (s *userService) RevokePermission(ctx context.Context, actorID *uuid.UUID, userID, permissionID string) error {
	uID, permID, perm, err := s.resolveGrant(ctx, userID, permissionID)
	if err != nil {
		return err
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.RevokePermission(txCtx, uID, permID)
	}); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionRevokeUserPerm, "user", userID,
		map[string]string{"permission_code": perm.Code})
	s.afterUserChange(uID, "revoked")
	return nil
}

func (s *userService) resolveGrant(ctx context.Context, userID, permissionID string) (uuid.UUID, uuid.UUID, *model.Permission, error) {
	uID, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, fmt.Errorf("invalid user id: %w", err)
	}
	permID, err := uuid.Parse(permissionID)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, fmt.Errorf("invalid permission id: %w", err)
	}
	if _, err := s.repo.GetByID(ctx, uID); err != nil {
		return uuid.Nil, uuid.Nil, nil, errors.New("user not found")
	}
	perm, err := s.perms.FindPermissionByID(ctx, permID)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, errors.New("permission not found")
	}
	return uID, permID, perm, nil
}

// afterUserChange drops the user's cached grants and pushes a refresh signal
// to that user's connections.
func (s *userService) afterUserChange(userID uuid.UUID, action string) {
	s.cache.InvalidateUser(userID)
	s.bus.Publish(events.Event{
		Type:            events.TypeUserUpdated,
		Message:         "your account permissions changed",
		UserID:          userID.String(),
		Action:          action,
		RequiresRefresh: true,
	})
}
