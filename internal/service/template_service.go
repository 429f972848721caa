package service

import (
	"context"
	"fmt"
	"time"

	"costcompass/internal/events"
	"costcompass/internal/model"
	"costcompass/internal/permission"
	"costcompass/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateTemplateRequest struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids" binding:"required"`
}

type TemplateResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Permissions []PermissionResponse `json:"permissions"`
}

type CreateDelegationRequest struct {
	ToUserID    string    `json:"to_user_id" binding:"required"`
	PropertyID  string    `json:"property_id" binding:"required"`
	AccessLevel string    `json:"access_level" binding:"required"`
	ExpiresAt   time.Time `json:"expires_at" binding:"required"`
}

type DelegationResponse struct {
	ID          string     `json:"id"`
	FromUserID  string     `json:"from_user_id"`
	ToUserID    string     `json:"to_user_id"`
	PropertyID  string     `json:"property_id"`
	AccessLevel string     `json:"access_level"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

type CreatePolicyRequest struct {
	Name           string `json:"name" binding:"required"`
	Role           string `json:"role" binding:"required"`
	MaxAccessLevel string `json:"max_access_level" binding:"required"`
}

// ComplianceViolation is one access row exceeding its role's policy cap.
type ComplianceViolation struct {
	PolicyName  string `json:"policy_name"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	PropertyID  string `json:"property_id"`
	AccessLevel string `json:"access_level"`
	MaxAllowed  string `json:"max_allowed"`
}

// --- Interface ---

// TemplateService covers permission templates, access delegation and
// compliance scanning.
type TemplateService interface {
	CreateTemplate(ctx context.Context, actorID *uuid.UUID, req CreateTemplateRequest) (*TemplateResponse, error)
	ListTemplates(ctx context.Context) ([]TemplateResponse, error)
	DeleteTemplate(ctx context.Context, id string) error
	ApplyTemplateToRole(ctx context.Context, actorID *uuid.UUID, templateID, role string) (*BulkResult, error)

	CreateDelegation(ctx context.Context, delegator permission.Subject, req CreateDelegationRequest) (*DelegationResponse, error)
	RevokeDelegation(ctx context.Context, actor permission.Subject, id string) error
	ListDelegations(ctx context.Context, userID *uuid.UUID) ([]DelegationResponse, error)

	CreatePolicy(ctx context.Context, req CreatePolicyRequest) (*model.CompliancePolicy, error)
	ListPolicies(ctx context.Context) ([]model.CompliancePolicy, error)
	ComplianceScan(ctx context.Context) ([]ComplianceViolation, error)
}

type templateService struct {
	repo     repository.TemplateRepository
	rolePerm RolePermissionService
	props    PropertyService
	eval     *permission.Evaluator
	tm       repository.TransactionManager
	bus      events.Publisher
	audit    AuditService
	now      func() time.Time
}

func NewTemplateService(
	repo repository.TemplateRepository,
	rolePerm RolePermissionService,
	props PropertyService,
	eval *permission.Evaluator,
	tm repository.TransactionManager,
	bus events.Publisher,
	audit AuditService,
) TemplateService {
	return &templateService{
		repo:     repo,
		rolePerm: rolePerm,
		props:    props,
		eval:     eval,
		tm:       tm,
		bus:      bus,
		audit:    audit,
		now:      time.Now,
	}
}

// --- Templates ---

func (s *templateService) CreateTemplate(ctx context.Context, actorID *uuid.UUID, req CreateTemplateRequest) (*TemplateResponse, error) {
	permIDs := make([]uuid.UUID, 0, len(req.PermissionIDs))
	for _, pid := range req.PermissionIDs {
		parsed, err := uuid.Parse(pid)
		if err != nil {
			return nil, fmt.Errorf("invalid permission id '%s': %w", pid, err)
		}
		permIDs = append(permIDs, parsed)
	}

	tpl := model.PermissionTemplate{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   actorID,
	}
	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateTemplate(txCtx, &tpl); err != nil {
			return err
		}
		return s.repo.SetTemplatePermissions(txCtx, tpl.ID, permIDs)
	}); err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	created, err := s.repo.FindTemplateByID(ctx, tpl.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload template: %w", err)
	}
	resp := toTemplateResponse(*created)
	return &resp, nil
}

func (s *templateService) ListTemplates(ctx context.Context) ([]TemplateResponse, error) {
	tpls, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}
	res := make([]TemplateResponse, 0, len(tpls))
	for _, t := range tpls {
		res = append(res, toTemplateResponse(t))
	}
	return res, nil
}

func (s *templateService) DeleteTemplate(ctx context.Context, id string) error {
	tplID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid template id: %w", err)
	}
	return s.repo.DeleteTemplate(ctx, tplID)
}

// ApplyTemplateToRole assigns every permission in the template to the role,
// reusing the idempotent matrix mutation path so caching and notifications
// behave exactly as individual assigns would.
func (s *templateService) ApplyTemplateToRole(ctx context.Context, actorID *uuid.UUID, templateID, role string) (*BulkResult, error) {
	tplID, err := uuid.Parse(templateID)
	if err != nil {
		return nil, fmt.Errorf("invalid template id: %w", err)
	}
	tpl, err := s.repo.FindTemplateByID(ctx, tplID)
	if err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}

	permIDs := make([]string, 0, len(tpl.Permissions))
	for _, p := range tpl.Permissions {
		permIDs = append(permIDs, p.ID.String())
	}

	result, err := s.rolePerm.BulkAssign(ctx, actorID, role, permIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to apply template: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionApplyTemplate, "role", role,
		map[string]any{"template": tpl.Name, "applied": result.Changed})
	return result, nil
}

// --- Delegations ---

// CreateDelegation lets a user hand part of their own property access to
// another user for a bounded time. The delegated level is capped at the
// delegator's own level, so delegation can never escalate.
func (s *templateService) CreateDelegation(ctx context.Context, delegator permission.Subject, req CreateDelegationRequest) (*DelegationResponse, error) {
	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	propID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	level := permission.AccessLevel(req.AccessLevel)
	if !permission.ValidLevel(level) {
		return nil, fmt.Errorf("unknown access level '%s'", req.AccessLevel)
	}
	if !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("expiry must be in the future")
	}
	if toUserID == delegator.ID {
		return nil, fmt.Errorf("cannot delegate to yourself")
	}

	if err := s.eval.RequirePropertyAccess(ctx, delegator, propID, level); err != nil {
		return nil, err
	}

	expiresAt := req.ExpiresAt
	delegation := model.Delegation{
		FromUserID:  delegator.ID,
		ToUserID:    toUserID,
		PropertyID:  propID,
		AccessLevel: req.AccessLevel,
		ExpiresAt:   expiresAt,
	}
	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateDelegation(txCtx, &delegation)
	}); err != nil {
		return nil, fmt.Errorf("failed to create delegation: %w", err)
	}

	// The capability itself is a normal expiring access grant; the
	// delegation row tracks provenance.
	if _, err := s.props.GrantAccess(ctx, &delegator.ID, req.PropertyID, GrantAccessRequest{
		UserID:      req.ToUserID,
		AccessLevel: req.AccessLevel,
		ExpiresAt:   &expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to grant delegated access: %w", err)
	}

	s.audit.Record(ctx, &delegator.ID, model.ActionCreateDelegation, "delegation", delegation.ID.String(), req)
	resp := toDelegationResponse(delegation)
	return &resp, nil
}

// RevokeDelegation ends a delegation early, removing the access grant it
// created. Only the delegator or a super_admin may revoke.
func (s *templateService) RevokeDelegation(ctx context.Context, actor permission.Subject, id string) error {
	delegationID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid delegation id: %w", err)
	}
	delegation, err := s.repo.FindDelegationByID(ctx, delegationID)
	if err != nil {
		return fmt.Errorf("delegation not found: %w", err)
	}
	if delegation.RevokedAt != nil {
		return fmt.Errorf("delegation already revoked")
	}
	if delegation.FromUserID != actor.ID && actor.Role != permission.RoleSuperAdmin {
		return fmt.Errorf("only the delegator can revoke a delegation")
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.MarkDelegationRevoked(txCtx, delegationID, s.now())
	}); err != nil {
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}

	if err := s.props.RevokeAccess(ctx, &actor.ID, delegation.PropertyID.String(), delegation.ToUserID.String()); err != nil {
		return fmt.Errorf("failed to remove delegated access: %w", err)
	}

	s.audit.Record(ctx, &actor.ID, model.ActionRevokeDelegation, "delegation", id, nil)
	return nil
}

func (s *templateService) ListDelegations(ctx context.Context, userID *uuid.UUID) ([]DelegationResponse, error) {
	rows, err := s.repo.ListDelegations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch delegations: %w", err)
	}
	res := make([]DelegationResponse, 0, len(rows))
	for _, d := range rows {
		res = append(res, toDelegationResponse(d))
	}
	return res, nil
}

// --- Compliance ---

func (s *templateService) CreatePolicy(ctx context.Context, req CreatePolicyRequest) (*model.CompliancePolicy, error) {
	if !permission.ValidRole(permission.Role(req.Role)) {
		return nil, fmt.Errorf("unknown role '%s'", req.Role)
	}
	if !permission.ValidLevel(permission.AccessLevel(req.MaxAccessLevel)) {
		return nil, fmt.Errorf("unknown access level '%s'", req.MaxAccessLevel)
	}

	policy := model.CompliancePolicy{
		Name:           req.Name,
		Role:           req.Role,
		MaxAccessLevel: req.MaxAccessLevel,
		IsActive:       true,
	}
	if err := s.repo.CreatePolicy(ctx, &policy); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}
	return &policy, nil
}

func (s *templateService) ListPolicies(ctx context.Context) ([]model.CompliancePolicy, error) {
	return s.repo.ListPolicies(ctx, false)
}

// ComplianceScan reports every live access row whose level exceeds the cap
// an active policy sets for its role. Scans only report; they never modify
// grants.
func (s *templateService) ComplianceScan(ctx context.Context) ([]ComplianceViolation, error) {
	policies, err := s.repo.ListPolicies(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policies: %w", err)
	}

	violations := make([]ComplianceViolation, 0)
	for _, policy := range policies {
		maxRank := permission.LevelRank(permission.AccessLevel(policy.MaxAccessLevel))
		rows, err := s.repo.ListAccessForRole(ctx, policy.Role)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role '%s': %w", policy.Role, err)
		}
		for _, row := range rows {
			if permission.LevelRank(permission.AccessLevel(row.AccessLevel)) <= maxRank {
				continue
			}
			violations = append(violations, ComplianceViolation{
				PolicyName:  policy.Name,
				UserID:      row.UserID.String(),
				Username:    row.User.Username,
				Role:        policy.Role,
				PropertyID:  row.PropertyID.String(),
				AccessLevel: row.AccessLevel,
				MaxAllowed:  policy.MaxAccessLevel,
			})
		}
	}
	return violations, nil
}

// --- Helpers ---

func toTemplateResponse(t model.PermissionTemplate) TemplateResponse {
	return TemplateResponse{
		ID:          t.ID.String(),
		Name:        t.Name,
		Description: t.Description,
		Permissions: toPermissionResponses(t.Permissions),
	}
}

func toDelegationResponse(d model.Delegation) DelegationResponse {
	return DelegationResponse{
		ID:          d.ID.String(),
		FromUserID:  d.FromUserID.String(),
		ToUserID:    d.ToUserID.String(),
		PropertyID:  d.PropertyID.String(),
		AccessLevel: d.AccessLevel,
		ExpiresAt:   d.ExpiresAt,
		RevokedAt:   d.RevokedAt,
	}
}
