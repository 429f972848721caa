package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"costcompass/internal/events"
	"costcompass/internal/model"
	"costcompass/internal/permission"
	"costcompass/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreatePropertyRequest struct {
	Code       string  `json:"code" binding:"required"`
	Name       string  `json:"name" binding:"required"`
	City       string  `json:"city"`
	CurrencyID *string `json:"currency_id"`
}

type UpdatePropertyRequest struct {
	Name     string `json:"name" binding:"required"`
	City     string `json:"city"`
	IsActive *bool  `json:"is_active"`
}

type GrantAccessRequest struct {
	UserID      string     `json:"user_id" binding:"required"`
	AccessLevel string     `json:"access_level" binding:"required"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type UpdateAccessRequest struct {
	AccessLevel string     `json:"access_level" binding:"required"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

type PropertyResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	City      string `json:"city"`
	Currency  string `json:"currency,omitempty"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

type PropertyAccessResponse struct {
	UserID      string     `json:"user_id"`
	Username    string     `json:"username,omitempty"`
	PropertyID  string     `json:"property_id"`
	Property    string     `json:"property,omitempty"`
	AccessLevel string     `json:"access_level"`
	GrantedBy   string     `json:"granted_by,omitempty"`
	GrantedAt   string     `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// --- Interface ---

// PropertyService manages properties and property access grants. Access
// mutations invalidate the affected cache entries and notify the target
// user's connections before returning.
type PropertyService interface {
	CreateProperty(ctx context.Context, actorID *uuid.UUID, req CreatePropertyRequest) (*PropertyResponse, error)
	UpdateProperty(ctx context.Context, actorID *uuid.UUID, id string, req UpdatePropertyRequest) (*PropertyResponse, error)
	GetProperty(ctx context.Context, id string) (*PropertyResponse, error)
	ListProperties(ctx context.Context, sub permission.Subject) ([]PropertyResponse, error)

	GrantAccess(ctx context.Context, actorID *uuid.UUID, propertyID string, req GrantAccessRequest) (*PropertyAccessResponse, error)
	UpdateAccess(ctx context.Context, actorID *uuid.UUID, propertyID, userID string, req UpdateAccessRequest) (*PropertyAccessResponse, error)
	RevokeAccess(ctx context.Context, actorID *uuid.UUID, propertyID, userID string) error
	ListAccess(ctx context.Context, propertyID string) ([]PropertyAccessResponse, error)
	ListUserAccess(ctx context.Context, userID string) ([]PropertyAccessResponse, error)

	SweepExpiredAccess(ctx context.Context) (int64, error)
}

type propertyService struct {
	repo  repository.PropertyRepository
	users repository.UserRepository
	tm    repository.TransactionManager
	eval  *permission.Evaluator
	cache *permission.Cache
	bus   events.Publisher
	audit AuditService
	now   func() time.Time
}

func NewPropertyService(
	repo repository.PropertyRepository,
	users repository.UserRepository,
	tm repository.TransactionManager,
	eval *permission.Evaluator,
	bus events.Publisher,
	audit AuditService,
) PropertyService {
	return &propertyService{
		repo:  repo,
		users: users,
		tm:    tm,
		eval:  eval,
		cache: eval.Cache(),
		bus:   bus,
		audit: audit,
		now:   time.Now,
	}
}

// --- Properties ---

func (s *propertyService) CreateProperty(ctx context.Context, actorID *uuid.UUID, req CreatePropertyRequest) (*PropertyResponse, error) {
	property := model.Property{
		Code:     req.Code,
		Name:     req.Name,
		City:     req.City,
		IsActive: true,
	}
	if req.CurrencyID != nil {
		currencyID, err := uuid.Parse(*req.CurrencyID)
		if err != nil {
			return nil, fmt.Errorf("invalid currency id: %w", err)
		}
		property.CurrencyID = &currencyID
	}

	if err := s.repo.Create(ctx, &property); err != nil {
		return nil, fmt.Errorf("failed to create property: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionCreateProperty, "property", property.ID.String(), req)
	resp := toPropertyResponse(property)
	return &resp, nil
}

func (s *propertyService) UpdateProperty(ctx context.Context, actorID *uuid.UUID, id string, req UpdatePropertyRequest) (*PropertyResponse, error) {
	propertyID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}

	property, err := s.repo.FindByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("property not found: %w", err)
	}

	property.Name = req.Name
	property.City = req.City
	if req.IsActive != nil {
		property.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, property); err != nil {
		return nil, fmt.Errorf("failed to update property: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionUpdateProperty, "property", id, req)
	resp := toPropertyResponse(*property)
	return &resp, nil
}

func (s *propertyService) GetProperty(ctx context.Context, id string) (*PropertyResponse, error) {
	propertyID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	property, err := s.repo.FindByID(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("property not found: %w", err)
	}
	resp := toPropertyResponse(*property)
	return &resp, nil
}

// ListProperties returns the properties visible to the subject at
// read_only level or above.
func (s *propertyService) ListProperties(ctx context.Context, sub permission.Subject) ([]PropertyResponse, error) {
	filter, err := s.eval.PropertiesFilter(ctx, sub, permission.LevelReadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to build property filter: %w", err)
	}

	properties, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}

	res := make([]PropertyResponse, 0, len(properties))
	for _, p := range properties {
		if !filter.Allows(p.ID) {
			continue
		}
		res = append(res, toPropertyResponse(p))
	}
	return res, nil
}

// --- Access grants ---

func (s *propertyService) GrantAccess(ctx context.Context, actorID *uuid.UUID, propertyID string, req GrantAccessRequest) (*PropertyAccessResponse, error) {
	propID, err := uuid.Parse(propertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	if !permission.ValidLevel(permission.AccessLevel(req.AccessLevel)) {
		return nil, fmt.Errorf("unknown access level '%s'", req.AccessLevel)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("expiry must be in the future")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("cannot grant access to a deactivated user")
	}
	if _, err := s.repo.FindByID(ctx, propID); err != nil {
		return nil, fmt.Errorf("property not found: %w", err)
	}

	access := model.PropertyAccess{
		UserID:      userID,
		PropertyID:  propID,
		AccessLevel: req.AccessLevel,
		GrantedBy:   actorID,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.UpsertAccess(txCtx, &access)
	}); err != nil {
		return nil, fmt.Errorf("failed to grant access: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionGrantAccess, "property_access", propID.String(), req)
	s.afterAccessChange(userID, propID, "granted")

	resp := toAccessResponse(access)
	resp.Username = user.Username
	return &resp, nil
}

func (s *propertyService) UpdateAccess(ctx context.Context, actorID *uuid.UUID, propertyID, userID string, req UpdateAccessRequest) (*PropertyAccessResponse, error) {
	return s.GrantAccess(ctx, actorID, propertyID, GrantAccessRequest{
		UserID:      userID,
		AccessLevel: req.AccessLevel,
		ExpiresAt:   req.ExpiresAt,
	})
}

func (s *propertyService) RevokeAccess(ctx context.Context, actorID *uuid.UUID, propertyID, userID string) error {
	propID, err := uuid.Parse(propertyID)
	if err != nil {
		return fmt.Errorf("invalid property id: %w", err)
	}
	uID, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteAccess(txCtx, uID, propID)
	}); err != nil {
		return fmt.Errorf("failed to revoke access: %w", err)
	}

	s.audit.Record(ctx, actorID, model.ActionRevokeAccess, "property_access", propID.String(), map[string]string{"user_id": userID})
	s.afterAccessChange(uID, propID, "revoked")
	return nil
}

func (s *propertyService) ListAccess(ctx context.Context, propertyID string) ([]PropertyAccessResponse, error) {
	propID, err := uuid.Parse(propertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	rows, err := s.repo.ListAccessByProperty(ctx, propID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access grants: %w", err)
	}

	res := make([]PropertyAccessResponse, 0, len(rows))
	for _, row := range rows {
		resp := toAccessResponse(row)
		resp.Username = row.User.Username
		res = append(res, resp)
	}
	return res, nil
}

func (s *propertyService) ListUserAccess(ctx context.Context, userID string) ([]PropertyAccessResponse, error) {
	uID, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	rows, err := s.repo.ListAccessByUser(ctx, uID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access grants: %w", err)
	}

	res := make([]PropertyAccessResponse, 0, len(rows))
	for _, row := range rows {
		resp := toAccessResponse(row)
		resp.Property = row.Property.Name
		res = append(res, resp)
	}
	return res, nil
}

// SweepExpiredAccess removes access rows past their expiry. Queries already
// exclude expired rows, so this only reclaims storage; it runs on a timer
// from main.
func (s *propertyService) SweepExpiredAccess(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredAccess(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expired access sweep failed: %w", err)
	}
	if n > 0 {
		log.Printf("swept %d expired property access rows", n)
		s.cache.Clear()
	}
	return n, nil
}

// afterAccessChange invalidates both cache scopes touched by an access
// mutation and notifies the affected user's connections.
func (s *propertyService) afterAccessChange(userID, propertyID uuid.UUID, action string) {
	s.cache.InvalidateUser(userID)
	s.cache.InvalidateProperty(propertyID)
	s.bus.Publish(events.Event{
		Type:            events.TypeUserUpdated,
		Message:         "your property access changed",
		UserID:          userID.String(),
		Action:          action,
		RequiresRefresh: true,
	})
}

// --- Helpers ---

func toPropertyResponse(p model.Property) PropertyResponse {
	currency := ""
	if p.Currency != nil {
		currency = p.Currency.Code
	}
	return PropertyResponse{
		ID:        p.ID.String(),
		Code:      p.Code,
		Name:      p.Name,
		City:      p.City,
		Currency:  currency,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toAccessResponse(a model.PropertyAccess) PropertyAccessResponse {
	grantedBy := ""
	if a.GrantedBy != nil {
		grantedBy = a.GrantedBy.String()
	}
	return PropertyAccessResponse{
		UserID:      a.UserID.String(),
		PropertyID:  a.PropertyID.String(),
		AccessLevel: a.AccessLevel,
		GrantedBy:   grantedBy,
		GrantedAt:   a.GrantedAt.Format("2006-01-02 15:04:05"),
		ExpiresAt:   a.ExpiresAt,
	}
}
