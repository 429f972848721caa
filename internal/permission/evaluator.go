package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Subject identifies the caller of a permission check.
type Subject struct {
	ID   uuid.UUID
	Role Role
}

// Store is the persistence surface the evaluator reads from. Implementations
// must filter expired PropertyAccess rows at the query layer — that is the
// single database-side enforcement point for expiry.
type Store interface {
	// RolePermissionCodes returns the persisted permission codes for a role.
	RolePermissionCodes(ctx context.Context, role string) ([]string, error)
	// UserPermissionCodes returns a user's explicit permission grants.
	UserPermissionCodes(ctx context.Context, userID uuid.UUID) ([]string, error)
	// PropertyAccess returns the unexpired access record for (user,
	// property), or nil when none exists.
	PropertyAccess(ctx context.Context, userID, propertyID uuid.UUID) (*AccessRecord, error)
	// AccessiblePropertyIDs returns the property IDs for which the user
	// holds an unexpired access row at one of the given levels.
	AccessiblePropertyIDs(ctx context.Context, userID uuid.UUID, levels []string) ([]uuid.UUID, error)
}

// Evaluator answers permission and property-access queries for a subject,
// consulting the cache before the store. All checks fail closed: a missing
// row or an unknown permission name yields false, not an error.
type Evaluator struct {
	store Store
	cache *Cache
	now   func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the evaluator's clock, used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

func NewEvaluator(store Store, cache *Cache, opts ...Option) *Evaluator {
	e := &Evaluator{store: store, cache: cache, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the evaluator's cache for administrative operations.
func (e *Evaluator) Cache() *Cache {
	return e.cache
}

// HasPermission reports whether the subject's role permission set or
// explicit grants contain code. super_admin holds the entire catalog;
// unknown codes are never satisfiable.
func (e *Evaluator) HasPermission(ctx context.Context, sub Subject, code string) (bool, error) {
	if !IsValidPermission(code) {
		return false, nil
	}
	if sub.Role == RoleSuperAdmin {
		return true, nil
	}

	roleCodes, err := e.rolePermissions(ctx, sub.Role)
	if err != nil {
		return false, err
	}
	for _, c := range roleCodes {
		if c == code {
			return true, nil
		}
	}

	grants, err := e.userGrants(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	for _, c := range grants {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission reports whether the subject holds at least one of codes.
func (e *Evaluator) HasAnyPermission(ctx context.Context, sub Subject, codes ...string) (bool, error) {
	for _, code := range codes {
		ok, err := e.HasPermission(ctx, sub, code)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the subject holds every one of codes.
func (e *Evaluator) HasAllPermissions(ctx context.Context, sub Subject, codes ...string) (bool, error) {
	for _, code := range codes {
		ok, err := e.HasPermission(ctx, sub, code)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// HasRole reports direct role equality.
func HasRole(sub Subject, r Role) bool {
	return sub.Role == r
}

// HasAnyRole reports whether the subject's role is one of roles.
func HasAnyRole(sub Subject, roles ...Role) bool {
	for _, r := range roles {
		if sub.Role == r {
			return true
		}
	}
	return false
}

// CanAccessProperty reports whether the subject may access a property at
// the required level. super_admin short-circuits true. Otherwise the stored
// access row's rank must meet or exceed the required rank; a missing or
// expired row denies.
func (e *Evaluator) CanAccessProperty(ctx context.Context, sub Subject, propertyID uuid.UUID, required AccessLevel) (bool, error) {
	if sub.Role == RoleSuperAdmin {
		return true, nil
	}
	if !ValidLevel(required) {
		return false, nil
	}

	rec, err := e.propertyAccess(ctx, sub.ID, propertyID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return LevelRank(rec.Level) >= LevelRank(required), nil
}

// RequirePropertyAccess is CanAccessProperty with a structured denial for
// mutation endpoints.
func (e *Evaluator) RequirePropertyAccess(ctx context.Context, sub Subject, propertyID uuid.UUID, required AccessLevel) error {
	ok, err := e.CanAccessProperty(ctx, sub, propertyID, required)
	if err != nil {
		return err
	}
	if !ok {
		return &PropertyAccessDeniedError{PropertyID: propertyID, Level: required}
	}
	return nil
}

// EffectivePermissions returns the subject's full permission set: role
// permissions plus explicit grants, deduplicated.
func (e *Evaluator) EffectivePermissions(ctx context.Context, sub Subject) ([]string, error) {
	if sub.Role == RoleSuperAdmin {
		return AllPermissions(), nil
	}

	roleCodes, err := e.rolePermissions(ctx, sub.Role)
	if err != nil {
		return nil, err
	}
	grants, err := e.userGrants(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(roleCodes)+len(grants))
	out := make([]string, 0, len(roleCodes)+len(grants))
	for _, c := range append(roleCodes, grants...) {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// Warm pre-populates the cache for the given users and properties, plus the
// permission sets of every role.
func (e *Evaluator) Warm(ctx context.Context, userIDs, propertyIDs []uuid.UUID) error {
	for _, r := range Roles() {
		if _, err := e.rolePermissions(ctx, r); err != nil {
			return fmt.Errorf("warm role %s: %w", r, err)
		}
	}
	for _, userID := range userIDs {
		if _, err := e.userGrants(ctx, userID); err != nil {
			return fmt.Errorf("warm user %s: %w", userID, err)
		}
		for _, propertyID := range propertyIDs {
			if _, err := e.propertyAccess(ctx, userID, propertyID); err != nil {
				return fmt.Errorf("warm access %s/%s: %w", userID, propertyID, err)
			}
		}
	}
	return nil
}

func (e *Evaluator) rolePermissions(ctx context.Context, r Role) ([]string, error) {
	if codes, ok := e.cache.RolePermissions(r); ok {
		return codes, nil
	}
	codes, err := e.store.RolePermissionCodes(ctx, string(r))
	if err != nil {
		return nil, err
	}
	e.cache.SetRolePermissions(r, codes)
	return codes, nil
}

func (e *Evaluator) userGrants(ctx context.Context, userID uuid.UUID) ([]string, error) {
	if codes, ok := e.cache.UserGrants(userID); ok {
		return codes, nil
	}
	codes, err := e.store.UserPermissionCodes(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.cache.SetUserGrants(userID, codes)
	return codes, nil
}

// propertyAccess returns the effective access record, or nil when absent.
// The store filters expired rows at the query layer; cached records escape
// that filter, so the cache hit path re-checks expiry against the clock and
// treats stale entries as misses.
func (e *Evaluator) propertyAccess(ctx context.Context, userID, propertyID uuid.UUID) (*AccessRecord, error) {
	if rec, ok := e.cache.PropertyAccess(userID, propertyID); ok {
		if rec.ExpiresAt == nil || rec.ExpiresAt.After(e.now()) {
			return &rec, nil
		}
		e.cache.DropPropertyAccess(userID, propertyID)
	}

	rec, err := e.store.PropertyAccess(ctx, userID, propertyID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(e.now()) {
		return nil, nil
	}
	e.cache.SetPropertyAccess(*rec)
	return rec, nil
}
