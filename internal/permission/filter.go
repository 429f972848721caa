package permission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Filter restricts a data query to the properties a user may see. It is a
// derived, read-only view over PropertyAccess rows: it enforces nothing by
// itself, and a caller that builds a query without applying it has opened a
// data isolation hole.
type Filter struct {
	// All marks the query unrestricted (super_admin only).
	All bool
	// PropertyIDs are the properties the user may see. Empty with All
	// false means the user sees nothing.
	PropertyIDs []uuid.UUID
}

// Apply merges the filter into a query against a table with a property_id
// column.
func (f Filter) Apply(db *gorm.DB) *gorm.DB {
	if f.All {
		return db
	}
	if len(f.PropertyIDs) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("property_id IN ?", f.PropertyIDs)
}

// ApplyToColumn is Apply for tables where the property key has a different
// column name (e.g. the properties table's own id).
func (f Filter) ApplyToColumn(db *gorm.DB, column string) *gorm.DB {
	if f.All {
		return db
	}
	if len(f.PropertyIDs) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where(column+" IN ?", f.PropertyIDs)
}

// Allows reports whether the filter permits a specific property.
func (f Filter) Allows(propertyID uuid.UUID) bool {
	if f.All {
		return true
	}
	for _, id := range f.PropertyIDs {
		if id == propertyID {
			return true
		}
	}
	return false
}

// PropertiesFilter builds the isolation filter for a subject at the given
// minimum access level. super_admin is unrestricted; everyone else is
// limited to properties where they hold an unexpired access row at or above
// the level.
func (e *Evaluator) PropertiesFilter(ctx context.Context, sub Subject, level AccessLevel) (Filter, error) {
	if sub.Role == RoleSuperAdmin {
		return Filter{All: true}, nil
	}
	if !ValidLevel(level) {
		return Filter{}, nil
	}
	ids, err := e.store.AccessiblePropertyIDs(ctx, sub.ID, LevelsAtOrAbove(level))
	if err != nil {
		return Filter{}, err
	}
	return Filter{PropertyIDs: ids}, nil
}
