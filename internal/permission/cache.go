package permission

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cache memoizes permission lookups for the lifetime of the process. It is
// process-local: horizontally scaled instances each hold an independent
// copy and can serve stale results until their own entries are invalidated.
// That staleness window is an accepted limitation of this layer, not a bug.
//
// There is no TTL in the read path. Staleness is bounded only by explicit
// invalidation, which mutation code paths must perform.
type Cache struct {
	mu         sync.RWMutex
	rolePerms  map[Role][]string
	userGrants map[uuid.UUID][]string
	access     map[uuid.UUID]map[uuid.UUID]AccessRecord

	hits   uint64
	misses uint64
}

// AccessRecord is the cached shape of a PropertyAccess row.
type AccessRecord struct {
	UserID     uuid.UUID
	PropertyID uuid.UUID
	Level      AccessLevel
	ExpiresAt  *time.Time // nil means no expiry
}

// Stats is a snapshot of cache occupancy and hit rates.
type Stats struct {
	RoleEntries   int    `json:"role_entries"`
	UserEntries   int    `json:"user_entries"`
	AccessEntries int    `json:"access_entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
}

func NewCache() *Cache {
	return &Cache{
		rolePerms:  make(map[Role][]string),
		userGrants: make(map[uuid.UUID][]string),
		access:     make(map[uuid.UUID]map[uuid.UUID]AccessRecord),
	}
}

// RolePermissions returns the cached permission codes for a role.
func (c *Cache) RolePermissions(r Role) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes, ok := c.rolePerms[r]
	c.count(ok)
	return codes, ok
}

// SetRolePermissions stores the permission codes for a role.
func (c *Cache) SetRolePermissions(r Role, codes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolePerms[r] = codes
}

// UserGrants returns the cached explicit permission grants for a user.
func (c *Cache) UserGrants(userID uuid.UUID) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	codes, ok := c.userGrants[userID]
	c.count(ok)
	return codes, ok
}

// SetUserGrants stores the explicit permission grants for a user.
func (c *Cache) SetUserGrants(userID uuid.UUID, codes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userGrants[userID] = codes
}

// PropertyAccess returns the cached access record for (user, property).
func (c *Cache) PropertyAccess(userID, propertyID uuid.UUID) (AccessRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.access[userID][propertyID]
	c.count(ok)
	return rec, ok
}

// SetPropertyAccess stores an access record.
func (c *Cache) SetPropertyAccess(rec AccessRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byProp, ok := c.access[rec.UserID]
	if !ok {
		byProp = make(map[uuid.UUID]AccessRecord)
		c.access[rec.UserID] = byProp
	}
	byProp[rec.PropertyID] = rec
}

// DropPropertyAccess removes a single cached access record.
func (c *Cache) DropPropertyAccess(userID, propertyID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.access[userID], propertyID)
}

// InvalidateUser drops every entry keyed by userID: explicit grants and all
// of the user's property access records.
func (c *Cache) InvalidateUser(userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.userGrants, userID)
	delete(c.access, userID)
}

// InvalidateProperty drops every cached access record for a property,
// across all users.
func (c *Cache) InvalidateProperty(propertyID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for userID, byProp := range c.access {
		delete(byProp, propertyID)
		if len(byProp) == 0 {
			delete(c.access, userID)
		}
	}
}

// InvalidateRole drops the cached permission set for a role.
func (c *Cache) InvalidateRole(r Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rolePerms, r)
}

// Clear drops every cached entry. Hit/miss counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rolePerms = make(map[Role][]string)
	c.userGrants = make(map[uuid.UUID][]string)
	c.access = make(map[uuid.UUID]map[uuid.UUID]AccessRecord)
}

// GetStats returns a snapshot of cache occupancy and hit counters.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, byProp := range c.access {
		n += len(byProp)
	}
	return Stats{
		RoleEntries:   len(c.rolePerms),
		UserEntries:   len(c.userGrants),
		AccessEntries: n,
		Hits:          c.hits,
		Misses:        c.misses,
	}
}

// count must be called with c.mu held.
func (c *Cache) count(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
