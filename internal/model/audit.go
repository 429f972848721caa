package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionAssignPermission = "ASSIGN_PERMISSION"
	ActionRemovePermission = "REMOVE_PERMISSION"
	ActionCopyPermissions  = "COPY_PERMISSIONS"
	ActionGrantAccess      = "GRANT_PROPERTY_ACCESS"
	ActionUpdateAccess     = "UPDATE_PROPERTY_ACCESS"
	ActionRevokeAccess     = "REVOKE_PROPERTY_ACCESS"
	ActionCreateUser       = "CREATE_USER"
	ActionUpdateUser       = "UPDATE_USER"
	ActionDeactivateUser   = "DEACTIVATE_USER"
	ActionGrantUserPerm    = "GRANT_USER_PERMISSION"
	ActionRevokeUserPerm   = "REVOKE_USER_PERMISSION"
	ActionCreateProperty   = "CREATE_PROPERTY"
	ActionUpdateProperty   = "UPDATE_PROPERTY"
	ActionApplyTemplate    = "APPLY_TEMPLATE"
	ActionCreateDelegation = "CREATE_DELEGATION"
	ActionRevokeDelegation = "REVOKE_DELEGATION"
	ActionCreateCostEntry  = "CREATE_COST_ENTRY"
	ActionUpdateCostEntry  = "UPDATE_COST_ENTRY"
	ActionDeleteCostEntry  = "DELETE_COST_ENTRY"
	ActionUpsertBudget     = "UPSERT_BUDGET"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"` // Nullable gracefully if automated job
	Actor      *User      `gorm:"foreignKey:ActorID" json:"actor"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	Resource   string     `gorm:"type:varchar(50);not null;index" json:"resource"` // "role", "property_access", "user"...
	ResourceID string     `gorm:"type:varchar(100);index" json:"resource_id"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
