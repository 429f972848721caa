package database

import (
	"log"

	"costcompass/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate core models
	err = db.AutoMigrate(
		&model.User{},
		&model.RefreshToken{},
		&model.Permission{},
		&model.RolePermission{},
		&model.Property{},
		&model.PropertyAccess{},
		&model.Currency{},
		&model.Outlet{},
		&model.Category{},
		&model.DailyCostEntry{},
		&model.Budget{},
		&model.PermissionTemplate{},
		&model.Delegation{},
		&model.CompliancePolicy{},
		&model.AuditLog{},
	)
	if err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}
