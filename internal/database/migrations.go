package database

import (
	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// SystemUserID owns notifications raised by the platform itself.
const SystemUserID = "system"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Notification{},
	)
}

// SeedData ensures the platform system account exists. Marketplace users are
// owned by the account service and are never seeded here.
func SeedData(db *gorm.DB) error {
	system := models.User{
		BaseModel: models.BaseModel{ID: SystemUserID},
		Name:      "PureHarvest",
		Email:     "no-reply@pureharvest.local",
		Role:      models.RoleAdmin,
		IsActive:  false,
	}
	return db.Where(models.User{BaseModel: models.BaseModel{ID: system.ID}}).
		Attrs(system).
		FirstOrCreate(&models.User{}).Error
}
