package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for the history tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&IssuedIdentifier{})
}
