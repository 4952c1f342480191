package model

import "time"

// IssuedIdentifier is one row of the identifier history in SQL backends.
type IssuedIdentifier struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Identifier string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"identifier"`
	CreatedAt  time.Time `json:"created_at"`
}

func (IssuedIdentifier) TableName() string { return "issued_identifiers" }
