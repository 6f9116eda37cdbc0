package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/greia-app/verification-backend/pkg/enums"
)

// User is the slice of the platform identity this service owns: contact fields
// for notifications plus the trust tier granted by approved verifications.
type User struct {
	ID                uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email             string                  `gorm:"type:text;not null;uniqueIndex"`
	FirstName         string                  `gorm:"column:first_name;not null"`
	LastName          string                  `gorm:"column:last_name;not null"`
	VerificationLevel enums.VerificationLevel `gorm:"column:verification_level;not null;default:0"`
	VerifiedAt        *time.Time              `gorm:"column:verified_at"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
