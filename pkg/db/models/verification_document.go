package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/greia-app/verification-backend/pkg/db/types"
	"github.com/greia-app/verification-backend/pkg/enums"
)

// VerificationDocument is one submitted credential document tied to a session.
type VerificationDocument struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VerificationID uuid.UUID            `gorm:"column:verification_id;type:uuid;not null"`
	Kind           enums.DocumentKind   `gorm:"column:kind;type:document_kind;not null"`
	DocumentType   string               `gorm:"column:document_type;not null"`
	DocumentNumber *string              `gorm:"column:document_number"`
	IssuingCountry string               `gorm:"column:issuing_country;not null"`
	ExpiryDate     *time.Time           `gorm:"column:expiry_date"`
	ObjectKeys     dbtypes.StringArray  `gorm:"type:text[];column:object_keys;not null"`
	Status         enums.DocumentStatus `gorm:"column:status;type:document_status;not null;default:'pending'"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
