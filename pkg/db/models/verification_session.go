package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/greia-app/verification-backend/pkg/enums"
)

// VerificationSession tracks one attempt by a user to reach a trust tier.
// Sessions are never deleted; terminal rows stay behind as the audit trail.
type VerificationSession struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null"`
	Level                enums.VerificationLevel  `gorm:"column:level;not null"`
	Status               enums.VerificationStatus `gorm:"column:status;type:verification_status;not null;default:'pending'"`
	ProviderSessionID    *string                  `gorm:"column:provider_session_id"`
	ProviderClientSecret *string                  `gorm:"column:provider_client_secret"`
	StartedAt            time.Time                `gorm:"column:started_at;not null"`
	CompletedAt          *time.Time               `gorm:"column:completed_at"`
	RejectionReason      *string                  `gorm:"column:rejection_reason"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	Documents []VerificationDocument `gorm:"foreignKey:VerificationID"`
}
