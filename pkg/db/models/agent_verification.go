package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/greia-app/verification-backend/pkg/enums"
)

// AgentVerification links a base verification session to an agent profile so the
// agent workflow can track its own state alongside the generic identity check.
type AgentVerification struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VerificationID  uuid.UUID                `gorm:"column:verification_id;type:uuid;not null;uniqueIndex"`
	AgentProfileID  uuid.UUID                `gorm:"column:agent_profile_id;type:uuid;not null"`
	Level           enums.VerificationLevel  `gorm:"column:level;not null"`
	Status          enums.AgentProfileStatus `gorm:"column:status;type:agent_profile_status;not null;default:'pending'"`
	StartedAt       time.Time                `gorm:"column:started_at;not null"`
	CompletedAt     *time.Time               `gorm:"column:completed_at"`
	RejectionReason *string                  `gorm:"column:rejection_reason"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
