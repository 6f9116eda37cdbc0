package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/greia-app/verification-backend/pkg/db/types"
)

// DocumentReview records the automated check run executed after a document batch
// is submitted. One review row per submission.
type DocumentReview struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VerificationID   uuid.UUID           `gorm:"column:verification_id;type:uuid;not null"`
	AuthenticityPass bool                `gorm:"column:authenticity_pass;not null"`
	ExpiryPass       bool                `gorm:"column:expiry_pass;not null"`
	QualityPass      bool                `gorm:"column:quality_pass;not null"`
	FailedChecks     dbtypes.StringArray `gorm:"type:text[];column:failed_checks;not null"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}
