package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/greia-app/verification-backend/pkg/db/types"
	"github.com/greia-app/verification-backend/pkg/enums"
)

// AgentLicense holds the professional license credential submitted by an agent.
type AgentLicense struct {
	Type             string              `gorm:"column:type;not null"`
	Number           string              `gorm:"column:number;not null"`
	IssuingAuthority string              `gorm:"column:issuing_authority;not null"`
	IssuingCountry   string              `gorm:"column:issuing_country;not null"`
	IssueDate        time.Time           `gorm:"column:issue_date;not null"`
	ExpiryDate       time.Time           `gorm:"column:expiry_date;not null"`
	Status           enums.LicenseStatus `gorm:"column:status;type:license_status;not null"`
}

// InsuranceDetails holds the indemnity/liability policy backing the agent.
type InsuranceDetails struct {
	Provider       string              `gorm:"column:provider;not null"`
	PolicyNumber   string              `gorm:"column:policy_number;not null"`
	Type           enums.InsuranceType `gorm:"column:type;type:insurance_type;not null"`
	CoverageAmount decimal.Decimal     `gorm:"column:coverage_amount;type:numeric(14,2);not null"`
	Currency       string              `gorm:"column:currency;not null"`
	StartDate      time.Time           `gorm:"column:start_date;not null"`
	ExpiryDate     time.Time           `gorm:"column:expiry_date;not null"`
	Documents      dbtypes.StringArray `gorm:"type:text[];column:documents;not null"`
}

// AgencyDetails is the optional company record for agents operating under an
// agency. All fields are nullable; Submitted on the profile is the presence flag.
type AgencyDetails struct {
	CompanyName        *string             `gorm:"column:company_name"`
	RegistrationNumber *string             `gorm:"column:registration_number"`
	VATNumber          *string             `gorm:"column:vat_number"`
	Address            *string             `gorm:"column:address"`
	ContactEmail       *string             `gorm:"column:contact_email"`
	ContactPhone       *string             `gorm:"column:contact_phone"`
	Documents          dbtypes.StringArray `gorm:"type:text[];column:documents"`
}

// AgentProfile is the one-per-user professional credential record. Resubmission
// overwrites credential data in place; the row identity is stable.
type AgentProfile struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	License         AgentLicense             `gorm:"embedded;embeddedPrefix:license_"`
	Insurance       InsuranceDetails         `gorm:"embedded;embeddedPrefix:insurance_"`
	Agency          AgencyDetails            `gorm:"embedded;embeddedPrefix:agency_"`
	AgencySubmitted bool                     `gorm:"column:agency_submitted;not null;default:false"`
	Status          enums.AgentProfileStatus `gorm:"column:status;type:agent_profile_status;not null;default:'pending'"`
	VerifiedAt      *time.Time               `gorm:"column:verified_at"`
	RejectionReason *string                  `gorm:"column:rejection_reason"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
