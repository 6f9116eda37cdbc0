package agents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greia-app/verification-backend/pkg/enums"
)

// LicenseInput is the professional license submitted with an agent application.
type LicenseInput struct {
	Type             string              `json:"type"`
	Number           string              `json:"number"`
	IssuingAuthority string              `json:"issuing_authority"`
	IssuingCountry   string              `json:"issuing_country"`
	IssueDate        time.Time           `json:"issue_date"`
	ExpiryDate       time.Time           `json:"expiry_date"`
	Status           enums.LicenseStatus `json:"status"`
}

// InsuranceInput is the indemnity/liability policy submitted with an application.
type InsuranceInput struct {
	Provider       string              `json:"provider"`
	PolicyNumber   string              `json:"policy_number"`
	Type           enums.InsuranceType `json:"type"`
	CoverageAmount decimal.Decimal     `json:"coverage_amount"`
	Currency       string              `json:"currency"`
	StartDate      time.Time           `json:"start_date"`
	ExpiryDate     time.Time           `json:"expiry_date"`
	Documents      []string            `json:"documents"`
}

// AgencyInput is the optional company record for agents under an agency.
type AgencyInput struct {
	CompanyName        string   `json:"company_name"`
	RegistrationNumber string   `json:"registration_number"`
	VATNumber          *string  `json:"vat_number,omitempty"`
	Address            string   `json:"address"`
	ContactEmail       string   `json:"contact_email"`
	ContactPhone       *string  `json:"contact_phone,omitempty"`
	Documents          []string `json:"documents"`
}

// Credentials bundles everything an agent submits when applying.
type Credentials struct {
	License   LicenseInput   `json:"license"`
	Insurance InsuranceInput `json:"insurance"`
	Agency    *AgencyInput   `json:"agency,omitempty"`
}

// StartResult extends the base verification start with the profile identity.
type StartResult struct {
	VerificationID uuid.UUID `json:"verification_id"`
	AgentProfileID uuid.UUID `json:"agent_profile_id"`
	ClientSecret   string    `json:"client_secret"`
}

// CheckResult reports the per-registry outcomes and the overall decision.
type CheckResult struct {
	Success           bool   `json:"success"`
	LicenseVerified   bool   `json:"license_verified"`
	InsuranceVerified bool   `json:"insurance_verified"`
	AgencyVerified    bool   `json:"agency_verified"`
	RejectionReason   string `json:"rejection_reason,omitempty"`
}
