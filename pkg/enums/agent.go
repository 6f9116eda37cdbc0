package enums

import "fmt"

// AgentProfileStatus maps to the agent_profile_status enum in Postgres.
type AgentProfileStatus string

const (
	AgentProfileStatusPending  AgentProfileStatus = "pending"
	AgentProfileStatusVerified AgentProfileStatus = "verified"
	AgentProfileStatusRejected AgentProfileStatus = "rejected"
)

var validAgentProfileStatuses = []AgentProfileStatus{
	AgentProfileStatusPending,
	AgentProfileStatusVerified,
	AgentProfileStatusRejected,
}

// String implements fmt.Stringer.
func (a AgentProfileStatus) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical agent_profile_status enum.
func (a AgentProfileStatus) IsValid() bool {
	for _, candidate := range validAgentProfileStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the profile reached a final outcome.
func (a AgentProfileStatus) IsTerminal() bool {
	return a == AgentProfileStatusVerified || a == AgentProfileStatusRejected
}

// LicenseStatus maps to the license_status enum in Postgres.
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusRevoked   LicenseStatus = "revoked"
)

var validLicenseStatuses = []LicenseStatus{
	LicenseStatusActive,
	LicenseStatusExpired,
	LicenseStatusSuspended,
	LicenseStatusRevoked,
}

// String implements fmt.Stringer.
func (l LicenseStatus) String() string {
	return string(l)
}

// IsValid reports whether the value matches the canonical license_status enum.
func (l LicenseStatus) IsValid() bool {
	for _, candidate := range validLicenseStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLicenseStatus converts raw input into LicenseStatus.
func ParseLicenseStatus(value string) (LicenseStatus, error) {
	for _, candidate := range validLicenseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid license status %q", value)
}

// InsuranceType maps to the insurance_type enum in Postgres.
type InsuranceType string

const (
	InsuranceTypeProfessionalIndemnity InsuranceType = "professional_indemnity"
	InsuranceTypePublicLiability       InsuranceType = "public_liability"
	InsuranceTypeOther                 InsuranceType = "other"
)

var validInsuranceTypes = []InsuranceType{
	InsuranceTypeProfessionalIndemnity,
	InsuranceTypePublicLiability,
	InsuranceTypeOther,
}

// String implements fmt.Stringer.
func (i InsuranceType) String() string {
	return string(i)
}

// IsValid reports whether the value matches the canonical insurance_type enum.
func (i InsuranceType) IsValid() bool {
	for _, candidate := range validInsuranceTypes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInsuranceType converts raw input into InsuranceType.
func ParseInsuranceType(value string) (InsuranceType, error) {
	for _, candidate := range validInsuranceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid insurance type %q", value)
}
