package enums

import "fmt"

// VerificationStatus maps to the verification_status enum in Postgres.
type VerificationStatus string

const (
	VerificationStatusPending          VerificationStatus = "pending"
	VerificationStatusAwaitingMoreInfo VerificationStatus = "awaiting_more_info"
	VerificationStatusApproved         VerificationStatus = "approved"
	VerificationStatusRejected         VerificationStatus = "rejected"
)

var validVerificationStatuses = []VerificationStatus{
	VerificationStatusPending,
	VerificationStatusAwaitingMoreInfo,
	VerificationStatusApproved,
	VerificationStatusRejected,
}

// String implements fmt.Stringer.
func (v VerificationStatus) String() string {
	return string(v)
}

// IsValid reports whether the value matches the canonical verification_status enum.
func (v VerificationStatus) IsValid() bool {
	for _, candidate := range validVerificationStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (v VerificationStatus) IsTerminal() bool {
	return v == VerificationStatusApproved || v == VerificationStatusRejected
}

// ParseVerificationStatus converts raw input into VerificationStatus.
func ParseVerificationStatus(value string) (VerificationStatus, error) {
	for _, candidate := range validVerificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification status %q", value)
}

// VerificationLevel is the ordered trust tier a session targets.
type VerificationLevel int

const (
	VerificationLevelBasic        VerificationLevel = 1
	VerificationLevelProfessional VerificationLevel = 2
	VerificationLevelAgent        VerificationLevel = 3
	VerificationLevelPremiumAgent VerificationLevel = 4
)

// String implements fmt.Stringer.
func (v VerificationLevel) String() string {
	switch v {
	case VerificationLevelBasic:
		return "basic"
	case VerificationLevelProfessional:
		return "professional"
	case VerificationLevelAgent:
		return "agent"
	case VerificationLevelPremiumAgent:
		return "premium_agent"
	default:
		return fmt.Sprintf("level_%d", int(v))
	}
}

// IsValid reports whether the level falls inside the supported tier range.
func (v VerificationLevel) IsValid() bool {
	return v >= VerificationLevelBasic && v <= VerificationLevelPremiumAgent
}

// RequiresLicense reports whether the tier carries licensed-agent semantics.
func (v VerificationLevel) RequiresLicense() bool {
	return v >= VerificationLevelAgent
}
