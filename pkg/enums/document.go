package enums

import "fmt"

// DocumentKind maps to the document_kind enum in Postgres.
type DocumentKind string

const (
	DocumentKindIdentity     DocumentKind = "identity"
	DocumentKindAddress      DocumentKind = "address"
	DocumentKindProfessional DocumentKind = "professional"
	DocumentKindBusiness     DocumentKind = "business"
)

var validDocumentKinds = []DocumentKind{
	DocumentKindIdentity,
	DocumentKindAddress,
	DocumentKindProfessional,
	DocumentKindBusiness,
}

// String implements fmt.Stringer.
func (d DocumentKind) String() string {
	return string(d)
}

// IsValid reports whether the value matches the canonical document_kind enum.
func (d DocumentKind) IsValid() bool {
	for _, candidate := range validDocumentKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDocumentKind converts raw input into DocumentKind.
func ParseDocumentKind(value string) (DocumentKind, error) {
	for _, candidate := range validDocumentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document kind %q", value)
}

// DocumentStatus maps to the document_status enum in Postgres.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusRejected DocumentStatus = "rejected"
)

var validDocumentStatuses = []DocumentStatus{
	DocumentStatusPending,
	DocumentStatusApproved,
	DocumentStatusRejected,
}

// String implements fmt.Stringer.
func (d DocumentStatus) String() string {
	return string(d)
}

// IsValid reports whether the value matches the canonical document_status enum.
func (d DocumentStatus) IsValid() bool {
	for _, candidate := range validDocumentStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}
