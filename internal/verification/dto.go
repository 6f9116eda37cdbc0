package verification

import (
	"time"

	"github.com/google/uuid"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
)

// StartResult is returned by InitiateVerification: the local session id plus
// the opaque secret the frontend SDK needs to drive the capture flow.
type StartResult struct {
	VerificationID uuid.UUID `json:"verification_id"`
	ClientSecret   string    `json:"client_secret"`
}

// DocumentInput is one credential document in a submission batch.
type DocumentInput struct {
	Kind           enums.DocumentKind `json:"kind"`
	DocumentType   string             `json:"document_type"`
	DocumentNumber *string            `json:"document_number,omitempty"`
	IssuingCountry string             `json:"issuing_country"`
	ExpiryDate     *time.Time         `json:"expiry_date,omitempty"`
	ObjectKeys     []string           `json:"object_keys"`
}

// DocumentView is the API-facing shape of a submitted document.
type DocumentView struct {
	ID             uuid.UUID            `json:"id"`
	Kind           enums.DocumentKind   `json:"kind"`
	DocumentType   string               `json:"document_type"`
	DocumentNumber *string              `json:"document_number,omitempty"`
	IssuingCountry string               `json:"issuing_country"`
	ExpiryDate     *time.Time           `json:"expiry_date,omitempty"`
	Status         enums.DocumentStatus `json:"status"`
	SignedURLs     []string             `json:"signed_urls,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// SessionView is the session snapshot returned by CheckStatus.
type SessionView struct {
	ID              uuid.UUID                `json:"id"`
	UserID          uuid.UUID                `json:"user_id"`
	Level           enums.VerificationLevel  `json:"level"`
	Status          enums.VerificationStatus `json:"status"`
	StartedAt       time.Time                `json:"started_at"`
	CompletedAt     *time.Time               `json:"completed_at,omitempty"`
	RejectionReason *string                  `json:"rejection_reason,omitempty"`
	Documents       []DocumentView           `json:"documents"`
}

func toSessionView(session *models.VerificationSession) *SessionView {
	view := &SessionView{
		ID:              session.ID,
		UserID:          session.UserID,
		Level:           session.Level,
		Status:          session.Status,
		StartedAt:       session.StartedAt,
		CompletedAt:     session.CompletedAt,
		RejectionReason: session.RejectionReason,
		Documents:       make([]DocumentView, len(session.Documents)),
	}
	for i, doc := range session.Documents {
		view.Documents[i] = DocumentView{
			ID:             doc.ID,
			Kind:           doc.Kind,
			DocumentType:   doc.DocumentType,
			DocumentNumber: doc.DocumentNumber,
			IssuingCountry: doc.IssuingCountry,
			ExpiryDate:     doc.ExpiryDate,
			Status:         doc.Status,
			CreatedAt:      doc.CreatedAt,
		}
	}
	return view
}
