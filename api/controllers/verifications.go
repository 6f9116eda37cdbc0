package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/greia-app/verification-backend/api/middleware"
	"github.com/greia-app/verification-backend/api/responses"
	"github.com/greia-app/verification-backend/api/validators"
	"github.com/greia-app/verification-backend/internal/verification"
	"github.com/greia-app/verification-backend/pkg/enums"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
	"github.com/greia-app/verification-backend/pkg/logger"
)

type startVerificationRequest struct {
	Level int `json:"level" validate:"required,min=1,max=4"`
}

type submitDocumentRequest struct {
	Kind           string     `json:"kind" validate:"required"`
	DocumentType   string     `json:"document_type" validate:"required"`
	DocumentNumber *string    `json:"document_number,omitempty"`
	IssuingCountry string     `json:"issuing_country" validate:"required"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	ObjectKeys     []string   `json:"object_keys" validate:"required,min=1"`
}

type submitDocumentsRequest struct {
	Documents []submitDocumentRequest `json:"documents" validate:"required,min=1,dive"`
}

type uploadURLRequest struct {
	VerificationID string `json:"verification_id" validate:"required,uuid"`
	Filename       string `json:"filename" validate:"required"`
	ContentType    string `json:"content_type" validate:"required"`
}

// StartVerification opens a new verification session for the caller.
func StartVerification(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req startVerificationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.InitiateVerification(r.Context(), userID, enums.VerificationLevel(req.Level))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// GetVerification returns the caller's session snapshot with its documents.
func GetVerification(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verificationID, err := pathUUID(r, "verificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.CheckStatus(r.Context(), userID, verificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// SubmitDocuments attaches a batch of documents to the caller's session.
func SubmitDocuments(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verificationID, err := pathUUID(r, "verificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req submitDocumentsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		docs := make([]verification.DocumentInput, len(req.Documents))
		for i, doc := range req.Documents {
			docs[i] = verification.DocumentInput{
				Kind:           enums.DocumentKind(doc.Kind),
				DocumentType:   doc.DocumentType,
				DocumentNumber: doc.DocumentNumber,
				IssuingCountry: doc.IssuingCountry,
				ExpiryDate:     doc.ExpiryDate,
				ObjectKeys:     doc.ObjectKeys,
			}
		}

		if err := svc.SubmitDocuments(r.Context(), userID, verificationID, docs); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "submitted"})
	}
}

// CreateUploadURL issues a signed PUT URL for one document file.
func CreateUploadURL(svc verification.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req uploadURLRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		verificationID, err := parseUUIDField(req.VerificationID, "verification id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateUploadURL(r.Context(), userID, verificationID, req.Filename, req.ContentType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

func parseUUIDField(value, field string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return parsed, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	value, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return value, nil
}
