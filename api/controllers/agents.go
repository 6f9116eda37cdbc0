package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greia-app/verification-backend/api/responses"
	"github.com/greia-app/verification-backend/api/validators"
	"github.com/greia-app/verification-backend/internal/agents"
	"github.com/greia-app/verification-backend/pkg/enums"
	"github.com/greia-app/verification-backend/pkg/logger"
)

type agentLicenseRequest struct {
	Type             string    `json:"type" validate:"required"`
	Number           string    `json:"number" validate:"required"`
	IssuingAuthority string    `json:"issuing_authority" validate:"required"`
	IssuingCountry   string    `json:"issuing_country" validate:"required"`
	IssueDate        time.Time `json:"issue_date" validate:"required"`
	ExpiryDate       time.Time `json:"expiry_date" validate:"required"`
	Status           string    `json:"status" validate:"required"`
}

type agentInsuranceRequest struct {
	Provider       string          `json:"provider" validate:"required"`
	PolicyNumber   string          `json:"policy_number" validate:"required"`
	Type           string          `json:"type" validate:"required"`
	CoverageAmount decimal.Decimal `json:"coverage_amount" validate:"required"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	StartDate      time.Time       `json:"start_date" validate:"required"`
	ExpiryDate     time.Time       `json:"expiry_date" validate:"required"`
	Documents      []string        `json:"documents" validate:"required,min=1"`
}

type agentAgencyRequest struct {
	CompanyName        string   `json:"company_name" validate:"required"`
	RegistrationNumber string   `json:"registration_number" validate:"required"`
	VATNumber          *string  `json:"vat_number,omitempty"`
	Address            string   `json:"address" validate:"required"`
	ContactEmail       string   `json:"contact_email" validate:"required,email"`
	ContactPhone       *string  `json:"contact_phone,omitempty"`
	Documents          []string `json:"documents,omitempty"`
}

type startAgentVerificationRequest struct {
	Level     int                   `json:"level" validate:"required,min=3,max=4"`
	License   agentLicenseRequest   `json:"license" validate:"required"`
	Insurance agentInsuranceRequest `json:"insurance" validate:"required"`
	Agency    *agentAgencyRequest   `json:"agency,omitempty"`
}

// StartAgentVerification begins the licensed-agent verification flow.
func StartAgentVerification(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req startAgentVerificationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		creds := agents.Credentials{
			License: agents.LicenseInput{
				Type:             req.License.Type,
				Number:           req.License.Number,
				IssuingAuthority: req.License.IssuingAuthority,
				IssuingCountry:   req.License.IssuingCountry,
				IssueDate:        req.License.IssueDate,
				ExpiryDate:       req.License.ExpiryDate,
				Status:           enums.LicenseStatus(req.License.Status),
			},
			Insurance: agents.InsuranceInput{
				Provider:       req.Insurance.Provider,
				PolicyNumber:   req.Insurance.PolicyNumber,
				Type:           enums.InsuranceType(req.Insurance.Type),
				CoverageAmount: req.Insurance.CoverageAmount,
				Currency:       req.Insurance.Currency,
				StartDate:      req.Insurance.StartDate,
				ExpiryDate:     req.Insurance.ExpiryDate,
				Documents:      req.Insurance.Documents,
			},
		}
		if req.Agency != nil {
			creds.Agency = &agents.AgencyInput{
				CompanyName:        req.Agency.CompanyName,
				RegistrationNumber: req.Agency.RegistrationNumber,
				VATNumber:          req.Agency.VATNumber,
				Address:            req.Agency.Address,
				ContactEmail:       req.Agency.ContactEmail,
				ContactPhone:       req.Agency.ContactPhone,
				Documents:          req.Agency.Documents,
			}
		}

		result, err := svc.InitiateAgentVerification(r.Context(), userID, enums.VerificationLevel(req.Level), creds)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type runAgentChecksRequest struct {
	AgentProfileID string `json:"agent_profile_id" validate:"required,uuid"`
}

// RunAgentChecks runs the external registry checks and applies the decision.
func RunAgentChecks(svc agents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		verificationID, err := pathUUID(r, "verificationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req runAgentChecksRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profileID, err := parseUUIDField(req.AgentProfileID, "agent profile id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyAgentCredentials(r.Context(), verificationID, profileID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
