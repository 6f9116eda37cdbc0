package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/greia-app/verification-backend/internal/verification"
	"github.com/greia-app/verification-backend/pkg/db/models"
	dbtypes "github.com/greia-app/verification-backend/pkg/db/types"
	"github.com/greia-app/verification-backend/pkg/enums"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
	"github.com/greia-app/verification-backend/pkg/logger"
	"github.com/greia-app/verification-backend/pkg/registry"
)

const (
	licenseFailureMessage   = "License verification failed"
	insuranceFailureMessage = "Insurance verification failed"
	agencyFailureMessage    = "Agency verification failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// baseWorkflow is the slice of the verification service the agent flow composes
// on top of. The agent flow owns the transaction and the notifications.
type baseWorkflow interface {
	StartSessionTx(ctx context.Context, tx *gorm.DB, user *models.User, level enums.VerificationLevel) (*verification.StartResult, error)
	ApproveTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) (*models.VerificationSession, error)
	RejectTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID, reason string) (*models.VerificationSession, error)
}

type notifier interface {
	AgentVerificationStarted(ctx context.Context, user *models.User, verificationID uuid.UUID)
	VerificationApproved(ctx context.Context, user *models.User, verificationID uuid.UUID, level enums.VerificationLevel)
	VerificationRejected(ctx context.Context, user *models.User, verificationID uuid.UUID, reason string)
}

// Service owns the licensed-agent verification workflow layered on top of the
// base identity verification.
type Service interface {
	InitiateAgentVerification(ctx context.Context, userID uuid.UUID, level enums.VerificationLevel, creds Credentials) (*StartResult, error)
	VerifyAgentCredentials(ctx context.Context, verificationID, agentProfileID uuid.UUID) (*CheckResult, error)
}

// ServiceParams packages the dependencies for the agent workflow.
type ServiceParams struct {
	DB        txRunner
	Repo      Repository
	Users     usersRepository
	Base      baseWorkflow
	Licenses  registry.LicenseChecker
	Insurers  registry.InsuranceChecker
	Companies registry.CompanyChecker
	Notifier  notifier
	Logger    *logger.Logger
}

type service struct {
	db        txRunner
	repo      Repository
	users     usersRepository
	base      baseWorkflow
	licenses  registry.LicenseChecker
	insurers  registry.InsuranceChecker
	companies registry.CompanyChecker
	notifier  notifier
	logg      *logger.Logger
}

// NewService builds the agent verification service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("agents repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Base == nil {
		return nil, fmt.Errorf("base verification workflow required")
	}
	if params.Licenses == nil {
		return nil, fmt.Errorf("license checker required")
	}
	if params.Insurers == nil {
		return nil, fmt.Errorf("insurance checker required")
	}
	if params.Companies == nil {
		return nil, fmt.Errorf("company checker required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		users:     params.Users,
		base:      params.Base,
		licenses:  params.Licenses,
		insurers:  params.Insurers,
		companies: params.Companies,
		notifier:  params.Notifier,
		logg:      params.Logger,
	}, nil
}

func (s *service) InitiateAgentVerification(ctx context.Context, userID uuid.UUID, level enums.VerificationLevel, creds Credentials) (*StartResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !level.IsValid() || !level.RequiresLicense() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent verification requires a licensed tier")
	}
	if err := validateCredentials(level, creds, time.Now().UTC()); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	profile := buildProfile(userID, creds)

	var result StartResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		scoped := s.repo.WithTx(tx)

		if txErr := scoped.UpsertProfile(ctx, profile); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "upsert agent profile")
		}

		started, txErr := s.base.StartSessionTx(ctx, tx, user, level)
		if txErr != nil {
			return txErr
		}

		link := &models.AgentVerification{
			VerificationID: started.VerificationID,
			AgentProfileID: profile.ID,
			Level:          level,
			Status:         enums.AgentProfileStatusPending,
			StartedAt:      time.Now().UTC(),
		}
		if txErr := scoped.CreateLink(ctx, link); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "create agent verification link")
		}

		result = StartResult{
			VerificationID: started.VerificationID,
			AgentProfileID: profile.ID,
			ClientSecret:   started.ClientSecret,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.AgentVerificationStarted(ctx, user, result.VerificationID)

	return &result, nil
}

func (s *service) VerifyAgentCredentials(ctx context.Context, verificationID, agentProfileID uuid.UUID) (*CheckResult, error) {
	if verificationID == uuid.Nil || agentProfileID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification and agent profile ids are required")
	}

	link, err := s.repo.FindLinkByVerificationID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent verification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load agent verification")
	}
	if link.AgentProfileID != agentProfileID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent verification not found")
	}
	if link.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "agent verification already completed")
	}

	profile, err := s.repo.FindProfileByID(ctx, agentProfileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "agent profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load agent profile")
	}

	user, err := s.users.FindByID(ctx, profile.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}

	outcome := s.runRegistryChecks(ctx, profile, user)

	result := CheckResult{
		Success:           outcome.passed(),
		LicenseVerified:   outcome.license,
		InsuranceVerified: outcome.insurance,
		AgencyVerified:    outcome.agency,
	}

	decidedAt := time.Now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		scoped := s.repo.WithTx(tx)

		if result.Success {
			if _, txErr := s.base.ApproveTx(ctx, tx, verificationID); txErr != nil {
				return txErr
			}
			if txErr := scoped.UpdateProfileDecision(ctx, profile.ID, enums.AgentProfileStatusVerified, decidedAt, nil); txErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "update agent profile status")
			}
			return scoped.UpdateLinkDecision(ctx, link.ID, enums.AgentProfileStatusVerified, decidedAt, nil)
		}

		reason := outcome.rejectionReason()
		result.RejectionReason = reason

		if _, txErr := s.base.RejectTx(ctx, tx, verificationID, reason); txErr != nil {
			return txErr
		}
		if txErr := scoped.UpdateProfileDecision(ctx, profile.ID, enums.AgentProfileStatusRejected, decidedAt, &reason); txErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, txErr, "update agent profile status")
		}
		return scoped.UpdateLinkDecision(ctx, link.ID, enums.AgentProfileStatusRejected, decidedAt, &reason)
	})
	if err != nil {
		return nil, err
	}

	if result.Success {
		s.notifier.VerificationApproved(ctx, user, verificationID, link.Level)
	} else {
		s.notifier.VerificationRejected(ctx, user, verificationID, result.RejectionReason)
	}

	return &result, nil
}

type checksOutcome struct {
	license   bool
	insurance bool
	agency    bool
}

func (c checksOutcome) passed() bool {
	return c.license && c.insurance && c.agency
}

func (c checksOutcome) rejectionReason() string {
	var failures []string
	if !c.license {
		failures = append(failures, licenseFailureMessage)
	}
	if !c.insurance {
		failures = append(failures, insuranceFailureMessage)
	}
	if !c.agency {
		failures = append(failures, agencyFailureMessage)
	}
	return strings.Join(failures, ", ")
}

// runRegistryChecks fans the external lookups out concurrently. Every provider
// error is converted to a failed check rather than propagated: absence of proof
// of validity is itself a rejection reason, and an outage must never approve an
// agent. The agency check passes vacuously when no agency was submitted.
func (s *service) runRegistryChecks(ctx context.Context, profile *models.AgentProfile, user *models.User) checksOutcome {
	var outcome checksOutcome

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		res, err := s.licenses.CheckLicense(groupCtx, registry.LicenseCheckRequest{
			Number:           profile.License.Number,
			Type:             profile.License.Type,
			IssuingAuthority: profile.License.IssuingAuthority,
			IssuingCountry:   profile.License.IssuingCountry,
			HolderFirstName:  user.FirstName,
			HolderLastName:   user.LastName,
		})
		if err != nil {
			s.logg.Error(s.logg.WithAgentProfileID(ctx, profile.ID.String()), "license registry check failed closed", err)
			return nil
		}
		outcome.license = res.Valid
		return nil
	})

	group.Go(func() error {
		res, err := s.insurers.CheckInsurance(groupCtx, registry.InsuranceCheckRequest{
			Provider:       profile.Insurance.Provider,
			PolicyNumber:   profile.Insurance.PolicyNumber,
			Type:           profile.Insurance.Type.String(),
			CoverageAmount: profile.Insurance.CoverageAmount.String(),
			Currency:       profile.Insurance.Currency,
		})
		if err != nil {
			s.logg.Error(s.logg.WithAgentProfileID(ctx, profile.ID.String()), "insurance registry check failed closed", err)
			return nil
		}
		// Provider caches lag; a confirmed policy that expired before this
		// point still fails.
		outcome.insurance = res.Valid && profile.Insurance.ExpiryDate.After(time.Now().UTC())
		return nil
	})

	group.Go(func() error {
		if !profile.AgencySubmitted {
			outcome.agency = true
			return nil
		}
		res, err := s.companies.CheckCompany(groupCtx, registry.CompanyCheckRequest{
			CompanyName:        derefString(profile.Agency.CompanyName),
			RegistrationNumber: derefString(profile.Agency.RegistrationNumber),
			VATNumber:          derefString(profile.Agency.VATNumber),
		})
		if err != nil {
			s.logg.Error(s.logg.WithAgentProfileID(ctx, profile.ID.String()), "company registry check failed closed", err)
			return nil
		}
		outcome.agency = res.Valid
		return nil
	})

	// The closures above never return errors; the group is used for the fan-out
	// and the shared cancellation context only.
	_ = group.Wait()

	return outcome
}

func validateCredentials(level enums.VerificationLevel, creds Credentials, now time.Time) error {
	if !creds.License.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid license status")
	}
	if creds.License.Status != enums.LicenseStatusActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "license is not active")
	}
	if creds.License.ExpiryDate.Before(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "license has expired")
	}
	if strings.TrimSpace(creds.License.Number) == "" ||
		strings.TrimSpace(creds.License.Type) == "" ||
		strings.TrimSpace(creds.License.IssuingAuthority) == "" ||
		strings.TrimSpace(creds.License.IssuingCountry) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "license details are incomplete")
	}

	if !creds.Insurance.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid insurance type")
	}
	if creds.Insurance.ExpiryDate.Before(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "insurance policy has expired")
	}
	if !creds.Insurance.CoverageAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "insurance coverage amount must be positive")
	}
	if strings.TrimSpace(creds.Insurance.Provider) == "" ||
		strings.TrimSpace(creds.Insurance.PolicyNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "insurance details are incomplete")
	}
	if len(creds.Insurance.Documents) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "insurance documents are required")
	}

	// The premium tier is an agency-backed tier; solo agents stop at level 3.
	if level == enums.VerificationLevelPremiumAgent && creds.Agency == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "agency details are required for premium agent verification")
	}
	if creds.Agency != nil {
		if strings.TrimSpace(creds.Agency.CompanyName) == "" ||
			strings.TrimSpace(creds.Agency.RegistrationNumber) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "agency details are incomplete")
		}
	}

	return nil
}

func buildProfile(userID uuid.UUID, creds Credentials) *models.AgentProfile {
	profile := &models.AgentProfile{
		UserID: userID,
		License: models.AgentLicense{
			Type:             creds.License.Type,
			Number:           creds.License.Number,
			IssuingAuthority: creds.License.IssuingAuthority,
			IssuingCountry:   creds.License.IssuingCountry,
			IssueDate:        creds.License.IssueDate,
			ExpiryDate:       creds.License.ExpiryDate,
			Status:           creds.License.Status,
		},
		Insurance: models.InsuranceDetails{
			Provider:       creds.Insurance.Provider,
			PolicyNumber:   creds.Insurance.PolicyNumber,
			Type:           creds.Insurance.Type,
			CoverageAmount: creds.Insurance.CoverageAmount,
			Currency:       creds.Insurance.Currency,
			StartDate:      creds.Insurance.StartDate,
			ExpiryDate:     creds.Insurance.ExpiryDate,
			Documents:      dbtypes.StringArray(creds.Insurance.Documents),
		},
		Status: enums.AgentProfileStatusPending,
	}

	if creds.Agency != nil {
		profile.AgencySubmitted = true
		profile.Agency = models.AgencyDetails{
			CompanyName:        &creds.Agency.CompanyName,
			RegistrationNumber: &creds.Agency.RegistrationNumber,
			VATNumber:          creds.Agency.VATNumber,
			Address:            &creds.Agency.Address,
			ContactEmail:       &creds.Agency.ContactEmail,
			ContactPhone:       creds.Agency.ContactPhone,
			Documents:          dbtypes.StringArray(creds.Agency.Documents),
		}
	}

	return profile
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
