package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greia-app/verification-backend/internal/verification"
	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
	"github.com/greia-app/verification-backend/pkg/logger"
	"github.com/greia-app/verification-backend/pkg/registry"
)

type stubAgentsRepo struct {
	profiles map[uuid.UUID]*models.AgentProfile
	links    map[uuid.UUID]*models.AgentVerification

	upserts  int
	linkSeen *models.AgentVerification

	profileDecision enums.AgentProfileStatus
	profileReason   *string
	linkDecision    enums.AgentProfileStatus
	linkReason      *string
}

func newStubAgentsRepo() *stubAgentsRepo {
	return &stubAgentsRepo{
		profiles: map[uuid.UUID]*models.AgentProfile{},
		links:    map[uuid.UUID]*models.AgentVerification{},
	}
}

func (s *stubAgentsRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAgentsRepo) UpsertProfile(ctx context.Context, profile *models.AgentProfile) error {
	s.upserts++
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	s.profiles[profile.ID] = profile
	return nil
}

func (s *stubAgentsRepo) FindProfileByID(ctx context.Context, id uuid.UUID) (*models.AgentProfile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return profile, nil
}

func (s *stubAgentsRepo) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error) {
	for _, profile := range s.profiles {
		if profile.UserID == userID {
			return profile, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAgentsRepo) CreateLink(ctx context.Context, link *models.AgentVerification) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	s.links[link.VerificationID] = link
	s.linkSeen = link
	return nil
}

func (s *stubAgentsRepo) FindLinkByVerificationID(ctx context.Context, verificationID uuid.UUID) (*models.AgentVerification, error) {
	link, ok := s.links[verificationID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return link, nil
}

func (s *stubAgentsRepo) UpdateProfileDecision(ctx context.Context, id uuid.UUID, status enums.AgentProfileStatus, decidedAt time.Time, reason *string) error {
	s.profileDecision = status
	s.profileReason = reason
	return nil
}

func (s *stubAgentsRepo) UpdateLinkDecision(ctx context.Context, id uuid.UUID, status enums.AgentProfileStatus, decidedAt time.Time, reason *string) error {
	s.linkDecision = status
	s.linkReason = reason
	return nil
}

func (s *stubAgentsRepo) ListVerifiedWithLicenseExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error) {
	return nil, nil
}

func (s *stubAgentsRepo) ListVerifiedWithInsuranceExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error) {
	return nil, nil
}

func (s *stubAgentsRepo) MarkLicenseExpired(ctx context.Context, profileID uuid.UUID) error {
	return nil
}

type stubAgentUsers struct {
	user *models.User
}

func (s *stubAgentUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubBase struct {
	startResult *verification.StartResult
	startErr    error
	startCalls  int
	approves    int
	rejects     int
	reason      string
}

func (s *stubBase) StartSessionTx(ctx context.Context, tx *gorm.DB, user *models.User, level enums.VerificationLevel) (*verification.StartResult, error) {
	s.startCalls++
	if s.startErr != nil {
		return nil, s.startErr
	}
	return s.startResult, nil
}

func (s *stubBase) ApproveTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) (*models.VerificationSession, error) {
	s.approves++
	return &models.VerificationSession{ID: verificationID, Status: enums.VerificationStatusApproved}, nil
}

func (s *stubBase) RejectTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID, reason string) (*models.VerificationSession, error) {
	s.rejects++
	s.reason = reason
	return &models.VerificationSession{ID: verificationID, Status: enums.VerificationStatusRejected}, nil
}

type stubAgentNotifier struct {
	started  int
	approved int
	rejected int
	reason   string
}

func (s *stubAgentNotifier) AgentVerificationStarted(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	s.started++
}

func (s *stubAgentNotifier) VerificationApproved(ctx context.Context, user *models.User, verificationID uuid.UUID, level enums.VerificationLevel) {
	s.approved++
}

func (s *stubAgentNotifier) VerificationRejected(ctx context.Context, user *models.User, verificationID uuid.UUID, reason string) {
	s.rejected++
	s.reason = reason
}

type stubLicenseChecker struct {
	result *registry.CheckResult
	err    error
}

func (s *stubLicenseChecker) CheckLicense(ctx context.Context, req registry.LicenseCheckRequest) (*registry.CheckResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubInsuranceChecker struct {
	result *registry.CheckResult
	err    error
}

func (s *stubInsuranceChecker) CheckInsurance(ctx context.Context, req registry.InsuranceCheckRequest) (*registry.CheckResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubCompanyChecker struct {
	result *registry.CheckResult
	err    error
	calls  int
}

func (s *stubCompanyChecker) CheckCompany(ctx context.Context, req registry.CompanyCheckRequest) (*registry.CheckResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	svc       Service
	repo      *stubAgentsRepo
	users     *stubAgentUsers
	base      *stubBase
	licenses  *stubLicenseChecker
	insurers  *stubInsuranceChecker
	companies *stubCompanyChecker
	notify    *stubAgentNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newStubAgentsRepo()
	users := &stubAgentUsers{user: &models.User{
		ID:        uuid.New(),
		Email:     "niamh@example.com",
		FirstName: "Niamh",
		LastName:  "Keane",
	}}
	base := &stubBase{
		startResult: &verification.StartResult{VerificationID: uuid.New(), ClientSecret: "secret_1"},
	}
	licenses := &stubLicenseChecker{result: &registry.CheckResult{Valid: true}}
	insurers := &stubInsuranceChecker{result: &registry.CheckResult{Valid: true}}
	companies := &stubCompanyChecker{result: &registry.CheckResult{Valid: true}}
	notify := &stubAgentNotifier{}

	svc, err := NewService(ServiceParams{
		DB:        stubTxRunner{},
		Repo:      repo,
		Users:     users,
		Base:      base,
		Licenses:  licenses,
		Insurers:  insurers,
		Companies: companies,
		Notifier:  notify,
		Logger:    logger.New(logger.Options{ServiceName: "agents-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{
		svc:       svc,
		repo:      repo,
		users:     users,
		base:      base,
		licenses:  licenses,
		insurers:  insurers,
		companies: companies,
		notify:    notify,
	}
}

func validCredentials() Credentials {
	return Credentials{
		License: LicenseInput{
			Type:             "estate_agent",
			Number:           "PSR-004912",
			IssuingAuthority: "Property Services Regulatory Authority",
			IssuingCountry:   "IE",
			IssueDate:        time.Now().Add(-365 * 24 * time.Hour),
			ExpiryDate:       time.Now().Add(180 * 24 * time.Hour),
			Status:           enums.LicenseStatusActive,
		},
		Insurance: InsuranceInput{
			Provider:       "Hibernian Underwriting",
			PolicyNumber:   "PI-88231",
			Type:           enums.InsuranceTypeProfessionalIndemnity,
			CoverageAmount: decimal.NewFromInt(1_000_000),
			Currency:       "EUR",
			StartDate:      time.Now().Add(-30 * 24 * time.Hour),
			ExpiryDate:     time.Now().Add(335 * 24 * time.Hour),
			Documents:      []string{"verifications/x/policy.pdf"},
		},
	}
}

// seedAgent plants a profile and pending link as if initiation already ran.
func seedAgent(f *fixture, creds Credentials) (*models.AgentProfile, *models.AgentVerification) {
	profile := buildProfile(f.users.user.ID, creds)
	profile.ID = uuid.New()
	f.repo.profiles[profile.ID] = profile

	link := &models.AgentVerification{
		ID:             uuid.New(),
		VerificationID: uuid.New(),
		AgentProfileID: profile.ID,
		Level:          enums.VerificationLevelAgent,
		Status:         enums.AgentProfileStatusPending,
		StartedAt:      time.Now(),
	}
	f.repo.links[link.VerificationID] = link
	return profile, link
}

func TestInitiateAgentVerificationUpsertsProfileAndLink(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.InitiateAgentVerification(context.Background(), f.users.user.ID, enums.VerificationLevelAgent, validCredentials())
	if err != nil {
		t.Fatalf("initiate agent verification: %v", err)
	}

	if result.VerificationID != f.base.startResult.VerificationID {
		t.Fatal("expected verification id from base session")
	}
	if result.AgentProfileID == uuid.Nil {
		t.Fatal("expected agent profile id")
	}
	if result.ClientSecret != "secret_1" {
		t.Fatalf("unexpected client secret %q", result.ClientSecret)
	}
	if f.repo.upserts != 1 {
		t.Fatalf("expected one profile upsert, got %d", f.repo.upserts)
	}
	if f.repo.linkSeen == nil || f.repo.linkSeen.Status != enums.AgentProfileStatusPending {
		t.Fatal("expected pending verification link")
	}
	if f.repo.linkSeen.Level != enums.VerificationLevelAgent {
		t.Fatalf("link level mismatch: %d", f.repo.linkSeen.Level)
	}
	if f.notify.started != 1 {
		t.Fatalf("expected start notification, got %d", f.notify.started)
	}
}

func TestInitiateAgentVerificationRejectsExpiredLicenseBeforeAnyWrite(t *testing.T) {
	f := newFixture(t)
	creds := validCredentials()
	creds.License.ExpiryDate = time.Now().Add(-24 * time.Hour)

	_, err := f.svc.InitiateAgentVerification(context.Background(), f.users.user.ID, enums.VerificationLevelAgent, creds)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.repo.upserts != 0 {
		t.Fatal("no profile should be written")
	}
	if f.base.startCalls != 0 {
		t.Fatal("base session should not be started")
	}
}

func TestInitiateAgentVerificationRequiresPositiveCoverage(t *testing.T) {
	f := newFixture(t)
	creds := validCredentials()
	creds.Insurance.CoverageAmount = decimal.Zero

	_, err := f.svc.InitiateAgentVerification(context.Background(), f.users.user.ID, enums.VerificationLevelAgent, creds)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInitiateAgentVerificationPremiumTierRequiresAgency(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.InitiateAgentVerification(context.Background(), f.users.user.ID, enums.VerificationLevelPremiumAgent, validCredentials())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.repo.upserts != 0 {
		t.Fatal("no profile should be written")
	}
}

func TestInitiateAgentVerificationPremiumTierAcceptsAgency(t *testing.T) {
	f := newFixture(t)
	creds := validCredentials()
	creds.Agency = &AgencyInput{
		CompanyName:        "Greystone Lettings Ltd",
		RegistrationNumber: "IE-553201",
		Address:            "4 Dame Street, Dublin 2",
		ContactEmail:       "office@greystone.example",
	}

	result, err := f.svc.InitiateAgentVerification(context.Background(), f.users.user.ID, enums.VerificationLevelPremiumAgent, creds)
	if err != nil {
		t.Fatalf("initiate premium agent verification: %v", err)
	}
	if result.AgentProfileID == uuid.Nil {
		t.Fatal("expected agent profile id")
	}
	if f.repo.upserts != 1 {
		t.Fatalf("expected one profile upsert, got %d", f.repo.upserts)
	}
}

func TestInitiateAgentVerificationRejectsNonLicensedTier(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.InitiateAgentVerification(context.Background(), f.users.user.ID, enums.VerificationLevelBasic, validCredentials())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyAgentCredentialsApprovesWithVacuousAgencyPass(t *testing.T) {
	f := newFixture(t)
	profile, link := seedAgent(f, validCredentials())

	result, err := f.svc.VerifyAgentCredentials(context.Background(), link.VerificationID, profile.ID)
	if err != nil {
		t.Fatalf("verify agent credentials: %v", err)
	}

	if !result.Success || !result.LicenseVerified || !result.InsuranceVerified {
		t.Fatalf("expected full pass, got %+v", result)
	}
	if !result.AgencyVerified {
		t.Fatal("absent agency must pass vacuously")
	}
	if f.companies.calls != 0 {
		t.Fatal("company registry must not be called without a submitted agency")
	}
	if f.base.approves != 1 {
		t.Fatalf("expected base approval, got %d", f.base.approves)
	}
	if f.repo.profileDecision != enums.AgentProfileStatusVerified {
		t.Fatalf("profile not verified: %s", f.repo.profileDecision)
	}
	if f.repo.linkDecision != enums.AgentProfileStatusVerified {
		t.Fatalf("link not verified: %s", f.repo.linkDecision)
	}
	if f.notify.approved != 1 {
		t.Fatalf("expected approval notification, got %d", f.notify.approved)
	}
}

func TestVerifyAgentCredentialsFailsClosedOnInsuranceOutage(t *testing.T) {
	f := newFixture(t)
	profile, link := seedAgent(f, validCredentials())
	f.insurers.err = errors.New("connection reset by peer")

	result, err := f.svc.VerifyAgentCredentials(context.Background(), link.VerificationID, profile.ID)
	if err != nil {
		t.Fatalf("outage must not propagate: %v", err)
	}

	if result.Success || result.InsuranceVerified {
		t.Fatalf("expected fail-closed insurance check, got %+v", result)
	}
	if result.RejectionReason != insuranceFailureMessage {
		t.Fatalf("unexpected reason %q", result.RejectionReason)
	}
	if f.base.rejects != 1 {
		t.Fatalf("expected base rejection, got %d", f.base.rejects)
	}
	if f.repo.profileDecision != enums.AgentProfileStatusRejected {
		t.Fatalf("profile not rejected: %s", f.repo.profileDecision)
	}
	if f.repo.profileReason == nil || *f.repo.profileReason != insuranceFailureMessage {
		t.Fatal("profile rejection reason not recorded")
	}
	if f.notify.rejected != 1 || f.notify.reason != insuranceFailureMessage {
		t.Fatalf("expected rejection notification with reason, got %q", f.notify.reason)
	}
}

func TestVerifyAgentCredentialsJoinsMultipleFailureMessages(t *testing.T) {
	f := newFixture(t)
	creds := validCredentials()
	agency := AgencyInput{
		CompanyName:        "Keane & Daughters Estates",
		RegistrationNumber: "CRO-554120",
		Address:            "4 Merchants Quay, Galway",
		ContactEmail:       "office@keane-estates.ie",
		Documents:          []string{"verifications/x/cro.pdf"},
	}
	creds.Agency = &agency
	profile, link := seedAgent(f, creds)

	f.licenses.result = &registry.CheckResult{Valid: false, Reason: "not on register"}
	f.companies.result = &registry.CheckResult{Valid: false, Reason: "dissolved"}

	result, err := f.svc.VerifyAgentCredentials(context.Background(), link.VerificationID, profile.ID)
	if err != nil {
		t.Fatalf("verify agent credentials: %v", err)
	}

	if result.Success {
		t.Fatal("expected rejection")
	}
	want := licenseFailureMessage + ", " + agencyFailureMessage
	if result.RejectionReason != want {
		t.Fatalf("reason %q, want %q", result.RejectionReason, want)
	}
	if f.companies.calls != 1 {
		t.Fatalf("expected one company registry call, got %d", f.companies.calls)
	}
}

func TestVerifyAgentCredentialsRechecksInsuranceExpiry(t *testing.T) {
	f := newFixture(t)
	creds := validCredentials()
	creds.Insurance.ExpiryDate = time.Now().Add(-time.Hour)
	profile, link := seedAgent(f, creds)

	result, err := f.svc.VerifyAgentCredentials(context.Background(), link.VerificationID, profile.ID)
	if err != nil {
		t.Fatalf("verify agent credentials: %v", err)
	}

	if result.InsuranceVerified {
		t.Fatal("provider-confirmed but expired policy must fail")
	}
	if result.Success {
		t.Fatal("expected rejection")
	}
}

func TestVerifyAgentCredentialsRejectsTerminalLink(t *testing.T) {
	f := newFixture(t)
	profile, link := seedAgent(f, validCredentials())
	link.Status = enums.AgentProfileStatusVerified

	_, err := f.svc.VerifyAgentCredentials(context.Background(), link.VerificationID, profile.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if f.base.approves != 0 || f.base.rejects != 0 {
		t.Fatal("no cascade expected on terminal link")
	}
}

func TestVerifyAgentCredentialsMismatchedProfileIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, link := seedAgent(f, validCredentials())

	_, err := f.svc.VerifyAgentCredentials(context.Background(), link.VerificationID, uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
