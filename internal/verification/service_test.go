package verification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
	"github.com/greia-app/verification-backend/pkg/identity"
	"github.com/greia-app/verification-backend/pkg/logger"
)

type stubVerificationRepo struct {
	sessions  map[uuid.UUID]*models.VerificationSession
	createErr error

	createdDocs []models.VerificationDocument
	docsErr     error

	reviews []*models.DocumentReview

	updatedStatuses []enums.VerificationStatus
	statusRows      int64
	statusErr       error

	providerID     string
	providerSecret string
}

func newStubVerificationRepo() *stubVerificationRepo {
	return &stubVerificationRepo{
		sessions:   map[uuid.UUID]*models.VerificationSession{},
		statusRows: 1,
	}
}

func (s *stubVerificationRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubVerificationRepo) CreateSession(ctx context.Context, session *models.VerificationSession) error {
	if s.createErr != nil {
		return s.createErr
	}
	// Mirrors the partial unique index: one non-terminal session per user.
	for _, existing := range s.sessions {
		if existing.UserID == session.UserID && !existing.Status.IsTerminal() {
			return errors.New(`duplicate key value violates unique constraint "uniq_verification_sessions_user_in_flight"`)
		}
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *stubVerificationRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.VerificationSession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *stubVerificationRepo) FindSessionWithDocuments(ctx context.Context, id uuid.UUID) (*models.VerificationSession, error) {
	return s.FindSessionByID(ctx, id)
}

func (s *stubVerificationRepo) UpdateProviderHandle(ctx context.Context, id uuid.UUID, providerSessionID, clientSecret string) error {
	s.providerID = providerSessionID
	s.providerSecret = clientSecret
	return nil
}

func (s *stubVerificationRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.VerificationStatus, completedAt *time.Time, reason *string) (int64, error) {
	if s.statusErr != nil {
		return 0, s.statusErr
	}
	s.updatedStatuses = append(s.updatedStatuses, status)
	if session, ok := s.sessions[id]; ok && s.statusRows > 0 {
		session.Status = status
		session.CompletedAt = completedAt
		session.RejectionReason = reason
	}
	return s.statusRows, nil
}

func (s *stubVerificationRepo) CreateDocuments(ctx context.Context, docs []models.VerificationDocument) error {
	if s.docsErr != nil {
		return s.docsErr
	}
	s.createdDocs = append(s.createdDocs, docs...)
	return nil
}

func (s *stubVerificationRepo) UpdateDocumentStatuses(ctx context.Context, verificationID uuid.UUID, status enums.DocumentStatus) error {
	return nil
}

func (s *stubVerificationRepo) CreateReview(ctx context.Context, review *models.DocumentReview) error {
	s.reviews = append(s.reviews, review)
	return nil
}

func (s *stubVerificationRepo) ListPendingOlderThan(ctx context.Context, status enums.VerificationStatus, cutoff time.Time, limit int) ([]models.VerificationSession, error) {
	return nil, nil
}

type stubUsersRepo struct {
	user         *models.User
	findErr      error
	updatedLevel enums.VerificationLevel
	updateErr    error
}

func (s *stubUsersRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUsersRepo) UpdateVerificationLevelWithTx(tx *gorm.DB, id uuid.UUID, level enums.VerificationLevel, at time.Time) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedLevel = level
	return nil
}

type stubIdentity struct {
	session   *identity.Session
	createErr error
	status    identity.SessionStatus
	statusErr error
	lastReq   identity.CreateSessionRequest
}

func (s *stubIdentity) CreateSession(ctx context.Context, req identity.CreateSessionRequest) (*identity.Session, error) {
	s.lastReq = req
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.session, nil
}

func (s *stubIdentity) GetSessionStatus(ctx context.Context, sessionID string) (identity.SessionStatus, error) {
	if s.statusErr != nil {
		return "", s.statusErr
	}
	return s.status, nil
}

type stubNotifier struct {
	started  int
	approved int
	rejected int
	info     int
	reason   string
}

func (s *stubNotifier) VerificationStarted(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	s.started++
}

func (s *stubNotifier) VerificationApproved(ctx context.Context, user *models.User, verificationID uuid.UUID, level enums.VerificationLevel) {
	s.approved++
}

func (s *stubNotifier) VerificationRejected(ctx context.Context, user *models.User, verificationID uuid.UUID, reason string) {
	s.rejected++
	s.reason = reason
}

func (s *stubNotifier) InfoRequested(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	s.info++
}

type stubSigner struct {
	uploadErr error
}

func (s *stubSigner) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?signed=put", nil
}

func (s *stubSigner) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?signed=get", nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fixture struct {
	svc      Service
	repo     *stubVerificationRepo
	users    *stubUsersRepo
	identity *stubIdentity
	notify   *stubNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newStubVerificationRepo()
	users := &stubUsersRepo{user: &models.User{
		ID:        uuid.New(),
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Byrne",
	}}
	identityStub := &stubIdentity{
		session: &identity.Session{ID: "sess_1", ClientSecret: "secret_1", Status: identity.SessionStatusCreated},
		status:  identity.SessionStatusProcessing,
	}
	notify := &stubNotifier{}

	svc, err := NewService(ServiceParams{
		DB:          stubTxRunner{},
		Repo:        repo,
		Users:       users,
		Identity:    identityStub,
		Notifier:    notify,
		GCS:         &stubSigner{},
		Bucket:      "greia-verification-docs",
		UploadTTL:   15 * time.Minute,
		DownloadTTL: time.Hour,
		Logger:      logger.New(logger.Options{ServiceName: "verification-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	return &fixture{svc: svc, repo: repo, users: users, identity: identityStub, notify: notify}
}

func TestInitiateVerificationCreatesSessionAndProviderHandle(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.InitiateVerification(context.Background(), f.users.user.ID, enums.VerificationLevelBasic)
	if err != nil {
		t.Fatalf("initiate verification: %v", err)
	}

	if result.VerificationID == uuid.Nil {
		t.Fatal("expected verification id")
	}
	if result.ClientSecret != "secret_1" {
		t.Fatalf("unexpected client secret %q", result.ClientSecret)
	}
	if f.repo.providerID != "sess_1" {
		t.Fatalf("provider handle not persisted, got %q", f.repo.providerID)
	}
	if f.identity.lastReq.ReferenceID != result.VerificationID.String() {
		t.Fatal("provider session missing correlation reference")
	}
	if f.notify.started != 1 {
		t.Fatalf("expected start notification, got %d", f.notify.started)
	}

	session := f.repo.sessions[result.VerificationID]
	if session.Status != enums.VerificationStatusPending {
		t.Fatalf("expected pending session, got %s", session.Status)
	}
}

func TestInitiateVerificationMapsInFlightConstraintToConflict(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New(`duplicate key value violates unique constraint "uniq_verification_sessions_user_in_flight"`)

	_, err := f.svc.InitiateVerification(context.Background(), f.users.user.ID, enums.VerificationLevelBasic)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.notify.started != 0 {
		t.Fatal("no notification expected on conflict")
	}
}

func TestInitiateVerificationConflictsWhileAwaitingMoreInfo(t *testing.T) {
	f := newFixture(t)
	seedSession(f, enums.VerificationStatusAwaitingMoreInfo)

	_, err := f.svc.InitiateVerification(context.Background(), f.users.user.ID, enums.VerificationLevelBasic)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict while awaiting more info, got %v", err)
	}
}

func TestInitiateVerificationAllowedAfterTerminalSession(t *testing.T) {
	f := newFixture(t)
	seedSession(f, enums.VerificationStatusRejected)

	result, err := f.svc.InitiateVerification(context.Background(), f.users.user.ID, enums.VerificationLevelBasic)
	if err != nil {
		t.Fatalf("initiate after rejection: %v", err)
	}
	if result.VerificationID == uuid.Nil {
		t.Fatal("expected verification id")
	}
}

func TestInitiateVerificationProviderFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.identity.createErr = errors.New("provider unavailable")

	_, err := f.svc.InitiateVerification(context.Background(), f.users.user.ID, enums.VerificationLevelProfessional)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if f.repo.providerID != "" {
		t.Fatal("provider handle should not be persisted")
	}
}

func TestSubmitDocumentsRejectsExpiredDocumentWithoutPersisting(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)

	yesterday := time.Now().Add(-24 * time.Hour)
	err := f.svc.SubmitDocuments(context.Background(), f.users.user.ID, session.ID, []DocumentInput{
		{
			Kind:           enums.DocumentKindIdentity,
			DocumentType:   "passport",
			IssuingCountry: "IE",
			ObjectKeys:     []string{"verifications/x/passport.png"},
		},
		{
			Kind:           enums.DocumentKindAddress,
			DocumentType:   "utility_bill",
			IssuingCountry: "IE",
			ExpiryDate:     &yesterday,
			ObjectKeys:     []string{"verifications/x/bill.pdf"},
		},
	})

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.repo.createdDocs) != 0 {
		t.Fatalf("expected zero persisted documents, got %d", len(f.repo.createdDocs))
	}
}

func TestSubmitDocumentsPassingChecksApprovesSession(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)

	err := f.svc.SubmitDocuments(context.Background(), f.users.user.ID, session.ID, []DocumentInput{
		{
			Kind:           enums.DocumentKindIdentity,
			DocumentType:   "passport",
			IssuingCountry: "IE",
			ObjectKeys:     []string{"verifications/x/passport.png"},
		},
	})
	if err != nil {
		t.Fatalf("submit documents: %v", err)
	}

	if len(f.repo.createdDocs) != 1 {
		t.Fatalf("expected one persisted document, got %d", len(f.repo.createdDocs))
	}
	if len(f.repo.reviews) != 1 {
		t.Fatalf("expected one review record, got %d", len(f.repo.reviews))
	}
	if f.repo.sessions[session.ID].Status != enums.VerificationStatusApproved {
		t.Fatalf("expected approved session, got %s", f.repo.sessions[session.ID].Status)
	}
	if f.users.updatedLevel != session.Level {
		t.Fatalf("expected user level %d, got %d", session.Level, f.users.updatedLevel)
	}
	if f.notify.approved != 1 {
		t.Fatal("expected approval notification")
	}
}

func TestSubmitDocumentsOnTerminalSessionFails(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusApproved)

	err := f.svc.SubmitDocuments(context.Background(), f.users.user.ID, session.ID, []DocumentInput{
		{
			Kind:           enums.DocumentKindIdentity,
			DocumentType:   "passport",
			IssuingCountry: "IE",
			ObjectKeys:     []string{"verifications/x/passport.png"},
		},
	})

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCheckStatusNotFoundForOtherUser(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)

	_, err := f.svc.CheckStatus(context.Background(), uuid.New(), session.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckStatusProviderVerifiedApproves(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)
	providerID := "sess_1"
	session.ProviderSessionID = &providerID
	f.identity.status = identity.SessionStatusVerified

	view, err := f.svc.CheckStatus(context.Background(), f.users.user.ID, session.ID)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if view.Status != enums.VerificationStatusApproved {
		t.Fatalf("expected approved snapshot, got %s", view.Status)
	}
	if f.notify.approved != 1 {
		t.Fatal("expected approval notification")
	}
}

func TestCheckStatusRequiresInputMovesToAwaitingMoreInfo(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)
	providerID := "sess_1"
	session.ProviderSessionID = &providerID
	f.identity.status = identity.SessionStatusRequiresInput

	view, err := f.svc.CheckStatus(context.Background(), f.users.user.ID, session.ID)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if view.Status != enums.VerificationStatusAwaitingMoreInfo {
		t.Fatalf("expected awaiting_more_info, got %s", view.Status)
	}
	if f.notify.info != 1 {
		t.Fatal("expected info-requested notification")
	}
}

func TestCheckStatusProviderOutageKeepsStoredState(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)
	providerID := "sess_1"
	session.ProviderSessionID = &providerID
	f.identity.statusErr = errors.New("timeout")

	view, err := f.svc.CheckStatus(context.Background(), f.users.user.ID, session.ID)
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if view.Status != enums.VerificationStatusPending {
		t.Fatalf("expected stored pending state, got %s", view.Status)
	}
}

func TestApproveOnTerminalSessionReturnsStateConflict(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusRejected)
	f.repo.statusRows = 0

	err := f.svc.Approve(context.Background(), session.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)

	err := f.svc.Reject(context.Background(), session.ID, "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRejectSendsReasonInNotification(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)

	if err := f.svc.Reject(context.Background(), session.ID, "Document expiry check failed"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if f.notify.rejected != 1 {
		t.Fatal("expected rejection notification")
	}
	if !strings.Contains(f.notify.reason, "Document expiry check failed") {
		t.Fatalf("unexpected reason %q", f.notify.reason)
	}
}

func TestCreateUploadURLReturnsKeyAndSignedURL(t *testing.T) {
	f := newFixture(t)
	session := seedSession(f, enums.VerificationStatusPending)

	result, err := f.svc.CreateUploadURL(context.Background(), f.users.user.ID, session.ID, "passport.png", "image/png")
	if err != nil {
		t.Fatalf("create upload url: %v", err)
	}
	if !strings.HasPrefix(result.ObjectKey, "verifications/"+session.ID.String()+"/") {
		t.Fatalf("unexpected object key %q", result.ObjectKey)
	}
	if !strings.Contains(result.UploadURL, result.ObjectKey) {
		t.Fatal("upload url should reference the object key")
	}
}

func seedSession(f *fixture, status enums.VerificationStatus) *models.VerificationSession {
	session := &models.VerificationSession{
		ID:        uuid.New(),
		UserID:    f.users.user.ID,
		Level:     enums.VerificationLevelProfessional,
		Status:    status,
		StartedAt: time.Now().UTC(),
	}
	f.repo.sessions[session.ID] = session
	return session
}
