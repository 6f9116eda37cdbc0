package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greia-app/verification-backend/pkg/db"
	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
	pkgerrors "github.com/greia-app/verification-backend/pkg/errors"
	"github.com/greia-app/verification-backend/pkg/identity"
	"github.com/greia-app/verification-backend/pkg/logger"
	"github.com/greia-app/verification-backend/pkg/metrics"
	"github.com/greia-app/verification-backend/pkg/storage/gcs"
)

const inFlightSessionConstraint = "uniq_verification_sessions_user_in_flight"

var checkFailureMessages = map[string]string{
	checkAuthenticity: "Document authenticity check failed",
	checkExpiry:       "Document expiry check failed",
	checkQuality:      "Document quality check failed",
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateVerificationLevelWithTx(tx *gorm.DB, id uuid.UUID, level enums.VerificationLevel, at time.Time) error
}

type identityClient interface {
	CreateSession(ctx context.Context, req identity.CreateSessionRequest) (*identity.Session, error)
	GetSessionStatus(ctx context.Context, sessionID string) (identity.SessionStatus, error)
}

type notifier interface {
	VerificationStarted(ctx context.Context, user *models.User, verificationID uuid.UUID)
	VerificationApproved(ctx context.Context, user *models.User, verificationID uuid.UUID, level enums.VerificationLevel)
	VerificationRejected(ctx context.Context, user *models.User, verificationID uuid.UUID, reason string)
	InfoRequested(ctx context.Context, user *models.User, verificationID uuid.UUID)
}

type gcsSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// UploadURLResult pairs the storage key with the signed PUT URL for one file.
type UploadURLResult struct {
	ObjectKey string `json:"object_key"`
	UploadURL string `json:"upload_url"`
}

// Service owns the lifecycle of verification sessions and their documents.
type Service interface {
	InitiateVerification(ctx context.Context, userID uuid.UUID, level enums.VerificationLevel) (*StartResult, error)
	SubmitDocuments(ctx context.Context, userID, verificationID uuid.UUID, docs []DocumentInput) error
	CheckStatus(ctx context.Context, userID, verificationID uuid.UUID) (*SessionView, error)
	Approve(ctx context.Context, verificationID uuid.UUID) error
	Reject(ctx context.Context, verificationID uuid.UUID, reason string) error
	CreateUploadURL(ctx context.Context, userID, verificationID uuid.UUID, filename, contentType string) (*UploadURLResult, error)

	// Transaction-scoped building blocks for workflows composed on top of this
	// one. Callers own the surrounding transaction and any notifications.
	StartSessionTx(ctx context.Context, tx *gorm.DB, user *models.User, level enums.VerificationLevel) (*StartResult, error)
	ApproveTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) (*models.VerificationSession, error)
	RejectTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID, reason string) (*models.VerificationSession, error)
}

// ServiceParams packages the dependencies for the verification workflow.
type ServiceParams struct {
	DB          txRunner
	Repo        Repository
	Users       usersRepository
	Identity    identityClient
	Notifier    notifier
	GCS         gcsSigner
	Bucket      string
	UploadTTL   time.Duration
	DownloadTTL time.Duration
	Logger      *logger.Logger

	// Metrics is optional; a nil receiver disables the counters.
	Metrics *metrics.VerificationDecisionMetrics
}

type service struct {
	db          txRunner
	repo        Repository
	users       usersRepository
	identity    identityClient
	notifier    notifier
	gcs         gcsSigner
	bucket      string
	uploadTTL   time.Duration
	downloadTTL time.Duration
	logg        *logger.Logger
	metrics     *metrics.VerificationDecisionMetrics
}

// NewService builds the verification service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("verification repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity client required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.GCS == nil {
		return nil, fmt.Errorf("gcs signer required")
	}
	if params.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if params.UploadTTL <= 0 || params.DownloadTTL <= 0 {
		return nil, fmt.Errorf("signed url ttls must be positive")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:          params.DB,
		repo:        params.Repo,
		users:       params.Users,
		identity:    params.Identity,
		notifier:    params.Notifier,
		gcs:         params.GCS,
		bucket:      params.Bucket,
		uploadTTL:   params.UploadTTL,
		downloadTTL: params.DownloadTTL,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}, nil
}

func (s *service) InitiateVerification(ctx context.Context, userID uuid.UUID, level enums.VerificationLevel) (*StartResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !level.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification level")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	var result *StartResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		started, txErr := s.StartSessionTx(ctx, tx, user, level)
		if txErr != nil {
			return txErr
		}
		result = started
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.VerificationStarted(ctx, user, result.VerificationID)
	return result, nil
}

// StartSessionTx creates the local session and the provider session inside the
// caller's transaction. A provider failure rolls the local row back, so no
// orphaned pending session survives an outage.
func (s *service) StartSessionTx(ctx context.Context, tx *gorm.DB, user *models.User, level enums.VerificationLevel) (*StartResult, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !level.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid verification level")
	}

	repo := s.repo.WithTx(tx)
	session := &models.VerificationSession{
		UserID:    user.ID,
		Level:     level,
		Status:    enums.VerificationStatusPending,
		StartedAt: time.Now().UTC(),
	}
	if err := repo.CreateSession(ctx, session); err != nil {
		if db.IsUniqueViolation(err, inFlightSessionConstraint) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "verification already in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification session")
	}

	providerSession, err := s.identity.CreateSession(ctx, identity.CreateSessionRequest{
		ReferenceID: session.ID.String(),
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Level:       int(level),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create provider session")
	}

	if err := repo.UpdateProviderHandle(ctx, session.ID, providerSession.ID, providerSession.ClientSecret); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist provider handle")
	}

	return &StartResult{
		VerificationID: session.ID,
		ClientSecret:   providerSession.ClientSecret,
	}, nil
}

func (s *service) SubmitDocuments(ctx context.Context, userID, verificationID uuid.UUID, docs []DocumentInput) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if verificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "verification id is required")
	}
	if len(docs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one document is required")
	}

	now := time.Now().UTC()
	for i, doc := range docs {
		if err := validateDocument(doc, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("document %d invalid", i+1))
		}
	}

	session, err := s.loadOwnedSession(ctx, userID, verificationID)
	if err != nil {
		return err
	}
	if session.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "verification already completed")
	}

	rows := make([]models.VerificationDocument, len(docs))
	for i, doc := range docs {
		rows[i] = models.VerificationDocument{
			VerificationID: session.ID,
			Kind:           doc.Kind,
			DocumentType:   strings.TrimSpace(doc.DocumentType),
			DocumentNumber: doc.DocumentNumber,
			IssuingCountry: strings.TrimSpace(doc.IssuingCountry),
			ExpiryDate:     doc.ExpiryDate,
			ObjectKeys:     doc.ObjectKeys,
			Status:         enums.DocumentStatusPending,
		}
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateDocuments(ctx, rows)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist documents")
	}

	return s.triggerDocumentReview(ctx, session, rows)
}

// triggerDocumentReview records the automated check run and routes the session
// to approval or rejection based on the outcome.
func (s *service) triggerDocumentReview(ctx context.Context, session *models.VerificationSession, docs []models.VerificationDocument) error {
	outcome := runDocumentChecks(docs, time.Now().UTC())

	review := &models.DocumentReview{
		VerificationID:   session.ID,
		AuthenticityPass: outcome.AuthenticityPass,
		ExpiryPass:       outcome.ExpiryPass,
		QualityPass:      outcome.QualityPass,
		FailedChecks:     outcome.FailedChecks,
	}
	if err := s.repo.CreateReview(ctx, review); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record document review")
	}

	if outcome.passed() {
		return s.Approve(ctx, session.ID)
	}

	reasons := make([]string, len(outcome.FailedChecks))
	for i, check := range outcome.FailedChecks {
		reasons[i] = checkFailureMessages[check]
	}
	return s.Reject(ctx, session.ID, strings.Join(reasons, ", "))
}

func (s *service) CheckStatus(ctx context.Context, userID, verificationID uuid.UUID) (*SessionView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if verificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification id is required")
	}

	session, err := s.repo.FindSessionWithDocuments(ctx, verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup verification")
	}
	if session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
	}

	if !session.Status.IsTerminal() && session.ProviderSessionID != nil {
		if err := s.syncProviderStatus(ctx, session); err != nil {
			return nil, err
		}
		session, err = s.repo.FindSessionWithDocuments(ctx, verificationID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload verification")
		}
	}

	view := toSessionView(session)
	for i, doc := range session.Documents {
		urls, err := s.signedReadURLs(doc.ObjectKeys)
		if err != nil {
			return nil, err
		}
		view.Documents[i].SignedURLs = urls
	}
	return view, nil
}

func (s *service) syncProviderStatus(ctx context.Context, session *models.VerificationSession) error {
	status, err := s.identity.GetSessionStatus(ctx, *session.ProviderSessionID)
	if err != nil {
		// A provider outage must not break status reads; the stored state is
		// still authoritative for the caller.
		s.logg.Warn(s.logg.WithVerificationID(ctx, session.ID.String()), "provider status poll failed")
		return nil
	}

	switch status {
	case identity.SessionStatusVerified:
		return s.Approve(ctx, session.ID)
	case identity.SessionStatusRequiresInput:
		if session.Status == enums.VerificationStatusAwaitingMoreInfo {
			return nil
		}
		if _, err := s.repo.UpdateStatus(ctx, session.ID, enums.VerificationStatusAwaitingMoreInfo, nil, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark awaiting more info")
		}
		if user, lookupErr := s.users.FindByID(ctx, session.UserID); lookupErr == nil {
			s.notifier.InfoRequested(ctx, user, session.ID)
		}
		return nil
	default:
		return nil
	}
}

func (s *service) Approve(ctx context.Context, verificationID uuid.UUID) error {
	var session *models.VerificationSession
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		approved, txErr := s.ApproveTx(ctx, tx, verificationID)
		if txErr != nil {
			return txErr
		}
		session = approved
		return nil
	})
	if err != nil {
		return err
	}

	if user, lookupErr := s.users.FindByID(ctx, session.UserID); lookupErr == nil {
		s.notifier.VerificationApproved(ctx, user, session.ID, session.Level)
	}
	return nil
}

// ApproveTx applies the terminal approval transition inside the caller's
// transaction: session status, document statuses, and the user's trust tier
// move together.
func (s *service) ApproveTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID) (*models.VerificationSession, error) {
	if verificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification id is required")
	}

	repo := s.repo.WithTx(tx)
	session, err := repo.FindSessionByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup verification")
	}

	now := time.Now().UTC()
	rows, err := repo.UpdateStatus(ctx, verificationID, enums.VerificationStatusApproved, &now, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve verification")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "verification already completed")
	}

	if err := repo.UpdateDocumentStatuses(ctx, verificationID, enums.DocumentStatusApproved); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve documents")
	}
	if err := s.users.UpdateVerificationLevelWithTx(tx, session.UserID, session.Level, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update verification level")
	}

	session.Status = enums.VerificationStatusApproved
	session.CompletedAt = &now
	s.metrics.IncApproved(session.Level.String())
	return session, nil
}

func (s *service) Reject(ctx context.Context, verificationID uuid.UUID, reason string) error {
	var session *models.VerificationSession
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rejected, txErr := s.RejectTx(ctx, tx, verificationID, reason)
		if txErr != nil {
			return txErr
		}
		session = rejected
		return nil
	})
	if err != nil {
		return err
	}

	if user, lookupErr := s.users.FindByID(ctx, session.UserID); lookupErr == nil {
		s.notifier.VerificationRejected(ctx, user, session.ID, reason)
	}
	return nil
}

// RejectTx applies the terminal rejection transition inside the caller's
// transaction.
func (s *service) RejectTx(ctx context.Context, tx *gorm.DB, verificationID uuid.UUID, reason string) (*models.VerificationSession, error) {
	if verificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}

	repo := s.repo.WithTx(tx)
	session, err := repo.FindSessionByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup verification")
	}

	now := time.Now().UTC()
	rows, err := repo.UpdateStatus(ctx, verificationID, enums.VerificationStatusRejected, &now, &reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject verification")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "verification already completed")
	}

	if err := repo.UpdateDocumentStatuses(ctx, verificationID, enums.DocumentStatusRejected); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject documents")
	}

	session.Status = enums.VerificationStatusRejected
	session.CompletedAt = &now
	session.RejectionReason = &reason
	s.metrics.IncRejected(session.Level.String())
	return session, nil
}

func (s *service) CreateUploadURL(ctx context.Context, userID, verificationID uuid.UUID, filename, contentType string) (*UploadURLResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if verificationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verification id is required")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filename is required")
	}
	if strings.TrimSpace(contentType) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type is required")
	}

	session, err := s.loadOwnedSession(ctx, userID, verificationID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "verification already completed")
	}

	objectKey := gcs.DocumentObjectKey(verificationID, filename)
	uploadURL, err := s.gcs.SignedURL(s.bucket, objectKey, contentType, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate upload url")
	}

	return &UploadURLResult{
		ObjectKey: objectKey,
		UploadURL: uploadURL,
	}, nil
}

func (s *service) loadOwnedSession(ctx context.Context, userID, verificationID uuid.UUID) (*models.VerificationSession, error) {
	session, err := s.repo.FindSessionByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup verification")
	}
	if session.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
	}
	return session, nil
}

func (s *service) signedReadURLs(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	urls := make([]string, len(keys))
	for i, key := range keys {
		url, err := s.gcs.SignedReadURL(s.bucket, key, s.downloadTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate signed read url")
		}
		urls[i] = url
	}
	return urls, nil
}

func validateDocument(doc DocumentInput, now time.Time) error {
	if !doc.Kind.IsValid() {
		return fmt.Errorf("invalid document kind %q", doc.Kind)
	}
	if strings.TrimSpace(doc.DocumentType) == "" {
		return fmt.Errorf("document_type is required")
	}
	if strings.TrimSpace(doc.IssuingCountry) == "" {
		return fmt.Errorf("issuing_country is required")
	}
	if len(doc.ObjectKeys) == 0 {
		return fmt.Errorf("at least one document file is required")
	}
	if doc.ExpiryDate != nil && doc.ExpiryDate.Before(now) {
		return fmt.Errorf("document has expired")
	}
	return nil
}
