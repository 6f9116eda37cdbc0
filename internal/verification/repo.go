package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
)

// Repository exposes persistence for sessions, documents, and reviews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSession(ctx context.Context, session *models.VerificationSession) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.VerificationSession, error)
	FindSessionWithDocuments(ctx context.Context, id uuid.UUID) (*models.VerificationSession, error)
	UpdateProviderHandle(ctx context.Context, id uuid.UUID, providerSessionID, clientSecret string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.VerificationStatus, completedAt *time.Time, reason *string) (int64, error)
	CreateDocuments(ctx context.Context, docs []models.VerificationDocument) error
	UpdateDocumentStatuses(ctx context.Context, verificationID uuid.UUID, status enums.DocumentStatus) error
	CreateReview(ctx context.Context, review *models.DocumentReview) error
	ListPendingOlderThan(ctx context.Context, status enums.VerificationStatus, cutoff time.Time, limit int) ([]models.VerificationSession, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository builds the verification repository over the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateSession(ctx context.Context, session *models.VerificationSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repositoryImpl) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.VerificationSession, error) {
	var session models.VerificationSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repositoryImpl) FindSessionWithDocuments(ctx context.Context, id uuid.UUID) (*models.VerificationSession, error) {
	var session models.VerificationSession
	if err := r.db.WithContext(ctx).Preload("Documents").First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repositoryImpl) UpdateProviderHandle(ctx context.Context, id uuid.UUID, providerSessionID, clientSecret string) error {
	return r.db.WithContext(ctx).
		Model(&models.VerificationSession{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"provider_session_id":    providerSessionID,
			"provider_client_secret": clientSecret,
		}).Error
}

// UpdateStatus transitions a non-terminal session. The WHERE clause excludes
// terminal rows so a stale caller cannot overwrite approved/rejected state; the
// returned row count tells the service whether the transition applied.
func (r *repositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.VerificationStatus, completedAt *time.Time, reason *string) (int64, error) {
	updates := map[string]any{"status": status}
	if completedAt != nil {
		updates["completed_at"] = *completedAt
	}
	if reason != nil {
		updates["rejection_reason"] = *reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.VerificationSession{}).
		Where("id = ? AND status NOT IN ?", id, []enums.VerificationStatus{
			enums.VerificationStatusApproved,
			enums.VerificationStatusRejected,
		}).
		UpdateColumns(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) CreateDocuments(ctx context.Context, docs []models.VerificationDocument) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&docs).Error
}

func (r *repositoryImpl) UpdateDocumentStatuses(ctx context.Context, verificationID uuid.UUID, status enums.DocumentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.VerificationDocument{}).
		Where("verification_id = ?", verificationID).
		UpdateColumn("status", status).Error
}

func (r *repositoryImpl) CreateReview(ctx context.Context, review *models.DocumentReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repositoryImpl) ListPendingOlderThan(ctx context.Context, status enums.VerificationStatus, cutoff time.Time, limit int) ([]models.VerificationSession, error) {
	var sessions []models.VerificationSession
	query := r.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", status, cutoff).
		Order("started_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
