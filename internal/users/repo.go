package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateVerificationLevel stamps the trust tier granted by an approved session.
// The level only ever moves up; an approval at a lower tier keeps the higher one.
func (r *Repository) UpdateVerificationLevel(ctx context.Context, id uuid.UUID, level enums.VerificationLevel, at time.Time) error {
	return r.updateVerificationLevel(r.db.WithContext(ctx), id, level, at)
}

// UpdateVerificationLevelWithTx applies the same update inside the caller's transaction.
func (r *Repository) UpdateVerificationLevelWithTx(tx *gorm.DB, id uuid.UUID, level enums.VerificationLevel, at time.Time) error {
	return r.updateVerificationLevel(tx, id, level, at)
}

func (r *Repository) updateVerificationLevel(db *gorm.DB, id uuid.UUID, level enums.VerificationLevel, at time.Time) error {
	return db.
		Model(&models.User{}).
		Where("id = ? AND verification_level < ?", id, int(level)).
		UpdateColumns(map[string]any{
			"verification_level": int(level),
			"verified_at":        at,
		}).Error
}
