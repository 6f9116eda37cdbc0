package agents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
)

// Repository exposes persistence for agent profiles and their verification links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertProfile(ctx context.Context, profile *models.AgentProfile) error
	FindProfileByID(ctx context.Context, id uuid.UUID) (*models.AgentProfile, error)
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error)
	CreateLink(ctx context.Context, link *models.AgentVerification) error
	FindLinkByVerificationID(ctx context.Context, verificationID uuid.UUID) (*models.AgentVerification, error)
	UpdateProfileDecision(ctx context.Context, id uuid.UUID, status enums.AgentProfileStatus, decidedAt time.Time, reason *string) error
	UpdateLinkDecision(ctx context.Context, id uuid.UUID, status enums.AgentProfileStatus, decidedAt time.Time, reason *string) error
	ListVerifiedWithLicenseExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error)
	ListVerifiedWithInsuranceExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error)
	MarkLicenseExpired(ctx context.Context, profileID uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository builds the agents repository over the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// UpsertProfile inserts the profile or, when the user already has one,
// overwrites the credential columns in place and resets the decision fields so
// a resubmission starts from pending again. The row identity is stable across
// resubmissions; gorm populates ID on the way out either way.
func (r *repositoryImpl) UpsertProfile(ctx context.Context, profile *models.AgentProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"license_type":               profile.License.Type,
				"license_number":             profile.License.Number,
				"license_issuing_authority":  profile.License.IssuingAuthority,
				"license_issuing_country":    profile.License.IssuingCountry,
				"license_issue_date":         profile.License.IssueDate,
				"license_expiry_date":        profile.License.ExpiryDate,
				"license_status":             profile.License.Status,
				"insurance_provider":         profile.Insurance.Provider,
				"insurance_policy_number":    profile.Insurance.PolicyNumber,
				"insurance_type":             profile.Insurance.Type,
				"insurance_coverage_amount":  profile.Insurance.CoverageAmount,
				"insurance_currency":         profile.Insurance.Currency,
				"insurance_start_date":       profile.Insurance.StartDate,
				"insurance_expiry_date":      profile.Insurance.ExpiryDate,
				"insurance_documents":        profile.Insurance.Documents,
				"agency_company_name":        profile.Agency.CompanyName,
				"agency_registration_number": profile.Agency.RegistrationNumber,
				"agency_vat_number":          profile.Agency.VATNumber,
				"agency_address":             profile.Agency.Address,
				"agency_contact_email":       profile.Agency.ContactEmail,
				"agency_contact_phone":       profile.Agency.ContactPhone,
				"agency_documents":           profile.Agency.Documents,
				"agency_submitted":           profile.AgencySubmitted,
				"status":                     enums.AgentProfileStatusPending,
				"verified_at":                nil,
				"rejection_reason":           nil,
				"updated_at":                 time.Now().UTC(),
			}),
		}).
		Clauses(clause.Returning{}).
		Create(profile).Error
}

func (r *repositoryImpl) FindProfileByID(ctx context.Context, id uuid.UUID) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*models.AgentProfile, error) {
	var profile models.AgentProfile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repositoryImpl) CreateLink(ctx context.Context, link *models.AgentVerification) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *repositoryImpl) FindLinkByVerificationID(ctx context.Context, verificationID uuid.UUID) (*models.AgentVerification, error) {
	var link models.AgentVerification
	if err := r.db.WithContext(ctx).First(&link, "verification_id = ?", verificationID).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repositoryImpl) UpdateProfileDecision(ctx context.Context, id uuid.UUID, status enums.AgentProfileStatus, decidedAt time.Time, reason *string) error {
	updates := map[string]any{
		"status":           status,
		"rejection_reason": reason,
	}
	if status == enums.AgentProfileStatusVerified {
		updates["verified_at"] = decidedAt
	}
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("id = ?", id).
		UpdateColumns(updates).Error
}

func (r *repositoryImpl) UpdateLinkDecision(ctx context.Context, id uuid.UUID, status enums.AgentProfileStatus, decidedAt time.Time, reason *string) error {
	return r.db.WithContext(ctx).
		Model(&models.AgentVerification{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":           status,
			"completed_at":     decidedAt,
			"rejection_reason": reason,
		}).Error
}

func (r *repositoryImpl) ListVerifiedWithLicenseExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error) {
	var profiles []models.AgentProfile
	query := r.db.WithContext(ctx).
		Where("status = ? AND license_status = ? AND license_expiry_date < ?",
			enums.AgentProfileStatusVerified, enums.LicenseStatusActive, before).
		Order("license_expiry_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repositoryImpl) ListVerifiedWithInsuranceExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error) {
	var profiles []models.AgentProfile
	query := r.db.WithContext(ctx).
		Where("status = ? AND insurance_expiry_date < ?",
			enums.AgentProfileStatusVerified, before).
		Order("insurance_expiry_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repositoryImpl) MarkLicenseExpired(ctx context.Context, profileID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AgentProfile{}).
		Where("id = ?", profileID).
		UpdateColumn("license_status", enums.LicenseStatusExpired).Error
}
