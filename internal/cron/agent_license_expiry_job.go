package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/logger"
)

const (
	licenseWarningDays = 14
	licenseBatchSize   = 200
)

type agentProfilesRepository interface {
	ListVerifiedWithLicenseExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error)
	ListVerifiedWithInsuranceExpiring(ctx context.Context, before time.Time, limit int) ([]models.AgentProfile, error)
	MarkLicenseExpired(ctx context.Context, profileID uuid.UUID) error
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type expiryNotifier interface {
	CredentialExpiry(ctx context.Context, user *models.User, detail string)
}

// AgentLicenseExpiryJobParams configures the scheduled license sweep.
type AgentLicenseExpiryJobParams struct {
	Logger   *logger.Logger
	Repo     agentProfilesRepository
	Users    userFinder
	Notifier expiryNotifier
}

// NewAgentLicenseExpiryJob constructs the agent license expiry cron job.
func NewAgentLicenseExpiryJob(params AgentLicenseExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("agent profiles repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &agentLicenseExpiryJob{
		logg:     params.Logger,
		repo:     params.Repo,
		users:    params.Users,
		notifier: params.Notifier,
		now:      time.Now,
	}, nil
}

type agentLicenseExpiryJob struct {
	logg     *logger.Logger
	repo     agentProfilesRepository
	users    userFinder
	notifier expiryNotifier
	now      func() time.Time
}

func (j *agentLicenseExpiryJob) Name() string { return "agent-license-expiry" }

func (j *agentLicenseExpiryJob) Run(ctx context.Context) error {
	var errs []error
	if err := j.expireLapsed(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.warnExpiring(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := j.warnInsuranceLapsed(ctx); err != nil {
		errs = append(errs, err)
	}
	return multierr.Combine(errs...)
}

// expireLapsed flips still-active licenses whose expiry date has passed and
// tells the agent their verified standing is at risk.
func (j *agentLicenseExpiryJob) expireLapsed(ctx context.Context) error {
	now := j.now().UTC()
	profiles, err := j.repo.ListVerifiedWithLicenseExpiring(ctx, now, licenseBatchSize)
	if err != nil {
		return fmt.Errorf("query lapsed licenses: %w", err)
	}
	count := 0
	for _, profile := range profiles {
		if err := j.repo.MarkLicenseExpired(ctx, profile.ID); err != nil {
			return fmt.Errorf("mark license expired: %w", err)
		}
		j.notifyProfile(ctx, profile, fmt.Sprintf(
			"Your professional license %s expired on %s. Submit renewed credentials to keep your verified status.",
			profile.License.Number, profile.License.ExpiryDate.Format("2 January 2006")))
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "license expiry loop complete")
	return nil
}

// warnExpiring nudges agents whose license lapses inside the warning window.
func (j *agentLicenseExpiryJob) warnExpiring(ctx context.Context) error {
	now := j.now().UTC()
	horizon := now.Add(licenseWarningDays * 24 * time.Hour)
	profiles, err := j.repo.ListVerifiedWithLicenseExpiring(ctx, horizon, licenseBatchSize)
	if err != nil {
		return fmt.Errorf("query expiring licenses: %w", err)
	}
	count := 0
	for _, profile := range profiles {
		if profile.License.ExpiryDate.Before(now) {
			// Already handled by the expiry loop.
			continue
		}
		j.notifyProfile(ctx, profile, fmt.Sprintf(
			"Your professional license %s expires on %s. Renew it before then to keep your verified status.",
			profile.License.Number, profile.License.ExpiryDate.Format("2 January 2006")))
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "license warn loop complete")
	return nil
}

// warnInsuranceLapsed notifies agents whose indemnity cover has run out. There
// is no insurance status column to flip; standing is re-evaluated on the next
// credential check, so the sweep only notifies.
func (j *agentLicenseExpiryJob) warnInsuranceLapsed(ctx context.Context) error {
	now := j.now().UTC()
	profiles, err := j.repo.ListVerifiedWithInsuranceExpiring(ctx, now, licenseBatchSize)
	if err != nil {
		return fmt.Errorf("query lapsed insurance: %w", err)
	}
	count := 0
	for _, profile := range profiles {
		j.notifyProfile(ctx, profile, fmt.Sprintf(
			"Your insurance policy %s expired on %s. Submit renewed cover to keep your verified status.",
			profile.Insurance.PolicyNumber, profile.Insurance.ExpiryDate.Format("2 January 2006")))
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count})
	j.logg.Info(logCtx, "insurance expiry loop complete")
	return nil
}

func (j *agentLicenseExpiryJob) notifyProfile(ctx context.Context, profile models.AgentProfile, detail string) {
	user, err := j.users.FindByID(ctx, profile.UserID)
	if err != nil {
		j.logg.Error(j.logg.WithAgentProfileID(ctx, profile.ID.String()), "loading agent for expiry notice failed", err)
		return
	}
	j.notifier.CredentialExpiry(ctx, user, detail)
}
