package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
	"github.com/greia-app/verification-backend/pkg/logger"
)

const reminderBatchSize = 200

type stalledSessionsRepository interface {
	ListPendingOlderThan(ctx context.Context, status enums.VerificationStatus, cutoff time.Time, limit int) ([]models.VerificationSession, error)
}

type reminderNotifier interface {
	VerificationReminder(ctx context.Context, user *models.User, verificationID uuid.UUID)
}

// VerificationReminderJobParams configures the stalled-session reminder sweep.
type VerificationReminderJobParams struct {
	Logger        *logger.Logger
	Repo          stalledSessionsRepository
	Users         userFinder
	Notifier      reminderNotifier
	ReminderAfter time.Duration
}

// NewVerificationReminderJob constructs the reminder cron job.
func NewVerificationReminderJob(params VerificationReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("verification repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.ReminderAfter <= 0 {
		return nil, fmt.Errorf("reminder window must be positive")
	}
	return &verificationReminderJob{
		logg:          params.Logger,
		repo:          params.Repo,
		users:         params.Users,
		notifier:      params.Notifier,
		reminderAfter: params.ReminderAfter,
		now:           time.Now,
	}, nil
}

type verificationReminderJob struct {
	logg          *logger.Logger
	repo          stalledSessionsRepository
	users         userFinder
	notifier      reminderNotifier
	reminderAfter time.Duration
	now           func() time.Time
}

func (j *verificationReminderJob) Name() string { return "verification-reminder" }

func (j *verificationReminderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.reminderAfter)

	var errs []error
	for _, status := range []enums.VerificationStatus{
		enums.VerificationStatusPending,
		enums.VerificationStatusAwaitingMoreInfo,
	} {
		if err := j.remindStalled(ctx, status, cutoff); err != nil {
			errs = append(errs, err)
		}
	}
	return multierr.Combine(errs...)
}

func (j *verificationReminderJob) remindStalled(ctx context.Context, status enums.VerificationStatus, cutoff time.Time) error {
	sessions, err := j.repo.ListPendingOlderThan(ctx, status, cutoff, reminderBatchSize)
	if err != nil {
		return fmt.Errorf("query stalled %s sessions: %w", status, err)
	}
	count := 0
	for _, session := range sessions {
		user, err := j.users.FindByID(ctx, session.UserID)
		if err != nil {
			j.logg.Error(j.logg.WithVerificationID(ctx, session.ID.String()), "loading user for reminder failed", err)
			continue
		}
		j.notifier.VerificationReminder(ctx, user, session.ID)
		count++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"status": status.String(), "count": count})
	j.logg.Info(logCtx, "reminder loop complete")
	return nil
}
