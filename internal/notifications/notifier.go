package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/greia-app/verification-backend/pkg/db/models"
	"github.com/greia-app/verification-backend/pkg/enums"
	"github.com/greia-app/verification-backend/pkg/logger"
	"github.com/greia-app/verification-backend/pkg/mailer"
)

// Notifier turns verification workflow outcomes into an in-app notification
// row plus a transactional email. Email delivery is best effort; a SendGrid
// failure never fails the triggering operation.
type Notifier struct {
	repo   Repository
	sender mailer.Sender
	logg   *logger.Logger
}

// NewNotifier builds the dual-channel notifier.
func NewNotifier(repo Repository, sender mailer.Sender, logg *logger.Logger) (*Notifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Notifier{repo: repo, sender: sender, logg: logg}, nil
}

// VerificationStarted notifies the user that a capture session is open.
func (n *Notifier) VerificationStarted(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeVerificationStarted,
		Title:   "Verification started",
		Message: "Your identity verification has started. Complete the document capture to continue.",
		Link:    verificationLink(verificationID),
	})
}

// AgentVerificationStarted notifies an agent that credential review has begun.
func (n *Notifier) AgentVerificationStarted(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeVerificationStarted,
		Title:   "Agent verification started",
		Message: "Your professional credentials were received and are being verified against the relevant registries.",
		Link:    verificationLink(verificationID),
	})
}

// VerificationApproved notifies the user of an approved session and its tier.
func (n *Notifier) VerificationApproved(ctx context.Context, user *models.User, verificationID uuid.UUID, level enums.VerificationLevel) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeVerificationApproved,
		Title:   "Verification approved",
		Message: fmt.Sprintf("Your verification was approved. Your account is now at level %d.", int(level)),
		Link:    verificationLink(verificationID),
	})
}

// VerificationRejected notifies the user of a rejection and the reason.
func (n *Notifier) VerificationRejected(ctx context.Context, user *models.User, verificationID uuid.UUID, reason string) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeVerificationRejected,
		Title:   "Verification rejected",
		Message: fmt.Sprintf("Your verification was rejected: %s", reason),
		Link:    verificationLink(verificationID),
	})
}

// InfoRequested notifies the user that the provider needs more input.
func (n *Notifier) InfoRequested(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeInfoRequested,
		Title:   "More information needed",
		Message: "The verification provider needs additional information. Return to the verification flow to continue.",
		Link:    verificationLink(verificationID),
	})
}

// VerificationReminder nudges a user whose session has been waiting on them.
func (n *Notifier) VerificationReminder(ctx context.Context, user *models.User, verificationID uuid.UUID) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeInfoRequested,
		Title:   "Verification still waiting",
		Message: "Your verification is still waiting on you. Return to the verification flow to finish it.",
		Link:    verificationLink(verificationID),
	})
}

// CredentialExpiry warns an agent about an expired license or policy.
func (n *Notifier) CredentialExpiry(ctx context.Context, user *models.User, detail string) {
	n.dispatch(ctx, user, models.Notification{
		Type:    enums.NotificationTypeCredentialExpiry,
		Title:   "Credential expired",
		Message: detail,
	})
}

func (n *Notifier) dispatch(ctx context.Context, user *models.User, notification models.Notification) {
	if user == nil || user.ID == uuid.Nil {
		return
	}
	notification.UserID = user.ID

	if err := n.repo.Create(ctx, &notification); err != nil {
		n.logg.Error(ctx, "creating in-app notification failed", err)
	}

	err := n.sender.Send(ctx, mailer.Message{
		ToEmail:   user.Email,
		ToName:    fmt.Sprintf("%s %s", user.FirstName, user.LastName),
		Subject:   notification.Title,
		PlainBody: notification.Message,
		HTMLBody:  fmt.Sprintf("<p>%s</p>", notification.Message),
	})
	if err != nil {
		n.logg.Error(ctx, "sending notification email failed", err)
	}
}

func verificationLink(verificationID uuid.UUID) *string {
	if verificationID == uuid.Nil {
		return nil
	}
	link := fmt.Sprintf("/verifications/%s", verificationID)
	return &link
}
