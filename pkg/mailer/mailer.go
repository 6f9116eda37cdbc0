// Package mailer sends transactional verification emails through SendGrid.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/greia-app/verification-backend/pkg/config"
	"github.com/greia-app/verification-backend/pkg/logger"
)

var errAPIKeyRequired = errors.New("sendgrid api key is required")

// Message is one outbound transactional email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Sender delivers transactional email. Consumers depend on this so tests can
// substitute a recording stub.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client wraps the SendGrid send API.
type Client struct {
	api       *sendgrid.Client
	fromEmail string
	fromName  string
	logg      *logger.Logger
}

// New builds the SendGrid-backed sender from configuration.
func New(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}

	return &Client{
		api:       sendgrid.NewSendClient(key),
		fromEmail: cfg.DefaultFrom,
		fromName:  cfg.FromName,
		logg:      logg,
	}, nil
}

// Send delivers a single transactional email.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.api == nil {
		return errors.New("mailer not configured")
	}
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errors.New("recipient email is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("subject is required")
	}

	from := mail.NewEmail(c.fromName, c.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainBody, msg.HTMLBody)

	resp, err := c.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}

	if c.logg != nil {
		c.logg.Info(ctx, fmt.Sprintf("email sent: %s", msg.Subject))
	}
	return nil
}
