package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskelio/internal/config"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// EmailMessage is one outgoing email.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender delivers an email and returns the provider message id.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) (string, error)
}

// NewEmailSender returns a Resend sender when a key is configured, otherwise
// a sender that only logs.
func NewEmailSender(cfg config.EmailConfig, logger *logrus.Logger) EmailSender {
	if cfg.ResendAPIKey == "" {
		return &LogSender{logger: logger}
	}
	return NewResendSender(cfg, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   15 * time.Second,
	})
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(cfg config.EmailConfig, httpClient *http.Client) *ResendSender {
	from := cfg.FromAddress
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress)
	}
	return &ResendSender{
		client: resend.NewCustomClient(httpClient, cfg.ResendAPIKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if msg.To == "" {
		return "", errors.New("email recipient is required")
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	return sent.Id, nil
}

// LogSender records emails in the log instead of delivering them.
type LogSender struct {
	logger *logrus.Logger
}

func (s *LogSender) Send(_ context.Context, msg EmailMessage) (string, error) {
	if msg.To == "" {
		return "", errors.New("email recipient is required")
	}
	logger := s.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	id := "log-" + uuid.NewString()
	logger.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject, "message_id": id}).Info("email delivery disabled, logged only")
	return id, nil
}
