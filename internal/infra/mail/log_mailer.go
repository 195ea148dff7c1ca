// Package mail delivers out-of-band messages such as password reset links.
package mail

import (
	"context"
	"log/slog"
	"strings"

	"healthbridge/config"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"go.uber.org/fx"
)

// Params defines the dependencies for the mailer
type Params struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// logMailer writes every outbound message as a structured log record. It stands
// in for an SMTP relay, which the deployment provides out of band.
type logMailer struct {
	from   string
	logger *slog.Logger
}

// NewLogMailer creates a Mailer that logs messages instead of sending them.
func NewLogMailer(params Params) service.Mailer {
	from := "no-reply@healthbridge.local"
	if params.Config != nil && params.Config.Notifier != nil && params.Config.Notifier.FromAddress != "" {
		from = params.Config.Notifier.FromAddress
	}

	return &logMailer{from: from, logger: params.Logger}
}

func (m *logMailer) Send(ctx context.Context, msg *service.MailMessage) error {
	if msg == nil {
		return errors.New("mail message is nil")
	}
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("mail recipient is empty")
	}

	m.logger.InfoContext(ctx, "Mail dispatched",
		slog.String("from", m.from),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("bodyLength", len(msg.Body)),
	)

	return nil
}
