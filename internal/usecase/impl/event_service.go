package impl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"healthbridge/config"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	"healthbridge/internal/usecase"

	"go.uber.org/fx"
)

const defaultResetLinkBaseURL = "http://localhost:3000/reset-password"

// eventService implements the EventUsecase interface for the notifier worker.
type eventService struct {
	mailer        service.Mailer
	resetLinkBase string
	logger        *slog.Logger
}

// EventServiceParams holds dependencies for EventService, injected by Fx.
type EventServiceParams struct {
	fx.In

	Mailer service.Mailer
	Config *config.Config
	Logger *slog.Logger
}

// NewEventService is the constructor for eventService.
func NewEventService(params EventServiceParams) usecase.EventUsecase {
	base := defaultResetLinkBaseURL
	if params.Config != nil && params.Config.Notifier != nil && params.Config.Notifier.ResetLinkBaseURL != "" {
		base = params.Config.Notifier.ResetLinkBaseURL
	}

	return &eventService{mailer: params.Mailer, resetLinkBase: base, logger: params.Logger}
}

// Handle turns an event into an email. Mail failures are returned as is so the
// caller can ask for redelivery. Events that can never succeed wrap ErrInvalidEvent.
func (srv *eventService) Handle(ctx context.Context, event *service.PortalEvent) error {
	if event == nil || strings.TrimSpace(event.Email) == "" {
		return errors.Wrap(usecase.ErrInvalidEvent, "event has no recipient")
	}

	msg, err := srv.compose(event)
	if err != nil {
		return err
	}
	if err := srv.mailer.Send(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to send %s mail", event.Type)
	}

	deliverycontext.GetLoggerOrDefault(ctx, srv.logger).Info("Event delivered",
		slog.String("eventType", string(event.Type)),
		slog.String("userID", event.UserID))

	return nil
}

func (srv *eventService) compose(event *service.PortalEvent) (*service.MailMessage, error) {
	greeting := "Hello"
	if event.Name != "" {
		greeting = "Hello " + event.Name
	}

	switch event.Type {
	case service.EventPasswordResetRequested:
		token := event.Data["token"]
		if token == "" {
			return nil, errors.Wrap(usecase.ErrInvalidEvent, "password reset event has no token")
		}

		link := srv.resetLinkBase + "?token=" + url.QueryEscape(token)

		return &service.MailMessage{
			To:      event.Email,
			Subject: "Reset your HealthBridge password",
			Body: fmt.Sprintf("%s,\n\nUse the link below to choose a new password. It expires at %s.\n\n%s\n\nIf you did not ask for this, ignore this email.\n",
				greeting, event.Data["expires_at"], link),
		}, nil
	case service.EventAppointmentBooked:
		return &service.MailMessage{
			To:      event.Email,
			Subject: "Your appointment is booked",
			Body: fmt.Sprintf("%s,\n\nYour appointment with Dr. %s is booked for %s at %s (%s).\n",
				greeting, event.Data["doctor_name"], event.Data["date"], event.Data["time"], event.Data["location"]),
		}, nil
	case service.EventAppointmentCancelled:
		return &service.MailMessage{
			To:      event.Email,
			Subject: "Your appointment was cancelled",
			Body: fmt.Sprintf("%s,\n\nYour appointment on %s at %s has been cancelled.\n",
				greeting, event.Data["date"], event.Data["time"]),
		}, nil
	default:
		return nil, errors.Wrapf(usecase.ErrInvalidEvent, "unsupported event type %q", event.Type)
	}
}
