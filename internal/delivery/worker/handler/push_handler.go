package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"healthbridge/config"
	deliverycontext "healthbridge/internal/delivery/context"
	"healthbridge/internal/domain/constants"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"
	"healthbridge/internal/infra/pubsub"
	"healthbridge/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// TokenVerifier authenticates a push request.
type TokenVerifier func(req *http.Request) error

// PushHandler handles Pub/Sub push messages carrying portal events
type PushHandler struct {
	verify  TokenVerifier
	eventUC usecase.EventUsecase
	logger  *slog.Logger
}

// PushHandlerParams holds dependencies for the PushHandler
type PushHandlerParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	EventUC usecase.EventUsecase
}

// NewPushHandler creates a new Pub/Sub push handler. Google OIDC tokens are
// verified when events come from Google Pub/Sub outside development.
func NewPushHandler(params PushHandlerParams) *PushHandler {
	var verify TokenVerifier
	if params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop {
		verify = verifyPubSubToken
	}

	return NewPushHandlerWithVerifier(params.EventUC, verify, params.Logger)
}

// NewPushHandlerWithVerifier creates a push handler with an explicit verifier.
// A nil verifier accepts every request.
func NewPushHandlerWithVerifier(eventUC usecase.EventUsecase, verify TokenVerifier, logger *slog.Logger) *PushHandler {
	return &PushHandler{verify: verify, eventUC: eventUC, logger: logger}
}

// HandlePush handles incoming Pub/Sub push messages. A 2xx acknowledges the
// message, any other status makes Pub/Sub redeliver it.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()

	if h.verify != nil {
		if err := h.verify(c.Request()); err != nil {
			h.logger.Warn("[Worker] Invalid Pub/Sub token", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var pushMsg pubsub.PushMessage
	if err := c.Bind(&pushMsg); err != nil {
		h.logger.Error("[Worker] Failed to parse push message", slog.Any("error", err))

		return c.NoContent(http.StatusBadRequest)
	}

	event, err := pushMsg.DecodeEvent()
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		h.logger.Error("[Worker] Dropping undecodable message",
			slog.String("message_id", pushMsg.Message.MessageID),
			slog.Any("error", err))

		return c.NoContent(http.StatusOK)
	}

	requestID := h.extractRequestID(ctx, event)
	reqLogger := h.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequest(ctx, requestID, reqLogger)

	reqLogger.Info("[Worker] Processing portal event",
		slog.String("message_id", pushMsg.Message.MessageID),
		slog.String("event_type", string(event.Type)),
	)

	if err := h.eventUC.Handle(ctx, event); err != nil {
		if errors.Is(err, usecase.ErrInvalidEvent) {
			reqLogger.Warn("[Worker] Dropping invalid event", slog.Any("error", err))

			return c.NoContent(http.StatusOK)
		}

		reqLogger.Error("[Worker] Failed to process event, requesting redelivery", slog.Any("error", err))

		return c.NoContent(http.StatusInternalServerError)
	}

	reqLogger.Info("[Worker] Event processed successfully",
		slog.String("event_type", string(event.Type)),
	)

	return c.NoContent(http.StatusOK)
}

// extractRequestID prefers the id carried by the event, then the inbound header, then a new one
func (h *PushHandler) extractRequestID(ctx context.Context, event *service.PortalEvent) string {
	if event.RequestID != "" {
		return event.RequestID
	}
	if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
		return requestID
	}

	return uuid.New().String()
}

// verifyPubSubToken verifies the JWT token from Google Pub/Sub push requests
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
func verifyPubSubToken(req *http.Request) error {
	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// The audience is the URL of this endpoint
	scheme := "https"
	if req.TLS == nil {
		scheme = "http"
	}
	audience := fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
