// Package pubsub publishes portal events for the notifier worker.
package pubsub

import (
	"context"
	"log/slog"

	"healthbridge/config"
	"healthbridge/internal/domain/constants"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"go.uber.org/fx"
)

// discardPublisher drops every event. Out-of-band mail is skipped but the
// in-app notification feed still works.
type discardPublisher struct {
	logger *slog.Logger
}

func (p *discardPublisher) Publish(ctx context.Context, event *service.PortalEvent) error {
	p.logger.DebugContext(ctx, "Event publishing disabled, dropping portal event",
		slog.String("event_type", string(event.Type)),
	)

	return nil
}

func (p *discardPublisher) Close() error {
	return nil
}

// PublisherParams holds dependencies for EventPublisher, injected by Fx
type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher picks the publisher named by pubsub.provider and closes it
// on shutdown.
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	publisher, err := newPublisher(params.Ctx, params.Config.PubSub, params.Logger)
	if err != nil {
		return nil, err
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			params.Logger.Info("Closing event publisher")

			return publisher.Close()
		},
	})

	return publisher, nil
}

func newPublisher(ctx context.Context, cfg *config.PubSubConfig, logger *slog.Logger) (service.EventPublisher, error) {
	provider := constants.PubSubProviderNone
	if cfg != nil && cfg.Provider != "" {
		provider = cfg.Provider
	}

	switch provider {
	case constants.PubSubProviderNone:
		logger.Info("Pub/Sub not configured, portal events will not leave the process")

		return &discardPublisher{logger: logger}, nil
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return nil, errors.New("pubsub.localEndpoint is required for the local provider")
		}
		logger.Info("Pushing portal events straight to the notifier", slog.String("endpoint", cfg.LocalEndpoint))

		return NewLocalHTTPPublisher(cfg.LocalEndpoint, logger), nil
	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" || cfg.TopicID == "" {
			return nil, errors.New("pubsub.projectId and pubsub.topicId are required for the google provider")
		}
		logger.Info("Publishing portal events to Google Pub/Sub",
			slog.String("project_id", cfg.ProjectID),
			slog.String("topic_id", cfg.TopicID),
		)

		return NewGooglePubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID, logger)
	default:
		return nil, errors.Errorf("unknown pubsub provider: %s", provider)
	}
}
