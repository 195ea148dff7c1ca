package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"

	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
)

// googlePublisher sends portal events to a Pub/Sub topic whose push
// subscription targets the notifier.
type googlePublisher struct {
	client *pubsub.Client
	topic  *pubsub.Publisher
	logger *slog.Logger
}

// NewGooglePubSubPublisher connects to projectID and fails fast when topicID
// does not exist, so a misconfigured portal does not boot.
func NewGooglePubSubPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger) (service.EventPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Pub/Sub client")
	}

	if err := ensureTopic(ctx, client, "projects/"+projectID+"/topics/"+topicID); err != nil {
		_ = client.Close()

		return nil, err
	}

	return &googlePublisher{
		client: client,
		topic:  client.Publisher(topicID),
		logger: logger,
	}, nil
}

func ensureTopic(ctx context.Context, client *pubsub.Client, topicPath string) error {
	_, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath})

	return errors.Wrapf(err, "topic %s is not reachable", topicPath)
}

// Publish blocks until Pub/Sub acknowledges the event.
func (p *googlePublisher) Publish(ctx context.Context, event *service.PortalEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s event", event.Type)
	}

	serverID, err := p.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: eventAttributes(event),
	}).Get(ctx)
	if err != nil {
		return errors.Wrapf(err, "failed to publish %s event", event.Type)
	}

	p.logger.DebugContext(ctx, "[GooglePubSub] Portal event accepted",
		slog.String("event_type", string(event.Type)),
		slog.String("request_id", event.RequestID),
		slog.String("server_id", serverID),
	)

	return nil
}

// Close flushes pending messages before closing the client.
func (p *googlePublisher) Close() error {
	p.topic.Stop()

	return errors.WithStack(p.client.Close())
}
