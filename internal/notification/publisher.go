// Package notification publishes catalog refresh events to downstream
// consumers over SNS.
package notification

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/aws"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// Publisher publishes refresh events to an SNS topic. Audit and reporting
// consumers subscribe downstream; the engine never waits on them.
type Publisher struct {
	snsClient *aws.SNSClient
	topicARN  string
	logger    *observability.Logger
	tracer    observability.Tracer
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	SNSClient *aws.SNSClient
	TopicARN  string
	Logger    *observability.Logger
	Tracer    observability.Tracer
}

// NewPublisher creates a new refresh event publisher.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.SNSClient == nil {
		return nil, fmt.Errorf("SNS client is required")
	}
	if cfg.TopicARN == "" {
		return nil, fmt.Errorf("SNS topic ARN is required")
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewNoopTracer()
	}

	return &Publisher{
		snsClient: cfg.SNSClient,
		topicARN:  cfg.TopicARN,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
	}, nil
}

// NotifyRefresh publishes a refresh event to SNS.
// Implements pricing.RefreshNotifier.
func (p *Publisher) NotifyRefresh(ctx context.Context, event pricing.RefreshEvent) error {
	ctx, span := p.tracer.StartSpan(
		ctx,
		"notification.refresh",
		observability.WithSpanKind(trace.SpanKindProducer),
		observability.WithAttributes(
			attribute.String("event_id", event.ID),
			attribute.String("source", event.Source),
			attribute.String("topic_arn", p.topicARN),
		),
	)
	defer span.End()

	// Message attributes let subscribers filter without parsing the body
	attributes := map[string]string{
		"source":    event.Source,
		"csi_codes": fmt.Sprintf("%d", event.CSICodes),
		"locations": fmt.Sprintf("%d", event.Locations),
	}
	if event.SkippedRows > 0 {
		attributes["skipped_rows"] = fmt.Sprintf("%d", event.SkippedRows)
	}

	if err := p.snsClient.Publish(ctx, p.topicARN, event, attributes); err != nil {
		span.NoticeError(err)
		if p.logger != nil {
			p.logger.LogError(ctx, "failed to publish refresh event", err,
				"event_id", event.ID,
				"topic_arn", p.topicARN,
				"circuit_state", p.snsClient.CircuitBreakerState().String(),
			)
		}
		return fmt.Errorf("refresh event publish failed: %w", err)
	}

	if p.logger != nil {
		p.logger.LogInfo(ctx, "published refresh event",
			"event_id", event.ID,
			"source", event.Source,
			"csi_codes", event.CSICodes,
			"locations", event.Locations,
			"escalations", event.Escalations,
		)
	}

	return nil
}
