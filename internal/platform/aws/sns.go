package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/observability"
	"github.com/leano777/bidflow-personal-edition-sub003/internal/platform/resilience"
)

// SNSClient is the SDK SNS client behind a retry loop and a circuit
// breaker. A broken topic must not take the refresh path down with it.
type SNSClient struct {
	client  *sns.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	logger  *observability.Logger
	metrics *observability.Metrics
}

// SNSClientConfig holds SNS client configuration. Retry and breaker are
// optional; defaults cover them.
type SNSClientConfig struct {
	AWSConfig      aws.Config
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
}

// NewSNSClient creates an SNS client from a resolved AWS config.
func NewSNSClient(cfg SNSClientConfig) *SNSClient {
	retry := resilience.DefaultRetryConfig()
	if cfg.RetryConfig != nil {
		retry = *cfg.RetryConfig
	}

	breaker := cfg.CircuitBreaker
	if breaker == nil {
		breaker = defaultSNSBreaker(cfg.Logger, cfg.Metrics)
	}

	return &SNSClient{
		client:  sns.NewFromConfig(cfg.AWSConfig),
		breaker: breaker,
		retry:   retry,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

func defaultSNSBreaker(logger *observability.Logger, metrics *observability.Metrics) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "sns",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		OnStateChange: func(from, to resilience.State) {
			if logger != nil {
				logger.LogInfo(context.Background(), "SNS circuit breaker state changed",
					"from", from.String(),
					"to", to.String(),
				)
			}
			if metrics != nil {
				metrics.SetCircuitBreakerState(context.Background(), "sns", int64(to))
			}
		},
	})
}

// Publish marshals the message to JSON and sends it to the topic. The
// breaker sees one outcome per Publish call, not per retry attempt.
func (s *SNSClient) Publish(ctx context.Context, topicARN string, message any, attributes map[string]string) error {
	started := time.Now()

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
			return s.send(ctx, topicARN, payload, attributes)
		})
	})

	s.observe(ctx, topicARN, time.Since(started), err)
	return err
}

// send performs a single publish attempt.
func (s *SNSClient) send(ctx context.Context, topicARN string, payload []byte, attributes map[string]string) error {
	input := &sns.PublishInput{
		TopicArn:          aws.String(topicARN),
		Message:           aws.String(string(payload)),
		MessageAttributes: messageAttrs(attributes),
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("SNS publish failed: %w", err)
	}
	return nil
}

func messageAttrs(attributes map[string]string) map[string]types.MessageAttributeValue {
	if len(attributes) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attributes))
	for k, v := range attributes {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}

func (s *SNSClient) observe(ctx context.Context, topicARN string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if s.logger != nil {
			s.logger.LogError(ctx, "SNS publish failed", err,
				"topic_arn", topicARN,
				"duration_ms", duration.Milliseconds(),
			)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordNotification(ctx, "sns", status, duration)
	}
}

// CircuitBreakerState reports the breaker state for health output.
func (s *SNSClient) CircuitBreakerState() resilience.State {
	return s.breaker.State()
}
