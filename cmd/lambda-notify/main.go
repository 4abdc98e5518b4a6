package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

var (
	httpClient *http.Client
	maxRetries = 3
	baseDelay  = 1 * time.Second
	timeout    = 5 * time.Second
)

func init() {
	// Initialize HTTP client with timeout
	httpClient = &http.Client{
		Timeout: timeout,
	}

	fmt.Println("[INIT] Notify Lambda initialized")
}

// webhookPayload is the body POSTed to the ops webhook. Text carries a
// one-line summary so chat-style receivers can render it directly.
type webhookPayload struct {
	Text  string               `json:"text"`
	Event pricing.RefreshEvent `json:"event"`
}

func newWebhookPayload(event pricing.RefreshEvent) webhookPayload {
	text := fmt.Sprintf("catalog refreshed from %s: %d CSI codes, %d locations, %d escalation quarters in %s",
		event.Source, event.CSICodes, event.Locations, event.Escalations, event.Duration)
	if event.SkippedRows > 0 {
		text += fmt.Sprintf(" - %d rows skipped", event.SkippedRows)
	}
	return webhookPayload{Text: text, Event: event}
}

// parseRefreshEvent unwraps the SNS envelope in an SQS record body and
// decodes the refresh event inside it.
func parseRefreshEvent(body string) (pricing.RefreshEvent, error) {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return pricing.RefreshEvent{}, fmt.Errorf("failed to parse SQS body: %w", err)
	}

	var event pricing.RefreshEvent
	if err := json.Unmarshal([]byte(envelope.Message), &event); err != nil {
		return pricing.RefreshEvent{}, fmt.Errorf("failed to parse refresh event: %w", err)
	}
	return event, nil
}

// Handler processes SQS events and forwards refresh summaries to the ops
// webhook
func Handler(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	recordCount := len(sqsEvent.Records)
	fmt.Printf("[HANDLER] Processing %d SQS records\n", recordCount)

	var batchItemFailures []events.SQSBatchItemFailure
	successCount := 0

	for _, record := range sqsEvent.Records {
		event, err := parseRefreshEvent(record.Body)
		if err != nil {
			fmt.Printf("[ERROR] %v - MessageID: %s\n", err, record.MessageId)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		// Get webhook URL from environment or message attributes
		webhookURL := os.Getenv("WEBHOOK_URL")
		if webhookURL == "" {
			if record.MessageAttributes != nil {
				if urlAttr, ok := record.MessageAttributes["webhookURL"]; ok {
					if urlAttr.StringValue != nil {
						webhookURL = *urlAttr.StringValue
					}
				}
			}
		}

		if webhookURL == "" {
			fmt.Printf("[WARN] No webhook URL configured, skipping record: %s\n", record.MessageId)
			// Don't fail - just skip if no URL is configured
			successCount++
			continue
		}

		// Send webhook with retry
		if err := sendWebhookWithRetry(ctx, webhookURL, newWebhookPayload(event)); err != nil {
			fmt.Printf("[ERROR] Failed to send webhook after retries: %v - EventID: %s\n",
				err, event.ID)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		successCount++
		fmt.Printf("[SUCCESS] Webhook sent: EventID: %s, URL: %s\n",
			event.ID,
			maskURL(webhookURL),
		)
	}

	fmt.Printf("[SUMMARY] Processed %d records - Success: %d, Failed: %d\n",
		recordCount, successCount, len(batchItemFailures))

	// Return partial batch failure response
	// SQS will retry only the failed messages
	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

// sendWebhookWithRetry sends a webhook with exponential backoff retry
func sendWebhookWithRetry(ctx context.Context, url string, payload webhookPayload) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Calculate exponential backoff with jitter
			delay := time.Duration(math.Pow(2, float64(attempt))) * baseDelay
			jitter := time.Duration(float64(delay) * 0.1)
			sleepTime := delay + jitter

			fmt.Printf("[RETRY] Attempt %d/%d - waiting %v before retry\n", attempt+1, maxRetries, sleepTime)
			time.Sleep(sleepTime)
		}

		err := sendWebhook(ctx, url, payload)
		if err == nil {
			return nil // Success
		}

		lastErr = err

		// Check if error is retryable (5xx errors)
		if !isRetryableError(err) {
			fmt.Printf("[ERROR] Non-retryable error: %v\n", err)
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// sendWebhook makes a single HTTP POST request
func sendWebhook(ctx context.Context, url string, payload webhookPayload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Pricing-Catalog-Notify/1.0")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil // Success
	}

	// Read response body for error details
	var respBody bytes.Buffer
	if _, err := respBody.ReadFrom(resp.Body); err == nil {
		fmt.Printf("[DEBUG] Response body: %s\n", respBody.String())
	}

	return &HTTPError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("webhook failed with status %d", resp.StatusCode),
	}
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// isRetryableError checks if an error should be retried
func isRetryableError(err error) bool {
	if httpErr, ok := err.(*HTTPError); ok {
		// Retry on 5xx server errors
		return httpErr.StatusCode >= 500 && httpErr.StatusCode < 600
	}

	// Retry on network errors
	return true
}

// maskURL masks sensitive parts of URL for logging
func maskURL(url string) string {
	if len(url) > 30 {
		return url[:15] + "..." + url[len(url)-10:]
	}
	return url
}

func main() {
	lambda.Start(Handler)
}
