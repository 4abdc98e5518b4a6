package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

// retentionDays is how long audit records stay queryable before DynamoDB
// expires them via the ttl attribute.
const retentionDays = 90

var (
	dynamoClient *dynamodb.Client
	tableName    string
)

func init() {
	// Load AWS SDK config
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		panic(fmt.Sprintf("failed to load AWS config: %v", err))
	}

	// Initialize DynamoDB client
	dynamoClient = dynamodb.NewFromConfig(cfg)

	// Get table name from environment
	tableName = os.Getenv("AUDIT_TABLE_NAME")
	if tableName == "" {
		tableName = "pricing-refresh-audit"
	}

	fmt.Printf("[INIT] Audit Lambda initialized - Table: %s\n", tableName)
}

// auditRecord is a catalog refresh event flattened for DynamoDB, plus the
// TTL attribute the table expires on.
type auditRecord struct {
	EventID     string `dynamodbav:"event_id" json:"event_id"`
	Source      string `dynamodbav:"source" json:"source"`
	CSICodes    int    `dynamodbav:"csi_codes" json:"csi_codes"`
	Locations   int    `dynamodbav:"locations" json:"locations"`
	Escalations int    `dynamodbav:"escalations" json:"escalations"`
	SkippedRows int    `dynamodbav:"skipped_rows" json:"skipped_rows"`
	DurationMS  int64  `dynamodbav:"duration_ms" json:"duration_ms"`
	CompletedAt string `dynamodbav:"completed_at" json:"completed_at"`
	TTL         int64  `dynamodbav:"ttl" json:"ttl"`
}

func newAuditRecord(event pricing.RefreshEvent, now time.Time) auditRecord {
	return auditRecord{
		EventID:     event.ID,
		Source:      event.Source,
		CSICodes:    event.CSICodes,
		Locations:   event.Locations,
		Escalations: event.Escalations,
		SkippedRows: event.SkippedRows,
		DurationMS:  event.Duration.Milliseconds(),
		CompletedAt: event.CompletedAt.UTC().Format(time.RFC3339),
		TTL:         now.Unix() + retentionDays*24*60*60,
	}
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

// Handler processes SQS events and writes refresh audit records to DynamoDB
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

		rec := newAuditRecord(event, time.Now())
		if err := writeToDynamoDB(ctx, rec); err != nil {
			fmt.Printf("[ERROR] Failed to write to DynamoDB: %v - EventID: %s\n", err, rec.EventID)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
			continue
		}

		successCount++
		fmt.Printf("[SUCCESS] Persisted refresh event: %s (Source: %s, Codes: %d, Skipped: %d)\n",
			rec.EventID, rec.Source, rec.CSICodes, rec.SkippedRows)
	}

	fmt.Printf("[SUMMARY] Processed %d records - Success: %d, Failed: %d\n",
		recordCount, successCount, len(batchItemFailures))

	// Return partial batch failure response
	// SQS will retry only the failed messages
	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

// writeToDynamoDB writes an audit record to DynamoDB
func writeToDynamoDB(ctx context.Context, record auditRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = dynamoClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

func main() {
	lambda.Start(Handler)
}
