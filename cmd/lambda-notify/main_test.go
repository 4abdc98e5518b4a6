package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/leano777/bidflow-personal-edition-sub003/internal/pricing"
)

func sampleEvent() pricing.RefreshEvent {
	return pricing.RefreshEvent{
		ID:          "9b8e2f10-3c4d-4e5f-a6b7-c8d9e0f1a2b3",
		Source:      "static",
		CSICodes:    20,
		Locations:   5,
		Escalations: 7,
		Duration:    240 * time.Millisecond,
		CompletedAt: time.Date(2026, 8, 20, 6, 30, 0, 0, time.UTC),
	}
}

func sqsRecord(t *testing.T, event pricing.RefreshEvent) events.SQSMessage {
	t.Helper()
	inner, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	body, err := json.Marshal(struct {
		Message string `json:"Message"`
	}{Message: string(inner)})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return events.SQSMessage{MessageId: "msg-1", Body: string(body)}
}

// fastRetries shrinks the backoff so retry tests stay quick.
func fastRetries(t *testing.T) {
	t.Helper()
	oldDelay := baseDelay
	baseDelay = time.Millisecond
	t.Cleanup(func() { baseDelay = oldDelay })
}

func TestHandler_SendsWebhook(t *testing.T) {
	var mu sync.Mutex
	var got webhookPayload

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		_ = json.Unmarshal(body, &got)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()
	t.Setenv("WEBHOOK_URL", ts.URL)

	resp, err := Handler(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsRecord(t, sampleEvent())},
	})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("BatchItemFailures = %v, want none", resp.BatchItemFailures)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(got.Text, "catalog refreshed from static") {
		t.Errorf("Text = %q, want refresh summary", got.Text)
	}
	if got.Event.ID != sampleEvent().ID {
		t.Errorf("Event.ID = %q, want %q", got.Event.ID, sampleEvent().ID)
	}
}

func TestHandler_MalformedRecordFails(t *testing.T) {
	resp, err := Handler(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{{MessageId: "bad-1", Body: "not json"}},
	})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "bad-1" {
		t.Fatalf("BatchItemFailures = %v, want bad-1", resp.BatchItemFailures)
	}
}

func TestHandler_NoURLSkips(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "")

	resp, err := Handler(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsRecord(t, sampleEvent())},
	})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("BatchItemFailures = %v, want none when no URL configured", resp.BatchItemFailures)
	}
}

func TestHandler_ServerErrorIsRetried(t *testing.T) {
	fastRetries(t)

	var mu sync.Mutex
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()
	t.Setenv("WEBHOOK_URL", ts.URL)

	resp, err := Handler(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsRecord(t, sampleEvent())},
	})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("BatchItemFailures = %v, want the record reported", resp.BatchItemFailures)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != maxRetries {
		t.Errorf("attempts = %d, want %d", attempts, maxRetries)
	}
}

func TestHandler_ClientErrorIsNotRetried(t *testing.T) {
	fastRetries(t)

	var mu sync.Mutex
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()
	t.Setenv("WEBHOOK_URL", ts.URL)

	resp, err := Handler(context.Background(), events.SQSEvent{
		Records: []events.SQSMessage{sqsRecord(t, sampleEvent())},
	})
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	if len(resp.BatchItemFailures) != 1 {
		t.Fatalf("BatchItemFailures = %v, want the record reported", resp.BatchItemFailures)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 for a 4xx response", attempts)
	}
}

func TestNewWebhookPayload_SkippedRows(t *testing.T) {
	event := sampleEvent()
	if text := newWebhookPayload(event).Text; strings.Contains(text, "skipped") {
		t.Errorf("Text = %q, want no skipped mention for a clean refresh", text)
	}

	event.SkippedRows = 4
	if text := newWebhookPayload(event).Text; !strings.Contains(text, "4 rows skipped") {
		t.Errorf("Text = %q, want skipped-row mention", text)
	}
}

func TestMaskURL(t *testing.T) {
	long := "https://hooks.example.com/services/T000/B000/secrettoken"
	masked := maskURL(long)
	if strings.Contains(masked, "secrettoken") {
		t.Errorf("maskURL(%q) = %q, leaked the token", long, masked)
	}
	if short := maskURL("https://e.co/h"); short != "https://e.co/h" {
		t.Errorf("maskURL left short URLs alone, got %q", short)
	}
}
