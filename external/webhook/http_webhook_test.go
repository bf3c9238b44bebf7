package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/callscribe/internal/webhook"
)

func samplePayload() webhook.TranscriptWebhookPayload {
	return webhook.TranscriptWebhookPayload{
		SchemaVersion:   webhook.TranscriptWebhookSchemaVersion,
		CallID:          "call-1",
		CallSID:         "CA1",
		StreamSID:       "MZ1",
		StartAt:         "2026-03-01T10:00:00Z",
		EndAt:           "2026-03-01T10:01:00Z",
		Timezone:        "UTC",
		DurationSeconds: 60,
		SegmentCount:    1,
		TranscriptSegments: []webhook.TranscriptWebhookSegment{
			{Index: 0, StartAt: "2026-03-01T10:00:05Z", EndAt: "2026-03-01T10:01:00Z", Transcript: "hello"},
		},
		Transcript: "hello",
	}
}

func TestSendTranscript_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendTranscript(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendTranscript_Success(t *testing.T) {
	var got webhook.TranscriptWebhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.CallSID != "CA1" || got.SegmentCount != 1 || got.TranscriptSegments[0].Transcript != "hello" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.SchemaVersion != webhook.TranscriptWebhookSchemaVersion {
		t.Fatalf("unexpected schema version: %s", got.SchemaVersion)
	}
}

func TestSendTranscript_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestSendTranscript_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sender := NewHTTPSender(server.URL)
	if err := sender.SendTranscript(ctx, samplePayload()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
