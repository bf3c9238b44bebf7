package webhook

import "context"

const TranscriptWebhookSchemaVersion = "2026-10-01"

// TranscriptWebhookPayload is posted once per finished call.
type TranscriptWebhookPayload struct {
	SchemaVersion      string                     `json:"schema_version"`
	CallID             string                     `json:"call_id"`
	CallSID            string                     `json:"call_sid"`
	StreamSID          string                     `json:"stream_sid"`
	StartAt            string                     `json:"start_at"`
	EndAt              string                     `json:"end_at"`
	Timezone           string                     `json:"timezone"`
	DurationSeconds    int64                      `json:"duration_seconds"`
	SegmentCount       int                        `json:"segment_count"`
	TranscriptSegments []TranscriptWebhookSegment `json:"transcript_segments"`
	Transcript         string                     `json:"transcript"`
}

type TranscriptWebhookSegment struct {
	Index      int    `json:"index"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	Transcript string `json:"transcript"`
}

type Sender interface {
	SendTranscript(ctx context.Context, payload TranscriptWebhookPayload) error
}
