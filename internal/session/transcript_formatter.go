package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/callscribe/internal/repository"
	"github.com/foxseedlab/callscribe/internal/webhook"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

type CallMetadata struct {
	CallID    string
	CallSID   string
	StreamSID string
}

func buildTranscriptText(meta CallMetadata, startedAt, endedAt time.Time, timezone string, loc *time.Location, segments []repository.TranscriptSegment) []byte {
	startText := startedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)
	endText := endedAt.In(safeLocation(loc)).Format(transcriptTimeLayout)

	lines := []string{
		fmt.Sprintf("Call SID: %s", displayCallSID(meta.CallSID)),
		fmt.Sprintf("Stream SID: %s", meta.StreamSID),
		fmt.Sprintf("Call period: %s ~ %s (%s)", startText, endText, timezone),
		"",
	}
	for _, seg := range segments {
		elapsed := seg.SpokenAt.Sub(startedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		lines = append(lines, fmt.Sprintf("%s %s", formatElapsedHMS(elapsed), seg.Content))
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildTranscriptWebhookPayload(meta CallMetadata, startedAt, endedAt time.Time, timezone string, loc *time.Location, segments []repository.TranscriptSegment) webhook.TranscriptWebhookPayload {
	transcriptLines := make([]string, 0, len(segments))
	for _, seg := range segments {
		transcriptLines = append(transcriptLines, seg.Content)
	}

	durationSeconds := int64(endedAt.Sub(startedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	return webhook.TranscriptWebhookPayload{
		SchemaVersion:      webhook.TranscriptWebhookSchemaVersion,
		CallID:             meta.CallID,
		CallSID:            meta.CallSID,
		StreamSID:          meta.StreamSID,
		StartAt:            startedAt.In(safeLocation(loc)).Format(time.RFC3339),
		EndAt:              endedAt.In(safeLocation(loc)).Format(time.RFC3339),
		Timezone:           timezone,
		DurationSeconds:    durationSeconds,
		SegmentCount:       len(segments),
		TranscriptSegments: buildTranscriptWebhookSegments(segments, endedAt, safeLocation(loc)),
		Transcript:         strings.Join(transcriptLines, "\n"),
	}
}

// A segment ends where the next one starts; the last ends with the call.
func buildTranscriptWebhookSegments(segments []repository.TranscriptSegment, callEndedAt time.Time, loc *time.Location) []webhook.TranscriptWebhookSegment {
	out := make([]webhook.TranscriptWebhookSegment, 0, len(segments))
	for i, seg := range segments {
		segmentEnd := callEndedAt
		if i+1 < len(segments) {
			segmentEnd = segments[i+1].SpokenAt
		}
		if segmentEnd.Before(seg.SpokenAt) {
			segmentEnd = seg.SpokenAt
		}
		out = append(out, webhook.TranscriptWebhookSegment{
			Index:      seg.SegmentIndex,
			StartAt:    seg.SpokenAt.In(loc).Format(time.RFC3339),
			EndAt:      segmentEnd.In(loc).Format(time.RFC3339),
			Transcript: seg.Content,
		})
	}
	return out
}

func transcriptFilename(meta CallMetadata) string {
	if meta.CallSID != "" {
		return fmt.Sprintf("transcript-%s.txt", meta.CallSID)
	}
	return fmt.Sprintf("transcript-%s.txt", meta.CallID)
}

func formatElapsedHMS(d time.Duration) string {
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
