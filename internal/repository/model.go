package repository

import "time"

type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
)

// Call is one inbound media stream. CallSID and StreamSID stay empty until
// the stream's start event has been received.
type Call struct {
	ID        string
	CallSID   string
	StreamSID string
	StartedAt time.Time
	EndedAt   *time.Time
	Status    CallStatus
}

type TranscriptSegment struct {
	ID           string
	CallID       string
	Content      string
	SegmentIndex int
	SpokenAt     time.Time
	CreatedAt    time.Time
}
