package repository

import (
	"context"
	"time"
)

type CreateCallInput struct {
	StartedAt time.Time
}

type UpdateCallStreamInput struct {
	CallID    string
	CallSID   string
	StreamSID string
}

type CompleteCallInput struct {
	CallID  string
	EndedAt time.Time
}

type InsertSegmentInput struct {
	CallID       string
	Content      string
	SegmentIndex int
	SpokenAt     time.Time
}

type CallRepository interface {
	CreateCall(ctx context.Context, input CreateCallInput) (*Call, error)
	UpdateCallStream(ctx context.Context, input UpdateCallStreamInput) error
	CompleteCall(ctx context.Context, input CompleteCallInput) error
}

type TranscriptRepository interface {
	InsertSegment(ctx context.Context, input InsertSegmentInput) error
	ListSegmentsByCallID(ctx context.Context, callID string) ([]TranscriptSegment, error)
}

type Repository interface {
	CallRepository
	TranscriptRepository
}
