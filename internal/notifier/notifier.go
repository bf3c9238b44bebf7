package notifier

import "context"

type FileMessage struct {
	Content  string
	Filename string
	FileBody []byte
}

// Notifier posts call progress to a chat channel.
type Notifier interface {
	SendMessage(ctx context.Context, content string) error
	SendFile(ctx context.Context, msg FileMessage) error
}

// Nop discards every message. It is used when no channel is configured.
type Nop struct{}

func (Nop) SendMessage(context.Context, string) error { return nil }

func (Nop) SendFile(context.Context, FileMessage) error { return nil }
