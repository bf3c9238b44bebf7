package transcriber

import "context"

// AudioChunk is one frame of encoded telephony audio. It must not be
// modified after it has been handed to a StreamingTranscriber.
type AudioChunk []byte

// TranscriptEvent is one recognition hypothesis. Interim events may be
// revised by later events; a final event closes its utterance segment.
type TranscriptEvent struct {
	IsFinal bool
	Text    string
}

const (
	EncodingMulaw    = "MULAW"
	EncodingLinear16 = "LINEAR16"
)

type RecognitionConfig struct {
	Encoding        string
	SampleRateHertz int
	LanguageCode    string
	InterimResults  bool
	Model           string
}

func DefaultRecognitionConfig() RecognitionConfig {
	return RecognitionConfig{
		Encoding:        EncodingMulaw,
		SampleRateHertz: 8000,
		LanguageCode:    "en-US",
		InterimResults:  true,
	}
}

// Stream is one bidirectional recognition call. SendConfig must be the first
// message. Recv returns io.EOF once the backend has closed its side cleanly.
type Stream interface {
	SendConfig(cfg RecognitionConfig) error
	SendAudio(chunk AudioChunk) error
	CloseSend() error
	Recv() ([]TranscriptEvent, error)
	Close() error
}

type Backend interface {
	Open(ctx context.Context) (Stream, error)
}
