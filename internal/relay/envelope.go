package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/foxseedlab/callscribe/internal/transcriber"
)

const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventMark      = "mark"
	EventDTMF      = "dtmf"
	EventStop      = "stop"
)

var (
	ErrMalformedEnvelope = errors.New("malformed media stream envelope")
	ErrNotMedia          = errors.New("envelope is not a media event")
)

// Envelope is one message of a Twilio-style media stream.
type Envelope struct {
	Event          string         `json:"event"`
	SequenceNumber string         `json:"sequenceNumber,omitempty"`
	StreamSID      string         `json:"streamSid,omitempty"`
	Start          *StartMetadata `json:"start,omitempty"`
	Media          *MediaPayload  `json:"media,omitempty"`
	Stop           *StopMetadata  `json:"stop,omitempty"`
	Mark           *MarkPayload   `json:"mark,omitempty"`
	DTMF           *DTMFPayload   `json:"dtmf,omitempty"`
}

type StartMetadata struct {
	AccountSID       string            `json:"accountSid"`
	CallSID          string            `json:"callSid"`
	StreamSID        string            `json:"streamSid"`
	Tracks           []string          `json:"tracks"`
	MediaFormat      MediaFormat       `json:"mediaFormat"`
	CustomParameters map[string]string `json:"customParameters"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type MediaPayload struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

type StopMetadata struct {
	AccountSID string `json:"accountSid"`
	CallSID    string `json:"callSid"`
}

type MarkPayload struct {
	Name string `json:"name"`
}

type DTMFPayload struct {
	Track string `json:"track"`
	Digit string `json:"digit"`
}

func ParseEnvelope(msg []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event", ErrMalformedEnvelope)
	}
	return env, nil
}

// AudioChunk decodes the base64 payload of a media envelope.
func (e Envelope) AudioChunk() (transcriber.AudioChunk, error) {
	if e.Event != EventMedia {
		return nil, ErrNotMedia
	}
	if e.Media == nil {
		return nil, fmt.Errorf("%w: media event without media body", ErrMalformedEnvelope)
	}
	b, err := base64.StdEncoding.DecodeString(e.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", ErrMalformedEnvelope, err)
	}
	return transcriber.AudioChunk(b), nil
}
