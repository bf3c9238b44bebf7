package twilio

import (
	"fmt"
	"net/url"

	"github.com/twilio/twilio-go/twiml"
)

const mediaStreamPath = "media"

type TwiMLBuilder struct {
	streamURL string
}

func NewTwiMLBuilder(publicBaseURL string) (*TwiMLBuilder, error) {
	streamURL, err := mediaStreamURL(publicBaseURL)
	if err != nil {
		return nil, err
	}
	return &TwiMLBuilder{streamURL: streamURL}, nil
}

func (b *TwiMLBuilder) StreamURL() string {
	return b.streamURL
}

// ConnectStream forwards callSID as a stream parameter when present.
func (b *TwiMLBuilder) ConnectStream(callSID string) (string, error) {
	stream := &twiml.VoiceStream{
		Url:   b.streamURL,
		Track: "inbound_track",
	}
	if callSID != "" {
		stream.InnerElements = []twiml.Element{
			&twiml.VoiceParameter{Name: "callSid", Value: callSID},
		}
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return doc, nil
}

func mediaStreamURL(publicBaseURL string) (string, error) {
	u, err := url.Parse(publicBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse public base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("public base url must be http or https, got %q", publicBaseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("public base url has no host: %q", publicBaseURL)
	}
	return u.JoinPath(mediaStreamPath).String(), nil
}
