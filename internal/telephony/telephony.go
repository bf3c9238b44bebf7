package telephony

import "net/http"

// StreamInstructions renders the response a telephony provider fetches when
// a call arrives, telling it to open a media stream to this service.
type StreamInstructions interface {
	ConnectStream(callSID string) (string, error)
}

// RequestVerifier authenticates provider webhooks.
type RequestVerifier interface {
	Enabled() bool
	Verify(r *http.Request) bool
}
