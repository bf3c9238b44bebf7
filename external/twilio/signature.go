package twilio

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

const signatureHeader = "X-Twilio-Signature"

// SignatureValidator checks X-Twilio-Signature against the URL Twilio was
// configured with, which is the public base URL plus the request URI. A
// validator without an auth token is disabled.
type SignatureValidator struct {
	validator     *client.RequestValidator
	publicBaseURL string
}

func NewSignatureValidator(authToken, publicBaseURL string) *SignatureValidator {
	v := &SignatureValidator{publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
	if authToken != "" {
		rv := client.NewRequestValidator(authToken)
		v.validator = &rv
	}
	return v
}

func (v *SignatureValidator) Enabled() bool {
	return v.validator != nil
}

func (v *SignatureValidator) Verify(r *http.Request) bool {
	if v.validator == nil {
		return true
	}
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return false
	}
	params := map[string]string{}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			slog.Warn("failed to parse twilio webhook form", "error", err)
			return false
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}
	return v.validator.Validate(v.publicBaseURL+r.URL.RequestURI(), params, signature)
}
