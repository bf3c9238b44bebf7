package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
)

func TestNewTwiMLBuilder_StreamURL(t *testing.T) {
	cases := map[string]string{
		"https://calls.example.com":       "wss://calls.example.com/media",
		"https://calls.example.com/":      "wss://calls.example.com/media",
		"http://localhost:8080":           "ws://localhost:8080/media",
		"https://example.com/callscribe/": "wss://example.com/callscribe/media",
	}
	for base, want := range cases {
		b, err := NewTwiMLBuilder(base)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", base, err)
		}
		if b.StreamURL() != want {
			t.Fatalf("base %q: expected %q, got %q", base, want, b.StreamURL())
		}
	}
}

func TestNewTwiMLBuilder_RejectsInvalidBase(t *testing.T) {
	for _, base := range []string{"ftp://example.com", "calls.example.com", "https://"} {
		if _, err := NewTwiMLBuilder(base); err == nil {
			t.Fatalf("expected error for %q", base)
		}
	}
}

func TestConnectStream_RendersConnectStream(t *testing.T) {
	b, err := NewTwiMLBuilder("https://calls.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := b.ConnectStream("CA123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"<Response>",
		"<Connect>",
		`url="wss://calls.example.com/media"`,
		`track="inbound_track"`,
		"<Parameter ",
		`name="callSid"`,
		`value="CA123"`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("expected %q in TwiML: %s", want, doc)
		}
	}
	if strings.Index(doc, "<Connect>") > strings.Index(doc, "<Stream") {
		t.Fatalf("stream must be nested in connect: %s", doc)
	}
}

func TestConnectStream_OmitsParameterWithoutCallSID(t *testing.T) {
	b, err := NewTwiMLBuilder("https://calls.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := b.ConnectStream("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(doc, "<Parameter") {
		t.Fatalf("unexpected parameter in TwiML: %s", doc)
	}
}

// sign reproduces Twilio's signature scheme: HMAC-SHA1 over the URL followed
// by each POST parameter name and value in name order.
func sign(token, fullURL string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator_Disabled(t *testing.T) {
	v := NewSignatureValidator("", "https://calls.example.com")
	if v.Enabled() {
		t.Fatal("expected validator to be disabled")
	}
	req := httptest.NewRequest(http.MethodPost, "/twiml", nil)
	if !v.Verify(req) {
		t.Fatal("disabled validator must accept every request")
	}
}

func TestSignatureValidator_AcceptsValidPost(t *testing.T) {
	const token = "secret-token"
	v := NewSignatureValidator(token, "https://calls.example.com/")
	form := url.Values{"CallSid": {"CA123"}, "From": {"+15551234567"}}
	req := httptest.NewRequest(http.MethodPost, "/twiml", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(signatureHeader, sign(token, "https://calls.example.com/twiml", form))

	if !v.Verify(req) {
		t.Fatal("expected valid signature to be accepted")
	}
}

func TestSignatureValidator_AcceptsValidGet(t *testing.T) {
	const token = "secret-token"
	v := NewSignatureValidator(token, "https://calls.example.com")
	req := httptest.NewRequest(http.MethodGet, "/twiml?CallSid=CA123", nil)
	req.Header.Set(signatureHeader, sign(token, "https://calls.example.com/twiml?CallSid=CA123", nil))

	if !v.Verify(req) {
		t.Fatal("expected valid signature to be accepted")
	}
}

func TestSignatureValidator_RejectsTamperedOrMissing(t *testing.T) {
	const token = "secret-token"
	v := NewSignatureValidator(token, "https://calls.example.com")
	form := url.Values{"CallSid": {"CA123"}}
	signature := sign(token, "https://calls.example.com/twiml", form)

	tampered := url.Values{"CallSid": {"CA999"}}
	req := httptest.NewRequest(http.MethodPost, "/twiml", strings.NewReader(tampered.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(signatureHeader, signature)
	if v.Verify(req) {
		t.Fatal("expected tampered request to be rejected")
	}

	missing := httptest.NewRequest(http.MethodPost, "/twiml", strings.NewReader(form.Encode()))
	missing.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if v.Verify(missing) {
		t.Fatal("expected request without signature to be rejected")
	}
}
