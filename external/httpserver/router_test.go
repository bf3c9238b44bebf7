package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/callscribe/internal/relay"
	"github.com/gorilla/websocket"
)

type recordingCalls struct {
	active int

	mu       sync.Mutex
	messages []string
	readErr  error
	done     chan struct{}
}

func newRecordingCalls() *recordingCalls {
	return &recordingCalls{done: make(chan struct{})}
}

func (c *recordingCalls) HandleConnection(_ context.Context, conn relay.Connection) error {
	defer close(c.done)
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return nil
		}
		c.mu.Lock()
		c.messages = append(c.messages, string(msg))
		c.mu.Unlock()
	}
}

func (c *recordingCalls) ActiveCalls() int {
	return c.active
}

type stubInstructions struct {
	gotCallSID string
	err        error
}

func (s *stubInstructions) ConnectStream(callSID string) (string, error) {
	s.gotCallSID = callSID
	if s.err != nil {
		return "", s.err
	}
	return "<Response><Connect/></Response>", nil
}

type stubVerifier struct {
	enabled bool
	valid   bool
}

func (v stubVerifier) Enabled() bool { return v.enabled }
func (v stubVerifier) Verify(_ *http.Request) bool { return v.valid }

func TestHealth(t *testing.T) {
	calls := newRecordingCalls()
	calls.active = 2
	router := NewRouter(calls, &stubInstructions{}, stubVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "ok" || body.ActiveCalls != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTwiML_PostReadsCallSID(t *testing.T) {
	instructions := &stubInstructions{}
	router := NewRouter(newRecordingCalls(), instructions, stubVerifier{enabled: true, valid: true})

	form := url.Values{"CallSid": {"CA123"}}
	req := httptest.NewRequest(http.MethodPost, "/twiml", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if instructions.gotCallSID != "CA123" {
		t.Fatalf("unexpected call sid: %q", instructions.gotCallSID)
	}
	if !strings.Contains(rec.Body.String(), "<Connect/>") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestTwiML_GetReadsQuery(t *testing.T) {
	instructions := &stubInstructions{}
	router := NewRouter(newRecordingCalls(), instructions, stubVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/twiml?CallSid=CA777", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if instructions.gotCallSID != "CA777" {
		t.Fatalf("unexpected call sid: %q", instructions.gotCallSID)
	}
}

func TestTwiML_RejectsInvalidSignature(t *testing.T) {
	instructions := &stubInstructions{}
	router := NewRouter(newRecordingCalls(), instructions, stubVerifier{enabled: true, valid: false})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/twiml", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if instructions.gotCallSID != "" {
		t.Fatal("instructions must not be rendered for a rejected request")
	}
}

func TestTwiML_RenderFailure(t *testing.T) {
	router := NewRouter(newRecordingCalls(), &stubInstructions{err: errors.New("boom")}, stubVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/twiml", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestMedia_RelaysWebsocketMessages(t *testing.T) {
	calls := newRecordingCalls()
	srv := httptest.NewServer(NewRouter(calls, &stubInstructions{}, stubVerifier{}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/media"
	client, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	for _, msg := range []string{`{"event":"connected"}`, `{"event":"stop"}`} {
		if err := client.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := client.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case <-calls.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not finish")
	}
	_ = client.Close()

	calls.mu.Lock()
	defer calls.mu.Unlock()
	if len(calls.messages) != 2 || calls.messages[1] != `{"event":"stop"}` {
		t.Fatalf("unexpected messages: %v", calls.messages)
	}
	if !errors.Is(calls.readErr, io.EOF) {
		t.Fatalf("expected io.EOF on normal close, got %v", calls.readErr)
	}
}

func TestMedia_RejectsPlainHTTP(t *testing.T) {
	calls := newRecordingCalls()
	router := NewRouter(calls, &stubInstructions{}, stubVerifier{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	select {
	case <-calls.done:
		t.Fatal("handler must not run without an upgrade")
	default:
	}
}
