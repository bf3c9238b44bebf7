package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/foxseedlab/callscribe/internal/relay"
	"github.com/foxseedlab/callscribe/internal/telephony"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

const readHeaderTimeout = 10 * time.Second

type CallHandler interface {
	HandleConnection(ctx context.Context, conn relay.Connection) error
	ActiveCalls() int
}

type handlers struct {
	calls        CallHandler
	instructions telephony.StreamInstructions
	verifier     telephony.RequestVerifier
	upgrader     websocket.Upgrader
}

func NewRouter(calls CallHandler, instructions telephony.StreamInstructions, verifier telephony.RequestVerifier) http.Handler {
	h := &handlers{
		calls:        calls,
		instructions: instructions,
		verifier:     verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
		},
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", h.health)
	router.Get("/twiml", h.twiml)
	router.Post("/twiml", h.twiml)
	router.Get("/media", h.media)
	return router
}

func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

type healthResponse struct {
	Status      string `json:"status"`
	ActiveCalls int    `json:"active_calls"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", ActiveCalls: h.calls.ActiveCalls()})
}

func (h *handlers) twiml(w http.ResponseWriter, r *http.Request) {
	if h.verifier.Enabled() && !h.verifier.Verify(r) {
		slog.Warn("rejected twiml request with invalid signature", "remote_addr", r.RemoteAddr)
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	callSID := r.FormValue("CallSid")
	doc, err := h.instructions.ConnectStream(callSID)
	if err != nil {
		slog.Error("failed to render twiml", "error", err, "call_sid", callSID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	slog.Info("serving twiml", "call_sid", callSID)
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(doc))
}

func (h *handlers) media(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("media stream upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	conn := newWSConnection(ws)
	defer func() { _ = conn.Close() }()

	if err := h.calls.HandleConnection(r.Context(), conn); err != nil {
		slog.Error("media stream connection failed", "error", err, "remote_addr", r.RemoteAddr)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
