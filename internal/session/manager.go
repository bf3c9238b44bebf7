package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/callscribe/internal/config"
	"github.com/foxseedlab/callscribe/internal/notifier"
	"github.com/foxseedlab/callscribe/internal/relay"
	"github.com/foxseedlab/callscribe/internal/repository"
	"github.com/foxseedlab/callscribe/internal/transcriber"
	"github.com/foxseedlab/callscribe/internal/webhook"
)

const finalizeTimeout = 30 * time.Second

var ErrShuttingDown = errors.New("session manager is shutting down")

type Manager struct {
	cfg            *config.Config
	repo           repository.Repository
	notifier       notifier.Notifier
	webhook        webhook.Sender
	newTranscriber relay.TranscriberFactory
	loc            *time.Location
	now            func() time.Time

	mu           sync.Mutex
	calls        map[string]*activeCall
	shuttingDown bool
	wg           sync.WaitGroup
}

type activeCall struct {
	conn      relay.Connection
	record    *repository.Call
	startedAt time.Time

	mu   sync.Mutex
	meta CallMetadata
}

func (c *activeCall) metadata() CallMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta
}

func NewManager(cfg *config.Config, repo repository.Repository, n notifier.Notifier, wh webhook.Sender, newTranscriber relay.TranscriberFactory) *Manager {
	loc, err := time.LoadLocation(cfg.TranscriptTimezone)
	if err != nil {
		slog.Warn("invalid transcript timezone; falling back to UTC", "timezone", cfg.TranscriptTimezone, "error", err)
		loc = time.UTC
	}
	return &Manager{
		cfg:            cfg,
		repo:           repo,
		notifier:       n,
		webhook:        wh,
		newTranscriber: newTranscriber,
		loc:            loc,
		now:            time.Now,
		calls:          make(map[string]*activeCall),
	}
}

// HandleConnection blocks for the whole call.
func (m *Manager) HandleConnection(ctx context.Context, conn relay.Connection) error {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		_ = conn.Close()
		return ErrShuttingDown
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	startedAt := m.now()
	record, err := m.repo.CreateCall(ctx, repository.CreateCallInput{StartedAt: startedAt})
	if err != nil {
		_ = conn.Close()
		slog.Error("failed to create call in repository", "error", err)
		return fmt.Errorf("create call: %w", err)
	}
	call := &activeCall{
		conn:      conn,
		record:    record,
		startedAt: startedAt,
		meta:      CallMetadata{CallID: record.ID},
	}
	m.register(call)
	defer m.unregister(call)
	logger := slog.Default().With("call_id", record.ID)
	logger.Info("call activated", "active_calls", m.ActiveCalls())

	sink := &callSink{manager: m, call: call, logger: logger}
	r := relay.New(m.newTranscriber, sink,
		relay.WithStopTimeout(m.cfg.TranscriberStopTimeout()),
		relay.WithStartHandler(func(meta relay.StartMetadata) {
			m.onStreamStart(ctx, call, meta, logger)
		}),
		relay.WithLogger(logger),
	)
	if err := r.Handle(ctx, conn); err != nil {
		logger.Error("media relay failed", "error", err)
	}

	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	m.finalizeCall(finalizeCtx, call, sink.snapshot(), logger)
	return nil
}

func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shuttingDown = true
	conns := make([]relay.Connection, 0, len(m.calls))
	for _, c := range m.calls {
		conns = append(conns, c.conn)
	}
	m.mu.Unlock()

	slog.Info("closing active calls", "count", len(conns))
	for _, conn := range conns {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for active calls: %w", ctx.Err())
	}
}

func (m *Manager) ActiveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *Manager) register(c *activeCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[c.record.ID] = c
	if m.shuttingDown {
		_ = c.conn.Close()
	}
}

func (m *Manager) unregister(c *activeCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.calls, c.record.ID)
}

func (m *Manager) onStreamStart(ctx context.Context, call *activeCall, meta relay.StartMetadata, logger *slog.Logger) {
	call.mu.Lock()
	call.meta.CallSID = meta.CallSID
	call.meta.StreamSID = meta.StreamSID
	call.mu.Unlock()

	if err := m.repo.UpdateCallStream(ctx, repository.UpdateCallStreamInput{
		CallID:    call.record.ID,
		CallSID:   meta.CallSID,
		StreamSID: meta.StreamSID,
	}); err != nil {
		logger.Error("failed to record call stream", "error", err, "call_sid", meta.CallSID)
	}
	if err := m.notifier.SendMessage(ctx, callStartedMessage(meta.CallSID)); err != nil {
		logger.Error("failed to post call start message", "error", err)
	}
}

func (m *Manager) finalizeCall(ctx context.Context, call *activeCall, buffered []repository.TranscriptSegment, logger *slog.Logger) {
	endedAt := m.now()
	meta := call.metadata()

	if err := m.repo.CompleteCall(ctx, repository.CompleteCallInput{
		CallID:  call.record.ID,
		EndedAt: endedAt,
	}); err != nil {
		logger.Error("failed to complete call", "error", err)
	}

	segments, err := m.repo.ListSegmentsByCallID(ctx, call.record.ID)
	switch {
	case err != nil:
		logger.Error("failed to list transcript segments; using buffered segments", "error", err, "buffered", len(buffered))
		segments = buffered
	case len(segments) < len(buffered):
		logger.Warn("repository is missing transcript segments; using buffered segments", "stored", len(segments), "buffered", len(buffered))
		segments = buffered
	}

	if len(segments) == 0 {
		if err := m.notifier.SendMessage(ctx, callEndedWithoutSpeechMessage(meta.CallSID)); err != nil {
			logger.Error("failed to post call end message", "error", err)
		}
	} else {
		body := buildTranscriptText(meta, call.startedAt, endedAt, m.cfg.TranscriptTimezone, m.loc, segments)
		if err := m.notifier.SendFile(ctx, notifier.FileMessage{
			Content:  callTranscriptTitle(meta.CallSID),
			Filename: transcriptFilename(meta),
			FileBody: body,
		}); err != nil {
			logger.Error("failed to post transcript attachment", "error", err)
		}
	}

	payload := buildTranscriptWebhookPayload(meta, call.startedAt, endedAt, m.cfg.TranscriptTimezone, m.loc, segments)
	if err := m.webhook.SendTranscript(ctx, payload); err != nil {
		logger.Error("failed to send webhook transcript", "error", err)
	}
	logger.Info("call finalized", "call_sid", meta.CallSID, "segments", len(segments), "duration_seconds", payload.DurationSeconds)
}

type callSink struct {
	manager *Manager
	call    *activeCall
	logger  *slog.Logger

	mu       sync.Mutex
	segments []repository.TranscriptSegment
}

func (s *callSink) OnTranscript(ctx context.Context, ev transcriber.TranscriptEvent) {
	s.logger.Debug("transcript event", "is_final", ev.IsFinal, "text", ev.Text)
	text := strings.TrimSpace(ev.Text)
	if !ev.IsFinal || text == "" {
		return
	}
	m := s.manager
	spokenAt := m.now()

	s.mu.Lock()
	seg := repository.TranscriptSegment{
		CallID:       s.call.record.ID,
		Content:      text,
		SegmentIndex: len(s.segments),
		SpokenAt:     spokenAt,
	}
	s.segments = append(s.segments, seg)
	s.mu.Unlock()

	s.logger.Info("final transcript", "segment_index", seg.SegmentIndex, "text", text)
	if err := m.repo.InsertSegment(ctx, repository.InsertSegmentInput{
		CallID:       seg.CallID,
		Content:      seg.Content,
		SegmentIndex: seg.SegmentIndex,
		SpokenAt:     seg.SpokenAt,
	}); err != nil {
		s.logger.Error("failed to insert segment", "error", err, "segment_index", seg.SegmentIndex)
	}
	if err := m.notifier.SendMessage(ctx, transcriptLineMessage(spokenAt.Sub(s.call.startedAt), text)); err != nil {
		s.logger.Error("failed to post transcript message", "error", err)
	}
}

func (s *callSink) snapshot() []repository.TranscriptSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.TranscriptSegment(nil), s.segments...)
}
