package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/foxseedlab/callscribe/internal/queue"
	"golang.org/x/sync/errgroup"
)

type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// errStreamEnded marks a clean close of the backend's response side.
var errStreamEnded = errors.New("recognition stream ended")

type Option func(*StreamingTranscriber)

// WithReconnect re-opens the backend stream when it fails with an error
// isReconnectable accepts. max caps consecutive re-opens of streams that
// neither sent audio nor delivered results.
func WithReconnect(isReconnectable func(error) bool, max int) Option {
	return func(t *StreamingTranscriber) {
		t.isReconnectable = isReconnectable
		t.maxReconnects = max
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *StreamingTranscriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// StreamingTranscriber bridges pushed audio chunks to a streaming recognition
// backend and exposes the results through GetTranscript.
type StreamingTranscriber struct {
	backend         Backend
	config          RecognitionConfig
	logger          *slog.Logger
	isReconnectable func(error) bool
	maxReconnects   int

	audio       *queue.Queue[AudioChunk]
	transcripts *queue.Queue[TranscriptEvent]

	state atomic.Int32

	mu            sync.Mutex
	started       bool
	stopRequested bool
	cancel        context.CancelFunc
	done          chan struct{}

	pending    AudioChunk
	hasPending bool
}

func New(backend Backend, cfg RecognitionConfig, opts ...Option) *StreamingTranscriber {
	t := &StreamingTranscriber{
		backend:     backend,
		config:      cfg,
		logger:      slog.Default(),
		audio:       queue.New[AudioChunk](),
		transcripts: queue.New[TranscriptEvent](),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start launches the background goroutine that owns the backend stream. It
// returns immediately. Calls after the first, or after Stop, do nothing.
func (t *StreamingTranscriber) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopRequested {
		return
	}
	t.started = true
	streamCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state.Store(int32(StateStreaming))
	go t.run(streamCtx)
}

// AddAudioChunk queues chunk for the backend without blocking and reports
// whether it was accepted. Empty chunks and chunks added after the audio
// input has ended are dropped.
func (t *StreamingTranscriber) AddAudioChunk(chunk AudioChunk) bool {
	if len(chunk) == 0 {
		return false
	}
	if !t.audio.Push(chunk) {
		t.logger.Debug("audio chunk dropped after input ended", "chunk_bytes", len(chunk))
		return false
	}
	return true
}

// GetTranscript waits for the next event. ok is false once the transcript
// stream has ended, or when ctx ends first.
func (t *StreamingTranscriber) GetTranscript(ctx context.Context) (TranscriptEvent, bool) {
	ev, err := t.transcripts.Pop(ctx)
	if err != nil {
		return TranscriptEvent{}, false
	}
	return ev, true
}

// Stop marks the end of audio input and waits until the background goroutine
// has exited. If ctx ends first the backend stream is cancelled, the goroutine
// is still awaited, and ctx.Err() is returned. Stop may be called more than once.
func (t *StreamingTranscriber) Stop(ctx context.Context) error {
	t.mu.Lock()
	started := t.started
	t.stopRequested = true
	t.mu.Unlock()

	if t.audio.Close() {
		if t.state.CompareAndSwap(int32(StateStreaming), int32(StateDraining)) {
			t.logger.Info("transcriber draining", "queued_chunks", t.audio.Len())
		}
	}
	if !started {
		t.transcripts.Close()
		t.state.Store(int32(StateClosed))
		return nil
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		t.logger.Warn("transcriber stop timed out; cancelling recognition stream", "error", ctx.Err())
		t.cancel()
		<-t.done
		return ctx.Err()
	}
}

func (t *StreamingTranscriber) Done() <-chan struct{} {
	return t.done
}

func (t *StreamingTranscriber) State() State {
	return State(t.state.Load())
}

func (t *StreamingTranscriber) run(ctx context.Context) {
	defer close(t.done)
	defer t.cancel()
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("transcribe loop panicked", "panic", r)
		}
		t.audio.Close()
		t.transcripts.Close()
		t.state.Store(int32(StateClosed))
		t.logger.Info("transcribe loop exited")
	}()

	t.logger.Info("transcribe loop started",
		"encoding", t.config.Encoding,
		"sample_rate_hz", t.config.SampleRateHertz,
		"language", t.config.LanguageCode,
		"interim_results", t.config.InterimResults)

	failures := 0
	for streams := 1; ; streams++ {
		progressed, err := t.streamOnce(ctx)
		if err == nil {
			return
		}
		if progressed {
			failures = 0
		}
		if !t.shouldReconnect(ctx, err, failures) {
			if ctx.Err() != nil {
				t.logger.Info("transcribe loop cancelled", "error", err)
				return
			}
			t.logger.Error("transcribe loop failed", "error", err, "streams", streams)
			return
		}
		failures++
		t.logger.Warn("recognition stream aborted; reconnecting",
			"error", err,
			"streams", streams,
			"consecutive_failures", failures,
			"max_reconnects", t.maxReconnects)
	}
}

func (t *StreamingTranscriber) shouldReconnect(ctx context.Context, err error, failures int) bool {
	if t.isReconnectable == nil || failures >= t.maxReconnects || ctx.Err() != nil {
		return false
	}
	if t.audio.Closed() && t.audio.Len() == 0 && !t.hasPending {
		return false
	}
	return t.isReconnectable(err)
}

// streamOnce runs one backend stream to its end. progressed reports whether
// the stream sent audio or delivered results.
func (t *StreamingTranscriber) streamOnce(ctx context.Context) (progressed bool, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	stream, err := t.backend.Open(gctx)
	if err != nil {
		return false, fmt.Errorf("open recognition stream: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			t.logger.Warn("failed to close recognition stream", "error", err)
		}
	}()
	if err := stream.SendConfig(t.config); err != nil {
		return false, fmt.Errorf("send recognition config: %w", err)
	}

	var sent, received int
	g.Go(func() error {
		var err error
		sent, err = t.pumpAudio(gctx, stream)
		return err
	})
	g.Go(func() error {
		var err error
		received, err = t.pumpResults(stream)
		return err
	})

	err = g.Wait()
	progressed = sent > 0 || received > 0
	if errors.Is(err, errStreamEnded) {
		return progressed, nil
	}
	return progressed, err
}

func (t *StreamingTranscriber) pumpAudio(ctx context.Context, stream Stream) (int, error) {
	sent := 0
	for {
		chunk := t.pending
		if !t.hasPending {
			next, err := t.audio.Pop(ctx)
			if errors.Is(err, queue.ErrClosed) {
				t.logger.Info("audio input ended; closing send side", "sent_chunks", sent)
				if err := stream.CloseSend(); err != nil {
					return sent, fmt.Errorf("close send: %w", err)
				}
				return sent, nil
			}
			if err != nil {
				return sent, err
			}
			chunk = next
		}
		t.pending, t.hasPending = nil, false
		if err := stream.SendAudio(chunk); err != nil {
			t.pending, t.hasPending = chunk, true
			// The real cause of an io.EOF from Send surfaces through Recv.
			if errors.Is(err, io.EOF) {
				return sent, nil
			}
			return sent, fmt.Errorf("send audio: %w", err)
		}
		sent++
	}
}

func (t *StreamingTranscriber) pumpResults(stream Stream) (int, error) {
	received := 0
	for {
		events, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return received, errStreamEnded
		}
		if err != nil {
			return received, fmt.Errorf("receive results: %w", err)
		}
		for _, ev := range events {
			t.transcripts.Push(ev)
		}
		received += len(events)
	}
}
