package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/callscribe/internal/transcriber"
	"golang.org/x/sync/errgroup"
)

const defaultStopTimeout = 30 * time.Second

// ReadMessage returns io.EOF when the peer closed the connection normally.
type Connection interface {
	ReadMessage() ([]byte, error)
	Close() error
}

type Transcriber interface {
	Start(ctx context.Context)
	AddAudioChunk(chunk transcriber.AudioChunk) bool
	GetTranscript(ctx context.Context) (transcriber.TranscriptEvent, bool)
	Stop(ctx context.Context) error
}

type TranscriberFactory func() Transcriber

type Sink interface {
	OnTranscript(ctx context.Context, ev transcriber.TranscriptEvent)
}

type SinkFunc func(ctx context.Context, ev transcriber.TranscriptEvent)

func (f SinkFunc) OnTranscript(ctx context.Context, ev transcriber.TranscriptEvent) {
	f(ctx, ev)
}

type State int32

const (
	StateConnected State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Stats struct {
	MessagesReceived int64
	ChunksForwarded  int64
	ChunksDropped    int64
	MessagesSkipped  int64
	InterimEvents    int64
	FinalEvents      int64
}

type Option func(*MediaRelay)

func WithStopTimeout(d time.Duration) Option {
	return func(r *MediaRelay) {
		if d > 0 {
			r.stopTimeout = d
		}
	}
}

func WithStartHandler(fn func(StartMetadata)) Option {
	return func(r *MediaRelay) {
		r.onStart = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *MediaRelay) {
		if l != nil {
			r.logger = l
		}
	}
}

// MediaRelay feeds one inbound media stream to a transcriber and hands every
// transcript event to a sink.
type MediaRelay struct {
	newTranscriber TranscriberFactory
	sink           Sink
	stopTimeout    time.Duration
	onStart        func(StartMetadata)
	logger         *slog.Logger

	state atomic.Int32

	messagesReceived atomic.Int64
	chunksForwarded  atomic.Int64
	chunksDropped    atomic.Int64
	messagesSkipped  atomic.Int64
	interimEvents    atomic.Int64
	finalEvents      atomic.Int64
}

func New(newTranscriber TranscriberFactory, sink Sink, opts ...Option) *MediaRelay {
	r := &MediaRelay{
		newTranscriber: newTranscriber,
		sink:           sink,
		stopTimeout:    defaultStopTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle returns once the inbound stream has ended and every transcript event
// has been delivered. Transport and backend failures are logged, not returned.
func (r *MediaRelay) Handle(ctx context.Context, conn Connection) error {
	r.logger.Info("media stream connected")
	stopWatch := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stopWatch()

	// Stop bounds the recognition stream, not ctx.
	tr := r.newTranscriber()
	tr.Start(context.WithoutCancel(ctx))
	r.state.Store(int32(StateActive))

	var g errgroup.Group
	g.Go(func() error {
		r.audioWriter(ctx, conn, tr)
		return nil
	})
	g.Go(func() error {
		r.transcriptReader(ctx, tr)
		return nil
	})
	_ = g.Wait()

	r.state.Store(int32(StateClosed))
	stats := r.Stats()
	r.logger.Info("media stream ended",
		"messages_received", stats.MessagesReceived,
		"chunks_forwarded", stats.ChunksForwarded,
		"chunks_dropped", stats.ChunksDropped,
		"messages_skipped", stats.MessagesSkipped,
		"interim_events", stats.InterimEvents,
		"final_events", stats.FinalEvents)
	return nil
}

func (r *MediaRelay) State() State {
	return State(r.state.Load())
}

func (r *MediaRelay) Stats() Stats {
	return Stats{
		MessagesReceived: r.messagesReceived.Load(),
		ChunksForwarded:  r.chunksForwarded.Load(),
		ChunksDropped:    r.chunksDropped.Load(),
		MessagesSkipped:  r.messagesSkipped.Load(),
		InterimEvents:    r.interimEvents.Load(),
		FinalEvents:      r.finalEvents.Load(),
	}
}

func (r *MediaRelay) audioWriter(ctx context.Context, conn Connection, tr Transcriber) {
	defer func() {
		r.enterClosing("inbound stream ended")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.stopTimeout)
		defer cancel()
		if err := tr.Stop(stopCtx); err != nil {
			r.logger.Warn("transcriber did not stop cleanly", "error", err)
		}
	}()

	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Info("media stream closed by peer")
			} else {
				r.logger.Warn("media stream receive failed", "error", err)
			}
			return
		}
		r.messagesReceived.Add(1)
		r.dispatch(msg, tr)
	}
}

func (r *MediaRelay) dispatch(msg []byte, tr Transcriber) {
	env, err := ParseEnvelope(msg)
	if err != nil {
		r.messagesSkipped.Add(1)
		r.logger.Warn("skipping unparsable media stream message", "error", err, "message_bytes", len(msg))
		return
	}
	switch env.Event {
	case EventMedia:
		chunk, err := env.AudioChunk()
		if err != nil {
			r.messagesSkipped.Add(1)
			r.logger.Warn("skipping media message with invalid payload", "error", err, "sequence_number", env.SequenceNumber)
			return
		}
		if tr.AddAudioChunk(chunk) {
			r.chunksForwarded.Add(1)
		} else {
			r.chunksDropped.Add(1)
		}
	case EventStart:
		if env.Start == nil {
			r.logger.Warn("start event without metadata", "stream_sid", env.StreamSID)
			return
		}
		r.logger.Info("media stream started",
			"call_sid", env.Start.CallSID,
			"stream_sid", env.Start.StreamSID,
			"encoding", env.Start.MediaFormat.Encoding,
			"sample_rate", env.Start.MediaFormat.SampleRate)
		if r.onStart != nil {
			r.onStart(*env.Start)
		}
	case EventStop:
		r.logger.Info("media stream stop received", "stream_sid", env.StreamSID)
	case EventConnected:
		r.logger.Debug("media stream handshake received")
	case EventMark:
		if env.Mark != nil {
			r.logger.Debug("media stream mark received", "name", env.Mark.Name)
		}
	case EventDTMF:
		if env.DTMF != nil {
			r.logger.Info("media stream dtmf received", "digit", env.DTMF.Digit)
		}
	default:
		r.logger.Debug("ignoring media stream event", "event", env.Event)
	}
}

func (r *MediaRelay) transcriptReader(ctx context.Context, tr Transcriber) {
	readCtx := context.WithoutCancel(ctx)
	for {
		ev, ok := tr.GetTranscript(readCtx)
		if !ok {
			r.enterClosing("transcript stream ended")
			return
		}
		if ev.IsFinal {
			r.finalEvents.Add(1)
		} else {
			r.interimEvents.Add(1)
		}
		r.sink.OnTranscript(readCtx, ev)
	}
}

func (r *MediaRelay) enterClosing(reason string) {
	if r.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		r.logger.Info("media relay closing", "reason", reason)
	}
}
