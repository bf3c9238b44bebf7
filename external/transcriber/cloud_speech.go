package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/callscribe/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
}

// recognizeStream is the subset of speechpb.Speech_StreamingRecognizeClient
// used by cloudStream.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type CloudSpeechBackend struct {
	client          *speech.Client
	recognizer      string
	location        string
	defaultLanguage string
	defaultModel    string
}

func NewCloudSpeechBackend(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechBackend, error) {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(regionalEndpoint(location)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	return &CloudSpeechBackend{
		client:          client,
		recognizer:      recognizerName(cfg.ProjectID, location),
		location:        location,
		defaultLanguage: cfg.Language,
		defaultModel:    strings.TrimSpace(cfg.Model),
	}, nil
}

func (b *CloudSpeechBackend) Open(ctx context.Context) (transcriber.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := b.client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open streaming recognize: %w", err)
	}
	slog.Info("cloud speech stream opened", "location", b.location, "recognizer", b.recognizer)
	return &cloudStream{
		stream:          stream,
		cancel:          cancel,
		recognizer:      b.recognizer,
		defaultLanguage: b.defaultLanguage,
		defaultModel:    b.defaultModel,
	}, nil
}

func (b *CloudSpeechBackend) Shutdown() error {
	return b.client.Close()
}

type cloudStream struct {
	stream          recognizeStream
	cancel          context.CancelFunc
	recognizer      string
	defaultLanguage string
	defaultModel    string
}

func (s *cloudStream) SendConfig(cfg transcriber.RecognitionConfig) error {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = s.defaultLanguage
	}
	if cfg.Model == "" {
		cfg.Model = s.defaultModel
	}
	req, err := configRequest(s.recognizer, cfg)
	if err != nil {
		return err
	}
	if err := s.stream.Send(req); err != nil {
		return fmt.Errorf("send streaming config: %w", err)
	}
	return nil
}

func (s *cloudStream) SendAudio(chunk transcriber.AudioChunk) error {
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{
			Audio: chunk,
		},
	})
}

func (s *cloudStream) CloseSend() error {
	return s.stream.CloseSend()
}

func (s *cloudStream) Recv() ([]transcriber.TranscriptEvent, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		// io.EOF is passed through unwrapped; it marks a clean close.
		return nil, err
	}
	return transcriptEvents(resp), nil
}

func (s *cloudStream) Close() error {
	s.cancel()
	return nil
}

func configRequest(recognizer string, cfg transcriber.RecognitionConfig) (*speechpb.StreamingRecognizeRequest, error) {
	encoding, err := decodingEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         cfg.Model,
					LanguageCodes: []string{cfg.LanguageCode},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          encoding,
							SampleRateHertz:   int32(cfg.SampleRateHertz),
							AudioChannelCount: 1,
						},
					},
					Features: &speechpb.RecognitionFeatures{
						EnableAutomaticPunctuation: true,
					},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults: cfg.InterimResults,
				},
			},
		},
	}, nil
}

func decodingEncoding(name string) (speechpb.ExplicitDecodingConfig_AudioEncoding, error) {
	switch strings.ToUpper(name) {
	case transcriber.EncodingMulaw:
		return speechpb.ExplicitDecodingConfig_MULAW, nil
	case transcriber.EncodingLinear16:
		return speechpb.ExplicitDecodingConfig_LINEAR16, nil
	}
	return speechpb.ExplicitDecodingConfig_AUDIO_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio encoding %q", name)
}

func transcriptEvents(resp *speechpb.StreamingRecognizeResponse) []transcriber.TranscriptEvent {
	var events []transcriber.TranscriptEvent
	for _, result := range resp.GetResults() {
		if len(result.GetAlternatives()) == 0 {
			continue
		}
		events = append(events, transcriber.TranscriptEvent{
			IsFinal: result.GetIsFinal(),
			Text:    result.GetAlternatives()[0].GetTranscript(),
		})
	}
	return events
}

func regionalEndpoint(location string) string {
	return fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)
}

func recognizerName(projectID, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", projectID, location)
}

// IsReconnectableStreamError reports whether err is the server ending a
// healthy stream because of its duration or idle limits.
func IsReconnectableStreamError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Aborted, codes.OutOfRange, codes.DeadlineExceeded:
	default:
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration of 5 minutes") ||
		strings.Contains(msg, "exceeded maximum allowed stream duration") ||
		strings.Contains(msg, "stream timed out after receiving no more client requests")
}
