package transcriber

import (
	"context"
	"log/slog"

	"github.com/foxseedlab/callscribe/internal/config"
	"github.com/foxseedlab/callscribe/internal/relay"
	"github.com/foxseedlab/callscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*CloudSpeechBackend, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudSpeechBackend(context.Background(), CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.TranscribeLanguage,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
		})
	})
	do.Provide(injector, func(i do.Injector) (relay.TranscriberFactory, error) {
		c := do.MustInvoke[*config.Config](i)
		backend := do.MustInvoke[*CloudSpeechBackend](i)
		return NewTranscriberFactory(backend, RecognitionConfigFrom(c), c.TranscriberMaxReconnects), nil
	})
}

func RecognitionConfigFrom(c *config.Config) transcriber.RecognitionConfig {
	cfg := transcriber.DefaultRecognitionConfig()
	cfg.SampleRateHertz = c.AudioSampleRateHz
	cfg.LanguageCode = c.TranscribeLanguage
	cfg.InterimResults = c.TranscribeInterimResults
	cfg.Model = c.GoogleCloudSpeechModel
	return cfg
}

func NewTranscriberFactory(backend transcriber.Backend, cfg transcriber.RecognitionConfig, maxReconnects int) relay.TranscriberFactory {
	return func() relay.Transcriber {
		return transcriber.New(backend, cfg,
			transcriber.WithReconnect(IsReconnectableStreamError, maxReconnects),
			transcriber.WithLogger(slog.Default().With("component", "transcriber")),
		)
	}
}
