package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/callscribe/internal/config"
)

type envConfig struct {
	Env                        string `env:"ENV" envDefault:"production"`
	HTTPAddr                   string `env:"HTTP_ADDR" envDefault:":8080"`
	PublicBaseURL              string `env:"PUBLIC_BASE_URL,required"`
	TranscribeLanguage         string `env:"TRANSCRIBE_LANGUAGE" envDefault:"en-US"`
	AudioSampleRateHz          int    `env:"AUDIO_SAMPLE_RATE_HZ" envDefault:"8000"`
	TranscribeInterimResults   bool   `env:"TRANSCRIBE_INTERIM_RESULTS" envDefault:"true"`
	TranscriberStopTimeoutSec  int    `env:"TRANSCRIBER_STOP_TIMEOUT_SEC" envDefault:"30"`
	TranscriberMaxReconnects   int    `env:"TRANSCRIBER_MAX_RECONNECTS" envDefault:"5"`
	DatabaseURL                string `env:"DATABASE_URL,required"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID,required"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON,required"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"telephony"`
	TwilioAuthToken            string `env:"TWILIO_AUTH_TOKEN"`
	DiscordToken               string `env:"DISCORD_TOKEN"`
	DiscordChannelID           string `env:"DISCORD_CHANNEL_ID"`
	TranscriptWebhookURL       string `env:"TRANSCRIPT_WEBHOOK_URL"`
	TranscriptTimezone         string `env:"TRANSCRIPT_TIMEZONE" envDefault:"UTC"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPAddr:                   raw.HTTPAddr,
		PublicBaseURL:              raw.PublicBaseURL,
		TranscribeLanguage:         raw.TranscribeLanguage,
		AudioSampleRateHz:          raw.AudioSampleRateHz,
		TranscribeInterimResults:   raw.TranscribeInterimResults,
		TranscriberStopTimeoutSec:  raw.TranscriberStopTimeoutSec,
		TranscriberMaxReconnects:   raw.TranscriberMaxReconnects,
		DatabaseURL:                raw.DatabaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TwilioAuthToken:            raw.TwilioAuthToken,
		DiscordToken:               raw.DiscordToken,
		DiscordChannelID:           raw.DiscordChannelID,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		TranscriptTimezone:         raw.TranscriptTimezone,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
