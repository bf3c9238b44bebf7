package config

import (
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	Env                        string
	HTTPAddr                   string
	PublicBaseURL              string
	TranscribeLanguage         string
	AudioSampleRateHz          int
	TranscribeInterimResults   bool
	TranscriberStopTimeoutSec  int
	TranscriberMaxReconnects   int
	DatabaseURL                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TwilioAuthToken            string
	DiscordToken               string
	DiscordChannelID           string
	TranscriptWebhookURL       string
	TranscriptTimezone         string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.PublicBaseURL)
	}
	if c.AudioSampleRateHz <= 0 {
		return fmt.Errorf("AUDIO_SAMPLE_RATE_HZ must be positive, got %d", c.AudioSampleRateHz)
	}
	if c.TranscriberStopTimeoutSec <= 0 {
		return fmt.Errorf("TRANSCRIBER_STOP_TIMEOUT_SEC must be positive, got %d", c.TranscriberStopTimeoutSec)
	}
	if c.TranscriberMaxReconnects < 0 {
		return fmt.Errorf("TRANSCRIBER_MAX_RECONNECTS must not be negative, got %d", c.TranscriberMaxReconnects)
	}
	if (c.DiscordToken == "") != (c.DiscordChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_CHANNEL_ID must be set together")
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_ADDR", value: c.HTTPAddr},
		{name: "PUBLIC_BASE_URL", value: c.PublicBaseURL},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
		{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON},
		{name: "TRANSCRIPT_TIMEZONE", value: c.TranscriptTimezone},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) DiscordEnabled() bool {
	return c.DiscordToken != "" && c.DiscordChannelID != ""
}

func (c *Config) TranscriberStopTimeout() time.Duration {
	return time.Duration(c.TranscriberStopTimeoutSec) * time.Second
}
