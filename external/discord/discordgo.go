package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/callscribe/internal/notifier"
)

// Discord rejects message content longer than this many characters.
const maxMessageRunes = 2000

type ChannelNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewChannelNotifier(token, channelID string) (*ChannelNotifier, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &ChannelNotifier{session: s, channelID: channelID}, nil
}

func (c *ChannelNotifier) SendMessage(ctx context.Context, content string) error {
	_, err := c.session.ChannelMessageSend(c.channelID, truncateContent(content), discordgo.WithContext(ctx))
	if err != nil {
		return c.wrapError("send channel message", err)
	}
	return nil
}

func (c *ChannelNotifier) SendFile(ctx context.Context, msg notifier.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(c.channelID, &discordgo.MessageSend{
		Content: truncateContent(msg.Content),
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return c.wrapError("send channel file", err)
	}
	return nil
}

func (c *ChannelNotifier) wrapError(op string, err error) error {
	if isRESTNotFound(err) {
		return fmt.Errorf("%s: channel %s not found: %w", op, c.channelID, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

func truncateContent(content string) string {
	if utf8.RuneCountInString(content) <= maxMessageRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:maxMessageRunes-1]) + "…"
}
