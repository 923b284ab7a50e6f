package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sandevgo/relaybot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const maxTelegramMsgLen = 4000 // Safety margin below 4096

type sender struct {
	bot *tele.Bot
}

func newSender(bot *tele.Bot) *sender {
	return &sender{bot: bot}
}

// Send implements core.Deliverer. The destination is a conversation key
// of the form "telegram-<bot>|<chatID>".
func (s *sender) Send(ctx context.Context, destination, text string) error {
	chatID, err := chatIDFromKey(destination)
	if err != nil {
		return err
	}

	logger := log.FromCtx(ctx)
	for i, chunk := range splitText(strings.TrimSpace(text), maxTelegramMsgLen) {
		if _, err := s.bot.Send(tele.ChatID(chatID), chunk); err != nil {
			logger.Error().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("failed to send telegram chunk")
			return err
		}
	}
	return nil
}

func chatIDFromKey(key string) (int64, error) {
	idx := strings.LastIndex(key, "|")
	if idx < 0 {
		return 0, fmt.Errorf("malformed conversation key %q", key)
	}
	chatID, err := strconv.ParseInt(key[idx+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed conversation key %q: %w", key, err)
	}
	return chatID, nil
}

// splitText splits text into chunks respecting Telegram's limit.
// It tries to split at newlines to preserve formatting.
func splitText(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cut := maxLen
		// Prefer a newline in the later part of the chunk
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/3 {
			cut = idx
		}

		chunks = append(chunks, text[:cut])
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}
