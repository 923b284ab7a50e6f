// Package telegram adapts Telegram long polling to the event pipeline.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/internal/service/orchestrator"
	"github.com/sandevgo/relaybot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type Bot struct {
	bot    *tele.Bot
	cfg    *config.TelegramConfig
	orch   *orchestrator.Orchestrator
	sender *sender
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	orch *orchestrator.Orchestrator,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:    b,
		cfg:    cfg,
		orch:   orch,
		sender: newSender(b),
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleText)
	b.Handle(tele.OnVoice, bot.handleVoice)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

// Sender returns the outbound side of this transport as a core.Deliverer.
func (b *Bot) Sender() core.Deliverer {
	return b.sender
}

func (b *Bot) handleText(c tele.Context) error {
	event := b.newEvent(c)
	event.Kind = core.ContentText
	event.RawText = c.Text()
	return b.dispatch(c, event)
}

func (b *Bot) handleVoice(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	file, err := b.bot.FileByID(c.Message().Voice.FileID)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to resolve voice file url")
		return c.Send("Sorry, I could not read that voice message. Could you type it out?")
	}
	fileURL := fmt.Sprintf("%s/file/bot%s/%s", b.bot.URL, b.bot.Token, file.FilePath)

	event := b.newEvent(c)
	event.Kind = core.ContentAudio
	event.MediaRef = fileURL
	return b.dispatch(c, event)
}

// newEvent maps an update to the transport-neutral inbound shape. The
// message id is unique per chat, so the combined id survives Telegram's
// own redeliveries.
func (b *Bot) newEvent(c tele.Context) core.InboundEvent {
	return core.InboundEvent{
		ID:                fmt.Sprintf("tg-%d-%d", c.Chat().ID, c.Message().ID),
		ConversationKey:   conversationKey(b.bot.Me.Username, c.Chat().ID),
		OccurredAt:        c.Message().Time(),
		EventKind:         core.EventUserMessage,
		SenderDisplayName: c.Sender().FirstName,
	}
}

func (b *Bot) dispatch(c tele.Context, event core.InboundEvent) error {
	ctx := c.Get(baseContextKey).(context.Context)
	logger := log.FromCtx(ctx)

	// Notify user we are working
	_ = c.Notify(tele.Typing)

	outcome, err := b.orch.Handle(ctx, event)
	if err != nil {
		logger.Error().Err(err).Str("event_id", event.ID).Msg("failed to handle telegram event")
		return nil
	}

	if outcome == core.OutcomeTranscriptionFailed {
		return c.Send("Sorry, I could not make out that voice message. Could you type it out?")
	}

	logger.Debug().Str("event_id", event.ID).Str("outcome", string(outcome)).Msg("telegram event handled")
	return nil
}

func conversationKey(botUsername string, chatID int64) string {
	return fmt.Sprintf("telegram-%s|%d", botUsername, chatID)
}
