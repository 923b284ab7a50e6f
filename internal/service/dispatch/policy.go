// Package dispatch decides how a required action becomes reply text:
// canned paths bypass generation entirely, generate paths call the
// collaborator exactly once and always degrade to a fixed fallback.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/pkg/log"
)

const (
	fallbackText = "Sorry, I could not process that right now. Please try again in a little while."
	noInfoText   = "Sorry, I do not have details on that yet. Our team will get back to you shortly."
)

// Reply is the dispatch result. Suppress means intentional silence.
type Reply struct {
	Text     string
	Suppress bool
}

type Policy struct {
	cfg       *config.AppConfig
	generator core.Generator
	events    core.EventsRepository
	trimmer   *historyTrimmer
}

func NewPolicy(cfg *config.AppConfig, genCfg *config.GenerationConfig, generator core.Generator, events core.EventsRepository) *Policy {
	return &Policy{
		cfg:       cfg,
		generator: generator,
		events:    events,
		trimmer:   newHistoryTrimmer(genCfg.MaxHistoryTokens),
	}
}

// Decide executes the state machine's required action. Canned paths
// never touch the generator so they cannot fail on a downstream outage.
func (p *Policy) Decide(ctx context.Context, session *core.Session, cc core.ConversationContext, action core.RequiredAction, senderName string) Reply {
	switch action.Kind {
	case core.ActionSuppress:
		return Reply{Suppress: true}
	case core.ActionSendCanned:
		return Reply{Text: action.CannedText}
	}

	if cc.NoKnowledge && p.cfg.NoContextMode == "canned" {
		return p.withGreeting(ctx, session, Reply{Text: noInfoText}, senderName)
	}

	text := p.generate(ctx, session, cc, action)
	return p.withGreeting(ctx, session, Reply{Text: text}, senderName)
}

// generate invokes the collaborator once. No internal retry: repeated
// generation calls are costly and non-idempotent in effect downstream.
func (p *Policy) generate(ctx context.Context, session *core.Session, cc core.ConversationContext, action core.RequiredAction) string {
	logger := log.FromCtx(ctx)

	req := core.GenerationRequest{
		SystemInstruction: p.buildInstruction(session, cc, action),
		History:           p.trimmer.trim(cc.History),
		UserText:          session.LastUserText,
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.GenerateTimeout)
	defer cancel()

	var text string
	var err error
	if p.cfg.StreamReplies {
		text, err = p.drainStream(ctx, req)
	} else {
		text, err = p.generator.Complete(ctx, req)
	}
	if err != nil {
		logger.Error().Err(err).Msg("generation failed, substituting fallback")
		return fallbackText
	}
	if strings.TrimSpace(text) == "" {
		logger.Warn().Msg("generator returned empty content, substituting fallback")
		return fallbackText
	}
	return text
}

func (p *Policy) drainStream(ctx context.Context, req core.GenerationRequest) (string, error) {
	fragments, errCh := p.generator.Stream(ctx, req)

	var b strings.Builder
	for f := range fragments {
		b.WriteString(f)
	}
	if err := <-errCh; err != nil {
		return "", err
	}
	return b.String(), nil
}

// withGreeting prepends a one-time greeting using the cleaned sender
// name. The gate is "no prior delivered assistant message", so it never
// fires twice and never reappears after idle periods.
func (p *Policy) withGreeting(ctx context.Context, session *core.Session, reply Reply, senderName string) Reply {
	name := sanitizeName(senderName)
	if name == "" || reply.Text == "" {
		return reply
	}

	greeted, err := p.events.HasOutbound(ctx, session.ConversationKey)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to check greeting gate")
		return reply
	}
	if greeted {
		return reply
	}

	reply.Text = fmt.Sprintf("Hi %s! %s", name, reply.Text)
	return reply
}

func (p *Policy) buildInstruction(session *core.Session, cc core.ConversationContext, action core.RequiredAction) string {
	var b strings.Builder

	b.WriteString("You are a friendly booking assistant replying in a chat conversation. ")
	b.WriteString("Mirror the language and tone of the user's message. ")
	b.WriteString("Keep every reply short enough for a single chat message. ")
	b.WriteString("Never mention internal systems, documents, search results or how you obtained information.\n")

	if cc.ContextBlock != "" {
		b.WriteString("\nUse the following business information when relevant:\n")
		b.WriteString(cc.ContextBlock)
		b.WriteString("\n")
	} else {
		b.WriteString("\nNo business information is available. If the user asks for specifics you do not know, say that someone from the team will follow up. Do not invent details.\n")
	}

	if len(session.Slots) > 0 {
		b.WriteString("\nAlready provided by the user (never ask for these again):\n")
		for name, value := range session.Slots {
			fmt.Fprintf(&b, "- %s: %s\n", name, value)
		}
	}

	if len(action.AskFields) > 0 {
		b.WriteString("\nAsk only for the following missing details, nothing else, and do not greet the user as if the conversation just started: ")
		b.WriteString(strings.Join(action.AskFields, ", "))
		b.WriteString("\n")
	}

	if session.Stage == core.StageConfirming {
		b.WriteString("\nAll details are collected. Summarize them and ask the user to confirm.\n")
	}

	return b.String()
}
