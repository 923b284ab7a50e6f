// Package orchestrator is the pipeline entry point: one inbound event
// becomes exactly one state transition and at most one outbound
// message, no matter how often the provider redelivers it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/internal/service/dispatch"
	"github.com/sandevgo/relaybot/internal/service/flow"
	"github.com/sandevgo/relaybot/internal/service/retrieval"
	"github.com/sandevgo/relaybot/pkg/log"
)

type Orchestrator struct {
	cfg         *config.AppConfig
	events      core.EventsRepository
	sessions    core.SessionsRepository
	machine     *flow.Machine
	assembler   *retrieval.Assembler
	policy      *dispatch.Policy
	transcriber core.Transcriber
	deliverer   core.Deliverer
	locks       *convLocks
}

func New(
	cfg *config.AppConfig,
	events core.EventsRepository,
	sessions core.SessionsRepository,
	machine *flow.Machine,
	assembler *retrieval.Assembler,
	policy *dispatch.Policy,
	transcriber core.Transcriber,
	deliverer core.Deliverer,
) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		events:      events,
		sessions:    sessions,
		machine:     machine,
		assembler:   assembler,
		policy:      policy,
		transcriber: transcriber,
		deliverer:   deliverer,
		locks:       newConvLocks(),
	}
}

// Handle processes one inbound event end to end. The returned outcome
// is always meaningful; an error accompanies only infrastructure
// failures that prevented the event from being recorded at all.
func (o *Orchestrator) Handle(ctx context.Context, event core.InboundEvent) (core.Outcome, error) {
	logger := log.FromCtx(ctx)

	lock := o.locks.get(event.ConversationKey)
	lock.Lock()
	defer lock.Unlock()

	// Dedup insert is the single idempotency guarantee: a uniqueness
	// rejection here stops all further work.
	err := o.events.InsertInbound(ctx, core.Message{
		ID:              event.ID,
		ConversationKey: event.ConversationKey,
		Text:            event.RawText,
		CreatedAt:       event.OccurredAt,
	})
	if errors.Is(err, core.ErrDuplicateEvent) {
		logger.Debug().Str("event_id", event.ID).Msg("duplicate event, skipping")
		return core.OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to record inbound event: %w", err)
	}

	// Echo and status events are stored and acknowledged, never answered.
	if event.EventKind != core.EventUserMessage {
		return core.OutcomeAcknowledged, nil
	}

	utterance := event.RawText
	if event.Kind == core.ContentAudio {
		utterance = o.transcribe(ctx, event)
		if strings.TrimSpace(utterance) == "" {
			// Recorded but unresponded; a redelivery of the same media
			// carries the same id and is already deduplicated.
			return core.OutcomeTranscriptionFailed, nil
		}
	}

	session, err := o.loadSession(ctx, event.ConversationKey)
	if err != nil {
		return "", err
	}

	action := o.machine.Transition(session, utterance)

	var reply dispatch.Reply
	if action.Kind == core.ActionGenerateReply {
		cc := o.assembler.Assemble(ctx, utterance, event.ConversationKey, event.ID)
		cc.Session = session
		reply = o.policy.Decide(ctx, session, cc, action, event.SenderDisplayName)
	} else {
		reply = o.policy.Decide(ctx, session, core.ConversationContext{Session: session}, action, event.SenderDisplayName)
	}

	if reply.Suppress {
		if err := o.sessions.Upsert(ctx, session); err != nil {
			logger.Error().Err(err).Msg("failed to persist session")
		}
		return core.OutcomeSuppressed, nil
	}

	delivered := o.deliver(ctx, event.ConversationKey, reply.Text)

	// The state transition is persisted regardless of delivery: the
	// conversation moves on and delivery is retryable on its own,
	// keyed by the session.
	if !delivered {
		session.PendingReply = reply.Text
	} else {
		session.PendingReply = ""
	}
	if err := o.sessions.Upsert(ctx, session); err != nil {
		logger.Error().Err(err).Msg("failed to persist session")
	}

	if !delivered {
		return core.OutcomeDeliveryFailed, nil
	}

	// Delivery happened; prefer losing the audit record over ever
	// double-sending, so failures past this point are only logged.
	if err := o.recordOutbound(ctx, event, reply.Text); err != nil {
		logger.Error().Err(err).Msg("failed to record delivered reply")
	}

	return core.OutcomeReplied, nil
}

// ResendPending retries delivery of a reply that was produced but never
// sent. It is keyed by the session, not by replaying the original
// event, so it cannot re-run the state machine.
func (o *Orchestrator) ResendPending(ctx context.Context, conversationKey string) error {
	lock := o.locks.get(conversationKey)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.sessions.Get(ctx, conversationKey)
	if err != nil {
		return err
	}
	if session == nil || session.PendingReply == "" {
		return core.ErrNoPendingReply
	}

	if !o.deliver(ctx, conversationKey, session.PendingReply) {
		return core.ErrDeliveryFailed
	}

	text := session.PendingReply
	session.PendingReply = ""
	if err := o.sessions.Upsert(ctx, session); err != nil {
		return err
	}

	return o.events.InsertOutbound(ctx, core.Message{
		ID:              uuid.NewString(),
		ConversationKey: conversationKey,
		Text:            text,
		CreatedAt:       time.Now().UTC(),
	})
}

func (o *Orchestrator) transcribe(ctx context.Context, event core.InboundEvent) string {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.TranscribeTimeout)
	defer cancel()

	transcript, err := o.transcriber.Transcribe(ctx, event.MediaRef)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("transcription failed")
		return ""
	}
	return transcript.Text
}

func (o *Orchestrator) loadSession(ctx context.Context, conversationKey string) (*core.Session, error) {
	session, err := o.sessions.Get(ctx, conversationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		session = core.NewSession(conversationKey)
	}
	return session, nil
}

func (o *Orchestrator) deliver(ctx context.Context, conversationKey, text string) bool {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.DeliverTimeout)
	defer cancel()

	if err := o.deliverer.Send(ctx, conversationKey, text); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("conversation", conversationKey).Msg("delivery failed")
		return false
	}
	return true
}

func (o *Orchestrator) recordOutbound(ctx context.Context, event core.InboundEvent, text string) error {
	if err := o.events.InsertOutbound(ctx, core.Message{
		ID:              uuid.NewString(),
		ConversationKey: event.ConversationKey,
		Text:            text,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		return err
	}
	return o.events.MarkResponded(ctx, event.ID)
}
