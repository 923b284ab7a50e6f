// Package retrieval turns a user utterance into the context bundle for
// one reply: scoped knowledge matches plus bounded recent history.
package retrieval

import (
	"context"
	"strings"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/pkg/log"
)

type Assembler struct {
	cfg       *config.AppConfig
	embedder  core.Embedder
	knowledge core.KnowledgeRepository
	events    core.EventsRepository
}

func NewAssembler(
	cfg *config.AppConfig,
	embedder core.Embedder,
	knowledge core.KnowledgeRepository,
	events core.EventsRepository,
) *Assembler {
	return &Assembler{
		cfg:       cfg,
		embedder:  embedder,
		knowledge: knowledge,
		events:    events,
	}
}

// Assemble never fails the turn: an embedding outage or empty scope
// degrades to NoKnowledge instead of an error. currentEventID excludes
// the just-inserted inbound message from the history window.
func (a *Assembler) Assemble(ctx context.Context, utterance, conversationKey, currentEventID string) core.ConversationContext {
	logger := log.FromCtx(ctx)

	cc := core.ConversationContext{}
	cc.History = a.recentHistory(ctx, conversationKey, currentEventID)

	scopeKey := ScopeKey(conversationKey)
	hasScope, err := a.knowledge.HasScope(ctx, scopeKey)
	if err != nil {
		logger.Error().Err(err).Msg("knowledge scope check failed")
		cc.NoKnowledge = true
		return cc
	}
	if !hasScope {
		cc.NoKnowledge = true
		return cc
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.EmbedTimeout)
	defer cancel()

	vector, err := a.embedder.Embed(ctx, utterance)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to embed query, degrading to no context")
		cc.NoKnowledge = true
		return cc
	}

	matches, err := a.knowledge.Query(ctx, scopeKey, vector, a.cfg.RetrievalTopK)
	if err != nil {
		logger.Error().Err(err).Msg("knowledge query failed")
		cc.NoKnowledge = true
		return cc
	}

	chunks := make([]string, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, m.ChunkText)
	}
	cc.ContextBlock = strings.Join(chunks, "\n\n")
	return cc
}

func (a *Assembler) recentHistory(ctx context.Context, conversationKey, currentEventID string) []core.Message {
	history, err := a.events.Recent(ctx, conversationKey, a.cfg.HistoryWindow, currentEventID)
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("failed to load recent history")
		return nil
	}
	return history
}

// ScopeKey resolves the knowledge scope from the conversation key. The
// scope is the channel endpoint side: every conversation through the
// same endpoint shares one indexed document set.
func ScopeKey(conversationKey string) string {
	if i := strings.LastIndex(conversationKey, "|"); i >= 0 {
		return conversationKey[i+1:]
	}
	return conversationKey
}
