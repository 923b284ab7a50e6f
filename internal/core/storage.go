package core

import "context"

// EventsRepository owns message persistence. The orchestrator is the
// only writer.
type EventsRepository interface {
	// InsertInbound stores the message atomically. It returns
	// ErrDuplicateEvent if the id is already present; this uniqueness
	// check is the single idempotency guarantee for the pipeline and
	// must be enforced by the storage engine, not application logic.
	InsertInbound(ctx context.Context, msg Message) error

	// InsertOutbound stores a delivered reply.
	InsertOutbound(ctx context.Context, msg Message) error

	// MarkResponded flips the responded flag on an inbound message.
	MarkResponded(ctx context.Context, id string) error

	// Recent returns up to limit messages for the conversation,
	// oldest-first, excluding the message with excludeID.
	Recent(ctx context.Context, conversationKey string, limit int, excludeID string) ([]Message, error)

	// HasOutbound reports whether any outbound message has been stored
	// for the conversation. Gates the one-time greeting.
	HasOutbound(ctx context.Context, conversationKey string) (bool, error)
}

// SessionsRepository owns the per-conversation state record.
type SessionsRepository interface {
	// Get returns the session for the key, or nil when none exists yet.
	Get(ctx context.Context, conversationKey string) (*Session, error)

	// Upsert persists the session keyed by its conversation key.
	Upsert(ctx context.Context, session *Session) error
}

// KnowledgeRepository is the vectorized chunk store behind retrieval.
type KnowledgeRepository interface {
	// AddChunk indexes one chunk of source text under a scope.
	AddChunk(ctx context.Context, scopeKey, sourceID, chunk string, vector []float32) error

	// Query returns up to k matches within the scope ranked best-first.
	// Ties keep insertion order.
	Query(ctx context.Context, scopeKey string, vector []float32, k int) ([]RetrievalMatch, error)

	// HasScope reports whether any chunks are indexed for the scope.
	HasScope(ctx context.Context, scopeKey string) (bool, error)
}
