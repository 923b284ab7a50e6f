package core

import "time"

const (
	RelayName    = "RelayBot"
	RelayVersion = "0.1.0"
)

// ContentKind distinguishes the payload of an inbound event.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentAudio ContentKind = "audio"
)

// EventKind distinguishes user-originated messages from provider echoes
// (delivery confirmations, our own outbound mirrored back). Echoes are
// stored and acknowledged, never answered.
type EventKind string

const (
	EventUserMessage EventKind = "message"
	EventEcho        EventKind = "echo"
)

// InboundEvent is the immutable record of one received channel event.
// ID is provider-assigned and globally unique; redelivery of the same
// ID must be a no-op at the event store boundary.
type InboundEvent struct {
	ID                string
	ConversationKey   string
	OccurredAt        time.Time
	Kind              ContentKind
	EventKind         EventKind
	RawText           string
	MediaRef          string
	SenderDisplayName string
}

// Direction of a stored message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is a stored conversation turn, either direction. Created once
// per event or reply and never mutated except for the Responded flag.
type Message struct {
	ID              string
	ConversationKey string
	Direction       Direction
	Text            string
	CreatedAt       time.Time
	Responded       bool
}

// Stage enumerates the session state machine.
type Stage string

const (
	StageInit       Stage = "INIT"
	StageCollecting Stage = "COLLECTING"
	StageConfirming Stage = "CONFIRMING"
	StageStopped    Stage = "STOPPED"
)

// Session is the durable per-conversation state record. Exactly one
// session exists per conversation key; it is never hard-deleted, only
// reset back to its initial shape.
type Session struct {
	ConversationKey string
	Stage           Stage
	Intent          string
	Slots           map[string]string
	PendingFields   []string
	LastUserText    string
	// PendingReply holds the last reply that was produced but not
	// delivered, so delivery can be retried keyed by the session
	// rather than by replaying the original event.
	PendingReply string
	UpdatedAt    time.Time
}

// NewSession returns the initial session for a conversation key.
func NewSession(conversationKey string) *Session {
	return &Session{
		ConversationKey: conversationKey,
		Stage:           StageInit,
		Slots:           make(map[string]string),
	}
}

// Reset rewrites the session back to its initial state in place.
func (s *Session) Reset() {
	s.Stage = StageInit
	s.Intent = ""
	s.Slots = make(map[string]string)
	s.PendingFields = nil
	s.PendingReply = ""
}

// Clone returns a deep copy so callers can mutate freely before upsert.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Slots = make(map[string]string, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	cp.PendingFields = append([]string(nil), s.PendingFields...)
	return &cp
}

// RetrievalMatch is one ranked chunk from the knowledge index. It lives
// only for the duration of a single orchestration pass.
type RetrievalMatch struct {
	ChunkText string
	Score     float32
	SourceID  string
}

// ConversationContext is the transient bundle handed to the dispatch
// policy: bounded recent history oldest-first, concatenated retrieval
// text, and whether any knowledge scope was usable at all.
type ConversationContext struct {
	History      []Message
	ContextBlock string
	NoKnowledge  bool
	Session      *Session
}

// ActionKind tells the dispatch policy what the state machine decided.
type ActionKind string

const (
	ActionGenerateReply ActionKind = "generate"
	ActionSendCanned    ActionKind = "canned"
	// ActionSuppress is the intentional-silence path: the session is
	// STOPPED and the user has not reset it.
	ActionSuppress ActionKind = "suppress"
)

// RequiredAction is the state machine's instruction to the dispatcher.
// For generate actions, AskFields carries the still-pending fields the
// reply should be scoped to; empty means full-context generation.
type RequiredAction struct {
	Kind       ActionKind
	CannedText string
	AskFields  []string
}

// Outcome classifies one completed Handle pass.
type Outcome string

const (
	OutcomeReplied             Outcome = "replied"
	OutcomeDuplicate           Outcome = "duplicate"
	OutcomeAcknowledged        Outcome = "acknowledged"
	OutcomeTranscriptionFailed Outcome = "transcription_failed"
	OutcomeDeliveryFailed      Outcome = "delivery_failed"
	OutcomeSuppressed          Outcome = "suppressed"
)
