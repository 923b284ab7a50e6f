package core

import "errors"

// Pipeline error taxonomy. Every collaborator failure maps to one of
// these; nothing propagates past the orchestrator unhandled.
var (
	// ErrDuplicateEvent is benign: the event id was already stored.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrTranscriptionFailed means an audio event yielded no text. The
	// event stays recorded but unresponded.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrDeliveryFailed means the reply was produced but not sent. The
	// session transition is still persisted.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrConfigurationMissing means channel credentials or another
	// per-conversation setting is absent. Processing aborts for that
	// conversation only and is not retried automatically.
	ErrConfigurationMissing = errors.New("configuration missing")

	// ErrNoPendingReply is returned by the session-keyed resend path
	// when the session has nothing waiting to go out.
	ErrNoPendingReply = errors.New("no pending reply")
)
