package core

import "context"

// Transcript is the result of transcribing a voice note.
type Transcript struct {
	Text     string
	Language string
}

// Transcriber converts an audio media reference to text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaRef string) (Transcript, error)
}

// Embedder computes a query vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerationRequest is the single normalized input to the generator.
type GenerationRequest struct {
	SystemInstruction string
	History           []Message
	UserText          string
}

// Generator produces the reply text. Complete is single-shot; Stream
// emits ordered fragments and closing the channel is the end-of-stream
// marker. A failure is surfaced, never retried internally.
type Generator interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
	Stream(ctx context.Context, req GenerationRequest) (<-chan string, <-chan error)
}

// Deliverer pushes a reply to the user's channel endpoint. Credentials
// are resolved per-destination from configuration.
type Deliverer interface {
	Send(ctx context.Context, destination, text string) error
}
