package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/pkg/log"
)

// EventHandler is the slice of the orchestrator the webhook needs.
type EventHandler interface {
	Handle(ctx context.Context, event core.InboundEvent) (core.Outcome, error)
	ResendPending(ctx context.Context, conversationKey string) error
}

// eventPayload is the provider-agnostic ingestion format.
type eventPayload struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	OccurredAt  time.Time `json:"occurredAt"`
	ContentKind string    `json:"contentKind"`
	Text        string    `json:"text"`
	MediaURL    string    `json:"mediaUrl"`
	EventKind   string    `json:"eventKind"`
	SenderName  string    `json:"senderName"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	Outcome   string `json:"outcome"`
}

type Handler struct {
	orch      EventHandler
	embedder  core.Embedder
	knowledge core.KnowledgeRepository
}

func NewHandler(orch EventHandler, embedder core.Embedder, knowledge core.KnowledgeRepository) *Handler {
	return &Handler{orch: orch, embedder: embedder, knowledge: knowledge}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.handleEvent)
	r.Post("/resend", h.handleResend)
	r.Post("/knowledge", h.handleAddKnowledge)
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	var payload eventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ID == "" || payload.From == "" || payload.To == "" {
		respondError(w, http.StatusBadRequest, "id, from and to are required")
		return
	}

	event := core.InboundEvent{
		ID:                payload.ID,
		ConversationKey:   payload.From + "|" + payload.To,
		OccurredAt:        payload.OccurredAt,
		Kind:              core.ContentKind(payload.ContentKind),
		EventKind:         core.EventKind(payload.EventKind),
		RawText:           payload.Text,
		MediaRef:          payload.MediaURL,
		SenderDisplayName: payload.SenderName,
	}
	if event.Kind == "" {
		event.Kind = core.ContentText
	}
	if event.EventKind == "" {
		event.EventKind = core.EventUserMessage
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	outcome, err := h.orch.Handle(r.Context(), event)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Str("event_id", event.ID).Msg("failed to handle event")
		respondError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	// Duplicates are a success so the upstream sender stops retrying.
	respondJSON(w, http.StatusOK, ackResponse{
		Status:    "ok",
		Duplicate: outcome == core.OutcomeDuplicate,
		Outcome:   string(outcome),
	})
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ConversationKey string `json:"conversationKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.ConversationKey == "" {
		respondError(w, http.StatusBadRequest, "conversationKey is required")
		return
	}

	err := h.orch.ResendPending(r.Context(), payload.ConversationKey)
	switch {
	case errors.Is(err, core.ErrNoPendingReply):
		respondError(w, http.StatusNotFound, "no pending reply for conversation")
	case errors.Is(err, core.ErrDeliveryFailed):
		respondError(w, http.StatusBadGateway, "delivery failed")
	case err != nil:
		respondError(w, http.StatusInternalServerError, "resend failed")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *Handler) handleAddKnowledge(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ScopeKey string `json:"scopeKey"`
		SourceID string `json:"sourceId"`
		Chunk    string `json:"chunk"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ScopeKey == "" || payload.Chunk == "" {
		respondError(w, http.StatusBadRequest, "scopeKey and chunk are required")
		return
	}

	vector, err := h.embedder.Embed(r.Context(), payload.Chunk)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to embed knowledge chunk")
		respondError(w, http.StatusBadGateway, "embedding failed")
		return
	}

	if err := h.knowledge.AddChunk(r.Context(), payload.ScopeKey, payload.SourceID, payload.Chunk, vector); err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to store knowledge chunk")
		respondError(w, http.StatusInternalServerError, "failed to store chunk")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"status": "error", "error": msg})
}
