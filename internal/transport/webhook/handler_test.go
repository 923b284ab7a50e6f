package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	outcome   core.Outcome
	handleErr error
	resendErr error
	lastEvent core.InboundEvent
}

func (s *stubPipeline) Handle(_ context.Context, event core.InboundEvent) (core.Outcome, error) {
	s.lastEvent = event
	return s.outcome, s.handleErr
}

func (s *stubPipeline) ResendPending(context.Context, string) error {
	return s.resendErr
}

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2}, nil
}

type stubKnowledge struct {
	scopes []string
	chunks []string
	addErr error
}

func (s *stubKnowledge) AddChunk(_ context.Context, scopeKey, _ string, chunk string, _ []float32) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.scopes = append(s.scopes, scopeKey)
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *stubKnowledge) Query(context.Context, string, []float32, int) ([]core.RetrievalMatch, error) {
	return nil, nil
}

func (s *stubKnowledge) HasScope(context.Context, string) (bool, error) {
	return false, nil
}

func newTestRouter(pipeline *stubPipeline, embedder *stubEmbedder, knowledge *stubKnowledge) http.Handler {
	r := chi.NewRouter()
	r.Route("/webhook", NewHandler(pipeline, embedder, knowledge).RegisterRoutes)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleEvent_Replied(t *testing.T) {
	pipeline := &stubPipeline{outcome: core.OutcomeReplied}
	router := newTestRouter(pipeline, &stubEmbedder{}, &stubKnowledge{})

	rec := postJSON(t, router, "/webhook/events", map[string]any{
		"id":   "evt-1",
		"from": "14155550100",
		"to":   "user-77",
		"text": "hello",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, "replied", resp.Outcome)

	assert.Equal(t, "14155550100|user-77", pipeline.lastEvent.ConversationKey)
	assert.Equal(t, core.ContentText, pipeline.lastEvent.Kind)
	assert.Equal(t, core.EventUserMessage, pipeline.lastEvent.EventKind)
	assert.False(t, pipeline.lastEvent.OccurredAt.IsZero())
}

func TestHandleEvent_DuplicateIsSuccess(t *testing.T) {
	pipeline := &stubPipeline{outcome: core.OutcomeDuplicate}
	router := newTestRouter(pipeline, &stubEmbedder{}, &stubKnowledge{})

	rec := postJSON(t, router, "/webhook/events", map[string]any{
		"id":   "evt-1",
		"from": "14155550100",
		"to":   "user-77",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
}

func TestHandleEvent_MissingFields(t *testing.T) {
	router := newTestRouter(&stubPipeline{}, &stubEmbedder{}, &stubKnowledge{})

	rec := postJSON(t, router, "/webhook/events", map[string]any{"text": "no ids"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleEvent_PipelineError(t *testing.T) {
	pipeline := &stubPipeline{handleErr: errors.New("db down")}
	router := newTestRouter(pipeline, &stubEmbedder{}, &stubKnowledge{})

	rec := postJSON(t, router, "/webhook/events", map[string]any{
		"id":   "evt-1",
		"from": "a",
		"to":   "b",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleResend(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"delivered", nil, http.StatusOK},
		{"nothing pending", core.ErrNoPendingReply, http.StatusNotFound},
		{"still failing", core.ErrDeliveryFailed, http.StatusBadGateway},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubPipeline{resendErr: tc.err}, &stubEmbedder{}, &stubKnowledge{})

			rec := postJSON(t, router, "/webhook/resend", map[string]any{
				"conversationKey": "a|b",
			})

			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func TestHandleAddKnowledge(t *testing.T) {
	knowledge := &stubKnowledge{}
	router := newTestRouter(&stubPipeline{}, &stubEmbedder{}, knowledge)

	rec := postJSON(t, router, "/webhook/knowledge", map[string]any{
		"scopeKey": "user-77",
		"sourceId": "faq.md",
		"chunk":    "sessions run for 30 minutes",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, knowledge.chunks, 1)
	assert.Equal(t, "user-77", knowledge.scopes[0])
}

func TestHandleAddKnowledge_EmbedFailure(t *testing.T) {
	router := newTestRouter(&stubPipeline{}, &stubEmbedder{err: errors.New("upstream down")}, &stubKnowledge{})

	rec := postJSON(t, router, "/webhook/knowledge", map[string]any{
		"scopeKey": "user-77",
		"chunk":    "some text",
	})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
