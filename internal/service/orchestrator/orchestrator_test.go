package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sandevgo/relaybot/internal/config"
	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/internal/service/dispatch"
	"github.com/sandevgo/relaybot/internal/service/flow"
	"github.com/sandevgo/relaybot/internal/service/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memEvents is an in-memory EventsRepository with the same uniqueness
// semantics as the sqlite implementation.
type memEvents struct {
	mu       sync.Mutex
	messages []core.Message
}

func (m *memEvents) InsertInbound(ctx context.Context, msg core.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.messages {
		if existing.ID == msg.ID {
			return core.ErrDuplicateEvent
		}
	}
	msg.Direction = core.DirectionInbound
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memEvents) InsertOutbound(ctx context.Context, msg core.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Direction = core.DirectionOutbound
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memEvents) MarkResponded(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Responded = true
		}
	}
	return nil
}

func (m *memEvents) Recent(ctx context.Context, key string, limit int, excludeID string) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Message
	for _, msg := range m.messages {
		if msg.ConversationKey == key && msg.ID != excludeID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memEvents) HasOutbound(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ConversationKey == key && msg.Direction == core.DirectionOutbound {
			return true, nil
		}
	}
	return false, nil
}

func (m *memEvents) count(direction core.Direction) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.Direction == direction {
			n++
		}
	}
	return n
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*core.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*core.Session)}
}

func (m *memSessions) Get(ctx context.Context, key string) (*core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (m *memSessions) Upsert(ctx context.Context, session *core.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ConversationKey] = session.Clone()
	return nil
}

type memKnowledge struct{}

func (memKnowledge) AddChunk(ctx context.Context, scope, source, chunk string, vec []float32) error {
	return nil
}
func (memKnowledge) Query(ctx context.Context, scope string, vec []float32, k int) ([]core.RetrievalMatch, error) {
	return []core.RetrievalMatch{{ChunkText: "vr sessions cost 500", Score: 0.2}}, nil
}
func (memKnowledge) HasScope(ctx context.Context, scope string) (bool, error) { return true, nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type stubGenerator struct{ reply string }

func (s stubGenerator) Complete(ctx context.Context, req core.GenerationRequest) (string, error) {
	return s.reply, nil
}
func (s stubGenerator) Stream(ctx context.Context, req core.GenerationRequest) (<-chan string, <-chan error) {
	fragments := make(chan string, 1)
	errCh := make(chan error, 1)
	fragments <- s.reply
	close(fragments)
	close(errCh)
	return fragments, errCh
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, mediaRef string) (core.Transcript, error) {
	return core.Transcript{Text: s.text}, s.err
}

type recordingDeliverer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (d *recordingDeliverer) Send(ctx context.Context, destination, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, text)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fixture struct {
	orch      *Orchestrator
	events    *memEvents
	sessions  *memSessions
	deliverer *recordingDeliverer
}

func newFixture(t *testing.T, deliverer *recordingDeliverer, transcriber core.Transcriber) *fixture {
	t.Helper()

	cfg := &config.AppConfig{
		RetrievalTopK:     3,
		HistoryWindow:     10,
		NoContextMode:     "canned",
		TranscribeTimeout: time.Second,
		EmbedTimeout:      time.Second,
		GenerateTimeout:   time.Second,
		DeliverTimeout:    time.Second,
	}
	genCfg := &config.GenerationConfig{MaxHistoryTokens: 1000}

	events := &memEvents{}
	sessions := newMemSessions()
	assembler := retrieval.NewAssembler(cfg, stubEmbedder{}, memKnowledge{}, events)
	policy := dispatch.NewPolicy(cfg, genCfg, stubGenerator{reply: "sure, when?"}, events)

	orch := New(cfg, events, sessions, flow.NewMachine(flow.DefaultConfig()),
		assembler, policy, transcriber, deliverer)

	return &fixture{orch: orch, events: events, sessions: sessions, deliverer: deliverer}
}

func textEvent(id, text string) core.InboundEvent {
	return core.InboundEvent{
		ID:              id,
		ConversationKey: "user-1|channel-1",
		OccurredAt:      time.Now().UTC(),
		Kind:            core.ContentText,
		EventKind:       core.EventUserMessage,
		RawText:         text,
	}
}

func TestHandle_RepliesAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{})

	outcome, err := f.orch.Handle(ctx, textEvent("m1", "hi, VR chahiye"))
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeReplied, outcome)
	assert.Equal(t, 1, f.deliverer.count())
	assert.Equal(t, 1, f.events.count(core.DirectionInbound))
	assert.Equal(t, 1, f.events.count(core.DirectionOutbound))

	session, err := f.sessions.Get(ctx, "user-1|channel-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, core.StageCollecting, session.Stage)
	assert.Equal(t, []string{"group_size", "date", "time"}, session.PendingFields)
}

func TestHandle_DuplicateIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{})

	_, err := f.orch.Handle(ctx, textEvent("m1", "hi, VR chahiye"))
	require.NoError(t, err)

	outcome, err := f.orch.Handle(ctx, textEvent("m1", "hi, VR chahiye"))
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDuplicate, outcome)

	assert.Equal(t, 1, f.events.count(core.DirectionInbound))
	assert.Equal(t, 1, f.deliverer.count(), "duplicate must not trigger a second reply")
}

func TestHandle_ConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{})

	const n = 8
	var wg sync.WaitGroup
	outcomes := make(chan core.Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.orch.Handle(ctx, textEvent("m-race", "hi, VR chahiye"))
			require.NoError(t, err)
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	replied := 0
	for outcome := range outcomes {
		if outcome == core.OutcomeReplied {
			replied++
		}
	}
	assert.Equal(t, 1, replied, "exactly one concurrent delivery may process the event")
	assert.Equal(t, 1, f.events.count(core.DirectionInbound))
	assert.Equal(t, 1, f.deliverer.count())
}

func TestHandle_EchoAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{})

	event := textEvent("echo-1", "our own reply mirrored back")
	event.EventKind = core.EventEcho

	outcome, err := f.orch.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeAcknowledged, outcome)
	assert.Zero(t, f.deliverer.count())
	assert.Equal(t, 1, f.events.count(core.DirectionInbound), "echo is still stored")
}

func TestHandle_TranscriptionFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{err: errors.New("no speech")})

	event := textEvent("v1", "")
	event.Kind = core.ContentAudio
	event.MediaRef = "https://cdn.example/voice.ogg"

	outcome, err := f.orch.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeTranscriptionFailed, outcome)
	assert.Zero(t, f.deliverer.count())

	// Session state did not advance.
	session, err := f.sessions.Get(ctx, "user-1|channel-1")
	require.NoError(t, err)
	assert.Nil(t, session)

	// Redelivery of the same media is deduplicated, not reprocessed.
	outcome, err = f.orch.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDuplicate, outcome)
}

func TestHandle_AudioTranscribed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{text: "VR chahiye"})

	event := textEvent("v2", "")
	event.Kind = core.ContentAudio
	event.MediaRef = "https://cdn.example/voice.ogg"

	outcome, err := f.orch.Handle(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeReplied, outcome)

	session, err := f.sessions.Get(ctx, "user-1|channel-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, core.StageCollecting, session.Stage)
}

func TestHandle_DeliveryFailurePersistsState(t *testing.T) {
	ctx := context.Background()
	deliverer := &recordingDeliverer{err: errors.New("provider 503")}
	f := newFixture(t, deliverer, stubTranscriber{})

	outcome, err := f.orch.Handle(ctx, textEvent("m1", "hi, VR chahiye"))
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeDeliveryFailed, outcome)

	// State advanced even though nothing was sent.
	session, err := f.sessions.Get(ctx, "user-1|channel-1")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, core.StageCollecting, session.Stage)
	assert.NotEmpty(t, session.PendingReply)

	assert.Zero(t, f.events.count(core.DirectionOutbound), "unsent reply is not recorded")
}

func TestResendPending(t *testing.T) {
	ctx := context.Background()
	deliverer := &recordingDeliverer{err: errors.New("provider 503")}
	f := newFixture(t, deliverer, stubTranscriber{})

	_, err := f.orch.Handle(ctx, textEvent("m1", "hi, VR chahiye"))
	require.NoError(t, err)

	// Provider recovers; the explicit retry path delivers the reply.
	deliverer.mu.Lock()
	deliverer.err = nil
	deliverer.mu.Unlock()

	require.NoError(t, f.orch.ResendPending(ctx, "user-1|channel-1"))
	assert.Equal(t, 1, f.deliverer.count())
	assert.Equal(t, 1, f.events.count(core.DirectionOutbound))

	session, err := f.sessions.Get(ctx, "user-1|channel-1")
	require.NoError(t, err)
	assert.Empty(t, session.PendingReply)

	// Nothing left to resend.
	err = f.orch.ResendPending(ctx, "user-1|channel-1")
	assert.ErrorIs(t, err, core.ErrNoPendingReply)
}

func TestHandle_StoppedSessionStaysSilent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{})

	_, err := f.orch.Handle(ctx, textEvent("m1", "hi, VR chahiye"))
	require.NoError(t, err)

	outcome, err := f.orch.Handle(ctx, textEvent("m4", "nahi thanks"))
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeReplied, outcome, "polite close is still sent")

	outcome, err = f.orch.Handle(ctx, textEvent("m5", "VR chahiye"))
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeSuppressed, outcome)

	session, err := f.sessions.Get(ctx, "user-1|channel-1")
	require.NoError(t, err)
	assert.Equal(t, core.StageStopped, session.Stage)
	assert.Empty(t, session.Slots["group_size"], "no capture while stopped")
}

func TestHandle_GreetingAtMostOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &recordingDeliverer{}, stubTranscriber{})

	send := func(id, text string) {
		event := textEvent(id, text)
		event.SenderDisplayName = "Priya"
		_, err := f.orch.Handle(ctx, event)
		require.NoError(t, err)
	}

	send("m1", "hi, VR chahiye")
	send("m2", "4 log, 5pm")
	send("m3", "today")

	f.deliverer.mu.Lock()
	defer f.deliverer.mu.Unlock()
	greeted := 0
	for _, text := range f.deliverer.sent {
		if len(text) >= 8 && text[:8] == "Hi Priya" {
			greeted++
		}
	}
	assert.Equal(t, 1, greeted, "greeting must appear in exactly one reply across the trace")
}
