// Package flow is the per-conversation state machine. Transitions are
// driven entirely by the declarative Config tables; no inline keyword
// checks live anywhere else.
package flow

import (
	"strings"

	"github.com/sandevgo/relaybot/internal/core"
)

type Machine struct {
	cfg Config
}

func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// Transition applies one utterance to the session and returns the
// action the dispatcher must take. The session is mutated in place;
// callers own persistence.
func (m *Machine) Transition(session *core.Session, text string) core.RequiredAction {
	lower := strings.ToLower(text)
	session.LastUserText = text

	// Reject wins over reset when both lexicons match.
	if session.Stage != core.StageStopped && m.matchesAny(lower, m.cfg.RejectWords) {
		session.Stage = core.StageStopped
		return core.RequiredAction{Kind: core.ActionSendCanned, CannedText: m.cfg.CloseMessage}
	}

	if m.matchesAny(lower, m.cfg.ResetWords) {
		session.Reset()
		return core.RequiredAction{Kind: core.ActionGenerateReply}
	}

	// Terminal until an explicit reset: no capture, no reply.
	if session.Stage == core.StageStopped {
		return core.RequiredAction{Kind: core.ActionSuppress}
	}

	if session.Stage == core.StageInit {
		if intent := m.matchIntent(lower); intent != nil {
			session.Intent = intent.Name
			session.Stage = core.StageCollecting
			session.PendingFields = make([]string, 0, len(intent.Fields))
			for _, f := range intent.Fields {
				session.PendingFields = append(session.PendingFields, f.Name)
			}
			// The seeding utterance may already carry slot values.
			m.capture(session, text)
			return m.collectingAction(session)
		}
		// No intent recognized yet; free-form fallback.
		return core.RequiredAction{Kind: core.ActionGenerateReply}
	}

	if session.Stage == core.StageCollecting {
		m.capture(session, text)
		return m.collectingAction(session)
	}

	// CONFIRMING: nothing left to capture, full-context generation.
	return core.RequiredAction{Kind: core.ActionGenerateReply}
}

// capture applies each pending field's matcher in the order the fields
// were declared pending. Filled slots are never re-matched or
// overwritten; capture only ever shrinks PendingFields.
func (m *Machine) capture(session *core.Session, text string) {
	intent := m.intentByName(session.Intent)
	if intent == nil {
		return
	}

	remaining := session.PendingFields[:0]
	for _, name := range session.PendingFields {
		spec := intent.fieldByName(name)
		if spec == nil {
			continue
		}
		if value, ok := spec.Match(text); ok {
			session.Slots[name] = value
			continue
		}
		remaining = append(remaining, name)
	}
	session.PendingFields = remaining
}

func (m *Machine) collectingAction(session *core.Session) core.RequiredAction {
	if len(session.PendingFields) == 0 {
		session.Stage = core.StageConfirming
		return core.RequiredAction{Kind: core.ActionGenerateReply}
	}
	return core.RequiredAction{
		Kind:      core.ActionGenerateReply,
		AskFields: append([]string(nil), session.PendingFields...),
	}
}

func (m *Machine) matchesAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (m *Machine) matchIntent(lower string) *Intent {
	for i := range m.cfg.Intents {
		if m.matchesAny(lower, m.cfg.Intents[i].Keywords) {
			return &m.cfg.Intents[i]
		}
	}
	return nil
}

func (m *Machine) intentByName(name string) *Intent {
	for i := range m.cfg.Intents {
		if m.cfg.Intents[i].Name == name {
			return &m.cfg.Intents[i]
		}
	}
	return nil
}

func (in *Intent) fieldByName(name string) *FieldSpec {
	for i := range in.Fields {
		if in.Fields[i].Name == name {
			return &in.Fields[i]
		}
	}
	return nil
}
