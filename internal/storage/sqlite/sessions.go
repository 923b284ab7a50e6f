package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/relaybot/internal/core"
)

type SessionsRepo struct {
	db *sql.DB
}

func NewSessionsRepo(db *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) Get(ctx context.Context, conversationKey string) (*core.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT stage, intent, slots, pending_fields, last_user_text, pending_reply, updated_at
		 FROM sessions WHERE conversation_key = ?`,
		conversationKey,
	)

	var (
		stage, intent, slotsJSON, pendingJSON, lastText, pendingReply string
		updatedAt                                                     time.Time
	)
	err := row.Scan(&stage, &intent, &slotsJSON, &pendingJSON, &lastText, &pendingReply, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session := &core.Session{
		ConversationKey: conversationKey,
		Stage:           core.Stage(stage),
		Intent:          intent,
		LastUserText:    lastText,
		PendingReply:    pendingReply,
		UpdatedAt:       updatedAt,
	}
	if err := json.Unmarshal([]byte(slotsJSON), &session.Slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	if err := json.Unmarshal([]byte(pendingJSON), &session.PendingFields); err != nil {
		return nil, fmt.Errorf("failed to decode pending fields: %w", err)
	}
	if session.Slots == nil {
		session.Slots = make(map[string]string)
	}
	return session, nil
}

func (r *SessionsRepo) Upsert(ctx context.Context, session *core.Session) error {
	slotsJSON, err := json.Marshal(session.Slots)
	if err != nil {
		return fmt.Errorf("failed to encode slots: %w", err)
	}
	pending := session.PendingFields
	if pending == nil {
		pending = []string{}
	}
	pendingJSON, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (conversation_key, stage, intent, slots, pending_fields, last_user_text, pending_reply, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(conversation_key) DO UPDATE SET
			stage = excluded.stage,
			intent = excluded.intent,
			slots = excluded.slots,
			pending_fields = excluded.pending_fields,
			last_user_text = excluded.last_user_text,
			pending_reply = excluded.pending_reply,
			updated_at = excluded.updated_at`,
		session.ConversationKey, string(session.Stage), session.Intent,
		string(slotsJSON), string(pendingJSON), session.LastUserText,
		session.PendingReply, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}
