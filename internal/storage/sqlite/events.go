package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/relaybot/internal/core"
	"github.com/sandevgo/relaybot/pkg/log"
)

type EventsRepo struct {
	db *sql.DB
}

func NewEventsRepo(db *sql.DB) *EventsRepo {
	return &EventsRepo{db: db}
}

// InsertInbound relies on the primary key for dedup: the conflict
// clause makes the insert-or-reject atomic even when two webhook
// deliveries of the same event race on different workers.
func (r *EventsRepo) InsertInbound(ctx context.Context, msg core.Message) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_key, direction, content, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		msg.ID, msg.ConversationKey, string(core.DirectionInbound), msg.Text, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inbound message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrDuplicateEvent
	}
	return nil
}

func (r *EventsRepo) InsertOutbound(ctx context.Context, msg core.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_key, direction, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationKey, string(core.DirectionOutbound), msg.Text, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert outbound message: %w", err)
	}
	return nil
}

func (r *EventsRepo) MarkResponded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET responded = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark message responded: %w", err)
	}
	return nil
}

func (r *EventsRepo) Recent(ctx context.Context, conversationKey string, limit int, excludeID string) ([]core.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_key, direction, content, responded, created_at
		 FROM messages
		 WHERE conversation_key = ? AND id != ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		conversationKey, excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var msg core.Message
		var direction string
		var responded int
		if err := rows.Scan(&msg.ID, &msg.ConversationKey, &direction, &msg.Text, &responded, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Direction = core.Direction(direction)
		msg.Responded = responded == 1
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query returned newest-first; reverse to chronological order
	// for the context window.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded history messages")
	return messages, nil
}

func (r *EventsRepo) HasOutbound(ctx context.Context, conversationKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM messages WHERE conversation_key = ? AND direction = ?`,
		conversationKey, string(core.DirectionOutbound),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count outbound messages: %w", err)
	}
	return n > 0, nil
}
