package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/relaybot/internal/core"
)

type KnowledgeRepo struct {
	db *sql.DB
}

func NewKnowledgeRepo(db *sql.DB) *KnowledgeRepo {
	return &KnowledgeRepo{db: db}
}

func (r *KnowledgeRepo) AddChunk(ctx context.Context, scopeKey, sourceID, chunk string, vector []float32) error {
	vecBlob, err := serializeVector(vector)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO knowledge (scope_key, source_id, chunk) VALUES (?, ?, ?)`,
		scopeKey, sourceID, chunk,
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge chunk: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	// rowid ties the vector to the chunk.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO knowledge_vec (rowid, embedding) VALUES (?, ?)`,
		id, vecBlob,
	)
	if err != nil {
		return fmt.Errorf("failed to insert knowledge vector: %w", err)
	}

	return tx.Commit()
}

// Query runs KNN over the whole vec table and filters to the scope via
// the join, so it over-fetches before the LIMIT. vec_distance is L2:
// lower is better. Ties fall back to k.id, which is insertion order.
func (r *KnowledgeRepo) Query(ctx context.Context, scopeKey string, vector []float32, k int) ([]core.RetrievalMatch, error) {
	vecBlob, err := serializeVector(vector)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT k.chunk, k.source_id, v.distance
		 FROM knowledge_vec v
		 JOIN knowledge k ON k.id = v.rowid
		 WHERE v.embedding MATCH ? AND v.k = ? AND k.scope_key = ?
		 ORDER BY v.distance, k.id
		 LIMIT ?`,
		vecBlob, k*4, scopeKey, k,
	)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	defer rows.Close()

	var matches []core.RetrievalMatch
	for rows.Next() {
		var m core.RetrievalMatch
		if err := rows.Scan(&m.ChunkText, &m.SourceID, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *KnowledgeRepo) HasScope(ctx context.Context, scopeKey string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM knowledge WHERE scope_key = ?`, scopeKey,
	).Scan(&n)
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to check knowledge scope: %w", err)
	}
	return n > 0, nil
}
