package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sandevgo/relaybot/internal/core"
	"github.com/stretchr/testify/require"
)

func TestSessions_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(ctx, filepath.Join(t.TempDir(), "relaybot.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := NewSessionsRepo(db)

	got, err := repo.Get(ctx, "u1|c1")
	require.NoError(t, err)
	require.Nil(t, got)

	session := core.NewSession("u1|c1")
	session.Stage = core.StageCollecting
	session.Intent = "booking"
	session.Slots["group_size"] = "4"
	session.PendingFields = []string{"date", "time"}
	session.LastUserText = "4 log"

	require.NoError(t, repo.Upsert(ctx, session))

	got, err = repo.Get(ctx, "u1|c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, core.StageCollecting, got.Stage)
	require.Equal(t, "booking", got.Intent)
	require.Equal(t, "4", got.Slots["group_size"])
	require.Equal(t, []string{"date", "time"}, got.PendingFields)

	// Second upsert overwrites in place: still one row per key.
	got.Stage = core.StageConfirming
	got.PendingFields = nil
	require.NoError(t, repo.Upsert(ctx, got))

	again, err := repo.Get(ctx, "u1|c1")
	require.NoError(t, err)
	require.Equal(t, core.StageConfirming, again.Stage)
	require.Empty(t, again.PendingFields)
}
