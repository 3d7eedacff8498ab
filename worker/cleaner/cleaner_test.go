package cleaner

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pandodao/token-bridge/core"
	"github.com/pandodao/token-bridge/store/session"
	"github.com/pandodao/token-bridge/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	sessions := session.New(storetest.DB(t))

	now := time.Now().UTC().Truncate(time.Microsecond)
	for token, expiredAt := range map[string]time.Time{
		"expired": now.Add(-time.Minute),
		"alive":   now.Add(time.Hour),
	} {
		require.NoError(t, sessions.Create(ctx, &core.Session{
			Token:     token,
			CreatedAt: now.Add(-time.Hour),
			ExpiredAt: expiredAt,
			AccountID: "A",
		}))
	}

	w := New(sessions, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Interval: time.Minute})
	require.NoError(t, w.run(ctx))

	_, err := sessions.Find(ctx, "expired")
	assert.Error(t, err)

	_, err = sessions.Find(ctx, "alive")
	assert.NoError(t, err)
}
