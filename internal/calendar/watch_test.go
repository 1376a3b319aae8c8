package calendar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dailyplan/internal/apperr"
)

func newWatchManager(e *env, webhookURL string) *WatchManager {
	m := NewWatchManager(e.factory, e.repos.SyncStates, webhookURL, 0, zap.NewNop())
	m.now = func() time.Time { return testNow }
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("chan-%d", n)
	}
	return m
}

func TestWatchManager_SetupIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := newWatchManager(e, "https://example.com/webhooks/google/calendar")

	first, err := m.Setup(ctx, e.userID, "primary")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", *first.ChannelID)
	assert.Equal(t, "res-chan-1", *first.ResourceID)
	assert.Equal(t, testNow.Add(DefaultWatchTTL), first.Expiration.UTC())

	second, err := m.Setup(ctx, e.userID, "primary")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same row")
	assert.Equal(t, "chan-2", *second.ChannelID)

	require.Len(t, e.provider.watches, 2)
	assert.Equal(t, "https://example.com/webhooks/google/calendar", e.provider.watches[0].WebhookURL)
	require.Len(t, e.provider.stops, 1, "replaced channel stopped")
	assert.Equal(t, "chan-1", e.provider.stops[0].ChannelID)

	states, err := e.repos.SyncStates.ListByUser(ctx, e.userID)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestWatchManager_SetupNeedsWebhookURL(t *testing.T) {
	e := newEnv(t)
	_, err := newWatchManager(e, "").Setup(context.Background(), e.userID, "primary")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestWatchManager_StopKeepsSyncHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := newWatchManager(e, "https://example.com/hook")

	require.NoError(t, m.Stop(ctx, e.userID, "primary"), "nothing registered is a no-op")
	assert.Zero(t, e.factory.calls)

	_, err := m.Setup(ctx, e.userID, "primary")
	require.NoError(t, err)
	require.NoError(t, e.repos.SyncStates.SaveSyncToken(ctx, e.userID, "primary", "tok", testNow))

	e.provider.stopErr = apperr.NotFound("stop watch", "channel gone")
	require.NoError(t, m.Stop(ctx, e.userID, "primary"))

	state, err := e.repos.SyncStates.Find(ctx, e.userID, "primary")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Nil(t, state.ChannelID)
	assert.Nil(t, state.ResourceID)
	assert.Nil(t, state.Expiration)
	require.NotNil(t, state.SyncToken)
	assert.Equal(t, "tok", *state.SyncToken)
}

func TestWatchManager_RenewExpiring(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	m := newWatchManager(e, "https://example.com/hook")

	_, err := e.repos.SyncStates.UpsertWatch(ctx, e.userID, "soon", "old-1", "res-old-1", testNow.Add(12*time.Hour))
	require.NoError(t, err)
	_, err = e.repos.SyncStates.UpsertWatch(ctx, e.userID, "later", "old-2", "res-old-2", testNow.Add(5*24*time.Hour))
	require.NoError(t, err)

	renewed, err := m.RenewExpiring(ctx, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)

	soon, err := e.repos.SyncStates.Find(ctx, e.userID, "soon")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", *soon.ChannelID)
	later, err := e.repos.SyncStates.Find(ctx, e.userID, "later")
	require.NoError(t, err)
	assert.Equal(t, "old-2", *later.ChannelID)
}
