package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/persistence/memory"
)

func TestLeaderboardHandlerCreditsOncePerActivity(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRepository()
	handler := NewLeaderboardHandler(store, zerolog.Nop())

	msg := Message{
		EventType: "activity.logged",
		Timestamp: time.Now().UTC(),
		Payload:   []byte(`{"activity_id":"a1","owner_id":"alice","owner_name":"Alice","kind":"food","recorded_at":"2025-01-02T03:04:05Z"}`),
	}
	before := testutil.ToFloat64(scoreCreditedCounter)

	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	top, err := store.TopScores(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "Alice", top[0].Name)
	require.Equal(t, 1, top[0].Score)
	require.Equal(t, time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC), top[0].UpdatedAt)
	require.InDelta(t, before+1, testutil.ToFloat64(scoreCreditedCounter), 0.0001)
}

func TestLeaderboardHandlerIgnoresOtherEvents(t *testing.T) {
	store := memory.NewRepository()
	handler := NewLeaderboardHandler(store, zerolog.Nop())

	require.NoError(t, handler.Handle(context.Background(), Message{EventType: "footprint.changed", Payload: []byte(`{"owner_id":"alice"}`)}))

	top, err := store.TopScores(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, top)
}

func TestLeaderboardHandlerRejectsMalformedPayload(t *testing.T) {
	handler := NewLeaderboardHandler(memory.NewRepository(), zerolog.Nop())

	err := handler.Handle(context.Background(), Message{EventType: "activity.logged", Payload: []byte(`{`)})
	require.ErrorIs(t, err, ErrMalformedPayload)

	err = handler.Handle(context.Background(), Message{EventType: "activity.logged", Payload: []byte(`{"activity_id":"a1"}`)})
	require.ErrorIs(t, err, ErrMalformedPayload)
}
