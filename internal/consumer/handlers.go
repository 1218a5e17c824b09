package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/events"
)

// Chain runs handlers in order and stops at the first error.
type Chain []Handler

// Handle implements Handler.
func (c Chain) Handle(ctx context.Context, msg Message) error {
	for _, h := range c {
		if err := h.Handle(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// ScoreStore credits logged activities to the leaderboard.
type ScoreStore interface {
	CreditActivity(ctx context.Context, activityID, ownerID, name string, at time.Time) (bool, error)
}

// LeaderboardHandler scores one point per logged activity. Credits are keyed
// by activity id, so redelivered events do not double count.
type LeaderboardHandler struct {
	store  ScoreStore
	logger zerolog.Logger
}

// NewLeaderboardHandler constructs a LeaderboardHandler.
func NewLeaderboardHandler(store ScoreStore, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{store: store, logger: logger}
}

// Handle implements Handler. Events other than activity.logged are ignored.
func (h *LeaderboardHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.TypeActivityLogged {
		return nil
	}

	var event events.ActivityLogged
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if event.ActivityID == "" || event.OwnerID == "" {
		return fmt.Errorf("%w: activity_id and owner_id are required", ErrMalformedPayload)
	}

	at := event.RecordedAt
	if at.IsZero() {
		at = msg.Timestamp
	}
	credited, err := h.store.CreditActivity(ctx, event.ActivityID, event.OwnerID, event.OwnerName, at)
	if err != nil {
		return err
	}
	if credited {
		recordScoreCredited()
		h.logger.Debug().Str("owner_id", event.OwnerID).Str("activity_id", event.ActivityID).Msg("leaderboard credited")
	}
	return nil
}
