// Package memory provides an in-process store for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"example.com/ecotrack/internal/domain"
)

// Repository stores activities, scores and challenges in memory.
// It implements domain.ActivityRepository and domain.CommunityRepository.
type Repository struct {
	mu          sync.RWMutex
	activities  map[string]domain.Activity
	byOwner     map[string][]string
	idempotency map[string]string
	scores      map[string]domain.LeaderboardEntry
	credited    map[string]struct{}
	challenges  map[string]domain.Challenge
	// countScores bumps the leaderboard on Create; used when no consumer runs.
	countScores bool
	now         func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithScoreOnCreate makes Create credit the activity to the owner's leaderboard score.
func WithScoreOnCreate() Option {
	return func(r *Repository) {
		r.countScores = true
	}
}

// WithChallenges seeds the challenge set.
func WithChallenges(challenges ...domain.Challenge) Option {
	return func(r *Repository) {
		for _, c := range challenges {
			r.challenges[c.ID] = c
		}
	}
}

// NewRepository constructs an empty Repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		activities:  make(map[string]domain.Activity),
		byOwner:     make(map[string][]string),
		idempotency: make(map[string]string),
		scores:      make(map[string]domain.LeaderboardEntry),
		credited:    make(map[string]struct{}),
		challenges:  make(map[string]domain.Challenge),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func idempotencyIndex(ownerID, key string) string {
	return ownerID + "\x00" + key
}

// FindByIdempotency implements domain.ActivityRepository.
func (r *Repository) FindByIdempotency(_ context.Context, ownerID, idempotencyKey string) (*domain.Activity, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idempotency[idempotencyIndex(ownerID, idempotencyKey)]
	if !ok {
		return nil, nil
	}
	activity := cloneActivity(r.activities[id])
	return &activity, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, idempotencyKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if idempotencyKey != "" {
		if _, taken := r.idempotency[idempotencyIndex(activity.OwnerID, idempotencyKey)]; taken {
			return domain.ErrIdempotencyConflict
		}
	}
	r.activities[activity.ID] = cloneActivity(activity)
	r.byOwner[activity.OwnerID] = append(r.byOwner[activity.OwnerID], activity.ID)
	if idempotencyKey != "" {
		r.idempotency[idempotencyIndex(activity.OwnerID, idempotencyKey)] = activity.ID
	}
	if r.countScores {
		r.creditLocked(activity.ID, activity.OwnerID, activity.OwnerName, activity.RecordedAt)
	}
	return nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(_ context.Context, ownerID, activityID string) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activity, ok := r.activities[activityID]
	if !ok || activity.OwnerID != ownerID {
		return nil, nil
	}
	activity = cloneActivity(activity)
	return &activity, nil
}

// ListByOwner implements domain.ActivityRepository.
func (r *Repository) ListByOwner(_ context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	r.mu.RLock()
	owned := r.ownedLocked(ownerID)
	r.mu.RUnlock()

	sortNewestFirst(owned)

	results := make([]domain.Activity, 0, limit)
	for _, a := range owned {
		if cursor != nil && !olderThan(a, *cursor) {
			continue
		}
		results = append(results, a)
		if len(results) == limit {
			break
		}
	}

	var next *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{RecordedAt: last.RecordedAt, ID: last.ID}
	}
	return results, next, nil
}

// SnapshotByOwner implements domain.ActivityRepository.
func (r *Repository) SnapshotByOwner(_ context.Context, ownerID string) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownedLocked(ownerID), nil
}

// ListRecent implements domain.ActivityRepository.
func (r *Repository) ListRecent(_ context.Context, limit int) ([]domain.Activity, error) {
	r.mu.RLock()
	all := make([]domain.Activity, 0, len(r.activities))
	for _, a := range r.activities {
		all = append(all, cloneActivity(a))
	}
	r.mu.RUnlock()

	sortNewestFirst(all)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// TopScores implements domain.CommunityRepository.
func (r *Repository) TopScores(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	r.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(r.scores))
	for _, e := range r.scores {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].OwnerID < entries[j].OwnerID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// CreditActivity adds one point to the owner's score the first time
// activityID is credited. It reports whether the score changed.
func (r *Repository) CreditActivity(_ context.Context, activityID, ownerID, name string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creditLocked(activityID, ownerID, name, at), nil
}

func (r *Repository) creditLocked(activityID, ownerID, name string, at time.Time) bool {
	if _, done := r.credited[activityID]; done {
		return false
	}
	r.credited[activityID] = struct{}{}

	entry := r.scores[ownerID]
	entry.OwnerID = ownerID
	if strings.TrimSpace(name) != "" {
		entry.Name = name
	}
	if entry.Name == "" {
		entry.Name = ownerID
	}
	entry.Score++
	if at.IsZero() {
		at = r.now().UTC()
	}
	entry.UpdatedAt = at
	r.scores[ownerID] = entry
	return true
}

// LatestChallenge implements domain.CommunityRepository.
func (r *Repository) LatestChallenge(_ context.Context) (*domain.Challenge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Challenge
	for _, c := range r.challenges {
		if latest == nil || c.StartDate.After(latest.StartDate) ||
			(c.StartDate.Equal(latest.StartDate) && c.ID > latest.ID) {
			picked := cloneChallenge(c)
			latest = &picked
		}
	}
	return latest, nil
}

// JoinChallenge implements domain.CommunityRepository.
func (r *Repository) JoinChallenge(_ context.Context, challengeID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	challenge, ok := r.challenges[challengeID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	if challenge.HasParticipant(ownerID) {
		return nil
	}
	challenge.Participants = append(append([]string(nil), challenge.Participants...), ownerID)
	r.challenges[challengeID] = challenge
	return nil
}

// UpsertChallenge stores or replaces a challenge.
func (r *Repository) UpsertChallenge(_ context.Context, challenge domain.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[challenge.ID] = cloneChallenge(challenge)
	return nil
}

func (r *Repository) ownedLocked(ownerID string) []domain.Activity {
	ids := r.byOwner[ownerID]
	out := make([]domain.Activity, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneActivity(r.activities[id]))
	}
	return out
}

func sortNewestFirst(activities []domain.Activity) {
	sort.Slice(activities, func(i, j int) bool {
		if !activities[i].RecordedAt.Equal(activities[j].RecordedAt) {
			return activities[i].RecordedAt.After(activities[j].RecordedAt)
		}
		return activities[i].ID > activities[j].ID
	})
}

// olderThan reports whether a sorts strictly after the cursor position.
func olderThan(a domain.Activity, c domain.Cursor) bool {
	if a.RecordedAt.Equal(c.RecordedAt) {
		return a.ID < c.ID
	}
	return a.RecordedAt.Before(c.RecordedAt)
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.Details != nil {
		details := make(map[string]string, len(a.Details))
		for k, v := range a.Details {
			details[k] = v
		}
		a.Details = details
	}
	return a
}

func cloneChallenge(c domain.Challenge) domain.Challenge {
	c.Participants = append([]string(nil), c.Participants...)
	if c.EndDate != nil {
		end := *c.EndDate
		c.EndDate = &end
	}
	return c
}
