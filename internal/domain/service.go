// Package domain defines the business logic for the EcoTrack service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/emission"
	"example.com/ecotrack/internal/equivalency"
	"example.com/ecotrack/internal/footprint"
	"example.com/ecotrack/internal/observability"
)

var (
	// ErrUnauthenticated is returned when no owner identity accompanies a request.
	ErrUnauthenticated = errors.New("owner identity required")
	// ErrInvalidDescription is returned for an empty or whitespace-only description.
	ErrInvalidDescription = errors.New("description is required")
	// ErrInvalidSubtype is returned when no subtype is supplied.
	ErrInvalidSubtype = errors.New("subtype is required")
	// ErrActivityNotFound is returned when an activity cannot be located for its owner.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrChallengeNotFound is returned when no challenge matches.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrIdempotencyConflict is returned by a repository when another activity
	// already holds the owner's idempotency key.
	ErrIdempotencyConflict = errors.New("idempotency key already used")
	// ErrPersistence wraps failures of the activity store. It is never retried here.
	ErrPersistence = errors.New("activity could not be persisted")
)

// ActivityRepository captures persistence operations for activities.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, ownerID, idempotencyKey string) (*Activity, error)
	Create(ctx context.Context, activity Activity, idempotencyKey string) error
	Get(ctx context.Context, ownerID, activityID string) (*Activity, error)
	ListByOwner(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	SnapshotByOwner(ctx context.Context, ownerID string) ([]Activity, error)
	ListRecent(ctx context.Context, limit int) ([]Activity, error)
}

// CommunityRepository captures persistence operations for the community features.
type CommunityRepository interface {
	TopScores(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	LatestChallenge(ctx context.Context) (*Challenge, error)
	// JoinChallenge adds ownerID to the participants. It returns ErrChallengeNotFound
	// for an unknown challenge and is a no-op when ownerID already participates.
	JoinChallenge(ctx context.Context, challengeID, ownerID string) error
}

// ChangeNotifier is told when an owner's activity set changed.
type ChangeNotifier interface {
	FootprintChanged(ctx context.Context, ownerID string)
}

type noopNotifier struct{}

func (noopNotifier) FootprintChanged(context.Context, string) {}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithNotifier registers the change notifier.
func WithNotifier(n ChangeNotifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo      ActivityRepository
	community CommunityRepository
	estimator *emission.Estimator
	notifier  ChangeNotifier
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, community CommunityRepository, estimator *emission.Estimator, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		community: community,
		estimator: estimator,
		notifier:  noopNotifier{},
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Estimator exposes the estimator the service was built with.
func (s *Service) Estimator() *emission.Estimator { return s.estimator }

// LogActivityInput captures the payload from the API layer.
type LogActivityInput struct {
	OwnerID        string
	OwnerName      string
	Kind           string
	Subtype        string
	Quantity       float64
	Description    string
	Details        map[string]string
	IdempotencyKey string
}

// EstimateInput is a preview request that is never persisted.
type EstimateInput struct {
	Kind     string
	Subtype  string
	Quantity float64
}

// Estimate previews the mass of an activity without storing it.
func (s *Service) Estimate(input EstimateInput) (emission.Kind, float64, error) {
	kind, err := emission.ParseKind(input.Kind)
	if err != nil {
		return "", 0, err
	}
	if strings.TrimSpace(input.Subtype) == "" {
		return "", 0, ErrInvalidSubtype
	}
	mass, err := s.estimator.Estimate(kind, input.Subtype, input.Quantity)
	if err != nil {
		return "", 0, err
	}
	return kind, mass, nil
}

// LogActivity validates, estimates and persists a new activity. The boolean
// result reports an idempotent replay of an earlier submission.
func (s *Service) LogActivity(ctx context.Context, input LogActivityInput) (*Activity, bool, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, false, ErrUnauthenticated
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, false, ErrInvalidDescription
	}

	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotency(ctx, input.OwnerID, input.IdempotencyKey)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if existing != nil {
			return existing, true, nil
		}
	}

	kind, mass, err := s.Estimate(EstimateInput{Kind: input.Kind, Subtype: input.Subtype, Quantity: input.Quantity})
	if err != nil {
		return nil, false, err
	}

	activity := Activity{
		ID:            uuid.NewString(),
		OwnerID:       input.OwnerID,
		OwnerName:     strings.TrimSpace(input.OwnerName),
		Kind:          kind,
		Subtype:       strings.ToLower(strings.TrimSpace(input.Subtype)),
		Quantity:      emission.NormalizeQuantity(input.Quantity),
		Unit:          kind.Unit(),
		EstimatedMass: mass,
		Description:   strings.TrimSpace(input.Description),
		Details:       copyDetails(input.Details),
		RecordedAt:    s.now().UTC(),
	}

	if err := s.repo.Create(ctx, activity, input.IdempotencyKey); err != nil {
		if errors.Is(err, ErrIdempotencyConflict) {
			return s.replayAfterConflict(ctx, input.OwnerID, input.IdempotencyKey)
		}
		s.logger.Error().Err(err).Str("owner_id", activity.OwnerID).Str("kind", string(kind)).Msg("activity persist failed")
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	observability.RecordActivityLogged(string(activity.Kind), activity.EstimatedMass, activity.RecordedAt)
	s.logger.Info().
		Str("activity_id", activity.ID).
		Str("owner_id", activity.OwnerID).
		Str("kind", string(activity.Kind)).
		Str("subtype", activity.Subtype).
		Float64("estimated_mass_kg", activity.EstimatedMass).
		Msg("activity logged")

	s.notifier.FootprintChanged(ctx, activity.OwnerID)
	return &activity, false, nil
}

// replayAfterConflict resolves a concurrent submission that lost the race for
// its idempotency key.
func (s *Service) replayAfterConflict(ctx context.Context, ownerID, idempotencyKey string) (*Activity, bool, error) {
	existing, err := s.repo.FindByIdempotency(ctx, ownerID, idempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing == nil {
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, ErrIdempotencyConflict)
	}
	s.logger.Info().Str("owner_id", ownerID).Str("activity_id", existing.ID).Msg("concurrent idempotent submission replayed")
	return existing, true, nil
}

// GetActivity fetches an activity owned by ownerID.
func (s *Service) GetActivity(ctx context.Context, ownerID, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, ownerID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivities fetches the owner's activities newest first with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, nil, ErrUnauthenticated
	}
	return s.repo.ListByOwner(ctx, ownerID, cursor, clampLimit(limit, 20, 100))
}

// FootprintReport combines the aggregate summary with derived views. It is
// rendered as-is by the HTTP API and the live push channel.
type FootprintReport struct {
	OwnerID      string                  `json:"owner_id"`
	Summary      footprint.Summary       `json:"summary"`
	Achievements []footprint.Achievement `json:"achievements"`
	Equivalency  equivalency.Output      `json:"equivalency"`
	ComputedAt   time.Time               `json:"computed_at"`
}

// Footprint aggregates the owner's current activity snapshot.
func (s *Service) Footprint(ctx context.Context, ownerID string) (*FootprintReport, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	activities, err := s.repo.SnapshotByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return BuildReport(ownerID, activities, s.now().UTC()), nil
}

// BuildReport runs the aggregator over a snapshot.
func BuildReport(ownerID string, activities []Activity, at time.Time) *FootprintReport {
	summary := footprint.Aggregate(Entries(activities))
	return &FootprintReport{
		OwnerID:      ownerID,
		Summary:      summary,
		Achievements: footprint.Achievements(summary),
		Equivalency:  equivalency.Calculate(summary.TotalMass),
		ComputedAt:   at,
	}
}

// Profile summarises an owner's history.
type Profile struct {
	OwnerID         string
	ActivityCount   int
	TotalMass       float64
	FirstActivityAt *time.Time
	LastActivityAt  *time.Time
}

// Profile builds the owner's profile from the activity snapshot.
func (s *Service) Profile(ctx context.Context, ownerID string) (*Profile, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrUnauthenticated
	}
	activities, err := s.repo.SnapshotByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	summary := footprint.Aggregate(Entries(activities))
	profile := &Profile{
		OwnerID:       ownerID,
		ActivityCount: summary.Count,
		TotalMass:     summary.TotalMass,
	}
	for i := range activities {
		at := activities[i].RecordedAt
		if profile.FirstActivityAt == nil || at.Before(*profile.FirstActivityAt) {
			profile.FirstActivityAt = &at
		}
		if profile.LastActivityAt == nil || at.After(*profile.LastActivityAt) {
			profile.LastActivityAt = &at
		}
	}
	return profile, nil
}

func copyDetails(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
