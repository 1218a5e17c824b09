// Package postgres implements the activity and community stores on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/emission"
	"example.com/ecotrack/internal/events"
)

// idempotencyIndex is the unique index guarding (owner_id, idempotency_key).
const idempotencyIndex = "activities_owner_idempotency_idx"

const uniqueViolation = "23505"

const activityColumns = `activity_id, owner_id, owner_name, kind, subtype, quantity, unit, estimated_mass, description, details, recorded_at`

// Repository provides Postgres-backed persistence for activities, outbox events and community data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByIdempotency checks if an activity already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, ownerID, idempotencyKey string) (*domain.Activity, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 AND idempotency_key=$2`,
		ownerID, idempotencyKey)
	return scanOptional(row)
}

// Create persists the activity and records its outbox events inside a single transaction.
func (r *Repository) Create(ctx context.Context, activity domain.Activity, idempotencyKey string) (err error) {
	details, err := json.Marshal(nonNilDetails(activity.Details))
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO activities (`+activityColumns+`, idempotency_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		activity.ID,
		activity.OwnerID,
		activity.OwnerName,
		string(activity.Kind),
		activity.Subtype,
		activity.Quantity,
		activity.Unit,
		activity.EstimatedMass,
		activity.Description,
		details,
		activity.RecordedAt,
		nullIfEmpty(idempotencyKey),
	)
	if err != nil {
		if isUniqueViolation(err, idempotencyIndex) {
			return fmt.Errorf("%w: %s", domain.ErrIdempotencyConflict, idempotencyKey)
		}
		return err
	}

	if err = r.insertOutbox(ctx, tx, activity, events.TypeActivityLogged, events.ActivityLogged{
		ActivityID:    activity.ID,
		OwnerID:       activity.OwnerID,
		OwnerName:     activity.OwnerName,
		Kind:          string(activity.Kind),
		Subtype:       activity.Subtype,
		Quantity:      activity.Quantity,
		Unit:          activity.Unit,
		EstimatedMass: activity.EstimatedMass,
		RecordedAt:    activity.RecordedAt,
	}); err != nil {
		return err
	}

	// Totals are summed as rounded NUMERIC so they match the aggregator exactly.
	var total float64
	var count int
	if err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(ROUND(estimated_mass::NUMERIC, 2)), 0)::DOUBLE PRECISION, COUNT(*) FROM activities WHERE owner_id=$1`,
		activity.OwnerID,
	).Scan(&total, &count); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, activity, events.TypeFootprintChanged, events.FootprintChanged{
		OwnerID:       activity.OwnerID,
		ActivityID:    activity.ID,
		TotalMass:     total,
		ActivityCount: count,
		OccurredAt:    activity.RecordedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	dedupeKey := fmt.Sprintf("%s:%s", activity.ID, eventType)

	const stmt = `INSERT INTO outbox (owner_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		activity.OwnerID,
		"activity",
		activity.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(activity),
		body,
		dedupeKey,
	)
	return err
}

// Get retrieves an activity by ID, scoped to its owner.
func (r *Repository) Get(ctx context.Context, ownerID, activityID string) (*domain.Activity, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 AND activity_id=$2`,
		ownerID, activityID)
	return scanOptional(row)
}

// ListByOwner returns the owner's activities newest first using keyset pagination.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []any{ownerID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE owner_id=$1`

	if cursor != nil {
		query += ` AND (recorded_at, activity_id) < ($3, $4)`
		args = append(args, cursor.RecordedAt, cursor.ID)
	}

	query += ` ORDER BY recorded_at DESC, activity_id DESC LIMIT $2`

	results, err := r.queryActivities(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{RecordedAt: last.RecordedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

// SnapshotByOwner returns every activity of the owner.
func (r *Repository) SnapshotByOwner(ctx context.Context, ownerID string) ([]domain.Activity, error) {
	return r.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE owner_id=$1 ORDER BY recorded_at, activity_id`,
		ownerID)
}

// ListRecent returns the newest activities across all owners.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.Activity, error) {
	return r.queryActivities(ctx,
		`SELECT `+activityColumns+` FROM activities ORDER BY recorded_at DESC, activity_id DESC LIMIT $1`,
		limit)
}

func (r *Repository) queryActivities(ctx context.Context, query string, args ...any) ([]domain.Activity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// TopScores returns the leaderboard, highest score first.
func (r *Repository) TopScores(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT owner_id, name, score, updated_at FROM leaderboard ORDER BY score DESC, owner_id LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.OwnerID, &e.Name, &e.Score, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreditActivity adds one point to the owner's score the first time activityID
// is credited. It reports whether the score changed.
func (r *Repository) CreditActivity(ctx context.Context, activityID, ownerID, name string, at time.Time) (credited bool, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO leaderboard_credits (activity_id, owner_id, credited_at) VALUES ($1,$2,$3)
         ON CONFLICT (activity_id) DO NOTHING`,
		activityID, ownerID, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO leaderboard (owner_id, name, score, updated_at)
         VALUES ($1, COALESCE(NULLIF($2, ''), $1), 1, $3)
         ON CONFLICT (owner_id) DO UPDATE
            SET score = leaderboard.score + 1,
                name = COALESCE(NULLIF($2, ''), leaderboard.name),
                updated_at = EXCLUDED.updated_at`,
		ownerID, name, at); err != nil {
		return false, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// LatestChallenge returns the challenge with the latest start date, or nil when none exist.
func (r *Repository) LatestChallenge(ctx context.Context) (*domain.Challenge, error) {
	var c domain.Challenge
	err := r.pool.QueryRow(ctx,
		`SELECT challenge_id, title, description, start_date, end_date, progress
           FROM challenges ORDER BY start_date DESC, challenge_id DESC LIMIT 1`,
	).Scan(&c.ID, &c.Title, &c.Description, &c.StartDate, &c.EndDate, &c.Progress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT owner_id FROM challenge_participants WHERE challenge_id=$1 ORDER BY joined_at, owner_id`,
		c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Participants = make([]string, 0)
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

// JoinChallenge adds ownerID to the challenge participants. Joining twice is a no-op.
func (r *Repository) JoinChallenge(ctx context.Context, challengeID, ownerID string) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO challenge_participants (challenge_id, owner_id)
         SELECT challenge_id, $2 FROM challenges WHERE challenge_id=$1
         ON CONFLICT (challenge_id, owner_id) DO NOTHING`,
		challengeID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM challenges WHERE challenge_id=$1)`, challengeID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrChallengeNotFound
	}
	return nil
}

// UpsertChallenge creates or replaces a challenge definition. Participants are left untouched.
func (r *Repository) UpsertChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO challenges (challenge_id, title, description, start_date, end_date, progress)
         VALUES ($1,$2,$3,$4,$5,$6)
         ON CONFLICT (challenge_id) DO UPDATE
            SET title = EXCLUDED.title,
                description = EXCLUDED.description,
                start_date = EXCLUDED.start_date,
                end_date = EXCLUDED.end_date,
                progress = EXCLUDED.progress`,
		c.ID, c.Title, c.Description, c.StartDate, c.EndDate, c.Progress)
	return err
}

func scanOptional(row pgx.Row) (*domain.Activity, error) {
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &activity, nil
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a       domain.Activity
		kind    string
		details []byte
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &a.OwnerName, &kind, &a.Subtype, &a.Quantity, &a.Unit, &a.EstimatedMass, &a.Description, &details, &a.RecordedAt); err != nil {
		return domain.Activity{}, err
	}
	a.Kind = emission.Kind(kind)
	a.RecordedAt = a.RecordedAt.UTC()
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return domain.Activity{}, fmt.Errorf("decode details for %s: %w", a.ID, err)
		}
	}
	return a, nil
}

func nonNilDetails(details map[string]string) map[string]string {
	if details == nil {
		return map[string]string{}
	}
	return details
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Activity) string
}

func byOwner(a domain.Activity) string { return a.OwnerID }

var eventCatalog = map[string]EventMetadata{
	events.TypeActivityLogged: {
		Topic:          "activity_events",
		SchemaSubject:  "activity_events-value",
		PartitionKeyFn: byOwner,
	},
	events.TypeFootprintChanged: {
		Topic:          "footprint_events",
		SchemaSubject:  "footprint_events-value",
		PartitionKeyFn: byOwner,
	},
}
