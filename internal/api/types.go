package api

import (
	"bytes"
	"encoding/json"
	"time"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/emission"
)

// Quantity accepts either a JSON number or a numeric string, matching the
// free-text input of the mobile client. Anything unparseable becomes zero.
type Quantity float64

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*q = Quantity(emission.ParseQuantity(text))
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		*q = 0
		return nil
	}
	*q = Quantity(emission.NormalizeQuantity(value))
	return nil
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Kind        string            `json:"kind"`
	Subtype     string            `json:"subtype"`
	Quantity    Quantity          `json:"quantity"`
	Description string            `json:"description"`
	Details     map[string]string `json:"details,omitempty"`
}

// CreateActivityResponse describes the response body for create.
type CreateActivityResponse struct {
	Activity ActivityView `json:"activity"`
	Replay   bool         `json:"idempotent_replay"`
}

// ActivityView exposes full details about an activity to its owner.
type ActivityView struct {
	ActivityID    string            `json:"activity_id"`
	OwnerID       string            `json:"owner_id"`
	Kind          string            `json:"kind"`
	Subtype       string            `json:"subtype"`
	Quantity      float64           `json:"quantity"`
	Unit          string            `json:"unit"`
	EstimatedMass float64           `json:"estimated_mass_kg"`
	Description   string            `json:"description"`
	Details       map[string]string `json:"details"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// EstimateRequest is the payload for POST /v1/estimate.
type EstimateRequest struct {
	Kind     string   `json:"kind"`
	Subtype  string   `json:"subtype"`
	Quantity Quantity `json:"quantity"`
}

// EstimateResponse previews an estimate.
type EstimateResponse struct {
	Kind          string  `json:"kind"`
	Subtype       string  `json:"subtype"`
	Quantity      float64 `json:"quantity"`
	Unit          string  `json:"unit"`
	EstimatedMass float64 `json:"estimated_mass_kg"`
}

// KindFactors lists the factor rows of one kind.
type KindFactors struct {
	Kind     string             `json:"kind"`
	Unit     string             `json:"unit"`
	Subtypes []string           `json:"subtypes"`
	Factors  map[string]float64 `json:"factors"`
}

// FactorsResponse is the body of GET /v1/factors.
type FactorsResponse struct {
	Kinds []KindFactors `json:"kinds"`
}

// FeedItem is one activity in the community feed. Details stay private to the owner.
type FeedItem struct {
	ActivityID    string    `json:"activity_id"`
	OwnerID       string    `json:"owner_id"`
	OwnerName     string    `json:"owner_name,omitempty"`
	Kind          string    `json:"kind"`
	Subtype       string    `json:"subtype"`
	Description   string    `json:"description"`
	EstimatedMass float64   `json:"estimated_mass_kg"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// FeedResponse is the body of GET /v1/community/feed.
type FeedResponse struct {
	Items []FeedItem `json:"items"`
}

// LeaderboardView is one ranked row.
type LeaderboardView struct {
	Rank      int       `json:"rank"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name,omitempty"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LeaderboardResponse is the body of GET /v1/community/leaderboard.
type LeaderboardResponse struct {
	Items []LeaderboardView `json:"items"`
}

// ChallengeView describes the current challenge from the caller's point of view.
type ChallengeView struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	Progress         int        `json:"progress"`
	ParticipantCount int        `json:"participant_count"`
	Joined           bool       `json:"joined"`
}

// JoinChallengeResponse acknowledges a join.
type JoinChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	Joined      bool   `json:"joined"`
}

// ProfileView is the body of GET /v1/profile.
type ProfileView struct {
	OwnerID         string     `json:"owner_id"`
	Name            string     `json:"name,omitempty"`
	Scopes          []string   `json:"scopes"`
	ActivityCount   int        `json:"activity_count"`
	TotalMass       float64    `json:"total_mass_kg"`
	FirstActivityAt *time.Time `json:"first_activity_at,omitempty"`
	LastActivityAt  *time.Time `json:"last_activity_at,omitempty"`
}

func toActivityView(a domain.Activity) ActivityView {
	details := a.Details
	if details == nil {
		details = map[string]string{}
	}
	return ActivityView{
		ActivityID:    a.ID,
		OwnerID:       a.OwnerID,
		Kind:          string(a.Kind),
		Subtype:       a.Subtype,
		Quantity:      a.Quantity,
		Unit:          a.Unit,
		EstimatedMass: a.EstimatedMass,
		Description:   a.Description,
		Details:       details,
		RecordedAt:    a.RecordedAt,
	}
}
