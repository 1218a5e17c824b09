package domain

import (
	"time"

	"example.com/ecotrack/internal/emission"
	"example.com/ecotrack/internal/footprint"
)

// Activity is a single logged action with its derived carbon estimate.
// Activities are written once and never updated.
type Activity struct {
	ID            string
	OwnerID       string
	OwnerName     string
	Kind          emission.Kind
	Subtype       string
	Quantity      float64
	Unit          string
	EstimatedMass float64
	Description   string
	Details       map[string]string
	RecordedAt    time.Time
}

// Entry projects the activity onto the aggregator input.
func (a Activity) Entry() footprint.Entry {
	return footprint.Entry{Kind: a.Kind, EstimatedMass: a.EstimatedMass}
}

// Entries projects a slice of activities onto aggregator input.
func Entries(activities []Activity) []footprint.Entry {
	out := make([]footprint.Entry, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Entry())
	}
	return out
}

// Cursor models the pagination token.
type Cursor struct {
	RecordedAt time.Time
	ID         string
}

// LeaderboardEntry is one row of the community leaderboard.
type LeaderboardEntry struct {
	OwnerID   string
	Name      string
	Score     int
	UpdatedAt time.Time
}

// Challenge is a community challenge users can join.
type Challenge struct {
	ID           string
	Title        string
	Description  string
	StartDate    time.Time
	EndDate      *time.Time
	Progress     int
	Participants []string
}

// HasParticipant reports whether ownerID already joined.
func (c Challenge) HasParticipant(ownerID string) bool {
	for _, p := range c.Participants {
		if p == ownerID {
			return true
		}
	}
	return false
}
