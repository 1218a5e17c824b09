// Package events defines the event payloads written to the outbox and consumed downstream.
package events

import "time"

const (
	// TypeActivityLogged is emitted once per accepted activity.
	TypeActivityLogged = "activity.logged"
	// TypeFootprintChanged is emitted whenever an owner's total changes.
	TypeFootprintChanged = "footprint.changed"
)

// ActivityLogged represents the message emitted when a new activity is accepted.
type ActivityLogged struct {
	ActivityID    string    `json:"activity_id"`
	OwnerID       string    `json:"owner_id"`
	OwnerName     string    `json:"owner_name,omitempty"`
	Kind          string    `json:"kind"`
	Subtype       string    `json:"subtype"`
	Quantity      float64   `json:"quantity"`
	Unit          string    `json:"unit"`
	EstimatedMass float64   `json:"estimated_mass_kg"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// FootprintChanged carries the owner's new running total.
type FootprintChanged struct {
	OwnerID       string    `json:"owner_id"`
	ActivityID    string    `json:"activity_id"`
	TotalMass     float64   `json:"total_mass_kg"`
	ActivityCount int       `json:"activity_count"`
	OccurredAt    time.Time `json:"occurred_at"`
}
