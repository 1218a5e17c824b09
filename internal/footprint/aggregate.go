// Package footprint reduces a user's activities into totals and category shares.
package footprint

import (
	"math"

	"example.com/ecotrack/internal/emission"
)

// Entry is the part of an activity the aggregator needs.
type Entry struct {
	Kind          emission.Kind
	EstimatedMass float64
}

// Summary is the reduced view of a set of activities. Breakdown holds each
// kind's share of TotalMass as a rounded percentage; shares are rounded
// independently and may not sum to 100.
type Summary struct {
	TotalMass   float64                   `json:"total_mass_kg"`
	Count       int                       `json:"count"`
	MassByKind  map[emission.Kind]float64 `json:"mass_by_kind_kg"`
	CountByKind map[emission.Kind]int     `json:"count_by_kind"`
	Breakdown   map[emission.Kind]int     `json:"breakdown_percent"`
}

// Share returns the rounded percentage attributed to kind.
func (s Summary) Share(kind emission.Kind) int {
	return s.Breakdown[kind]
}

// Aggregate reduces entries into a Summary. Masses are summed in whole
// hundredths of a kilogram, so the result does not depend on entry order.
// Sums saturate at math.MaxInt64 hundredths instead of wrapping.
// Entries with an unknown kind count towards the total only.
func Aggregate(entries []Entry) Summary {
	var total int64
	centsByKind := make(map[emission.Kind]int64, len(emission.Kinds))
	countByKind := make(map[emission.Kind]int, len(emission.Kinds))

	for _, entry := range entries {
		cents := toCents(entry.EstimatedMass)
		total = addCents(total, cents)
		if entry.Kind.Valid() {
			centsByKind[entry.Kind] = addCents(centsByKind[entry.Kind], cents)
			countByKind[entry.Kind]++
		}
	}

	summary := Summary{
		TotalMass:   fromCents(total),
		Count:       len(entries),
		MassByKind:  make(map[emission.Kind]float64, len(emission.Kinds)),
		CountByKind: make(map[emission.Kind]int, len(emission.Kinds)),
		Breakdown:   make(map[emission.Kind]int, len(emission.Kinds)),
	}

	for _, kind := range emission.Kinds {
		summary.MassByKind[kind] = fromCents(centsByKind[kind])
		summary.CountByKind[kind] = countByKind[kind]
		if total == 0 {
			summary.Breakdown[kind] = 0
			continue
		}
		summary.Breakdown[kind] = int(math.Round(float64(centsByKind[kind]) / float64(total) * 100))
	}

	return summary
}

// Negative or non-finite masses are treated as zero; they cannot come out of
// the estimator but may arrive from stored data.
func toCents(mass float64) int64 {
	if mass <= 0 || math.IsNaN(mass) || math.IsInf(mass, 0) {
		return 0
	}
	scaled := math.Round(mass * 100)
	if scaled >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(scaled)
}

func addCents(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}
