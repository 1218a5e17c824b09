// Package equivalency expresses a carbon mass as everyday EPA equivalencies.
package equivalency

import (
	"fmt"
	"math"
)

// EPA greenhouse gas equivalency factors, kg CO2e per unit.
const (
	MilesDrivenFactor      = 0.192
	SmartphoneChargeFactor = 0.00822
	TreeSeedlingFactor     = 60.0
	HomeEnergyDayFactor    = 18.3
)

// MinThresholdKg is the smallest mass worth expressing as an equivalency.
const MinThresholdKg = 1.0

const (
	largeNumberThreshold   = 1_000_000
	billionNumberThreshold = 1_000_000_000
)

// Type identifies an equivalency.
type Type string

const (
	MilesDriven        Type = "miles_driven"
	SmartphonesCharged Type = "smartphones_charged"
	TreeSeedlings      Type = "tree_seedlings"
	HomeEnergyDays     Type = "home_energy_days"
)

// Result is a single equivalency.
type Result struct {
	Type           Type    `json:"type"`
	Value          float64 `json:"value"`
	FormattedValue string  `json:"formatted_value"`
	Label          string  `json:"label"`
}

// Output groups the equivalencies for one mass.
type Output struct {
	InputKg     float64  `json:"input_kg"`
	Results     []Result `json:"results"`
	DisplayText string   `json:"display_text,omitempty"`
	IsEmpty     bool     `json:"is_empty"`
}

var catalog = []struct {
	kind   Type
	factor float64
	label  string
}{
	{MilesDriven, MilesDrivenFactor, "miles driven"},
	{SmartphonesCharged, SmartphoneChargeFactor, "smartphones charged"},
	{TreeSeedlings, TreeSeedlingFactor, "tree seedlings grown for 10 years"},
	{HomeEnergyDays, HomeEnergyDayFactor, "days of home energy use"},
}

// Calculate converts kg CO2e into equivalencies. Masses below MinThresholdKg,
// negative or non-finite masses give an empty Output.
func Calculate(kg float64) Output {
	if math.IsNaN(kg) || math.IsInf(kg, 0) || kg < MinThresholdKg {
		return Output{InputKg: math.Max(0, sanitize(kg)), Results: []Result{}, IsEmpty: true}
	}

	results := make([]Result, 0, len(catalog))
	for _, entry := range catalog {
		value := kg / entry.factor
		results = append(results, Result{
			Type:           entry.kind,
			Value:          value,
			FormattedValue: formatValue(value),
			Label:          entry.label,
		})
	}

	display := fmt.Sprintf("Equivalent to driving ~%s miles or charging ~%s smartphones",
		results[0].FormattedValue, results[1].FormattedValue)

	return Output{
		InputKg:     kg,
		Results:     results,
		DisplayText: display,
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
