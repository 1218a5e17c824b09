// Package emission converts logged activities into estimated CO2-equivalent mass.
package emission

import (
	"fmt"
	"strings"
)

// Kind is the closed set of activity categories.
type Kind string

const (
	KindTransport Kind = "transport"
	KindFood      Kind = "food"
	KindEnergy    Kind = "energy"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindTransport, KindFood, KindEnergy}

// ParseKind normalises raw input into a Kind.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindTransport:
		return KindTransport, nil
	case KindFood:
		return KindFood, nil
	case KindEnergy:
		return KindEnergy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTransport, KindFood, KindEnergy:
		return true
	}
	return false
}

// Unit returns the unit the quantity of an activity of this kind is expressed in.
func (k Kind) Unit() string {
	switch k {
	case KindTransport:
		return "km"
	case KindFood:
		return "g"
	case KindEnergy:
		return "kWh"
	default:
		return ""
	}
}

// normalize converts a raw quantity into the unit the factor table is expressed in.
// Food is logged in grams but factored per kilogram.
func (k Kind) normalize(quantity float64) float64 {
	if k == KindFood {
		return quantity / 1000
	}
	return quantity
}

func (k Kind) String() string { return string(k) }
