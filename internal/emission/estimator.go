package emission

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Policy selects how the estimator treats a subtype with no factor row.
type Policy int

const (
	// PolicyLenient resolves an unknown subtype to a zero factor and reports it to the observer.
	PolicyLenient Policy = iota
	// PolicyStrict fails with ErrUnknownSubtype.
	PolicyStrict
)

// ParsePolicy maps a configuration value onto a Policy. Anything but "strict" is lenient.
func ParsePolicy(raw string) Policy {
	if strings.EqualFold(strings.TrimSpace(raw), "strict") {
		return PolicyStrict
	}
	return PolicyLenient
}

func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "lenient"
}

// UnknownSubtypeObserver is told about every lookup that fell back to a zero factor.
type UnknownSubtypeObserver interface {
	UnknownSubtype(kind Kind, subtype string)
}

// ObserverFunc adapts a function to UnknownSubtypeObserver.
type ObserverFunc func(kind Kind, subtype string)

// UnknownSubtype implements UnknownSubtypeObserver.
func (f ObserverFunc) UnknownSubtype(kind Kind, subtype string) { f(kind, subtype) }

// Option configures an Estimator.
type Option func(*Estimator)

// WithPolicy overrides the unknown subtype policy.
func WithPolicy(policy Policy) Option {
	return func(e *Estimator) {
		e.policy = policy
	}
}

// WithObserver registers an observer for lenient zero-factor fallbacks.
func WithObserver(observer UnknownSubtypeObserver) Option {
	return func(e *Estimator) {
		e.observer = observer
	}
}

// MaxMass bounds a single estimate in kg CO2e. Footprint totals are kept in
// whole hundredths of a kilogram and must stay inside int64.
const MaxMass = 1e12

// Estimator maps an activity to kg CO2e using a FactorTable.
// It holds no mutable state and is safe for concurrent use.
type Estimator struct {
	table    FactorTable
	policy   Policy
	observer UnknownSubtypeObserver
}

// NewEstimator constructs an Estimator over table.
func NewEstimator(table FactorTable, opts ...Option) *Estimator {
	e := &Estimator{table: table, policy: PolicyLenient}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table exposes the factor table the estimator reads from.
func (e *Estimator) Table() FactorTable { return e.table }

// Policy reports the configured unknown subtype policy.
func (e *Estimator) Policy() Policy { return e.policy }

// Estimate returns the estimated mass in kg CO2e, rounded to two decimals.
// Negative or non-finite quantities count as zero. A quantity whose mass
// exceeds MaxMass fails with ErrQuantityOutOfRange.
func (e *Estimator) Estimate(kind Kind, subtype string, quantity float64) (float64, error) {
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}

	factor, ok := e.table.Factor(kind, subtype)
	if !ok {
		if e.policy == PolicyStrict {
			return 0, fmt.Errorf("%w: %s/%s", ErrUnknownSubtype, kind, subtype)
		}
		if e.observer != nil {
			e.observer.UnknownSubtype(kind, subtype)
		}
		return 0, nil
	}

	mass := kind.normalize(NormalizeQuantity(quantity)) * factor
	if math.IsInf(mass, 0) || math.IsNaN(mass) || mass > MaxMass {
		return 0, fmt.Errorf("%w: %s/%s quantity %g", ErrQuantityOutOfRange, kind, subtype, quantity)
	}
	return Round2(mass), nil
}

// ParseQuantity parses free-text numeric input. Anything that is not a finite,
// non-negative number yields zero.
func ParseQuantity(text string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0
	}
	return NormalizeQuantity(value)
}

// Round2 rounds v to two decimal places, half away from zero. Values too
// large to scale are returned unchanged.
func Round2(v float64) float64 {
	scaled := v * 100
	if math.IsInf(scaled, 0) || math.IsNaN(scaled) {
		return v
	}
	return math.Round(scaled) / 100
}

// NormalizeQuantity maps negative or non-finite quantities to zero.
func NormalizeQuantity(q float64) float64 {
	if q < 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return 0
	}
	return q
}
