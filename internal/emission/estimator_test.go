package emission

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateReferenceValues(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())

	tests := []struct {
		name     string
		kind     Kind
		subtype  string
		quantity float64
		want     float64
	}{
		{name: "car 100km", kind: KindTransport, subtype: "car", quantity: 100, want: 12.00},
		{name: "beef 2000g converts grams to kg", kind: KindFood, subtype: "beef", quantity: 2000, want: 54.00},
		{name: "solar 10kWh", kind: KindEnergy, subtype: "solar", quantity: 10, want: 0.50},
		{name: "train rounds to two decimals", kind: KindTransport, subtype: "train", quantity: 12.345, want: 0.37},
		{name: "chicken 500g", kind: KindFood, subtype: "chicken", quantity: 500, want: 3.45},
		{name: "subtype lookup ignores case", kind: KindEnergy, subtype: " Electricity ", quantity: 3, want: 1.5},
		{name: "zero quantity", kind: KindTransport, subtype: "bus", quantity: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := estimator.Estimate(tt.kind, tt.subtype, tt.quantity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateNormalisesInvalidQuantityToZero(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())

	for _, q := range []float64{-5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		got, err := estimator.Estimate(KindTransport, "car", q)
		require.NoError(t, err)
		assert.Zero(t, got)
	}
}

func TestEstimateRejectsOversizedQuantity(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())

	for _, q := range []float64{1e18, 1e308, math.MaxFloat64} {
		got, err := estimator.Estimate(KindTransport, "car", q)
		require.ErrorIs(t, err, ErrQuantityOutOfRange, "q=%v", q)
		assert.Zero(t, got)
	}

	got, err := estimator.Estimate(KindTransport, "car", 8e12)
	require.NoError(t, err)
	assert.InDelta(t, 9.6e11, got, 1)
}

func TestEstimateOversizedUnknownSubtypeStaysZero(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())

	got, err := estimator.Estimate(KindTransport, "hovercraft", 1e308)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestRound2LeavesUnscalableValues(t *testing.T) {
	assert.Equal(t, 1e308, Round2(1e308))
	assert.Equal(t, 0.37, Round2(0.374))
}

func TestEstimateIsNeverNegative(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())
	table := estimator.Table()

	for _, kind := range Kinds {
		for _, subtype := range table.Subtypes(kind) {
			for _, q := range []float64{0, 0.004, 1, 17.5, 1e6} {
				got, err := estimator.Estimate(kind, subtype, q)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, 0.0, "%s/%s q=%v", kind, subtype, q)
			}
		}
	}
}

func TestEstimateUnknownSubtypeLenient(t *testing.T) {
	var seen []string
	estimator := NewEstimator(DefaultFactors(), WithObserver(ObserverFunc(func(kind Kind, subtype string) {
		seen = append(seen, string(kind)+"/"+subtype)
	})))

	got, err := estimator.Estimate(KindTransport, "hovercraft", 50)
	require.NoError(t, err)
	assert.Zero(t, got)
	assert.Equal(t, []string{"transport/hovercraft"}, seen)
}

func TestEstimateUnknownSubtypeStrict(t *testing.T) {
	estimator := NewEstimator(DefaultFactors(), WithPolicy(PolicyStrict))

	got, err := estimator.Estimate(KindTransport, "hovercraft", 50)
	require.ErrorIs(t, err, ErrUnknownSubtype)
	assert.Zero(t, got)
}

func TestEstimateUnknownKind(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())

	_, err := estimator.Estimate(Kind("water"), "tap", 1)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestEstimateConcurrentUse(t *testing.T) {
	estimator := NewEstimator(DefaultFactors())

	var wg sync.WaitGroup
	results := make([]float64, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = estimator.Estimate(KindFood, "beef", 2000)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, 54.0, got)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := map[string]float64{
		"100":   100,
		" 2.5 ": 2.5,
		"":      0,
		"abc":   0,
		"-3":    0,
		"NaN":   0,
		"Inf":   0,
		"1e3":   1000,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseQuantity(input), "input %q", input)
	}
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyStrict, ParsePolicy("STRICT"))
	assert.Equal(t, PolicyLenient, ParsePolicy(""))
	assert.Equal(t, PolicyLenient, ParsePolicy("zero"))
}
