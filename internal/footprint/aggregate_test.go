package footprint

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/emission"
)

func TestAggregateEmpty(t *testing.T) {
	summary := Aggregate(nil)

	assert.Zero(t, summary.TotalMass)
	assert.Zero(t, summary.Count)
	for _, kind := range emission.Kinds {
		assert.Zero(t, summary.Breakdown[kind], kind)
		assert.Zero(t, summary.MassByKind[kind], kind)
	}
}

func TestAggregateSingleCategory(t *testing.T) {
	summary := Aggregate([]Entry{
		{Kind: emission.KindTransport, EstimatedMass: 12},
		{Kind: emission.KindFood, EstimatedMass: 0},
		{Kind: emission.KindEnergy, EstimatedMass: 0},
	})

	assert.Equal(t, 12.0, summary.TotalMass)
	assert.Equal(t, 100, summary.Breakdown[emission.KindTransport])
	assert.Equal(t, 0, summary.Breakdown[emission.KindFood])
	assert.Equal(t, 0, summary.Breakdown[emission.KindEnergy])
	assert.Equal(t, 3, summary.Count)
	assert.Equal(t, 1, summary.CountByKind[emission.KindFood])
}

func TestAggregateAllZeroMassGuardsDivision(t *testing.T) {
	summary := Aggregate([]Entry{
		{Kind: emission.KindFood, EstimatedMass: 0},
		{Kind: emission.KindEnergy, EstimatedMass: 0},
	})

	assert.Zero(t, summary.TotalMass)
	for _, kind := range emission.Kinds {
		assert.Zero(t, summary.Breakdown[kind])
	}
}

func TestAggregatePercentagesRoundIndependently(t *testing.T) {
	summary := Aggregate([]Entry{
		{Kind: emission.KindTransport, EstimatedMass: 1},
		{Kind: emission.KindFood, EstimatedMass: 1},
		{Kind: emission.KindEnergy, EstimatedMass: 1},
	})

	assert.Equal(t, 3.0, summary.TotalMass)
	assert.Equal(t, 33, summary.Breakdown[emission.KindTransport])
	assert.Equal(t, 33, summary.Breakdown[emission.KindFood])
	assert.Equal(t, 33, summary.Breakdown[emission.KindEnergy])
}

func TestAggregateMixed(t *testing.T) {
	summary := Aggregate([]Entry{
		{Kind: emission.KindTransport, EstimatedMass: 12},
		{Kind: emission.KindFood, EstimatedMass: 54},
		{Kind: emission.KindEnergy, EstimatedMass: 0.5},
		{Kind: emission.KindTransport, EstimatedMass: 3.5},
	})

	assert.Equal(t, 70.0, summary.TotalMass)
	assert.Equal(t, 15.5, summary.MassByKind[emission.KindTransport])
	assert.Equal(t, 22, summary.Breakdown[emission.KindTransport])
	assert.Equal(t, 77, summary.Breakdown[emission.KindFood])
	assert.Equal(t, 1, summary.Breakdown[emission.KindEnergy])
	assert.Equal(t, 2, summary.CountByKind[emission.KindTransport])
}

func TestAggregateIgnoresInvalidMass(t *testing.T) {
	summary := Aggregate([]Entry{
		{Kind: emission.KindTransport, EstimatedMass: -4},
		{Kind: emission.KindFood, EstimatedMass: 2},
	})

	assert.Equal(t, 2.0, summary.TotalMass)
	assert.Equal(t, 100, summary.Breakdown[emission.KindFood])
}

func TestAggregateLargeMassesStayExact(t *testing.T) {
	entries := make([]Entry, 1000)
	for i := range entries {
		entries[i] = Entry{Kind: emission.KindEnergy, EstimatedMass: emission.MaxMass}
	}

	summary := Aggregate(entries)
	assert.Equal(t, 1e15, summary.TotalMass)
	assert.Equal(t, 1e15, summary.MassByKind[emission.KindEnergy])
	assert.Equal(t, 100, summary.Breakdown[emission.KindEnergy])
}

func TestAggregateSaturatesInsteadOfOverflowing(t *testing.T) {
	summary := Aggregate([]Entry{
		{Kind: emission.KindTransport, EstimatedMass: 1.2e17},
		{Kind: emission.KindTransport, EstimatedMass: 1.2e17},
		{Kind: emission.KindFood, EstimatedMass: 1e308},
		{Kind: emission.KindEnergy, EstimatedMass: 5},
	})

	assert.Equal(t, float64(math.MaxInt64)/100, summary.TotalMass)
	assert.Positive(t, summary.MassByKind[emission.KindTransport])
	assert.Positive(t, summary.MassByKind[emission.KindFood])
	for _, kind := range emission.Kinds {
		assert.GreaterOrEqual(t, summary.Breakdown[kind], 0, string(kind))
		assert.LessOrEqual(t, summary.Breakdown[kind], 100, string(kind))
		assert.LessOrEqual(t, summary.MassByKind[kind], summary.TotalMass, string(kind))
	}

	many := make([]Entry, 100000)
	for i := range many {
		many[i] = Entry{Kind: emission.KindFood, EstimatedMass: emission.MaxMass}
	}
	total := Aggregate(many).TotalMass
	assert.Positive(t, total)
	assert.False(t, math.IsInf(total, 0))
}

func TestAggregateIsOrderIndependentAndIdempotent(t *testing.T) {
	entries := make([]Entry, 0, 200)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		kind := emission.Kinds[i%len(emission.Kinds)]
		entries = append(entries, Entry{Kind: kind, EstimatedMass: emission.Round2(rng.Float64() * 40)})
	}

	first := Aggregate(entries)
	second := Aggregate(entries)
	require.Equal(t, first, second)

	shuffled := append([]Entry(nil), entries...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	assert.Equal(t, first, Aggregate(shuffled))
}
