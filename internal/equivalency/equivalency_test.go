package equivalency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateReferenceValues(t *testing.T) {
	out := Calculate(150)

	require.False(t, out.IsEmpty)
	require.Len(t, out.Results, 4)

	byType := make(map[Type]Result, len(out.Results))
	for _, r := range out.Results {
		byType[r.Type] = r
	}

	assert.InDelta(t, 781.25, byType[MilesDriven].Value, 0.01)
	assert.Equal(t, "781", byType[MilesDriven].FormattedValue)
	assert.InDelta(t, 18248.18, byType[SmartphonesCharged].Value, 0.01)
	assert.Equal(t, "18,248", byType[SmartphonesCharged].FormattedValue)
	assert.InDelta(t, 2.5, byType[TreeSeedlings].Value, 0.0001)
	assert.InDelta(t, 8.197, byType[HomeEnergyDays].Value, 0.001)
	assert.Contains(t, out.DisplayText, "driving ~781 miles")
	assert.Contains(t, out.DisplayText, "~18,248 smartphones")
}

func TestCalculateBelowThreshold(t *testing.T) {
	for _, kg := range []float64{0, 0.99, -3, math.NaN(), math.Inf(1)} {
		out := Calculate(kg)
		assert.True(t, out.IsEmpty, "kg=%v", kg)
		assert.Empty(t, out.Results)
		assert.GreaterOrEqual(t, out.InputKg, 0.0)
	}
}

func TestFormatValueLargeNumbers(t *testing.T) {
	assert.Equal(t, "~1.5 million", formatValue(1_500_000))
	assert.Equal(t, "~2.0 billion", formatValue(2_000_000_000))
	assert.Equal(t, "999,999", formatValue(999_999))
	assert.Equal(t, "0", formatValue(0.4))
}
