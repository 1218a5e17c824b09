package observability

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"example.com/ecotrack/internal/emission"
)

func TestEstimatorObserverCountsAndLogs(t *testing.T) {
	var buf bytes.Buffer
	estimator := emission.NewEstimator(emission.DefaultFactors(),
		emission.WithObserver(EstimatorObserver(zerolog.New(&buf))))

	before := testutil.ToFloat64(UnknownSubtypeCount("transport"))

	mass, err := estimator.Estimate(emission.KindTransport, "hovercraft", 50)
	require.NoError(t, err)
	require.Zero(t, mass)

	require.InDelta(t, before+1, testutil.ToFloat64(UnknownSubtypeCount("transport")), 0.0001)
	require.Contains(t, buf.String(), `"subtype":"hovercraft"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}
