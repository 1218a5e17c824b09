package observability

import (
	"github.com/rs/zerolog"

	"example.com/ecotrack/internal/emission"
)

// EstimatorObserver logs and counts estimates that fell back to a zero factor.
func EstimatorObserver(logger zerolog.Logger) emission.UnknownSubtypeObserver {
	return emission.ObserverFunc(func(kind emission.Kind, subtype string) {
		RecordUnknownSubtype(string(kind))
		logger.Warn().Str("kind", string(kind)).Str("subtype", subtype).Msg("no emission factor for subtype, estimating zero")
	})
}
