package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/metering/internal/metrics"
	"github.com/edvin/metering/internal/model"
)

// FilterAndGroup drops samples whose source is not in trusted and groups
// the rest by resource id, keeping their order. An empty trusted list trusts
// every source.
func FilterAndGroup(samples []model.Sample, trusted []string, logger zerolog.Logger) map[string][]model.Sample {
	var allow map[string]struct{}
	if len(trusted) > 0 {
		allow = make(map[string]struct{}, len(trusted))
		for _, s := range trusted {
			allow[s] = struct{}{}
		}
	}

	groups := make(map[string][]model.Sample)
	for _, s := range samples {
		if allow != nil {
			if _, ok := allow[s.Source]; !ok {
				logger.Warn().
					Str("resource_id", s.ResourceID).
					Str("source", s.Source).
					Msg("discarding sample from untrusted source")
				metrics.UntrustedSamples.Inc()
				continue
			}
		}
		groups[s.ResourceID] = append(groups[s.ResourceID], s)
	}
	return groups
}
