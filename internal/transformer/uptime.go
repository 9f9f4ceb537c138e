package transformer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

var (
	statePaths  = []string{"state", "status"}
	flavorPaths = []string{"flavor.name", "instance_type", "flavor.id", "instance_flavor_id"}
)

// Uptime bills the seconds an instance spent in a tracked state during the
// window, keyed by the flavor it was running as. A state reported by a
// sample holds until the next sample.
type Uptime struct {
	tracked map[string]struct{}
}

func newUptime(states []string) Uptime {
	tracked := make(map[string]struct{}, len(states))
	for _, s := range states {
		tracked[strings.ToLower(s)] = struct{}{}
	}
	return Uptime{tracked: tracked}
}

func (u Uptime) isTracked(s model.Sample) bool {
	state, ok := MetadataString(s.Metadata, statePaths...)
	if !ok {
		return false
	}
	_, tracked := u.tracked[strings.ToLower(state)]
	return tracked
}

func (u Uptime) TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal {
	samples = sortAndClip(samples, window.End)
	if len(samples) == 0 {
		return nil
	}

	usage := map[string]time.Duration{}
	flavor := func(s model.Sample) string {
		if f, ok := MetadataString(s.Metadata, flavorPaths...); ok && f != "" {
			return f
		}
		return service
	}

	last := samples[0]
	lastTimestamp := window.Start
	seenInWindow := false
	if !last.Timestamp.Before(window.Start) {
		lastTimestamp = last.Timestamp
		seenInWindow = true
	}

	// Every interval advances lastTimestamp; only tracked ones are billed.
	for _, s := range samples[1:] {
		if s.Timestamp.After(lastTimestamp) {
			if u.isTracked(last) {
				usage[flavor(last)] += s.Timestamp.Sub(lastTimestamp)
			}
			lastTimestamp = s.Timestamp
		}
		if !s.Timestamp.Before(window.Start) {
			seenInWindow = true
		}
		last = s
	}

	// Carry the final state to the end of the window, but only when a
	// sample actually landed in this window.
	if seenInWindow && u.isTracked(last) && window.End.After(lastTimestamp) {
		usage[flavor(last)] += window.End.Sub(lastTimestamp)
	}

	if len(usage) == 0 {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(usage))
	for f, d := range usage {
		out[f] = decimal.NewFromFloat(d.Seconds())
	}
	return out
}
