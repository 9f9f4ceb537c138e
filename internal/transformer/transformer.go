// Package transformer turns the raw samples of one resource in one
// collection window into billable volumes.
//
// Each meter mapping names a transformer; the set of transformers is closed
// and selected through New when the collection config is loaded.
package transformer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

// Transformer converts the samples of one resource within a window into
// billable volumes keyed by service. A nil or empty result means nothing
// billable happened; a zero volume is an explicit result and is stored.
type Transformer interface {
	TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal
}

// Options tunes the transformers that need settings.
type Options struct {
	// TrackedStates are the instance states billed by the uptime transformer.
	TrackedStates []string
	// NoneValues are image references meaning "not booted from an image".
	NoneValues []string
	// SizeField is the metadata path holding the root disk size.
	SizeField string
}

var DefaultTrackedStates = []string{"active", "paused", "rescued", "resized"}

var registry = map[string]func(Options) Transformer{
	"uptime": func(o Options) Transformer {
		states := o.TrackedStates
		if len(states) == 0 {
			states = DefaultTrackedStates
		}
		return newUptime(states)
	},
	"max":        func(Options) Transformer { return GaugeMax{} },
	"sum":        func(Options) Transformer { return GaugeSum{} },
	"last":       func(Options) Transformer { return GaugeLast{} },
	"cumulative": func(Options) Transformer { return Cumulative{} },
	"from_image": func(o Options) Transformer { return newFromImage(o.NoneValues, o.SizeField) },
}

// New returns the transformer registered under name.
func New(name string, opts Options) (Transformer, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown transformer %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return build(opts), nil
}

// Names lists the registered transformers.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// sortAndClip returns the samples before the window end, ordered by time.
func sortAndClip(samples []model.Sample, end time.Time) []model.Sample {
	out := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(end) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
