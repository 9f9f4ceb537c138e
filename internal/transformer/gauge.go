package transformer

import (
	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

// GaugeMax bills the largest volume seen in the window.
type GaugeMax struct{}

func (GaugeMax) TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal {
	samples = sortAndClip(samples, window.End)
	if len(samples) == 0 {
		return nil
	}
	peak := samples[0].Volume
	for _, s := range samples[1:] {
		if s.Volume.GreaterThan(peak) {
			peak = s.Volume
		}
	}
	return map[string]decimal.Decimal{service: peak}
}

// GaugeSum bills the sum of all volumes in the window.
type GaugeSum struct{}

func (GaugeSum) TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal {
	samples = sortAndClip(samples, window.End)
	if len(samples) == 0 {
		return nil
	}
	total := decimal.Zero
	for _, s := range samples {
		total = total.Add(s.Volume)
	}
	return map[string]decimal.Decimal{service: total}
}

// GaugeLast bills the most recent volume in the window.
type GaugeLast struct{}

func (GaugeLast) TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal {
	samples = sortAndClip(samples, window.End)
	if len(samples) == 0 {
		return nil
	}
	return map[string]decimal.Decimal{service: samples[len(samples)-1].Volume}
}

// Cumulative bills how far a monotonic counter moved during the window. A
// drop in the counter is taken as a reset and the post-reset value counts as
// movement. It needs two samples to say anything; a counter that did not
// move is billed as an explicit zero.
type Cumulative struct{}

func (Cumulative) TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal {
	samples = sortAndClip(samples, window.End)
	if len(samples) < 2 {
		return nil
	}
	total := decimal.Zero
	prev := samples[0].Volume
	for _, s := range samples[1:] {
		delta := s.Volume.Sub(prev)
		if delta.IsNegative() {
			delta = s.Volume
		}
		total = total.Add(delta)
		prev = s.Volume
	}
	return map[string]decimal.Decimal{service: total}
}
