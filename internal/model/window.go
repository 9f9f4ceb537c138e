package model

import "time"

// Window is a half-open [Start, End) collection interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Timestamp layouts accepted and rendered by the billing API.
const (
	ISODate = "2006-01-02"
	ISOTime = "2006-01-02T15:04:05"
)
