package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is a single time-stamped reading returned by the metering source.
// Metadata is kept as raw JSON and read with path lookups.
type Sample struct {
	ResourceID string          `json:"resource_id"`
	Source     string          `json:"source"`
	Volume     decimal.Decimal `json:"counter_volume"`
	Unit       string          `json:"counter_unit"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   json.RawMessage `json:"resource_metadata,omitempty"`
}
