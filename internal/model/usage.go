package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Resource struct {
	ID        string         `json:"id" db:"id"`
	TenantID  string         `json:"tenant_id" db:"tenant_id"`
	Type      string         `json:"type" db:"type"`
	Metadata  map[string]any `json:"metadata" db:"metadata"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// UsageEntry is one billable volume for a resource and service over a
// half-open [Start, End) range.
type UsageEntry struct {
	ID         int64           `json:"id" db:"id"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	ResourceID string          `json:"resource_id" db:"resource_id"`
	Service    string          `json:"service" db:"service"`
	Volume     decimal.Decimal `json:"volume" db:"volume"`
	Unit       string          `json:"unit" db:"unit"`
	Start      time.Time       `json:"start" db:"start"`
	End        time.Time       `json:"end" db:"end"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// UsageTotal is the summed volume of a resource/service/unit over a range.
type UsageTotal struct {
	ResourceID string          `json:"resource_id"`
	Service    string          `json:"service"`
	Unit       string          `json:"unit"`
	Volume     decimal.Decimal `json:"volume"`
}

// WindowCommit is everything written atomically when a collection window
// completes: new resources, usage rows and the watermark advance.
type WindowCommit struct {
	TenantID  string
	Start     time.Time
	End       time.Time
	Resources []Resource
	Entries   []UsageEntry
}
