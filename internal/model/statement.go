package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Statement is the billing document for a tenant. Unpriced it is the raw
// aggregated usage; once priced every service carries a cost and the
// resources and the tenant carry totals.
type Statement struct {
	TenantID  string                        `json:"tenant_id"`
	Name      string                        `json:"name"`
	Resources map[string]*StatementResource `json:"resources"`
	TotalCost *Amount                       `json:"total_cost,omitempty"`
	Start     string                        `json:"start,omitempty"`
	End       string                        `json:"end,omitempty"`
}

type StatementResource struct {
	Type      string              `json:"type,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
	Services  []*StatementService `json:"services"`
	TotalCost *Amount             `json:"total_cost,omitempty"`
}

// StatementService is one service line of a resource.
type StatementService struct {
	Name   string
	Volume decimal.Decimal
	Unit   string
	Cost   *Amount
	Rate   *decimal.Decimal
	// RateMissing marks a line that could not be priced.
	RateMissing bool
}

const (
	missingRateLabel   = "missing rate"
	missingVolumeLabel = "unknown unit conversion"
	UnknownUnit        = "unknown"
)

func (s *StatementService) MarshalJSON() ([]byte, error) {
	out := map[string]string{
		"name":   s.Name,
		"volume": s.Volume.String(),
		"unit":   s.Unit,
	}
	switch {
	case s.RateMissing:
		out["volume"] = missingVolumeLabel
		out["unit"] = UnknownUnit
		out["rate"] = missingRateLabel
		out["cost"] = "0"
	case s.Cost != nil:
		out["cost"] = s.Cost.String()
		if s.Rate != nil {
			out["rate"] = s.Rate.String()
		}
	}
	return json.Marshal(out)
}

// Amount is a monetary value rendered with two decimal places.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) *Amount {
	return &Amount{Decimal: d}
}

func (a Amount) String() string {
	return a.Decimal.StringFixed(2)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}
