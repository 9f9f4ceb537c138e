// Package pricing converts usage volumes into costs using a rate schedule.
package pricing

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Rate is the price of one unit of a service.
type Rate struct {
	Rate decimal.Decimal
	Unit string
}

type rateEntry struct {
	Rate string `yaml:"rate" validate:"required,numeric"`
	Unit string `yaml:"unit" validate:"required"`
}

type rateFile struct {
	Rates map[string]rateEntry `yaml:"rates" validate:"dive"`
}

// RateSchedule maps a service name to its rate. It is read-only once loaded.
type RateSchedule map[string]Rate

// LoadRates reads the rate schedule YAML file.
func LoadRates(path string) (RateSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rates %s: %w", path, err)
	}
	return ParseRates(data)
}

// ParseRates parses a rate schedule of the form
//
//	rates:
//	  m1.small: {rate: "0.25", unit: hour}
func ParseRates(data []byte) (RateSchedule, error) {
	var f rateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rates: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("validate rates: %w", err)
	}

	schedule := make(RateSchedule, len(f.Rates))
	for service, e := range f.Rates {
		d, err := decimal.NewFromString(e.Rate)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", service, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("rate for %s is negative", service)
		}
		if _, ok := unitFactors[e.Unit]; !ok {
			return nil, fmt.Errorf("rate for %s: unknown unit %q", service, e.Unit)
		}
		schedule[service] = Rate{Rate: d, Unit: e.Unit}
	}
	return schedule, nil
}

// Lookup returns the rate for a service.
func (s RateSchedule) Lookup(service string) (Rate, bool) {
	r, ok := s[service]
	return r, ok
}
