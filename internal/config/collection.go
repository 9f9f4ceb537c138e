package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Collection describes which meters are collected and how each one is
// turned into billable usage.
type Collection struct {
	// MaxWindowsPerCycle caps the windows collected per tenant in one
	// sweep. Zero means no cap.
	MaxWindowsPerCycle int `yaml:"max_windows_per_cycle" validate:"gte=0"`
	// TrustSources, when non-empty, is the allow-list of sample sources.
	TrustSources []string `yaml:"trust_sources"`
	// MeterPairs maps a configured meter name to the name queried upstream.
	MeterPairs    map[string]string       `yaml:"meter_pairs"`
	MeterMappings map[string]MeterMapping `yaml:"meter_mappings" validate:"required,min=1,dive"`
	Transformers  TransformerSettings     `yaml:"transformers"`
}

type MeterMapping struct {
	Type        string `yaml:"type" validate:"required"`
	Transformer string `yaml:"transformer" validate:"required"`
	Unit        string `yaml:"unit" validate:"required"`
	// Service defaults to the meter name.
	Service string `yaml:"service"`
	// ResIDTemplate is a fmt template applied to the upstream resource id.
	ResIDTemplate string                   `yaml:"res_id_template" validate:"omitempty,contains=%s"`
	Metadata      map[string]MetadataField `yaml:"metadata" validate:"dive"`
}

// MetadataField selects one value for the resource metadata snapshot: the
// first source path present in the sample metadata wins.
type MetadataField struct {
	Sources []string `yaml:"sources" validate:"required,min=1"`
	Default string   `yaml:"default"`
}

type TransformerSettings struct {
	Uptime struct {
		TrackedStates []string `yaml:"tracked_states"`
	} `yaml:"uptime"`
	FromImage struct {
		NoneValues []string `yaml:"none_values"`
		SizeField  string   `yaml:"size_field"`
	} `yaml:"from_image"`
}

// LoadCollection reads and validates the collection YAML file.
func LoadCollection(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read collection config: %w", err)
	}
	return ParseCollection(data)
}

func ParseCollection(data []byte) (*Collection, error) {
	var c Collection
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse collection config: %w", err)
	}
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("validate collection config: %w", err)
	}
	return &c, nil
}

// UpstreamMeter returns the meter name to query for a configured meter.
func (c *Collection) UpstreamMeter(meter string) string {
	if name, ok := c.MeterPairs[meter]; ok && name != "" {
		return name
	}
	return meter
}

// MeterNames returns the configured meters in a stable order.
func (c *Collection) MeterNames() []string {
	names := make([]string, 0, len(c.MeterMappings))
	for name := range c.MeterMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServiceFor returns the service label of a meter mapping.
func (m MeterMapping) ServiceFor(meter string) string {
	if m.Service != "" {
		return m.Service
	}
	return meter
}

// ResourceID renders the stored resource id for an upstream resource id.
func (m MeterMapping) ResourceID(upstream string) string {
	if m.ResIDTemplate == "" {
		return upstream
	}
	return fmt.Sprintf(m.ResIDTemplate, upstream)
}
