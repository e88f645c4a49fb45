package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// SiteConfig describes one agency site for the generic agency collector.
// Selector overrides are optional; empty slices fall back to the collector's
// generic cascades.
type SiteConfig struct {
	Name          string   `yaml:"name"`
	StartURL      string   `yaml:"start_url"`
	Verified      bool     `yaml:"verified"`
	MaxPages      int      `yaml:"max_pages"`
	CardSelectors []string `yaml:"card_selectors,omitempty"`
	ExtraWaitMs   int      `yaml:"extra_wait_ms,omitempty"`
}

// DefaultAgencySources is the compiled-in registry of PNG agency sites,
// used when no YAML registry file is configured.
func DefaultAgencySources() []SiteConfig {
	return []SiteConfig{
		{Name: "MarketMeri", StartURL: "https://marketmeri.com/real-estate", Verified: true, MaxPages: 8},
		{Name: "SRE PNG", StartURL: "http://www.sre.com.pg/rentals", Verified: true, MaxPages: 5},
		{Name: "Century 21 PNG", StartURL: "https://www.century21.com.pg/rent", Verified: true, MaxPages: 5},
		{Name: "Ray White PNG", StartURL: "https://www.raywhitepng.com/rent", Verified: true, MaxPages: 5},
		{Name: "Pacific Palms", StartURL: "http://www.pacificpalmsproperty.com.pg/rentals", Verified: true, MaxPages: 4},
		{Name: "DAC Properties", StartURL: "http://www.dac.com.pg/rentals", Verified: true, MaxPages: 4},
		{Name: "AAA Properties", StartURL: "http://www.aaaproperties.com.pg/rent", Verified: true, MaxPages: 4},
		{Name: "Arthur Strachan", StartURL: "http://www.arthurstrachan.com.pg/rentals", Verified: true, MaxPages: 4},
	}
}

// LoadAgencySources reads the agency registry from a YAML file. An empty
// path returns the compiled-in defaults.
func LoadAgencySources(path string) ([]SiteConfig, error) {
	if path == "" {
		return DefaultAgencySources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read agency sources %q: %w", path, err)
	}

	var doc struct {
		Agencies []SiteConfig `yaml:"agencies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse agency sources %q: %w", path, err)
	}
	if len(doc.Agencies) == 0 {
		return nil, fmt.Errorf("config: agency sources %q lists no agencies", path)
	}

	for i := range doc.Agencies {
		if doc.Agencies[i].MaxPages <= 0 {
			doc.Agencies[i].MaxPages = 5
		}
	}
	return doc.Agencies, nil
}
