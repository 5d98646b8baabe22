package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"parserator/internal/domain"
)

// DefaultTiers returns the built-in subscription limits.
func DefaultTiers() map[domain.Tier]domain.TierLimits {
	return map[domain.Tier]domain.TierLimits{
		domain.TierFree: {
			RequestsPerMonth:  100,
			RequestsPerMinute: 10,
			MaxInputBytes:     100000,
		},
		domain.TierPro: {
			RequestsPerMonth:  10000,
			RequestsPerMinute: 100,
			MaxInputBytes:     500000,
		},
		domain.TierEnterprise: {
			RequestsPerMonth:  100000,
			RequestsPerMinute: 1000,
			MaxInputBytes:     1000000,
		},
	}
}

type tiersFile struct {
	Tiers map[string]domain.TierLimits `yaml:"tiers"`
}

// LoadTiersFile reads tier overrides from a YAML file of the form:
//
//	tiers:
//	  pro:
//	    requests_per_month: 20000
//	    requests_per_minute: 200
//	    max_input_bytes: 500000
func LoadTiersFile(path string) (map[domain.Tier]domain.TierLimits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.LoadTiersFile: %w", err)
	}
	return ParseTiers(data)
}

// ParseTiers decodes tier overrides from YAML.
func ParseTiers(data []byte) (map[domain.Tier]domain.TierLimits, error) {
	var f tiersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config.ParseTiers: %w", err)
	}
	out := make(map[domain.Tier]domain.TierLimits, len(f.Tiers))
	for name, limits := range f.Tiers {
		tier := domain.Tier(name)
		if !tier.Valid() {
			return nil, fmt.Errorf("config.ParseTiers: %w: %s", domain.ErrInvalidTier, name)
		}
		out[tier] = limits
	}
	return out, nil
}
