package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tariffsFile is the YAML shape of an operator-provided tariff override.
type tariffsFile struct {
	Tiers []tariffEntry `yaml:"tiers"`
}

type tariffEntry struct {
	Name     string `yaml:"name"`
	ChatFull int    `yaml:"chat_full"`
	Image    int    `yaml:"image"`
	PriceRUB int    `yaml:"price_rub"`
}

// LoadTariffs replaces the paid-tier allowance table with values from a YAML
// file. Environment variables in the format ${VAR} are expanded before
// parsing. Tiers absent from the file keep their defaults.
func LoadTariffs(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tariffs: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var f tariffsFile
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return fmt.Errorf("parse tariffs: %w", err)
	}

	for i, e := range f.Tiers {
		tier := Tier(e.Name)
		if !tier.Paid() {
			return fmt.Errorf("tariffs: tiers[%d]: unknown paid tier %q", i, e.Name)
		}
		if e.ChatFull < 0 || e.Image < 0 {
			return fmt.Errorf("tariffs: tiers[%d]: allowances must be non-negative", i)
		}
		if e.PriceRUB <= 0 {
			return fmt.Errorf("tariffs: tiers[%d]: price_rub is required", i)
		}
		TierAllowances[tier] = Allowance{
			ChatFull: Quota(e.ChatFull),
			Image:    Quota(e.Image),
			PriceRUB: e.PriceRUB,
		}
	}

	return nil
}
