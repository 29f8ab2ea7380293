package azure

import (
	"fmt"

	"github.com/spf13/viper"
)

type settingsFile struct {
	LookbackDays         int     `mapstructure:"lookback_days"`
	HighSpendThreshold   float64 `mapstructure:"high_spend_threshold"`
	MediumSpendThreshold float64 `mapstructure:"medium_spend_threshold"`
	LowSpendThreshold    float64 `mapstructure:"low_spend_threshold"`
}

// LoadCostSettings reads collector thresholds from a config file,
// falling back to defaults for anything unset. An empty path returns the
// defaults without touching the filesystem.
func LoadCostSettings(path string) (CostSettings, error) {
	settings := DefaultCostSettings()
	if path == "" {
		return settings, nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return CostSettings{}, fmt.Errorf("failed to read collector config: %w", err)
	}

	var cfg settingsFile
	if err := v.Unmarshal(&cfg); err != nil {
		return CostSettings{}, fmt.Errorf("failed to parse collector config: %w", err)
	}

	if cfg.LookbackDays > 0 {
		settings.LookbackDays = cfg.LookbackDays
	}
	if cfg.HighSpendThreshold > 0 {
		settings.HighSpendThreshold = cfg.HighSpendThreshold
	}
	if cfg.MediumSpendThreshold > 0 {
		settings.MediumSpendThreshold = cfg.MediumSpendThreshold
	}
	if cfg.LowSpendThreshold > 0 {
		settings.LowSpendThreshold = cfg.LowSpendThreshold
	}
	return settings, nil
}
