package azure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCostSettings_EmptyPathReturnsDefaults(t *testing.T) {
	settings, err := LoadCostSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCostSettings(), settings)
}

func TestLoadCostSettings_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collectors.yaml")
	content := []byte("lookback_days: 7\nhigh_spend_threshold: 10000\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	settings, err := LoadCostSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 7, settings.LookbackDays)
	assert.Equal(t, float64(10000), settings.HighSpendThreshold)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultCostSettings().MediumSpendThreshold, settings.MediumSpendThreshold)
	assert.Equal(t, DefaultCostSettings().LowSpendThreshold, settings.LowSpendThreshold)
}

func TestLoadCostSettings_MissingFile(t *testing.T) {
	_, err := LoadCostSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
