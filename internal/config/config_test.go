package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_UsesModeDependentConfidenceThreshold(t *testing.T) {
	db := Defaults(ModeDatabase)
	assert.Equal(t, 0.7, db.ConfidenceThreshold)

	auto := Defaults(ModeAutoCluster)
	assert.Equal(t, 0.5, auto.ConfidenceThreshold)
}

func TestLoadEnv_OverridesDefaultsFromEnvironment(t *testing.T) {
	t.Setenv("VISION_CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("T_EXACT_SECONDS", "15")
	t.Setenv("VISION_BASE_URL", "http://localhost:5010")

	cfg := Defaults(ModeDatabase)
	LoadEnv(cfg)

	assert.Equal(t, 0.85, cfg.ConfidenceThreshold)
	assert.Equal(t, 15, cfg.TExactSeconds)
	assert.Equal(t, "http://localhost:5010", cfg.VisionBaseURL)
}

func TestLoadEnv_IgnoresInvalidNumericValues(t *testing.T) {
	t.Setenv("T_EXACT_SECONDS", "not-a-number")
	cfg := Defaults(ModeDatabase)
	LoadEnv(cfg)
	assert.Equal(t, 10, cfg.TExactSeconds, "invalid env value should be ignored, default retained")
}

func TestLoadEnv_ResolvesUnsetBaseURLToDefaultContainerAddress(t *testing.T) {
	os.Unsetenv("VISION_BASE_URL")
	cfg := Defaults(ModeDatabase)
	LoadEnv(cfg)
	assert.Equal(t, "http://vision-api:8080", cfg.VisionBaseURL)
}

func TestMerge_OverridesWinOverBase(t *testing.T) {
	base := Defaults(ModeDatabase)
	base.SourceDir = "/base/src"

	overrides := &Config{SourceDir: "/cli/src", ConfidenceThreshold: 0.9}
	merged, err := Merge(base, overrides)
	require.NoError(t, err)

	assert.Equal(t, "/cli/src", merged.SourceDir)
	assert.Equal(t, 0.9, merged.ConfidenceThreshold)
	assert.Equal(t, base.OutputDir, merged.OutputDir, "fields absent from overrides retain the base value")
}

func TestValidate_RequiresSourceDirAndVisionBaseURL(t *testing.T) {
	cfg := Defaults(ModeDatabase)
	err := Validate(cfg)
	require.Error(t, err, "missing SourceDir and VisionBaseURL should fail validation")

	cfg.SourceDir = "/photos"
	cfg.VisionBaseURL = "http://vision-api:8080"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_RejectsConfidenceThresholdOutsideUnitRange(t *testing.T) {
	cfg := Defaults(ModeDatabase)
	cfg.SourceDir = "/photos"
	cfg.VisionBaseURL = "http://vision-api:8080"
	cfg.ConfidenceThreshold = 1.5

	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsExactThresholdGreaterThanHighThreshold(t *testing.T) {
	cfg := Defaults(ModeDatabase)
	cfg.SourceDir = "/photos"
	cfg.VisionBaseURL = "http://vision-api:8080"
	cfg.TExactSeconds = 60
	cfg.THighSeconds = 30

	assert.Error(t, Validate(cfg))
}
