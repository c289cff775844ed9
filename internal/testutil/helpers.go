// Package testutil holds small test helpers shared across this module's
// package tests, adapted from the teacher's tests/testutil/helpers.go: a
// service-URL test environment (trimmed to the one backend this domain
// talks to) and a real, decodable JPEG fixture writer.
package testutil

import (
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEnv holds integration-test configuration sourced from environment
// variables, mirroring the teacher's SetupTestEnv but scoped to the single
// vision backend this tool talks to.
type TestEnv struct {
	VisionServiceURL string
	VisionAPIKey     string
}

// SetupTestEnv builds a TestEnv from environment variables, falling back to
// a local default URL.
func SetupTestEnv() *TestEnv {
	return &TestEnv{
		VisionServiceURL: getEnvOrDefault("VISION_BASE_URL", "http://localhost:5010"),
		VisionAPIKey:     os.Getenv("VISION_API_KEY"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// SkipIfNoServices skips the calling test in short mode, for tests that
// require a live vision backend rather than an httptest fake.
func SkipIfNoServices(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// CreateTempImage writes a real, decodable width x height JPEG to a
// temporary file and registers its cleanup, for tests exercising
// internal/imaging's decode/hash/encode path.
func CreateTempImage(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	f, err := os.CreateTemp("", "racelens-test-*.jpg")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(f.Name()) })
	defer f.Close()

	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return f.Name()
}
