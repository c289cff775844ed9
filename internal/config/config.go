package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"dario.cat/mergo"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/logging"
)

// Defaults builds a Config populated with spec.md §6's documented defaults.
// It reads no environment variables; the caller overlays them with LoadEnv
// and then merges CLI flags on top via Merge.
func Defaults(mode Mode) *Config {
	return &Config{
		Mode:                mode,
		OutputDir:           "./organized_photos",
		CopyOrMove:          CopyMode,
		Recursive:           true,
		ConfidenceThreshold: DefaultConfidenceThreshold(mode),
		TExactSeconds:       10,
		THighSeconds:        30,
		MaxImageMB:          5.0,
		MaxImageDim:         8000,
		RetryAttempts:       3,
		RetryDelay:          2,
		VisionTimeout:       60,
		CacheFile:           "analysis_cache.yaml",
		RosterFile:          "roster.yaml",
		Deterministic:       true,
		LogLevel:            "info",
	}
}

// LoadEnv overlays environment-variable configuration (spec.md §6) onto cfg.
func LoadEnv(cfg *Config) {
	if v := getFloatEnv("VISION_CONFIDENCE_THRESHOLD"); v > 0 {
		cfg.ConfidenceThreshold = v
	}
	if v := getIntEnv("T_EXACT_SECONDS"); v > 0 {
		cfg.TExactSeconds = v
	}
	if v := getIntEnv("T_HIGH_SECONDS"); v > 0 {
		cfg.THighSeconds = v
	}
	if v := getFloatEnv("MAX_IMAGE_MB"); v > 0 {
		cfg.MaxImageMB = v
	}
	if v := getIntEnv("MAX_IMAGE_DIM"); v > 0 {
		cfg.MaxImageDim = v
	}
	if v := os.Getenv("VISION_BASE_URL"); v != "" {
		cfg.VisionBaseURL = v
	}
	if v := os.Getenv("VISION_API_KEY"); v != "" {
		cfg.VisionAPIKey = v
	}
	if v := os.Getenv("RACELENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	cfg.VisionBaseURL = resolveServiceURL(cfg.VisionBaseURL, "vision-api", "8080")
}

// Merge overlays non-zero fields of overrides onto base using mergo, matching
// the "CLI flags win over environment defaults" rule (SPEC_FULL.md §2.3).
func Merge(base *Config, overrides *Config) (*Config, error) {
	merged := *base
	if err := mergo.Merge(&merged, overrides, mergo.WithOverride); err != nil {
		return nil, apperr.Wrap(apperr.CategoryConfig, "config.merge", err)
	}
	return &merged, nil
}

// Validate checks required settings per spec.md §7's "Config-missing /
// invalid → fatal at startup, exit 1".
func Validate(cfg *Config) error {
	if cfg.SourceDir == "" {
		return apperr.New(apperr.CategoryConfig, "config.validate", fmt.Errorf("source directory is required"))
	}
	if cfg.VisionBaseURL == "" {
		return apperr.New(apperr.CategoryConfig, "config.validate", fmt.Errorf("vision backend base URL is required (set VISION_BASE_URL)"))
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return apperr.New(apperr.CategoryConfig, "config.validate", fmt.Errorf("confidence threshold must be within [0,1], got %v", cfg.ConfidenceThreshold))
	}
	if cfg.TExactSeconds > cfg.THighSeconds {
		return apperr.New(apperr.CategoryConfig, "config.validate", fmt.Errorf("T_EXACT_SECONDS (%d) must be <= T_HIGH_SECONDS (%d)", cfg.TExactSeconds, cfg.THighSeconds))
	}
	return nil
}

func getIntEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logging.Warnf("config: invalid integer for %s=%q, ignoring", key, v)
		return 0
	}
	return n
}

func getFloatEnv(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logging.Warnf("config: invalid float for %s=%q, ignoring", key, v)
		return 0
	}
	return f
}

// resolveServiceURL resolves the vision backend URL with DNS lookup, mirroring
// the teacher's resolveServiceURL (internal/config/config.go in the teacher
// repo), useful since the backend frequently runs as a sibling container.
func resolveServiceURL(configuredURL, defaultContainerName, defaultPort string) string {
	const defaultScheme = "http"
	fallback := fmt.Sprintf("%s://%s:%s", defaultScheme, defaultContainerName, defaultPort)

	if configuredURL == "" {
		return fallback
	}

	parsed, err := url.Parse(configuredURL)
	if err != nil {
		logging.Warnf("config: failed to parse vision URL %q: %v, using fallback", configuredURL, err)
		return fallback
	}

	hostname := parsed.Hostname()
	port := parsed.Port()
	scheme := parsed.Scheme
	if scheme == "" {
		scheme = defaultScheme
	}
	if port == "" {
		port = defaultPort
	}

	switch {
	case hostname == "localhost", hostname == "127.0.0.1", hostname == "host.docker.internal":
		return fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
	case net.ParseIP(hostname) != nil:
		return fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
	}

	addrs, err := net.LookupIP(hostname)
	if err != nil || len(addrs) == 0 {
		return fmt.Sprintf("%s://%s:%s", scheme, hostname, port)
	}
	return fmt.Sprintf("%s://%s:%s", scheme, addrs[0].String(), port)
}
