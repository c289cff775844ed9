// Package vision is a typed façade over the external vision RPC backend:
// describe_one_face, detect_all_subjects, and compare_two_descriptions.
// Adapted from the teacher's internal/compreface (multipart HTTP client
// shape) and internal/vision (timeout/retry idioms, now repurposed from
// async video-job polling to synchronous per-image calls).
package vision

import (
	"net/http"
	"time"

	"github.com/racelens/organizer/pkg/utils"
)

// Client talks to the vision backend over HTTP.
type Client struct {
	BaseURL       string
	APIKey        string
	HTTPClient    *http.Client
	RetryAttempts int
	RetryDelay    time.Duration
}

// Config bundles the settings needed to construct a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// New builds a Client from cfg, applying the spec's documented retry
// defaults (3 attempts, 2s linear backoff) when unset.
func New(cfg Config) *Client {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		BaseURL:       cfg.BaseURL,
		APIKey:        cfg.APIKey,
		HTTPClient:    &http.Client{Timeout: cfg.Timeout},
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}
}

// StructuredFeatures are the per-detection feature hints the comparator
// treats as secondary to the free-text outfit_description (spec.md §3).
type StructuredFeatures struct {
	HelmetBrand     string   `json:"helmet_brand,omitempty"`
	HelmetColors    []string `json:"helmet_colors,omitempty"`
	GoggleLensColor string   `json:"goggle_lens_color,omitempty"`
	GoggleStrap     string   `json:"goggle_strap,omitempty"`
	BootBrand       string   `json:"boot_brand,omitempty"`
	BootColors      []string `json:"boot_colors,omitempty"`
	ClothingPattern string   `json:"clothing_pattern,omitempty"`
	ClothingColors  []string `json:"clothing_colors,omitempty"`
	EquipmentBrands []string `json:"equipment_brands,omitempty"`
}

// SubjectDetection is one face/outfit found in one image (spec.md §3).
type SubjectDetection struct {
	Position           string `json:"position,omitempty"`
	OutfitDescription  string `json:"outfit_description"`
	BibNumber          string `json:"bib_number,omitempty"`
	StructuredFeatures `json:"structured_features,omitempty"`
}

// FeatureTokens returns up to three dominant visual-feature tokens for
// cluster naming (spec.md §4.7): helmet colors first, then boot colors,
// then clothing colors, stopping once three tokens are collected.
func (d SubjectDetection) FeatureTokens() []string {
	var tokens []string
	add := func(values []string) {
		for _, v := range values {
			if v == "" || len(tokens) >= 3 {
				continue
			}
			tokens = append(tokens, v)
		}
	}
	add(d.HelmetColors)
	add(d.BootColors)
	add(d.ClothingColors)
	return utils.DeduplicateStrings(tokens)
}

// compareResponse is the raw shape of compare_two_descriptions' JSON payload.
type compareResponse struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// describeResponse is the raw shape of describe_one_face's JSON payload.
type describeResponse struct {
	Description string `json:"description"`
}

// detectResponse is the raw shape of detect_all_subjects' JSON payload.
type detectResponse struct {
	Subjects []SubjectDetection `json:"subjects"`
}
