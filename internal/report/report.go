// Package report writes organization_log.json, the run-level artifact
// summarizing an organize run: mode, configuration snapshot, per-category
// counts, per-cluster membership, per-image outcomes, and vision errors
// (spec.md §4.10). The batch-summary line it logs alongside the artifact is
// grounded on the teacher's "%d processed, %d succeeded, %d failed" pattern
// in internal/rpc/images.go.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/config"
	"github.com/racelens/organizer/internal/logging"
)

// ImageOutcome is one photo's final disposition.
type ImageOutcome struct {
	SourcePath      string `json:"source_path"`
	Category        string `json:"category"`
	DestinationPath string `json:"destination_path,omitempty"`
	Error           string `json:"error,omitempty"`
}

// ClusterSummary describes one auto-cluster-mode cluster's membership.
type ClusterSummary struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	Bib         string `json:"bib,omitempty"`
}

// Log is the full organization_log.json document.
type Log struct {
	RunID     string      `json:"run_id"`
	Mode      config.Mode `json:"mode"`
	SourceDir string      `json:"source_dir"`
	OutputDir string      `json:"output_dir"`
	DryRun    bool        `json:"dry_run"`

	CategoryCounts map[string]int   `json:"category_counts"`
	Clusters       []ClusterSummary `json:"clusters,omitempty"`
	Images         []ImageOutcome   `json:"images"`
	VisionErrors   []string         `json:"vision_errors,omitempty"`
}

// New builds a Log stamped with a fresh run ID for cfg's run.
func New(cfg *config.Config) *Log {
	return &Log{
		RunID:          uuid.NewString(),
		Mode:           cfg.Mode,
		SourceDir:      cfg.SourceDir,
		OutputDir:      cfg.OutputDir,
		DryRun:         cfg.DryRun,
		CategoryCounts: make(map[string]int),
	}
}

// AddImage records one image's outcome and increments its category count.
func (l *Log) AddImage(outcome ImageOutcome) {
	l.Images = append(l.Images, outcome)
	l.CategoryCounts[outcome.Category]++
}

// AddVisionError records a vision-backend error encountered during the run.
func (l *Log) AddVisionError(msg string) {
	l.VisionErrors = append(l.VisionErrors, msg)
}

// SetClusters records the final cluster membership (auto-cluster mode only).
func (l *Log) SetClusters(clusters []ClusterSummary) {
	l.Clusters = clusters
}

// Write marshals l as organization_log.json under outputDir and logs the
// batch-summary line.
func (l *Log) Write(outputDir string) error {
	path := filepath.Join(outputDir, "organization_log.json")
	raw, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.CategoryCacheIO, "report.write", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return apperr.Wrap(apperr.CategoryCacheIO, "report.write", err)
	}

	succeeded := len(l.Images) - len(failedImages(l.Images))
	logging.Infof("organize run %s complete: %d processed, %d succeeded, %d failed",
		l.RunID, len(l.Images), succeeded, len(failedImages(l.Images)))
	return nil
}

func failedImages(images []ImageOutcome) []ImageOutcome {
	var failed []ImageOutcome
	for _, img := range images {
		if img.Error != "" {
			failed = append(failed, img)
		}
	}
	return failed
}
