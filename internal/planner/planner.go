// Package planner converts per-photo classification decisions into
// Placement records: a (source, destination) mapping plus the fixed
// on-disk layout from spec.md §6. Planning touches no disk: every plan
// reserves filenames in memory (resolving collisions by numeric suffix),
// whether or not the run is a dry run; the executor applies the dry-run
// switch.
package planner

import (
	"path/filepath"
	"strconv"
	"time"

	"github.com/racelens/organizer/internal/names"
)

// Category mirrors matcher.Category / the auto-cluster equivalent, kept
// independent of the matcher package so the planner can serve both modes.
type Category string

const (
	CategoryNoFaces          Category = "no-faces"
	CategorySingleSubject    Category = "single-subject"
	CategoryMultipleSubjects Category = "multiple-subjects"
	CategoryUnknownSubjects  Category = "unknown-subjects"
)

// Decision is one photo's classification outcome, mode-agnostic input to
// the planner.
type Decision struct {
	SourcePath      string
	Category        Category
	DestinationName string     // cluster/subject/joined-names token; empty for no-faces/unknown
	CapturedAt      *time.Time // capture timestamp, if recovered; nil if unavailable
}

// Placement is a resolved (source, destination) mapping ready for the
// executor (spec.md §3).
type Placement struct {
	SourcePath      string
	DestinationDir  string // directory under the output root
	DestinationName string // final, collision-resolved filename
	CapturedAt      *time.Time
}

// Planner reserves destination filenames per directory so that two source
// files with the same base name landing in the same bucket don't clobber
// each other.
type Planner struct {
	outputRoot string
	usedNames  map[string]map[string]bool // destDir -> used filenames
}

// New builds a Planner rooted at outputRoot.
func New(outputRoot string) *Planner {
	return &Planner{outputRoot: outputRoot, usedNames: make(map[string]map[string]bool)}
}

// destinationDir maps a Decision to its fixed bucket under the output root
// (spec.md §6's layout table).
func (p *Planner) destinationDir(d Decision) string {
	switch d.Category {
	case CategorySingleSubject:
		return filepath.Join(p.outputRoot, names.Sanitize(d.DestinationName))
	case CategoryMultipleSubjects:
		return filepath.Join(p.outputRoot, "Multiple_People", names.Sanitize(d.DestinationName))
	case CategoryUnknownSubjects:
		return filepath.Join(p.outputRoot, "Unknown_Faces")
	default:
		return filepath.Join(p.outputRoot, "No_Faces_Detected")
	}
}

// Plan produces the full Placement list for decisions, reserving collision-
// safe filenames within each destination directory (spec.md §4.8).
func (p *Planner) Plan(decisions []Decision) []Placement {
	placements := make([]Placement, 0, len(decisions))
	for _, d := range decisions {
		destDir := p.destinationDir(d)
		base := filepath.Base(d.SourcePath)

		if p.usedNames[destDir] == nil {
			p.usedNames[destDir] = make(map[string]bool)
		}
		finalName := deduplicateFilename(base, p.usedNames[destDir])

		placements = append(placements, Placement{
			SourcePath:      d.SourcePath,
			DestinationDir:  destDir,
			DestinationName: finalName,
			CapturedAt:      d.CapturedAt,
		})
	}
	return placements
}

// DestinationPath is the full destination path for a Placement.
func (pl Placement) DestinationPath() string {
	return filepath.Join(pl.DestinationDir, pl.DestinationName)
}

// deduplicateFilename resolves a filename collision by inserting a _2, _3,
// ... suffix before the extension, e.g. "photo.jpg" -> "photo_2.jpg".
func deduplicateFilename(base string, used map[string]bool) string {
	if !used[base] {
		used[base] = true
		return base
	}
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	for suffix := 2; ; suffix++ {
		candidate := stem + "_" + strconv.Itoa(suffix) + ext
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}
