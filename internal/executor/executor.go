// Package executor carries out Placements (copy or move), maintains the
// reversible manifest, and performs undo (spec.md §4.9).
//
// The manifest write is an atomic write-to-temp-then-rename, adapted from
// the teacher pack's Skryldev-image-processor/adapters/storage/local.go
// durability pattern (mkdir-then-open-then-copy, generalized here to
// "write the whole file, then rename over the old one").
package executor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/racelens/organizer/internal/apperr"
	"github.com/racelens/organizer/internal/exifts"
	"github.com/racelens/organizer/internal/logging"
	"github.com/racelens/organizer/internal/planner"
)

// ManifestEntry is one (destination, original) pair (spec.md §3).
type ManifestEntry struct {
	Destination string `json:"destination_absolute_path"`
	Original    string `json:"original_absolute_path"`
}

// Mode selects copy-or-move semantics.
type Mode string

const (
	ModeCopy Mode = "copy"
	ModeMove Mode = "move"
)

// Summary counts successes and failures across a run (spec.md §4.9: "a
// run-level summary counts successes and failures").
type Summary struct {
	Succeeded int
	Failed    int
	Errors    []PlacementError
}

// PlacementError records one placement's failure without aborting the run.
type PlacementError struct {
	SourcePath string
	Err        string
}

const manifestFilename = ".original_paths.json"

// Executor applies Placements under outputRoot and maintains the undo
// manifest.
type Executor struct {
	outputRoot string
	mode       Mode
	dryRun     bool
	manifest   []ManifestEntry
}

// New builds an Executor rooted at outputRoot.
func New(outputRoot string, mode Mode, dryRun bool) *Executor {
	return &Executor{outputRoot: outputRoot, mode: mode, dryRun: dryRun}
}

// Execute applies every placement in order: creates the destination
// directory if missing, copies or moves the source, and appends an entry to
// the in-memory manifest. An individual placement's failure is recorded and
// does not abort the run (spec.md §7).
func (e *Executor) Execute(placements []planner.Placement) Summary {
	var summary Summary

	for _, p := range placements {
		if err := e.place(p); err != nil {
			logging.Warnf("executor: placement failed for %s: %v", p.SourcePath, err)
			summary.Failed++
			summary.Errors = append(summary.Errors, PlacementError{SourcePath: p.SourcePath, Err: err.Error()})
			continue
		}
		summary.Succeeded++
	}

	if !e.dryRun {
		if err := e.flushManifest(); err != nil {
			logging.Errorf("executor: failed to write manifest: %v", err)
		}
	}

	return summary
}

func (e *Executor) place(p planner.Placement) error {
	dest := p.DestinationPath()

	if e.dryRun {
		e.manifest = append(e.manifest, ManifestEntry{Destination: dest, Original: p.SourcePath})
		return nil
	}

	if err := os.MkdirAll(p.DestinationDir, 0o755); err != nil {
		return apperr.Wrap(apperr.CategoryPlacementIO, "executor.mkdir", err)
	}

	var err error
	switch e.mode {
	case ModeMove:
		err = moveFile(p.SourcePath, dest)
	default:
		err = copyFile(p.SourcePath, dest)
	}
	if err != nil {
		return apperr.Wrap(apperr.CategoryPlacementIO, "executor.place", err)
	}

	// Stamp the recovered capture timestamp onto the moved file (spec.md
	// §4.2): a copy still has the original on disk to re-extract from, but a
	// moved file may later be re-encoded and lose its EXIF block.
	if e.mode == ModeMove && p.CapturedAt != nil {
		if err := exifts.Stamp(dest, *p.CapturedAt); err != nil {
			logging.Warnf("executor: failed to stamp capture timestamp on %s: %v", dest, err)
		}
	}

	e.manifest = append(e.manifest, ManifestEntry{Destination: dest, Original: p.SourcePath})
	return nil
}

// flushManifest atomically replaces the on-disk manifest (spec.md §4.9:
// "after all placements, atomically replaces the on-disk manifest").
func (e *Executor) flushManifest() error {
	path := filepath.Join(e.outputRoot, manifestFilename)
	raw, err := json.MarshalIndent(e.manifest, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.CategoryCacheIO, "executor.flush_manifest", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return apperr.Wrap(apperr.CategoryCacheIO, "executor.flush_manifest", err)
	}
	return apperr.Wrap(apperr.CategoryCacheIO, "executor.flush_manifest", os.Rename(tmp, path))
}

// Undo reads outputRoot's manifest and restores every entry: in move mode
// the destination is moved back to original; in copy mode the destination
// is deleted. After a clean undo the manifest file is removed.
func Undo(outputRoot string, mode Mode) error {
	path := filepath.Join(outputRoot, manifestFilename)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return apperr.New(apperr.CategoryUndo, "executor.undo", apperr.ErrManifestMissing)
	}
	if err != nil {
		return apperr.Wrap(apperr.CategoryUndo, "executor.undo", err)
	}

	var manifest []ManifestEntry
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return apperr.Wrap(apperr.CategoryUndo, "executor.undo", err)
	}

	var failures int
	for _, entry := range manifest {
		var err error
		switch mode {
		case ModeMove:
			err = moveFile(entry.Destination, entry.Original)
		default:
			err = os.Remove(entry.Destination)
		}
		if err != nil {
			logging.Warnf("executor: undo failed for %s: %v", entry.Destination, err)
			failures++
		}
	}

	if failures > 0 {
		return apperr.New(apperr.CategoryUndo, "executor.undo", fmt.Errorf("undo: %d entries could not be restored", failures))
	}
	return os.Remove(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Cross-device rename fails; fall back to copy-then-remove-source.
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
