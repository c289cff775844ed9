// Package matcher implements database mode's per-photo classification
// (spec.md §4.6): detections are compared against every roster entry and
// assigned to the highest-scoring match above a confidence threshold, or
// labeled Unknown.
package matcher

import (
	"github.com/racelens/organizer/internal/names"
	"github.com/racelens/organizer/internal/roster"
	"github.com/racelens/organizer/internal/vision"
)

// Category is the photo-level classification outcome (spec.md §3's
// Placement destination_category).
type Category string

const (
	CategoryNoFaces          Category = "no-faces"
	CategorySingleSubject    Category = "single-subject"
	CategoryMultipleSubjects Category = "multiple-subjects"
	CategoryUnknownSubjects  Category = "unknown-subjects"
)

// Assignment is one detection's matcher outcome.
type Assignment struct {
	Detection vision.SubjectDetection
	Name      string // matched roster name, or "" if unmatched
	Score     float64
}

// Result is the full per-photo classification.
type Result struct {
	Category    Category
	Assignments []Assignment
	// DestinationName is the final placement name: the roster name for
	// single-subject, or lex-sorted-joined names (with "Unknown" filled
	// in for unmatched positions) for multiple-subjects.
	DestinationName string
}

// Comparer is the subset of vision.Client the matcher needs.
type Comparer interface {
	CompareTwoDescriptions(a, b string) (float64, error)
}

// Match classifies a photo's detections against r using comparer, applying
// confidenceThreshold (spec.md §4.6 default 0.7).
func Match(comparer Comparer, r *roster.Roster, detections []vision.SubjectDetection, confidenceThreshold float64) (Result, error) {
	if len(detections) == 0 {
		return Result{Category: CategoryNoFaces}, nil
	}

	assignments := make([]Assignment, len(detections))
	for i, d := range detections {
		best, bestScore, err := bestMatch(comparer, r, d, confidenceThreshold)
		if err != nil {
			return Result{}, err
		}
		assignments[i] = Assignment{Detection: d, Name: best, Score: bestScore}
	}

	if len(detections) == 1 {
		if assignments[0].Name == "" {
			return Result{Category: CategoryUnknownSubjects, Assignments: assignments}, nil
		}
		return Result{Category: CategorySingleSubject, Assignments: assignments, DestinationName: assignments[0].Name}, nil
	}

	matchedNames := make([]string, len(assignments))
	for i, a := range assignments {
		if a.Name == "" {
			matchedNames[i] = "Unknown"
		} else {
			matchedNames[i] = a.Name
		}
	}
	return Result{
		Category:        CategoryMultipleSubjects,
		Assignments:     assignments,
		DestinationName: names.JoinSortedNames(matchedNames),
	}, nil
}

// bestMatch compares detection against every roster entry and returns the
// highest-scoring name above threshold, or "" if none clears it.
func bestMatch(comparer Comparer, r *roster.Roster, detection vision.SubjectDetection, threshold float64) (string, float64, error) {
	var bestName string
	var bestScore float64

	for _, entry := range r.List() {
		score, err := comparer.CompareTwoDescriptions(detection.OutfitDescription, entry.Description)
		if err != nil {
			return "", 0, err
		}
		if score > bestScore {
			bestScore = score
			bestName = entry.Name
		}
	}

	if bestScore < threshold {
		return "", bestScore, nil
	}
	return bestName, bestScore, nil
}
