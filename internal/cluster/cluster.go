// Package cluster implements the auto-cluster mode's online, single-pass
// clustering state machine (spec.md §4.7) — the heart of the system.
//
// Capture-timestamp proximity dominates when available (rules 1 and 2);
// visual similarity via the vision backend's compare_two_descriptions is
// the fallback (rule 3). Assignment is serialized behind a mutex so that
// concurrent workers computing visual scores still observe a single total
// order over cluster mutation (spec.md §5).
package cluster

import (
	"sync"
	"time"

	"github.com/racelens/organizer/internal/vision"
)

// Comparer is the subset of vision.Client the clusterer needs for rule 3
// (and the fallback half of rule 2).
type Comparer interface {
	CompareTwoDescriptions(a, b string) (float64, error)
}

// Cluster is a run-local grouping of single-subject photographs believed to
// show the same subject (spec.md §3).
type Cluster struct {
	ID       int
	Exemplar vision.SubjectDetection
	Members  []string // image paths, in assignment order

	lastSeen    time.Time
	hasLastSeen bool

	// Bib is the first non-null bib_number observed among members; once
	// set it is never overwritten (§9 open-question decision, see DESIGN.md).
	Bib string
}

// Engine is the clusterer's mutable state: the ordered list of clusters and
// the next id to assign.
type Engine struct {
	mu       sync.Mutex
	policy   Policy
	comparer Comparer
	clusters []*Cluster
	nextID   int
}

// New builds an Engine with the given policy and comparer.
func New(policy Policy, comparer Comparer) *Engine {
	return &Engine{policy: policy, comparer: comparer}
}

// Clusters returns a snapshot of the current cluster list, in creation
// order. Safe to call after ingestion completes; spec.md §4.7 performs no
// post-hoc merging, so this is simply the final state.
func (e *Engine) Clusters() []*Cluster {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Cluster, len(e.clusters))
	copy(out, e.clusters)
	return out
}

// Assign ingests one single-subject detection, scoring it against every
// existing cluster under the priority protocol and either joining the
// best-scoring cluster (if its score clears the confidence threshold) or
// opening a new one. It returns the cluster the image was assigned to.
//
// Callers wanting reproducibility (spec.md §5) must call Assign for images
// in a stable, sorted order; assignment itself is always serialized by e.mu
// regardless of caller concurrency.
func (e *Engine) Assign(imagePath string, detection vision.SubjectDetection, capturedAt *time.Time) (*Cluster, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var bestCluster *Cluster
	bestScore := -1.0

	for _, c := range e.clusters {
		score, err := e.scoreAgainst(detection, capturedAt, c)
		if err != nil {
			return nil, err
		}
		if score > bestScore {
			bestScore = score
			bestCluster = c
		}
		if score >= e.policy.EarlyTerminateScore {
			break
		}
	}

	var target *Cluster
	if bestCluster != nil && bestScore >= e.policy.ConfidenceThreshold {
		target = bestCluster
	} else {
		e.nextID++
		target = &Cluster{ID: e.nextID, Exemplar: detection}
		e.clusters = append(e.clusters, target)
	}

	target.Members = append(target.Members, imagePath)
	if capturedAt != nil {
		target.lastSeen = *capturedAt
		target.hasLastSeen = true
	}
	if target.Bib == "" && detection.BibNumber != "" {
		target.Bib = detection.BibNumber
	}

	return target, nil
}

// scoreAgainst implements the three-rule priority protocol against a single
// existing cluster c (spec.md §4.7).
func (e *Engine) scoreAgainst(detection vision.SubjectDetection, capturedAt *time.Time, c *Cluster) (float64, error) {
	if capturedAt != nil && c.hasLastSeen {
		delta := capturedAt.Sub(c.lastSeen)
		if delta < 0 {
			delta = -delta
		}
		if delta <= e.policy.TExact {
			return 1.0, nil
		}
		if delta <= e.policy.THigh {
			visual, err := e.comparer.CompareTwoDescriptions(detection.OutfitDescription, c.Exemplar.OutfitDescription)
			if err != nil {
				return 0, err
			}
			if visual > 0.85 {
				return visual, nil
			}
			return 0.85, nil
		}
	}

	return e.comparer.CompareTwoDescriptions(detection.OutfitDescription, c.Exemplar.OutfitDescription)
}
