package cluster

import "time"

// Policy is the clusterer's tunable thresholds (spec.md §4.7), generalized
// from the teacher's internal/quality/filter.go AcceptancePolicy: instead of
// tiered quality-acceptance thresholds keyed by scenario, this is a single
// flat policy keyed by the three priority-protocol rules the clusterer
// actually uses. Predefined instances follow the teacher's pattern of
// naming policy variants rather than scattering constants across the file.
type Policy struct {
	TExact              time.Duration
	THigh               time.Duration
	ConfidenceThreshold float64
	// EarlyTerminateScore stops the cluster sweep as soon as a score this
	// high is found (spec.md §4.7: "early-terminate the sweep on the first
	// score ≥ 0.95").
	EarlyTerminateScore float64
}

// DefaultPolicy returns spec.md §4.7's documented defaults for auto-cluster
// mode: T_EXACT=10s, T_HIGH=30s, CONFIDENCE_THRESHOLD=0.5.
func DefaultPolicy() Policy {
	return Policy{
		TExact:              10 * time.Second,
		THigh:               30 * time.Second,
		ConfidenceThreshold: 0.5,
		EarlyTerminateScore: 0.95,
	}
}

// NewPolicy builds a Policy from the run's configured seconds/threshold;
// non-positive values keep the defaults. It does not check the invariant
// T_EXACT <= T_HIGH (spec.md §4.7); config.Validate does that.
func NewPolicy(tExactSeconds, tHighSeconds int, confidenceThreshold float64) Policy {
	p := DefaultPolicy()
	if tExactSeconds > 0 {
		p.TExact = time.Duration(tExactSeconds) * time.Second
	}
	if tHighSeconds > 0 {
		p.THigh = time.Duration(tHighSeconds) * time.Second
	}
	if confidenceThreshold > 0 {
		p.ConfidenceThreshold = confidenceThreshold
	}
	return p
}
