package cluster

import "github.com/racelens/organizer/internal/names"

// FinalizeNames computes the display name for every cluster, in assignment
// (creation) order, per spec.md §4.7: Racer_Bib_<bib> if any member
// contributed a bib number, else Outfit_<ordinal>_<tokens> from the
// cluster's exemplar detection (see DESIGN.md's Open Question decision on
// exemplar-only vs. all-members tokens). Collisions are resolved with _2,
// _3, ... suffixes.
func FinalizeNames(clusters []*Cluster) map[int]string {
	used := make(map[string]bool)
	result := make(map[int]string, len(clusters))

	for ordinal, c := range clusters {
		var candidate string
		if c.Bib != "" {
			candidate = names.BibClusterName(c.Bib)
		} else {
			candidate = names.OutfitClusterName(ordinal+1, c.Exemplar.FeatureTokens())
		}
		result[c.ID] = names.Deduplicate(candidate, used)
	}

	return result
}
