package matcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racelens/organizer/internal/roster"
	"github.com/racelens/organizer/internal/vision"
)

type fixedComparer struct {
	scores map[string]float64 // keyed by "detectionDescription|entryDescription"
}

func (f fixedComparer) CompareTwoDescriptions(a, b string) (float64, error) {
	return f.scores[a+"|"+b], nil
}

func buildRoster(t *testing.T, names ...string) *roster.Roster {
	t.Helper()
	dir := t.TempDir()
	r, err := roster.Load(filepath.Join(dir, "roster.yaml"))
	require.NoError(t, err)
	for _, n := range names {
		refPath := filepath.Join(dir, n+".jpg")
		require.NoError(t, os.WriteFile(refPath, []byte("fake"), 0o644))
		require.NoError(t, r.Add(fakeDescriber{description: n + "-desc"}, n, refPath, "", "b64"))
	}
	return r
}

type fakeDescriber struct{ description string }

func (f fakeDescriber) DescribeOneFace(string, string) (string, error) { return f.description, nil }

func TestMatch_NoDetections(t *testing.T) {
	r := buildRoster(t)
	result, err := Match(fixedComparer{}, r, nil, 0.7)
	require.NoError(t, err)
	assert.Equal(t, CategoryNoFaces, result.Category)
}

func TestMatch_SingleDetectionMatched(t *testing.T) {
	r := buildRoster(t, "Alice", "Bob")
	comparer := fixedComparer{scores: map[string]float64{
		"red helmet|Alice-desc": 0.82,
		"red helmet|Bob-desc":   0.1,
	}}

	result, err := Match(comparer, r, []vision.SubjectDetection{{OutfitDescription: "red helmet"}}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, CategorySingleSubject, result.Category)
	assert.Equal(t, "Alice", result.DestinationName)
}

func TestMatch_SingleDetectionBelowThresholdIsUnknown(t *testing.T) {
	r := buildRoster(t, "Alice")
	comparer := fixedComparer{scores: map[string]float64{"red helmet|Alice-desc": 0.4}}

	result, err := Match(comparer, r, []vision.SubjectDetection{{OutfitDescription: "red helmet"}}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, CategoryUnknownSubjects, result.Category)
}

func TestMatch_MultipleDetectionsJoinsSortedNames(t *testing.T) {
	r := buildRoster(t, "Bob", "Alice")
	comparer := fixedComparer{scores: map[string]float64{
		"a|Bob-desc": 0.9, "a|Alice-desc": 0.1,
		"b|Bob-desc": 0.1, "b|Alice-desc": 0.9,
	}}

	result, err := Match(comparer, r, []vision.SubjectDetection{
		{OutfitDescription: "a"}, {OutfitDescription: "b"},
	}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, CategoryMultipleSubjects, result.Category)
	assert.Equal(t, "Alice_Bob", result.DestinationName)
}

func TestMatch_MultipleDetectionsUnmatchedPositionIsUnknownToken(t *testing.T) {
	r := buildRoster(t, "Alice")
	comparer := fixedComparer{scores: map[string]float64{
		"a|Alice-desc":            0.9,
		"unrecognized|Alice-desc": 0.2,
	}}

	result, err := Match(comparer, r, []vision.SubjectDetection{
		{OutfitDescription: "a"}, {OutfitDescription: "unrecognized"},
	}, 0.7)
	require.NoError(t, err)
	assert.Equal(t, "Alice_Unknown", result.DestinationName)
}
