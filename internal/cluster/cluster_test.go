package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racelens/organizer/internal/vision"
)

type stubComparer struct {
	calls  int
	scores []float64 // scores returned in call order; last value repeats once exhausted
}

func (s *stubComparer) CompareTwoDescriptions(a, b string) (float64, error) {
	defer func() { s.calls++ }()
	if s.calls >= len(s.scores) {
		return s.scores[len(s.scores)-1], nil
	}
	return s.scores[s.calls], nil
}

func at(base time.Time, offset time.Duration) *time.Time {
	t := base.Add(offset)
	return &t
}

func TestAssign_ExactTimestampRuleNeverCallsComparer(t *testing.T) {
	comparer := &stubComparer{scores: []float64{0.1}}
	e := New(DefaultPolicy(), comparer)
	base := time.Date(2026, 1, 1, 14, 23, 45, 0, time.UTC)

	offsets := []time.Duration{0, 300 * time.Millisecond, time.Second, 2 * time.Second, 3 * time.Second}
	detections := []vision.SubjectDetection{
		{OutfitDescription: "red helmet", BibNumber: "23"},
		{OutfitDescription: "red helmet"},
		{OutfitDescription: "red helmet"},
		{OutfitDescription: "red helmet"},
		{OutfitDescription: "red helmet"},
	}

	var last *Cluster
	for i, off := range offsets {
		c, err := e.Assign("img"+string(rune('0'+i)), detections[i], at(base, off))
		require.NoError(t, err)
		last = c
	}

	assert.Equal(t, 0, comparer.calls, "rule 1 must never invoke the comparer")
	clusters := e.Clusters()
	require.Len(t, clusters, 1)
	assert.Len(t, last.Members, 5)
	assert.Equal(t, "23", last.Bib)
}

func TestAssign_HighPriorityWindowFloorsScoreAt085(t *testing.T) {
	comparer := &stubComparer{scores: []float64{0.40}}
	e := New(DefaultPolicy(), comparer)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := e.Assign("img0", vision.SubjectDetection{OutfitDescription: "a"}, at(base, 0))
	require.NoError(t, err)
	_, err = e.Assign("img1", vision.SubjectDetection{OutfitDescription: "b"}, at(base, 23*time.Second))
	require.NoError(t, err)

	clusters := e.Clusters()
	require.Len(t, clusters, 1, "effective score 0.85 clears the 0.5 confidence threshold, joining the one cluster")
}

func TestAssign_FarApartLowVisualScoreSplitsIntoTwoClusters(t *testing.T) {
	comparer := &stubComparer{scores: []float64{0.40}}
	e := New(DefaultPolicy(), comparer)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := e.Assign("img0", vision.SubjectDetection{OutfitDescription: "a"}, at(base, 0))
	require.NoError(t, err)
	_, err = e.Assign("img1", vision.SubjectDetection{OutfitDescription: "b"}, at(base, 120*time.Second))
	require.NoError(t, err)

	clusters := e.Clusters()
	assert.Len(t, clusters, 2)
}

func TestAssign_NoTimestampsUsesPureVisualComparison(t *testing.T) {
	comparer := &stubComparer{scores: []float64{0.9}}
	e := New(DefaultPolicy(), comparer)

	_, err := e.Assign("img0", vision.SubjectDetection{OutfitDescription: "a"}, nil)
	require.NoError(t, err)
	_, err = e.Assign("img1", vision.SubjectDetection{OutfitDescription: "a"}, nil)
	require.NoError(t, err)

	clusters := e.Clusters()
	assert.Len(t, clusters, 1)
	assert.Equal(t, 1, comparer.calls)
}

func TestAssign_FirstNonNullBibWinsAndIsNeverOverwritten(t *testing.T) {
	comparer := &stubComparer{scores: []float64{1.0}}
	e := New(DefaultPolicy(), comparer)
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	_, err := e.Assign("img0", vision.SubjectDetection{OutfitDescription: "a", BibNumber: "23"}, at(base, 0))
	require.NoError(t, err)
	c, err := e.Assign("img1", vision.SubjectDetection{OutfitDescription: "a", BibNumber: "45"}, at(base, 1*time.Second))
	require.NoError(t, err)

	assert.Equal(t, "23", c.Bib)
}

func TestFinalizeNames_BibVsOutfitAndCollisions(t *testing.T) {
	clusters := []*Cluster{
		{ID: 1, Bib: "23"},
		{ID: 2, Exemplar: vision.SubjectDetection{StructuredFeatures: vision.StructuredFeatures{HelmetColors: []string{"red"}}}},
		{ID: 3, Exemplar: vision.SubjectDetection{StructuredFeatures: vision.StructuredFeatures{HelmetColors: []string{"red"}}}},
	}

	result := FinalizeNames(clusters)
	assert.Equal(t, "Racer_Bib_23", result[1])
	assert.Equal(t, "Outfit_2_red", result[2])
	assert.Equal(t, "Outfit_3_red", result[3])
}
