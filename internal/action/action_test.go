package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

func courtPt(x, y float64) *geometry.Point {
	return &geometry.Point{X: x, Y: y}
}

func TestSummarizeCourtSpace(t *testing.T) {
	// Player moves 1 m per frame along x at 25 fps.
	pts := []track.Point{
		{Frame: 0, Pixel: geometry.Point{X: 100, Y: 100}, Court: courtPt(1, 5)},
		{Frame: 1, Pixel: geometry.Point{X: 150, Y: 100}, Court: courtPt(2, 5)},
		{Frame: 2, Pixel: geometry.Point{X: 200, Y: 100}, Court: courtPt(3, 5)},
	}
	f := Summarize(7, 0, 2, pts, nil, 25)

	assert.Equal(t, uint64(7), f.TrackID)
	assert.True(t, f.CourtSpace)
	assert.InDelta(t, 2.0, f.PathLength, 1e-9)
	assert.InDelta(t, 2.0, f.NetDisplacement, 1e-9)
	assert.InDelta(t, 25.0, f.SpeedMean, 1e-9)
	assert.InDelta(t, 25.0, f.SpeedMax, 1e-9)
	assert.InDelta(t, 0.0, f.DepthChange, 1e-9)
	assert.Equal(t, -1.0, f.MinBallDistance)
	assert.Equal(t, 3, f.Samples)
}

func TestSummarizeFallsBackToPixels(t *testing.T) {
	pts := []track.Point{
		{Frame: 0, Pixel: geometry.Point{X: 100, Y: 100}, Court: courtPt(1, 5)},
		{Frame: 1, Pixel: geometry.Point{X: 140, Y: 130}}, // calibration gap
	}
	f := Summarize(1, 0, 1, pts, nil, 25)

	assert.False(t, f.CourtSpace)
	assert.InDelta(t, 50.0, f.PathLength, 1e-9) // 3-4-5 in pixels
}

func TestSummarizeBallDistance(t *testing.T) {
	pts := []track.Point{
		{Frame: 0, Court: courtPt(5, 10)},
		{Frame: 1, Court: courtPt(5, 10)},
	}
	ball := []track.Point{
		{Frame: 0, Court: courtPt(8, 14)}, // 5 m away
		{Frame: 1, Court: courtPt(5, 11)}, // 1 m away
	}
	f := Summarize(1, 0, 1, pts, ball, 25)
	assert.InDelta(t, 1.0, f.MinBallDistance, 1e-9)
}

func TestSummarizeEmptyWindow(t *testing.T) {
	f := Summarize(1, 0, 29, nil, nil, 25)
	assert.Equal(t, 0, f.Samples)
	assert.Equal(t, -1.0, f.MinBallDistance)
	assert.Len(t, f.Vector(), FeatureDim)
}

func TestVectorDimension(t *testing.T) {
	pts := []track.Point{
		{Frame: 0, Court: courtPt(0, 0)},
		{Frame: 1, Court: courtPt(1, 1)},
	}
	f := Summarize(1, 0, 1, pts, nil, 25)
	assert.Len(t, f.Vector(), FeatureDim)
}

func newTrackWithHistory(t *testing.T, frames []int) *track.Track {
	t.Helper()
	s := track.NewStore(config.TrackingConfig{
		HitsToConfirm: 2, GraceWindow: 5, MaxTracks: 8,
		ProcessNoisePos: 0.1, ProcessNoiseVel: 0.5, MeasurementNoise: 0.2,
	})
	tr := s.Spawn(models.ClassPlayer, track.Obs{Pixel: geometry.Point{X: 0, Y: 0}}, frames[0])
	for _, f := range frames[1:] {
		tr.Predict(0.04)
		require.NoError(t, s.Observe(tr, track.Obs{Pixel: geometry.Point{X: float64(f), Y: 0}}, f))
	}
	return tr
}

func TestWindowerEmitsOnTrailingEdge(t *testing.T) {
	frames := make([]int, 25)
	for i := range frames {
		frames[i] = i
	}
	tr := newTrackWithHistory(t, frames)

	w := NewWindower(10, 5)

	// Nothing before the first trailing edge commits.
	assert.Empty(t, w.Advance(tr, 8))

	wins := w.Advance(tr, 9)
	require.Len(t, wins, 1)
	assert.Equal(t, 0, wins[0].FrameStart)
	assert.Equal(t, 9, wins[0].FrameEnd)
	assert.Len(t, wins[0].Points, 10)

	// Advancing to frame 24 completes starts 5, 10, 15.
	wins = w.Advance(tr, 24)
	require.Len(t, wins, 3)
	assert.Equal(t, 5, wins[0].FrameStart)
	assert.Equal(t, 10, wins[1].FrameStart)
	assert.Equal(t, 15, wins[2].FrameStart)

	// No window is ever emitted twice.
	assert.Empty(t, w.Advance(tr, 24))
}

func TestWindowerPartialTailNotEmitted(t *testing.T) {
	tr := newTrackWithHistory(t, []int{0, 1, 2, 3, 4, 5, 6})
	w := NewWindower(10, 5)
	assert.Empty(t, w.Advance(tr, 6))
}

func TestWindowerSkipsGapOnlyRanges(t *testing.T) {
	// Track observed at frames 0..4, then again 40..44: the windows
	// covering only the gap carry no points and are skipped.
	tr := newTrackWithHistory(t, []int{0, 1, 2, 3, 4, 40, 41, 42, 43, 44})
	w := NewWindower(5, 5)

	wins := w.Advance(tr, 44)
	require.Len(t, wins, 2)
	assert.Equal(t, 0, wins[0].FrameStart)
	assert.Equal(t, 40, wins[1].FrameStart)
	assert.Len(t, wins[1].Points, 5)
}

func TestResolveOverlapHigherConfidenceWins(t *testing.T) {
	cands := []Candidate{
		{TrackID: 1, FrameStart: 0, FrameEnd: 29, Label: "forehand", Confidence: 0.7},
		{TrackID: 1, FrameStart: 10, FrameEnd: 39, Label: "backhand", Confidence: 0.9},
	}
	res := Resolve(cands, 0.4)

	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "backhand", res.Accepted[0].Label)
	assert.Equal(t, 1, res.DroppedOverlap)
	assert.Equal(t, 0, res.DroppedFloor)
}

func TestResolveTieBreaksEarlierStartThenLowerTrack(t *testing.T) {
	cands := []Candidate{
		{TrackID: 1, FrameStart: 10, FrameEnd: 39, Label: "serve", Confidence: 0.8},
		{TrackID: 1, FrameStart: 0, FrameEnd: 29, Label: "forehand", Confidence: 0.8},
	}
	res := Resolve(cands, 0.4)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, 0, res.Accepted[0].FrameStart)

	// Same windows on different tracks never contest each other.
	cands = []Candidate{
		{TrackID: 2, FrameStart: 0, FrameEnd: 29, Label: "serve", Confidence: 0.8},
		{TrackID: 1, FrameStart: 0, FrameEnd: 29, Label: "forehand", Confidence: 0.8},
	}
	res = Resolve(cands, 0.4)
	require.Len(t, res.Accepted, 2)
	assert.Equal(t, uint64(1), res.Accepted[0].TrackID)
	assert.Equal(t, uint64(2), res.Accepted[1].TrackID)
}

func TestResolveFloorAndNoAction(t *testing.T) {
	cands := []Candidate{
		{TrackID: 1, FrameStart: 0, FrameEnd: 29, Label: "forehand", Confidence: 0.3},
		{TrackID: 1, FrameStart: 30, FrameEnd: 59, Label: NoAction, Confidence: 0.99},
		{TrackID: 1, FrameStart: 60, FrameEnd: 89, Label: "volley", Confidence: 0.6},
	}
	res := Resolve(cands, 0.4)

	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "volley", res.Accepted[0].Label)
	assert.Equal(t, 2, res.DroppedFloor)
}

func TestResolveNonOverlappingChainAccepted(t *testing.T) {
	cands := []Candidate{
		{TrackID: 1, FrameStart: 60, FrameEnd: 89, Label: "serve", Confidence: 0.5},
		{TrackID: 1, FrameStart: 0, FrameEnd: 29, Label: "forehand", Confidence: 0.9},
		{TrackID: 1, FrameStart: 30, FrameEnd: 59, Label: "backhand", Confidence: 0.7},
	}
	res := Resolve(cands, 0.4)

	require.Len(t, res.Accepted, 3)
	// Sorted by frame_start for the timeline.
	assert.Equal(t, 0, res.Accepted[0].FrameStart)
	assert.Equal(t, 30, res.Accepted[1].FrameStart)
	assert.Equal(t, 60, res.Accepted[2].FrameStart)
}

func TestResolveDeterministic(t *testing.T) {
	cands := []Candidate{
		{TrackID: 2, FrameStart: 5, FrameEnd: 34, Label: "serve", Confidence: 0.8},
		{TrackID: 1, FrameStart: 0, FrameEnd: 29, Label: "forehand", Confidence: 0.8},
		{TrackID: 1, FrameStart: 20, FrameEnd: 49, Label: "volley", Confidence: 0.8},
	}
	first := Resolve(cands, 0.4)
	for i := 0; i < 10; i++ {
		// Shuffle-ish: rotate the input order.
		rotated := append([]Candidate{cands[len(cands)-1]}, cands[:len(cands)-1]...)
		cands = rotated
		assert.Equal(t, first.Accepted, Resolve(cands, 0.4).Accepted)
	}
}
