package assoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

func testTrackingConfig() config.TrackingConfig {
	return config.TrackingConfig{
		HitsToConfirm:    3,
		GraceWindow:      5,
		GatingDistance:   4.0,
		GatingDistancePx: 150,
		ProcessNoisePos:  0.1,
		ProcessNoiseVel:  0.5,
		MeasurementNoise: 0.2,
		MaxTracks:        64,
	}
}

func spawnAt(s *track.Store, x, y float64) *track.Track {
	return s.Spawn(models.ClassPlayer, track.Obs{Pixel: geometry.Point{X: x, Y: y}}, 0)
}

func TestAssociateNearestTrackWins(t *testing.T) {
	cfg := testTrackingConfig()
	s := track.NewStore(cfg)
	e := NewEngine(cfg)

	a := spawnAt(s, 10, 10)
	b := spawnAt(s, 500, 500)
	a.Predict(0.04)
	b.Predict(0.04)

	meas := []Measurement{{Index: 0, Pixel: geometry.Point{X: 12, Y: 11}}}
	res := e.Associate([]*track.Track{a, b}, meas, nil)

	require.Len(t, res.Matches, 1)
	assert.Equal(t, a.ID, res.Matches[0].Track.ID)
	assert.Equal(t, 0, res.Matches[0].Measurement)
	require.Len(t, res.UnmatchedTracks, 1)
	assert.Equal(t, b.ID, res.UnmatchedTracks[0].ID)
	assert.Empty(t, res.UnmatchedMeasurements)
}

func TestAssociateIsValidMatching(t *testing.T) {
	cfg := testTrackingConfig()
	s := track.NewStore(cfg)
	e := NewEngine(cfg)

	tracks := []*track.Track{
		spawnAt(s, 100, 100),
		spawnAt(s, 150, 100),
		spawnAt(s, 200, 100),
	}
	for _, tr := range tracks {
		tr.Predict(0.04)
	}
	meas := []Measurement{
		{Index: 0, Pixel: geometry.Point{X: 148, Y: 101}},
		{Index: 1, Pixel: geometry.Point{X: 103, Y: 99}},
		{Index: 2, Pixel: geometry.Point{X: 205, Y: 100}},
		{Index: 3, Pixel: geometry.Point{X: 400, Y: 400}},
	}

	res := e.Associate(tracks, meas, nil)

	// No track or measurement may appear twice.
	seenTrack := map[uint64]bool{}
	seenMeas := map[int]bool{}
	for _, m := range res.Matches {
		assert.False(t, seenTrack[m.Track.ID])
		assert.False(t, seenMeas[m.Measurement])
		seenTrack[m.Track.ID] = true
		seenMeas[m.Measurement] = true
	}
	for _, tr := range res.UnmatchedTracks {
		assert.False(t, seenTrack[tr.ID])
		seenTrack[tr.ID] = true
	}
	for _, mi := range res.UnmatchedMeasurements {
		assert.False(t, seenMeas[mi])
		seenMeas[mi] = true
	}
	assert.Len(t, seenTrack, len(tracks))
	assert.Len(t, seenMeas, len(meas))

	// The far measurement is outside every gate.
	require.Len(t, res.Matches, 3)
	assert.Contains(t, res.UnmatchedMeasurements, 3)
}

func TestAssociatePixelGateRejectsFar(t *testing.T) {
	cfg := testTrackingConfig()
	cfg.GatingDistancePx = 50
	s := track.NewStore(cfg)
	e := NewEngine(cfg)

	a := spawnAt(s, 0, 0)
	a.Predict(0.04)

	meas := []Measurement{{Index: 0, Pixel: geometry.Point{X: 100, Y: 0}}}
	res := e.Associate([]*track.Track{a}, meas, nil)

	assert.Empty(t, res.Matches)
	assert.Len(t, res.UnmatchedTracks, 1)
	assert.Equal(t, []int{0}, res.UnmatchedMeasurements)
}

func TestAssociateCourtGateWhenProjected(t *testing.T) {
	cfg := testTrackingConfig()
	cfg.GatingDistance = 1.0 // one meter
	s := track.NewStore(cfg)
	e := NewEngine(cfg)

	a := spawnAt(s, 100, 100)
	a.Predict(0.04)

	// Identity-like projection scaled 100 px/m: 300 px apart is 2 m.
	project := func(p geometry.Point) *geometry.Point {
		return &geometry.Point{X: p.X / 100, Y: p.Y / 100}
	}
	court := geometry.Point{X: 3.0, Y: 1.0}
	meas := []Measurement{{Index: 0, Pixel: geometry.Point{X: 300, Y: 100}, Court: &court}}

	res := e.Associate([]*track.Track{a}, meas, project)
	assert.Empty(t, res.Matches, "2 m apart with a 1 m court gate")

	// The same geometry passes the pixel gate when calibration is not
	// trusted.
	meas[0].Court = nil
	res = e.Associate([]*track.Track{a}, meas, nil)
	assert.Len(t, res.Matches, 1)
}

func TestAssociateEmptyInputs(t *testing.T) {
	cfg := testTrackingConfig()
	s := track.NewStore(cfg)
	e := NewEngine(cfg)

	a := spawnAt(s, 10, 10)
	a.Predict(0.04)

	res := e.Associate(nil, []Measurement{{Index: 0, Pixel: geometry.Point{X: 1, Y: 1}}}, nil)
	assert.Empty(t, res.Matches)
	assert.Equal(t, []int{0}, res.UnmatchedMeasurements)

	res = e.Associate([]*track.Track{a}, nil, nil)
	assert.Empty(t, res.Matches)
	require.Len(t, res.UnmatchedTracks, 1)
}

func TestAssociateMoreTracksThanMeasurements(t *testing.T) {
	cfg := testTrackingConfig()
	s := track.NewStore(cfg)
	e := NewEngine(cfg)

	tracks := []*track.Track{
		spawnAt(s, 100, 100),
		spawnAt(s, 120, 100),
		spawnAt(s, 140, 100),
	}
	for _, tr := range tracks {
		tr.Predict(0.04)
	}
	meas := []Measurement{{Index: 0, Pixel: geometry.Point{X: 121, Y: 100}}}

	res := e.Associate(tracks, meas, nil)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, tracks[1].ID, res.Matches[0].Track.ID)
	assert.Len(t, res.UnmatchedTracks, 2)
}
