package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
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

func TestSpawnStartsTentative(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 100, Y: 200}}, 0)
	require.NotNil(t, tr)

	assert.Equal(t, StateTentative, tr.State)
	assert.Equal(t, uint64(1), tr.ID)
	assert.Equal(t, 1, tr.Hits)
	assert.Len(t, tr.History, 1)
	assert.Nil(t, tr.History[0].Court)
	assert.Nil(t, tr.History[0].Speed)
}

func TestConfirmAfterConsecutiveHits(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 100, Y: 200}}, 0)

	tr.Predict(0.04)
	require.NoError(t, s.Observe(tr, Obs{Pixel: geometry.Point{X: 101, Y: 200}}, 1))
	assert.Equal(t, StateTentative, tr.State)

	tr.Predict(0.04)
	require.NoError(t, s.Observe(tr, Obs{Pixel: geometry.Point{X: 102, Y: 200}}, 2))
	assert.Equal(t, StateConfirmed, tr.State)
}

func TestTentativeMissDiscards(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 100, Y: 200}}, 0)

	s.Miss(tr)
	assert.Equal(t, StateTerminated, tr.State)
	_, terminated := s.Counts()
	assert.Equal(t, 1, terminated)
}

func confirmedTrack(t *testing.T, s *Store) *Track {
	t.Helper()
	tr := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 100, Y: 200}}, 0)
	for f := 1; f <= 2; f++ {
		tr.Predict(0.04)
		require.NoError(t, s.Observe(tr, Obs{Pixel: geometry.Point{X: 100 + float64(f), Y: 200}}, f))
	}
	require.Equal(t, StateConfirmed, tr.State)
	return tr
}

func TestLostSurvivesGraceWindow(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := confirmedTrack(t, s)

	// Three misses: lost, but inside the grace window of 5.
	for i := 0; i < 3; i++ {
		s.Miss(tr)
	}
	assert.Equal(t, StateLost, tr.State)
	assert.Equal(t, 3, tr.Misses)

	// Misses 4 and 5 still inside the window.
	s.Miss(tr)
	s.Miss(tr)
	assert.Equal(t, StateLost, tr.State)

	// Miss 6 exceeds the window.
	s.Miss(tr)
	assert.Equal(t, StateTerminated, tr.State)
}

func TestLostReassociationKeepsIdentity(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := confirmedTrack(t, s)

	s.Miss(tr)
	s.Miss(tr)
	require.Equal(t, StateLost, tr.State)

	tr.Predict(0.12)
	require.NoError(t, s.Observe(tr, Obs{Pixel: geometry.Point{X: 105, Y: 200}}, 5))

	assert.Equal(t, StateConfirmed, tr.State)
	assert.Equal(t, 0, tr.Misses)
	assert.Equal(t, uint64(1), tr.ID)
}

func TestObserveRejectsStaleFrame(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 100, Y: 200}}, 5)

	err := s.Observe(tr, Obs{Pixel: geometry.Point{X: 101, Y: 200}}, 5)
	assert.Error(t, err)
	err = s.Observe(tr, Obs{Pixel: geometry.Point{X: 101, Y: 200}}, 4)
	assert.Error(t, err)
	assert.Len(t, tr.History, 1)
}

func TestHistoryStrictlyIncreasing(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassBall, Obs{Pixel: geometry.Point{X: 50, Y: 60}}, 0)

	frames := []int{2, 5, 9, 14}
	for _, f := range frames {
		tr.Predict(0.04)
		require.NoError(t, s.Observe(tr, Obs{Pixel: geometry.Point{X: 50, Y: 60}}, f))
	}

	for i := 1; i < len(tr.History); i++ {
		assert.Greater(t, tr.History[i].Frame, tr.History[i-1].Frame)
	}
}

func TestKalmanTracksConstantVelocity(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassBall, Obs{Pixel: geometry.Point{X: 0, Y: 0}}, 0)

	// Object moves 10 px/frame in x at 25 fps.
	dt := 0.04
	for f := 1; f <= 30; f++ {
		tr.Predict(dt)
		require.NoError(t, s.Observe(tr, Obs{Pixel: geometry.Point{X: 10 * float64(f), Y: 0}}, f))
	}

	// The filter should have converged on 250 px/s.
	assert.InDelta(t, 250.0, tr.VX, 10.0)
	assert.InDelta(t, 0.0, tr.VY, 5.0)
	assert.InDelta(t, 300.0, tr.X, 5.0)
}

func TestMahalanobisPrefersNearMeasurement(t *testing.T) {
	s := NewStore(testTrackingConfig())
	tr := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 100, Y: 100}}, 0)
	tr.Predict(0.04)

	near := tr.MahalanobisSquared(geometry.Point{X: 102, Y: 101})
	far := tr.MahalanobisSquared(geometry.Point{X: 160, Y: 140})
	assert.Less(t, near, far)
}

func TestMaxTracksCap(t *testing.T) {
	cfg := testTrackingConfig()
	cfg.MaxTracks = 2
	s := NewStore(cfg)

	require.NotNil(t, s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 1, Y: 1}}, 0))
	require.NotNil(t, s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 2, Y: 2}}, 0))
	assert.Nil(t, s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 3, Y: 3}}, 0))
}

func TestActiveOrderedAndFiltered(t *testing.T) {
	s := NewStore(testTrackingConfig())
	p1 := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 1, Y: 1}}, 0)
	b := s.Spawn(models.ClassBall, Obs{Pixel: geometry.Point{X: 2, Y: 2}}, 0)
	p2 := s.Spawn(models.ClassPlayer, Obs{Pixel: geometry.Point{X: 3, Y: 3}}, 0)
	s.Miss(b)

	players := s.Active(models.ClassPlayer)
	require.Len(t, players, 2)
	assert.Equal(t, p1.ID, players[0].ID)
	assert.Equal(t, p2.ID, players[1].ID)
	assert.Empty(t, s.Active(models.ClassBall))

	// Terminated tracks remain reachable for reporting.
	assert.Len(t, s.All(), 3)
}
