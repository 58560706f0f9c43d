package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/action"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

// stubScorer labels every window with a fixed verdict and records calls.
type stubScorer struct {
	mu     sync.Mutex
	label  string
	conf   float64
	err    error
	delay  time.Duration
	scored []action.FeatureSummary
}

func (s *stubScorer) Score(ctx context.Context, f action.FeatureSummary) (action.Score, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return action.Score{}, ctx.Err()
		}
	}
	if s.err != nil {
		return action.Score{}, s.err
	}
	s.mu.Lock()
	s.scored = append(s.scored, f)
	s.mu.Unlock()
	return action.Score{Label: s.label, Confidence: s.conf}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			DefaultFPS:     25,
			WorkerCount:    2,
			DetectionFloor: 0.3,
		},
		Tracking: config.TrackingConfig{
			HitsToConfirm:    3,
			GraceWindow:      5,
			GatingDistance:   4.0,
			GatingDistancePx: 150,
			ProcessNoisePos:  0.1,
			ProcessNoiseVel:  0.5,
			MeasurementNoise: 0.2,
			MaxTracks:        64,
		},
		Calibration: config.CalibrationConfig{
			KeypointFloor:   0.5,
			MinKeypoints:    4,
			RansacRounds:    50,
			InlierThreshold: 0.5,
			MaxResidual:     0.35,
		},
		Action: config.ActionConfig{
			WindowSize:      10,
			WindowStride:    5,
			ConfidenceFloor: 0.4,
			ScoreTimeout:    time.Second,
			ShotLabels:      []string{"forehand", "backhand", "serve", "volley"},
		},
	}
}

func playerDet(x, y float64) models.Detection {
	return models.Detection{
		Class:      models.ClassPlayer,
		BBox:       [4]float64{x - 20, y - 80, 40, 80}, // foot point lands on (x, y)
		Confidence: 0.9,
	}
}

func ballDet(x, y float64) models.Detection {
	return models.Detection{
		Class:      models.ClassBall,
		BBox:       [4]float64{x - 5, y - 5, 10, 10},
		Confidence: 0.8,
	}
}

// keypointFrame synthesizes a full keypoint set under a simple scaled view:
// 40 px per meter plus an offset.
func keypointFrame(frameIdx int) *models.KeypointSet {
	ks := &models.KeypointSet{FrameIndex: frameIdx}
	for label, court := range geometry.CourtTemplate {
		ks.Candidates = append(ks.Candidates, models.KeypointCandidate{
			Label:      label,
			Point:      [2]float64{40*court.X + 100, 40*court.Y + 50},
			Confidence: 0.95,
		})
	}
	return ks
}

// pixelAt maps court meters to the synthetic camera of keypointFrame.
func pixelAt(cx, cy float64) (float64, float64) {
	return 40*cx + 100, 40*cy + 50
}

// twoPlayerFrames builds n frames with two players and a ball, calibrated
// from frame 0.
func twoPlayerFrames(n int) []Frame {
	frames := make([]Frame, n)
	for i := 0; i < n; i++ {
		// Near player drifts along the baseline, far player holds.
		x1, y1 := pixelAt(3.0+0.02*float64(i), 2.0)
		x2, y2 := pixelAt(7.0, 21.0)
		bx, by := pixelAt(5.0, 2.0+0.8*float64(i))
		frames[i] = Frame{
			Index: i,
			Detections: []models.Detection{
				playerDet(x1, y1),
				playerDet(x2, y2),
				ballDet(bx, by),
			},
		}
	}
	frames[0].Keypoints = keypointFrame(0)
	return frames
}

func TestRunFullMatch(t *testing.T) {
	scorer := &stubScorer{label: "forehand", conf: 0.8}
	p := New(testConfig(), scorer, nil)

	res, err := p.Run(context.Background(), Input{
		MatchID: uuid.New(),
		FPS:     25,
		Frames:  twoPlayerFrames(60),
	})
	require.NoError(t, err)

	assert.Equal(t, 60, res.FramesProcessed)
	require.NotNil(t, res.Calibration)
	assert.True(t, res.Calibration.Trusted(0.35))

	require.Len(t, res.PlayerTrackIDs, 2)
	assert.NotZero(t, res.BallTrackID)

	// Both player tracks and the ball track confirmed and covered.
	var playerTracks, ballTracks int
	for _, tr := range res.Tracks {
		switch tr.Class {
		case models.ClassPlayer:
			playerTracks++
			assert.Greater(t, len(tr.History), 50)
		case models.ClassBall:
			ballTracks++
		}
	}
	assert.Equal(t, 2, playerTracks)
	assert.Equal(t, 1, ballTracks)

	// Windows scored and resolved into a non-overlapping timeline.
	assert.NotEmpty(t, res.Actions)
	perTrack := map[uint64][]action.Candidate{}
	for _, a := range res.Actions {
		perTrack[a.TrackID] = append(perTrack[a.TrackID], a)
	}
	for _, list := range perTrack {
		for i := 1; i < len(list); i++ {
			assert.Greater(t, list[i].FrameStart, list[i-1].FrameEnd)
		}
	}
}

func TestRunWithZeroWorkerCount(t *testing.T) {
	// A config built by hand can carry worker_count 0; the run must still
	// drain scoring jobs instead of blocking on the first dispatch.
	cfg := testConfig()
	cfg.Engine.WorkerCount = 0

	scorer := &stubScorer{label: "forehand", conf: 0.8}
	p := New(cfg, scorer, nil)

	res, err := p.Run(context.Background(), Input{
		MatchID: uuid.New(),
		FPS:     25,
		Frames:  twoPlayerFrames(60),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, res.FramesProcessed)
	assert.NotEmpty(t, res.Actions)
}

func TestRunSpeedsRequireCalibration(t *testing.T) {
	scorer := &stubScorer{label: "forehand", conf: 0.8}
	p := New(testConfig(), scorer, nil)

	frames := twoPlayerFrames(20)
	frames[0].Keypoints = nil // never calibrated

	res, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: frames})
	require.NoError(t, err)

	assert.Nil(t, res.Calibration)
	for _, tr := range res.Tracks {
		for _, pt := range tr.History {
			assert.Nil(t, pt.Court)
			assert.Nil(t, pt.Speed)
		}
	}
}

func TestRunRequireCalibrationStrict(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.RequireCalibration = true
	p := New(cfg, &stubScorer{label: "forehand", conf: 0.8}, nil)

	frames := twoPlayerFrames(20)
	frames[0].Keypoints = nil

	_, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: frames})
	require.ErrorIs(t, err, ErrCalibrationRequired)
}

func TestRunNoDetections(t *testing.T) {
	p := New(testConfig(), &stubScorer{label: "forehand", conf: 0.8}, nil)

	frames := []Frame{{Index: 0}, {Index: 1}, {Index: 2}}
	_, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: frames})
	require.ErrorIs(t, err, ErrNoDetections)
}

func TestRunFailedCalibrationKeepsPrevious(t *testing.T) {
	scorer := &stubScorer{label: "forehand", conf: 0.8}
	p := New(testConfig(), scorer, nil)

	frames := twoPlayerFrames(30)
	// A later, unusable keypoint set must not clear the working one.
	frames[15].Keypoints = &models.KeypointSet{
		FrameIndex: 15,
		Candidates: []models.KeypointCandidate{
			{Label: "baseline_near_left", Point: [2]float64{10, 10}, Confidence: 0.9},
		},
	}

	res, err := p.Run(context.Background(), Input{MatchID: uuid.New(), FPS: 25, Frames: frames})
	require.NoError(t, err)
	require.NotNil(t, res.Calibration)
	assert.Equal(t, 0, res.Calibration.FrameIndex)
}

func TestRunScorerTimeoutDropsWindowOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Action.ScoreTimeout = 10 * time.Millisecond
	scorer := &stubScorer{label: "forehand", conf: 0.8, delay: 200 * time.Millisecond}
	p := New(cfg, scorer, nil)

	res, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: twoPlayerFrames(40)})
	require.NoError(t, err)

	assert.Empty(t, res.Actions)
	assert.Greater(t, res.WindowsDropped, 0)
	assert.Equal(t, 40, res.FramesProcessed)
}

func TestRunScorerUnavailableDropsWindowOnly(t *testing.T) {
	scorer := &stubScorer{err: action.ErrUnavailable}
	p := New(testConfig(), scorer, nil)

	res, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: twoPlayerFrames(40)})
	require.NoError(t, err)
	assert.Empty(t, res.Actions)
	assert.Greater(t, res.WindowsDropped, 0)
}

func TestRunCanceledContext(t *testing.T) {
	p := New(testConfig(), &stubScorer{label: "forehand", conf: 0.8}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Input{MatchID: uuid.New(), Frames: twoPlayerFrames(10)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunOutOfOrderFrames(t *testing.T) {
	p := New(testConfig(), &stubScorer{label: "forehand", conf: 0.8}, nil)

	frames := twoPlayerFrames(5)
	frames[3].Index = 1

	_, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: frames})
	require.Error(t, err)
}

func TestRunLowConfidenceDetectionsIgnored(t *testing.T) {
	p := New(testConfig(), &stubScorer{label: "forehand", conf: 0.8}, nil)

	frames := twoPlayerFrames(10)
	for i := range frames {
		for j := range frames[i].Detections {
			frames[i].Detections[j].Confidence = 0.1
		}
	}

	_, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: frames})
	require.ErrorIs(t, err, ErrNoDetections)
}

func TestRunOcclusionKeepsIdentity(t *testing.T) {
	scorer := &stubScorer{label: "forehand", conf: 0.8}
	p := New(testConfig(), scorer, nil)

	frames := twoPlayerFrames(40)
	// Near player vanishes for 3 frames mid-match.
	for i := 20; i < 23; i++ {
		frames[i].Detections = frames[i].Detections[1:]
	}

	res, err := p.Run(context.Background(), Input{MatchID: uuid.New(), FPS: 25, Frames: frames})
	require.NoError(t, err)

	// The occluded player re-associates with the same track: still only
	// two player tracks.
	players := 0
	for _, tr := range res.Tracks {
		if tr.Class == models.ClassPlayer && tr.State != track.StateTerminated {
			players++
		}
	}
	assert.Equal(t, 2, players)
}

func TestRunProgressEvents(t *testing.T) {
	scorer := &stubScorer{label: "forehand", conf: 0.8}
	p := New(testConfig(), scorer, nil)

	var events []models.ProgressEvent
	p.OnProgress = func(ev models.ProgressEvent) { events = append(events, ev) }

	_, err := p.Run(context.Background(), Input{MatchID: uuid.New(), Frames: twoPlayerFrames(250)})
	require.NoError(t, err)

	require.NotEmpty(t, events)
	assert.Equal(t, "tracking", events[0].Stage)
	assert.Equal(t, 100, events[0].FramesDone)
	assert.Equal(t, 250, events[0].FramesTotal)
}
