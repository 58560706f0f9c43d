package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/action"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/assoc"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/observability"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

var (
	// ErrNoDetections means the input carried nothing to analyze.
	ErrNoDetections = errors.New("no detections in input")
	// ErrCalibrationRequired means strict mode was on and no trusted
	// calibration could be established.
	ErrCalibrationRequired = errors.New("calibration required but never established")
)

// Frame is one step of input: the detections of one video frame plus an
// optional fresh keypoint set when the detector re-observed the court.
type Frame struct {
	Index      int
	Detections []models.Detection
	Keypoints  *models.KeypointSet
}

// Input is one match's worth of frames.
type Input struct {
	MatchID uuid.UUID
	FPS     float64 // 0 falls back to the configured default
	Frames  []Frame
}

// Result is everything one analysis run produced, handed to the report
// assembler.
type Result struct {
	Tracks         []*track.Track
	PlayerTrackIDs []uint64 // the two on-court players, best first
	BallTrackID    uint64   // 0 when no ball track survived
	Actions        []action.Candidate
	Calibration    *geometry.CourtCalibration

	FramesProcessed int
	WindowsScored   int
	WindowsDropped  int
}

// Pipeline runs one match analysis: a sequential frame loop that owns all
// track mutation, with classification fanned out to a scorer pool. The loop
// never blocks on scoring; windows are features-only jobs by the time they
// leave the loop.
type Pipeline struct {
	cfg    *config.Config
	scorer action.Scorer
	log    *slog.Logger

	// OnProgress, when set, receives stage events. Called from the frame
	// loop goroutine only.
	OnProgress func(models.ProgressEvent)
}

func New(cfg *config.Config, scorer action.Scorer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{cfg: cfg, scorer: scorer, log: log}
}

// scoreJob is one window leaving the frame loop for the scorer pool.
type scoreJob struct {
	features action.FeatureSummary
}

// collector accumulates scored candidates. Append-only; the windower emits
// each (track, frame range) exactly once, so there is nothing to deduplicate.
type collector struct {
	mu         sync.Mutex
	candidates []action.Candidate
	dropped    int
}

func (c *collector) add(cand action.Candidate) {
	c.mu.Lock()
	c.candidates = append(c.candidates, cand)
	c.mu.Unlock()
}

func (c *collector) drop() {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
}

// Run processes all frames of one match. Frames must arrive in increasing
// index order; ctx cancellation is honored between frames and fails the run.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	store := track.NewStore(p.cfg.Tracking)
	engine := assoc.NewEngine(p.cfg.Tracking)
	windower := action.NewWindower(p.cfg.Action.WindowSize, p.cfg.Action.WindowStride)
	fps := in.FPS
	if fps <= 0 {
		fps = p.cfg.Engine.DefaultFPS
	}
	matchID := in.MatchID
	frames := in.Frames

	var calibration atomic.Pointer[geometry.CourtCalibration]

	// At least one worker must drain jobs or the first dispatch blocks.
	workers := p.cfg.Engine.WorkerCount
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan scoreJob, workers*2)
	col := &collector{}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.scoreWorker(ctx, jobs, col)
		}()
	}
	// The loop below returns through this closure so workers always drain.
	finish := func() {
		close(jobs)
		wg.Wait()
	}

	totalDetections := 0
	lastFrame := -1
	res := &Result{}

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			finish()
			return nil, fmt.Errorf("analysis canceled at frame %d: %w", frame.Index, err)
		}
		if frame.Index <= lastFrame {
			finish()
			return nil, fmt.Errorf("frame %d out of order after %d", frame.Index, lastFrame)
		}

		if frame.Keypoints != nil {
			p.recalibrate(&calibration, frame.Keypoints, matchID)
		}
		cal := calibration.Load()
		trusted := cal.Trusted(p.cfg.Calibration.MaxResidual)

		dt := 1.0 / fps
		if lastFrame >= 0 {
			dt = float64(frame.Index-lastFrame) / fps
		}

		players, balls := p.partition(frame.Detections)
		totalDetections += len(players) + len(balls)

		for _, class := range []models.ObjectClass{models.ClassPlayer, models.ClassBall} {
			dets := players
			if class == models.ClassBall {
				dets = balls
			}
			p.step(store, engine, class, dets, frame.Index, dt, fps, cal, trusted)
		}

		p.dispatchWindows(store, windower, jobs, frame.Index, fps)

		res.FramesProcessed++
		lastFrame = frame.Index
		observability.FramesProcessed.WithLabelValues(matchID.String()).Inc()

		if p.OnProgress != nil && res.FramesProcessed%100 == 0 {
			p.OnProgress(models.ProgressEvent{
				MatchID:      matchID,
				Stage:        "tracking",
				FramesDone:   res.FramesProcessed,
				FramesTotal:  len(frames),
				ActiveTracks: len(store.Active(models.ClassPlayer)) + len(store.Active(models.ClassBall)),
				Timestamp:    time.Now().UTC(),
			})
		}
	}

	finish()

	if totalDetections == 0 {
		return nil, ErrNoDetections
	}
	cal := calibration.Load()
	if p.cfg.Engine.RequireCalibration && !cal.Trusted(p.cfg.Calibration.MaxResidual) {
		return nil, ErrCalibrationRequired
	}

	resolution := action.Resolve(col.candidates, p.cfg.Action.ConfidenceFloor)
	observability.WindowsDropped.WithLabelValues("floor").Add(float64(resolution.DroppedFloor))
	observability.WindowsDropped.WithLabelValues("overlap").Add(float64(resolution.DroppedOverlap))

	res.Tracks = store.All()
	res.Actions = resolution.Accepted
	res.Calibration = cal
	res.PlayerTrackIDs = p.pickPlayers(store, cal.Trusted(p.cfg.Calibration.MaxResidual))
	res.BallTrackID = pickBallTrack(store)
	res.WindowsScored = len(col.candidates)
	res.WindowsDropped = col.dropped + resolution.DroppedFloor + resolution.DroppedOverlap

	p.log.Info("analysis complete",
		"match_id", matchID,
		"frames", res.FramesProcessed,
		"tracks", len(res.Tracks),
		"actions", len(res.Actions),
		"windows_dropped", res.WindowsDropped,
		"calibrated", cal != nil,
	)
	return res, nil
}

// recalibrate attempts a fresh homography fit and swaps it in only on
// success. The previous calibration stays live on failure.
func (p *Pipeline) recalibrate(slot *atomic.Pointer[geometry.CourtCalibration], ks *models.KeypointSet, matchID uuid.UUID) {
	cal, err := geometry.Calibrate(ks.Candidates, ks.FrameIndex, p.cfg.Calibration)
	if err != nil {
		p.log.Warn("calibration attempt failed",
			"match_id", matchID,
			"frame", ks.FrameIndex,
			"error", err,
		)
		return
	}
	slot.Store(cal)
	observability.CalibrationResidual.Set(cal.Residual)
	p.log.Info("calibration updated",
		"match_id", matchID,
		"frame", ks.FrameIndex,
		"inliers", cal.Inliers,
		"residual", cal.Residual,
	)
}

// partition splits a frame's detections by class, applying the confidence
// floor and discarding malformed boxes.
func (p *Pipeline) partition(dets []models.Detection) (players, balls []models.Detection) {
	for _, d := range dets {
		if d.Confidence < p.cfg.Engine.DetectionFloor {
			observability.DetectionsDiscarded.WithLabelValues("low_confidence").Inc()
			continue
		}
		if !validBBox(d.BBox) {
			observability.DetectionsDiscarded.WithLabelValues("malformed").Inc()
			continue
		}
		switch d.Class {
		case models.ClassPlayer:
			players = append(players, d)
		case models.ClassBall:
			balls = append(balls, d)
		}
	}
	return
}

func validBBox(b [4]float64) bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[2] > 0 && b[3] > 0
}

// step runs predict, associate, observe, miss and spawn for one class in
// one frame.
func (p *Pipeline) step(store *track.Store, engine *assoc.Engine, class models.ObjectClass, dets []models.Detection, frameIdx int, dt, fps float64, cal *geometry.CourtCalibration, trusted bool) {
	tracks := store.Active(class)
	for _, tr := range tracks {
		tr.Predict(dt)
	}

	var project func(geometry.Point) *geometry.Point
	if trusted {
		project = func(px geometry.Point) *geometry.Point {
			c := cal.Project(px)
			return &c
		}
	}

	meas := make([]assoc.Measurement, len(dets))
	for i, d := range dets {
		px := anchorPoint(d)
		m := assoc.Measurement{Index: i, Pixel: px}
		if project != nil {
			m.Court = project(px)
		}
		meas[i] = m
	}

	result := engine.Associate(tracks, meas, project)

	for _, match := range result.Matches {
		m := meas[match.Measurement]
		obs := track.Obs{
			Pixel: m.Pixel,
			BBox:  dets[match.Measurement].BBox,
			Court: m.Court,
			Speed: courtSpeed(match.Track, m.Court, frameIdx, fps),
		}
		if err := store.Observe(match.Track, obs, frameIdx); err != nil {
			p.log.Error("observation rejected", "track_id", match.Track.ID, "frame", frameIdx, "error", err)
		}
	}
	for _, tr := range result.UnmatchedTracks {
		store.Miss(tr)
		if tr.State == track.StateTerminated {
			observability.TracksTerminated.Inc()
		}
	}
	for _, mi := range result.UnmatchedMeasurements {
		m := meas[mi]
		obs := track.Obs{Pixel: m.Pixel, BBox: dets[mi].BBox, Court: m.Court}
		if store.Spawn(class, obs, frameIdx) != nil {
			observability.TracksSpawned.Inc()
		}
	}
}

// anchorPoint picks the pixel point that represents a detection: the foot
// point for players, since it sits on the court plane, the box center for
// the ball.
func anchorPoint(d models.Detection) geometry.Point {
	if d.Class == models.ClassPlayer {
		return geometry.Point{X: d.FootX(), Y: d.FootY()}
	}
	return geometry.Point{X: d.CenterX(), Y: d.CenterY()}
}

// courtSpeed derives meters-per-second from the previous court-projected
// history point. Nil whenever either endpoint lacks a projection.
func courtSpeed(tr *track.Track, court *geometry.Point, frameIdx int, fps float64) *float64 {
	if court == nil || len(tr.History) == 0 {
		return nil
	}
	prev := tr.History[len(tr.History)-1]
	if prev.Court == nil || frameIdx <= prev.Frame {
		return nil
	}
	dt := float64(frameIdx-prev.Frame) / fps
	s := math.Hypot(court.X-prev.Court.X, court.Y-prev.Court.Y) / dt
	return &s
}

// dispatchWindows emits newly completed windows for confirmed player tracks
// and releases windower state for dead tracks.
func (p *Pipeline) dispatchWindows(store *track.Store, windower *action.Windower, jobs chan<- scoreJob, frameIdx int, fps float64) {
	ballHistory := primaryBallHistory(store)

	for _, tr := range store.Confirmed(models.ClassPlayer) {
		for _, w := range windower.Advance(tr, frameIdx) {
			ball := ballPointsInRange(ballHistory, w.FrameStart, w.FrameEnd)
			jobs <- scoreJob{
				features: action.Summarize(w.TrackID, w.FrameStart, w.FrameEnd, w.Points, ball, fps),
			}
		}
	}
	for _, tr := range store.All() {
		if !tr.Alive() {
			windower.Forget(tr.ID)
		}
	}
}

// scoreWorker consumes window jobs, scoring each under the configured
// timeout. Failures drop the window, never the run.
func (p *Pipeline) scoreWorker(ctx context.Context, jobs <-chan scoreJob, col *collector) {
	for job := range jobs {
		scoreCtx, cancel := context.WithTimeout(ctx, p.cfg.Action.ScoreTimeout)
		start := time.Now()
		score, err := p.scorer.Score(scoreCtx, job.features)
		cancel()
		observability.ScoreDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			col.drop()
			reason := "unavailable"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "timeout"
			}
			observability.WindowsDropped.WithLabelValues(reason).Inc()
			p.log.Warn("window dropped",
				"track_id", job.features.TrackID,
				"frame_start", job.features.FrameStart,
				"reason", reason,
				"error", err,
			)
			continue
		}

		observability.WindowsScored.WithLabelValues(score.Label).Inc()
		col.add(action.Candidate{
			TrackID:    job.features.TrackID,
			FrameStart: job.features.FrameStart,
			FrameEnd:   job.features.FrameEnd,
			Label:      score.Label,
			Confidence: score.Confidence,
			Features:   job.features,
		})
	}
}

// pickPlayers selects the two tracks that are the match players. With a
// trusted calibration: the confirmed player tracks whose court positions
// stay closest to the playing area. Without one: the two longest tracks.
func (p *Pipeline) pickPlayers(store *track.Store, trusted bool) []uint64 {
	type scored struct {
		id    uint64
		score float64
		obs   int
	}
	var all []scored
	for _, tr := range store.All() {
		if tr.Class != models.ClassPlayer || len(tr.History) == 0 {
			continue
		}
		s := scored{id: tr.ID, obs: len(tr.History)}
		if trusted {
			s.score = meanCourtDistance(tr)
		}
		all = append(all, s)
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if trusted && a.score != b.score {
			return a.score < b.score
		}
		if a.obs != b.obs {
			return a.obs > b.obs
		}
		return a.id < b.id
	})

	ids := make([]uint64, 0, 2)
	for _, s := range all {
		ids = append(ids, s.id)
		if len(ids) == 2 {
			break
		}
	}
	return ids
}

// meanCourtDistance averages each observation's distance outside the court
// rectangle; a player standing on the court scores zero.
func meanCourtDistance(tr *track.Track) float64 {
	var sum float64
	n := 0
	for _, pt := range tr.History {
		if pt.Court == nil {
			continue
		}
		sum += distanceOutsideCourt(*pt.Court)
		n++
	}
	if n == 0 {
		return math.Inf(1)
	}
	return sum / float64(n)
}

func distanceOutsideCourt(p geometry.Point) float64 {
	dx := math.Max(math.Max(-p.X, 0), p.X-geometry.CourtWidth)
	dy := math.Max(math.Max(-p.Y, 0), p.Y-geometry.CourtLength)
	return math.Hypot(dx, dy)
}

// pickBallTrack returns the ball track with the most observations.
func pickBallTrack(store *track.Store) uint64 {
	var best uint64
	bestLen := 0
	for _, tr := range store.All() {
		if tr.Class != models.ClassBall {
			continue
		}
		if len(tr.History) > bestLen {
			best = tr.ID
			bestLen = len(tr.History)
		}
	}
	return best
}

// primaryBallHistory returns the longest ball history seen so far, used for
// player-ball proximity features.
func primaryBallHistory(store *track.Store) []track.Point {
	var best []track.Point
	for _, tr := range store.All() {
		if tr.Class != models.ClassBall {
			continue
		}
		if len(tr.History) > len(best) {
			best = tr.History
		}
	}
	return best
}

// ballPointsInRange filters ball history to one window's frame range.
func ballPointsInRange(history []track.Point, start, end int) []track.Point {
	var out []track.Point
	for _, p := range history {
		if p.Frame < start {
			continue
		}
		if p.Frame > end {
			break
		}
		out = append(out, p)
	}
	return out
}
