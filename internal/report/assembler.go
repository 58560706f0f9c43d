package report

import (
	"math"

	"github.com/google/uuid"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/action"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/engine"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

// outOfCourtMargin is how far (meters) the ball must land outside the court
// outline before a preceding shot counts as an unforced error.
const outOfCourtMargin = 0.5

// Options tunes report assembly.
type Options struct {
	FPS        float64
	ShotLabels []string
}

// Assemble turns one pipeline result into the final match report. Pure over
// its inputs; the same result always yields the same document.
func Assemble(matchID uuid.UUID, videoPath string, res *engine.Result, opts Options) *models.MatchReport {
	shotSet := make(map[string]bool, len(opts.ShotLabels))
	for _, l := range opts.ShotLabels {
		shotSet[l] = true
	}

	byID := make(map[uint64]*track.Track, len(res.Tracks))
	for _, tr := range res.Tracks {
		byID[tr.ID] = tr
	}

	ballTrack := byID[res.BallTrackID]
	ball, ballCourt := assembleBall(ballTrack, opts.FPS)

	rep := &models.MatchReport{
		MatchID:   matchID.String(),
		VideoPath: videoPath,
		Players:   make([]models.PlayerReport, 0, len(res.PlayerTrackIDs)),
		Ball:      ball,
		Court:     assembleCourt(res.Calibration),
	}

	for i, id := range res.PlayerTrackIDs {
		tr := byID[id]
		if tr == nil {
			continue
		}
		actions := playerActions(res.Actions, id)
		rep.Players = append(rep.Players, models.PlayerReport{
			PlayerID: i + 1,
			Actions:  actions,
			Stats:    playerStats(tr, actions, shotSet, ballCourt, opts.FPS),
		})
	}
	return rep
}

func playerActions(all []action.Candidate, trackID uint64) []models.ActionEntry {
	// Already sorted by (track, frame_start) by resolution.
	out := make([]models.ActionEntry, 0)
	for _, c := range all {
		if c.TrackID != trackID {
			continue
		}
		out = append(out, models.ActionEntry{
			FrameStart: c.FrameStart,
			FrameEnd:   c.FrameEnd,
			Label:      c.Label,
			Confidence: c.Confidence,
		})
	}
	return out
}

func playerStats(tr *track.Track, actions []models.ActionEntry, shotSet map[string]bool, ballCourt map[int]geometry.Point, fps float64) models.PlayerStats {
	stats := models.PlayerStats{
		ActionCounts: make(map[string]int),
	}

	for _, a := range actions {
		stats.ActionCounts[a.Label]++
		if shotSet[a.Label] {
			stats.Shots++
		}
	}
	if len(stats.ActionCounts) == 0 {
		stats.ActionCounts = nil
	}
	if stats.Shots > 0 {
		stats.HitDistribution = make(map[string]float64)
		for label, n := range stats.ActionCounts {
			if shotSet[label] {
				stats.HitDistribution[label] = float64(n) / float64(stats.Shots)
			}
		}
	}

	// Speed and distance come only from court-projected history.
	var speedSum float64
	speedN := 0
	var distance float64
	distanceN := 0
	zoneFrames := make(map[string]int)
	zoneTotal := 0
	for i, pt := range tr.History {
		if pt.Speed != nil {
			speedSum += *pt.Speed
			speedN++
		}
		if pt.Court != nil {
			zoneFrames[geometry.ZoneFor(*pt.Court)]++
			zoneTotal++
			if i > 0 && tr.History[i-1].Court != nil {
				prev := tr.History[i-1].Court
				distance += math.Hypot(pt.Court.X-prev.X, pt.Court.Y-prev.Y)
				distanceN++
			}
		}
	}
	if speedN > 0 {
		avg := speedSum / float64(speedN)
		stats.AverageSpeed = &avg
	}
	if distanceN > 0 {
		stats.DistanceCovered = &distance
	}
	if zoneTotal > 0 {
		stats.ZoneCoverage = make(map[string]float64, len(zoneFrames))
		for zone, n := range zoneFrames {
			stats.ZoneCoverage[zone] = float64(n) / float64(zoneTotal)
		}
	}

	stats.UnforcedErrors = countUnforcedErrors(actions, shotSet, ballCourt, fps)
	return stats
}

// countUnforcedErrors counts shots after which the ball lands clearly
// outside the court outline within about a second. Zero whenever the run
// had no trusted calibration.
func countUnforcedErrors(actions []models.ActionEntry, shotSet map[string]bool, ballCourt map[int]geometry.Point, fps float64) int {
	if len(ballCourt) == 0 {
		return 0
	}
	horizon := int(fps)
	if horizon < 1 {
		horizon = 25
	}
	errors := 0
	for _, a := range actions {
		if !shotSet[a.Label] {
			continue
		}
		for f := a.FrameEnd + 1; f <= a.FrameEnd+horizon; f++ {
			p, ok := ballCourt[f]
			if !ok {
				continue
			}
			if outsideCourtBy(p) > outOfCourtMargin {
				errors++
				break
			}
		}
	}
	return errors
}

func outsideCourtBy(p geometry.Point) float64 {
	dx := math.Max(math.Max(-p.X, 0), p.X-geometry.CourtWidth)
	dy := math.Max(math.Max(-p.Y, 0), p.Y-geometry.CourtLength)
	return math.Hypot(dx, dy)
}

// assembleBall builds the per-frame ball timeline with linear gap
// interpolation, plus a frame-to-court-position index for error analysis.
func assembleBall(tr *track.Track, fps float64) (models.BallReport, map[int]geometry.Point) {
	rep := models.BallReport{Detections: []models.BallDetection{}}
	courtAt := make(map[int]geometry.Point)
	if tr == nil || len(tr.History) == 0 {
		return rep, courtAt
	}

	type entry struct {
		det   models.BallDetection
		court *geometry.Point
	}
	var entries []entry

	hist := tr.History
	for i, pt := range hist {
		entries = append(entries, entry{
			det:   models.BallDetection{Frame: pt.Frame, BBox: pt.BBox},
			court: pt.Court,
		})
		if i == len(hist)-1 {
			break
		}
		next := hist[i+1]
		gap := next.Frame - pt.Frame
		for f := pt.Frame + 1; f < next.Frame; f++ {
			t := float64(f-pt.Frame) / float64(gap)
			e := entry{det: models.BallDetection{
				Frame:        f,
				BBox:         lerpBBox(pt.BBox, next.BBox, t),
				Interpolated: true,
			}}
			if pt.Court != nil && next.Court != nil {
				c := geometry.Point{
					X: pt.Court.X + t*(next.Court.X-pt.Court.X),
					Y: pt.Court.Y + t*(next.Court.Y-pt.Court.Y),
				}
				e.court = &c
			}
			entries = append(entries, e)
		}
	}

	// Per-frame velocity from consecutive court positions.
	var speedSum float64
	speedN := 0
	for i := range entries {
		if entries[i].court != nil {
			courtAt[entries[i].det.Frame] = *entries[i].court
		}
		if i == 0 {
			continue
		}
		prev, cur := entries[i-1], entries[i]
		if prev.court == nil || cur.court == nil {
			continue
		}
		dt := float64(cur.det.Frame-prev.det.Frame) / fps
		if dt <= 0 {
			continue
		}
		v := math.Hypot(cur.court.X-prev.court.X, cur.court.Y-prev.court.Y) / dt
		entries[i].det.Velocity = &v
		speedSum += v
		speedN++
	}

	for _, e := range entries {
		rep.Detections = append(rep.Detections, e.det)
	}
	if speedN > 0 {
		avg := speedSum / float64(speedN)
		rep.AverageSpeed = &avg
	}
	return rep, courtAt
}

func lerpBBox(a, b [4]float64, t float64) [4]float64 {
	var out [4]float64
	for i := range out {
		out[i] = a[i] + t*(b[i]-a[i])
	}
	return out
}

// assembleCourt reports the pixel positions of the keypoints the active
// calibration was fit from.
func assembleCourt(cal *geometry.CourtCalibration) models.CourtReport {
	rep := models.CourtReport{CourtPoints: map[string][2]float64{}}
	if cal == nil {
		return rep
	}
	for _, kp := range cal.Keypoints {
		rep.CourtPoints[kp.Label] = kp.Point
	}
	return rep
}
