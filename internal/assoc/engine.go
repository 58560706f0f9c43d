package assoc

import (
	"math"
	"sort"

	hungarian "github.com/arthurkushman/go-hungarian"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

// Measurement is one gated detection of a single class in the current frame.
// Court is non-nil only when the active calibration is trusted.
type Measurement struct {
	Index int // position in the caller's detection slice
	Pixel geometry.Point
	Court *geometry.Point
}

// Match pairs a track with the index of the measurement assigned to it.
type Match struct {
	Track       *track.Track
	Measurement int // index into the measurements slice passed to Associate
}

// Result partitions one association round. Every track and every measurement
// appears exactly once across the three sets.
type Result struct {
	Matches               []Match
	UnmatchedTracks       []*track.Track
	UnmatchedMeasurements []int
}

// Engine assigns per-frame measurements to predicted tracks with gated
// Hungarian matching. One engine instance is reused across frames; it holds
// no per-frame state.
type Engine struct {
	cfg config.TrackingConfig
}

func NewEngine(cfg config.TrackingConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Associate solves one class's assignment for one frame. Tracks must already
// be predicted to the current frame. project maps a pixel point to court
// meters, or returns nil while the calibration is untrusted; gating runs in
// court meters when both sides project, in pixels otherwise.
func (e *Engine) Associate(tracks []*track.Track, meas []Measurement, project func(geometry.Point) *geometry.Point) Result {
	res := Result{}
	if len(tracks) == 0 {
		for i := range meas {
			res.UnmatchedMeasurements = append(res.UnmatchedMeasurements, i)
		}
		return res
	}
	if len(meas) == 0 {
		res.UnmatchedTracks = append(res.UnmatchedTracks, tracks...)
		return res
	}

	// Affinity matrix: 1/(1+d²) for admissible pairs, 0 for gated-out pairs
	// and padding. SolveMax needs a square matrix.
	n := len(tracks)
	m := len(meas)
	size := n
	if m > size {
		size = m
	}
	scores := make([][]float64, size)
	for i := range scores {
		scores[i] = make([]float64, size)
	}
	for ti, tr := range tracks {
		for mi, ms := range meas {
			if !e.admissible(tr, ms, project) {
				continue
			}
			d2 := tr.MahalanobisSquared(ms.Pixel)
			scores[ti][mi] = 1.0 / (1.0 + d2)
		}
	}

	assignment := hungarian.SolveMax(scores)

	matchedMeas := make(map[int]bool, m)
	trackIdx := make([]int, 0, len(assignment))
	for ti := range assignment {
		trackIdx = append(trackIdx, ti)
	}
	sort.Ints(trackIdx)

	matchedTracks := make(map[int]bool, n)
	for _, ti := range trackIdx {
		if ti >= n {
			continue // padding row
		}
		for mi, score := range assignment[ti] {
			if mi >= m || score <= 0 {
				continue // padding column or gated-out pair
			}
			res.Matches = append(res.Matches, Match{Track: tracks[ti], Measurement: mi})
			matchedTracks[ti] = true
			matchedMeas[mi] = true
		}
	}

	for ti, tr := range tracks {
		if !matchedTracks[ti] {
			res.UnmatchedTracks = append(res.UnmatchedTracks, tr)
		}
	}
	for mi := range meas {
		if !matchedMeas[mi] {
			res.UnmatchedMeasurements = append(res.UnmatchedMeasurements, mi)
		}
	}
	return res
}

// admissible applies the Euclidean gate: court meters when both the
// prediction and the measurement project, pixel distance otherwise.
func (e *Engine) admissible(tr *track.Track, ms Measurement, project func(geometry.Point) *geometry.Point) bool {
	pred := tr.Predicted()
	if ms.Court != nil && project != nil {
		if predCourt := project(pred); predCourt != nil {
			d := math.Hypot(predCourt.X-ms.Court.X, predCourt.Y-ms.Court.Y)
			return d <= e.cfg.GatingDistance
		}
	}
	d := math.Hypot(pred.X-ms.Pixel.X, pred.Y-ms.Pixel.Y)
	return d <= e.cfg.GatingDistancePx
}
