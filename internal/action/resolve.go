package action

import (
	"sort"
)

// Candidate is a scored window awaiting timeline resolution.
type Candidate struct {
	TrackID    uint64
	FrameStart int
	FrameEnd   int
	Label      string
	Confidence float64
	Features   FeatureSummary
}

// Resolution is the outcome of resolving one track's candidates.
type Resolution struct {
	Accepted       []Candidate
	DroppedFloor   int // below the confidence floor or scored no_action
	DroppedOverlap int // lost the overlap contest to a stronger window
}

// Resolve turns scored windows into a non-overlapping timeline per track.
// Higher confidence wins; ties break on earlier frame_start, then lower
// track ID, so the outcome never depends on scoring order. Accepted windows
// come back sorted by track then frame_start.
func Resolve(cands []Candidate, confidenceFloor float64) Resolution {
	var res Resolution

	eligible := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Label == NoAction || c.Confidence < confidenceFloor {
			res.DroppedFloor++
			continue
		}
		eligible = append(eligible, c)
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.FrameStart != b.FrameStart {
			return a.FrameStart < b.FrameStart
		}
		return a.TrackID < b.TrackID
	})

	accepted := make(map[uint64][]Candidate)
	for _, c := range eligible {
		if overlapsAny(accepted[c.TrackID], c) {
			res.DroppedOverlap++
			continue
		}
		accepted[c.TrackID] = append(accepted[c.TrackID], c)
		res.Accepted = append(res.Accepted, c)
	}

	sort.Slice(res.Accepted, func(i, j int) bool {
		a, b := res.Accepted[i], res.Accepted[j]
		if a.TrackID != b.TrackID {
			return a.TrackID < b.TrackID
		}
		return a.FrameStart < b.FrameStart
	})
	return res
}

func overlapsAny(kept []Candidate, c Candidate) bool {
	for _, k := range kept {
		if c.FrameStart <= k.FrameEnd && k.FrameStart <= c.FrameEnd {
			return true
		}
	}
	return false
}
