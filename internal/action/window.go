package action

import (
	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

// Window is a fixed-length slice of one player track's committed history,
// ready for feature extraction. FrameEnd is inclusive.
type Window struct {
	TrackID    uint64
	FrameStart int
	FrameEnd   int
	Points     []track.Point
}

// Windower slides fixed windows over player tracks as frames commit. A
// window is emitted only once its trailing edge is at or before the last
// committed frame, so later observations can never change an emitted window.
type Windower struct {
	size   int
	stride int

	// next window start per track, anchored at the track's first frame
	nextStart map[uint64]int
}

func NewWindower(size, stride int) *Windower {
	return &Windower{
		size:      size,
		stride:    stride,
		nextStart: make(map[uint64]int),
	}
}

// Advance returns every window of tr that became complete once
// committedFrame was processed. Partial windows at the tail of a track are
// never emitted.
func (w *Windower) Advance(tr *track.Track, committedFrame int) []Window {
	start, ok := w.nextStart[tr.ID]
	if !ok {
		start = tr.FirstFrame
	}

	var out []Window
	for start+w.size-1 <= committedFrame {
		end := start + w.size - 1
		pts := pointsInRange(tr.History, start, end)
		if len(pts) > 0 {
			out = append(out, Window{
				TrackID:    tr.ID,
				FrameStart: start,
				FrameEnd:   end,
				Points:     pts,
			})
		}
		start += w.stride
	}
	w.nextStart[tr.ID] = start
	return out
}

// Forget drops windowing state for a terminated track.
func (w *Windower) Forget(trackID uint64) {
	delete(w.nextStart, trackID)
}

// pointsInRange returns the history points with start <= Frame <= end.
// History is strictly increasing in Frame, so a scan with early exit is
// enough for the window sizes involved.
func pointsInRange(history []track.Point, start, end int) []track.Point {
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
