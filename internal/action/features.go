package action

import (
	"math"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/track"
)

// FeatureDim is the length of the summary vector fed to the classifier.
const FeatureDim = 9

// FeatureSummary condenses one window of a player track into the fixed
// vector the action classifier consumes. Distances are court meters when the
// whole window projected, raw pixels otherwise; CourtSpace tells the model
// which.
type FeatureSummary struct {
	TrackID    uint64
	FrameStart int
	FrameEnd   int

	CourtSpace      bool
	PathLength      float64 // total distance moved inside the window
	NetDisplacement float64 // straight-line start to end
	SpeedMean       float64
	SpeedMax        float64
	AccelPeak       float64 // largest speed delta between adjacent samples, per second
	DepthChange     float64 // movement along the court-length axis
	MinBallDistance float64 // closest ball approach; -1 when no ball sample overlaps
	Samples         int
}

// Vector flattens the summary for the ONNX input tensor and the stored
// embedding. Order is fixed; changing it invalidates trained models.
func (f FeatureSummary) Vector() []float32 {
	court := float32(0)
	if f.CourtSpace {
		court = 1
	}
	return []float32{
		court,
		float32(f.PathLength),
		float32(f.NetDisplacement),
		float32(f.SpeedMean),
		float32(f.SpeedMax),
		float32(f.AccelPeak),
		float32(f.DepthChange),
		float32(f.MinBallDistance),
		float32(f.Samples),
	}
}

// Summarize computes the feature vector for a window of player history.
// ball carries the ball track's history points overlapping the same frame
// range, possibly empty. fps converts per-frame deltas to per-second rates.
func Summarize(trackID uint64, frameStart, frameEnd int, points []track.Point, ball []track.Point, fps float64) FeatureSummary {
	f := FeatureSummary{
		TrackID:         trackID,
		FrameStart:      frameStart,
		FrameEnd:        frameEnd,
		MinBallDistance: -1,
		Samples:         len(points),
	}
	if len(points) == 0 {
		return f
	}

	// Use court coordinates only when every sample has them, so the
	// distances inside one vector share a unit.
	f.CourtSpace = true
	for _, p := range points {
		if p.Court == nil {
			f.CourtSpace = false
			break
		}
	}
	pos := func(p track.Point) (float64, float64) {
		if f.CourtSpace {
			return p.Court.X, p.Court.Y
		}
		return p.Pixel.X, p.Pixel.Y
	}

	var prevSpeed float64
	var havePrevSpeed bool
	for i := 1; i < len(points); i++ {
		x0, y0 := pos(points[i-1])
		x1, y1 := pos(points[i])
		d := math.Hypot(x1-x0, y1-y0)
		f.PathLength += d

		dt := float64(points[i].Frame-points[i-1].Frame) / fps
		if dt <= 0 {
			continue
		}
		speed := d / dt
		f.SpeedMean += speed
		if speed > f.SpeedMax {
			f.SpeedMax = speed
		}
		if havePrevSpeed {
			if accel := math.Abs(speed-prevSpeed) / dt; accel > f.AccelPeak {
				f.AccelPeak = accel
			}
		}
		prevSpeed = speed
		havePrevSpeed = true
	}
	if n := len(points) - 1; n > 0 {
		f.SpeedMean /= float64(n)
	}

	sx, sy := pos(points[0])
	ex, ey := pos(points[len(points)-1])
	f.NetDisplacement = math.Hypot(ex-sx, ey-sy)
	f.DepthChange = math.Abs(ey - sy)

	f.MinBallDistance = minBallDistance(points, ball, f.CourtSpace)
	return f
}

// minBallDistance finds the closest player-to-ball distance across frames
// where both were observed. Returns -1 when the two never share a frame.
func minBallDistance(points, ball []track.Point, courtSpace bool) float64 {
	byFrame := make(map[int]track.Point, len(ball))
	for _, b := range ball {
		if courtSpace && b.Court == nil {
			continue
		}
		byFrame[b.Frame] = b
	}

	best := -1.0
	for _, p := range points {
		b, ok := byFrame[p.Frame]
		if !ok {
			continue
		}
		var d float64
		if courtSpace {
			d = math.Hypot(p.Court.X-b.Court.X, p.Court.Y-b.Court.Y)
		} else {
			d = math.Hypot(p.Pixel.X-b.Pixel.X, p.Pixel.Y-b.Pixel.Y)
		}
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}
