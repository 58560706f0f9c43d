package geometry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
)

// ErrInsufficientKeypoints is returned when too few usable court keypoints
// survive the confidence floor, or the survivors are collinear.
var ErrInsufficientKeypoints = errors.New("insufficient court keypoints for calibration")

// CourtCalibration is an immutable homography fit. Calibrate never mutates
// an existing calibration; callers swap the new value in themselves.
type CourtCalibration struct {
	H          [9]float64
	Keypoints  []models.KeypointCandidate // candidates the fit was computed from
	Inliers    int
	Residual   float64 // mean reprojection error on inliers, meters
	FrameIndex int
}

// Trusted reports whether coordinate-dependent stats may rely on this
// calibration.
func (c *CourtCalibration) Trusted(maxResidual float64) bool {
	return c != nil && c.Residual <= maxResidual
}

// Project maps a pixel point into court meters. Pure function: identical
// inputs always produce the identical point.
func (c *CourtCalibration) Project(p Point) Point {
	return applyHomography(c.H, p)
}

// Calibrate fits a homography from detected court keypoints to the canonical
// template. It requires at least cfg.MinKeypoints high-confidence candidates
// with known labels in general position, and rejects outliers with RANSAC
// before a final least-squares fit over the inlier set.
func Calibrate(candidates []models.KeypointCandidate, frameIndex int, cfg config.CalibrationConfig) (*CourtCalibration, error) {
	pairs := make([]correspondence, 0, len(candidates))
	kept := make([]models.KeypointCandidate, 0, len(candidates))
	for _, kp := range candidates {
		if kp.Confidence < cfg.KeypointFloor {
			continue
		}
		tpl, ok := CourtTemplate[kp.Label]
		if !ok {
			continue
		}
		if math.IsNaN(kp.Point[0]) || math.IsNaN(kp.Point[1]) ||
			math.IsInf(kp.Point[0], 0) || math.IsInf(kp.Point[1], 0) {
			continue
		}
		pairs = append(pairs, correspondence{
			pixel: Point{X: kp.Point[0], Y: kp.Point[1]},
			court: tpl,
		})
		kept = append(kept, kp)
	}

	if len(pairs) < cfg.MinKeypoints {
		return nil, fmt.Errorf("%w: %d usable of %d required", ErrInsufficientKeypoints, len(pairs), cfg.MinKeypoints)
	}
	pixels := make([]Point, len(pairs))
	for i, p := range pairs {
		pixels[i] = p.pixel
	}
	if collinear(pixels) {
		return nil, fmt.Errorf("%w: keypoints are collinear", ErrInsufficientKeypoints)
	}

	bestInliers := ransac(pairs, cfg)
	if len(bestInliers) < cfg.MinKeypoints {
		return nil, fmt.Errorf("%w: only %d inliers after outlier rejection", ErrInsufficientKeypoints, len(bestInliers))
	}

	// Refit on the full inlier set.
	h, err := fitHomography(bestInliers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientKeypoints, err)
	}

	return &CourtCalibration{
		H:          h,
		Keypoints:  kept,
		Inliers:    len(bestInliers),
		Residual:   meanResidual(h, bestInliers),
		FrameIndex: frameIndex,
	}, nil
}

// ransac samples 4-point subsets and keeps the largest consensus set. The
// RNG is seeded per call so a calibration run is reproducible.
func ransac(pairs []correspondence, cfg config.CalibrationConfig) []correspondence {
	if len(pairs) == 4 {
		return pairs
	}

	rng := rand.New(rand.NewSource(1))
	var best []correspondence

	for round := 0; round < cfg.RansacRounds; round++ {
		sample := samplePairs(rng, pairs, 4)
		h, err := fitHomography(sample)
		if err != nil {
			continue
		}
		var inliers []correspondence
		for _, p := range pairs {
			proj := applyHomography(h, p.pixel)
			if math.Hypot(proj.X-p.court.X, proj.Y-p.court.Y) <= cfg.InlierThreshold {
				inliers = append(inliers, p)
			}
		}
		if len(inliers) > len(best) {
			best = inliers
		}
		if len(best) == len(pairs) {
			break
		}
	}
	return best
}

func samplePairs(rng *rand.Rand, pairs []correspondence, k int) []correspondence {
	idx := rng.Perm(len(pairs))[:k]
	sort.Ints(idx)
	out := make([]correspondence, k)
	for i, j := range idx {
		out[i] = pairs[j]
	}
	return out
}

func meanResidual(h [9]float64, pairs []correspondence) float64 {
	if len(pairs) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, p := range pairs {
		proj := applyHomography(h, p.pixel)
		sum += math.Hypot(proj.X-p.court.X, proj.Y-p.court.Y)
	}
	return sum / float64(len(pairs))
}
