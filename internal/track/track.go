package track

import (
	"math"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/geometry"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
)

// State is the lifecycle state of a track.
type State string

const (
	StateTentative  State = "tentative"  // new track, not yet confirmed
	StateConfirmed  State = "confirmed"  // enough consecutive hits
	StateLost       State = "lost"       // confirmed track missing, inside the grace window
	StateTerminated State = "terminated" // closed, retained for reporting only
)

const (
	// minDeterminant guards the 2x2 innovation covariance inversion.
	minDeterminant = 1e-9
	// singularDistance is returned when the covariance is singular, far
	// outside any gate.
	singularDistance = 1e9
)

// Point is one committed observation in a track's history. Court and Speed
// are nil whenever the frame had no trusted calibration.
type Point struct {
	Frame int
	Pixel geometry.Point
	BBox  [4]float64 // detector box, x y w h pixels
	Court *geometry.Point
	Speed *float64 // court meters per second
}

// Obs is one detection prepared for commit to a track.
type Obs struct {
	Pixel geometry.Point
	BBox  [4]float64
	Court *geometry.Point
	Speed *float64
}

// Track is a single tracked object with a constant-velocity Kalman state in
// pixel space: [x, y, vx, vy], covariance P row-major 4x4. Pixel space keeps
// the filter independent of calibration trust; court coordinates are derived
// per observation.
type Track struct {
	ID    uint64
	Class models.ObjectClass
	State State

	Hits   int // consecutive successful associations
	Misses int // consecutive misses since last association

	FirstFrame int
	LastFrame  int

	X, Y, VX, VY float64
	P            [16]float64

	History []Point

	processNoisePos  float64
	processNoiseVel  float64
	measurementNoise float64
}

// Predict advances the Kalman state by dt seconds under the constant
// velocity model: x' = F x, P' = F P F^T + Q.
func (t *Track) Predict(dt float64) {
	t.X += t.VX * dt
	t.Y += t.VY * dt

	// F P: rows 0,1 pick up dt times rows 2,3.
	var fp [16]float64
	for j := 0; j < 4; j++ {
		fp[0*4+j] = t.P[0*4+j] + dt*t.P[2*4+j]
		fp[1*4+j] = t.P[1*4+j] + dt*t.P[3*4+j]
		fp[2*4+j] = t.P[2*4+j]
		fp[3*4+j] = t.P[3*4+j]
	}
	// (F P) F^T: cols 0,1 pick up dt times cols 2,3.
	for i := 0; i < 4; i++ {
		t.P[i*4+0] = fp[i*4+0] + dt*fp[i*4+2]
		t.P[i*4+1] = fp[i*4+1] + dt*fp[i*4+3]
		t.P[i*4+2] = fp[i*4+2]
		t.P[i*4+3] = fp[i*4+3]
	}

	t.P[0*4+0] += t.processNoisePos
	t.P[1*4+1] += t.processNoisePos
	t.P[2*4+2] += t.processNoiseVel
	t.P[3*4+3] += t.processNoiseVel
}

// innovationCovariance returns S = H P H^T + R for the position-only
// measurement model.
func (t *Track) innovationCovariance() (s00, s01, s10, s11 float64) {
	s00 = t.P[0*4+0] + t.measurementNoise
	s01 = t.P[0*4+1]
	s10 = t.P[1*4+0]
	s11 = t.P[1*4+1] + t.measurementNoise
	return
}

// MahalanobisSquared returns the squared Mahalanobis distance from the
// predicted position to a pixel measurement.
func (t *Track) MahalanobisSquared(m geometry.Point) float64 {
	dx := m.X - t.X
	dy := m.Y - t.Y

	s00, s01, s10, s11 := t.innovationCovariance()
	det := s00*s11 - s01*s10
	if det < minDeterminant {
		return singularDistance
	}
	inv00 := s11 / det
	inv01 := -s01 / det
	inv10 := -s10 / det
	inv11 := s00 / det

	return dx*dx*inv00 + dx*dy*(inv01+inv10) + dy*dy*inv11
}

// Predicted returns the current predicted pixel position.
func (t *Track) Predicted() geometry.Point {
	return geometry.Point{X: t.X, Y: t.Y}
}

// update applies the Kalman correction step for a pixel measurement.
func (t *Track) update(m geometry.Point) {
	yX := m.X - t.X
	yY := m.Y - t.Y

	s00, s01, s10, s11 := t.innovationCovariance()
	det := s00*s11 - s01*s10
	if det < minDeterminant {
		return
	}
	inv00 := s11 / det
	inv01 := -s01 / det
	inv10 := -s10 / det
	inv11 := s00 / det

	// Kalman gain K = P H^T S^-1, 4x2.
	var k [8]float64
	for i := 0; i < 4; i++ {
		k[i*2+0] = t.P[i*4+0]*inv00 + t.P[i*4+1]*inv10
		k[i*2+1] = t.P[i*4+0]*inv01 + t.P[i*4+1]*inv11
	}

	t.X += k[0*2+0]*yX + k[0*2+1]*yY
	t.Y += k[1*2+0]*yX + k[1*2+1]*yY
	t.VX += k[2*2+0]*yX + k[2*2+1]*yY
	t.VY += k[3*2+0]*yX + k[3*2+1]*yY

	// P' = (I - K H) P, with H selecting position rows.
	var ikh [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var id float64
			if i == j {
				id = 1
			}
			var kh float64
			switch j {
			case 0:
				kh = k[i*2+0]
			case 1:
				kh = k[i*2+1]
			}
			ikh[i*4+j] = id - kh
		}
	}
	var newP [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for x := 0; x < 4; x++ {
				sum += ikh[i*4+x] * t.P[x*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	t.P = newP
}

// PixelSpeed returns the filter's current pixel-space speed magnitude.
func (t *Track) PixelSpeed() float64 {
	return math.Hypot(t.VX, t.VY)
}

// Alive reports whether the track still participates in association.
func (t *Track) Alive() bool {
	return t.State != StateTerminated
}
