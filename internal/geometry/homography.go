package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errDegenerate = errors.New("degenerate point configuration")

// correspondence pairs a pixel observation with its court-template point.
type correspondence struct {
	pixel Point
	court Point
}

// fitHomography estimates the 3x3 homography mapping pixel points to court
// points using the normalized direct linear transform. Requires at least 4
// correspondences in general position.
func fitHomography(pairs []correspondence) ([9]float64, error) {
	var H [9]float64
	if len(pairs) < 4 {
		return H, errDegenerate
	}

	// Hartley normalization: translate centroid to origin, scale mean
	// distance to sqrt(2). Conditioning matters more than the solver here.
	src := make([]Point, len(pairs))
	dst := make([]Point, len(pairs))
	for i, p := range pairs {
		src[i] = p.pixel
		dst[i] = p.court
	}
	Ts, srcN, err := normalize(src)
	if err != nil {
		return H, err
	}
	Td, dstN, err := normalize(dst)
	if err != nil {
		return H, err
	}

	// Build the 2n x 9 DLT system A h = 0.
	n := len(pairs)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := srcN[i].X, srcN[i].Y
		u, v := dstN[i].X, dstN[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}

	var svd mat.SVD
	// Full V is required: with 4 correspondences A is 8x9 and the null
	// vector lives outside the thin factorization.
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return H, errDegenerate
	}
	var v mat.Dense
	svd.VTo(&v)

	// The solution is the right singular vector for the smallest singular
	// value: last column of V.
	var hn mat.Dense
	hn.ReuseAs(3, 3)
	col := mat.Col(nil, 8, &v)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			hn.Set(r, c, col[3*r+c])
		}
	}

	// Denormalize: H = Td^-1 * Hn * Ts.
	var tdInv mat.Dense
	if err := tdInv.Inverse(Td); err != nil {
		return H, errDegenerate
	}
	var tmp, full mat.Dense
	tmp.Mul(&hn, Ts)
	full.Mul(&tdInv, &tmp)

	scale := full.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return H, errDegenerate
	}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			H[3*r+c] = full.At(r, c) / scale
		}
	}
	return H, nil
}

// normalize returns the similarity transform T and the transformed points.
func normalize(pts []Point) (*mat.Dense, []Point, error) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= n
	if meanDist < 1e-9 {
		return nil, nil, errDegenerate
	}
	s := math.Sqrt2 / meanDist

	t := mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	return t, out, nil
}

// applyHomography maps a pixel point through H into court space.
func applyHomography(h [9]float64, p Point) Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point{X: math.Inf(1), Y: math.Inf(1)}
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

// collinear reports whether all points lie on (nearly) one line, which makes
// the homography unsolvable.
func collinear(pts []Point) bool {
	if len(pts) < 3 {
		return true
	}
	p0 := pts[0]
	var p1 Point
	found := false
	for _, p := range pts[1:] {
		if math.Hypot(p.X-p0.X, p.Y-p0.Y) > 1e-6 {
			p1 = p
			found = true
			break
		}
	}
	if !found {
		return true
	}
	for _, p := range pts {
		// Cross product area of the triangle (p0, p1, p).
		area := (p1.X-p0.X)*(p.Y-p0.Y) - (p1.Y-p0.Y)*(p.X-p0.X)
		if math.Abs(area) > 1e-6*math.Hypot(p1.X-p0.X, p1.Y-p0.Y) {
			return false
		}
	}
	return true
}
