package geometry

// Canonical court template, in meters. Origin is the near-side left doubles
// corner, x runs across the court, y runs toward the far baseline.
const (
	CourtWidth         = 10.97 // doubles outline
	CourtLength        = 23.77
	SinglesMargin      = 1.37 // doubles alley width
	ServiceLineFromNet = 6.40
	NetY               = CourtLength / 2
)

// Point is a 2D point, either in pixels or court meters depending on context.
type Point struct {
	X float64
	Y float64
}

// CourtTemplate maps keypoint labels to their canonical court coordinates.
// The 14 labels match the external court-keypoint detector's output.
var CourtTemplate = map[string]Point{
	"baseline_near_left":  {0, 0},
	"baseline_near_right": {CourtWidth, 0},
	"baseline_far_left":   {0, CourtLength},
	"baseline_far_right":  {CourtWidth, CourtLength},
	"singles_near_left":   {SinglesMargin, 0},
	"singles_near_right":  {CourtWidth - SinglesMargin, 0},
	"singles_far_left":    {SinglesMargin, CourtLength},
	"singles_far_right":   {CourtWidth - SinglesMargin, CourtLength},
	"service_near_left":   {SinglesMargin, NetY - ServiceLineFromNet},
	"service_near_right":  {CourtWidth - SinglesMargin, NetY - ServiceLineFromNet},
	"service_far_left":    {SinglesMargin, NetY + ServiceLineFromNet},
	"service_far_right":   {CourtWidth - SinglesMargin, NetY + ServiceLineFromNet},
	"center_service_near": {CourtWidth / 2, NetY - ServiceLineFromNet},
	"center_service_far":  {CourtWidth / 2, NetY + ServiceLineFromNet},
}

// Zone boundaries along the court-length axis, per side. A player standing
// within NetZoneDepth of the net is "net", beyond BackZoneStart from the net
// is "back", otherwise "mid".
const (
	NetZoneDepth  = 4.0
	BackZoneStart = 9.0
)

// ZoneFor returns back/mid/net for a court-space position.
func ZoneFor(p Point) string {
	distFromNet := p.Y - NetY
	if distFromNet < 0 {
		distFromNet = -distFromNet
	}
	switch {
	case distFromNet <= NetZoneDepth:
		return "net"
	case distFromNet >= BackZoneStart:
		return "back"
	default:
		return "mid"
	}
}
