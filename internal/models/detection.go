package models

// ObjectClass identifies what kind of object a detection refers to.
type ObjectClass string

const (
	ClassPlayer        ObjectClass = "player"
	ClassBall          ObjectClass = "ball"
	ClassCourtKeypoint ObjectClass = "court_keypoint"
)

// Detection is one observation in one frame, as produced by the external
// object detector. Immutable once decoded.
type Detection struct {
	FrameIndex int         `json:"frame_index"`
	Class      ObjectClass `json:"class"`
	BBox       [4]float64  `json:"bbox"` // x, y, w, h (pixels)
	Confidence float64     `json:"confidence"`
}

// CenterX returns the horizontal center of the bounding box.
func (d Detection) CenterX() float64 { return d.BBox[0] + d.BBox[2]/2 }

// CenterY returns the vertical center of the bounding box.
func (d Detection) CenterY() float64 { return d.BBox[1] + d.BBox[3]/2 }

// FootX returns the horizontal position of the bottom-center point.
// For players this is the point that sits on the court plane, so it is
// what gets projected through the homography.
func (d Detection) FootX() float64 { return d.BBox[0] + d.BBox[2]/2 }

// FootY returns the vertical position of the bottom-center point.
func (d Detection) FootY() float64 { return d.BBox[1] + d.BBox[3] }

// KeypointCandidate is one detected court keypoint with its template label.
type KeypointCandidate struct {
	Label      string     `json:"label"`
	Point      [2]float64 `json:"point"` // pixel x, y
	Confidence float64    `json:"confidence"`
}

// KeypointSet is a group of keypoint candidates observed around a frame.
// The detector emits one set at the start of the video and may emit more
// when the camera moves; each set drives one calibration attempt.
type KeypointSet struct {
	FrameIndex int                 `json:"frame_index"`
	Candidates []KeypointCandidate `json:"candidates"`
}
