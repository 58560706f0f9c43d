package models

// MatchReport is the final aggregate for one processed video. It is the
// fixed JSON document consumed by the recommendation service and the
// dashboard; immutable after assembly.
type MatchReport struct {
	MatchID   string         `json:"match_id"`
	VideoPath string         `json:"video_path"`
	Players   []PlayerReport `json:"players"`
	Ball      BallReport     `json:"ball"`
	Court     CourtReport    `json:"court"`
}

// PlayerReport carries one player's action timeline and derived stats.
type PlayerReport struct {
	PlayerID int           `json:"player_id"`
	Actions  []ActionEntry `json:"actions"`
	Stats    PlayerStats   `json:"stats"`
}

// ActionEntry is one accepted, labeled action window. Entries for a player
// are sorted by FrameStart and never overlap in frame range.
type ActionEntry struct {
	FrameStart int     `json:"frame_start"`
	FrameEnd   int     `json:"frame_end"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// PlayerStats holds per-player aggregates. Speed and distance are in court
// meters and are nil whenever the court calibration was not trusted for the
// frames involved.
type PlayerStats struct {
	AverageSpeed    *float64           `json:"average_speed"`
	Shots           int                `json:"shots"`
	DistanceCovered *float64           `json:"distance_covered,omitempty"`
	ZoneCoverage    map[string]float64 `json:"zone_coverage,omitempty"`
	HitDistribution map[string]float64 `json:"hit_distribution,omitempty"`
	ActionCounts    map[string]int     `json:"action_counts,omitempty"`
	UnforcedErrors  int                `json:"unforced_errors"`
}

// BallReport holds the per-frame ball observations.
type BallReport struct {
	Detections   []BallDetection `json:"detections"`
	AverageSpeed *float64        `json:"average_speed,omitempty"`
}

// BallDetection is one ball observation. Velocity is the court-space speed
// (m/s) between this frame and the previous one; nil when calibration was
// untrusted. Interpolated marks gap-filled entries.
type BallDetection struct {
	Frame        int        `json:"frame"`
	BBox         [4]float64 `json:"bbox"` // x, y, w, h (pixels)
	Velocity     *float64   `json:"velocity"`
	Interpolated bool       `json:"interpolated,omitempty"`
}

// CourtReport carries the pixel positions of the calibrated court keypoints.
type CourtReport struct {
	CourtPoints map[string][2]float64 `json:"court_points"`
}
