package dto

import "github.com/google/uuid"

type CreateMatchRequest struct {
	VideoPath     string  `json:"video_path" binding:"required"`
	DetectionsKey string  `json:"detections_key" binding:"required"`
	KeypointsKey  string  `json:"keypoints_key"`
	FPS           float64 `json:"fps"`
	FrameHeight   int     `json:"frame_height"`
}

type MatchResponse struct {
	ID            uuid.UUID `json:"id"`
	VideoPath     string    `json:"video_path"`
	DetectionsKey string    `json:"detections_key"`
	KeypointsKey  string    `json:"keypoints_key,omitempty"`
	FPS           float64   `json:"fps"`
	FrameHeight   int       `json:"frame_height,omitempty"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
}

type MatchListResponse struct {
	Matches []MatchResponse `json:"matches"`
	Total   int             `json:"total"`
}

// WSEvent is a WebSocket message carrying analysis progress for one match.
type WSEvent struct {
	Type    string      `json:"type"` // analysis_progress, analysis_done, analysis_failed
	MatchID uuid.UUID   `json:"match_id"`
	Data    interface{} `json:"data,omitempty"`
}
