package models

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchStatusPending MatchStatus = "pending"
	MatchStatusRunning MatchStatus = "running"
	MatchStatusDone    MatchStatus = "done"
	MatchStatusFailed  MatchStatus = "failed"
)

// Match is one registered analysis job for a single video.
type Match struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	VideoPath     string      `json:"video_path" db:"video_path"`
	DetectionsKey string      `json:"detections_key" db:"detections_key"`
	KeypointsKey  string      `json:"keypoints_key" db:"keypoints_key"`
	FPS           float64     `json:"fps" db:"fps"`
	FrameHeight   int         `json:"frame_height" db:"frame_height"`
	Status        MatchStatus `json:"status" db:"status"`
	ErrorMessage  string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// AnalysisTask is the message published to NATS for worker processing.
type AnalysisTask struct {
	MatchID       uuid.UUID `json:"match_id"`
	VideoPath     string    `json:"video_path"`
	DetectionsKey string    `json:"detections_key"` // MinIO object key, JSONL
	KeypointsKey  string    `json:"keypoints_key"`  // MinIO object key, JSON
	FPS           float64   `json:"fps"`
	FrameHeight   int       `json:"frame_height"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// ProgressEvent is published on the REPORTS stream while a match is being
// analyzed and when it finishes, for the dashboard WebSocket feed.
type ProgressEvent struct {
	MatchID        uuid.UUID `json:"match_id"`
	Stage          string    `json:"stage"` // calibrating, tracking, classifying, assembling, done, failed
	FramesDone     int       `json:"frames_done"`
	FramesTotal    int       `json:"frames_total"`
	ActiveTracks   int       `json:"active_tracks,omitempty"`
	WindowsScored  int       `json:"windows_scored,omitempty"`
	WindowsDropped int       `json:"windows_dropped,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
