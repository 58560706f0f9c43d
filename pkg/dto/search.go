package dto

import "github.com/google/uuid"

// SearchWindowsRequest finds stored action windows whose motion signature
// is closest to the query embedding.
type SearchWindowsRequest struct {
	Embedding []float32 `json:"embedding" binding:"required"`
	Label     string    `json:"label"`
	Limit     int       `json:"limit"`
}

type WindowSearchResult struct {
	WindowID   uuid.UUID `json:"window_id"`
	MatchID    uuid.UUID `json:"match_id"`
	Label      string    `json:"label"`
	FrameStart int       `json:"frame_start"`
	FrameEnd   int       `json:"frame_end"`
	Score      float32   `json:"score"`
}

type SearchWindowsResponse struct {
	Results []WindowSearchResult `json:"results"`
	Total   int                  `json:"total"`
}
