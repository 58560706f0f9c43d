package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/action"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/storage"
	"github.com/AymanAbodala/Tennis-analysis-project/pkg/dto"
)

type SearchHandler struct {
	db *storage.PostgresStore
}

func NewSearchHandler(db *storage.PostgresStore) *SearchHandler {
	return &SearchHandler{db: db}
}

// Windows finds stored action windows with the closest motion signature
// to the query embedding.
func (h *SearchHandler) Windows(c *gin.Context) {
	var req dto.SearchWindowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Embedding) != action.FeatureDim {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "embedding dimension mismatch",
			"want":  action.FeatureDim,
			"got":   len(req.Embedding),
		})
		return
	}

	matches, err := h.db.SearchWindows(c.Request.Context(), req.Embedding, req.Label, req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	results := make([]dto.WindowSearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, dto.WindowSearchResult{
			WindowID:   m.WindowID,
			MatchID:    m.MatchID,
			Label:      m.Label,
			FrameStart: m.FrameStart,
			FrameEnd:   m.FrameEnd,
			Score:      m.Score,
		})
	}

	c.JSON(http.StatusOK, dto.SearchWindowsResponse{Results: results, Total: len(results)})
}
