package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/queue"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/storage"
	"github.com/AymanAbodala/Tennis-analysis-project/pkg/dto"
)

type MatchHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewMatchHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *MatchHandler {
	return &MatchHandler{db: db, minio: minio, producer: producer}
}

// Create registers a match for analysis. The detection and keypoint
// artifacts must already be uploaded; the task is queued immediately.
func (h *MatchHandler) Create(c *gin.Context) {
	var req dto.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Verify the detections artifact exists before queuing
	if err := h.minio.StatObject(c.Request.Context(), req.DetectionsKey); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "detections object not found: " + req.DetectionsKey})
		return
	}
	if req.KeypointsKey != "" {
		if err := h.minio.StatObject(c.Request.Context(), req.KeypointsKey); err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "keypoints object not found: " + req.KeypointsKey})
			return
		}
	}

	m := &models.Match{
		VideoPath:     req.VideoPath,
		DetectionsKey: req.DetectionsKey,
		KeypointsKey:  req.KeypointsKey,
		FPS:           req.FPS,
		FrameHeight:   req.FrameHeight,
	}
	if err := h.db.CreateMatch(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.AnalysisTask{
		MatchID:       m.ID,
		VideoPath:     m.VideoPath,
		DetectionsKey: m.DetectionsKey,
		KeypointsKey:  m.KeypointsKey,
		FPS:           m.FPS,
		FrameHeight:   m.FrameHeight,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := h.producer.PublishTask(c.Request.Context(), m.ID.String(), task); err != nil {
		_ = h.db.UpdateMatchStatus(c.Request.Context(), m.ID, models.MatchStatusFailed, "enqueue failed: "+err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue analysis task: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toMatchResponse(m))
}

func (h *MatchHandler) List(c *gin.Context) {
	limit := 50
	offset := 0
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}

	matches, err := h.db.ListMatches(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.MatchResponse, 0, len(matches))
	for i := range matches {
		resp = append(resp, toMatchResponse(&matches[i]))
	}

	c.JSON(http.StatusOK, dto.MatchListResponse{Matches: resp, Total: len(resp)})
}

func (h *MatchHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	m, err := h.db.GetMatch(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}

	c.JSON(http.StatusOK, toMatchResponse(m))
}

// GetReport returns the assembled report document for a finished match.
func (h *MatchHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	m, err := h.db.GetMatch(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}

	rep, err := h.db.GetReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rep == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "report not ready",
			"status": string(m.Status),
		})
		return
	}

	c.JSON(http.StatusOK, rep)
}

func (h *MatchHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid match id"})
		return
	}

	if err := h.db.DeleteMatch(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func toMatchResponse(m *models.Match) dto.MatchResponse {
	return dto.MatchResponse{
		ID:            m.ID,
		VideoPath:     m.VideoPath,
		DetectionsKey: m.DetectionsKey,
		KeypointsKey:  m.KeypointsKey,
		FPS:           m.FPS,
		FrameHeight:   m.FrameHeight,
		Status:        string(m.Status),
		ErrorMessage:  m.ErrorMessage,
		CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     m.UpdatedAt.Format(time.RFC3339),
	}
}
