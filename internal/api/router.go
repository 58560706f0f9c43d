package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/api/handlers"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/api/ws"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/auth"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/queue"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Matches & Reports
	matchH := handlers.NewMatchHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/matches", matchH.Create)
	v1.GET("/matches", matchH.List)
	v1.GET("/matches/:id", matchH.Get)
	v1.GET("/matches/:id/report", matchH.GetReport)
	v1.DELETE("/matches/:id", matchH.Delete)

	// Window similarity search
	searchH := handlers.NewSearchHandler(cfg.DB)
	v1.POST("/search/windows", searchH.Windows)

	return r
}
