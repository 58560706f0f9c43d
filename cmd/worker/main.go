package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/action"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/engine"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/ingest"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/observability"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/queue"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/report"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting analysis worker",
		"workers", cfg.Engine.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	// Action classifier
	labels := append(append([]string{}, cfg.Action.ShotLabels...), action.NoAction)
	scorer, err := action.NewONNXScorer(filepath.Join(cfg.Action.ModelsDir, "action_classifier.onnx"), labels)
	if err != nil {
		slog.Error("init action classifier", "error", err)
		os.Exit(1)
	}
	defer scorer.Close()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	w := &worker{
		cfg:      cfg,
		db:       db,
		minio:    minioStore,
		producer: producer,
		scorer:   scorer,
	}

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming analysis tasks
	err = consumer.ConsumeTasks(ctx, "analysis-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.AnalysisTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal analysis task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := w.processTask(ctx, task); err != nil {
			return fmt.Errorf("process match %s: %w", task.MatchID, err)
		}

		return nil
	}, cfg.Engine.WorkerCount)
	if err != nil {
		slog.Error("start task consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically report queue depth
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

type worker struct {
	cfg      *config.Config
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
	scorer   action.Scorer
}

// processTask runs one match end to end: load artifacts, analyze, assemble
// the report, and persist accepted windows for similarity search.
func (w *worker) processTask(ctx context.Context, task models.AnalysisTask) error {
	log := slog.With("match_id", task.MatchID)
	log.Info("analysis started", "detections_key", task.DetectionsKey)

	if err := w.db.UpdateMatchStatus(ctx, task.MatchID, models.MatchStatusRunning, ""); err != nil {
		return fmt.Errorf("mark match running: %w", err)
	}

	frames, err := w.loadFrames(ctx, task, log)
	if err != nil {
		w.fail(ctx, task.MatchID, log, err)
		return err
	}

	fps := task.FPS
	if fps <= 0 {
		fps = w.cfg.Engine.DefaultFPS
	}

	pipeline := engine.New(w.cfg, w.scorer, log)
	pipeline.OnProgress = func(evt models.ProgressEvent) {
		if err := w.producer.PublishProgress(ctx, evt.MatchID.String(), evt); err != nil {
			log.Warn("publish progress", "error", err)
		}
	}

	res, err := pipeline.Run(ctx, engine.Input{
		MatchID: task.MatchID,
		FPS:     fps,
		Frames:  frames,
	})
	if err != nil {
		w.fail(ctx, task.MatchID, log, err)
		return err
	}

	rep := report.Assemble(task.MatchID, task.VideoPath, res, report.Options{
		FPS:        fps,
		ShotLabels: w.cfg.Action.ShotLabels,
	})

	if err := w.db.SaveReport(ctx, task.MatchID, rep); err != nil {
		w.fail(ctx, task.MatchID, log, err)
		return err
	}

	for _, cand := range res.Actions {
		window := &storage.ActionWindow{
			MatchID:    task.MatchID,
			TrackID:    int64(cand.TrackID),
			FrameStart: cand.FrameStart,
			FrameEnd:   cand.FrameEnd,
			Label:      cand.Label,
			Confidence: cand.Confidence,
			Embedding:  cand.Features.Vector(),
		}
		if err := w.db.AddActionWindow(ctx, window); err != nil {
			log.Warn("persist action window", "error", err, "frame_start", cand.FrameStart)
		}
	}

	if err := w.db.UpdateMatchStatus(ctx, task.MatchID, models.MatchStatusDone, ""); err != nil {
		return fmt.Errorf("mark match done: %w", err)
	}

	done := models.ProgressEvent{
		MatchID:        task.MatchID,
		Stage:          "done",
		FramesDone:     res.FramesProcessed,
		FramesTotal:    res.FramesProcessed,
		WindowsScored:  res.WindowsScored,
		WindowsDropped: res.WindowsDropped,
		Timestamp:      time.Now().UTC(),
	}
	if err := w.producer.PublishProgress(ctx, task.MatchID.String(), done); err != nil {
		log.Warn("publish completion event", "error", err)
	}

	log.Info("analysis finished",
		"frames", res.FramesProcessed,
		"actions", len(res.Actions),
		"players", len(res.PlayerTrackIDs),
	)
	return nil
}

// loadFrames streams the detection JSONL and keypoint document from MinIO
// and merges them into the frame sequence.
func (w *worker) loadFrames(ctx context.Context, task models.AnalysisTask, log *slog.Logger) ([]engine.Frame, error) {
	detReader, err := w.minio.OpenObject(ctx, task.DetectionsKey)
	if err != nil {
		return nil, fmt.Errorf("open detections: %w", err)
	}
	defer detReader.Close()

	dets, err := ingest.ReadDetections(detReader, log)
	if err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}

	var keypoints []models.KeypointSet
	if task.KeypointsKey != "" {
		kpReader, err := w.minio.OpenObject(ctx, task.KeypointsKey)
		if err != nil {
			return nil, fmt.Errorf("open keypoints: %w", err)
		}
		defer kpReader.Close()

		keypoints, err = ingest.ReadKeypoints(kpReader)
		if err != nil {
			return nil, fmt.Errorf("read keypoints: %w", err)
		}
	}

	return ingest.BuildFrames(dets, keypoints), nil
}

func (w *worker) fail(ctx context.Context, matchID uuid.UUID, log *slog.Logger, cause error) {
	log.Error("analysis failed", "error", cause)
	if err := w.db.UpdateMatchStatus(ctx, matchID, models.MatchStatusFailed, cause.Error()); err != nil {
		log.Error("mark match failed", "error", err)
	}
	evt := models.ProgressEvent{
		MatchID:   matchID,
		Stage:     "failed",
		Error:     cause.Error(),
		Timestamp: time.Now().UTC(),
	}
	if err := w.producer.PublishProgress(ctx, matchID.String(), evt); err != nil {
		log.Warn("publish failure event", "error", err)
	}
}

// getONNXLibPath returns the ONNX Runtime shared library path
// based on the operating system.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
