package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	MinIO       MinIOConfig       `yaml:"minio"`
	Engine      EngineConfig      `yaml:"engine"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Action      ActionConfig      `yaml:"action"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// EngineConfig covers the per-video processing loop.
type EngineConfig struct {
	DefaultFPS         float64 `yaml:"default_fps"`
	WorkerCount        int     `yaml:"worker_count"` // scorer pool size
	RequireCalibration bool    `yaml:"require_calibration"`
	DetectionFloor     float64 `yaml:"detection_floor"` // min detection confidence
}

// TrackingConfig covers the association engine and track lifecycle.
type TrackingConfig struct {
	HitsToConfirm    int     `yaml:"hits_to_confirm"`    // consecutive matches tentative -> confirmed
	GraceWindow      int     `yaml:"grace_window"`       // misses a lost track survives before termination
	GatingDistance   float64 `yaml:"gating_distance"`    // court meters
	GatingDistancePx float64 `yaml:"gating_distance_px"` // pixel fallback when calibration untrusted
	ProcessNoisePos  float64 `yaml:"process_noise_pos"`
	ProcessNoiseVel  float64 `yaml:"process_noise_vel"`
	MeasurementNoise float64 `yaml:"measurement_noise"`
	MaxTracks        int     `yaml:"max_tracks"`
}

// CalibrationConfig covers the homography fit.
type CalibrationConfig struct {
	KeypointFloor   float64 `yaml:"keypoint_floor"` // min keypoint confidence
	MinKeypoints    int     `yaml:"min_keypoints"`
	RansacRounds    int     `yaml:"ransac_rounds"`
	InlierThreshold float64 `yaml:"inlier_threshold"` // meters
	MaxResidual     float64 `yaml:"max_residual"`     // meters; above this the calibration is untrusted
}

// ActionConfig covers windowing and the scorer boundary.
type ActionConfig struct {
	WindowSize      int           `yaml:"window_size"`   // frames
	WindowStride    int           `yaml:"window_stride"` // frames
	ConfidenceFloor float64       `yaml:"confidence_floor"`
	ScoreTimeout    time.Duration `yaml:"score_timeout"`
	ModelsDir       string        `yaml:"models_dir"`
	ShotLabels      []string      `yaml:"shot_labels"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Engine.DefaultFPS == 0 {
		cfg.Engine.DefaultFPS = 25
	}
	if cfg.Engine.WorkerCount == 0 {
		cfg.Engine.WorkerCount = 4
	}
	if cfg.Engine.DetectionFloor == 0 {
		cfg.Engine.DetectionFloor = 0.3
	}
	if cfg.Tracking.HitsToConfirm == 0 {
		cfg.Tracking.HitsToConfirm = 3
	}
	if cfg.Tracking.GraceWindow == 0 {
		cfg.Tracking.GraceWindow = 5
	}
	if cfg.Tracking.GatingDistance == 0 {
		cfg.Tracking.GatingDistance = 4.0
	}
	if cfg.Tracking.GatingDistancePx == 0 {
		cfg.Tracking.GatingDistancePx = 150
	}
	if cfg.Tracking.ProcessNoisePos == 0 {
		cfg.Tracking.ProcessNoisePos = 0.1
	}
	if cfg.Tracking.ProcessNoiseVel == 0 {
		cfg.Tracking.ProcessNoiseVel = 0.5
	}
	if cfg.Tracking.MeasurementNoise == 0 {
		cfg.Tracking.MeasurementNoise = 0.2
	}
	if cfg.Tracking.MaxTracks == 0 {
		cfg.Tracking.MaxTracks = 64
	}
	if cfg.Calibration.KeypointFloor == 0 {
		cfg.Calibration.KeypointFloor = 0.5
	}
	if cfg.Calibration.MinKeypoints == 0 {
		cfg.Calibration.MinKeypoints = 4
	}
	if cfg.Calibration.RansacRounds == 0 {
		cfg.Calibration.RansacRounds = 200
	}
	if cfg.Calibration.InlierThreshold == 0 {
		cfg.Calibration.InlierThreshold = 0.5
	}
	if cfg.Calibration.MaxResidual == 0 {
		cfg.Calibration.MaxResidual = 0.35
	}
	if cfg.Action.WindowSize == 0 {
		cfg.Action.WindowSize = 30
	}
	if cfg.Action.WindowStride == 0 {
		cfg.Action.WindowStride = 10
	}
	if cfg.Action.ConfidenceFloor == 0 {
		cfg.Action.ConfidenceFloor = 0.4
	}
	if cfg.Action.ScoreTimeout == 0 {
		cfg.Action.ScoreTimeout = 5 * time.Second
	}
	if len(cfg.Action.ShotLabels) == 0 {
		cfg.Action.ShotLabels = []string{"forehand", "backhand", "serve", "volley"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TA_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TA_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("TA_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("TA_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("TA_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("TA_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("TA_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("TA_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TA_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("TA_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("TA_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("TA_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("TA_MODELS_DIR"); v != "" {
		cfg.Action.ModelsDir = v
	}
	if v := os.Getenv("TA_ENGINE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.WorkerCount = n
		}
	}
}
