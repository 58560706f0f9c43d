package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/AymanAbodala/Tennis-analysis-project/internal/config"
	"github.com/AymanAbodala/Tennis-analysis-project/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Matches ---

func (s *PostgresStore) CreateMatch(ctx context.Context, m *models.Match) error {
	m.ID = uuid.New()
	m.Status = models.MatchStatusPending
	err := s.pool.QueryRow(ctx,
		`INSERT INTO matches (id, video_path, detections_key, keypoints_key, fps, frame_height, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		m.ID, m.VideoPath, m.DetectionsKey, m.KeypointsKey, m.FPS, m.FrameHeight, m.Status,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMatch(ctx context.Context, id uuid.UUID) (*models.Match, error) {
	m := &models.Match{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, video_path, detections_key, keypoints_key, fps, frame_height, status, error_message, created_at, updated_at
		 FROM matches WHERE id = $1`, id,
	).Scan(&m.ID, &m.VideoPath, &m.DetectionsKey, &m.KeypointsKey, &m.FPS, &m.FrameHeight,
		&m.Status, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMatches(ctx context.Context, limit, offset int) ([]models.Match, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_path, detections_key, keypoints_key, fps, frame_height, status, error_message, created_at, updated_at
		 FROM matches ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.ID, &m.VideoPath, &m.DetectionsKey, &m.KeypointsKey, &m.FPS, &m.FrameHeight,
			&m.Status, &m.ErrorMessage, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *PostgresStore) UpdateMatchStatus(ctx context.Context, id uuid.UUID, status models.MatchStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE matches SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	return err
}

func (s *PostgresStore) DeleteMatch(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match not found")
	}
	return nil
}

// --- Reports ---

// SaveReport stores the assembled report document for a match, replacing any
// previous one.
func (s *PostgresStore) SaveReport(ctx context.Context, matchID uuid.UUID, rep *models.MatchReport) error {
	doc, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (match_id, document) VALUES ($1, $2)
		 ON CONFLICT (match_id) DO UPDATE SET document = EXCLUDED.document, created_at = now()`,
		matchID, doc)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, matchID uuid.UUID) (*models.MatchReport, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM reports WHERE match_id = $1`, matchID,
	).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get report: %w", err)
	}
	rep := &models.MatchReport{}
	if err := json.Unmarshal(doc, rep); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return rep, nil
}

// --- Action windows ---

// ActionWindow is one accepted window persisted with its feature embedding
// for similarity search across matches.
type ActionWindow struct {
	ID         uuid.UUID `json:"id"`
	MatchID    uuid.UUID `json:"match_id"`
	TrackID    int64     `json:"track_id"`
	FrameStart int       `json:"frame_start"`
	FrameEnd   int       `json:"frame_end"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"-"`
}

func (s *PostgresStore) AddActionWindow(ctx context.Context, w *ActionWindow) error {
	w.ID = uuid.New()
	vec := pgvector.NewVector(w.Embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO action_windows (id, match_id, track_id, frame_start, frame_end, label, confidence, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.MatchID, w.TrackID, w.FrameStart, w.FrameEnd, w.Label, w.Confidence, vec)
	if err != nil {
		return fmt.Errorf("add action window: %w", err)
	}
	return nil
}

// WindowMatch is one similarity-search result.
type WindowMatch struct {
	WindowID   uuid.UUID `json:"window_id"`
	MatchID    uuid.UUID `json:"match_id"`
	Label      string    `json:"label"`
	FrameStart int       `json:"frame_start"`
	FrameEnd   int       `json:"frame_end"`
	Score      float32   `json:"score"`
}

// SearchWindows finds stored windows whose motion signature is closest to
// the query embedding, optionally restricted to one label.
func (s *PostgresStore) SearchWindows(ctx context.Context, embedding []float32, label string, limit int) ([]WindowMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)

	var query string
	var args []interface{}
	if label != "" {
		query = `
			SELECT id, match_id, label, frame_start, frame_end, 1 - (embedding <=> $1) AS score
			FROM action_windows
			WHERE label = $2
			ORDER BY embedding <=> $1
			LIMIT $3`
		args = []interface{}{vec, label, limit}
	} else {
		query = `
			SELECT id, match_id, label, frame_start, frame_end, 1 - (embedding <=> $1) AS score
			FROM action_windows
			ORDER BY embedding <=> $1
			LIMIT $2`
		args = []interface{}{vec, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search windows: %w", err)
	}
	defer rows.Close()

	var matches []WindowMatch
	for rows.Next() {
		var m WindowMatch
		if err := rows.Scan(&m.WindowID, &m.MatchID, &m.Label, &m.FrameStart, &m.FrameEnd, &m.Score); err != nil {
			return nil, fmt.Errorf("scan window match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}
