package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/etl"
	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/storage/models"
	"github.com/marketlens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		description TEXT,
		keywords TEXT,
		location TEXT,
		status TEXT NOT NULL,
		segment_count INTEGER DEFAULT 0,
		article_count INTEGER DEFAULT 0,
		output TEXT,
		processing_time REAL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON analysis_runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON analysis_runs(created_at);

	CREATE TABLE IF NOT EXISTS run_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		source TEXT NOT NULL,
		succeeded INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES analysis_runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_run_sources_run ON run_sources(run_id);

	CREATE TABLE IF NOT EXISTS system_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		metric_name TEXT NOT NULL,
		metric_value REAL NOT NULL,
		tags TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_name ON system_metrics(metric_name);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database schema initialized")
	return nil
}

func (c *Client) InsertRun(run *models.AnalysisRun) error {
	keywords, err := json.Marshal(run.Keywords)
	if err != nil {
		return fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO analysis_runs (id, description, keywords, location, status, segment_count,
			article_count, output, processing_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(
		query,
		run.ID,
		run.Description,
		string(keywords),
		run.Location,
		run.Status,
		run.SegmentCount,
		run.ArticleCount,
		run.Output,
		run.ProcessingTime,
		run.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}

	logger.Info("Analysis run recorded",
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
		zap.Int("segments", run.SegmentCount),
	)

	return nil
}

func (c *Client) InsertRunSource(source *models.RunSource) error {
	query := `INSERT INTO run_sources (run_id, source, succeeded) VALUES (?, ?, ?)`

	succeeded := 0
	if source.Succeeded {
		succeeded = 1
	}

	_, err := c.db.Exec(query, source.RunID, source.Source, succeeded)
	if err != nil {
		return fmt.Errorf("failed to insert run source: %w", err)
	}

	return nil
}

func (c *Client) GetRun(id string) (*models.AnalysisRun, error) {
	query := `SELECT id, description, keywords, location, status, segment_count, article_count,
		output, processing_time, created_at FROM analysis_runs WHERE id = ?`

	var run models.AnalysisRun
	var keywordsJSON string
	var createdAt int64

	err := c.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.Description,
		&keywordsJSON,
		&run.Location,
		&run.Status,
		&run.SegmentCount,
		&run.ArticleCount,
		&run.Output,
		&run.ProcessingTime,
		&createdAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get analysis run: %w", err)
	}

	if keywordsJSON != "" {
		if err := json.Unmarshal([]byte(keywordsJSON), &run.Keywords); err != nil {
			logger.Warn("Failed to unmarshal run keywords", zap.String("run_id", id), zap.Error(err))
		}
	}
	run.CreatedAt = time.Unix(createdAt, 0)

	return &run, nil
}

func (c *Client) ListRuns(limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, description, location, status, segment_count, processing_time, created_at
		FROM analysis_runs ORDER BY created_at DESC LIMIT ?`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		var createdAt int64
		err := rows.Scan(&r.ID, &r.Description, &r.Location, &r.Status, &r.SegmentCount, &r.ProcessingTime, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func (c *Client) RecordMetric(name string, value float64, tags map[string]string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `INSERT INTO system_metrics (metric_name, metric_value, tags, timestamp) VALUES (?, ?, ?, ?)`

	_, err = c.db.Exec(query, name, value, string(tagsJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}

	return nil
}

// SaveRun persists a finished pipeline output together with per-source status.
func (c *Client) SaveRun(_ context.Context, req etl.Request, out *market.Output) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	run := &models.AnalysisRun{
		ID:             out.RequestID,
		Description:    req.Description,
		Keywords:       req.Keywords,
		Location:       req.Location,
		Status:         out.Status,
		SegmentCount:   len(out.Segments),
		ArticleCount:   len(out.NewsArticles),
		Output:         string(payload),
		ProcessingTime: out.ProcessingTime,
		CreatedAt:      out.Timestamp,
	}
	if err := c.InsertRun(run); err != nil {
		return err
	}

	for _, source := range out.Metadata.Sources {
		name := strings.TrimSuffix(source, " (Error Fallback)")
		err := c.InsertRunSource(&models.RunSource{
			RunID:     out.RequestID,
			Source:    name,
			Succeeded: name == source,
		})
		if err != nil {
			logger.Warn("Failed to record run source", zap.String("run_id", out.RequestID), zap.Error(err))
		}
	}

	return nil
}
