// Package store archives completed research runs in Postgres. The archive is
// optional: with no DSN configured the rest of the system runs stateless.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/FRAMEEE17/MonkeyResearcher/config"
	"github.com/FRAMEEE17/MonkeyResearcher/internal/research"
)

// RunRecord is one archived research run.
type RunRecord struct {
	ID               string            `json:"id"`
	Topic            string            `json:"topic"`
	Report           string            `json:"report"`
	Summary          string            `json:"summary"`
	Sources          []research.Source `json:"sources"`
	Intent           string            `json:"intent"`
	Strategy         string            `json:"strategy"`
	LoopCount        int               `json:"loop_count"`
	PromptTokens     int64             `json:"prompt_tokens"`
	CompletionTokens int64             `json:"completion_tokens"`
	DurationMS       int64             `json:"duration_ms"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Store wraps the archive database.
type Store struct {
	DB     *sql.DB
	logger *log.Logger
}

// Open connects to the archive. Returns (nil, nil) when no Postgres is
// configured; callers treat a nil *Store as "archiving off".
func Open(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, nil
	}
	return OpenDSN(ctx, dsn)
}

// OpenDSN connects to the archive at an explicit DSN.
func OpenDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db, logger: log.New(log.Writer(), "[STORE] ", log.LstdFlags)}, nil
}

// SaveRun upserts one finished run. Re-saving the same run id overwrites the
// previous row, which makes retried archive writes safe.
func (s *Store) SaveRun(ctx context.Context, res *research.Result) error {
	sources, err := json.Marshal(res.State.SourcesGathered)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO research_runs (id, topic, report, summary, sources, intent, strategy,
			loop_count, prompt_tokens, completion_tokens, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			report = EXCLUDED.report,
			summary = EXCLUDED.summary,
			sources = EXCLUDED.sources,
			intent = EXCLUDED.intent,
			strategy = EXCLUDED.strategy,
			loop_count = EXCLUDED.loop_count,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			duration_ms = EXCLUDED.duration_ms`,
		res.RunID, res.Topic, res.Report, res.State.RunningSummary, sources,
		res.State.Intent(), res.State.SearchStrategy, res.State.ResearchLoopCount,
		res.State.PromptTokens, res.State.CompletionTokens, res.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	return nil
}

// GetRun loads one archived run. The bool reports whether it exists.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	var rec RunRecord
	var sources []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, topic, report, summary, sources, intent, strategy,
			loop_count, prompt_tokens, completion_tokens, duration_ms, created_at
		FROM research_runs WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Topic, &rec.Report, &rec.Summary, &sources, &rec.Intent, &rec.Strategy,
			&rec.LoopCount, &rec.PromptTokens, &rec.CompletionTokens, &rec.DurationMS, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("get run %s: %w", id, err)
	}
	if err := json.Unmarshal(sources, &rec.Sources); err != nil {
		s.logger.Printf("corrupt sources for run %s: %v", id, err)
	}
	return rec, true, nil
}

// ListRuns returns the newest archived runs without their report bodies.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, topic, summary, intent, strategy,
			loop_count, prompt_tokens, completion_tokens, duration_ms, created_at
		FROM research_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Summary, &rec.Intent, &rec.Strategy,
			&rec.LoopCount, &rec.PromptTokens, &rec.CompletionTokens, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.DB.Close()
}
