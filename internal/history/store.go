// Package history persists a log of synthesis requests in SQLite, with
// configurable retention. It doubles as the pipeline's Recorder.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/synth"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite-backed synthesis log. With retention_mode=ephemeral
// no database is opened and every operation is a no-op.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the history store according to config.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS synthesis_requests (
    id TEXT PRIMARY KEY,
    speaker TEXT NOT NULL,
    language TEXT NOT NULL,
    text_chars INTEGER NOT NULL,
    took_ms INTEGER NOT NULL,
    audio_seconds REAL,
    status TEXT NOT NULL,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_synthesis_created ON synthesis_requests(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes one synthesis record.
func (s *Store) Append(ctx context.Context, rec synth.Record) error {
	if s.db == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO synthesis_requests(id, speaker, language, text_chars, took_ms, audio_seconds, status, error, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Speaker, rec.Language, rec.TextChars, rec.Took.Milliseconds(),
		rec.AudioSeconds, rec.Status, rec.Error, rec.CreatedAt)
	return err
}

// Record satisfies synth.Recorder; persistence failures are logged, never
// surfaced into the pipeline.
func (s *Store) Record(ctx context.Context, rec synth.Record) {
	if err := s.Append(ctx, rec); err != nil {
		s.log.Warn("failed to record synthesis history", slog.String("error", err.Error()))
	}
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]synth.Record, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, speaker, language, text_chars, took_ms, audio_seconds, status, error, created_at
		 FROM synthesis_requests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []synth.Record
	for rows.Next() {
		var rec synth.Record
		var tookMS int64
		var created string
		if err := rows.Scan(&rec.ID, &rec.Speaker, &rec.Language, &rec.TextChars,
			&tookMS, &rec.AudioSeconds, &rec.Status, &rec.Error, &created); err != nil {
			return nil, err
		}
		rec.Took = time.Duration(tookMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune applies configured retention: drop records past the day cutoff,
// then cap the table at max_records newest rows.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM synthesis_requests WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxRecords > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM synthesis_requests WHERE id IN (
			SELECT id FROM synthesis_requests ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxRecords)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
