package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS posted (
	id         BIGSERIAL PRIMARY KEY,
	posted_at  TIMESTAMPTZ NOT NULL,
	original   TEXT NOT NULL,
	posted     TEXT NOT NULL,
	tweet_id   TEXT NOT NULL,
	ai_used    BOOLEAN NOT NULL DEFAULT FALSE,
	run_id     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS posted_original_idx ON posted (original);
CREATE INDEX IF NOT EXISTS posted_at_idx ON posted (posted_at);

CREATE TABLE IF NOT EXISTS skipped (
	id         BIGSERIAL PRIMARY KEY,
	skipped_at TIMESTAMPTZ NOT NULL,
	tweet      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	evaluated  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS skipped_at_idx ON skipped (skipped_at);
`

// PostgresHistory keeps the posted and skipped logs in Postgres, for
// deployments where several hosts share one account's quota.
type PostgresHistory struct {
	db    *sqlx.DB
	clock calendar.Clock
}

func NewPostgresHistory(ctx context.Context, db *sqlx.DB, clock calendar.Clock) (*PostgresHistory, error) {
	if _, err := db.ExecContext(ctx, historySchema); err != nil {
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &PostgresHistory{db: db, clock: clock}, nil
}

func (s *PostgresHistory) AppendPosted(ctx context.Context, entry model.PostedEntry) error {
	entry.Timestamp = model.NewTimestamp(entry.Timestamp.Resolve(s.clock.Zone()))
	if entry.Timestamp.IsZero() {
		entry.Timestamp = model.NewTimestamp(s.clock.Now())
	}

	if _, err := s.db.NamedExecContext(
		ctx,
		`INSERT INTO posted (posted_at, original, posted, tweet_id, ai_used, run_id)
			VALUES (:posted_at, :original, :posted, :tweet_id, :ai_used, :run_id)`,
		entry,
	); err != nil {
		return fmt.Errorf("insert posted: %w", err)
	}
	return nil
}

func (s *PostgresHistory) AppendSkipped(ctx context.Context, entry model.SkippedEntry) error {
	entry.Timestamp = model.NewTimestamp(entry.Timestamp.Resolve(s.clock.Zone()))
	if entry.Timestamp.IsZero() {
		entry.Timestamp = model.NewTimestamp(s.clock.Now())
	}

	if _, err := s.db.NamedExecContext(
		ctx,
		`INSERT INTO skipped (skipped_at, tweet, reason, evaluated)
			VALUES (:skipped_at, :tweet, :reason, :evaluated)`,
		entry,
	); err != nil {
		return fmt.Errorf("insert skipped: %w", err)
	}
	return nil
}

func (s *PostgresHistory) TodayPostedCount(ctx context.Context) (int, error) {
	from, to := s.todayRange()

	var count int
	if err := s.db.GetContext(
		ctx,
		&count,
		`SELECT COUNT(*) FROM posted WHERE posted_at >= $1 AND posted_at < $2`,
		from, to,
	); err != nil {
		return 0, fmt.Errorf("count posted: %w", err)
	}
	return count, nil
}

func (s *PostgresHistory) Processed(ctx context.Context) (map[string]struct{}, error) {
	from, to := s.todayRange()

	var texts []string
	if err := s.db.SelectContext(
		ctx,
		&texts,
		`SELECT original FROM posted
		UNION
		SELECT tweet FROM skipped WHERE skipped_at >= $1 AND skipped_at < $2`,
		from, to,
	); err != nil {
		return nil, fmt.Errorf("select processed: %w", err)
	}

	processed := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		processed[t] = struct{}{}
	}
	return processed, nil
}

func (s *PostgresHistory) todayRange() (from, to time.Time) {
	today := s.clock.Today()
	return today, today.AddDate(0, 0, 1)
}
