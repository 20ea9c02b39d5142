package storage

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
)

// instant matches a time argument by the moment it denotes.
type instant time.Time

func (i instant) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(time.Time(i))
}

func newPostgres(t *testing.T, now time.Time) (*PostgresHistory, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS posted").WillReturnResult(sqlmock.NewResult(0, 0))

	clock := calendar.Clock{Location: calendar.EAT, NowFunc: func() time.Time { return now }}
	h, err := NewPostgresHistory(context.Background(), sqlx.NewDb(db, "postgres"), clock)
	require.NoError(t, err)
	return h, mock
}

func TestPostgresTodayPostedCountDayRange(t *testing.T) {
	// 23:59 EAT is 20:59 UTC; the window is still midnight to midnight in EAT.
	now := time.Date(2024, 5, 2, 23, 59, 0, 0, calendar.EAT)
	h, mock := newPostgres(t, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM posted WHERE posted_at >= $1 AND posted_at < $2`)).
		WithArgs(
			instant(time.Date(2024, 5, 2, 0, 0, 0, 0, calendar.EAT)),
			instant(time.Date(2024, 5, 3, 0, 0, 0, 0, calendar.EAT)),
		).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := h.TodayPostedCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProcessed(t *testing.T) {
	now := time.Date(2024, 5, 2, 0, 30, 0, 0, calendar.EAT)
	h, mock := newPostgres(t, now)

	mock.ExpectQuery(`SELECT original FROM posted\s+UNION\s+SELECT tweet FROM skipped WHERE skipped_at >= \$1 AND skipped_at < \$2`).
		WithArgs(
			instant(time.Date(2024, 5, 2, 0, 0, 0, 0, calendar.EAT)),
			instant(time.Date(2024, 5, 3, 0, 0, 0, 0, calendar.EAT)),
		).
		WillReturnRows(sqlmock.NewRows([]string{"original"}).AddRow("posted last week").AddRow("skipped today"))

	processed, err := h.Processed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"posted last week": {}, "skipped today": {}}, processed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppend(t *testing.T) {
	now := time.Date(2024, 5, 2, 10, 0, 0, 0, calendar.EAT)
	h, mock := newPostgres(t, now)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO posted (posted_at, original, posted, tweet_id, ai_used, run_id)`)).
		WithArgs(instant(now), "orig", "final", "1790", true, "run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, h.AppendPosted(context.Background(), model.PostedEntry{
		Original: "orig",
		Posted:   "final",
		TweetID:  "1790",
		AIUsed:   true,
		RunID:    "run-1",
	}))

	// An offset-less time from an imported log is stored as EAT wall time.
	var legacy model.SkippedEntry
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":"2024-05-01T22:30:00","tweet":"t","reason":"r"}`), &legacy))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO skipped (skipped_at, tweet, reason, evaluated)`)).
		WithArgs(instant(time.Date(2024, 5, 1, 22, 30, 0, 0, calendar.EAT)), "t", "r", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, h.AppendSkipped(context.Background(), legacy))
	assert.NoError(t, mock.ExpectationsWereMet())
}
