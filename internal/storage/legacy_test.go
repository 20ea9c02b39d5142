package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/xbot/internal/model"
)

// State files as written by the earlier bot: isoformat() timestamps without
// a UTC offset, mixed with offset-aware ones.
const (
	legacyPosted = `[
  {"timestamp": "2024-05-02T10:15:30.123456", "original": "posted today", "posted": "p1", "tweet_id": "1", "ai_used": true},
  {"timestamp": "2024-05-01T22:30:00", "original": "posted yesterday evening", "posted": "p2", "tweet_id": "2", "ai_used": false},
  {"timestamp": "2024-05-01T22:30:00+00:00", "original": "posted after midnight", "posted": "p3", "tweet_id": "dry-run", "ai_used": false}
]`
	legacySkipped = `[
  {"timestamp": "2024-05-02T08:00:00.5", "tweet": "skipped today", "reason": "blocked keyword: 'event'"},
  {"timestamp": "2024-05-01T09:00:00.000001", "tweet": "skipped yesterday", "reason": "thread pattern"}
]`
	legacyFeed = `{
  "url": "https://rss.app/feeds/one.csv",
  "fetched_tweets": [
    {"fetch_timestamp": "2024-05-01T09:00:00.000001", "tweets": [
      {"timestamp": "2024-05-01T09:00:00.000001", "text": "stale", "ai_parsed": false}
    ]},
    {"fetch_timestamp": "2024-05-02T09:00:00.000001", "tweets": [
      {"timestamp": "2024-05-02T09:00:00.000001", "text": "fresh", "ai_parsed": true}
    ]}
  ]
}`
)

func seedLegacy(t *testing.T, dir string) {
	t.Helper()
	for name, content := range map[string]string{
		PostedLogFile:  legacyPosted,
		SkippedLogFile: legacySkipped,
		"feed1.json":   legacyFeed,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestLegacyStateFiles(t *testing.T) {
	ctx := context.Background()
	f, now := openFiles(t)
	seedLegacy(t, f.Dir())

	_, err := Open(f.Dir(), now.clock())
	require.NoError(t, err)

	// Offset-less times are wall times in the bot's zone (EAT): 22:30 on
	// May 1st is yesterday, while 22:30 UTC is already May 2nd in EAT.
	count, err := f.TodayPostedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	processed, err := f.Processed(ctx)
	require.NoError(t, err)
	assert.Contains(t, processed, "posted today")
	assert.Contains(t, processed, "posted yesterday evening")
	assert.Contains(t, processed, "skipped today")
	assert.NotContains(t, processed, "skipped yesterday")

	feed := model.Feed{Name: "feed1", URL: "https://rss.app/feeds/one.csv"}
	got, err := f.LoadToday(ctx, []model.Feed{feed})
	require.NoError(t, err)
	assert.Equal(t, []model.Candidate{{Text: "fresh", AIParsed: true, Feed: feed}}, got)

	require.NoError(t, f.ClearOld(ctx, []model.Feed{feed}))
	require.NoError(t, f.StoreBatch(ctx, feed, []string{"newer"}))

	data, err := os.ReadFile(filepath.Join(f.Dir(), "feed1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
	assert.Contains(t, string(data), `"2024-05-02T09:00:00.000001"`)

	got, err = f.LoadToday(ctx, []model.Feed{feed})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[1].Text)

	require.NoError(t, f.AppendSkipped(ctx, model.SkippedEntry{Tweet: "another", Reason: "r"}))
	skipped, err := f.Skipped(ctx)
	require.NoError(t, err)
	require.Len(t, skipped, 3)
	assert.True(t, skipped[0].Timestamp.Naive())
	assert.False(t, skipped[2].Timestamp.Naive())
}
