package fetcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
	"github.com/0x0BSoD/xbot/internal/source"
)

type memBatches struct {
	mu      sync.Mutex
	cleared bool
	stored  map[string][]string
}

func (m *memBatches) ClearOld(context.Context, []model.Feed) error {
	m.cleared = true
	return nil
}

func (m *memBatches) StoreBatch(_ context.Context, feed model.Feed, texts []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		m.stored = map[string][]string{}
	}
	m.stored[feed.Name] = append(m.stored[feed.Name], texts...)
	return nil
}

type staticSource struct {
	name  string
	items []model.Item
	err   error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Fetch(context.Context) ([]model.Item, error) { return s.items, s.err }

func TestFetch(t *testing.T) {
	now := time.Date(2024, 5, 2, 12, 0, 0, 0, calendar.EAT)
	clock := calendar.Clock{Location: calendar.EAT, NowFunc: func() time.Time { return now }}
	today := now.Add(-time.Hour)

	feeds := []model.Feed{
		{Name: "feed1", Limit: 2},
		{Name: "feed2", Limit: 10},
		{Name: "feed3", Limit: 10},
	}
	sources := map[string]source.Source{
		"feed1": staticSource{name: "feed1", items: []model.Item{
			{Title: "a", Date: today},
			{Title: "b", Date: today.AddDate(0, 0, -1)},
			{Title: "c", Date: today},
			{Title: "d", Date: today},
		}},
		"feed2": staticSource{name: "feed2", err: errors.New("timeout")},
		"feed3": staticSource{name: "feed3", items: []model.Item{{Title: "old", Date: today.AddDate(0, 0, -2)}}},
	}

	batches := &memBatches{}
	f := New(feeds, batches, func(feed model.Feed) (source.Source, error) {
		return sources[feed.Name], nil
	}, clock)

	total, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.True(t, batches.cleared)
	assert.Equal(t, 2, total)
	assert.Equal(t, map[string][]string{"feed1": {"a", "c"}}, batches.stored)
}

func TestFetchSourceFactoryError(t *testing.T) {
	batches := &memBatches{}
	f := New([]model.Feed{{Name: "feed1"}}, batches, func(model.Feed) (source.Source, error) {
		return nil, errors.New("unknown format")
	}, calendar.New(calendar.EAT))

	total, err := f.Fetch(context.Background())

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, batches.stored)
}
