package fetcher

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
	"github.com/0x0BSoD/xbot/internal/source"
)

type BatchStorage interface {
	ClearOld(ctx context.Context, feeds []model.Feed) error
	StoreBatch(ctx context.Context, feed model.Feed, texts []string) error
}

type SourceFactory func(feed model.Feed) (source.Source, error)

type Fetcher struct {
	feeds     []model.Feed
	batches   BatchStorage
	newSource SourceFactory
	clock     calendar.Clock
}

func New(
	feeds []model.Feed,
	batches BatchStorage,
	newSource SourceFactory,
	clock calendar.Clock,
) *Fetcher {
	return &Fetcher{
		feeds:     feeds,
		batches:   batches,
		newSource: newSource,
		clock:     clock,
	}
}

// Fetch drops yesterday's batches, then pulls today's items from every feed
// in parallel and stores each non-empty batch. It returns how many items were
// fetched. A failing feed contributes nothing and does not fail the fetch.
func (f *Fetcher) Fetch(ctx context.Context) (int, error) {
	if err := f.batches.ClearOld(ctx, f.feeds); err != nil {
		slog.Error("failed to clear old feed data", "err", err)
	}

	results := make([][]model.Item, len(f.feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range f.feeds {
		g.Go(func() error {
			results[i] = f.fetchFeed(gctx, feed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for i, feed := range f.feeds {
		items := results[i]
		if len(items) == 0 {
			slog.Warn("no items found for today", "feed", feed.Name, "url", feed.URL)
			continue
		}

		texts := lo.Map(items, func(item model.Item, _ int) string { return item.Title })
		if err := f.batches.StoreBatch(ctx, feed, texts); err != nil {
			slog.Error("failed to store feed batch", "feed", feed.Name, "err", err)
			continue
		}

		slog.Info("stored feed batch", "feed", feed.Name, "count", len(texts))
		total += len(texts)
	}

	return total, ctx.Err()
}

func (f *Fetcher) fetchFeed(ctx context.Context, feed model.Feed) []model.Item {
	slog.Info("fetching feed", "feed", feed.Name, "url", feed.URL)

	src, err := f.newSource(feed)
	if err != nil {
		slog.Error("failed to create source", "feed", feed.Name, "err", err)
		return nil
	}

	items, err := src.Fetch(ctx)
	if err != nil {
		slog.Error("feed fetch error", "feed", feed.Name, "url", feed.URL, "err", err)
		return nil
	}

	today := source.TodayItems(items, f.clock, feed.Limit)
	slog.Info("fetched feed", "feed", feed.Name, "today", len(today), "total", len(items), "date", f.clock.Date())
	return today
}
