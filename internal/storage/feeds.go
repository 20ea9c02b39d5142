package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/0x0BSoD/xbot/internal/model"
)

func feedFile(feed model.Feed) string {
	return feed.Name + ".json"
}

func (f *Files) loadFeed(feed model.Feed) (model.FeedState, error) {
	state := model.FeedState{URL: feed.URL}
	if err := f.readJSON(feedFile(feed), &state); err != nil {
		return state, err
	}
	return state, nil
}

// ClearOld drops fetch batches made before today.
func (f *Files) ClearOld(_ context.Context, feeds []model.Feed) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, feed := range feeds {
		state, err := f.loadFeed(feed)
		if err != nil {
			return fmt.Errorf("load %s: %w", feedFile(feed), err)
		}

		state.URL = feed.URL
		state.FetchedTweets = lo.Filter(state.FetchedTweets, func(b model.FeedBatch, _ int) bool {
			return f.today(b.FetchTimestamp)
		})
		if state.FetchedTweets == nil {
			state.FetchedTweets = []model.FeedBatch{}
		}

		if err := f.writeJSON(feedFile(feed), state); err != nil {
			return fmt.Errorf("write %s: %w", feedFile(feed), err)
		}
		slog.Info("cleared old feed data", "file", feedFile(feed), "batches_kept", len(state.FetchedTweets))
	}
	return nil
}

func (f *Files) StoreBatch(_ context.Context, feed model.Feed, texts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.loadFeed(feed)
	if err != nil {
		return fmt.Errorf("load %s: %w", feedFile(feed), err)
	}

	now := model.NewTimestamp(f.clock.Now())
	state.FetchedTweets = append(state.FetchedTweets, model.FeedBatch{
		FetchTimestamp: now,
		Tweets: lo.Map(texts, func(text string, _ int) model.StoredTweet {
			return model.StoredTweet{Timestamp: now, Text: text}
		}),
	})

	if err := f.writeJSON(feedFile(feed), state); err != nil {
		return fmt.Errorf("write %s: %w", feedFile(feed), err)
	}
	return nil
}

// MarkAIParsed flags every stored copy of text; the same item is stored again
// by each fetch of the day. Unknown texts are ignored.
func (f *Files) MarkAIParsed(_ context.Context, feed model.Feed, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.loadFeed(feed)
	if err != nil {
		return fmt.Errorf("load %s: %w", feedFile(feed), err)
	}

	updated := false
	for i := range state.FetchedTweets {
		for j := range state.FetchedTweets[i].Tweets {
			tweet := &state.FetchedTweets[i].Tweets[j]
			if tweet.Text == text && !tweet.AIParsed {
				tweet.AIParsed = true
				updated = true
			}
		}
	}

	if !updated {
		return nil
	}
	return f.writeJSON(feedFile(feed), state)
}

// LoadToday returns today's stored items across feeds, each text once, in
// feed then fetch order.
func (f *Files) LoadToday(_ context.Context, feeds []model.Feed) ([]model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		out  []model.Candidate
		seen = make(map[string]struct{})
	)
	for _, feed := range feeds {
		state, err := f.loadFeed(feed)
		if err != nil {
			slog.Warn("failed to load feed state", "file", feedFile(feed), "err", err)
			continue
		}

		for _, batch := range state.FetchedTweets {
			if !f.today(batch.FetchTimestamp) {
				continue
			}
			for _, tweet := range batch.Tweets {
				if _, ok := seen[tweet.Text]; ok {
					continue
				}
				seen[tweet.Text] = struct{}{}
				out = append(out, model.Candidate{Text: tweet.Text, AIParsed: tweet.AIParsed, Feed: feed})
			}
		}
	}
	return out, nil
}

// TodayStoredCount reports how many items each feed has stored today.
func (f *Files) TodayStoredCount(ctx context.Context, feeds []model.Feed) (map[string]int, error) {
	candidates, err := f.LoadToday(ctx, feeds)
	if err != nil {
		return nil, err
	}
	return lo.CountValuesBy(candidates, func(c model.Candidate) string { return c.Feed.Name }), nil
}
