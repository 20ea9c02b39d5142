package source

import (
	"context"
	"net/http"

	"github.com/SlyMarbo/rss"
	"github.com/samber/lo"

	"github.com/0x0BSoD/xbot/internal/model"
)

// contextTransport injects a context into every outgoing request so that
// context cancellation and deadlines propagate through the rss library.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

type RSSSource struct {
	Feed   model.Feed
	Client *http.Client
}

func (s RSSSource) Name() string {
	return s.Feed.Name
}

func (s RSSSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.loadFeed(ctx)
	if err != nil {
		return nil, err
	}

	return lo.Map(feed.Items, func(item *rss.Item, _ int) model.Item {
		return model.Item{
			Title:    plainText(item.Title),
			Link:     item.Link,
			Date:     item.Date,
			FeedName: s.Feed.Name,
		}
	}), nil
}

func (s RSSSource) loadFeed(ctx context.Context) (*rss.Feed, error) {
	base := s.Client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client := &http.Client{
		Transport: contextTransport{ctx: ctx, base: base},
		Timeout:   s.Client.Timeout,
	}
	return rss.FetchByClient(s.Feed.URL, client)
}
