package source

import (
	"context"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/0x0BSoD/xbot/internal/model"
)

// JSONSource reads JSON Feed documents. gofeed sniffs the payload, so a feed
// that turns out to be RSS or Atom is handled as well.
type JSONSource struct {
	Feed   model.Feed
	parser *gofeed.Parser
}

func NewJSONSource(feed model.Feed, client *http.Client) JSONSource {
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "xbot/1.0"
	return JSONSource{Feed: feed, parser: parser}
}

func (s JSONSource) Name() string {
	return s.Feed.Name
}

func (s JSONSource) Fetch(ctx context.Context) ([]model.Item, error) {
	feed, err := s.parser.ParseURLWithContext(s.Feed.URL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := model.Item{
			Title:    plainText(entry.Title),
			Link:     entry.Link,
			FeedName: s.Feed.Name,
		}
		if entry.PublishedParsed != nil {
			item.Date = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			item.Date = *entry.UpdatedParsed
		}
		items = append(items, item)
	}

	return items, nil
}
