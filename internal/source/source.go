// Package source fetches feed items in the formats rss.app publishes: CSV, RSS/Atom XML and JSON Feed.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
)

const fetchTimeout = 30 * time.Second

type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Item, error)
}

// New picks the parser for a feed. Format "auto" looks at the URL's extension
// and defaults to XML.
func New(feed model.Feed, loc *time.Location, client *http.Client) (Source, error) {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	switch format := Format(feed); format {
	case "csv":
		return CSVSource{Feed: feed, Location: loc, Client: client}, nil
	case "xml":
		return RSSSource{Feed: feed, Client: client}, nil
	case "json":
		return NewJSONSource(feed, client), nil
	default:
		return nil, fmt.Errorf("feed %s: unknown format %q", feed.Name, format)
	}
}

func Format(feed model.Feed) string {
	if feed.Format != "" && feed.Format != "auto" {
		return feed.Format
	}

	p := feed.URL
	if u, err := url.Parse(feed.URL); err == nil {
		p = u.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	default:
		return "xml"
	}
}

// TodayItems keeps items dated today that carry a title, at most limit of
// them, in feed order. A non-positive limit keeps all.
func TodayItems(items []model.Item, clock calendar.Clock, limit int) []model.Item {
	today := lo.Filter(items, func(item model.Item, _ int) bool {
		return strings.TrimSpace(item.Title) != "" && clock.SameDay(item.Date)
	})

	if limit > 0 && len(today) > limit {
		today = today[:limit]
	}
	return today
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
