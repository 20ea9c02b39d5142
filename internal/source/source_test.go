package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
)

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFormat(t *testing.T) {
	tests := map[string]model.Feed{
		"csv":  {URL: "https://rss.app/feeds/abc.csv"},
		"json": {URL: "https://rss.app/feeds/abc.json?x=1"},
		"xml":  {URL: "https://rss.app/feeds/abc.xml"},
	}
	for want, feed := range tests {
		assert.Equal(t, want, Format(feed), feed.URL)
	}

	assert.Equal(t, "csv", Format(model.Feed{URL: "https://example.com/feed", Format: "csv"}))
	assert.Equal(t, "xml", Format(model.Feed{URL: "https://example.com/feed", Format: "auto"}))
}

func TestCSVSourceFetch(t *testing.T) {
	const body = "\ufeffTitle,Link,Date\n" +
		"Rates hold steady.,https://example.com/1,2024-05-02 09:15:00\n" +
		"\"Quoted, with comma.\",https://example.com/2,2024-05-02T06:00:00Z\n" +
		"Bad date row,https://example.com/3,not a date\n"
	srv := serve(t, "text/csv", body)

	src, err := New(model.Feed{Name: "feed1", URL: srv.URL + "/feed.csv"}, calendar.EAT, nil)
	require.NoError(t, err)
	assert.Equal(t, "feed1", src.Name())

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Rates hold steady.", items[0].Title)
	assert.Equal(t, "https://example.com/1", items[0].Link)
	assert.True(t, items[0].Date.Equal(time.Date(2024, 5, 2, 9, 15, 0, 0, calendar.EAT)))
	assert.Equal(t, "Quoted, with comma.", items[1].Title)
	assert.True(t, items[1].Date.Equal(time.Date(2024, 5, 2, 6, 0, 0, 0, time.UTC)))
}

func TestCSVSourceMissingColumn(t *testing.T) {
	srv := serve(t, "text/csv", "Name,When\nx,y\n")

	src, err := New(model.Feed{Name: "feed1", URL: srv.URL + "/feed.csv"}, calendar.EAT, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.Error(t, err)
}

func TestCSVSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := New(model.Feed{Name: "feed1", URL: srv.URL + "/feed.csv"}, calendar.EAT, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	assert.ErrorContains(t, err, "404")
}

func TestRSSSourceFetch(t *testing.T) {
	const body = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example</title>
  <link>https://example.com</link>
  <description>Example feed</description>
  <item>
    <title>Markets open higher.</title>
    <link>https://example.com/a</link>
    <guid>a</guid>
    <pubDate>Thu, 02 May 2024 09:00:00 +0300</pubDate>
  </item>
</channel>
</rss>`
	srv := serve(t, "application/rss+xml", body)

	src, err := New(model.Feed{Name: "feed2", URL: srv.URL + "/feed.xml"}, calendar.EAT, nil)
	require.NoError(t, err)

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Markets open higher.", items[0].Title)
	assert.Equal(t, "https://example.com/a", items[0].Link)
	assert.Equal(t, "feed2", items[0].FeedName)
	assert.True(t, items[0].Date.Equal(time.Date(2024, 5, 2, 9, 0, 0, 0, calendar.EAT)))
}

func TestJSONSourceFetch(t *testing.T) {
	const body = `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "Example",
  "items": [
    {"id": "1", "title": "Oil prices slip.", "url": "https://example.com/1", "date_published": "2024-05-02T07:30:00+03:00"},
    {"id": "2", "title": "Undated item."}
  ]
}`
	srv := serve(t, "application/feed+json", body)

	src, err := New(model.Feed{Name: "feed3", URL: srv.URL + "/feed.json"}, calendar.EAT, nil)
	require.NoError(t, err)

	items, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Oil prices slip.", items[0].Title)
	assert.True(t, items[0].Date.Equal(time.Date(2024, 5, 2, 7, 30, 0, 0, calendar.EAT)))
	assert.True(t, items[1].Date.IsZero())
}

func TestTodayItems(t *testing.T) {
	clock := calendar.Clock{
		Location: calendar.EAT,
		NowFunc:  func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, calendar.EAT) },
	}
	today := time.Date(2024, 5, 2, 8, 0, 0, 0, calendar.EAT)
	yesterday := today.AddDate(0, 0, -1)

	items := []model.Item{
		{Title: "one", Date: today},
		{Title: "old", Date: yesterday},
		{Title: "  ", Date: today},
		{Title: "two", Date: today},
		{Title: "undated"},
		{Title: "three", Date: today},
	}

	got := TodayItems(items, clock, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Title)
	assert.Equal(t, "two", got[1].Title)

	assert.Len(t, TodayItems(items, clock, 0), 3)
}
