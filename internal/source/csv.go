package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/0x0BSoD/xbot/internal/model"
)

// CSVSource reads rss.app CSV exports: a header row with at least Title and
// Date columns. Dates without a zone are taken to be in Location.
type CSVSource struct {
	Feed     model.Feed
	Location *time.Location
	Client   *http.Client
}

func (s CSVSource) Name() string {
	return s.Feed.Name
}

func (s CSVSource) Fetch(ctx context.Context) ([]model.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Feed.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv, */*")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	return s.parse(resp.Body)
}

func (s CSVSource) parse(r io.Reader) ([]model.Item, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}

	titleCol, ok := columns["title"]
	if !ok {
		return nil, errors.New("csv has no Title column")
	}
	dateCol, ok := columns["date"]
	if !ok {
		return nil, errors.New("csv has no Date column")
	}
	linkCol, hasLink := columns["link"]

	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}

	var items []model.Item
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		date, err := dateparse.ParseIn(strings.TrimSpace(field(record, dateCol)), loc)
		if err != nil {
			slog.Debug("dropping csv row with bad date", "feed", s.Feed.Name, "date", field(record, dateCol))
			continue
		}

		item := model.Item{
			Title:    plainText(field(record, titleCol)),
			Date:     date,
			FeedName: s.Feed.Name,
		}
		if hasLink {
			item.Link = field(record, linkCol)
		}
		items = append(items, item)
	}

	return items, nil
}

func field(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}
