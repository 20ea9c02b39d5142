package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/samber/lo"

	"github.com/0x0BSoD/xbot/internal/model"
)

func (f *Files) AppendPosted(_ context.Context, entry model.PostedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = model.NewTimestamp(f.clock.Now())
	}
	if err := appendJSON(f, PostedLogFile, entry); err != nil {
		return fmt.Errorf("append posted log: %w", err)
	}
	return nil
}

func (f *Files) AppendSkipped(_ context.Context, entry model.SkippedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = model.NewTimestamp(f.clock.Now())
	}
	if err := appendJSON(f, SkippedLogFile, entry); err != nil {
		return fmt.Errorf("append skipped log: %w", err)
	}
	return nil
}

func (f *Files) Posted(_ context.Context) ([]model.PostedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var posted []model.PostedEntry
	if err := f.readJSON(PostedLogFile, &posted); err != nil {
		return nil, err
	}
	return posted, nil
}

func (f *Files) Skipped(_ context.Context) ([]model.SkippedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var skipped []model.SkippedEntry
	if err := f.readJSON(SkippedLogFile, &skipped); err != nil {
		return nil, err
	}
	return skipped, nil
}

// TodayPostedCount counts posted log entries (dry runs included) made today.
func (f *Files) TodayPostedCount(ctx context.Context) (int, error) {
	posted, err := f.Posted(ctx)
	if err != nil {
		return 0, err
	}
	return lo.CountBy(posted, func(e model.PostedEntry) bool {
		return f.today(e.Timestamp)
	}), nil
}

// Processed returns every text that must not be evaluated again: all posted
// originals, plus items skipped today. Skips expire at the end of the day.
func (f *Files) Processed(ctx context.Context) (map[string]struct{}, error) {
	posted, err := f.Posted(ctx)
	if err != nil {
		return nil, err
	}
	skipped, err := f.Skipped(ctx)
	if err != nil {
		return nil, err
	}

	processed := make(map[string]struct{}, len(posted)+len(skipped))
	for _, e := range posted {
		processed[e.Original] = struct{}{}
	}
	for _, e := range skipped {
		if f.today(e.Timestamp) {
			processed[e.Tweet] = struct{}{}
		}
	}
	return processed, nil
}

func (f *Files) AppendDryRun(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path(DryRunLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open dry-run log: %w", err)
	}
	defer file.Close()

	line := f.clock.Now().Format("2006-01-02T15:04:05.000000") + ": " + text + "\n"
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("write dry-run log: %w", err)
	}
	return nil
}
