// Package storage keeps the bot's state between runs: posted and skipped logs,
// per-feed fetch batches, the auth cache and the dry-run log. Everything is a
// small JSON (or text) file under one directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/model"
)

const (
	PostedLogFile  = "posted_log.json"
	SkippedLogFile = "skipped_tweets.json"
	DryRunLogFile  = "dry_run_log.txt"
	AuthCacheFile  = "auth_cache.json"
)

type Files struct {
	dir   string
	clock calendar.Clock

	mu sync.Mutex
}

// Open prepares dir and creates any missing state file with its empty default.
func Open(dir string, clock calendar.Clock) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	f := &Files{dir: dir, clock: clock}

	defaults := []struct {
		name    string
		content any
	}{
		{PostedLogFile, []any{}},
		{SkippedLogFile, []any{}},
		{AuthCacheFile, map[string]any{"valid_until": nil}},
	}
	for _, d := range defaults {
		if err := f.ensureJSON(d.name, d.content); err != nil {
			return nil, err
		}
	}

	if err := f.ensureText(DryRunLogFile); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *Files) Dir() string {
	return f.dir
}

// today reports whether ts falls on the current day; offset-less timestamps
// are read in the clock's zone.
func (f *Files) today(ts model.Timestamp) bool {
	return f.clock.SameDay(ts.Resolve(f.clock.Zone()))
}

func (f *Files) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *Files) ensureJSON(name string, content any) error {
	if _, err := os.Stat(f.path(name)); !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := f.writeJSON(name, content); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	slog.Info("created missing state file", "file", f.path(name))
	return nil
}

func (f *Files) ensureText(name string) error {
	file, err := os.OpenFile(f.path(name), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return file.Close()
}

// readJSON decodes name into v. A missing file leaves v untouched.
func (f *Files) readJSON(name string, v any) error {
	data, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// writeJSON replaces name atomically: the data goes to a temp file in the same
// directory which is then renamed over the target.
func (f *Files) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path(name))
}

// appendJSON adds entry to the JSON array stored in name.
func appendJSON[T any](f *Files, name string, entry T) error {
	var entries []T
	if err := f.readJSON(name, &entries); err != nil {
		return err
	}
	entries = append(entries, entry)
	return f.writeJSON(name, entries)
}
