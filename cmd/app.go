// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/config"
	"github.com/0x0BSoD/xbot/internal/fetcher"
	"github.com/0x0BSoD/xbot/internal/filter"
	"github.com/0x0BSoD/xbot/internal/model"
	"github.com/0x0BSoD/xbot/internal/poster"
	"github.com/0x0BSoD/xbot/internal/publisher"
	"github.com/0x0BSoD/xbot/internal/reporter"
	"github.com/0x0BSoD/xbot/internal/runner"
	"github.com/0x0BSoD/xbot/internal/source"
	"github.com/0x0BSoD/xbot/internal/storage"
	"github.com/0x0BSoD/xbot/internal/summary"
)

const feedTimeout = 30 * time.Second

type history interface {
	runner.History
	publisher.PostedLog
}

type app struct {
	clock   calendar.Clock
	files   *storage.Files
	history history
	filter  *filter.Filter
	runner  *runner.Runner
	db      *sqlx.DB
}

// newState opens the state directory and, when DATABASE_DSN is set, the
// Postgres history that replaces the posted and skipped JSON logs.
func newState(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{clock: calendar.New(calendar.Load(cfg.Timezone))}

	files, err := storage.Open(cfg.StateDir, a.clock)
	if err != nil {
		return nil, err
	}
	a.files = files
	a.history = files

	if cfg.DatabaseDSN != "" {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		pg, err := storage.NewPostgresHistory(ctx, db, a.clock)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		a.history = pg
		slog.Info("using postgres history")
	}

	a.filter, err = filter.New(cfg.BlockedKeywords, cfg.PersonalWords)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a, err := newState(ctx, cfg)
	if err != nil {
		return nil, err
	}

	feeds := cfg.Feeds()
	client := &http.Client{Timeout: feedTimeout}

	f := fetcher.New(feeds, a.files, func(feed model.Feed) (source.Source, error) {
		return source.New(feed, a.clock.Location, client)
	}, a.clock)

	rewriter := summary.NewRewriter(
		newCompleter(cfg),
		cfg.AIRetryAttempts,
		lo.Ternary(len(cfg.BlockedKeywords) > 0, cfg.BlockedKeywords, filter.DefaultBlockedKeywords),
		lo.Ternary(len(cfg.PersonalWords) > 0, cfg.PersonalWords, filter.DefaultPersonalWords),
	).WithRateLimit(cfg.AIRequestsPerMinute)

	var (
		auth    publisher.Authenticator
		p       poster.Poster
		spacing = cfg.SleepBetweenPostsDuration()
	)
	if cfg.HasCredentials() {
		x := poster.NewX(cfg.XAPIBaseURL, cfg.ConsumerKey, cfg.ConsumerSecret, cfg.AccessToken, cfg.AccessTokenSecret)
		auth, p = x, x
	}
	if cfg.DryRun {
		p = poster.NewDryRun(a.files)
		spacing = 0
		slog.Info("dry run: nothing will be posted")
	}

	pub := publisher.New(
		auth,
		a.files,
		poster.NewRetrying(p, cfg.MaxRetries, cfg.RateLimitWaitDuration()),
		a.history,
		spacing,
	)

	rep, err := reporter.Connect(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
	if err != nil {
		slog.Warn("admin notifications disabled", "err", err)
	}

	a.runner = runner.New(
		runner.OptionsFromConfig(cfg),
		a.history,
		a.files,
		a.files,
		f,
		a.filter,
		rewriter,
		pub,
		rep,
		a.clock,
	)

	return a, nil
}

// newCompleter picks the LLM backend. A missing key or URL disables AI and
// items are posted truncated instead.
func newCompleter(cfg config.Config) summary.Completer {
	switch cfg.AIType {
	case "ollama":
		if cfg.AIBaseURL == "" {
			slog.Warn("ai_base_url is required when ai_type is \"ollama\"; AI disabled")
			return nil
		}
		slog.Info("using Ollama completer", "model", cfg.AIModel)
		return summary.NewOllamaCompleter(cfg.AIBaseURL, cfg.AIModel, cfg.AIMaxTokens, cfg.AITemperature, cfg.AITimeout)
	default:
		if cfg.AIKey == "" {
			slog.Warn("OPENROUTER_API_KEY not set; AI disabled")
			return nil
		}
		slog.Info("using OpenAI-compatible completer", "model", cfg.AIModel, "base_url", cfg.AIBaseURL)
		return summary.NewOpenAICompleter(cfg.AIBaseURL, cfg.AIKey, cfg.AIModel, cfg.AIMaxTokens, cfg.AITemperature, cfg.AITimeout)
	}
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			slog.Warn("failed to close db", "err", err)
		}
	}
}
