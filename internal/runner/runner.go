package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/0x0BSoD/xbot/internal/calendar"
	"github.com/0x0BSoD/xbot/internal/compose"
	"github.com/0x0BSoD/xbot/internal/config"
	"github.com/0x0BSoD/xbot/internal/filter"
	"github.com/0x0BSoD/xbot/internal/model"
	"github.com/0x0BSoD/xbot/internal/publisher"
	"github.com/0x0BSoD/xbot/internal/summary"
)

type History interface {
	TodayPostedCount(ctx context.Context) (int, error)
	Processed(ctx context.Context) (map[string]struct{}, error)
	AppendSkipped(ctx context.Context, entry model.SkippedEntry) error
}

type FeedStore interface {
	LoadToday(ctx context.Context, feeds []model.Feed) ([]model.Candidate, error)
	MarkAIParsed(ctx context.Context, feed model.Feed, text string) error
}

type AuthStore interface {
	ClearExpiredAuth(ctx context.Context) error
}

type Fetcher interface {
	Fetch(ctx context.Context) (int, error)
}

type Publisher interface {
	Authenticate(ctx context.Context) error
	Publish(ctx context.Context, posts []publisher.Post, runID string) (int, error)
}

type Reporter interface {
	Notify(msg string)
}

// Options are the per-run limits, usually taken from config.
type Options struct {
	Feeds              []model.Feed
	DryRun             bool
	HasCredentials     bool
	PostsPerRun        int
	DailyPostLimit     int
	MaxAIRequests      int
	RiskAssessment     bool
	BlockRiskThreshold float64
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Feeds:              cfg.Feeds(),
		DryRun:             cfg.DryRun,
		HasCredentials:     cfg.HasCredentials(),
		PostsPerRun:        cfg.PostsPerRun,
		DailyPostLimit:     cfg.DailyPostLimit,
		MaxAIRequests:      cfg.MaxAIRequests,
		RiskAssessment:     cfg.RiskAssessmentEnabled(),
		BlockRiskThreshold: cfg.BlockRiskThreshold,
	}
}

// Report summarises one pass.
type Report struct {
	RunID       string
	TodayBefore int
	Fetched     int
	Unprocessed int
	PreFiltered int
	Postable    int
	Skipped     int
	AIRequests  int
	MaxPosts    int
	Posted      int
	StopReason  string
}

type Runner struct {
	opts Options

	history   History
	feeds     FeedStore
	auth      AuthStore
	fetcher   Fetcher
	filter    *filter.Filter
	rewriter  *summary.Rewriter
	publisher Publisher
	reporter  Reporter
	clock     calendar.Clock

	// Shuffle randomises candidate order; tests pin it.
	Shuffle func(n int, swap func(i, j int))
	NewID   func() string
}

func New(
	opts Options,
	history History,
	feeds FeedStore,
	auth AuthStore,
	fetcher Fetcher,
	f *filter.Filter,
	rewriter *summary.Rewriter,
	pub Publisher,
	reporter Reporter,
	clock calendar.Clock,
) *Runner {
	return &Runner{
		opts:      opts,
		history:   history,
		feeds:     feeds,
		auth:      auth,
		fetcher:   fetcher,
		filter:    f,
		rewriter:  rewriter,
		publisher: pub,
		reporter:  reporter,
		clock:     clock,
		Shuffle:   rand.Shuffle,
		NewID:     uuid.NewString,
	}
}

// Start runs a pass immediately and then once per interval until ctx is done.
// A failed pass is logged and reported; it does not stop the loop.
func (r *Runner) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.runLogged(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runLogged(ctx)
		}
	}
}

func (r *Runner) runLogged(ctx context.Context) {
	if _, err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
	}
}

// candidate is an unprocessed item moving through the pipeline. original is
// the stored text and stays the dedup key whatever happens to text.
type candidate struct {
	original string
	text     string
	feed     model.Feed
}

type postable struct {
	candidate
	final  string
	aiUsed bool
}

// Run performs one fetch → filter → rewrite → post pass.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: r.NewID()}
	log := slog.With("run_id", report.RunID)

	log.Info("starting run",
		"dry_run", r.opts.DryRun,
		"ai_limit", r.opts.MaxAIRequests,
		"daily_limit", r.opts.DailyPostLimit,
		"date", r.clock.Date(),
	)

	if err := r.auth.ClearExpiredAuth(ctx); err != nil {
		log.Warn("failed to clear expired auth cache", "err", err)
	}

	if !r.opts.HasCredentials && !r.opts.DryRun {
		return r.abort(report, config.ErrMissingCredentials)
	}

	today, err := r.history.TodayPostedCount(ctx)
	if err != nil {
		return r.abort(report, fmt.Errorf("count today's posts: %w", err))
	}
	report.TodayBefore = today
	if today >= r.opts.DailyPostLimit {
		return r.stop(log, report, fmt.Sprintf("daily post limit (%d) reached today (%d posts)", r.opts.DailyPostLimit, today))
	}

	fetched, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return r.abort(report, fmt.Errorf("fetch feeds: %w", err))
	}
	report.Fetched = fetched
	if fetched == 0 {
		return r.stop(log, report, "no new items fetched from any feed today")
	}

	unprocessed, err := r.unprocessed(ctx)
	if err != nil {
		return r.abort(report, err)
	}
	report.Unprocessed = len(unprocessed)
	if len(unprocessed) == 0 {
		return r.stop(log, report, "all fetched items have already been processed")
	}
	log.Info("found unprocessed items", "count", len(unprocessed))

	ordered := r.prioritize(unprocessed)

	queue := r.preFilter(ctx, log, ordered, &report)
	report.PreFiltered = len(queue)
	log.Info("items passed pre-filtering", "passed", len(queue), "of", len(ordered))
	if len(queue) == 0 {
		return r.stop(log, report, "no items passed pre-filtering")
	}

	ready := r.evaluate(ctx, log, queue, &report)
	report.Postable = len(ready)
	log.Info("AI usage", "used", report.AIRequests, "limit", r.opts.MaxAIRequests)
	if len(ready) == 0 {
		return r.stop(log, report, "no postable items after filters and AI")
	}

	report.MaxPosts = min(r.opts.PostsPerRun, r.opts.DailyPostLimit-today, len(ready))
	log.Info("preparing to post", "max_posts", report.MaxPosts, "candidates", len(ready))

	if err := r.publisher.Authenticate(ctx); err != nil {
		return r.abort(report, err)
	}

	posts := lo.Map(ready[:report.MaxPosts], func(p postable, _ int) publisher.Post {
		return publisher.Post{
			Original: p.original,
			Text:     p.final,
			AIUsed:   p.aiUsed,
			Feed:     p.feed,
		}
	})

	report.Posted, err = r.publisher.Publish(ctx, posts, report.RunID)
	if err != nil {
		return r.abort(report, fmt.Errorf("publish: %w", err))
	}

	log.Info("run complete",
		"ai_requests", report.AIRequests,
		"posted", report.Posted,
		"max_posts", report.MaxPosts,
		"today", today+report.Posted,
		"daily_limit", r.opts.DailyPostLimit,
	)
	return report, nil
}

func (r *Runner) unprocessed(ctx context.Context) ([]model.Candidate, error) {
	stored, err := r.feeds.LoadToday(ctx, r.opts.Feeds)
	if err != nil {
		return nil, fmt.Errorf("load stored items: %w", err)
	}

	processed, err := r.history.Processed(ctx)
	if err != nil {
		return nil, fmt.Errorf("load processed items: %w", err)
	}

	return lo.Filter(stored, func(c model.Candidate, _ int) bool {
		_, seen := processed[c.Text]
		return !seen
	}), nil
}

// prioritize puts items the AI has never looked at first, each group in
// random order.
func (r *Runner) prioritize(items []model.Candidate) []model.Candidate {
	fresh, parsed := lo.FilterReject(items, func(c model.Candidate, _ int) bool {
		return !c.AIParsed
	})
	r.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
	r.Shuffle(len(parsed), func(i, j int) { parsed[i], parsed[j] = parsed[j], parsed[i] })
	return append(fresh, parsed...)
}

// preFilter drops what can be rejected without spending AI requests.
func (r *Runner) preFilter(ctx context.Context, log *slog.Logger, items []model.Candidate, report *Report) []candidate {
	var queue []candidate
	for _, item := range items {
		c := candidate{original: item.Text, text: item.Text, feed: item.Feed}

		if compose.Len(c.text) > compose.CharLimit {
			c.text = compose.Truncate(c.text)
			if n := compose.Len(c.text); n > compose.CharLimit {
				r.skip(ctx, log, c, c.text, fmt.Sprintf("too long even after truncation (%d chars)", n), report)
				continue
			}
		}

		if ok, reason := r.filter.Check(c.text); !ok {
			r.skip(ctx, log, c, c.text, reason, report)
			continue
		}

		queue = append(queue, c)
	}
	return queue
}

// evaluate rewrites and vets candidates until the AI request budget runs out.
// Every candidate it looks at is marked as AI-parsed.
func (r *Runner) evaluate(ctx context.Context, log *slog.Logger, queue []candidate, report *Report) []postable {
	var ready []postable
	for i, c := range queue {
		if report.AIRequests >= r.opts.MaxAIRequests {
			log.Warn("hit AI request limit; remaining items wait for the next run",
				"limit", r.opts.MaxAIRequests, "remaining", len(queue)-i)
			break
		}
		if ctx.Err() != nil {
			break
		}

		final, aiUsed := r.rewriter.Enhance(ctx, c.text)
		report.AIRequests++
		r.markParsed(ctx, log, c)

		if n := compose.Len(final); n > compose.CharLimit {
			r.skip(ctx, log, c, final, fmt.Sprintf("still too long after enhancement (%d > %d)", n, compose.CharLimit), report)
			continue
		}

		if ok, reason := r.filter.Check(final); !ok {
			r.skip(ctx, log, c, final, "failed filter after AI: "+reason, report)
			continue
		}

		if r.opts.RiskAssessment && report.AIRequests < r.opts.MaxAIRequests {
			score, suggestion := r.rewriter.AssessRisk(ctx, final)
			report.AIRequests++
			if score > r.opts.BlockRiskThreshold {
				r.skip(ctx, log, c, final, fmt.Sprintf("High block risk (score: %g/10); suggestion: %s", score, suggestion), report)
				continue
			}
		}

		ready = append(ready, postable{candidate: c, final: final, aiUsed: aiUsed})
		log.Info("item ready to post", "n", i+1, "ai_requests", report.AIRequests)
	}
	return ready
}

func (r *Runner) markParsed(ctx context.Context, log *slog.Logger, c candidate) {
	if err := r.feeds.MarkAIParsed(ctx, c.feed, c.original); err != nil {
		log.Warn("failed to mark item as AI-parsed", "feed", c.feed.Name, "err", err)
	}
}

func (r *Runner) skip(ctx context.Context, log *slog.Logger, c candidate, evaluated, reason string, report *Report) {
	report.Skipped++
	log.Info("skipped item", "feed", c.feed.Name, "reason", reason)

	entry := model.SkippedEntry{Tweet: c.original, Reason: reason}
	if evaluated != c.original {
		entry.Evaluated = evaluated
	}
	if err := r.history.AppendSkipped(ctx, entry); err != nil {
		log.Error("failed to log skipped item", "err", err)
	}
}

func (r *Runner) stop(log *slog.Logger, report Report, reason string) (Report, error) {
	report.StopReason = reason
	log.Info("run stopped", "reason", reason)
	return report, nil
}

func (r *Runner) abort(report Report, err error) (Report, error) {
	report.StopReason = err.Error()
	slog.Error("run aborted", "run_id", report.RunID, "err", err)
	if r.reporter != nil {
		r.reporter.Notify(fmt.Sprintf("xbot run %s aborted: %v", report.RunID, err))
	}
	return report, err
}
