// Package summary rewrites feed items into posts and scores their block risk
// with an LLM. Without a backend it degrades to plain truncation.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/0x0BSoD/xbot/internal/compose"
)

type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const rewritePrompt = "You are a professional social media manager. Rewrite this post to be clear, concise, and engaging. " +
	"MUST be UNDER 250 CHARACTERS. Summarize if needed. No links, hashtags, emojis. " +
	"Avoid first-person pronouns such as I, we, us, our, my, me. " +
	"Avoid promotional or event-related words like join, host, event, today, tomorrow. " +
	"End with a period. Format: One sentence per line with line breaks.\n\n" +
	"Original (do not exceed 250 chars): %s\n\n" +
	"Rewritten (count chars, <=249): "

const riskPrompt = "You are an X policy expert. Analyze this post for potential violations of X rules (e.g., spam, duplicates, misleading content), " +
	"high block risk from automated posting, or matches to these filters: blocked_keywords=[%s], " +
	"personal_words=[%s], no links/hashtags/mentions, no threads, under 280 chars, no special symbols. " +
	"Score risk 0-10 (0=safe, 10=high block risk). If >3, suggest a fix to reduce risk.\n\n" +
	"Post: %s\n\n" +
	"Response format: SCORE: X/10\nSUGGESTION: [brief suggestion or 'None']"

var (
	scorePattern      = regexp.MustCompile(`(?i)SCORE:\s*(\d+(?:\.\d+)?)/10`)
	suggestionPattern = regexp.MustCompile(`(?i)SUGGESTION:\s*(.+)`)
)

const (
	defaultRiskScore      = 5.0
	minRewriteLength      = 10
	unavailableSuggestion = "AI unavailable"
)

type Rewriter struct {
	completer Completer
	attempts  int
	limiter   *rate.Limiter

	blockedKeywords []string
	personalWords   []string

	// Sleep waits between failed attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRewriter returns a rewriter; a nil completer disables AI entirely.
func NewRewriter(completer Completer, attempts int, blockedKeywords, personalWords []string) *Rewriter {
	if attempts < 1 {
		attempts = 1
	}
	return &Rewriter{
		completer:       completer,
		attempts:        attempts,
		blockedKeywords: blockedKeywords,
		personalWords:   personalWords,
		Sleep:           sleep,
	}
}

// WithRateLimit paces completions to perMinute requests; zero or less leaves
// them unpaced.
func (r *Rewriter) WithRateLimit(perMinute int) *Rewriter {
	if perMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return r
}

func (r *Rewriter) Available() bool {
	return r != nil && r.completer != nil
}

// Enhance asks the model for a rewrite and reports whether AI produced the
// result. Rejected or failed rewrites fall back to the truncated original.
func (r *Rewriter) Enhance(ctx context.Context, text string) (string, bool) {
	if !r.Available() {
		slog.Warn("AI unavailable; truncating original")
		return compose.Truncate(text), false
	}

	prompt := fmt.Sprintf(rewritePrompt, text)
	for attempt := 0; attempt < r.attempts; attempt++ {
		enhanced, err := r.complete(ctx, prompt)
		if err != nil {
			slog.Warn("AI rewrite attempt failed", "attempt", attempt+1, "err", err)
			if ctx.Err() != nil {
				break
			}
			if err := r.Sleep(ctx, backoff(attempt)); err != nil {
				break
			}
			continue
		}

		enhanced = strings.TrimSpace(enhanced)
		n := compose.Len(enhanced)
		if n < compose.CharLimit && n > minRewriteLength && !strings.EqualFold(enhanced, text) {
			slog.Info("AI rewrite accepted", "attempt", attempt+1, "length", n)
			return enhanced, true
		}
		slog.Warn("AI rewrite rejected", "attempt", attempt+1, "length", n)
	}

	slog.Info("AI rewrite failed; falling back to truncation")
	return compose.Truncate(text), false
}

// AssessRisk scores text from 0 (safe) to 10 (likely to get the account
// blocked), with the model's suggestion for lowering it.
func (r *Rewriter) AssessRisk(ctx context.Context, text string) (float64, string) {
	if !r.Available() {
		return 0, unavailableSuggestion
	}

	prompt := fmt.Sprintf(riskPrompt, quoteList(r.blockedKeywords), quoteList(r.personalWords), text)
	for attempt := 0; attempt < r.attempts; attempt++ {
		resp, err := r.complete(ctx, prompt)
		if err != nil {
			slog.Warn("AI risk attempt failed", "attempt", attempt+1, "err", err)
			if ctx.Err() != nil {
				break
			}
			if err := r.Sleep(ctx, backoff(attempt)); err != nil {
				break
			}
			continue
		}

		score, suggestion := ParseRisk(resp)
		slog.Info("AI risk assessment", "score", score, "suggestion", suggestion)
		return score, suggestion
	}

	return defaultRiskScore, "Assessment failed"
}

func (r *Rewriter) complete(ctx context.Context, prompt string) (string, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("wait for AI rate limit: %w", err)
		}
	}
	return r.completer.Complete(ctx, prompt)
}

// ParseRisk extracts "SCORE: X/10" and "SUGGESTION: ..." from a model reply.
// A missing score counts as 5, a missing suggestion as "None".
func ParseRisk(resp string) (float64, string) {
	score := defaultRiskScore
	if m := scorePattern.FindStringSubmatch(resp); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			score = v
		}
	}

	suggestion := "None"
	if m := suggestionPattern.FindStringSubmatch(resp); m != nil {
		suggestion = strings.TrimSpace(m[1])
	}

	return score, suggestion
}

func quoteList(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = "'" + w + "'"
	}
	return strings.Join(quoted, ", ")
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
