package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0x0BSoD/xbot/internal/model"
	"github.com/0x0BSoD/xbot/internal/poster"
)

var ErrAuthFailed = errors.New("auth failed; skipping all posts")

type PostedLog interface {
	AppendPosted(ctx context.Context, entry model.PostedEntry) error
}

type AuthCache interface {
	AuthValid(ctx context.Context) bool
	UpdateAuth(ctx context.Context) error
}

type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// Post is a vetted candidate ready to go out.
type Post struct {
	Original string
	Text     string
	AIUsed   bool
	Feed     model.Feed
}

type Publisher struct {
	auth      Authenticator
	authCache AuthCache
	poster    *poster.Retrying
	posted    PostedLog
	spacing   time.Duration
}

// New wires a publisher. auth may be nil (dry run without credentials), in
// which case the auth check is skipped.
func New(
	auth Authenticator,
	authCache AuthCache,
	p *poster.Retrying,
	posted PostedLog,
	sleepBetweenPosts time.Duration,
) *Publisher {
	return &Publisher{
		auth:      auth,
		authCache: authCache,
		poster:    p,
		posted:    posted,
		spacing:   sleepBetweenPosts,
	}
}

// Authenticate checks the credentials once per day; a successful check is
// cached until midnight. On a rate limit it waits out the window and still
// fails, leaving the posts for the next run.
func (p *Publisher) Authenticate(ctx context.Context) error {
	if p.auth == nil {
		slog.Info("no credentials; skipping auth check")
		return nil
	}

	if p.authCache.AuthValid(ctx) {
		slog.Info("using cached auth (valid until end of day)")
		return nil
	}

	slog.Info("authenticating with X API")
	err := p.auth.Authenticate(ctx)
	if err == nil {
		if err := p.authCache.UpdateAuth(ctx); err != nil {
			slog.Warn("failed to update auth cache", "err", err)
		}
		slog.Info("X auth successful; cached until end of day")
		return nil
	}

	var rl *poster.RateLimitError
	if errors.As(err, &rl) {
		wait := p.poster.RateLimitDelay(rl)
		slog.Warn("429 on auth; waiting before skipping posts", "wait", wait)
		if err := p.poster.Sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrAuthFailed, err)
}

// Publish sends posts in order and records each success. It returns how many
// went out; individual failures are logged and skipped. After a successful
// post it waits sleepBetweenPosts before the next one; failures do not delay.
func (p *Publisher) Publish(ctx context.Context, posts []Post, runID string) (int, error) {
	published := 0
	pause := false
	for i, post := range posts {
		if pause && p.spacing > 0 {
			slog.Info("sleeping before next post", "wait", p.spacing)
			if err := p.poster.Sleep(ctx, p.spacing); err != nil {
				return published, err
			}
		}
		pause = false

		slog.Info("posting", "n", i+1, "of", len(posts))

		id, err := p.poster.Post(ctx, post.Text)
		if err != nil {
			if ctx.Err() != nil {
				return published, ctx.Err()
			}
			slog.Error("failed to post; skipping log", "n", i+1, "err", err)
			continue
		}

		entry := model.PostedEntry{
			Original: post.Original,
			Posted:   post.Text,
			TweetID:  id,
			AIUsed:   post.AIUsed,
			RunID:    runID,
		}
		if err := p.posted.AppendPosted(ctx, entry); err != nil {
			slog.Error("could not log posted tweet", "tweet_id", id, "err", err)
		}

		published++
		pause = true
		slog.Info("posted tweet", "n", i+1, "of", len(posts), "tweet_id", id)
	}

	return published, nil
}
