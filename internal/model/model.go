// Package model defines the data structures shared across xbot: configured feeds, fetched items, the stored feed batches and the posting/skipping records kept for deduplication and quota accounting.
package model

import "time"

type Feed struct {
	// Name is a stable identifier, also used for the feed's state file (feed1, feed2, ...).
	Name   string
	URL    string
	Limit  int
	Format string
}

type Item struct {
	Title    string
	Link     string
	Date     time.Time
	FeedName string
}

// StoredTweet is a fetched item as persisted in a feed state file.
type StoredTweet struct {
	Timestamp Timestamp `json:"timestamp"`
	Text      string    `json:"text"`
	AIParsed  bool      `json:"ai_parsed"`
}

type FeedBatch struct {
	FetchTimestamp Timestamp     `json:"fetch_timestamp"`
	Tweets         []StoredTweet `json:"tweets"`
}

type FeedState struct {
	URL           string      `json:"url"`
	FetchedTweets []FeedBatch `json:"fetched_tweets"`
}

// Candidate is a stored item awaiting evaluation in the current run.
type Candidate struct {
	Text     string
	AIParsed bool
	Feed     Feed
}

type PostedEntry struct {
	Timestamp Timestamp `json:"timestamp" db:"posted_at"`
	Original  string    `json:"original" db:"original"`
	Posted    string    `json:"posted" db:"posted"`
	TweetID   string    `json:"tweet_id" db:"tweet_id"`
	AIUsed    bool      `json:"ai_used" db:"ai_used"`
	RunID     string    `json:"run_id,omitempty" db:"run_id"`
}

type SkippedEntry struct {
	Timestamp Timestamp `json:"timestamp" db:"skipped_at"`
	Tweet     string    `json:"tweet" db:"tweet"`
	Reason    string    `json:"reason" db:"reason"`
	// Evaluated holds the text the reason applies to when it differs from Tweet
	// (a truncated or rewritten version).
	Evaluated string `json:"evaluated,omitempty" db:"evaluated"`
}

type AuthCache struct {
	ValidUntil *time.Time `json:"valid_until"`
	CachedAt   *time.Time `json:"cached_at,omitempty"`
	AuthDate   string     `json:"auth_date,omitempty"`
}
