package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"

	"github.com/0x0BSoD/xbot/internal/model"
)

var ErrMissingCredentials = errors.New("missing X API credentials")

type Config struct {
	ConsumerKey       string `hcl:"twitter_consumer_key" env:"TWITTER_CONSUMER_KEY"`
	ConsumerSecret    string `hcl:"twitter_consumer_secret" env:"TWITTER_CONSUMER_SECRET"`
	AccessToken       string `hcl:"twitter_access_token" env:"TWITTER_ACCESS_TOKEN"`
	AccessTokenSecret string `hcl:"twitter_access_token_secret" env:"TWITTER_ACCESS_TOKEN_SECRET"`
	XAPIBaseURL       string `hcl:"x_api_base_url" env:"X_API_BASE_URL" default:"https://api.twitter.com"`

	Feed1URL   string   `hcl:"rss_feed_1_url" env:"RSS_FEED_1_URL" default:"https://rss.app/feeds/YOUR_FEED_1_ID.csv"`
	Feed1Limit int      `hcl:"rss_feed_1_limit" env:"RSS_FEED_1_LIMIT" default:"10"`
	Feed2URL   string   `hcl:"rss_feed_2_url" env:"RSS_FEED_2_URL" default:"https://rss.app/feeds/YOUR_FEED_2_ID.csv"`
	Feed2Limit int      `hcl:"rss_feed_2_limit" env:"RSS_FEED_2_LIMIT" default:"10"`
	ExtraFeeds []string `hcl:"rss_feeds" env:"RSS_FEEDS"`
	FeedFormat string   `hcl:"feed_format" env:"FEED_FORMAT" default:"auto"`

	AIType          string        `hcl:"ai_type" env:"AI_TYPE" default:"openai"`
	AIKey           string        `hcl:"openrouter_api_key" env:"OPENROUTER_API_KEY"`
	AIBaseURL       string        `hcl:"ai_base_url" env:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel         string        `hcl:"ai_model" env:"AI_MODEL" default:"meta-llama/llama-3.2-3b-instruct:free"`
	AIRetryAttempts int           `hcl:"ai_retry_attempts" env:"AI_RETRY_ATTEMPTS" default:"3"`
	AIMaxTokens     int           `hcl:"ai_max_tokens" env:"AI_MAX_TOKENS" default:"150"`
	AITemperature   float64       `hcl:"ai_temperature" env:"AI_TEMPERATURE" default:"0.7"`
	AITimeout       time.Duration `hcl:"ai_timeout" env:"AI_TIMEOUT" default:"1m"`
	MaxAIRequests   int           `hcl:"max_ai_requests_per_run" env:"MAX_AI_REQUESTS_PER_RUN" default:"40"`
	// AIRequestsPerMinute paces completions; 0 disables pacing.
	AIRequestsPerMinute int `hcl:"ai_requests_per_minute" env:"AI_REQUESTS_PER_MINUTE" default:"20"`
	// BlockRiskThreshold of 10 or more disables risk assessment.
	BlockRiskThreshold float64 `hcl:"block_risk_threshold" env:"BLOCK_RISK_THRESHOLD" default:"10.0"`

	BlockedKeywords []string `hcl:"blocked_keywords" env:"BLOCKED_KEYWORDS"`
	PersonalWords   []string `hcl:"personal_words" env:"PERSONAL_WORDS"`

	DryRun            bool `hcl:"dry_run" env:"DRY_RUN" default:"false"`
	PostsPerRun       int  `hcl:"posts_per_run" env:"POSTS_PER_RUN" default:"1"`
	RateLimitWait     int  `hcl:"rate_limit_wait" env:"RATE_LIMIT_WAIT" default:"180"`
	MaxRetries        int  `hcl:"max_retries" env:"MAX_RETRIES" default:"3"`
	SleepBetweenPosts int  `hcl:"sleep_between_posts" env:"SLEEP_BETWEEN_POSTS" default:"60"`
	DailyPostLimit    int  `hcl:"daily_post_limit" env:"DAILY_POST_LIMIT" default:"17"`

	Timezone    string `hcl:"timezone" env:"TIMEZONE" default:"Africa/Nairobi"`
	StateDir    string `hcl:"state_dir" env:"STATE_DIR" default:"logs"`
	LogFile     string `hcl:"log_file" env:"LOG_FILE" default:"bot.log"`
	LogLevel    string `hcl:"log_level" env:"LOG_LEVEL" default:"info"`
	DatabaseDSN string `hcl:"database_dsn" env:"DATABASE_DSN"`

	TelegramBotToken    string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `hcl:"telegram_admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`

	RunInterval time.Duration `hcl:"run_interval" env:"RUN_INTERVAL" default:"30m"`
	HealthAddr  string        `hcl:"health_addr" env:"HEALTH_ADDR" default:"127.0.0.1:8088"`
}

var (
	cfg  Config
	once sync.Once
)

func Get() Config {
	once.Do(func() {
		var err error
		cfg, err = Load("./config.hcl", "./config.local.hcl", "$HOME/.config/xbot/config.hcl")
		if err != nil {
			slog.Error("failed to load config", "err", err)
		}
	})

	return cfg
}

// Load reads the given HCL files (missing ones are ignored) and then the
// environment, which takes precedence.
func Load(files ...string) (Config, error) {
	var c Config
	loader := aconfig.LoaderFor(&c, aconfig.Config{
		SkipFlags:          true,
		AllowUnknownEnvs:   true,
		AllowUnknownFields: true,
		Files:              files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) HasCredentials() bool {
	return c.ConsumerKey != "" && c.ConsumerSecret != "" && c.AccessToken != "" && c.AccessTokenSecret != ""
}

func (c Config) Validate() error {
	switch {
	case c.PostsPerRun < 0:
		return fmt.Errorf("posts_per_run must not be negative, got %d", c.PostsPerRun)
	case c.DailyPostLimit < 0:
		return fmt.Errorf("daily_post_limit must not be negative, got %d", c.DailyPostLimit)
	case c.MaxRetries < 1:
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	case c.AIRetryAttempts < 1:
		return fmt.Errorf("ai_retry_attempts must be at least 1, got %d", c.AIRetryAttempts)
	case c.BlockRiskThreshold < 0:
		return fmt.Errorf("block_risk_threshold must not be negative, got %v", c.BlockRiskThreshold)
	}

	switch c.FeedFormat {
	case "auto", "csv", "xml", "json":
	default:
		return fmt.Errorf("unknown feed_format %q", c.FeedFormat)
	}

	switch c.AIType {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown ai_type %q", c.AIType)
	}

	if !c.DryRun && !c.HasCredentials() {
		return ErrMissingCredentials
	}

	return nil
}

// Feeds returns the configured feeds. The two numbered feeds keep their
// historic state files (feed1.json, feed2.json); entries of rss_feeds follow
// as feed3, feed4, ... and may carry a limit as "url|limit".
func (c Config) Feeds() []model.Feed {
	feeds := make([]model.Feed, 0, 2+len(c.ExtraFeeds))
	add := func(url string, limit int) {
		url = strings.TrimSpace(url)
		if url == "" {
			return
		}
		feeds = append(feeds, model.Feed{
			Name:   fmt.Sprintf("feed%d", len(feeds)+1),
			URL:    url,
			Limit:  limit,
			Format: c.FeedFormat,
		})
	}

	add(c.Feed1URL, c.Feed1Limit)
	add(c.Feed2URL, c.Feed2Limit)
	for _, extra := range c.ExtraFeeds {
		url, limit := extra, c.Feed1Limit
		if i := strings.LastIndex(extra, "|"); i >= 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(extra[i+1:])); err == nil {
				url, limit = extra[:i], n
			}
		}
		add(url, limit)
	}

	return feeds
}

func (c Config) RateLimitWaitDuration() time.Duration {
	return time.Duration(c.RateLimitWait) * time.Second
}

func (c Config) SleepBetweenPostsDuration() time.Duration {
	return time.Duration(c.SleepBetweenPosts) * time.Second
}

// RiskAssessmentEnabled reports whether the configured threshold can ever reject a post.
func (c Config) RiskAssessmentEnabled() bool {
	return c.BlockRiskThreshold < 10.0
}

// LogPath resolves LOG_FILE against STATE_DIR unless it is absolute. An empty
// LOG_FILE disables the file log.
func (c Config) LogPath() string {
	if c.LogFile == "" || filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.StateDir, c.LogFile)
}
