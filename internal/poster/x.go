// Package poster publishes posts to X, or pretends to in dry-run mode.
package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

const DryRunID = "dry-run"

type Poster interface {
	Authenticate(ctx context.Context) error
	Post(ctx context.Context, text string) (string, error)
}

// RateLimitError is returned on HTTP 429. Reset is zero when X did not say
// when the window reopens.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited until %s", e.Reset.Format(time.RFC3339))
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api: status %d: %s", e.Status, e.Body)
}

type X struct {
	baseURL string
	client  *http.Client
}

// NewX signs every request with OAuth 1.0a user-context credentials.
func NewX(baseURL, consumerKey, consumerSecret, accessToken, accessTokenSecret string) *X {
	config := oauth1.NewConfig(consumerKey, consumerSecret)
	token := oauth1.NewToken(accessToken, accessTokenSecret)

	client := config.Client(context.Background(), token)
	client.Timeout = 30 * time.Second

	return NewXWithClient(baseURL, client)
}

func NewXWithClient(baseURL string, client *http.Client) *X {
	return &X{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Authenticate verifies the credentials by fetching the authenticated user.
func (x *X) Authenticate(ctx context.Context) error {
	var out struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := x.do(ctx, http.MethodGet, "/2/users/me", nil, &out); err != nil {
		return fmt.Errorf("get me: %w", err)
	}
	return nil
}

func (x *X) Post(ctx context.Context, text string) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := x.do(ctx, http.MethodPost, "/2/tweets", map[string]string{"text": text}, &out); err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}
	if out.Data.ID == "" {
		return "", errors.New("create tweet: response has no id")
	}
	return out.Data.ID, nil
}

func (x *X) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{Reset: parseReset(resp.Header.Get("x-rate-limit-reset"))}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func parseReset(v string) time.Time {
	sec, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
