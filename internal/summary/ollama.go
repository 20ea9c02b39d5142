package summary

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
)

type OllamaCompleter struct {
	client      *api.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	mu          sync.Mutex
}

// NewOllamaCompleter talks to a local Ollama server. baseURL may be a bare
// host:port or a full URL.
func NewOllamaCompleter(baseURL, model string, maxTokens int, temperature float64, timeout time.Duration) *OllamaCompleter {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "http", Host: baseURL, Path: "/"}
	}

	return &OllamaCompleter{
		client:      api.NewClient(u, &http.Client{}),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
	}
}

func (o *OllamaCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Options: map[string]any{
			"num_predict": o.maxTokens,
			"temperature": o.temperature,
		},
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var responseFlow []string
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		responseFlow = append(responseFlow, resp.Response)
		return nil
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.Join(responseFlow, "")), nil
}
