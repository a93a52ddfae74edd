package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Veraticus/kvlabel/internal/common"
)

// Client defines the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Model() string
}

// CompletionRequest is a single-turn prompt sent at a fixed temperature.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completion is the text returned by the model.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// postJSON sends body to url and returns the response body. Failures are
// marked transient or permanent for the retry policy.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, common.Transient(fmt.Errorf("%s request failed: %w", provider, err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.Transient(fmt.Errorf("failed to read %s response: %w", provider, err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(provider, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// statusError maps an HTTP failure onto the retry policy: rate limits,
// timeouts and server errors are transient; everything else (bad request,
// authentication, unknown model) is permanent.
func statusError(provider string, status int, body []byte) error {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, bytes.TrimSpace(body))

	switch {
	case status == http.StatusTooManyRequests:
		return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
	case status == http.StatusRequestTimeout, status >= 500:
		return common.Transient(err)
	default:
		return common.Permanent(err)
	}
}
