package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/kvlabel/internal/common"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "uid // Device Information // 0.9 // id"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7}
		}`))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "test-key", Model: "gpt-test", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	got, err := client.Complete(context.Background(), CompletionRequest{
		System:      "sys",
		Prompt:      "classify",
		Temperature: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, "uid // Device Information // 0.9 // id", got.Text)
	assert.Equal(t, 12, got.PromptTokens)
	assert.Equal(t, 7, got.CompletionTokens)
	assert.Equal(t, "gpt-test", client.Model())

	require.Contains(t, captured, "temperature", "zero temperature must be sent explicitly")
	assert.InDelta(t, 0.0, captured["temperature"], 1e-9)
	assert.NotContains(t, captured, "max_tokens")
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestAnthropicClient_Complete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &captured))

		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "lat // Precise Location // 1 // "},
				{"type": "text", "text": "coordinates"}
			],
			"usage": {"input_tokens": 30, "output_tokens": 9}
		}`))
	}))
	defer server.Close()

	client, err := newAnthropicClient(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	got, err := client.Complete(context.Background(), CompletionRequest{
		System:      "sys",
		Prompt:      "classify",
		Temperature: 0.75,
	})
	require.NoError(t, err)

	assert.Equal(t, "lat // Precise Location // 1 // coordinates", got.Text)
	assert.Equal(t, 30, got.PromptTokens)
	assert.InDelta(t, 0.75, captured["temperature"], 1e-9)
	assert.InDelta(t, float64(anthropicDefaultMaxTokens), captured["max_tokens"], 1e-9)
	assert.Equal(t, "sys", captured["system"])
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
		rateLimit bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true, rateLimit: true},
		{name: "server error", status: http.StatusInternalServerError, retryable: true},
		{name: "bad gateway", status: http.StatusBadGateway, retryable: true},
		{name: "request timeout", status: http.StatusRequestTimeout, retryable: true},
		{name: "unauthorized", status: http.StatusUnauthorized},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "not found", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": "nope"}`))
			}))
			defer server.Close()

			client, err := newOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
			require.Error(t, err)

			assert.Equal(t, tt.retryable, common.IsRetryable(err))
			assert.Equal(t, !tt.retryable, errors.Is(err, common.ErrPermanentRemote))
			assert.Equal(t, tt.rateLimit, errors.Is(err, common.ErrRateLimit))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestClient_MalformedResponseIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client, err := newOpenAIClient(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, common.IsRetryable(err))
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		wantErr   error
		name      string
		cfg       Config
		wantModel string
	}{
		{name: "default provider", cfg: Config{APIKey: "k"}, wantModel: "gpt-4"},
		{name: "anthropic", cfg: Config{Provider: "Anthropic", APIKey: "k", Model: "claude-x"}, wantModel: "claude-x"},
		{name: "missing key", cfg: Config{Provider: "openai"}, wantErr: common.ErrMissingConfig},
		{name: "unknown provider", cfg: Config{Provider: "cohere", APIKey: "k"}, wantErr: common.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, client.Model())
		})
	}
}
