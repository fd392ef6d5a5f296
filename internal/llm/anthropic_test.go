package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAnthropicProvider_Invoke_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("Expected anthropic-version header 2023-06-01, got %s", r.Header.Get("anthropic-version"))
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "claude-3-opus-20240229" {
			t.Errorf("Expected opus model, got %s", req.Model)
		}
		if req.MaxTokens != 500 {
			t.Errorf("Expected max_tokens 500, got %d", req.MaxTokens)
		}

		resp := anthropicResponse{
			ID:      "msg_123",
			Type:    "message",
			Role:    "assistant",
			Content: []anthropicContent{{Type: "text", Text: "VERDICT: LIE\nCONFIDENCE: 0.95\nREASONING: docs say otherwise"}},
			Model:   "claude-3-opus-20240229",
			Usage:   anthropicUsage{InputTokens: 300, OutputTokens: 40},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL + "/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Invoke(context.Background(), Invocation{
		Model:     "claude-3-opus-20240229",
		Prompt:    "claim",
		MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}

	if !strings.HasPrefix(resp.Text, "VERDICT: LIE") {
		t.Errorf("Unexpected text %q", resp.Text)
	}
	if resp.OutputTokens != 40 {
		t.Errorf("Expected 40 output tokens, got %d", resp.OutputTokens)
	}
	if resp.InputTokens != 300 {
		t.Errorf("Expected 300 input tokens, got %d", resp.InputTokens)
	}
}

func TestAnthropicProvider_Invoke_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})

	_, err := provider.Invoke(context.Background(), Invocation{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "rate_limit_error") {
		t.Errorf("Expected error type in message, got %v", err)
	}
}

func TestAnthropicProvider_Invoke_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := provider.Invoke(context.Background(), Invocation{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for malformed JSON")
	}
}

func TestAnthropicProvider_Invoke_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","content":[]}`))
	}))
	defer server.Close()

	provider, _ := NewAnthropicProvider(Config{APIKey: "k", BaseURL: server.URL})
	if _, err := provider.Invoke(context.Background(), Invocation{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestNewAnthropicProvider_MissingKey(t *testing.T) {
	_, err := NewAnthropicProvider(Config{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
