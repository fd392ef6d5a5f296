package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/realign/internal/util"
)

const defaultForwardTimeout = 2 * time.Minute

// Forwarder posts chat completion requests to an OpenAI-compatible endpoint.
// The body is sent as given, so fields unknown to any client library survive.
type Forwarder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewForwarder creates a forwarder. BaseURL includes the version prefix,
// e.g. https://api.openai.com/v1.
func NewForwarder(config Config) (*Forwarder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required for forwarding", ErrNotConfigured)
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Forwarder{
		apiKey:     config.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: util.NewHTTPClient(config.timeout(defaultForwardTimeout), config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}, nil
}

// Forward sends body to /chat/completions and returns the provider response
func (f *Forwarder) Forward(ctx context.Context, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+f.apiKey)

	httpResp, err := f.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr openai.ErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s - %s", httpResp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody))
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("unexpected non-JSON response")
	}

	return json.RawMessage(respBody), nil
}
