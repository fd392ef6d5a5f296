package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/ppiankov/realign/internal/cache"
	"github.com/ppiankov/realign/internal/llm"
	"github.com/ppiankov/realign/internal/model"
)

type countingStore struct {
	passages []model.Passage
	err      error
	calls    int
}

func (s *countingStore) Query(context.Context, string, int) ([]model.Passage, error) {
	s.calls++
	return s.passages, s.err
}

func (s *countingStore) Close() error { return nil }

func TestParsePassages(t *testing.T) {
	result := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"AICapabilityKnowledge": []interface{}{
					map[string]interface{}{
						"content":     "<p>GPT-4 can   browse with tools.</p>",
						"sourceUrl":   "https://docs.example.com/tools",
						"title":       "Tools",
						"sourceType":  "official_docs",
						"_additional": map[string]interface{}{"distance": 0.12},
					},
					"not an object",
					map[string]interface{}{"sourceUrl": "https://empty.example.com"},
					map[string]interface{}{"content": "second"},
				},
			},
		},
	}

	passages := parsePassages(result, "AICapabilityKnowledge")
	require.Len(t, passages, 2)

	assert.Equal(t, "GPT-4 can browse with tools.", passages[0].Content)
	assert.Equal(t, "https://docs.example.com/tools", passages[0].SourceID)
	assert.Equal(t, "Tools", passages[0].Title)
	assert.Equal(t, "official_docs", passages[0].Kind)
	assert.InDelta(t, 0.12, passages[0].Distance, 1e-9)
	assert.Equal(t, "second", passages[1].Content)
}

func TestParsePassages_Empty(t *testing.T) {
	assert.Empty(t, parsePassages(nil, "X"))
	assert.NotNil(t, parsePassages(&models.GraphQLResponse{}, "X"))
	assert.Empty(t, parsePassages(&models.GraphQLResponse{
		Data: map[string]models.JSONObject{"Get": map[string]interface{}{"Other": []interface{}{}}},
	}, "X"))
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain   text\nhere", "plain text here"},
		{"<div><script>var x = 1;</script><p>Visible</p><style>p{}</style></div>", "Visible"},
		{"Fish &amp; chips", "Fish & chips"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), "PlainText(%q)", tt.in)
	}
}

func TestNearestSQL_QuotesIdentifier(t *testing.T) {
	sql := nearestSQL("knowledge.chunks")
	assert.Contains(t, sql, `FROM "knowledge"."chunks"`)
	assert.Contains(t, sql, "embedding <=> $1")

	sql = nearestSQL(`bad"; DROP TABLE x; --`)
	assert.Contains(t, sql, `"bad""; DROP TABLE x; --"`)
}

func TestCachedStore_HitsAvoidBackend(t *testing.T) {
	backend := &countingStore{passages: []model.Passage{{Content: "a", SourceID: "s"}}}
	store := NewCachedStore(backend, cache.NewMemoryCache(time.Minute, time.Minute), "test", 0, nil)
	ctx := context.Background()

	first, err := store.Query(ctx, "claim", 5)
	require.NoError(t, err)
	second, err := store.Query(ctx, "claim", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.calls)

	_, err = store.Query(ctx, "claim", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.calls, "topK is part of the key")
}

func TestCachedStore_ErrorsNotCached(t *testing.T) {
	backend := &countingStore{err: errors.New("down")}
	store := NewCachedStore(backend, cache.NewMemoryCache(time.Minute, time.Minute), "test", 0, nil)

	_, err := store.Query(context.Background(), "claim", 5)
	require.Error(t, err)
	_, err = store.Query(context.Background(), "claim", 5)
	require.Error(t, err)
	assert.Equal(t, 2, backend.calls)
}

func TestCachedStore_EmptyResultsNotCached(t *testing.T) {
	backend := &countingStore{}
	store := NewCachedStore(backend, cache.NewMemoryCache(time.Minute, time.Minute), "test", 0, nil)
	ctx := context.Background()

	passages, err := store.Query(ctx, "claim", 5)
	require.NoError(t, err)
	assert.Empty(t, passages)

	backend.passages = []model.Passage{{Content: "ingested later", SourceID: "s"}}
	passages, err = store.Query(ctx, "claim", 5)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "ingested later", passages[0].Content)
	assert.Equal(t, 2, backend.calls)
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("Expected path /embeddings, got %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "text-embedding-3-small" {
			t.Errorf("Expected embedding model, got %v", req["model"])
		}
		_ = json.NewEncoder(w).Encode(openai.EmbeddingResponse{
			Object: "list",
			Data:   []openai.Embedding{{Object: "embedding", Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}},
		})
	}))
	defer server.Close()

	e, err := NewOpenAIEmbedder(llm.Config{APIKey: "k", BaseURL: server.URL, Model: "text-embedding-3-small", Timeout: 5 * time.Second})
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "I cannot browse")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestNewOpenAIEmbedder_MissingKey(t *testing.T) {
	_, err := NewOpenAIEmbedder(llm.Config{})
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	none := func(string) (string, bool) { return "", false }

	cfg := model.DefaultConfig()
	store, err := Open(ctx, cfg, none, nil)
	require.NoError(t, err)
	assert.False(t, Configured(store))
	_, err = store.Query(ctx, "x", 5)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Evidence.Backend = "pgvector"
	cfg.Evidence.PostgresURL = "postgres://localhost/none"
	_, err = Open(ctx, cfg, none, nil)
	assert.ErrorIs(t, err, llm.ErrNotConfigured)

	cfg.Evidence.Backend = "chroma"
	_, err = Open(ctx, cfg, none, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown evidence backend"))
}
