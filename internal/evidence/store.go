// Package evidence queries a read-only knowledge index for passages that
// support or contradict a claim.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/cache"
	"github.com/ppiankov/realign/internal/llm"
	"github.com/ppiankov/realign/internal/model"
)

// ErrNotConfigured is returned when no evidence index is configured
var ErrNotConfigured = errors.New("evidence store not configured")

// Store returns the passages most relevant to a query text, best first.
// An empty result is valid and means nothing relevant was found.
type Store interface {
	Query(ctx context.Context, text string, topK int) ([]model.Passage, error)
	Close() error
}

// Unconfigured is the store used when no index is set up
type Unconfigured struct{}

// Query always fails with ErrNotConfigured
func (Unconfigured) Query(context.Context, string, int) ([]model.Passage, error) {
	return nil, ErrNotConfigured
}

// Close is a no-op
func (Unconfigured) Close() error { return nil }

// Configured reports whether s can answer queries
func Configured(s Store) bool {
	if s == nil {
		return false
	}
	_, unconfigured := s.(Unconfigured)
	return !unconfigured
}

// Open builds the store selected by cfg.Evidence, wrapped in the query cache
// when caching is enabled. An empty backend yields Unconfigured.
func Open(ctx context.Context, cfg *model.Config, lookup llm.LookupFunc, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store     Store
		namespace string
		err       error
	)
	switch strings.ToLower(cfg.Evidence.Backend) {
	case "":
		return Unconfigured{}, nil
	case "weaviate":
		namespace = "weaviate:" + cfg.Evidence.WeaviateClass
		store, err = NewWeaviateStore(cfg.Evidence, logger)
	case "pgvector", "postgres":
		namespace = "pgvector:" + cfg.Evidence.PostgresTable
		var embedder Embedder
		embedder, err = NewOpenAIEmbedder(llm.ConfigFromBackend(
			model.JudgeBackend{Provider: "openai", Model: cfg.Evidence.EmbeddingModel},
			cfg.Judge, cfg.Proxy, lookup))
		if err != nil {
			return nil, fmt.Errorf("pgvector embedder: %w", err)
		}
		store, err = NewPgvectorStore(ctx, cfg.Evidence, embedder, logger)
	default:
		return nil, fmt.Errorf("unknown evidence backend: %s (supported: weaviate, pgvector)", cfg.Evidence.Backend)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enabled {
		return store, nil
	}

	var c cache.Cache
	if cfg.Cache.Dir != "" {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	} else {
		c = cache.NewMemoryCache(cfg.Cache.MemoryTTL, cfg.Cache.MemoryTTL)
	}
	return NewCachedStore(store, c, namespace, 0, logger), nil
}
