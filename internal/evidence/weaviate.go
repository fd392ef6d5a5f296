package evidence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/model"
)

// Property names of the knowledge class
const (
	propContent    = "content"
	propSourceURL  = "sourceUrl"
	propTitle      = "title"
	propSourceType = "sourceType"
)

// WeaviateStore runs nearText queries against a Weaviate class
type WeaviateStore struct {
	client *weaviate.Client
	class  string
	logger *zap.Logger
}

// NewWeaviateStore connects to the configured Weaviate instance. The host may
// carry a scheme prefix, which overrides WeaviateScheme.
func NewWeaviateStore(cfg model.EvidenceConfig, logger *zap.Logger) (*WeaviateStore, error) {
	if cfg.WeaviateHost == "" {
		return nil, fmt.Errorf("%w: weaviate host is required", ErrNotConfigured)
	}
	if cfg.WeaviateClass == "" {
		return nil, errors.New("weaviate class is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	host, scheme := cfg.WeaviateHost, cfg.WeaviateScheme
	if scheme == "" {
		scheme = "http"
	}
	if rest, ok := strings.CutPrefix(host, "https://"); ok {
		host, scheme = rest, "https"
	} else if rest, ok := strings.CutPrefix(host, "http://"); ok {
		host, scheme = rest, "http"
	}

	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &WeaviateStore{client: client, class: cfg.WeaviateClass, logger: logger}, nil
}

// Query returns the topK passages closest to text
func (s *WeaviateStore) Query(ctx context.Context, text string, topK int) ([]model.Passage, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Passage{}, nil
	}
	if topK <= 0 {
		topK = 5
	}

	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{text})

	fields := []graphql.Field{
		{Name: propContent},
		{Name: propSourceURL},
		{Name: propTitle},
		{Name: propSourceType},
		{Name: "_additional { distance }"},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	passages := parsePassages(result, s.class)
	s.logger.Debug("evidence retrieved",
		zap.String("class", s.class),
		zap.Int("count", len(passages)))
	return passages, nil
}

// Close is a no-op; the client holds no persistent connection
func (s *WeaviateStore) Close() error {
	return nil
}

// parsePassages extracts passages from a GraphQL Get response. Malformed
// objects are skipped.
func parsePassages(result *models.GraphQLResponse, class string) []model.Passage {
	passages := []model.Passage{}
	if result == nil {
		return passages
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return passages
	}
	objects, ok := data[class].([]interface{})
	if !ok {
		return passages
	}

	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		content := getString(m, propContent)
		if content == "" {
			continue
		}

		p := model.Passage{
			Content:  PlainText(content),
			SourceID: getString(m, propSourceURL),
			Title:    getString(m, propTitle),
			Kind:     getString(m, propSourceType),
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if d, ok := additional["distance"].(float64); ok {
				p.Distance = d
			}
		}
		passages = append(passages, p)
	}

	return passages
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
