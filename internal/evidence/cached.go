package evidence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/cache"
	"github.com/ppiankov/realign/internal/model"
)

// CachedStore memoizes query results of another store. Errors and empty
// results are never cached, so passages ingested later are found.
type CachedStore struct {
	next      Store
	cache     cache.Cache
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewCachedStore wraps next. namespace separates results of different
// indexes sharing one cache; a ttl of 0 uses the cache default.
func NewCachedStore(next Store, c cache.Cache, namespace string, ttl time.Duration, logger *zap.Logger) *CachedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStore{
		next:      next,
		cache:     c,
		namespace: namespace,
		ttl:       ttl,
		logger:    logger,
	}
}

// Query serves from cache when possible
func (s *CachedStore) Query(ctx context.Context, text string, topK int) ([]model.Passage, error) {
	key := cache.Key(s.namespace, text, strconv.Itoa(topK))

	if data, ok := s.cache.Get(key); ok {
		var passages []model.Passage
		if err := json.Unmarshal(data, &passages); err == nil {
			s.logger.Debug("evidence cache hit", zap.String("key", key))
			return passages, nil
		}
		_ = s.cache.Delete(key)
	}

	passages, err := s.next.Query(ctx, text, topK)
	if err != nil {
		return nil, err
	}

	if len(passages) == 0 {
		return passages, nil
	}
	if data, err := json.Marshal(passages); err == nil {
		if err := s.cache.Set(key, data, s.ttl); err != nil {
			s.logger.Warn("evidence cache write failed", zap.Error(err))
		}
	}
	return passages, nil
}

// Close closes the wrapped store
func (s *CachedStore) Close() error {
	return s.next.Close()
}
