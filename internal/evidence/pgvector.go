package evidence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/ppiankov/realign/internal/model"
)

// querier is the subset of pgxpool.Pool used for queries
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgvectorStore ranks rows of a Postgres table by cosine distance between
// their embedding column and the embedded query text. The table is expected
// to have content, source_url, title, source_type and embedding columns.
type PgvectorStore struct {
	pool     *pgxpool.Pool
	db       querier
	table    string
	embedder Embedder
	logger   *zap.Logger
}

// NewPgvectorStore connects to cfg.PostgresURL
func NewPgvectorStore(ctx context.Context, cfg model.EvidenceConfig, embedder Embedder, logger *zap.Logger) (*PgvectorStore, error) {
	if cfg.PostgresURL == "" {
		return nil, fmt.Errorf("%w: postgres url is required", ErrNotConfigured)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	table := cfg.PostgresTable
	if table == "" {
		table = "knowledge_chunks"
	}

	return &PgvectorStore{
		pool:     pool,
		db:       pool,
		table:    table,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Query returns the topK nearest rows to text
func (s *PgvectorStore) Query(ctx context.Context, text string, topK int) ([]model.Passage, error) {
	if strings.TrimSpace(text) == "" {
		return []model.Passage{}, nil
	}
	if topK <= 0 {
		topK = 5
	}

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, nearestSQL(s.table), pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("evidence query: %w", err)
	}
	defer rows.Close()

	passages := []model.Passage{}
	for rows.Next() {
		var (
			p                   model.Passage
			source, title, kind *string
		)
		if err := rows.Scan(&p.Content, &source, &title, &kind, &p.Distance); err != nil {
			return nil, fmt.Errorf("scan evidence row: %w", err)
		}
		p.Content = PlainText(p.Content)
		p.SourceID = deref(source)
		p.Title = deref(title)
		p.Kind = deref(kind)
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("evidence rows: %w", err)
	}

	s.logger.Debug("evidence retrieved",
		zap.String("table", s.table),
		zap.Int("count", len(passages)))
	return passages, nil
}

// Close releases the connection pool
func (s *PgvectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// nearestSQL builds the similarity query; the table name is quoted as an
// identifier since it comes from configuration
func nearestSQL(table string) string {
	return fmt.Sprintf(
		`SELECT content, source_url, title, source_type, embedding <=> $1 AS distance
		 FROM %s
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgx.Identifier(strings.Split(table, ".")).Sanitize(),
	)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
