package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

// Service embeds text and stores or searches the resulting vectors
type Service struct {
	embedder provider.Embedder
	store    VectorStore
	config   *Config
}

// NewService creates a memory service
func NewService(embedder provider.Embedder, store VectorStore, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{embedder: embedder, store: store, config: config}
}

// StoreEmbedding embeds text and writes one row for the brief
func (s *Service) StoreEmbedding(ctx context.Context, userID, briefID, text string, kind models.EmbeddingKind, metadata map[string]any) (*models.Embedding, error) {
	if userID == "" || briefID == "" {
		return nil, fmt.Errorf("%w: user_id and brief_id are required", ErrInvalidEmbedding)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", ErrInvalidEmbedding)
	}
	switch kind {
	case models.EmbeddingBrief, models.EmbeddingConversation, models.EmbeddingPreference:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEmbedding, kind)
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	e := &models.Embedding{
		ID:        uuid.NewString(),
		UserID:    userID,
		BriefID:   briefID,
		Vector:    vector,
		Text:      text,
		Kind:      kind,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to store embedding: %w", err)
	}

	slog.Debug("Memory.StoreEmbedding: stored", "user_id", userID, "brief_id", briefID, "kind", kind, "embedder", s.embedder.Name())
	return e, nil
}

// SearchSimilar embeds query and returns matching rows, most similar first.
// Ties are broken by the most recently created row.
func (s *Service) SearchSimilar(ctx context.Context, query string, q Query) ([]*models.Embedding, error) {
	if q.Limit <= 0 {
		q.Limit = s.config.DefaultLimit
	}
	if q.Limit > s.config.MaxLimit {
		q.Limit = s.config.MaxLimit
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	rows, err := s.store.Search(ctx, vector, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}
	return rank(rows, q.Threshold, q.Limit), nil
}

// DeleteUserEmbeddings removes the user's rows, scoped to briefID when set
func (s *Service) DeleteUserEmbeddings(ctx context.Context, userID, briefID string) (int64, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user_id is required", ErrInvalidEmbedding)
	}
	n, err := s.store.Delete(ctx, userID, briefID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return n, nil
}

// Close closes the vector store
func (s *Service) Close() error {
	return s.store.Close()
}

// rank filters by threshold, orders by similarity then recency, and truncates
func rank(rows []*models.Embedding, threshold float64, limit int) []*models.Embedding {
	out := rows[:0:0]
	for _, r := range rows {
		if r.Similarity >= threshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// scoreAll sets Similarity on every row from its stored vector
func scoreAll(rows []*models.Embedding, query []float32) {
	for _, r := range rows {
		r.Similarity = provider.CosineSimilarity(query, r.Vector)
	}
}
