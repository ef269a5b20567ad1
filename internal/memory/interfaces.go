// Package memory is the semantic memory layer: it embeds briefs and
// conversations and serves cosine-similarity queries over them.
package memory

import (
	"context"
	"errors"

	"github.com/genesis/genesis/internal/models"
)

// ErrInvalidEmbedding is returned for rows that cannot be stored
var ErrInvalidEmbedding = errors.New("invalid embedding")

// VectorStore persists embeddings and ranks them against a query vector
type VectorStore interface {
	// Insert stores a row; the vector length must match the store's width
	Insert(ctx context.Context, e *models.Embedding) error

	// Search returns rows with Similarity set, restricted to userID unless it
	// is empty. Implementations may pre-filter by threshold and limit.
	Search(ctx context.Context, query []float32, q Query) ([]*models.Embedding, error)

	// Delete removes the user's rows, or only one brief's rows when briefID is set
	Delete(ctx context.Context, userID, briefID string) (int64, error)

	// Close releases the store
	Close() error
}

// Query narrows a similarity search
type Query struct {
	UserID    string  // empty searches every user
	Limit     int     // <= 0 uses Config.DefaultLimit
	Threshold float64 // minimum similarity
}

// Config holds memory service configuration
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns default memory service configuration
func DefaultConfig() *Config {
	return &Config{
		DefaultLimit: 5,
		MaxLimit:     100,
	}
}
