package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/store"
)

// SQLVectorStore keeps embeddings in the durable store's embeddings table.
// On PostgreSQL similarity is computed by pgvector; on SQLite vectors are
// stored as JSON and ranked in process.
type SQLVectorStore struct {
	st         *store.Store
	dimensions int
}

// NewSQLVectorStore creates a vector store over st
func NewSQLVectorStore(st *store.Store, dimensions int) *SQLVectorStore {
	return &SQLVectorStore{st: st, dimensions: dimensions}
}

func (v *SQLVectorStore) pg() bool { return v.st.Dialect() == store.DriverPostgres }

func (v *SQLVectorStore) Insert(ctx context.Context, e *models.Embedding) error {
	if v.dimensions > 0 && len(e.Vector) != v.dimensions {
		return fmt.Errorf("%w: expected %d dimensions, got %d", ErrInvalidEmbedding, v.dimensions, len(e.Vector))
	}
	var meta any
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		meta = string(data)
	}

	vectorArg := "?"
	if v.pg() {
		vectorArg = "?::vector"
	}
	q := `INSERT INTO embeddings (id, user_id, brief_id, embedding, text, kind, metadata, created_at)
		VALUES (?, ?, ?, ` + vectorArg + `, ?, ?, ?, ?)`

	_, err := v.st.DB().ExecContext(ctx, v.st.Rebind(q),
		e.ID, e.UserID, e.BriefID, formatVector(e.Vector), e.Text, string(e.Kind), meta, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

func (v *SQLVectorStore) Search(ctx context.Context, query []float32, q Query) ([]*models.Embedding, error) {
	if v.pg() {
		return v.searchPostgres(ctx, query, q)
	}
	return v.searchInProcess(ctx, query, q)
}

func (v *SQLVectorStore) searchPostgres(ctx context.Context, query []float32, q Query) ([]*models.Embedding, error) {
	sqlText := `
		SELECT id, user_id, brief_id, text, kind, metadata, created_at, 1 - (embedding <=> $1::vector) AS similarity
		FROM embeddings
		WHERE ($2 = '' OR user_id = $2) AND 1 - (embedding <=> $1::vector) >= $3
		ORDER BY similarity DESC, created_at DESC
		LIMIT $4`
	rows, err := v.st.DB().QueryContext(ctx, sqlText, formatVector(query), q.UserID, q.Threshold, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var out []*models.Embedding
	for rows.Next() {
		e, err := scanRow(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (v *SQLVectorStore) searchInProcess(ctx context.Context, query []float32, q Query) ([]*models.Embedding, error) {
	sqlText := `SELECT id, user_id, brief_id, text, kind, metadata, created_at, embedding FROM embeddings`
	var args []any
	if q.UserID != "" {
		sqlText += ` WHERE user_id = ?`
		args = append(args, q.UserID)
	}
	rows, err := v.st.DB().QueryContext(ctx, v.st.Rebind(sqlText), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var out []*models.Embedding
	for rows.Next() {
		e, err := scanRow(rows, false)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	scoreAll(out, query)
	return out, nil
}

func (v *SQLVectorStore) Delete(ctx context.Context, userID, briefID string) (int64, error) {
	q := `DELETE FROM embeddings WHERE user_id = ?`
	args := []any{userID}
	if briefID != "" {
		q += ` AND brief_id = ?`
		args = append(args, briefID)
	}
	res, err := v.st.DB().ExecContext(ctx, v.st.Rebind(q), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the durable store owns the connection
func (v *SQLVectorStore) Close() error { return nil }

// scanRow reads the common columns followed by either a similarity or the raw vector
func scanRow(rows *sql.Rows, withSimilarity bool) (*models.Embedding, error) {
	var (
		e         models.Embedding
		kind      string
		meta      []byte
		createdAt time.Time
		vector    string
	)
	dest := []any{&e.ID, &e.UserID, &e.BriefID, &e.Text, &kind, &meta, &createdAt}
	if withSimilarity {
		dest = append(dest, &e.Similarity)
	} else {
		dest = append(dest, &vector)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("failed to scan embedding: %w", err)
	}
	e.Kind = models.EmbeddingKind(kind)
	e.CreatedAt = createdAt
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if vector != "" {
		vec, err := parseVector(vector)
		if err != nil {
			return nil, err
		}
		e.Vector = vec
	}
	return &e, nil
}

// formatVector renders v in pgvector's text form, which is also valid JSON
func formatVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(s string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("failed to parse vector: %w", err)
	}
	return vec, nil
}
