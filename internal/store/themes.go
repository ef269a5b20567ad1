package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/genesis/genesis/internal/catalog"
)

// SeedThemes upserts the given themes, keeping their order
func (s *Store) SeedThemes(ctx context.Context, themes []catalog.Theme) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.Rebind(`
		INSERT INTO themes (slug, position, name, category, tags, features, active, premium)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			position = excluded.position,
			name = excluded.name,
			category = excluded.category,
			tags = excluded.tags,
			features = excluded.features,
			active = excluded.active,
			premium = excluded.premium`)

	for i, th := range themes {
		tags, err := json.Marshal(th.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		features, err := json.Marshal(th.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal features: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, th.Slug, i, th.Name, th.Category,
			string(tags), string(features), th.Active, th.Premium); err != nil {
			return fmt.Errorf("failed to seed theme %s: %w", th.Slug, err)
		}
	}
	return tx.Commit()
}

// Themes lists stored themes in catalog order
func (s *Store) Themes(ctx context.Context, activeOnly bool) ([]catalog.Theme, error) {
	q := `SELECT slug, name, category, tags, features, active, premium FROM themes`
	if activeOnly {
		q += ` WHERE active = ?`
	}
	q += ` ORDER BY position`

	var args []any
	if activeOnly {
		args = append(args, true)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query themes: %w", err)
	}
	defer rows.Close()

	var out []catalog.Theme
	for rows.Next() {
		var (
			th             catalog.Theme
			tags, features []byte
		)
		if err := rows.Scan(&th.Slug, &th.Name, &th.Category, &tags, &features, &th.Active, &th.Premium); err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		if err := json.Unmarshal(tags, &th.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
		if err := json.Unmarshal(features, &th.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features: %w", err)
		}
		out = append(out, th)
	}
	return out, rows.Err()
}
