package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genesis/genesis/internal/models"
)

// BriefRecord is a finalized brief with the outcome of its orchestration
type BriefRecord struct {
	Brief             models.BusinessBrief
	Site              json.RawMessage // nil until a site has been rendered
	SelectedTheme     string
	OverallConfidence float64
	Ready             bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SaveBrief inserts or replaces a brief record
func (s *Store) SaveBrief(ctx context.Context, rec *BriefRecord) error {
	data, err := json.Marshal(rec.Brief)
	if err != nil {
		return fmt.Errorf("failed to marshal brief: %w", err)
	}
	var site any
	if len(rec.Site) > 0 {
		site = string(rec.Site)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.exec(ctx, `
		INSERT INTO briefs (id, user_id, session_id, business_name, sector, data, site, selected_theme,
			overall_confidence, ready, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			business_name = excluded.business_name,
			sector = excluded.sector,
			data = excluded.data,
			site = excluded.site,
			selected_theme = excluded.selected_theme,
			overall_confidence = excluded.overall_confidence,
			ready = excluded.ready,
			updated_at = excluded.updated_at`,
		rec.Brief.ID, rec.Brief.UserID, rec.Brief.SessionID, rec.Brief.BusinessName, rec.Brief.Sector,
		string(data), site, rec.SelectedTheme, rec.OverallConfidence, rec.Ready, rec.CreatedAt.UTC(), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save brief: %w", err)
	}
	slog.Debug("Store.SaveBrief: saved", "brief_id", rec.Brief.ID, "ready", rec.Ready)
	return nil
}

// GetBrief returns the brief owned by userID
func (s *Store) GetBrief(ctx context.Context, userID, briefID string) (*BriefRecord, error) {
	var (
		rec   BriefRecord
		data  []byte
		site  []byte
		theme sql.NullString
	)
	err := s.queryRow(ctx, `
		SELECT data, site, selected_theme, overall_confidence, ready, created_at, updated_at
		FROM briefs WHERE id = ? AND user_id = ?`, briefID, userID).
		Scan(&data, &site, &theme, &rec.OverallConfidence, &rec.Ready, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brief: %w", err)
	}
	if err := json.Unmarshal(data, &rec.Brief); err != nil {
		return nil, fmt.Errorf("failed to unmarshal brief: %w", err)
	}
	if len(site) > 0 {
		rec.Site = json.RawMessage(site)
	}
	rec.SelectedTheme = theme.String
	return &rec, nil
}

// SetSelectedTheme records the theme the user picked for a brief
func (s *Store) SetSelectedTheme(ctx context.Context, userID, briefID, slug string) error {
	res, err := s.exec(ctx, `UPDATE briefs SET selected_theme = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		slug, time.Now().UTC(), briefID, userID)
	if err != nil {
		return fmt.Errorf("failed to set theme: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ArchiveSession upserts a snapshot of a coaching session
func (s *Store) ArchiveSession(ctx context.Context, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO sessions (id, user_id, brief_id, status, current_step, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			current_step = excluded.current_step,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sess.ID, sess.UserID, sess.BriefID, string(sess.Status), string(sess.CurrentStep), string(data),
		sess.CreatedAt.UTC(), sess.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}
	return nil
}

// ArchivedSession returns an archived session owned by userID
func (s *Store) ArchivedSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	var data []byte
	err := s.queryRow(ctx, `SELECT data FROM sessions WHERE id = ? AND user_id = ?`, sessionID, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// RecordAgentRuns appends one row per agent outcome
func (s *Store) RecordAgentRuns(ctx context.Context, userID, briefID string, runs []models.AgentStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.Rebind(`
		INSERT INTO agent_runs (brief_id, user_id, agent, fallback_mode, error, provider, model, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, run := range runs {
		if _, err := stmt.ExecContext(ctx, briefID, userID, string(run.Agent), run.FallbackMode,
			run.Error, run.Provider, run.Model, run.Duration.Milliseconds(), now); err != nil {
			return fmt.Errorf("failed to record agent run: %w", err)
		}
	}
	return tx.Commit()
}

// AgentRuns returns the recorded runs for a brief, oldest first
func (s *Store) AgentRuns(ctx context.Context, briefID string) ([]models.AgentStatus, error) {
	rows, err := s.query(ctx, `
		SELECT agent, fallback_mode, error, provider, model, duration_ms
		FROM agent_runs WHERE brief_id = ? ORDER BY id`, briefID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AgentStatus
	for rows.Next() {
		var (
			run                  models.AgentStatus
			agent                string
			errText, prov, model sql.NullString
			durationMS           int64
		)
		if err := rows.Scan(&agent, &run.FallbackMode, &errText, &prov, &model, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan agent run: %w", err)
		}
		run.Agent = models.AgentName(agent)
		run.Error = errText.String
		run.Provider = prov.String
		run.Model = model.String
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
