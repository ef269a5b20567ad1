package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genesis/genesis/internal/models"
)

// PeriodStart returns the first instant of the usage period containing t
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Subscription returns the user's plan with usage for the current period.
// Users without a row are on the trial plan.
func (s *Store) Subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	sub := &models.Subscription{
		UserID:      userID,
		Plan:        models.PlanTrial,
		Status:      "active",
		PeriodStart: PeriodStart(time.Now()),
	}

	var plan, status string
	err := s.queryRow(ctx, `SELECT plan, status FROM subscriptions WHERE user_id = ?`, userID).Scan(&plan, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	default:
		sub.Plan = models.NormalizePlan(plan)
		sub.Status = status
	}

	usage, err := s.UsageSince(ctx, userID, sub.PeriodStart)
	if err != nil {
		return nil, err
	}
	sub.CurrentUsage = usage
	return sub, nil
}

// UpsertSubscription sets the user's plan
func (s *Store) UpsertSubscription(ctx context.Context, userID, plan, status string) error {
	if status == "" {
		status = "active"
	}
	now := time.Now().UTC()
	_, err := s.exec(ctx, `
		INSERT INTO subscriptions (user_id, plan, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET plan = excluded.plan, status = excluded.status, updated_at = excluded.updated_at`,
		userID, models.NormalizePlan(plan), status, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	slog.Debug("Store.UpsertSubscription: saved", "user_id", userID, "plan", plan)
	return nil
}

// IncrementUsage records one generated brief. Recording the same brief twice
// counts once.
func (s *Store) IncrementUsage(ctx context.Context, userID, briefID string) error {
	_, err := s.exec(ctx, `
		INSERT INTO usage_events (user_id, brief_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, brief_id) DO NOTHING`,
		userID, briefID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// UsageSince counts usage events for the user from since onwards
func (s *Store) UsageSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM usage_events WHERE user_id = ? AND created_at >= ?`,
		userID, since.UTC()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return n, nil
}
