// Package quota enforces per-plan monthly brief generation limits.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/genesis/genesis/internal/models"
)

// Unlimited marks a plan without a monthly cap
const Unlimited = -1

// ErrQuotaExceeded is matched by every ExceededError
var ErrQuotaExceeded = errors.New("quota exceeded")

// PlanLimits is the static entitlement of a plan
type PlanLimits struct {
	MaxSessionsPerMonth int      `json:"max_sessions_per_month"`
	Features            []string `json:"features"`
}

var planLimits = map[string]PlanLimits{
	models.PlanTrial: {
		MaxSessionsPerMonth: 1,
		Features:            []string{"coaching", "basic_site"},
	},
	models.PlanBasic: {
		MaxSessionsPerMonth: 10,
		Features:            []string{"coaching", "basic_site", "logo", "seo"},
	},
	models.PlanPro: {
		MaxSessionsPerMonth: 50,
		Features:            []string{"coaching", "basic_site", "logo", "seo", "custom_images", "market_research"},
	},
	models.PlanEnterprise: {
		MaxSessionsPerMonth: Unlimited,
		Features:            []string{"coaching", "basic_site", "logo", "seo", "custom_images", "market_research", "priority_support", "api_access"},
	},
}

// Limits returns the limits of a plan; unknown plans get the trial limits
func Limits(plan string) PlanLimits {
	return planLimits[models.NormalizePlan(plan)]
}

// AccountSystem is the external source of subscriptions and usage
type AccountSystem interface {
	Subscription(ctx context.Context, userID string) (*models.Subscription, error)
	IncrementUsage(ctx context.Context, userID, briefID string) error
}

// Status is the outcome of a successful check
type Status struct {
	OK           bool      `json:"ok"`
	Plan         string    `json:"plan,omitempty"`
	CurrentUsage int       `json:"current_usage"`
	MaxAllowed   int       `json:"max_allowed"`
	Remaining    int       `json:"remaining"`
	ResetDate    time.Time `json:"reset_date"`
	Features     []string  `json:"features,omitempty"`
	FallbackMode bool      `json:"fallback_mode,omitempty"`
}

// ExceededError is returned when a user has used up their plan
type ExceededError struct {
	CurrentUsage int       `json:"current_usage"`
	MaxAllowed   int       `json:"max_allowed"`
	Remaining    int       `json:"remaining"`
	Plan         string    `json:"plan"`
	ResetDate    time.Time `json:"reset_date"`
	UpgradeURL   string    `json:"upgrade_url"`
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %d/%d briefs used on plan %s, resets %s",
		e.CurrentUsage, e.MaxAllowed, e.Plan, e.ResetDate.Format("2006-01-02"))
}

// Is makes errors.Is(err, ErrQuotaExceeded) hold
func (e *ExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// Config holds quota manager settings
type Config struct {
	UpgradeURL string
}

// DefaultConfig returns the default quota configuration
func DefaultConfig() *Config {
	return &Config{UpgradeURL: "/pricing"}
}

// Manager checks and records usage against an account system
type Manager struct {
	accounts AccountSystem
	config   *Config
	now      func() time.Time
}

// NewManager creates a quota manager
func NewManager(accounts AccountSystem, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	return &Manager{
		accounts: accounts,
		config:   config,
		now:      time.Now,
	}
}

// Check verifies the user may generate another brief. An unreachable
// account system degrades open with FallbackMode set.
func (m *Manager) Check(ctx context.Context, userID string) (*Status, error) {
	sub, err := m.accounts.Subscription(ctx, userID)
	if err != nil || sub == nil {
		slog.Warn("Quota.Check: account system unavailable, allowing request", "user_id", userID, "error", err)
		return &Status{OK: true, FallbackMode: true, MaxAllowed: Unlimited, Remaining: Unlimited}, nil
	}

	plan := models.NormalizePlan(sub.Plan)
	limits := Limits(plan)
	reset := nextReset(m.now())
	status := &Status{
		OK:           true,
		Plan:         plan,
		CurrentUsage: sub.CurrentUsage,
		MaxAllowed:   limits.MaxSessionsPerMonth,
		Remaining:    Unlimited,
		ResetDate:    reset,
		Features:     limits.Features,
	}
	if limits.MaxSessionsPerMonth == Unlimited {
		return status, nil
	}

	status.Remaining = max(limits.MaxSessionsPerMonth-sub.CurrentUsage, 0)
	if sub.CurrentUsage >= limits.MaxSessionsPerMonth {
		slog.Info("Quota.Check: quota exceeded", "user_id", userID, "plan", plan, "usage", sub.CurrentUsage)
		return nil, &ExceededError{
			CurrentUsage: sub.CurrentUsage,
			MaxAllowed:   limits.MaxSessionsPerMonth,
			Remaining:    status.Remaining,
			Plan:         plan,
			ResetDate:    reset,
			UpgradeURL:   m.config.UpgradeURL,
		}
	}
	return status, nil
}

// Increment records one generated brief. Failures are logged and swallowed.
func (m *Manager) Increment(ctx context.Context, userID, briefID string) {
	if err := m.accounts.IncrementUsage(ctx, userID, briefID); err != nil {
		slog.Warn("Quota.Increment: failed to record usage", "user_id", userID, "brief_id", briefID, "error", err)
	}
}

// nextReset is the first instant of the next UTC month
func nextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
