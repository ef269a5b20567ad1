package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/store"
)

type fakeAccounts struct {
	sub       *models.Subscription
	err       error
	increment error
	recorded  []string
}

func (f *fakeAccounts) Subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	return f.sub, f.err
}

func (f *fakeAccounts) IncrementUsage(ctx context.Context, userID, briefID string) error {
	f.recorded = append(f.recorded, briefID)
	return f.increment
}

func fixedNow() time.Time { return time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC) }

func TestCheckExceeded(t *testing.T) {
	accounts := &fakeAccounts{sub: &models.Subscription{UserID: "u", Plan: models.PlanBasic, CurrentUsage: 10}}
	m := NewManager(accounts, &Config{UpgradeURL: "https://genesis.example/upgrade"})
	m.now = fixedNow

	status, err := m.Check(context.Background(), "u")
	if status != nil {
		t.Errorf("expected no status, got %+v", status)
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected quota exceeded, got %v", err)
	}
	var exceeded *ExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %T", err)
	}
	if exceeded.CurrentUsage != 10 || exceeded.MaxAllowed != 10 || exceeded.Remaining != 0 || exceeded.Plan != "basic" {
		t.Errorf("unexpected payload %+v", exceeded)
	}
	if exceeded.UpgradeURL != "https://genesis.example/upgrade" {
		t.Errorf("upgrade url %q", exceeded.UpgradeURL)
	}
	if want := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC); !exceeded.ResetDate.Equal(want) {
		t.Errorf("reset %v, want %v", exceeded.ResetDate, want)
	}
}

func TestCheckExceededAfterDowngrade(t *testing.T) {
	accounts := &fakeAccounts{sub: &models.Subscription{UserID: "u", Plan: models.PlanBasic, CurrentUsage: 14}}
	m := NewManager(accounts, nil)
	m.now = fixedNow

	var exceeded *ExceededError
	if _, err := m.Check(context.Background(), "u"); !errors.As(err, &exceeded) {
		t.Fatalf("expected *ExceededError, got %v", err)
	}
	if exceeded.CurrentUsage != 14 || exceeded.Remaining != 0 {
		t.Errorf("remaining must not go negative: %+v", exceeded)
	}
}

func TestCheckAllowed(t *testing.T) {
	tests := []struct {
		name      string
		plan      string
		usage     int
		remaining int
	}{
		{"basic with room", models.PlanBasic, 3, 7},
		{"pro", models.PlanPro, 49, 1},
		{"enterprise is unlimited", models.PlanEnterprise, 5000, Unlimited},
		{"unknown plan is trial", "platinum", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(&fakeAccounts{sub: &models.Subscription{Plan: tt.plan, CurrentUsage: tt.usage}}, nil)
			status, err := m.Check(context.Background(), "u")
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if !status.OK || status.FallbackMode || status.Remaining != tt.remaining {
				t.Errorf("unexpected status %+v", status)
			}
		})
	}
}

func TestCheckTrialExhausted(t *testing.T) {
	m := NewManager(&fakeAccounts{sub: &models.Subscription{Plan: models.PlanTrial, CurrentUsage: 1}}, nil)
	if _, err := m.Check(context.Background(), "u"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("trial allows a single brief, got %v", err)
	}
}

func TestCheckDegradesOpen(t *testing.T) {
	m := NewManager(&fakeAccounts{err: errors.New("connection refused")}, nil)
	status, err := m.Check(context.Background(), "u")
	if err != nil {
		t.Fatalf("unreachable account system must not block: %v", err)
	}
	if !status.OK || !status.FallbackMode {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestIncrementIsBestEffort(t *testing.T) {
	accounts := &fakeAccounts{increment: errors.New("disk full")}
	NewManager(accounts, nil).Increment(context.Background(), "u", "b-1")
	if len(accounts.recorded) != 1 {
		t.Errorf("expected one increment attempt, got %d", len(accounts.recorded))
	}
}

func TestManagerWithStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(store.WithDriver(store.DriverSQLite), store.WithDSN(":memory:"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	if err := st.UpsertSubscription(ctx, "u", models.PlanTrial, ""); err != nil {
		t.Fatal(err)
	}
	m := NewManager(st, nil)
	if _, err := m.Check(ctx, "u"); err != nil {
		t.Fatalf("fresh trial should pass: %v", err)
	}

	m.Increment(ctx, "u", "b-1")
	m.Increment(ctx, "u", "b-1")
	if _, err := m.Check(ctx, "u"); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("trial should be exhausted after one brief, got %v", err)
	}

	if err := st.UpsertSubscription(ctx, "u", models.PlanBasic, ""); err != nil {
		t.Fatal(err)
	}
	status, err := m.Check(ctx, "u")
	if err != nil {
		t.Fatalf("upgrade should lift the limit: %v", err)
	}
	if status.CurrentUsage != 1 || status.Remaining != 9 {
		t.Errorf("duplicate increments must count once: %+v", status)
	}
}
