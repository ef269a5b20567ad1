package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(WithDriver(DriverSQLite), WithDSN(":memory:"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRebind(t *testing.T) {
	pg := &Store{dialect: DriverPostgres}
	if got := pg.Rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Store{dialect: DriverSQLite}
	if got := lite.Rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestDetectDriver(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost/genesis": DriverPostgres,
		"host=localhost dbname=genesis":    DriverPostgres,
		"/var/lib/genesis/genesis.db":      DriverSQLite,
		":memory:":                         DriverSQLite,
	}
	for dsn, want := range tests {
		if got := DetectDriver(dsn); got != want {
			t.Errorf("DetectDriver(%q) = %s, want %s", dsn, got, want)
		}
	}
}

func TestSubscriptionDefaultsToTrial(t *testing.T) {
	st := newTestStore(t)
	sub, err := st.Subscription(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Plan != models.PlanTrial || sub.CurrentUsage != 0 {
		t.Errorf("unexpected default subscription: %+v", sub)
	}
}

func TestUsageCounting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.UpsertSubscription(ctx, "u1", models.PlanBasic, ""); err != nil {
		t.Fatal(err)
	}
	for _, brief := range []string{"b1", "b2", "b2"} {
		if err := st.IncrementUsage(ctx, "u1", brief); err != nil {
			t.Fatal(err)
		}
	}
	st.IncrementUsage(ctx, "u2", "b9")

	sub, err := st.Subscription(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Plan != models.PlanBasic {
		t.Errorf("plan = %s", sub.Plan)
	}
	if sub.CurrentUsage != 2 {
		t.Errorf("usage = %d, want 2 (duplicate brief counted once)", sub.CurrentUsage)
	}

	future, err := st.UsageSince(ctx, "u1", time.Now().Add(time.Hour))
	if err != nil || future != 0 {
		t.Errorf("usage since the future = %d, %v", future, err)
	}
}

func TestUnknownPlanNormalized(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	st.UpsertSubscription(ctx, "u1", "platinum", "active")
	sub, _ := st.Subscription(ctx, "u1")
	if sub.Plan != models.PlanTrial {
		t.Errorf("plan = %s", sub.Plan)
	}
}

func TestBriefRoundTripAndOwnership(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := &BriefRecord{
		Brief: models.BusinessBrief{
			ID: "b1", SessionID: "b1", UserID: "u1",
			BusinessName: "Le Baobab", Sector: "restaurant",
			Services: []string{"Déjeuner"},
		},
		OverallConfidence: 0.8,
		Ready:             true,
	}
	if err := st.SaveBrief(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetBrief(ctx, "u1", "b1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Brief.BusinessName != "Le Baobab" || !got.Ready || got.Site != nil {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := st.GetBrief(ctx, "u2", "b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user read = %v", err)
	}

	rec.Site = json.RawMessage(`{"pages":[]}`)
	if err := st.SaveBrief(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := st.SetSelectedTheme(ctx, "u1", "b1", "savor"); err != nil {
		t.Fatal(err)
	}
	got, _ = st.GetBrief(ctx, "u1", "b1")
	if string(got.Site) != `{"pages":[]}` || got.SelectedTheme != "savor" {
		t.Errorf("update not persisted: site=%s theme=%s", got.Site, got.SelectedTheme)
	}

	if err := st.SetSelectedTheme(ctx, "u2", "b1", "luxe"); !errors.Is(err, ErrNotFound) {
		t.Errorf("theme update by another user = %v", err)
	}
}

func TestArchiveSession(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sess := &models.Session{
		ID: "s1", UserID: "u1", BriefID: "s1",
		CurrentStep: models.StepMission, Status: models.StatusInProgress,
		Brief:     map[models.Step]string{models.StepVision: "Devenir la référence"},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := st.ArchiveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	sess.Status = models.StatusCompleted
	if err := st.ArchiveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := st.ArchivedSession(ctx, "u1", "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted || got.Brief[models.StepVision] == "" {
		t.Errorf("unexpected archived session: %+v", got)
	}
	if _, err := st.ArchivedSession(ctx, "u2", "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user read = %v", err)
	}
}

func TestAgentRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	runs := []models.AgentStatus{
		{Agent: models.AgentResearch, Provider: "tavily", Duration: 1500 * time.Millisecond},
		{Agent: models.AgentLogo, FallbackMode: true, Error: "provider unavailable"},
	}
	if err := st.RecordAgentRuns(ctx, "u1", "b1", runs); err != nil {
		t.Fatal(err)
	}

	got, err := st.AgentRuns(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].Agent != models.AgentResearch || got[0].Duration != 1500*time.Millisecond {
		t.Errorf("first run = %+v", got[0])
	}
	if !got[1].FallbackMode || got[1].Error == "" {
		t.Errorf("second run = %+v", got[1])
	}
}

func TestSeedThemes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SeedThemes(ctx, catalog.Themes()); err != nil {
		t.Fatal(err)
	}
	// seeding twice is an upsert
	if err := st.SeedThemes(ctx, catalog.Themes()); err != nil {
		t.Fatal(err)
	}

	all, err := st.Themes(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(catalog.Themes()) {
		t.Fatalf("expected %d themes, got %d", len(catalog.Themes()), len(all))
	}
	if all[0].Slug != catalog.Themes()[0].Slug {
		t.Errorf("order not kept: %s", all[0].Slug)
	}

	active, err := st.Themes(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != len(catalog.ActiveThemes()) {
		t.Errorf("expected %d active themes, got %d", len(catalog.ActiveThemes()), len(active))
	}
	for _, th := range active {
		if th.Slug == "luxe" && th.Features.Fonts.Heading != "Cormorant Garamond" {
			t.Errorf("luxe fonts = %+v", th.Features.Fonts)
		}
	}
}

// TestPostgresStore requires a running Postgres with pgvector
func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping test - DATABASE_URL not set")
	}
	st, err := Open(WithDriver(DriverPostgres), WithDSN(dsn))
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	user := fmt.Sprintf("test-%d", time.Now().UnixNano())
	if err := st.IncrementUsage(ctx, user, "b1"); err != nil {
		t.Fatal(err)
	}
	sub, err := st.Subscription(ctx, user)
	if err != nil || sub.CurrentUsage != 1 {
		t.Errorf("subscription = %+v, %v", sub, err)
	}
}
