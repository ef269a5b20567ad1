package vfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/genesis/genesis/internal/models"
)

func newTestFS(t *testing.T) (*FS, *BadgerBackend) {
	t.Helper()
	backend, err := NewBadgerBackend("")
	if err != nil {
		t.Fatalf("failed to open in-memory badger: %v", err)
	}
	t.Cleanup(func() { backend.Close() })
	return New(backend, nil), backend
}

func newSession(user, brief string) *models.Session {
	now := time.Now().UTC()
	return &models.Session{
		ID:             brief,
		UserID:         user,
		BriefID:        brief,
		CurrentStep:    models.StepVision,
		CompletedSteps: map[models.Step]bool{},
		Brief:          map[models.Step]string{},
		Status:         models.StatusInitialized,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func rawOnboarding(t *testing.T, b Backend, user, brief string) json.RawMessage {
	t.Helper()
	data, err := b.Get(context.Background(), BriefKey(user, brief))
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	return m["onboarding"]
}

func TestReadSessionOwnership(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	if err := fs.WriteSession(ctx, newSession("alice", "b1")); err != nil {
		t.Fatal(err)
	}

	got, err := fs.ReadSession(ctx, "alice", "b1")
	if err != nil || got == nil {
		t.Fatalf("owner read failed: %v", err)
	}

	other, err := fs.ReadSession(ctx, "mallory", "b1")
	if err != nil {
		t.Fatal(err)
	}
	if other != nil {
		t.Error("expected nil for a mismatched user")
	}

	resolved, err := fs.ResolveSession(ctx, "b1", "mallory")
	if err != nil || resolved != nil {
		t.Errorf("resolve by another user = %v, %v", resolved, err)
	}
	resolved, err = fs.ResolveSession(ctx, "b1", "alice")
	if err != nil || resolved == nil || resolved.BriefID != "b1" {
		t.Errorf("resolve by owner = %v, %v", resolved, err)
	}
}

func TestOnboardingPreservation(t *testing.T) {
	fs, backend := newTestFS(t)
	ctx := context.Background()

	s := newSession("u1", "b1")
	s.Onboarding = &models.Onboarding{
		BusinessName: "Restaurant Le Baobab",
		Sector:       "Restauration",
		CountryCode:  "CI",
		Services:     []string{"Déjeuner", "Brunch & Catering"},
	}
	if err := fs.WriteSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	original := rawOnboarding(t, backend, "u1", "b1")

	for i, step := range models.CoachingSteps {
		next := newSession("u1", "b1")
		next.CurrentStep = step.Next()
		next.Brief[step] = fmt.Sprintf("answer %d", i)
		if err := fs.WriteSession(ctx, next); err != nil {
			t.Fatal(err)
		}

		got, err := fs.ReadSession(ctx, "u1", "b1")
		if err != nil {
			t.Fatal(err)
		}
		if got.Onboarding == nil || got.Onboarding.BusinessName != "Restaurant Le Baobab" {
			t.Fatalf("step %s: onboarding lost: %+v", step, got.Onboarding)
		}
		if got.CurrentStep != step.Next() {
			t.Errorf("step %s: non-onboarding fields not written", step)
		}
		if raw := rawOnboarding(t, backend, "u1", "b1"); !bytes.Equal(raw, original) {
			t.Fatalf("step %s: onboarding bytes changed:\n%s\n%s", step, original, raw)
		}
	}
}

func TestOnboardingStoredKeysWin(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	s := newSession("u1", "b1")
	s.Onboarding = &models.Onboarding{BusinessName: "First"}
	fs.WriteSession(ctx, s)

	s2 := newSession("u1", "b1")
	s2.Onboarding = &models.Onboarding{BusinessName: "Second", City: "Dakar"}
	fs.WriteSession(ctx, s2)

	got, _ := fs.ReadSession(ctx, "u1", "b1")
	if got.Onboarding.BusinessName != "First" {
		t.Errorf("business name = %s", got.Onboarding.BusinessName)
	}
	if got.Onboarding.City != "Dakar" {
		t.Errorf("new onboarding keys should be added, city = %q", got.Onboarding.City)
	}
}

func TestListUserSessions(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	older := newSession("u1", "a")
	older.UpdatedAt = time.Now().Add(-time.Hour)
	fs.WriteSession(ctx, older)
	fs.WriteSession(ctx, newSession("u1", "b"))
	fs.WriteSession(ctx, newSession("u10", "c"))

	sessions, err := fs.ListUserSessions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].BriefID != "b" {
		t.Errorf("expected most recent first, got %s", sessions[0].BriefID)
	}
}

func TestCacheAndTTL(t *testing.T) {
	fs, _ := newTestFS(t)
	ctx := context.Background()

	type entry struct{ URL string }
	if err := fs.CachePut(ctx, CacheLogo, "abc", entry{URL: "/x.png"}); err != nil {
		t.Fatal(err)
	}
	var got entry
	found, err := fs.CacheGet(ctx, CacheLogo, "abc", &got)
	if err != nil || !found || got.URL != "/x.png" {
		t.Fatalf("cache get = %v %v %+v", found, err, got)
	}

	ok, err := fs.ExtendTTL(ctx, CacheKey(CacheLogo, "abc"), time.Hour)
	if err != nil || !ok {
		t.Errorf("extend existing = %v, %v", ok, err)
	}
	ok, err = fs.ExtendTTL(ctx, CacheKey(CacheLogo, "missing"), time.Hour)
	if err != nil || ok {
		t.Errorf("extend missing = %v, %v", ok, err)
	}
}

func TestEntriesExpire(t *testing.T) {
	_, backend := newTestFS(t)
	ctx := context.Background()

	if err := backend.Set(ctx, "short", []byte("1"), time.Second); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1500 * time.Millisecond)
	if _, err := backend.Get(ctx, "short"); err != ErrNotFound {
		t.Errorf("expected expiry, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	fs, _ := newTestFS(t)
	if !fs.HealthCheck(context.Background()) {
		t.Error("expected healthy backend")
	}
}

// TestRedisBackend requires a running Redis
func TestRedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	backend, err := NewRedisBackend(&RedisConfig{Addr: addr})
	if err != nil {
		t.Skipf("Skipping test - Redis not available: %v", err)
	}
	defer backend.Close()

	fs := New(backend, nil)
	ctx := context.Background()
	user := fmt.Sprintf("test-%d", time.Now().UnixNano())

	s := newSession(user, "b1")
	s.Onboarding = &models.Onboarding{BusinessName: "Le Baobab"}
	if err := fs.WriteSession(ctx, s); err != nil {
		t.Fatal(err)
	}
	defer backend.Delete(ctx, BriefKey(user, "b1"))
	defer backend.Delete(ctx, SessionPointerKey("b1"))

	fs.WriteSession(ctx, newSession(user, "b1"))
	got, err := fs.ReadSession(ctx, user, "b1")
	if err != nil || got == nil || got.Onboarding == nil || got.Onboarding.BusinessName != "Le Baobab" {
		t.Fatalf("got %+v, %v", got, err)
	}

	sessions, err := fs.ListUserSessions(ctx, user)
	if err != nil || len(sessions) != 1 {
		t.Errorf("list = %d, %v", len(sessions), err)
	}
}
