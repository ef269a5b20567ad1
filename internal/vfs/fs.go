package vfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/genesis/genesis/internal/models"
)

// Config holds the default TTLs
type Config struct {
	SessionTTL    time.Duration
	SiteTTL       time.Duration
	LogoCacheTTL  time.Duration
	ImageCacheTTL time.Duration
	ScanLimit     int
}

// DefaultConfig returns the default TTLs
func DefaultConfig() *Config {
	return &Config{
		SessionTTL:    2 * time.Hour,
		SiteTTL:       7 * 24 * time.Hour,
		LogoCacheTTL:  24 * time.Hour,
		ImageCacheTTL: 7 * 24 * time.Hour,
		ScanLimit:     200,
	}
}

// Cache categories
const (
	CacheLogo   = "logo"
	CacheImages = "images"
)

// Key builders. Every mutable key embeds the owning user.
func SessionPointerKey(sessionID string) string { return "session:" + sessionID }
func BriefKey(userID, briefID string) string     { return fmt.Sprintf("genesis:session:%s:%s", userID, briefID) }
func SiteKey(userID, briefID string) string      { return fmt.Sprintf("genesis:site:%s:%s", userID, briefID) }
func StateKey(userID, briefID string) string     { return fmt.Sprintf("genesis:state:%s:%s", userID, briefID) }
func UserKey(userID string) string               { return "user:" + userID }
func CacheKey(category, hash string) string      { return fmt.Sprintf("cache/%s/%s", category, hash) }

func userSessionPrefix(userID string) string { return fmt.Sprintf("genesis:session:%s:", userID) }

// sessionPointer maps a session id to its owner
type sessionPointer struct {
	UserID  string `json:"user_id"`
	BriefID string `json:"brief_id"`
}

// UserState is the user-level record
type UserState struct {
	UserID      string    `json:"user_id"`
	LastBriefID string    `json:"last_brief_id,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FS is the virtual file system
type FS struct {
	backend Backend
	config  *Config
}

// New creates a virtual FS over a backend
func New(backend Backend, config *Config) *FS {
	if config == nil {
		config = DefaultConfig()
	}
	return &FS{backend: backend, config: config}
}

// Config returns the TTL configuration
func (fs *FS) Config() *Config { return fs.config }

// Write JSON-encodes v under key
func (fs *FS) Write(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return fs.backend.Set(ctx, key, data, ttl)
}

// Read decodes key into v; found is false when the key is absent
func (fs *FS) Read(ctx context.Context, key string, v any) (found bool, err error) {
	data, err := fs.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Exists reports whether key is present
func (fs *FS) Exists(ctx context.Context, key string) (bool, error) {
	return fs.backend.Exists(ctx, key)
}

// Delete removes key
func (fs *FS) Delete(ctx context.Context, key string) error {
	return fs.backend.Delete(ctx, key)
}

// ExtendTTL resets the TTL of key
func (fs *FS) ExtendTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return fs.backend.Expire(ctx, key, ttl)
}

// ReadSession returns the session owned by userID, or nil when it does not
// exist or belongs to someone else
func (fs *FS) ReadSession(ctx context.Context, userID, briefID string) (*models.Session, error) {
	var s models.Session
	found, err := fs.Read(ctx, BriefKey(userID, briefID), &s)
	if err != nil || !found {
		return nil, err
	}
	if s.UserID != userID {
		return nil, nil
	}
	return &s, nil
}

// WriteSession stores a session. When the stored value already carries an
// onboarding block it is merged into the new value, stored keys winning.
// The read-modify-write is not atomic.
func (fs *FS) WriteSession(ctx context.Context, s *models.Session) error {
	if s.UserID == "" || s.BriefID == "" {
		return errors.New("session requires user_id and brief_id")
	}
	key := BriefKey(s.UserID, s.BriefID)

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	existing, err := fs.backend.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		data, err = preserveOnboarding(existing, data)
		if err != nil {
			return err
		}
	}

	if err := fs.backend.Set(ctx, key, data, fs.config.SessionTTL); err != nil {
		return err
	}
	return fs.Write(ctx, SessionPointerKey(s.ID), sessionPointer{UserID: s.UserID, BriefID: s.BriefID}, fs.config.SessionTTL)
}

func preserveOnboarding(existing, next []byte) ([]byte, error) {
	var stored map[string]json.RawMessage
	if err := json.Unmarshal(existing, &stored); err != nil {
		// unreadable previous value: nothing to preserve
		return next, nil
	}
	storedOnboarding, ok := stored["onboarding"]
	if !ok || isNull(storedOnboarding) {
		return next, nil
	}

	var value map[string]json.RawMessage
	if err := json.Unmarshal(next, &value); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	incoming, ok := value["onboarding"]
	if !ok || isNull(incoming) {
		value["onboarding"] = storedOnboarding
	} else {
		merged, err := mergeObjects(storedOnboarding, incoming)
		if err != nil {
			return nil, err
		}
		value["onboarding"] = merged
	}
	return json.Marshal(value)
}

// mergeObjects overlays base onto extra; keys present in base win
func mergeObjects(base, extra json.RawMessage) (json.RawMessage, error) {
	var b, e map[string]json.RawMessage
	if err := json.Unmarshal(base, &b); err != nil {
		return base, nil
	}
	if err := json.Unmarshal(extra, &e); err != nil {
		return base, nil
	}
	added := false
	for k, v := range e {
		if _, ok := b[k]; !ok {
			b[k] = v
			added = true
		}
	}
	if !added {
		return base, nil
	}
	out, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to merge onboarding: %w", err)
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// ResolveSession looks a session up by id on behalf of userID. A session
// owned by another user resolves to nil.
func (fs *FS) ResolveSession(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	var ptr sessionPointer
	found, err := fs.Read(ctx, SessionPointerKey(sessionID), &ptr)
	if err != nil || !found {
		return nil, err
	}
	if ptr.UserID != userID {
		slog.Debug("FS.ResolveSession: ownership mismatch", "session_id", sessionID)
		return nil, nil
	}
	return fs.ReadSession(ctx, userID, ptr.BriefID)
}

// ListUserSessions returns the user's live sessions, most recently updated first
func (fs *FS) ListUserSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	keys, err := fs.backend.ScanPrefix(ctx, userSessionPrefix(userID), fs.config.ScanLimit)
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(keys))
	for _, key := range keys {
		var s models.Session
		found, err := fs.Read(ctx, key, &s)
		if err != nil {
			slog.Warn("FS.ListUserSessions: skipping unreadable session", "key", key, "error", err)
			continue
		}
		if found && s.UserID == userID {
			sessions = append(sessions, &s)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// WriteSite stores a site definition for a brief
func (fs *FS) WriteSite(ctx context.Context, userID, briefID string, site any) error {
	return fs.Write(ctx, SiteKey(userID, briefID), site, fs.config.SiteTTL)
}

// ReadSite decodes the site definition for a brief into v
func (fs *FS) ReadSite(ctx context.Context, userID, briefID string, v any) (bool, error) {
	return fs.Read(ctx, SiteKey(userID, briefID), v)
}

// WriteState stores the orchestration state of a brief alongside its site
func (fs *FS) WriteState(ctx context.Context, state *models.OrchestrationState) error {
	return fs.Write(ctx, StateKey(state.UserID, state.BriefID), state, fs.config.SiteTTL)
}

// ReadState returns the orchestration state of a brief, or nil
func (fs *FS) ReadState(ctx context.Context, userID, briefID string) (*models.OrchestrationState, error) {
	var st models.OrchestrationState
	found, err := fs.Read(ctx, StateKey(userID, briefID), &st)
	if err != nil || !found {
		return nil, err
	}
	return &st, nil
}

// WriteUserState stores the user-level record
func (fs *FS) WriteUserState(ctx context.Context, state *UserState) error {
	return fs.Write(ctx, UserKey(state.UserID), state, 0)
}

// ReadUserState returns the user-level record, or nil
func (fs *FS) ReadUserState(ctx context.Context, userID string) (*UserState, error) {
	var st UserState
	found, err := fs.Read(ctx, UserKey(userID), &st)
	if err != nil || !found {
		return nil, err
	}
	return &st, nil
}

// CacheGet reads a generator cache entry
func (fs *FS) CacheGet(ctx context.Context, category, hash string, v any) (bool, error) {
	return fs.Read(ctx, CacheKey(category, hash), v)
}

// CachePut writes a generator cache entry with the category's TTL
func (fs *FS) CachePut(ctx context.Context, category, hash string, v any) error {
	ttl := fs.config.ImageCacheTTL
	if category == CacheLogo {
		ttl = fs.config.LogoCacheTTL
	}
	return fs.Write(ctx, CacheKey(category, hash), v, ttl)
}

// HealthCheck pings the backend
func (fs *FS) HealthCheck(ctx context.Context) bool {
	if err := fs.backend.Ping(ctx); err != nil {
		slog.Warn("FS.HealthCheck: backend unavailable", "error", err)
		return false
	}
	return true
}
