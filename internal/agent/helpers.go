package agent

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
)

// withRetry runs call and, when it fails rate-limited, waits backoff and
// runs it once more. Other kinds are returned immediately.
func withRetry[T any](ctx context.Context, backoff time.Duration, agent models.AgentName, call func(context.Context) (T, error)) (T, error) {
	out, err := call(ctx)
	if err == nil || !provider.Retryable(err) {
		return out, err
	}

	slog.Debug("agent.withRetry: rate limited, backing off", "agent", agent, "backoff", backoff)
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return out, err
	case <-timer.C:
	}
	return call(ctx)
}

// businessContext builds the search context for a brief
func businessContext(b models.BusinessBrief) provider.BusinessContext {
	return provider.BusinessContext{
		Name:         b.BusinessName,
		Sector:       b.Sector,
		Location:     b.Location,
		TargetMarket: b.TargetMarket,
		Vision:       b.Vision,
		Mission:      b.Mission,
	}
}

// sectorOf normalises the brief's sector onto the closed list
func sectorOf(b models.BusinessBrief) string {
	return catalog.NormalizeSector(b.Sector)
}

func md5Hex(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func runeLen(s string) int { return len([]rune(s)) }

// splitSentences splits on sentence punctuation and drops empty parts
func splitSentences(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n' || r == ';'
	}) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// dedupe keeps the first occurrence of each case-insensitive value
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
