// Package engine is the application facade: it drives coaching sessions,
// runs the agent orchestration when a session completes, renders the site
// and persists the outcome.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/genesis/genesis/internal/agent"
	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/coach"
	"github.com/genesis/genesis/internal/memory"
	"github.com/genesis/genesis/internal/models"
	"github.com/genesis/genesis/internal/provider"
	"github.com/genesis/genesis/internal/quota"
	"github.com/genesis/genesis/internal/recommend"
	"github.com/genesis/genesis/internal/site"
	"github.com/genesis/genesis/internal/store"
	"github.com/genesis/genesis/internal/vfs"
)

// ErrSiteNotReady is returned when a session has no rendered site yet
var ErrSiteNotReady = errors.New("site not ready")

// Providers resolves the provider set of a plan. provider.Factory implements it.
type Providers interface {
	ForPlan(plan string) *provider.Set
}

// Deps are the collaborators of the engine. Memory may be nil.
type Deps struct {
	Providers  Providers
	FS         *vfs.FS
	Store      *store.Store
	Memory     *memory.Service
	Quota      *quota.Manager
	Accounts   quota.AccountSystem
	Downloader agent.Downloader
}

// Engine coordinates one request at a time per session
type Engine struct {
	deps         Deps
	orchestrator *agent.Orchestrator
}

// New creates an engine. A nil agent config uses the defaults.
func New(deps Deps, config *agent.Config) *Engine {
	return &Engine{
		deps:         deps,
		orchestrator: agent.NewOrchestrator(config, deps.FS, deps.Downloader),
	}
}

// BriefResult is the outcome of a completed orchestration
type BriefResult struct {
	BriefID           string               `json:"brief_id"`
	SessionID         string               `json:"session_id,omitempty"`
	Brief             models.BusinessBrief `json:"business_brief"`
	Agents            []models.AgentStatus `json:"agents"`
	OverallConfidence float64              `json:"overall_confidence"`
	IsReadyForSite    bool                 `json:"is_ready_for_site"`
	SelectedTheme     string               `json:"selected_theme"`
	Error             string               `json:"error,omitempty"`
	Site              *site.SiteDefinition `json:"site_data,omitempty"`
	Quota             *quota.Status        `json:"quota,omitempty"`
}

// AdvanceResult is a coaching step result, with the brief once coaching completes
type AdvanceResult struct {
	*coach.StepResult
	Brief    *BriefResult         `json:"brief,omitempty"`
	SiteData *site.SiteDefinition `json:"site_data,omitempty"`
}

// plan returns the caller's plan; an unreachable account system means trial
func (e *Engine) plan(ctx context.Context, userID string) string {
	sub, err := e.deps.Accounts.Subscription(ctx, userID)
	if err != nil || sub == nil {
		slog.Warn("Engine.plan: subscription unavailable, using trial providers", "user_id", userID, "error", err)
		return models.PlanTrial
	}
	return models.NormalizePlan(sub.Plan)
}

func (e *Engine) coachFor(ctx context.Context, userID string) (*coach.Coach, *provider.Set) {
	set := e.deps.Providers.ForPlan(e.plan(ctx, userID))
	return coach.New(e.deps.FS, set.LLM), set
}

// StartSession checks the quota and opens a coaching session
func (e *Engine) StartSession(ctx context.Context, userID string, onboarding *models.Onboarding, initialMessage string) (*coach.StartResult, error) {
	if _, err := e.deps.Quota.Check(ctx, userID); err != nil {
		return nil, err
	}
	c, _ := e.coachFor(ctx, userID)
	return c.Start(ctx, userID, onboarding, initialMessage)
}

// AdvanceStep records an answer. When it completes the dialogue the
// brief is generated before returning.
func (e *Engine) AdvanceStep(ctx context.Context, userID, sessionID, text string) (*AdvanceResult, error) {
	c, set := e.coachFor(ctx, userID)
	step, err := c.Advance(ctx, userID, sessionID, text)
	if err != nil {
		return nil, err
	}
	result := &AdvanceResult{StepResult: step}
	if !step.Complete {
		return result, nil
	}

	brief, err := e.completeSession(ctx, c, set, step.Session)
	if err != nil {
		return nil, err
	}
	summary := *brief
	summary.Site = nil
	result.Brief = &summary
	result.SiteData = brief.Site
	return result, nil
}

// Help returns guiding questions for the current step
func (e *Engine) Help(ctx context.Context, userID, sessionID string) (*coach.HelpResult, error) {
	c, _ := e.coachFor(ctx, userID)
	return c.Help(ctx, userID, sessionID)
}

// Reformulate rewrites a draft answer
func (e *Engine) Reformulate(ctx context.Context, userID, sessionID, text string) (string, error) {
	c, _ := e.coachFor(ctx, userID)
	return c.Reformulate(ctx, userID, sessionID, text)
}

// Proposals suggests three answers for the current step
func (e *Engine) Proposals(ctx context.Context, userID, sessionID string) ([]string, error) {
	c, _ := e.coachFor(ctx, userID)
	return c.Proposals(ctx, userID, sessionID)
}

// ListSessions returns the caller's live sessions
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return e.deps.FS.ListUserSessions(ctx, userID)
}

// FinishSession generates the brief of a session whose dialogue is
// complete but whose generation did not run, e.g. after a quota refusal
func (e *Engine) FinishSession(ctx context.Context, userID, sessionID string) (*BriefResult, error) {
	c, set := e.coachFor(ctx, userID)
	s, err := c.Session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if s.CurrentStep != models.StepSynthesis || s.Status != models.StatusCoachingComplete {
		return nil, fmt.Errorf("%w: session is %s at step %s", coach.ErrValidation, s.Status, s.CurrentStep)
	}
	return e.completeSession(ctx, c, set, s)
}

// completeSession generates the brief of a session that reached synthesis
func (e *Engine) completeSession(ctx context.Context, c *coach.Coach, set *provider.Set, s *models.Session) (*BriefResult, error) {
	status, err := e.deps.Quota.Check(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	if err := c.SetStatus(ctx, s, models.StatusAgentsRunning); err != nil {
		return nil, err
	}

	result := e.generate(ctx, set, coach.Brief(s), s.SelectedTheme)
	result.SessionID = s.ID
	result.Quota = status

	s.SelectedTheme = result.SelectedTheme
	next := models.StatusBriefReady
	if !result.IsReadyForSite {
		next = models.StatusFailed
	}
	if err := c.SetStatus(ctx, s, next); err != nil {
		return nil, err
	}
	if err := e.deps.Store.ArchiveSession(ctx, s); err != nil {
		slog.Warn("Engine.completeSession: failed to archive session", "session_id", s.ID, "error", err)
	}
	return result, nil
}

// generate runs the orchestration and the rendering and persistence that
// follow it. Only the orchestration result is required; every write after
// it is best-effort. Usage is counted for ready briefs only.
func (e *Engine) generate(ctx context.Context, set *provider.Set, brief models.BusinessBrief, preselected string) *BriefResult {
	state := e.orchestrator.Run(ctx, set, agent.Request{
		UserID:           brief.UserID,
		BriefID:          brief.ID,
		Brief:            brief,
		PreselectedTheme: preselected,
	})

	// an auto-matched theme leaves the colors to the content agent and the
	// sector palette
	var theme *catalog.Theme
	if state.Template.Payload.Source == agent.ThemeSourcePreselected {
		theme, _ = catalog.ThemeBySlug(state.SelectedTheme)
	}
	def := site.Transform(state, theme)

	result := &BriefResult{
		BriefID:           state.BriefID,
		Brief:             state.Brief,
		Agents:            append(state.Slots(), state.Template.Status()),
		OverallConfidence: state.OverallConfidence,
		IsReadyForSite:    state.IsReadyForSite,
		SelectedTheme:     state.SelectedTheme,
		Error:             state.Error,
	}
	if state.IsReadyForSite {
		result.Site = def
	}

	e.persist(ctx, set.Plan, state, result)
	e.remember(ctx, state.Brief)
	if state.IsReadyForSite {
		e.deps.Quota.Increment(ctx, brief.UserID, brief.ID)
	}

	slog.Info("Engine.generate: brief generated",
		"user_id", brief.UserID,
		"brief_id", brief.ID,
		"plan", set.Plan,
		"confidence", state.OverallConfidence,
		"ready", state.IsReadyForSite,
		"theme", state.SelectedTheme)
	return result
}

func (e *Engine) persist(ctx context.Context, plan string, state *models.OrchestrationState, result *BriefResult) {
	userID, briefID := state.UserID, state.BriefID

	if err := e.deps.FS.WriteState(ctx, state); err != nil {
		slog.Warn("Engine.persist: failed to write state", "brief_id", briefID, "error", err)
	}
	rec := &store.BriefRecord{
		Brief:             state.Brief,
		SelectedTheme:     state.SelectedTheme,
		OverallConfidence: state.OverallConfidence,
		Ready:             state.IsReadyForSite,
	}
	if result.Site != nil {
		if err := e.deps.FS.WriteSite(ctx, userID, briefID, result.Site); err != nil {
			slog.Warn("Engine.persist: failed to write site", "brief_id", briefID, "error", err)
		}
		if raw, err := json.Marshal(result.Site); err == nil {
			rec.Site = raw
		}
	}
	if err := e.deps.Store.SaveBrief(ctx, rec); err != nil {
		slog.Warn("Engine.persist: failed to save brief", "brief_id", briefID, "error", err)
	}
	if err := e.deps.Store.RecordAgentRuns(ctx, userID, briefID, result.Agents); err != nil {
		slog.Warn("Engine.persist: failed to record agent runs", "brief_id", briefID, "error", err)
	}
	if err := e.deps.FS.WriteUserState(ctx, &vfs.UserState{
		UserID:      userID,
		LastBriefID: briefID,
		Plan:        plan,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		slog.Warn("Engine.persist: failed to write user state", "user_id", userID, "error", err)
	}
}

// remember stores the brief embedding for later recommendations
func (e *Engine) remember(ctx context.Context, b models.BusinessBrief) {
	if e.deps.Memory == nil {
		return
	}
	meta := map[string]any{"business_name": b.BusinessName, "sector": b.Sector}
	if _, err := e.deps.Memory.StoreEmbedding(ctx, b.UserID, b.ID, briefText(b), models.EmbeddingBrief, meta); err != nil {
		slog.Warn("Engine.remember: failed to store embedding", "brief_id", b.ID, "error", err)
	}
}

func briefText(b models.BusinessBrief) string {
	parts := []string{b.BusinessName, b.Sector, b.Vision, b.Mission, b.TargetMarket, b.Differentiation, b.Offer}
	parts = append(parts, b.Services...)
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

// BusinessInfo identifies the business in a service-to-service request
type BusinessInfo struct {
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
}

// MarketInfo describes the market in a service-to-service request
type MarketInfo struct {
	TargetAudience string   `json:"target_audience"`
	Competitors    []string `json:"competitors"`
	Goals          []string `json:"goals"`
}

// GenerateBriefRequest is the service-to-service brief request
type GenerateBriefRequest struct {
	UserID        string          `json:"user_id"`
	BusinessInfo  BusinessInfo    `json:"business_info"`
	MarketInfo    MarketInfo      `json:"market_info"`
	Location      models.Location `json:"location"`
	Services      []string        `json:"services,omitempty"`
	SelectedTheme string          `json:"selected_theme,omitempty"`
}

// GenerateBrief runs the orchestration for a brief supplied directly by
// another service, without a coaching session
func (e *Engine) GenerateBrief(ctx context.Context, req GenerateBriefRequest) (*BriefResult, error) {
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.BusinessInfo.CompanyName) == "" {
		return nil, fmt.Errorf("%w: user_id and business_info.company_name are required", coach.ErrValidation)
	}
	status, err := e.deps.Quota.Check(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	brief := models.BusinessBrief{
		ID:           id,
		SessionID:    id,
		UserID:       req.UserID,
		BusinessName: strings.TrimSpace(req.BusinessInfo.CompanyName),
		Sector:       catalog.NormalizeSector(req.BusinessInfo.Industry),
		Location:     req.Location,
		Vision:       req.BusinessInfo.Description,
		Mission:      req.BusinessInfo.Description,
		TargetMarket: req.MarketInfo.TargetAudience,
		Services:     req.Services,
		Competitors:  req.MarketInfo.Competitors,
		Goals:        req.MarketInfo.Goals,
	}
	set := e.deps.Providers.ForPlan(e.plan(ctx, req.UserID))
	result := e.generate(ctx, set, brief, req.SelectedTheme)
	result.Quota = status
	return result, nil
}

// RecommendThemes ranks the active themes for a session's brief
func (e *Engine) RecommendThemes(ctx context.Context, userID, sessionID string) (*recommend.Result, error) {
	c, set := e.coachFor(ctx, userID)
	s, err := c.Session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	themes, err := e.deps.Store.Themes(ctx, true)
	if err != nil || len(themes) == 0 {
		if err != nil {
			slog.Warn("Engine.RecommendThemes: stored themes unavailable, using catalog", "error", err)
		}
		themes = catalog.ActiveThemes()
	}
	return recommend.New(set.LLM).Recommend(ctx, coach.Brief(s), themes), nil
}

// SelectTheme records the user's theme. Before the brief is generated the
// slug is used as the preselected theme; afterwards the site is re-rendered.
func (e *Engine) SelectTheme(ctx context.Context, userID, sessionID, slug string) (*site.SiteDefinition, error) {
	theme, ok := catalog.ThemeBySlug(slug)
	if !ok || !theme.Active {
		return nil, fmt.Errorf("%w: unknown theme %q", coach.ErrValidation, slug)
	}
	c, _ := e.coachFor(ctx, userID)
	s, err := c.Session(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.SelectedTheme = slug
	if err := c.SetStatus(ctx, s, s.Status); err != nil {
		return nil, err
	}

	state, err := e.deps.FS.ReadState(ctx, userID, s.BriefID)
	if err != nil {
		return nil, fmt.Errorf("failed to read brief state: %w", err)
	}
	if state == nil || !state.IsReadyForSite {
		return nil, nil
	}

	state.SelectedTheme = slug
	state.Template.Payload = models.ThemeSelection{Slug: theme.Slug, Name: theme.Name, Category: theme.Category, Source: agent.ThemeSourcePreselected}
	def := site.Transform(state, theme)
	if err := e.deps.FS.WriteState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to write brief state: %w", err)
	}
	if err := e.deps.FS.WriteSite(ctx, userID, s.BriefID, def); err != nil {
		return nil, fmt.Errorf("failed to write site: %w", err)
	}
	if err := e.deps.Store.SetSelectedTheme(ctx, userID, s.BriefID, slug); err != nil {
		slog.Warn("Engine.SelectTheme: failed to update brief", "brief_id", s.BriefID, "error", err)
	}
	return def, nil
}

// Site returns the rendered site of a session
func (e *Engine) Site(ctx context.Context, userID, sessionID string) (*site.SiteDefinition, error) {
	s, err := e.deps.FS.ResolveSession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if s == nil {
		return nil, coach.ErrSessionNotFound
	}
	var def site.SiteDefinition
	found, err := e.deps.FS.ReadSite(ctx, userID, s.BriefID, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to read site: %w", err)
	}
	if !found {
		return nil, ErrSiteNotReady
	}
	return &def, nil
}

// Health reports the state of the storage backends
func (e *Engine) Health(ctx context.Context) map[string]bool {
	return map[string]bool{
		"vfs":   e.deps.FS.HealthCheck(ctx),
		"store": e.deps.Store.Ping(ctx) == nil,
	}
}
