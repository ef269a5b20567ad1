package agent

import (
	"log/slog"
	"time"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
)

// Theme selection sources
const (
	ThemeSourcePreselected = "preselected"
	ThemeSourceSector      = "sector_match"
	ThemeSourceDefault     = "default"
)

// TemplateAgent picks the theme for a brief. It makes no provider calls.
type TemplateAgent struct{}

// Run returns the preselected theme verbatim, otherwise matches on sector
func (TemplateAgent) Run(sector, preselected string) models.AgentResult[models.ThemeSelection] {
	start := time.Now()
	result := models.AgentResult[models.ThemeSelection]{Agent: models.AgentTemplate, Provider: "catalog"}
	defer func() { result.Duration = time.Since(start) }()

	if preselected != "" {
		sel := models.ThemeSelection{Slug: preselected, Source: ThemeSourcePreselected}
		if t, ok := catalog.ThemeBySlug(preselected); ok {
			sel.Name, sel.Category = t.Name, t.Category
		} else {
			slog.Warn("TemplateAgent.Run: preselected theme not in catalog", "slug", preselected)
		}
		result.Payload = sel
		return result
	}

	theme, matched := catalog.ThemeForSector(sector)
	source := ThemeSourceSector
	if !matched {
		source = ThemeSourceDefault
	}
	result.Payload = models.ThemeSelection{Slug: theme.Slug, Name: theme.Name, Category: theme.Category, Source: source}
	return result
}

// TemplateFallback is the default theme reference
func TemplateFallback() models.ThemeSelection {
	sel := models.ThemeSelection{Slug: catalog.DefaultThemeSlug, Source: ThemeSourceDefault}
	if t, ok := catalog.ThemeBySlug(catalog.DefaultThemeSlug); ok {
		sel.Name, sel.Category = t.Name, t.Category
	}
	return sel
}
