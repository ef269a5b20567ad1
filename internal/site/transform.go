package site

import (
	"fmt"
	"strings"

	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
)

// Truncation limits
const (
	MaxMetaTitle       = 60
	MaxMetaDescription = 160
	MaxHeroTitle       = 100
	MaxHeroSubtitle    = 200
	MaxItemTitle       = 80
	MaxItemDescription = 300
)

const maxFeatures = 3

// Transform derives the SiteDefinition from an orchestration state. It is
// pure: no I/O, and identical inputs give identical output. theme may be nil.
func Transform(state *models.OrchestrationState, theme *catalog.Theme) *SiteDefinition {
	t := &transformer{state: state, brief: state.Brief, theme: theme}
	t.sector = catalog.NormalizeSector(t.brief.Sector)
	t.icons = catalog.Icons(t.sector)

	order := catalog.SectionOrder(t.sector)
	if theme != nil {
		order = catalog.SectionOrder(theme.Category)
	}
	order = frame(order)

	sections := make([]Section, 0, len(order))
	for _, typ := range order {
		content := t.section(typ, order)
		if content == nil {
			continue
		}
		sections = append(sections, Section{ID: typ, Type: typ, Content: content})
	}

	name := t.businessName()
	return &SiteDefinition{
		Metadata: t.metadata(),
		Theme:    t.themeConfig(),
		Pages: []Page{{
			ID:       "home",
			Slug:     "/",
			Title:    truncate(name, MaxMetaTitle),
			Sections: sections,
		}},
	}
}

// frame forces hero first and footer last, keeping the relative order of
// everything else
func frame(order []string) []string {
	out := []string{catalog.SectionHero}
	for _, s := range order {
		if s != catalog.SectionHero && s != catalog.SectionFooter {
			out = append(out, s)
		}
	}
	return append(out, catalog.SectionFooter)
}

type transformer struct {
	state  *models.OrchestrationState
	brief  models.BusinessBrief
	theme  *catalog.Theme
	sector string
	icons  []string
}

func (t *transformer) businessName() string {
	return firstNonEmpty(t.brief.BusinessName, "Mon entreprise")
}

func (t *transformer) content() models.ContentData { return t.state.Content.Payload }

func (t *transformer) images() models.ImagesData { return t.state.Images.Payload }

func (t *transformer) heroImage() string {
	if h := t.images().Hero; h != nil {
		return h.URL
	}
	return ""
}

func (t *transformer) metadata() Metadata {
	seo := t.state.SEO.Payload
	keywords := append(append([]string(nil), seo.PrimaryKeywords...), seo.SecondaryKeywords...)
	if len(keywords) == 0 {
		keywords = append(keywords, t.content().SEO.Keywords...)
	}
	return Metadata{
		Title:       truncate(t.businessName(), MaxMetaTitle),
		Description: truncate(firstNonEmpty(t.brief.Mission, seo.MetaDescription, t.content().SEO.Description), MaxMetaDescription),
		OGImage:     t.heroImage(),
		Favicon:     t.state.Logo.Payload.ImageURL,
		Keywords:    keywords,
		Languages:   t.content().Languages,
	}
}

// themeConfig resolves colors from the selected theme, then the content
// agent's brand colors, then the sector palette, then the neutral default
func (t *transformer) themeConfig() ThemeConfig {
	base := t.theme
	if base == nil {
		base, _ = catalog.ThemeBySlug(catalog.DefaultThemeSlug)
	}
	cfg := ThemeConfig{Fonts: base.Features.Fonts, Style: base.Features.Style}

	switch {
	case t.theme != nil:
		cfg.Slug = t.theme.Slug
		cfg.Colors = t.theme.Features.Colors
	case t.content().BrandColors != nil:
		cfg.Colors = *t.content().BrandColors
	default:
		if p, ok := catalog.SectorPalette(t.sector); ok {
			cfg.Colors = p
		} else {
			cfg.Colors = catalog.DefaultPalette
		}
	}
	if cfg.Colors.Background == "" {
		cfg.Colors.Background = catalog.DefaultPalette.Background
	}
	if cfg.Colors.Text == "" {
		cfg.Colors.Text = catalog.DefaultPalette.Text
	}
	return cfg
}

func (t *transformer) section(typ string, order []string) any {
	switch typ {
	case catalog.SectionHero:
		return t.hero()
	case catalog.SectionAbout:
		return t.about()
	case catalog.SectionServices:
		return t.services()
	case catalog.SectionFeatures:
		return t.features()
	case catalog.SectionTestimonials:
		return t.testimonials()
	case catalog.SectionGallery:
		return t.gallery()
	case catalog.SectionContact:
		return t.contact()
	case catalog.SectionCTA:
		return t.cta()
	case catalog.SectionMenu:
		return t.menu()
	case catalog.SectionFooter:
		return t.footer(order)
	}
	return nil
}

func (t *transformer) hero() HeroContent {
	home := t.content().Homepage
	return HeroContent{
		Title:    truncate(firstNonEmpty(t.brief.ValueProposition, home.ValueProposition, home.HeroTitle, t.businessName()), MaxHeroTitle),
		Subtitle: truncate(firstNonEmpty(t.brief.Mission, home.HeroSubtitle), MaxHeroSubtitle),
		Image:    t.heroImage(),
		CTA:      CTA{Text: catalog.CTAText(t.sector), Link: "#contact"},
	}
}

func (t *transformer) about() AboutContent {
	about := t.content().About
	var image string
	if f := t.images().Features; len(f) > 0 {
		image = f[0].URL
	}
	return AboutContent{
		Title:    truncate(firstNonEmpty(about.Title, "À propos de "+t.businessName()), MaxItemTitle),
		Subtitle: truncate(firstNonEmpty(about.Story, t.brief.Vision), MaxItemDescription),
		Mission:  truncate(firstNonEmpty(t.brief.Mission, about.Mission), MaxItemDescription),
		Vision:   truncate(firstNonEmpty(t.brief.Vision, about.Vision), MaxItemDescription),
		Image:    image,
	}
}

// serviceCopy prefers the content agent's copy, then the brief's list
func (t *transformer) serviceCopy() []models.ServiceCopy {
	if s := t.content().Services; len(s) > 0 {
		return s
	}
	out := make([]models.ServiceCopy, 0, len(t.brief.Services))
	for _, name := range t.brief.Services {
		out = append(out, models.ServiceCopy{Title: name})
	}
	return out
}

func imageAt(images []models.GeneratedImage, i int) string {
	if i < len(images) {
		return images[i].URL
	}
	return ""
}

func (t *transformer) icon(i int) string {
	return t.icons[i%len(t.icons)]
}

func (t *transformer) services() ServicesContent {
	list := t.serviceCopy()
	items := make([]ServiceItem, 0, len(list))
	for i, s := range list {
		items = append(items, ServiceItem{
			ID:          fmt.Sprintf("service-%d", i+1),
			Title:       truncate(s.Title, MaxItemTitle),
			Description: truncate(s.Description, MaxItemDescription),
			Icon:        t.icon(i),
			Image:       imageAt(t.images().Services, i),
			Price:       s.Price,
		})
	}
	return ServicesContent{Title: "Nos services", Subtitle: truncate(t.brief.Offer, MaxHeroSubtitle), Services: items}
}

// featureCopy prefers the content agent's features, then the first three
// sentences of the differentiation field
func (t *transformer) featureCopy() []models.FeatureCopy {
	if f := t.content().Homepage.Features; len(f) > 0 {
		return f
	}
	var out []models.FeatureCopy
	for _, s := range splitSentences(t.brief.Differentiation) {
		if len(out) == maxFeatures {
			break
		}
		out = append(out, models.FeatureCopy{Title: s, Description: s})
	}
	return out
}

func (t *transformer) features() FeaturesContent {
	list := t.featureCopy()
	items := make([]FeatureItem, 0, len(list))
	for i, f := range list {
		items = append(items, FeatureItem{
			ID:          fmt.Sprintf("feature-%d", i+1),
			Title:       truncate(f.Title, MaxItemTitle),
			Description: truncate(f.Description, MaxItemDescription),
			Icon:        t.icon(i),
			Image:       imageAt(t.images().Features, i),
		})
	}
	return FeaturesContent{Title: "Pourquoi nous choisir", Features: items}
}

var testimonialAuthors = []string{"Aïcha K.", "Moussa D.", "Fatou S."}

func (t *transformer) testimonials() TestimonialsContent {
	name := t.businessName()
	quotes := []string{
		fmt.Sprintf("Un accueil chaleureux et un service impeccable chez %s.", name),
		"Je recommande sans hésiter, la qualité est toujours au rendez-vous.",
		"Une équipe à l'écoute et des prix honnêtes.",
	}
	ratings := []int{5, 5, 4}
	items := make([]TestimonialItem, len(quotes))
	for i := range quotes {
		items[i] = TestimonialItem{
			ID:     fmt.Sprintf("testimonial-%d", i+1),
			Quote:  quotes[i],
			Author: testimonialAuthors[i],
			Rating: clampRating(ratings[i]),
		}
	}
	return TestimonialsContent{Title: "Ils nous font confiance", Items: items}
}

func clampRating(r int) int {
	if r < 1 {
		return 1
	}
	if r > 5 {
		return 5
	}
	return r
}

func (t *transformer) gallery() GalleryContent {
	var images []GalleryImage
	add := func(url, alt string) {
		if url == "" {
			return
		}
		images = append(images, GalleryImage{ID: fmt.Sprintf("gallery-%d", len(images)+1), URL: url, Alt: truncate(alt, MaxItemTitle)})
	}
	services := t.serviceCopy()
	for i, img := range t.images().Services {
		alt := t.businessName()
		if i < len(services) {
			alt = services[i].Title
		}
		add(img.URL, alt)
	}
	for _, img := range t.images().Features {
		add(img.URL, t.businessName())
	}
	if len(images) == 0 {
		for i := 0; i < 3; i++ {
			add(catalog.StockImage(t.sector, "gallery", i), t.businessName())
		}
	}
	return GalleryContent{Title: "Galerie", Images: images}
}

var contactFields = []FormField{
	{Name: "name", Label: "Nom", Type: "text", Required: true},
	{Name: "email", Label: "E-mail", Type: "email", Required: true},
	{Name: "phone", Label: "Téléphone", Type: "tel", Required: false},
	{Name: "message", Label: "Message", Type: "textarea", Required: true},
}

func (t *transformer) contact() ContactContent {
	c := t.content().Contact
	return ContactContent{
		Title:      firstNonEmpty(c.Title, "Contactez-nous"),
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    firstNonEmpty(c.Address, catalog.FormatLocation(t.brief.Location)),
		Hours:      c.Hours,
		ShowForm:   true,
		FormFields: append([]FormField(nil), contactFields...),
	}
}

func (t *transformer) cta() CTAContent {
	home := t.content().Homepage
	return CTAContent{
		Title:    truncate(firstNonEmpty(home.HeroTitle, t.businessName()), MaxHeroTitle),
		Subtitle: truncate(firstNonEmpty(home.HeroSubtitle, t.brief.Offer), MaxHeroSubtitle),
		CTA:      CTA{Text: firstNonEmpty(home.CTAText, catalog.CTAText(t.sector)), Link: "#contact"},
	}
}

func (t *transformer) menu() MenuContent {
	list := t.serviceCopy()
	items := make([]MenuItem, 0, len(list))
	for i, s := range list {
		items = append(items, MenuItem{
			ID:          fmt.Sprintf("menu-%d", i+1),
			Name:        truncate(s.Title, MaxItemTitle),
			Description: truncate(s.Description, MaxItemDescription),
			Price:       s.Price,
			Image:       imageAt(t.images().Services, i),
		})
	}
	return MenuContent{Title: "Notre carte", Items: items}
}

var linkLabels = map[string]string{
	catalog.SectionAbout:        "À propos",
	catalog.SectionServices:     "Services",
	catalog.SectionMenu:         "Carte",
	catalog.SectionFeatures:     "Atouts",
	catalog.SectionGallery:      "Galerie",
	catalog.SectionTestimonials: "Avis",
	catalog.SectionContact:      "Contact",
}

func (t *transformer) footer(order []string) FooterContent {
	links := []Link{{Text: "Accueil", URL: "#hero"}}
	for _, s := range order {
		if label, ok := linkLabels[s]; ok {
			links = append(links, Link{Text: label, URL: "#" + s})
		}
	}
	name := t.businessName()
	return FooterContent{
		CompanyName: name,
		Logo:        t.state.Logo.Payload.ImageURL,
		Copyright:   fmt.Sprintf("© %s. Tous droits réservés.", name),
		Links:       links,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitSentences(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
