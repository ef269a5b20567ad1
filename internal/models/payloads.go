package models

// ResearchData is the market research slot payload
type ResearchData struct {
	MarketSize      string       `json:"market_size"`
	Competitors     []Competitor `json:"competitors"`
	Opportunities   []string     `json:"opportunities"`
	Pricing         string       `json:"pricing"`
	Differentiators []string     `json:"differentiators"`
	CulturalFactors string       `json:"cultural_factors"`
	Risks           []string     `json:"risks"`
	SuccessKeys     []string     `json:"success_keys"`
	Sources         []string     `json:"sources,omitempty"`
}

// Competitor is one competitor found during research
type Competitor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Palette is a set of brand colors
type Palette struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background,omitempty"`
	Text       string `json:"text,omitempty"`
}

// ContentData is the marketing copy slot payload
type ContentData struct {
	Languages   []string        `json:"languages"`
	Homepage    HomepageContent `json:"homepage"`
	About       AboutContent    `json:"about"`
	Services    []ServiceCopy   `json:"services"`
	Contact     ContactContent  `json:"contact"`
	SEO         SEOMetadata     `json:"seo"`
	BrandColors *Palette        `json:"brand_colors,omitempty"`
	// FallbackJobs lists the jobs replaced by deterministic copy
	FallbackJobs []string `json:"fallback_jobs,omitempty"`
}

// HomepageContent is the homepage copy
type HomepageContent struct {
	HeroTitle        string        `json:"hero_title"`
	HeroSubtitle     string        `json:"hero_subtitle"`
	ValueProposition string        `json:"value_proposition"`
	TrustSignals     []string      `json:"trust_signals"`
	CTAText          string        `json:"cta_text"`
	Features         []FeatureCopy `json:"features,omitempty"`
}

// FeatureCopy is one value point
type FeatureCopy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AboutContent is the about page copy
type AboutContent struct {
	Title   string `json:"title"`
	Story   string `json:"story"`
	Mission string `json:"mission"`
	Vision  string `json:"vision"`
}

// ServiceCopy describes one service
type ServiceCopy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price,omitempty"`
}

// ContactContent is computed from the brief without an LLM
type ContactContent struct {
	Title   string `json:"title"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Hours   string `json:"hours,omitempty"`
}

// SEOMetadata is the page-level metadata computed by the content agent
type SEOMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// LogoData is the logo slot payload
type LogoData struct {
	ImageURL   string `json:"image_url"`
	PromptUsed string `json:"prompt_used,omitempty"`
	Style      string `json:"style"`
	Cached     bool   `json:"cached"`
}

// GeneratedImage is one content image
type GeneratedImage struct {
	Kind       string `json:"kind"` // hero, service, feature
	Index      int    `json:"index"`
	URL        string `json:"url"`
	SourceURL  string `json:"source_url,omitempty"`
	PromptUsed string `json:"prompt_used,omitempty"`
	Size       string `json:"size"`
	Stock      bool   `json:"stock"`
	Cached     bool   `json:"cached"`
}

// ImagesData is the content images slot payload
type ImagesData struct {
	Hero     *GeneratedImage  `json:"hero,omitempty"`
	Services []GeneratedImage `json:"services,omitempty"`
	Features []GeneratedImage `json:"features,omitempty"`
}

// HeadingStructure is the recommended page heading outline
type HeadingStructure struct {
	H1         string   `json:"h1"`
	H2Sections []string `json:"h2_sections"`
}

// SEOData is the SEO slot payload
type SEOData struct {
	PrimaryKeywords   []string         `json:"primary_keywords"`
	SecondaryKeywords []string         `json:"secondary_keywords"`
	MetaTitle         string           `json:"meta_title"`
	MetaDescription   string           `json:"meta_description"`
	HeadingStructure  HeadingStructure `json:"heading_structure"`
	LocalSEO          string           `json:"local_seo"`
}

// ThemeSelection is the selected theme reference
type ThemeSelection struct {
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Source   string `json:"source"` // preselected, sector_match, default
}
