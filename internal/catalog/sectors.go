// Package catalog holds the immutable lookup tables shared by the agents,
// the coach and the site transformer. Nothing in this package is mutated
// after init.
package catalog

import (
	"strings"
	"unicode"

	"github.com/genesis/genesis/internal/models"
)

// Closed list of sectors recognised by the classifier
const (
	SectorRestaurant = "restaurant"
	SectorRetail     = "retail"
	SectorTech       = "tech"
	SectorHealth     = "health"
	SectorEducation  = "education"
	SectorBeauty     = "beauty"
	SectorNGO        = "ngo"
	SectorArtisan    = "artisan"
	SectorLuxury     = "luxury"
	SectorServices   = "services"
	SectorGeneric    = "generic"
)

// Sectors is the closed sector list, in classification priority order
var Sectors = []string{
	SectorRestaurant,
	SectorRetail,
	SectorTech,
	SectorHealth,
	SectorEducation,
	SectorBeauty,
	SectorNGO,
	SectorArtisan,
	SectorLuxury,
	SectorServices,
	SectorGeneric,
}

var sectorKeywords = []struct {
	sector   string
	keywords []string
}{
	{SectorRestaurant, []string{"restaur", "food", "cuisine", "maquis", "cafe", "café", "bar", "traiteur", "catering", "boulang", "bakery", "pizz", "brunch", "snack"}},
	{SectorRetail, []string{"commerce", "boutique", "shop", "magasin", "retail", "vente", "epicerie", "épicerie", "supermarch"}},
	{SectorTech, []string{"tech", "logiciel", "software", "digital", "numérique", "numerique", "startup", "informatique", "ai", "saas", "fintech"}},
	{SectorHealth, []string{"santé", "sante", "health", "clinique", "clinic", "pharmac", "médical", "medical", "dentist", "hôpital", "hopital"}},
	{SectorEducation, []string{"éducation", "education", "école", "ecole", "school", "formation", "training", "université", "universite", "tutorat"}},
	{SectorBeauty, []string{"beauté", "beaute", "beauty", "salon", "coiffure", "spa", "cosmét", "cosmet", "esthétique", "manucure"}},
	{SectorNGO, []string{"ong", "ngo", "association", "fondation", "foundation", "charity", "humanitaire", "caritati"}},
	{SectorArtisan, []string{"artisan", "craft", "couture", "menuiserie", "bijou", "poterie", "tissage", "sculpt"}},
	{SectorLuxury, []string{"luxe", "luxury", "premium", "prestige", "haut-de-gamme"}},
	{SectorServices, []string{"service", "conseil", "consulting", "agence", "agency", "cabinet", "nettoyage", "transport"}},
}

// NormalizeSector maps free text (e.g. "Restauration") onto the closed
// sector list. Unknown input maps to SectorGeneric.
func NormalizeSector(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SectorGeneric
	}
	for _, s := range Sectors {
		if raw == s {
			return s
		}
	}

	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	for _, entry := range sectorKeywords {
		for _, kw := range entry.keywords {
			for _, tok := range tokens {
				// short keywords must match a whole token ("ai" is not "aide")
				if len(kw) <= 3 {
					if tok == kw {
						return entry.sector
					}
					continue
				}
				if strings.HasPrefix(tok, kw) {
					return entry.sector
				}
			}
		}
	}
	return SectorGeneric
}

// IsSector reports whether s is on the closed list
func IsSector(s string) bool {
	for _, sector := range Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// DefaultPalette is the neutral blue/green palette used when nothing else applies
var DefaultPalette = models.Palette{
	Primary:    "#1E6FD9",
	Secondary:  "#2BAE66",
	Accent:     "#F5A623",
	Background: "#FFFFFF",
	Text:       "#1F2933",
}

var sectorPalettes = map[string]models.Palette{
	SectorRestaurant: {Primary: "#B5452B", Secondary: "#F4A259", Accent: "#2E5E4E", Background: "#FFF8F0", Text: "#2B1D14"},
	SectorRetail:     {Primary: "#7B2CBF", Secondary: "#FF6D00", Accent: "#FFD60A", Background: "#FFFFFF", Text: "#1B1B1E"},
	SectorTech:       {Primary: "#2563EB", Secondary: "#0F172A", Accent: "#22D3EE", Background: "#F8FAFC", Text: "#0F172A"},
	SectorHealth:     {Primary: "#0E9F6E", Secondary: "#E0F2F1", Accent: "#3B82F6", Background: "#FFFFFF", Text: "#1F2937"},
	SectorEducation:  {Primary: "#1D4ED8", Secondary: "#FBBF24", Accent: "#10B981", Background: "#FFFFFF", Text: "#111827"},
	SectorBeauty:     {Primary: "#D63384", Secondary: "#F8D7E3", Accent: "#C9A227", Background: "#FFFAFC", Text: "#3A2430"},
	SectorNGO:        {Primary: "#2F855A", Secondary: "#F6E05E", Accent: "#DD6B20", Background: "#FFFFFF", Text: "#1A202C"},
	SectorArtisan:    {Primary: "#8B5E34", Secondary: "#E9C46A", Accent: "#264653", Background: "#FDF8F2", Text: "#2D2318"},
	SectorLuxury:     {Primary: "#111111", Secondary: "#C9A227", Accent: "#F5F0E6", Background: "#0B0B0B", Text: "#F5F0E6"},
	SectorServices:   {Primary: "#334E68", Secondary: "#9FB3C8", Accent: "#F0B429", Background: "#FFFFFF", Text: "#102A43"},
}

// SectorPalette returns the default palette for a sector and whether one exists
func SectorPalette(sector string) (models.Palette, bool) {
	p, ok := sectorPalettes[NormalizeSector(sector)]
	return p, ok
}

// Section types of a SiteDefinition
const (
	SectionHero         = "hero"
	SectionAbout        = "about"
	SectionServices     = "services"
	SectionFeatures     = "features"
	SectionTestimonials = "testimonials"
	SectionGallery      = "gallery"
	SectionContact      = "contact"
	SectionFooter       = "footer"
	SectionCTA          = "cta"
	SectionMenu         = "menu"
)

var defaultSectionOrder = []string{SectionHero, SectionAbout, SectionServices, SectionFeatures, SectionTestimonials, SectionContact, SectionFooter}

// section orders by sector and by theme category; every order starts with
// hero and ends with footer
var sectionOrders = map[string][]string{
	SectorRestaurant: {SectionHero, SectionAbout, SectionMenu, SectionFeatures, SectionGallery, SectionTestimonials, SectionContact, SectionFooter},
	SectorRetail:     {SectionHero, SectionFeatures, SectionServices, SectionGallery, SectionTestimonials, SectionCTA, SectionContact, SectionFooter},
	SectorTech:       {SectionHero, SectionFeatures, SectionServices, SectionAbout, SectionTestimonials, SectionCTA, SectionContact, SectionFooter},
	SectorHealth:     {SectionHero, SectionServices, SectionAbout, SectionFeatures, SectionTestimonials, SectionContact, SectionFooter},
	SectorEducation:  {SectionHero, SectionAbout, SectionServices, SectionFeatures, SectionTestimonials, SectionCTA, SectionContact, SectionFooter},
	SectorBeauty:     {SectionHero, SectionServices, SectionGallery, SectionAbout, SectionTestimonials, SectionContact, SectionFooter},
	SectorNGO:        {SectionHero, SectionAbout, SectionFeatures, SectionGallery, SectionCTA, SectionContact, SectionFooter},
	SectorArtisan:    {SectionHero, SectionAbout, SectionGallery, SectionServices, SectionTestimonials, SectionContact, SectionFooter},
	SectorLuxury:     {SectionHero, SectionAbout, SectionServices, SectionFeatures, SectionContact, SectionFooter},
	SectorServices:   {SectionHero, SectionServices, SectionAbout, SectionFeatures, SectionTestimonials, SectionCTA, SectionContact, SectionFooter},
}

// SectionOrder returns the section order for a sector or theme category.
// The returned slice is a copy.
func SectionOrder(sectorOrCategory string) []string {
	order, ok := sectionOrders[sectorOrCategory]
	if !ok {
		order, ok = sectionOrders[NormalizeSector(sectorOrCategory)]
	}
	if !ok {
		order = defaultSectionOrder
	}
	return append([]string(nil), order...)
}

var sectorIcons = map[string][]string{
	SectorRestaurant: {"utensils", "coffee", "truck", "star", "clock"},
	SectorRetail:     {"shopping-bag", "tag", "gift", "truck", "credit-card"},
	SectorTech:       {"cpu", "cloud", "shield", "code", "zap"},
	SectorHealth:     {"heart", "activity", "plus-circle", "calendar", "user-check"},
	SectorEducation:  {"book-open", "award", "users", "edit", "globe"},
	SectorBeauty:     {"scissors", "droplet", "sun", "feather", "smile"},
	SectorNGO:        {"heart", "users", "globe", "hand", "leaf"},
	SectorArtisan:    {"tool", "pen-tool", "package", "award", "map-pin"},
	SectorLuxury:     {"diamond", "crown", "star", "gem", "key"},
	SectorServices:   {"briefcase", "check-circle", "phone", "clipboard", "trending-up"},
}

var defaultIcons = []string{"star", "check-circle", "zap", "heart", "shield"}

// Icons returns the icon list for a sector
func Icons(sector string) []string {
	if icons, ok := sectorIcons[NormalizeSector(sector)]; ok {
		return icons
	}
	return defaultIcons
}

var sectorCTA = map[string]string{
	SectorRestaurant: "Réserver une table",
	SectorRetail:     "Découvrir la boutique",
	SectorTech:       "Demander une démo",
	SectorHealth:     "Prendre rendez-vous",
	SectorEducation:  "S'inscrire",
	SectorBeauty:     "Réserver un soin",
	SectorNGO:        "Nous soutenir",
	SectorArtisan:    "Voir nos créations",
	SectorLuxury:     "Découvrir la collection",
	SectorServices:   "Demander un devis",
}

// CTAText returns the default call-to-action text for a sector
func CTAText(sector string) string {
	if cta, ok := sectorCTA[NormalizeSector(sector)]; ok {
		return cta
	}
	return "Nous contacter"
}

var industryLogoStyle = map[string]string{
	SectorRestaurant: "elegant",
	SectorRetail:     "modern",
	SectorTech:       "tech",
	SectorHealth:     "minimal",
	SectorEducation:  "friendly",
	SectorBeauty:     "elegant",
	SectorNGO:        "friendly",
	SectorArtisan:    "handcrafted",
	SectorLuxury:     "luxury",
	SectorServices:   "corporate",
}

// LogoStyle returns the effective logo style for an industry, falling back
// to the requested style and then to "modern"
func LogoStyle(industry, requested string) string {
	if style, ok := industryLogoStyle[NormalizeSector(industry)]; ok {
		return style
	}
	if requested != "" {
		return requested
	}
	return "modern"
}
