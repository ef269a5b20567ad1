package catalog

import (
	"sort"

	"github.com/genesis/genesis/internal/models"
)

// Fonts is the typography pair of a theme
type Fonts struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// StyleOptions are the rendering switches a theme sets
type StyleOptions struct {
	Layout       string `json:"layout"` // classic, split, centered, fullbleed
	BorderRadius string `json:"borderRadius"`
	Animations   bool   `json:"animations"`
	DarkMode     bool   `json:"darkMode"`
}

// ThemeFeatures groups colors, fonts and style flags
type ThemeFeatures struct {
	Colors models.Palette `json:"colors"`
	Fonts  Fonts          `json:"fonts"`
	Style  StyleOptions   `json:"style"`
}

// Theme is a catalog entry
type Theme struct {
	Slug     string        `json:"slug"`
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Tags     []string      `json:"tags"`
	Features ThemeFeatures `json:"features"`
	Active   bool          `json:"active"`
	Premium  bool          `json:"premium"`
}

var themes = []Theme{
	{
		Slug:     "savor",
		Name:     "Savor",
		Category: SectorRestaurant,
		Tags:     []string{"restaurant", "food", "maquis", "cafe", "catering", "bakery"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorRestaurant],
			Fonts:  Fonts{Heading: "Playfair Display", Body: "Source Sans Pro"},
			Style:  StyleOptions{Layout: "fullbleed", BorderRadius: "8px", Animations: true},
		},
		Active: true,
	},
	{
		Slug:     "luxe",
		Name:     "Luxe",
		Category: SectorLuxury,
		Tags:     []string{"luxury", "premium", "fashion", "jewelry", "hotel"},
		Features: ThemeFeatures{
			Colors: models.Palette{Primary: "#0B0B0B", Secondary: "#C9A227", Accent: "#E8DCC4", Background: "#111111", Text: "#F5F0E6"},
			Fonts:  Fonts{Heading: "Cormorant Garamond", Body: "Lato"},
			Style:  StyleOptions{Layout: "centered", BorderRadius: "0", Animations: true, DarkMode: true},
		},
		Active:  true,
		Premium: true,
	},
	{
		Slug:     "nova",
		Name:     "Nova",
		Category: SectorTech,
		Tags:     []string{"tech", "startup", "saas", "software", "fintech"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorTech],
			Fonts:  Fonts{Heading: "Inter", Body: "Inter"},
			Style:  StyleOptions{Layout: "split", BorderRadius: "12px", Animations: true},
		},
		Active: true,
	},
	{
		Slug:     "harmony",
		Name:     "Harmony",
		Category: SectorHealth,
		Tags:     []string{"health", "clinic", "wellness", "pharmacy"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorHealth],
			Fonts:  Fonts{Heading: "Nunito", Body: "Open Sans"},
			Style:  StyleOptions{Layout: "classic", BorderRadius: "16px"},
		},
		Active: true,
	},
	{
		Slug:     "eclat",
		Name:     "Éclat",
		Category: SectorBeauty,
		Tags:     []string{"beauty", "salon", "spa", "cosmetics"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorBeauty],
			Fonts:  Fonts{Heading: "Josefin Sans", Body: "Raleway"},
			Style:  StyleOptions{Layout: "centered", BorderRadius: "24px", Animations: true},
		},
		Active: true,
	},
	{
		Slug:     "atelier",
		Name:     "Atelier",
		Category: SectorArtisan,
		Tags:     []string{"artisan", "craft", "handmade", "couture"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorArtisan],
			Fonts:  Fonts{Heading: "Libre Baskerville", Body: "Karla"},
			Style:  StyleOptions{Layout: "classic", BorderRadius: "4px"},
		},
		Active: true,
	},
	{
		Slug:     "solidaire",
		Name:     "Solidaire",
		Category: SectorNGO,
		Tags:     []string{"ngo", "association", "charity", "community"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorNGO],
			Fonts:  Fonts{Heading: "Merriweather", Body: "Roboto"},
			Style:  StyleOptions{Layout: "fullbleed", BorderRadius: "8px"},
		},
		Active: true,
	},
	{
		Slug:     "vitrine",
		Name:     "Vitrine",
		Category: SectorRetail,
		Tags:     []string{"retail", "shop", "boutique", "ecommerce"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorRetail],
			Fonts:  Fonts{Heading: "Poppins", Body: "Poppins"},
			Style:  StyleOptions{Layout: "split", BorderRadius: "10px", Animations: true},
		},
		Active: true,
	},
	{
		Slug:     "campus",
		Name:     "Campus",
		Category: SectorEducation,
		Tags:     []string{"education", "school", "training", "tutoring"},
		Features: ThemeFeatures{
			Colors: sectorPalettes[SectorEducation],
			Fonts:  Fonts{Heading: "Montserrat", Body: "Open Sans"},
			Style:  StyleOptions{Layout: "classic", BorderRadius: "8px"},
		},
		Active: true,
	},
	{
		Slug:     "horizon",
		Name:     "Horizon",
		Category: SectorGeneric,
		Tags:     []string{"services", "consulting", "agency", "generic"},
		Features: ThemeFeatures{
			Colors: DefaultPalette,
			Fonts:  Fonts{Heading: "Montserrat", Body: "Roboto"},
			Style:  StyleOptions{Layout: "classic", BorderRadius: "6px"},
		},
		Active: true,
	},
	{
		Slug:     "legacy",
		Name:     "Legacy",
		Category: SectorGeneric,
		Tags:     []string{"generic"},
		Features: ThemeFeatures{
			Colors: DefaultPalette,
			Fonts:  Fonts{Heading: "Georgia", Body: "Arial"},
			Style:  StyleOptions{Layout: "classic"},
		},
		Active: false,
	},
}

// DefaultThemeSlug is used when no sector theme matches
const DefaultThemeSlug = "horizon"

// Themes returns a copy of the full catalog in catalog order
func Themes() []Theme {
	return append([]Theme(nil), themes...)
}

// ActiveThemes returns the active themes in catalog order
func ActiveThemes() []Theme {
	var active []Theme
	for _, t := range themes {
		if t.Active {
			active = append(active, t)
		}
	}
	return active
}

// ThemeBySlug looks up a theme
func ThemeBySlug(slug string) (*Theme, bool) {
	for i := range themes {
		if themes[i].Slug == slug {
			t := themes[i]
			return &t, true
		}
	}
	return nil, false
}

// ThemeForSector picks the first active theme whose category or tags match
// the sector; ok is false when the default theme was returned. Generic
// sectors never count as a match.
func ThemeForSector(sector string) (theme Theme, ok bool) {
	sector = NormalizeSector(sector)
	def, _ := ThemeBySlug(DefaultThemeSlug)
	if sector == SectorGeneric {
		return *def, false
	}
	for _, t := range themes {
		if t.Active && t.Category == sector {
			return t, true
		}
	}
	for _, t := range themes {
		if !t.Active {
			continue
		}
		for _, tag := range t.Tags {
			if tag == sector {
				return t, true
			}
		}
	}
	return *def, false
}

// SortedSlugs returns the active theme slugs sorted alphabetically
func SortedSlugs() []string {
	var slugs []string
	for _, t := range ActiveThemes() {
		slugs = append(slugs, t.Slug)
	}
	sort.Strings(slugs)
	return slugs
}
