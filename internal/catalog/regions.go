package catalog

import (
	"strings"

	"github.com/genesis/genesis/internal/models"
)

var regionalDomains = map[string][]string{
	"CI": {"abidjan.net", "linfodrome.com", "fratmat.info", "jeuneafrique.com"},
	"SN": {"seneweb.com", "lesoleil.sn", "senego.com", "jeuneafrique.com"},
	"ML": {"maliweb.net", "malijet.com", "jeuneafrique.com"},
	"CM": {"cameroon-tribune.cm", "actucameroun.com", "jeuneafrique.com"},
	"NG": {"businessday.ng", "nairametrics.com", "techcabal.com"},
	"KE": {"businessdailyafrica.com", "nation.africa", "techcabal.com"},
}

var defaultDomains = []string{"jeuneafrique.com", "africanews.com", "techcabal.com", "statista.com"}

// RegionalDomains returns the search domains biased toward a country
func RegionalDomains(countryCode string) []string {
	if d, ok := regionalDomains[strings.ToUpper(countryCode)]; ok {
		return d
	}
	return defaultDomains
}

// Language codes
const (
	LangFrench   = "fr"
	LangWolof    = "wo"
	LangBambara  = "bm"
	LangHausa    = "ha"
	LangSwahili  = "sw"
	LangLingala  = "ln"
	LangFulfulde = "ff"
	LangEnglish  = "en"
)

var countryLanguages = map[string][]string{
	"CI": {LangFrench},
	"SN": {LangFrench, LangWolof},
	"ML": {LangFrench, LangBambara},
	"NE": {LangFrench, LangHausa},
	"NG": {LangFrench, LangHausa},
	"KE": {LangFrench, LangSwahili},
	"TZ": {LangFrench, LangSwahili},
	"CD": {LangFrench, LangLingala},
	"CG": {LangFrench, LangLingala},
	"CM": {LangFrench, LangFulfulde},
	"GN": {LangFrench, LangFulfulde},
}

// Languages returns the target languages for a country; French is always first
func Languages(countryCode string) []string {
	if langs, ok := countryLanguages[strings.ToUpper(countryCode)]; ok {
		return append([]string(nil), langs...)
	}
	return []string{LangFrench}
}

var countryNames = map[string]string{
	"CI": "Côte d'Ivoire",
	"SN": "Sénégal",
	"ML": "Mali",
	"NE": "Niger",
	"NG": "Nigeria",
	"KE": "Kenya",
	"TZ": "Tanzanie",
	"CD": "RD Congo",
	"CG": "Congo",
	"CM": "Cameroun",
	"GN": "Guinée",
	"BF": "Burkina Faso",
	"BJ": "Bénin",
	"TG": "Togo",
}

// CountryName returns a display name for an ISO country code
func CountryName(code string) string {
	if name, ok := countryNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}

// FormatLocation renders a location as "district, city, country"
func FormatLocation(loc models.Location) string {
	var parts []string
	for _, p := range []string{loc.District, loc.City, CountryName(loc.CountryCode)} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Stock images used when generation fails
var (
	StockHeroImages = []string{
		"https://images.unsplash.com/photo-1556761175-b413da4baf72?w=1792&h=1024&fit=crop",
		"https://images.unsplash.com/photo-1521737604893-d14cc237f11d?w=1792&h=1024&fit=crop",
	}
	StockContentImages = []string{
		"https://images.unsplash.com/photo-1497366216548-37526070297c?w=1024&h=1024&fit=crop",
		"https://images.unsplash.com/photo-1522071820081-009f0129c71c?w=1024&h=1024&fit=crop",
		"https://images.unsplash.com/photo-1454165804606-c3d57bc86b40?w=1024&h=1024&fit=crop",
		"https://images.unsplash.com/photo-1504384308090-c894fdcc538d?w=1024&h=1024&fit=crop",
	}
	sectorStockHero = map[string]string{
		SectorRestaurant: "https://images.unsplash.com/photo-1517248135467-4c7edcad34c4?w=1792&h=1024&fit=crop",
		SectorTech:       "https://images.unsplash.com/photo-1518770660439-4636190af475?w=1792&h=1024&fit=crop",
		SectorBeauty:     "https://images.unsplash.com/photo-1560066984-138dadb4c035?w=1792&h=1024&fit=crop",
	}
)

// PlaceholderLogoURL is returned when logo generation fails
const PlaceholderLogoURL = "/static/placeholders/logo.png"

// StockImage returns a deterministic stock URL for an image kind and index
func StockImage(sector, kind string, index int) string {
	if kind == "hero" {
		if url, ok := sectorStockHero[NormalizeSector(sector)]; ok {
			return url
		}
		return StockHeroImages[0]
	}
	if index < 0 {
		index = -index
	}
	return StockContentImages[index%len(StockContentImages)]
}
