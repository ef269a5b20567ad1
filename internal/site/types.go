// Package site turns an orchestrated brief into a SiteDefinition, the
// front-end-agnostic description of the website preview.
package site

import (
	"github.com/genesis/genesis/internal/catalog"
	"github.com/genesis/genesis/internal/models"
)

// SiteDefinition is the renderable site description
type SiteDefinition struct {
	Metadata Metadata    `json:"metadata"`
	Theme    ThemeConfig `json:"theme"`
	Pages    []Page      `json:"pages"`
}

// Metadata is the page-level metadata
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	OGImage     string   `json:"ogImage,omitempty"`
	Favicon     string   `json:"favicon,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Languages   []string `json:"languages,omitempty"`
}

// ThemeConfig is the resolved theme
type ThemeConfig struct {
	Slug   string               `json:"slug,omitempty"`
	Colors models.Palette       `json:"colors"`
	Fonts  catalog.Fonts        `json:"fonts"`
	Style  catalog.StyleOptions `json:"style"`
}

// Page is one page of the site
type Page struct {
	ID       string    `json:"id"`
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
}

// Section is a tagged variant; Type determines the concrete Content type
type Section struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// Link is a navigation link
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// CTA is a primary call to action
type CTA struct {
	Text string `json:"text"`
	Link string `json:"link"`
}

type HeroContent struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Image    string `json:"image"`
	CTA      CTA    `json:"cta"`
}

type AboutContent struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Mission  string `json:"mission"`
	Vision   string `json:"vision"`
	Image    string `json:"image,omitempty"`
}

type ServiceItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Image       string `json:"image,omitempty"`
	Price       string `json:"price,omitempty"`
}

type ServicesContent struct {
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle,omitempty"`
	Services []ServiceItem `json:"services"`
}

type FeatureItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Image       string `json:"image,omitempty"`
}

type FeaturesContent struct {
	Title    string        `json:"title"`
	Subtitle string        `json:"subtitle,omitempty"`
	Features []FeatureItem `json:"features"`
}

type TestimonialItem struct {
	ID     string `json:"id"`
	Quote  string `json:"quote"`
	Author string `json:"author"`
	Rating int    `json:"rating"`
}

type TestimonialsContent struct {
	Title string            `json:"title"`
	Items []TestimonialItem `json:"items"`
}

type GalleryImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type GalleryContent struct {
	Title  string         `json:"title"`
	Images []GalleryImage `json:"images"`
}

type FormField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type ContactContent struct {
	Title      string      `json:"title"`
	Email      string      `json:"email,omitempty"`
	Phone      string      `json:"phone,omitempty"`
	Address    string      `json:"address,omitempty"`
	Hours      string      `json:"hours,omitempty"`
	ShowForm   bool        `json:"showForm"`
	FormFields []FormField `json:"formFields"`
}

type FooterContent struct {
	CompanyName string `json:"companyName"`
	Logo        string `json:"logo,omitempty"`
	Copyright   string `json:"copyright"`
	Links       []Link `json:"links"`
}

type CTAContent struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	CTA      CTA    `json:"cta"`
}

type MenuItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price,omitempty"`
	Image       string `json:"image,omitempty"`
}

type MenuContent struct {
	Title string     `json:"title"`
	Items []MenuItem `json:"items"`
}

// FirstPage returns the first page, or nil when the definition is empty
func (d *SiteDefinition) FirstPage() *Page {
	if d == nil || len(d.Pages) == 0 {
		return nil
	}
	return &d.Pages[0]
}

// SectionTypes lists the section types of a page in order
func (p *Page) SectionTypes() []string {
	types := make([]string, len(p.Sections))
	for i, s := range p.Sections {
		types[i] = s.Type
	}
	return types
}
