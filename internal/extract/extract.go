// Package extract harvests page content into the per-page archive: text,
// headlines, images, metadata, links, screenshots, and a run summary. All
// field harvesting runs over a single HTML snapshot of the rendered page;
// these are fixed attribute reads with no state, invoked once the
// authentication flow has confirmed access.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Headline is one h1/h2/h3 element.
type Headline struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Image describes one img element. Relative sources are resolved against the
// page URL.
type Image struct {
	Index  int    `json:"index"`
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// Metadata collects the page's meta tags.
type Metadata struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Keywords    string            `json:"keywords,omitempty"`
	Author      string            `json:"author,omitempty"`
	OGTags      map[string]string `json:"og_tags"`
	Canonical   string            `json:"canonical,omitempty"`
	Language    string            `json:"language,omitempty"`
}

// Link is one anchor element.
type Link struct {
	URL    string `json:"url"`
	Text   string `json:"text,omitempty"`
	Rel    string `json:"rel,omitempty"`
	Target string `json:"target,omitempty"`
}

// Links categorizes a page's anchors. A link can appear in more than one
// bucket (a social link in the footer is also a navigation link).
type Links struct {
	Internal   []Link `json:"internal"`
	External   []Link `json:"external"`
	Navigation []Link `json:"navigation"`
	Social     []Link `json:"social"`
}

// Total counts internal and external links.
func (l Links) Total() int {
	return len(l.Internal) + len(l.External)
}

var socialPatterns = []string{"facebook", "twitter", "instagram", "linkedin", "youtube", "tiktok"}

// Headlines returns all h1/h2/h3 elements in document order per level.
func Headlines(doc *goquery.Document) []Headline {
	headlines := []Headline{}
	for _, level := range []string{"h1", "h2", "h3"} {
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			headlines = append(headlines, Headline{
				Type: level,
				Text: strings.TrimSpace(s.Text()),
			})
		})
	}
	return headlines
}

// Images returns every img with a src, resolved to absolute URLs.
func Images(doc *goquery.Document, baseURL string) []Image {
	base, _ := url.Parse(baseURL)
	images := []Image{}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return
		}

		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		if alt == "" {
			alt = "No alt text"
		}

		images = append(images, Image{
			Index:  i,
			Src:    absoluteURL(base, src),
			Alt:    alt,
			Width:  s.AttrOr("width", ""),
			Height: s.AttrOr("height", ""),
		})
	})
	return images
}

// Meta extracts the page's metadata: standard meta tags, Open Graph
// properties, canonical URL, and document language.
func Meta(doc *goquery.Document, title, pageURL string) Metadata {
	m := Metadata{
		Title:  title,
		URL:    pageURL,
		OGTags: map[string]string{},
	}

	m.Description = doc.Find(`meta[name="description"]`).AttrOr("content", "")
	m.Keywords = doc.Find(`meta[name="keywords"]`).AttrOr("content", "")
	m.Author = doc.Find(`meta[name="author"]`).AttrOr("content", "")

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop := s.AttrOr("property", "")
		content := s.AttrOr("content", "")
		if prop != "" && content != "" {
			m.OGTags[prop] = content
		}
	})

	m.Canonical = doc.Find(`link[rel="canonical"]`).AttrOr("href", "")
	m.Language = doc.Find("html").AttrOr("lang", "")
	return m
}

// AllLinks categorizes every anchor with an href. Hrefs are resolved to
// absolute URLs; mailto and tel links count as external.
func AllLinks(doc *goquery.Document, baseURL string) Links {
	base, _ := url.Parse(baseURL)
	baseHost := ""
	if base != nil {
		baseHost = base.Host
	}

	links := Links{
		Internal:   []Link{},
		External:   []Link{},
		Navigation: []Link{},
		Social:     []Link{},
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if href == "" {
			return
		}

		if !strings.HasPrefix(href, "mailto:") && !strings.HasPrefix(href, "tel:") {
			href = absoluteURL(base, href)
		}

		text := strings.TrimSpace(s.Text())
		if len(text) > 100 {
			text = text[:100]
		}

		link := Link{
			URL:    href,
			Text:   text,
			Rel:    s.AttrOr("rel", ""),
			Target: s.AttrOr("target", ""),
		}

		switch {
		case strings.HasPrefix(href, "mailto:"), strings.HasPrefix(href, "tel:"):
			links.External = append(links.External, link)
		case baseHost != "" && strings.Contains(href, baseHost):
			links.Internal = append(links.Internal, link)
		default:
			links.External = append(links.External, link)
		}

		lower := strings.ToLower(href)
		for _, pattern := range socialPatterns {
			if strings.Contains(lower, pattern) {
				links.Social = append(links.Social, link)
				break
			}
		}

		if s.ParentsFiltered("nav, header, footer").Length() > 0 {
			links.Navigation = append(links.Navigation, link)
		}
	})
	return links
}

func absoluteURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s-]`)

// SafeFilename converts a page title into a filesystem-safe folder base:
// unsafe characters dropped, surrounding space trimmed, spaces to
// underscores.
func SafeFilename(title string) string {
	safe := unsafeFilenameChars.ReplaceAllString(title, "")
	safe = strings.TrimSpace(safe)
	safe = strings.ReplaceAll(safe, " ", "_")
	if safe == "" {
		safe = "untitled"
	}
	return safe
}
