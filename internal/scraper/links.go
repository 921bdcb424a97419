package scraper

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultSiteURL is the host relative detail references resolve against
	DefaultSiteURL = "https://www.troopwebhost.org/"

	// DetailMarker identifies a reference to an event detail page
	DetailMarker = "FormDetail.aspx"
)

var (
	// Unwraps "javascript:LinkTo('FormDetail.aspx?...','')" and absolute URLs
	// down to "FormDetail.aspx?<query>"
	detailRefPattern = regexp.MustCompile(`(?i)FormDetail\.aspx\?[^'"()]+`)

	// Last-resort scan of the raw page
	rawDetailPattern = regexp.MustCompile(`(?i)FormDetail\.aspx\?[^"'<> ]*ID=\d+[^"'<> ]*`)

	// A standalone numeric ID parameter; Form_ID does not count
	idParamPattern = regexp.MustCompile(`(?i)[?&]ID=\d+(?:[&#]|$)`)
)

// Link is a candidate event detail page found on a listing page
type Link struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ExtractLinks returns the deduplicated detail-page links referenced by a
// listing page, in first-seen order. Passes run in this order:
//
//  1. anchors: href, then onclick, titled with the anchor text
//  2. any element with an onclick handler, titled with its text
//  3. a regex scan of the raw HTML, untitled
//
// Malformed markup is tolerated and an empty result is not an error.
func ExtractLinks(rawHTML, siteURL string) []Link {
	c := newLinkCollector(siteURL)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err == nil {
		// Strategy 1: anchors
		doc.Find("a").Each(func(_ int, a *goquery.Selection) {
			title := visibleText(a)
			c.add(a.AttrOr("href", ""), title)
			c.add(a.AttrOr("onclick", ""), title)
		})

		// Strategy 2: clickable rows and cells
		doc.Find("[onclick]").Each(func(_ int, el *goquery.Selection) {
			c.add(el.AttrOr("onclick", ""), visibleText(el))
		})
	}

	// Strategy 3: raw markup, including script blocks
	for _, m := range rawDetailPattern.FindAllString(rawHTML, -1) {
		c.add(html.UnescapeString(m), "")
	}

	return c.links
}

// NormalizeRef turns an href or click-handler value into an absolute detail
// URL. ok is false unless the reference names the detail page and carries a
// numeric ID parameter.
func NormalizeRef(ref, siteURL string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	if m := detailRefPattern.FindString(ref); m != "" {
		ref = strings.TrimSpace(m)
	}

	if !strings.Contains(strings.ToLower(ref), strings.ToLower(DetailMarker)) {
		return "", false
	}
	if !idParamPattern.MatchString(ref) {
		return "", false
	}

	if siteURL == "" {
		siteURL = DefaultSiteURL
	}
	base, err := url.Parse(siteURL)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(u).String(), true
}

// QueryParam returns a query parameter of a detail URL, or "" when absent or
// the URL does not parse.
func QueryParam(rawURL, name string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(name)
}

type linkCollector struct {
	siteURL string
	seen    map[string]bool
	links   []Link
}

func newLinkCollector(siteURL string) *linkCollector {
	return &linkCollector{
		siteURL: siteURL,
		seen:    make(map[string]bool),
		links:   make([]Link, 0),
	}
}

// add records ref unless it is not a detail reference or was already seen.
// The first occurrence keeps its title.
func (c *linkCollector) add(ref, title string) {
	u, ok := NormalizeRef(ref, c.siteURL)
	if !ok || c.seen[u] {
		return
	}
	c.seen[u] = true
	c.links = append(c.links, Link{URL: u, Title: collapseSpace(title)})
}
