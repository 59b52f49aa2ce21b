package discovery

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/review-hub/internal/detector"
	"github.com/JakeFAU/review-hub/internal/review"
)

// Profile carries the site-specific scripts and URL rules for a listing.
type Profile struct {
	Name string
	// LinkScript evaluates to a JSON array of absolute hrefs.
	LinkScript string
	// LinkFilter keeps hrefs that point at items.
	LinkFilter func(href string) bool
	// Canonicalize maps an item href to its locator.
	Canonicalize func(href string) string
	ScrollScript string
	// PageParam is the listing's pagination query key.
	PageParam string
	// MaxPages caps listing pages below Options.MaxPages. Infinite-scroll
	// listings set 1.
	MaxPages int
	// PageStateScript feeds blocked detection.
	PageStateScript string
}

// CoupangProfile discovers /vp/products/ links on a brandshop listing.
func CoupangProfile() Profile {
	return Profile{
		Name: "coupang_brandshop",
		LinkScript: `Array.from(new Set(Array.from(document.querySelectorAll('a[href]'))
  .map(a => a.href)
  .filter(h => h && h.includes('/vp/products/'))))`,
		LinkFilter: func(href string) bool {
			return strings.Contains(href, "/vp/products/")
		},
		Canonicalize:    review.CanonicalProductURL,
		ScrollScript:    `(() => { window.scrollTo(0, document.body.scrollHeight); return {y: window.scrollY}; })()`,
		PageParam:       "page",
		PageStateScript: detector.PageStateScript,
	}
}

var ohouGoods = regexp.MustCompile(`/goods/(\d+)`)

// OhouProfile discovers /goods/ links on a scrolling brand store page.
func OhouProfile() Profile {
	return Profile{
		Name: "ohou_brand",
		LinkScript: `Array.from(new Set(Array.from(document.querySelectorAll('a[href]'))
  .map(a => a.href)
  .filter(h => h && h.includes('/goods/'))))`,
		LinkFilter: ohouGoods.MatchString,
		Canonicalize: func(href string) string {
			if m := ohouGoods.FindStringSubmatch(href); m != nil {
				return "https://store.ohou.se/goods/" + m[1]
			}
			return strings.TrimSpace(href)
		},
		ScrollScript:    `(() => { window.scrollTo(0, document.body.scrollHeight); return {y: window.scrollY, h: document.body.scrollHeight}; })()`,
		MaxPages:        1,
		PageStateScript: detector.PageStateScript,
	}
}

func (p Profile) withDefaults() Profile {
	if p.LinkFilter == nil {
		p.LinkFilter = func(string) bool { return true }
	}
	if p.Canonicalize == nil {
		p.Canonicalize = strings.TrimSpace
	}
	if p.PageParam == "" {
		p.PageParam = "page"
	}
	if p.PageStateScript == "" {
		p.PageStateScript = detector.PageStateScript
	}
	return p
}
