package httpsource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/review-hub/internal/review"
)

// IsReviewBoardURL reports whether rawURL is a shop_review board view page.
func IsReviewBoardURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Query().Get("interlock") == "shop_review"
}

// Parse picks the parser for pageURL and returns the product name and reviews.
func Parse(body []byte, pageURL string) (string, []review.RawReview, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("parse html: %w", err)
	}
	if IsReviewBoardURL(pageURL) {
		name, reviews := parseReviewBoard(doc, pageURL)
		return name, reviews, nil
	}
	name, reviews := parseProductPage(doc, pageURL)
	return name, reviews, nil
}

// parseProductPage reads Review objects embedded as JSON-LD. Stores that load
// reviews dynamically yield none.
func parseProductPage(doc *goquery.Document, pageURL string) (string, []review.RawReview) {
	name := strings.TrimSpace(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if name == "" {
		name = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if name == "" {
		name = pageURL
	}

	var out []review.RawReview
	doc.Find(`script[type*="ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return
		}
		for _, r := range findReviews(data) {
			body := strings.TrimSpace(stringField(r, "reviewBody"))
			if body == "" {
				continue
			}
			var author string
			if a, ok := r["author"].(map[string]any); ok {
				author = stringField(a, "name")
			}
			var rating any
			if rr, ok := r["reviewRating"].(map[string]any); ok {
				rating = rr["ratingValue"]
			}
			out = append(out, review.RawReview{
				ReviewID:   stringField(r, "@id"),
				Author:     author,
				ReviewDate: stringField(r, "datePublished"),
				Rating:     rating,
				Body:       body,
			})
		}
	})
	return name, out
}

// findReviews walks decoded JSON-LD for objects typed Review.
func findReviews(data any) []map[string]any {
	var out []map[string]any
	stack := []any{data}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch v := cur.(type) {
		case map[string]any:
			if v["@type"] == "Review" {
				out = append(out, v)
				continue
			}
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Sort(sort.Reverse(sort.StringSlice(keys)))
			for _, k := range keys {
				stack = append(stack, v[k])
			}
		case []any:
			// Reverse so document order survives the stack.
			for i := len(v) - 1; i >= 0; i-- {
				stack = append(stack, v[i])
			}
		}
	}
	return out
}

// parseReviewBoard reads one review from a board view page. The text area
// holds the product name on its first line and the body after it.
func parseReviewBoard(doc *goquery.Document, pageURL string) (string, []review.RawReview) {
	var lines []string
	if area := doc.Find(".board_txt_area").First(); area.Length() > 0 {
		html, _ := area.Html()
		for _, ln := range strings.Split(textLines(html), "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				lines = append(lines, ln)
			}
		}
	}
	var name, body string
	if len(lines) > 0 {
		name = lines[0]
	}
	if len(lines) > 1 {
		body = strings.Join(lines[1:], "\n")
	}

	title := collapse(doc.Find(".view_tit").First().Text())
	author := ""
	if fields := strings.Fields(doc.Find(".author").First().Text()); len(fields) > 0 {
		author = fields[0]
	}
	date := collapse(doc.Find(".date").First().Text())

	var rating any
	if stars := doc.Find(".interlock_star_point").First(); stars.Length() > 0 {
		if n := stars.Find(".bt-star.active").Length(); n > 0 {
			rating = float64(n)
		}
	}

	var id string
	if u, err := url.Parse(pageURL); err == nil {
		id = u.Query().Get("idx")
	}
	if body == "" {
		body = title
	}
	if name == "" {
		name = pageURL
	}
	if body == "" {
		return name, nil
	}
	return name, []review.RawReview{{
		ReviewID:   id,
		Author:     author,
		ReviewDate: date,
		Rating:     rating,
		Title:      title,
		Body:       body,
	}}
}

// ReviewLinks returns the absolute, canonical board-view links on a listing page
// in document order.
func ReviewLinks(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	var out []string
	seen := make(map[string]struct{})
	doc.Find(`a[href*="interlock=shop_review"]`).Each(func(_ int, s *goquery.Selection) {
		ref, err := url.Parse(strings.TrimSpace(s.AttrOr("href", "")))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Query().Get("idx") == "" {
			return
		}
		link := review.CanonicalProductURL(abs.String())
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		out = append(out, link)
	})
	return out, nil
}

// textLines renders an HTML fragment as text with one line per block or <br>.
func textLines(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "</p>\n", "</div>", "</div>\n").Replace(fragment)))
	if err != nil {
		return ""
	}
	return doc.Text()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimSpace(fmt.Sprint(v))
	default:
		return ""
	}
}
