// Package ingest reads review exports produced outside the collectors and
// maps them onto raw reviews with their product context.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/review-hub/internal/review"
)

// Entry is one exported review with the product it belongs to.
type Entry struct {
	Raw     review.RawReview
	Context review.Context
}

// Defaults fill fields an export leaves empty.
type Defaults struct {
	Platform string
	Brand    string
}

// Records normalizes entries, stamping every record with collectedAt.
func Records(entries []Entry, collectedAt time.Time) []review.Record {
	out := make([]review.Record, 0, len(entries))
	for _, e := range entries {
		c := e.Context
		c.CollectedAt = collectedAt
		out = append(out, review.Normalize(e.Raw, c))
	}
	return out
}

// ohouGoodsURL locates a goods page when an export only carries its id.
const ohouGoodsURL = "https://store.ohou.se/goods/"

// ParseJSON accepts a bare array of reviews, {"reviews": [...]}, or
// {"items": [{"reviews": [...]}]}. Keys may be snake_case or camelCase.
func ParseJSON(r io.Reader, def Defaults) ([]Entry, error) {
	var payload any
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode review export: %w", err)
	}
	var out []Entry
	for _, obj := range flatten(payload) {
		out = append(out, entryOf(obj, def))
	}
	return out, nil
}

func flatten(payload any) []map[string]any {
	switch p := payload.(type) {
	case []any:
		return objects(p)
	case map[string]any:
		if list, ok := p["reviews"].([]any); ok {
			return objects(list)
		}
		items, _ := p["items"].([]any)
		var out []map[string]any
		for _, it := range objects(items) {
			list, _ := it["reviews"].([]any)
			out = append(out, objects(list)...)
		}
		return out
	}
	return nil
}

func objects(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func entryOf(m map[string]any, def Defaults) Entry {
	productURL := field(m, "product_url", "productUrl", "source_url", "sourceUrl")
	if productURL == "" {
		if id := field(m, "productionId", "production_id"); id != "" {
			productURL = ohouGoodsURL + id
		}
	}
	sourceURL := field(m, "source_url", "sourceUrl")
	if sourceURL == "" {
		sourceURL = productURL
	}
	platform := field(m, "platform")
	if platform == "" {
		platform = def.Platform
	}
	brand := field(m, "brand")
	if brand == "" {
		brand = def.Brand
	}
	// Body stays as exported; the content hash covers its exact text.
	body, _ := m["body"].(string)
	return Entry{
		Raw: review.RawReview{
			ReviewID:   field(m, "review_id", "reviewId"),
			Author:     field(m, "author"),
			ReviewDate: field(m, "review_date", "reviewDate"),
			Rating:     m["rating"],
			Title:      field(m, "title"),
			Body:       body,
		},
		Context: review.Context{
			Platform:    platform,
			Brand:       brand,
			ProductName: field(m, "product_name", "productName"),
			ProductURL:  productURL,
			SourceURL:   sourceURL,
		},
	}
}

// field returns the first non-empty value among keys, rendered as text.
func field(m map[string]any, keys ...string) string {
	for _, k := range keys {
		var s string
		switch v := m[k].(type) {
		case string:
			s = strings.TrimSpace(v)
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		}
		if s != "" {
			return s
		}
	}
	return ""
}
