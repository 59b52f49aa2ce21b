package review

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/review-hub/internal/hash/sha256"
)

// ContentHash returns the hex SHA-256 of a review body.
func ContentHash(body string) string {
	return sha256.Sum(body)
}

// IdentityKey derives the stable key of one logical review. productURL must
// already be canonical.
func IdentityKey(platform, productURL, author, reviewDate, bodyHash string) string {
	return sha256.Join(platform, productURL, author, reviewDate, bodyHash)
}

// Normalize maps a raw extraction into a Record. It performs no I/O and the
// same input always yields the same key.
func Normalize(raw RawReview, c Context) Record {
	productURL := CanonicalProductURL(c.ProductURL)
	sourceURL := strings.TrimSpace(c.SourceURL)
	if sourceURL == "" {
		sourceURL = productURL
	}
	platform := strings.TrimSpace(c.Platform)
	author := strings.TrimSpace(raw.Author)
	reviewDate := strings.TrimSpace(raw.ReviewDate)
	body := strings.TrimSpace(raw.Body)
	// The hash covers the body as extracted, whitespace included.
	bodyHash := ContentHash(raw.Body)

	return Record{
		Platform:    platform,
		Brand:       strings.TrimSpace(c.Brand),
		ProductName: strings.TrimSpace(c.ProductName),
		ProductURL:  productURL,
		ReviewID:    strings.TrimSpace(raw.ReviewID),
		ReviewDate:  reviewDate,
		Rating:      ParseRating(raw.Rating),
		Author:      author,
		Title:       strings.TrimSpace(raw.Title),
		Body:        body,
		BodyHash:    bodyHash,
		Key:         IdentityKey(platform, productURL, author, reviewDate, bodyHash),
		SourceURL:   sourceURL,
		CollectedAt: c.CollectedAt,
	}
}

// ParseRating accepts numbers and numeric strings; anything else is nil.
func ParseRating(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	return &f
}
