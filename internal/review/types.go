package review

import (
	"time"
)

// RawReview holds the loosely-typed fields an extractor returns for one review.
type RawReview struct {
	ReviewID   string `json:"review_id"`
	Author     string `json:"author"`
	ReviewDate string `json:"review_date"`
	Rating     any    `json:"rating"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Seller     string `json:"seller"`
}

// Context carries the per-item fields shared by every review on a product.
type Context struct {
	Platform    string
	Brand       string
	ProductName string
	ProductURL  string
	SourceURL   string
	CollectedAt time.Time
}

// Record is the canonical, sink-ready form of a review.
type Record struct {
	Platform    string    `json:"platform"`
	Brand       string    `json:"brand"`
	ProductName string    `json:"product_name"`
	ProductURL  string    `json:"product_url"`
	ReviewID    string    `json:"review_id"`
	ReviewDate  string    `json:"review_date"`
	Rating      *float64  `json:"rating,omitempty"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	BodyHash    string    `json:"body_hash"`
	Key         string    `json:"dedup_key"`
	SourceURL   string    `json:"source_url"`
	CollectedAt time.Time `json:"collected_at"`
}

// Columns is the sink column order, A through O.
var Columns = []string{
	"collected_date",
	"collected_at",
	"brand",
	"platform",
	"product_name",
	"product_url",
	"review_id",
	"review_date",
	"rating",
	"author",
	"title",
	"body",
	"body_hash",
	"dedup_key",
	"source_url",
}

// Row renders r as a sink row with timestamps expressed in loc.
func (r Record) Row(loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	at := r.CollectedAt.In(loc)
	var rating any = ""
	if r.Rating != nil {
		rating = *r.Rating
	}
	return []any{
		at.Format("2006-01-02"),
		at.Format(time.RFC3339),
		r.Brand,
		r.Platform,
		r.ProductName,
		r.ProductURL,
		r.ReviewID,
		r.ReviewDate,
		rating,
		r.Author,
		r.Title,
		r.Body,
		r.BodyHash,
		r.Key,
		r.SourceURL,
	}
}
