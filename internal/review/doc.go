// Package review defines the canonical review record, its content-derived
// identity key and the pure normalization that produces both.
package review
