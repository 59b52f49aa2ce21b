package ingest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/review-hub/internal/review"
)

// Columns names the header cells of a spreadsheet export. Empty names are
// not read.
type Columns struct {
	ProductName string
	ReviewID    string
	ReviewDate  string
	Rating      string
	Author      string
	Body        string
	// Media holds attachment links; the first URL becomes the source URL.
	Media string
}

// Sheet describes one storefront's review export.
type Sheet struct {
	Platform string
	Columns  Columns
}

// NaverSheet reads the Naver smartstore review download.
var NaverSheet = Sheet{
	Platform: "naver",
	Columns: Columns{
		ProductName: "상품명",
		ReviewID:    "리뷰글번호",
		ReviewDate:  "리뷰등록일",
		Rating:      "구매자평점",
		Author:      "등록자",
		Body:        "리뷰상세내용",
		Media:       "포토/영상",
	},
}

// ImwebSheet reads the Imweb purchase review download.
var ImwebSheet = Sheet{
	Platform: "imweb",
	Columns: Columns{
		ProductName: "상품명",
		ReviewID:    "글번호",
		ReviewDate:  "작성시각",
		Rating:      "평점",
		Author:      "작성자",
		Body:        "글 내용",
	},
}

// SheetFor returns the export layout of platform.
func SheetFor(platform string) (Sheet, bool) {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case NaverSheet.Platform:
		return NaverSheet, true
	case ImwebSheet.Platform:
		return ImwebSheet, true
	}
	return Sheet{}, false
}

// XLSXOptions filter and label spreadsheet rows.
type XLSXOptions struct {
	Brand string
	// ProductPattern keeps only rows whose product name matches.
	ProductPattern *regexp.Regexp
	// MaxRows bounds the data rows read. Zero reads all.
	MaxRows int
}

var firstURL = regexp.MustCompile(`https?://\S+`)

// ReadXLSX reads the active worksheet of a review export. Row 1 is the
// header; rows with neither a body nor a review id are skipped.
func ReadXLSX(r io.Reader, sheet Sheet, opts XLSXOptions) ([]Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only workbook

	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, fmt.Errorf("read worksheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		if h = strings.TrimSpace(h); h != "" {
			index[h] = i
		}
	}
	get := func(row []string, name string) string {
		i, ok := index[name]
		if name == "" || !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []Entry
	for n, row := range rows[1:] {
		if opts.MaxRows > 0 && n >= opts.MaxRows {
			break
		}
		c := sheet.Columns
		productName := get(row, c.ProductName)
		if opts.ProductPattern != nil && !opts.ProductPattern.MatchString(productName) {
			continue
		}
		body, id := get(row, c.Body), get(row, c.ReviewID)
		if body == "" && id == "" {
			continue
		}
		var rating any
		if s := get(row, c.Rating); s != "" {
			rating = s
		}
		out = append(out, Entry{
			Raw: review.RawReview{
				ReviewID:   id,
				Author:     get(row, c.Author),
				ReviewDate: get(row, c.ReviewDate),
				Rating:     rating,
				Body:       body,
			},
			Context: review.Context{
				Platform:    sheet.Platform,
				Brand:       opts.Brand,
				ProductName: productName,
				SourceURL:   firstURL.FindString(get(row, c.Media)),
			},
		})
	}
	return out, nil
}
