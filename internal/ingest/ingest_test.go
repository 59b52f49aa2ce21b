package ingest

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/review-hub/internal/review"
)

func TestParseJSONShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"bare array", `[{"body":"a"},{"body":"b"},"junk"]`, 2},
		{"reviews key", `{"reviews":[{"body":"a"}]}`, 1},
		{"items with reviews", `{"items":[{"productionId":1,"reviews":[{"body":"a"},{"body":"b"}]},{"reviews":[{"body":"c"}]}]}`, 3},
		{"unknown object", `{"data":[{"body":"a"}]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, err := ParseJSON(strings.NewReader(tt.payload), Defaults{Platform: "coupang"})
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestParseJSONFieldAliases(t *testing.T) {
	t.Parallel()

	payload := `[{
		"productName": "세럼",
		"productUrl": "https://www.coupang.com/vp/products/9?itemId=1",
		"reviewId": 123,
		"reviewDate": "2024.05.01",
		"author": "kim**",
		"rating": 4,
		"body": "좋아요\n"
	}]`
	entries, err := ParseJSON(strings.NewReader(payload), Defaults{Platform: "coupang", Brand: "acme"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "123", e.Raw.ReviewID)
	assert.Equal(t, "2024.05.01", e.Raw.ReviewDate)
	assert.Equal(t, "좋아요\n", e.Raw.Body)
	assert.Equal(t, "coupang", e.Context.Platform)
	assert.Equal(t, "acme", e.Context.Brand)
	assert.Equal(t, "세럼", e.Context.ProductName)
	assert.Equal(t, e.Context.ProductURL, e.Context.SourceURL)
}

func TestParseJSONOhouGoodsFallback(t *testing.T) {
	t.Parallel()

	payload := `{"items":[{"reviews":[{"productionId":42,"platform":"ohou","author":"a","body":"b"}]}]}`
	entries, err := ParseJSON(strings.NewReader(payload), Defaults{Platform: "coupang"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://store.ohou.se/goods/42", entries[0].Context.ProductURL)
	assert.Equal(t, "ohou", entries[0].Context.Platform)
}

func TestParseJSONRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := ParseJSON(strings.NewReader(`{"reviews":`), Defaults{})
	require.ErrorContains(t, err, "decode review export")
}

func TestRecordsMatchCollectorIdentity(t *testing.T) {
	t.Parallel()

	entries, err := ParseJSON(strings.NewReader(
		`[{"author":"abc**","review_date":"2024-01-02","body":"good product","product_url":"https://x/vp/products/123?ref=xyz"}]`),
		Defaults{Platform: "p1"})
	require.NoError(t, err)

	now := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	recs := Records(entries, now)
	require.Len(t, recs, 1)

	direct := review.Normalize(review.RawReview{Author: "abc**", ReviewDate: "2024-01-02", Body: "good product"},
		review.Context{Platform: "p1", ProductURL: "https://x/vp/products/123"})
	assert.Equal(t, direct.Key, recs[0].Key)
	assert.Equal(t, now, recs[0].CollectedAt)
}

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadXLSXNaver(t *testing.T) {
	t.Parallel()

	buf := workbook(t,
		[]any{"리뷰글번호", "상품명", "리뷰상세내용", "등록자", "리뷰등록일", "구매자평점", "포토/영상"},
		[]any{"1001", "올리 세럼", "촉촉해요", "kim****", "2024.05.01", 5, "사진 https://img.example/a.jpg"},
		[]any{"", "올리 크림", "", "lee****", "2024.05.02", 4, ""},
		[]any{"1003", "올리 크림", "보통", "park****", "2024.05.03", "", ""},
	)

	entries, err := ReadXLSX(buf, NaverSheet, XLSXOptions{Brand: "OLLY"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "1001", first.Raw.ReviewID)
	assert.Equal(t, "촉촉해요", first.Raw.Body)
	assert.Equal(t, "kim****", first.Raw.Author)
	assert.Equal(t, "5", first.Raw.Rating)
	assert.Equal(t, "naver", first.Context.Platform)
	assert.Equal(t, "OLLY", first.Context.Brand)
	assert.Equal(t, "https://img.example/a.jpg", first.Context.SourceURL)
	assert.Nil(t, entries[1].Raw.Rating)

	rec := review.Normalize(first.Raw, first.Context)
	assert.Empty(t, rec.ProductURL)
	assert.Equal(t, review.IdentityKey("naver", "", "kim****", "2024.05.01", review.ContentHash("촉촉해요")), rec.Key)
}

func TestReadXLSXImwebFilters(t *testing.T) {
	t.Parallel()

	buf := workbook(t,
		[]any{"글번호", "상품명", "글 내용", "작성자", "작성시각", "평점"},
		[]any{"1", "OLLY 세럼", "a", "u1", "2026-02-10 10:51:49", 5},
		[]any{"2", "다른 상품", "b", "u2", "2026-02-10 10:52:00", 4},
		[]any{"3", "OLLY 크림", "c", "u3", "2026-02-10 10:53:00", 3},
		[]any{"4", "OLLY 토너", "d", "u4", "2026-02-10 10:54:00", 2},
	)

	entries, err := ReadXLSX(buf, ImwebSheet, XLSXOptions{ProductPattern: regexp.MustCompile(`^OLLY`), MaxRows: 3})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].Raw.ReviewID)
	assert.Equal(t, "3", entries[1].Raw.ReviewID)
	assert.Equal(t, "2026-02-10 10:53:00", entries[1].Raw.ReviewDate)
	assert.Equal(t, "imweb", entries[1].Context.Platform)
}

func TestReadXLSXRejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	_, err := ReadXLSX(strings.NewReader("not a zip"), NaverSheet, XLSXOptions{})
	require.ErrorContains(t, err, "open workbook")
}

func TestSheetFor(t *testing.T) {
	t.Parallel()

	s, ok := SheetFor(" Naver ")
	require.True(t, ok)
	assert.Equal(t, "naver", s.Platform)
	_, ok = SheetFor("coupang")
	assert.False(t, ok)
}
