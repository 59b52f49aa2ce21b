package httpsource

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const productPage = `<html><head>
<meta property="og:title" content=" 수분 크림 50ml ">
<title>ignored</title>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Product","name":"수분 크림",
 "review":[
  {"@type":"Review","@id":"r-1","reviewBody":" 촉촉해요 ","author":{"@type":"Person","name":"kim"},
   "reviewRating":{"@type":"Rating","ratingValue":"5"},"datePublished":"2024-02-01"},
  {"@type":"Review","reviewBody":"","author":{"name":"empty"}},
  {"@type":"Review","@id":"r-2","reviewBody":"향이 좋아요","author":"anon","reviewRating":{"ratingValue":4},"datePublished":"2024-02-03T10:00:00+09:00"}
 ]}
</script>
<script type="application/ld+json">not json</script>
</head><body></body></html>`

func TestParseProductPageJSONLD(t *testing.T) {
	t.Parallel()

	name, reviews, err := Parse([]byte(productPage), "https://shop.example/product/cream")
	require.NoError(t, err)
	require.Equal(t, "수분 크림 50ml", name)
	require.Len(t, reviews, 2)

	require.Equal(t, "r-1", reviews[0].ReviewID)
	require.Equal(t, "kim", reviews[0].Author)
	require.Equal(t, "촉촉해요", reviews[0].Body)
	require.Equal(t, "5", reviews[0].Rating)
	require.Equal(t, "2024-02-01", reviews[0].ReviewDate)

	require.Equal(t, "", reviews[1].Author)
	require.Equal(t, 4.0, reviews[1].Rating)
}

func TestParseProductPageFallsBackToURL(t *testing.T) {
	t.Parallel()

	name, reviews, err := Parse([]byte(`<html><body>dynamic</body></html>`), "https://shop.example/p")
	require.NoError(t, err)
	require.Equal(t, "https://shop.example/p", name)
	require.Empty(t, reviews)
}

const boardPage = `<html><body>
<div class="view_tit"> 재구매 의사 있어요 </div>
<div class="author">ji23**** 전체 구매평 5시간전</div>
<div class="date"> 2024.02.05 </div>
<div class="interlock_star_point">
  <span class="bt-star active"></span><span class="bt-star active"></span>
  <span class="bt-star active"></span><span class="bt-star active"></span><span class="bt-star"></span>
</div>
<div class="board_txt_area"><p>수분 크림 50ml</p><p>발림성이 좋아요.</p><p>다음에도 살게요.</p></div>
</body></html>`

func TestParseReviewBoardPage(t *testing.T) {
	t.Parallel()

	pageURL := "https://shop.example/review/?idx=981&interlock=shop_review&bmode=view"
	name, reviews, err := Parse([]byte(boardPage), pageURL)
	require.NoError(t, err)
	require.Equal(t, "수분 크림 50ml", name)
	require.Len(t, reviews, 1)

	r := reviews[0]
	require.Equal(t, "981", r.ReviewID)
	require.Equal(t, "ji23****", r.Author)
	require.Equal(t, "2024.02.05", r.ReviewDate)
	require.Equal(t, 4.0, r.Rating)
	require.Equal(t, "재구매 의사 있어요", r.Title)
	require.Equal(t, "발림성이 좋아요.\n다음에도 살게요.", r.Body)
}

func TestParseReviewBoardBodyFallsBackToTitle(t *testing.T) {
	t.Parallel()

	html := `<html><body><div class="view_tit">좋아요</div><div class="board_txt_area">상품명</div></body></html>`
	name, reviews, err := Parse([]byte(html), "https://shop.example/r?idx=1&interlock=shop_review")
	require.NoError(t, err)
	require.Equal(t, "상품명", name)
	require.Len(t, reviews, 1)
	require.Equal(t, "좋아요", reviews[0].Body)
	require.Nil(t, reviews[0].Rating)
}

func TestParseReviewBoardWithoutContent(t *testing.T) {
	t.Parallel()

	_, reviews, err := Parse([]byte(`<html><body></body></html>`), "https://shop.example/r?idx=1&interlock=shop_review")
	require.NoError(t, err)
	require.Empty(t, reviews)
}

func TestReviewLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<a href="/review/?q=YToxOntzOjEyOiJrZXl3b3JkX3R5cGUiO30%3D&bmode=view&idx=11&t=board&interlock=shop_review">a</a>
<a href="https://shop.example/review/?idx=12&interlock=shop_review#top">b</a>
<a href="/review/?bmode=view&idx=11&interlock=shop_review">dup</a>
<a href="/review/?interlock=shop_review">no idx</a>
<a href="/shop_view/?idx=5">product</a>
</body></html>`

	links, err := ReviewLinks([]byte(html), "https://shop.example/review")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://shop.example/review/?idx=11&interlock=shop_review",
		"https://shop.example/review/?idx=12&interlock=shop_review",
	}, links)
}

func TestIsReviewBoardURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsReviewBoardURL("https://x/review?interlock=shop_review&idx=1"))
	require.False(t, IsReviewBoardURL("https://x/shop_view/?idx=1"))
	require.False(t, IsReviewBoardURL("%zz"))
}
