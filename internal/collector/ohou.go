package collector

import (
	"fmt"

	"github.com/JakeFAU/review-hub/internal/detector"
)

// ohouPerPage is the review API page size; a shorter page is the last one.
const ohouPerPage = 100

// OhouProfile reads a goods page's reviews through the store's review API
// from inside the page, newest first. Extraction fetches the page number the
// last NextPageScript stored on window.
func OhouProfile() Profile {
	return Profile{
		Name:              "ohou_goods",
		Platform:          "ohou",
		ProductNameScript: `((document.querySelector('meta[property="og:title"]') || {}).content || document.title || '').trim()`,
		ExtractScript:     ohouExtract,
		NextPageScript:    ohouNextPage,
		PageStateScript:   detector.PageStateScript,
	}
}

var ohouExtract = fmt.Sprintf(`(async () => {
  const m = location.pathname.match(/\/goods\/(\d+)/);
  if (!m) { window.__reviewHubLast = 0; return []; }
  const page = window.__reviewHubPage || 1;
  const url = '/api/goods/reviews?page=' + page + '&productionId=' + m[1] + '&per=%d&order=recent&stars=&option=';
  const r = await fetch(url, {credentials: 'include'});
  if (r.status !== 200) { window.__reviewHubLast = 0; return []; }
  const j = await r.json();
  const list = Array.isArray(j && j.reviews) ? j.reviews : [];
  window.__reviewHubLast = list.length;
  return list.filter(x => x && typeof x === 'object').map(x => {
    const rv = (x.review && typeof x.review === 'object') ? x.review : {};
    return {
      review_id: String(x.id || ''),
      review_date: String(x.createdAt || ''),
      author: String(x.writerNickname || ''),
      rating: rv.starAvg == null ? null : rv.starAvg,
      title: '',
      body: String(rv.comment || x.comment || x.content || ''),
    };
  });
})()`, ohouPerPage)

func ohouNextPage(n int) string {
	return fmt.Sprintf(`(() => {
  if ((window.__reviewHubLast || 0) < %d) return {ok: false};
  window.__reviewHubPage = %d;
  return {ok: true};
})()`, ohouPerPage, n)
}
