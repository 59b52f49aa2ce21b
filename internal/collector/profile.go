package collector

import (
	"fmt"

	"github.com/JakeFAU/review-hub/internal/detector"
	"github.com/JakeFAU/review-hub/internal/review"
)

// Profile carries the site-specific scripts for a product page's review list.
type Profile struct {
	Name string
	// Platform is stored on every record and feeds the identity key.
	Platform string
	// ProductNameScript evaluates to a string.
	ProductNameScript string
	// EnsureSectionScript reveals and scrolls to the review section.
	EnsureSectionScript string
	// SortLatestScript switches the list to newest-first.
	SortLatestScript string
	// ExtractScript evaluates to a JSON array of review.RawReview objects.
	ExtractScript string
	// NextPageScript evaluates to {ok: bool} after trying to open page n.
	NextPageScript func(n int) string
	// ReviewRootSelector is awaited before each extraction when set.
	ReviewRootSelector string
	PageStateScript    string
	// ProductURL maps the visited URL to the product locator. Defaults to
	// review.CanonicalProductURL.
	ProductURL func(itemURL string) string
	// Adjust rewrites an extracted review before normalization; false drops it.
	Adjust func(review.RawReview) (review.RawReview, bool)
}

// CoupangProfile collects reviews from a Coupang product detail page.
func CoupangProfile() Profile {
	return Profile{
		Name:                "coupang_product",
		Platform:            "coupang",
		ProductNameScript:   `((document.querySelector('h1') && document.querySelector('h1').innerText) || document.title || '').trim()`,
		EnsureSectionScript: coupangEnsureSection,
		SortLatestScript:    coupangSortLatest,
		ExtractScript:       coupangExtract,
		NextPageScript:      coupangNextPage,
		ReviewRootSelector:  "#sdpReview",
		PageStateScript:     detector.PageStateScript,
	}
}

func (p Profile) withDefaults() Profile {
	if p.PageStateScript == "" {
		p.PageStateScript = detector.PageStateScript
	}
	if p.NextPageScript == nil {
		p.NextPageScript = func(int) string { return `({ok: false})` }
	}
	if p.ProductURL == nil {
		p.ProductURL = review.CanonicalProductURL
	}
	return p
}

const coupangEnsureSection = `(() => {
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();
  const visible = (el) => {
    if (!el) return false;
    const r = el.getBoundingClientRect();
    return r.width > 0 && r.height > 0;
  };
  const a = document.querySelector('a[href="#sdpReview"], a[href*="#sdpReview"]');
  if (a && visible(a)) { try { a.click(); } catch (e) {} }
  const tab = Array.from(document.querySelectorAll('a,button,li,div,span'))
    .filter(visible)
    .find(el => { const t = norm(el.innerText); return t === '상품평' || t.startsWith('상품평 '); });
  if (tab) { try { tab.click(); } catch (e) {} }
  const root = document.querySelector('#sdpReview');
  if (root) root.scrollIntoView({block: 'start'});
  return {clickedAnchor: !!(a && visible(a)), clickedTab: !!tab, hasRoot: !!root};
})()`

const coupangSortLatest = `(() => {
  const root = document.querySelector('#sdpReview');
  if (!root) return {clicked: false, reason: 'no_root'};
  const btn = Array.from(root.querySelectorAll('button, a')).find(x => (x.innerText || '').trim() === '최신순');
  if (btn) { try { btn.click(); } catch (e) {} }
  return {clicked: !!btn};
})()`

const coupangExtract = `(() => {
  const root = document.querySelector('#sdpReview');
  if (!root) return [];
  const helpSel = '.js_reviewArticleHelpfulContainer, .sdp-review__article__list__help';
  const dateRe = /\d{4}[./-]\d{2}[./-]\d{2}/;
  const out = [];
  for (const a of Array.from(root.querySelectorAll('article')).filter(a => a.querySelector(helpSel))) {
    for (const b of Array.from(a.querySelectorAll('button'))) {
      if ((b.innerText || '').trim() === '더보기') { try { b.click(); } catch (e) {} }
    }
    const help = a.querySelector(helpSel);
    const reviewId = (help && (help.getAttribute('data-review-id') || help.getAttribute('data-reviewid'))) || '';
    const texts = Array.from(a.querySelectorAll('span,div,strong')).map(e => (e.innerText || '').trim()).filter(Boolean);
    const author = texts.find(t => t.includes('*') && t.length <= 12) || '';
    const reviewDate = texts.find(t => dateRe.test(t)) || '';
    const sellerLine = texts.find(t => t.startsWith('판매자:')) || '';
    const titleEl = Array.from(a.querySelectorAll('div,span,strong')).find(e => {
      const t = (e.innerText || '').trim();
      if (!t || t === author || t === '신고하기' || t.startsWith('판매자:') || dateRe.test(t)) return false;
      return (e.className || '').includes('font-bold') && t.length <= 40;
    });
    const bodyEl = a.querySelector('.sdp-review__article__list__review__content')
      || a.querySelector('div.twc-break-all')
      || a.querySelector('span.twc-bg-white');
    const full = a.querySelectorAll("i[class*='full-star']").length;
    const half = a.querySelectorAll("i[class*='half-star']").length;
    out.push({
      review_id: reviewId,
      author,
      review_date: reviewDate,
      rating: full + 0.5 * half,
      title: titleEl ? (titleEl.innerText || '').trim() : '',
      body: bodyEl ? (bodyEl.innerText || '').trim() : '',
      seller: sellerLine.replace('판매자:', '').trim(),
    });
  }
  return out;
})()`

func coupangNextPage(n int) string {
	return fmt.Sprintf(`(() => {
  const root = document.querySelector('#sdpReview');
  if (!root) return {ok: false};
  const want = '%d';
  const buttons = Array.from(root.querySelectorAll('button'));
  const digit = buttons.find(x => (x.innerText || '').trim() === want);
  if (digit) { digit.click(); return {ok: true, clicked: 'digit'}; }
  const arrow = buttons.find(b => !((b.innerText || '').trim()) && b.querySelector('svg')
    && (b.className || '').includes('twc-w-[38px]') && !b.disabled);
  if (arrow) { arrow.click(); return {ok: true, clicked: 'arrow'}; }
  return {ok: false};
})()`, n)
}
