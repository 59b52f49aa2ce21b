package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/review-hub/internal/detector"
	"github.com/JakeFAU/review-hub/internal/review"
)

var (
	koreanDate = regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// WadizProfile reads satisfaction reviews and comments from a campaign's Q&A
// tabs. Every tab of a project shares the campaign page as product URL.
func WadizProfile() Profile {
	return Profile{
		Name:                "wadiz_qa",
		Platform:            "wadiz_qa",
		ProductNameScript:   `(document.title || '').trim()`,
		EnsureSectionScript: wadizLoadAll,
		ExtractScript:       wadizExtract,
		PageStateScript:     detector.PageStateScript,
		ProductURL: func(itemURL string) string {
			if no, ok := review.WadizProjectNo(itemURL); ok {
				return review.WadizCampaignURL + no
			}
			return review.CanonicalProductURL(itemURL)
		},
		Adjust: adjustWadiz,
	}
}

// adjustWadiz turns "2022년 10월 26일" dates into ISO dates, folds runs of
// blank lines and drops empty comments.
func adjustWadiz(r review.RawReview) (review.RawReview, bool) {
	r.ReviewDate = isoKoreanDate(r.ReviewDate)
	r.Body = strings.TrimSpace(blankRuns.ReplaceAllString(r.Body, "\n\n"))
	return r, r.Body != ""
}

func isoKoreanDate(s string) string {
	s = strings.TrimSpace(s)
	m := koreanDate.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(mo) || t.Day() != d {
		return s
	}
	return t.Format(time.DateOnly)
}

// wadizItemSelector matches one comment card.
const wadizItemSelector = `[class*="CommentItem_commentItem__"]`

var wadizLoadAll = fmt.Sprintf(`(async () => {
  const sleep = (ms) => new Promise(r => setTimeout(r, ms));
  const expand = () => {
    let clicked = 0;
    for (const b of document.querySelectorAll('button')) {
      if ((b.innerText || '').trim() === '더보기') { try { b.click(); clicked++; } catch (e) {} }
    }
    return clicked;
  };
  let best = 0, stable = 0, clicked = 0;
  for (let i = 0; i < 30; i++) {
    clicked += expand();
    const n = document.querySelectorAll('%[1]s').length;
    if (n > best) { best = n; stable = 0; } else { stable++; }
    if (best >= 400 || stable >= 3) break;
    window.scrollTo(0, document.body.scrollHeight);
    await sleep(1200);
  }
  clicked += expand();
  return {items: best, clicked};
})()`, wadizItemSelector)

var wadizExtract = fmt.Sprintf(`(() => {
  const text = (root, sel) => { const el = root.querySelector(sel); return el ? (el.innerText || '').trim() : ''; };
  return Array.from(document.querySelectorAll('%[1]s')).map(it => {
    const badge = text(it, '[class*="LabelBadge_badge__"]');
    const option = text(it, '[class*="SatisfactionContentHeader_options__"]');
    const score = text(it, '[class*="SatisfactionContentHeader_score__"]');
    return {
      author: text(it, '[class*="CommentProfile_nickName__"]'),
      review_date: text(it, '[class*="CommentProfile_date__"]'),
      rating: score || null,
      title: badge === '만족도 리뷰' ? (option || badge) : badge,
      body: text(it, '[class*="CommentContentArea_fullComment__"],[class*="CommentContentArea_comment__"]'),
    };
  });
})()`, wadizItemSelector)
