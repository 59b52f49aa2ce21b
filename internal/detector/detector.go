// Package detector recognises access-denied and CAPTCHA interstitials so
// sources can fail fast instead of scraping an empty page.
package detector

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultNeedles are matched case-insensitively against page title and text.
var DefaultNeedles = []string{
	"Access Denied",
	"접근이 거부",
	"로봇이 아닙니다",
	"자동 입력 방지",
	"자동입력",
	"captcha",
	"보안 문자",
	"비정상적인 트래픽",
}

// CaptchaSelector matches CAPTCHA widgets.
const CaptchaSelector = "input[name*=captcha], #captcha, iframe[src*=captcha]"

// TextLimit bounds how many characters of body text are inspected.
const TextLimit = 2000

// PageStateScript evaluates to a PageState inside a browser page.
const PageStateScript = `(() => {
  const h1 = document.querySelector('h1');
  return {
    title: document.title || '',
    url: location.href || '',
    text: ((document.body && document.body.innerText) || '').slice(0, 2000),
    captcha: !!document.querySelector('input[name*=captcha], #captcha, iframe[src*=captcha]'),
    h1: (h1 && h1.innerText) || ''
  };
})()`

var deniedHeading = regexp.MustCompile(`(?i)denied`)

// PageState is the subset of a rendered page the detector looks at.
type PageState struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Text    string `json:"text"`
	Captcha bool   `json:"captcha"`
	H1      string `json:"h1"`
}

// Detector holds the lowercased needle list.
type Detector struct {
	needles []string
}

// New builds a Detector from DefaultNeedles plus extra.
func New(extra ...string) *Detector {
	all := append(append([]string(nil), DefaultNeedles...), extra...)
	needles := make([]string, 0, len(all))
	for _, n := range all {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			needles = append(needles, n)
		}
	}
	return &Detector{needles: needles}
}

// Check returns a non-empty reason when state looks like a block page.
func (d *Detector) Check(state PageState) string {
	if d == nil {
		return ""
	}
	if n := d.match(state.Title); n != "" {
		return "blocked: title=" + strings.TrimSpace(state.Title)
	}
	text := runePrefix(state.Text, TextLimit)
	if n := d.match(text); n != "" {
		return "blocked: text contains " + n
	}
	if state.Captcha || deniedHeading.MatchString(state.H1) {
		return "blocked: captcha_or_denied_selector"
	}
	return ""
}

func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// CheckHTML applies the same rules to a raw HTML document.
func (d *Detector) CheckHTML(body []byte) string {
	if d == nil || len(body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	state := PageState{
		Title:   doc.Find("title").First().Text(),
		Text:    strings.Join(strings.Fields(doc.Find("body").Text()), " "),
		Captcha: doc.Find(CaptchaSelector).Length() > 0,
		H1:      doc.Find("h1").First().Text(),
	}
	return d.Check(state)
}

func (d *Detector) match(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, n := range d.needles {
		if strings.Contains(lower, n) {
			return n
		}
	}
	return ""
}
