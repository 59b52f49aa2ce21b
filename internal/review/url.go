package review

import (
	"net/url"
	"regexp"
	"strings"
)

var productPath = regexp.MustCompile(`/vp/products/(\d+)`)

// stableParams are query keys that identify an item rather than a session.
var stableParams = map[string]struct{}{
	"idx":       {},
	"interlock": {},
}

// CanonicalProductURL strips vendor, tracking and session parameters so the
// same product always maps to one locator.
func CanonicalProductURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.User = nil

	if m := productPath.FindStringSubmatch(u.Path); m != nil {
		u.Path = "/vp/products/" + m[1]
		u.RawPath = ""
		u.RawQuery = ""
		return u.String()
	}

	q := u.Query()
	kept := url.Values{}
	for key, values := range q {
		if _, ok := stableParams[key]; ok && len(values) > 0 {
			kept.Set(key, values[0])
		}
	}
	u.RawQuery = kept.Encode()
	return u.String()
}

// WadizCampaignURL prefixes a project number to form its campaign page.
const WadizCampaignURL = "https://www.wadiz.kr/web/campaign/detail/"

var wadizProjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/web/campaign/detail/qa/(\d+)`),
	regexp.MustCompile(`/web/campaign/detail/(\d+)`),
	regexp.MustCompile(`/funding/(\d+)`),
	regexp.MustCompile(`/(\d{5,})\b`),
}

// WadizProjectNo extracts the numeric project id from a campaign, Q&A or
// funding URL.
func WadizProjectNo(rawURL string) (string, bool) {
	s := strings.TrimSpace(rawURL)
	for _, re := range wadizProjectPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// AddOrReplaceQuery sets key=value on rawURL, leaving other parameters intact.
func AddOrReplaceQuery(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
