package extractor

import (
	"net/url"
	"strings"
)

// NormalizeLink makes href absolute. Relative paths are prefixed with the
// origin of base, protocol-relative links get https, absolute links are
// returned unchanged.
func NormalizeLink(base, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return Origin(base) + href
}

// Origin returns scheme://host of raw, or raw without trailing slashes when
// it does not parse as an absolute URL.
func Origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}
	return u.Scheme + "://" + u.Host
}
