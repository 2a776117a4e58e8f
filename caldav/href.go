package caldav

import (
	"strings"
)

// NormalizeHref collapses repeated slashes in href. The "//" following a URL
// scheme is preserved. NormalizeHref is idempotent.
func NormalizeHref(href string) string {
	prefix, rest := splitScheme(href)
	if !strings.Contains(rest, "//") {
		return href
	}
	var sb strings.Builder
	sb.Grow(len(href))
	sb.WriteString(prefix)
	prevSlash := false
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		if c == '/' && prevSlash {
			continue
		}
		prevSlash = c == '/'
		sb.WriteByte(c)
	}
	return sb.String()
}

// StripHost removes the scheme and authority from an absolute URL, leaving
// the path. Other hrefs are returned unchanged.
func StripHost(href string) string {
	prefix, rest := splitScheme(href)
	if prefix == "" {
		return href
	}
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return "/"
	}
	return rest[i:]
}

// splitScheme splits "scheme://" off href. The prefix is empty if href has no
// scheme.
func splitScheme(href string) (prefix, rest string) {
	i := strings.Index(href, "://")
	if i <= 0 {
		return "", href
	}
	for j := 0; j < i; j++ {
		c := href[j]
		isAlpha := ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
		isOther := ('0' <= c && c <= '9') || c == '+' || c == '-' || c == '.'
		if !isAlpha && (j == 0 || !isOther) {
			return "", href
		}
	}
	return href[:i+3], href[i+3:]
}
