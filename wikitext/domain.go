package wikitext

import (
	"net/url"
	"strings"
)

// ExtractDomain reduces a URL to its bare domain, lowercased, with any
// port and leading "www." removed. The second return is false when the
// input is not a parseable URL with a host.
func ExtractDomain(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		// Protocol-relative links ("//example.com/x") appear in
		// wikitext; url.Parse handles those, but bare "example.com/x"
		// parses as a path. One retry with a scheme covers that form.
		if !strings.Contains(rawURL, "://") && strings.Contains(rawURL, ".") {
			return ExtractDomain("https://" + strings.TrimSpace(rawURL))
		}
		return "", false
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return "", false
	}
	return host, true
}
