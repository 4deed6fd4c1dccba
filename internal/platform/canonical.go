package platform

import (
	"net/url"
	"strings"
)

// CanonicalURL normalizes a transport URL for identity comparison: scheme
// and host are lower-cased, default ports and trailing slashes dropped, and
// query/fragment ignored. Unparseable inputs fall back to the trimmed raw
// string so comparison still degrades to exact match.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(raw, "/")
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)

	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}

	path := strings.TrimRight(u.Path, "/")

	return scheme + "://" + host + path
}

// SameTransport reports whether two transport URLs identify the same addon.
func SameTransport(a, b string) bool {
	return CanonicalURL(a) == CanonicalURL(b)
}
