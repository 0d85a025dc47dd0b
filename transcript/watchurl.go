package transcript

import (
	"net/url"
	"strings"
)

// IsWatchURL reports whether raw has the shape of a YouTube video-watch page:
// a youtube.com host (any subdomain) and the /watch path.
func IsWatchURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "youtube.com" && !strings.HasSuffix(host, ".youtube.com") {
		return false
	}
	return strings.TrimSuffix(u.Path, "/") == "/watch"
}

// VideoID returns the v= parameter of a watch URL, or "".
func VideoID(raw string) string {
	if !IsWatchURL(raw) {
		return ""
	}
	u, _ := url.Parse(strings.TrimSpace(raw))
	return u.Query().Get("v")
}
