package snapshot

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var customElements = regexp.MustCompile(`^(ytd|yt|ytp|tp-yt)-[a-z0-9-]+$`)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// capturePolicy keeps the structure the engine navigates (YouTube custom
// elements, ids, classes, aria labels, the canonical link) and drops
// scripts, styles, handlers and everything else.
func capturePolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("html", "head", "body", "title", "link", "meta",
			"div", "span", "p", "a", "button", "ul", "li", "h1", "h2", "h3")
		p.AllowElementsMatching(customElements)
		p.AllowNoAttrs().OnElementsMatching(customElements)
		p.AllowAttrs("id", "class", "role", "aria-label", "data-tooltip-target-id").Globally()
		p.AllowAttrs("rel", "href").OnElements("link", "a")
		p.AllowAttrs("property", "name", "content").OnElements("meta")
		p.AllowURLSchemes("http", "https")
		p.AllowRelativeURLs(true)
		policy = p
	})
	return policy
}

// Clean strips a captured page down to what Load and the engine need, so
// it can be stored as a fixture without scripts or tracking markup.
func Clean(page string) string {
	return capturePolicy().Sanitize(page)
}
