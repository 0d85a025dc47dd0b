// Package dom is the narrow page surface the acquisition engine needs:
// selector queries, text and attribute reads, and simulated clicks.
//
// Implementations re-query live state on every call. Element handles are only
// valid until the next asynchronous gap; callers must not cache them across
// waits.
package dom

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Query when no element matches.
var ErrNotFound = errors.New("dom: element not found")

// Document is a loaded page.
type Document interface {
	// URL returns the current location of the page.
	URL(ctx context.Context) (string, error)
	// Query returns the first element matching selector, or ErrNotFound.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll returns every element matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
	// ClickBackground simulates a click on the page body.
	ClickBackground(ctx context.Context) error
}

// Element is one node of a Document.
type Element interface {
	// Text returns the node's text content (all descendant text, untrimmed).
	Text(ctx context.Context) (string, error)
	// Attr returns the named attribute and whether it is present.
	Attr(ctx context.Context, name string) (string, bool, error)
	// HasClass reports whether class is in the node's class list.
	HasClass(ctx context.Context, class string) (bool, error)
	// Click simulates a click on the node.
	Click(ctx context.Context) error
	// Query returns the first descendant matching selector, or ErrNotFound.
	Query(ctx context.Context, selector string) (Element, error)
	// QueryAll returns every descendant matching selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Element, error)
}

// Exists reports whether selector matches anything in doc. ErrNotFound is
// not an error here.
func Exists(ctx context.Context, doc Document, selector string) (bool, error) {
	_, err := doc.Query(ctx, selector)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ContainsAny reports whether text contains any of keywords, ignoring case.
func ContainsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
