// Package snapshot implements dom.Document over a static HTML page parsed
// with goquery. It serves two purposes: running the engine against a saved
// watch page whose transcript panel is already rendered, and scripting fake
// pages in tests, where click hooks stand in for the host page's own
// asynchronous rendering.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/ytscribe/dom"
)

// Hook runs after a simulated click. It may mutate the document.
type Hook func(d *Document)

type clickHook struct {
	selector string
	fn       Hook
}

// Document is a mutable in-memory page. Safe for concurrent use.
type Document struct {
	mu     sync.Mutex
	doc    *goquery.Document
	url    string
	hooks  []clickHook
	bg     []Hook
	clicks []string
}

// Load parses an HTML page. If pageURL is empty the canonical link or
// og:url meta of the page is used.
func Load(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse: %w", err)
	}
	d := &Document{doc: goquery.NewDocumentFromNode(root), url: pageURL}
	if d.url == "" {
		d.url = d.canonicalURL()
	}
	return d, nil
}

// Parse is Load over a string.
func Parse(page, pageURL string) (*Document, error) {
	return Load(strings.NewReader(page), pageURL)
}

// LoadFile reads a saved page from disk.
func LoadFile(path, pageURL string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	defer f.Close()
	return Load(f, pageURL)
}

func (d *Document) canonicalURL() string {
	if href, ok := d.doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		return href
	}
	if content, ok := d.doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return content
	}
	return ""
}

// OnClick registers fn to run whenever an element matching selector is
// clicked.
func (d *Document) OnClick(selector string, fn Hook) {
	d.mu.Lock()
	d.hooks = append(d.hooks, clickHook{selector: selector, fn: fn})
	d.mu.Unlock()
}

// OnBackgroundClick registers fn to run on ClickBackground.
func (d *Document) OnBackgroundClick(fn Hook) {
	d.mu.Lock()
	d.bg = append(d.bg, fn)
	d.mu.Unlock()
}

// Append inserts fragment as the last child of every element matching
// selector.
func (d *Document) Append(selector, fragment string) {
	d.mu.Lock()
	d.doc.Find(selector).AppendHtml(fragment)
	d.mu.Unlock()
}

// Remove detaches every element matching selector.
func (d *Document) Remove(selector string) {
	d.mu.Lock()
	d.doc.Find(selector).Remove()
	d.mu.Unlock()
}

// SetURL changes the reported location.
func (d *Document) SetURL(u string) {
	d.mu.Lock()
	d.url = u
	d.mu.Unlock()
}

// Clicks returns a description of every simulated click so far, in order.
// Background clicks are recorded as "body".
func (d *Document) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// HTML renders the current document.
func (d *Document) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}

// Close is a no-op so a Document can stand in for a browser tab.
func (d *Document) Close() error { return nil }

// URL implements dom.Document.
func (d *Document) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

// Query implements dom.Document.
func (d *Document) Query(ctx context.Context, selector string) (dom.Element, error) {
	return d.find(ctx, d.doc.Selection, selector)
}

// QueryAll implements dom.Document.
func (d *Document) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return d.findAll(ctx, d.doc.Selection, selector)
}

// ClickBackground implements dom.Document.
func (d *Document) ClickBackground(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.clicks = append(d.clicks, "body")
	hooks := append([]Hook(nil), d.bg...)
	d.mu.Unlock()

	for _, fn := range hooks {
		fn(d)
	}
	return nil
}

func (d *Document) find(ctx context.Context, from *goquery.Selection, selector string) (dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := from.Find(selector).First()
	if sel.Length() == 0 {
		return nil, dom.ErrNotFound
	}
	return &element{d: d, sel: sel}, nil
}

func (d *Document) findAll(ctx context.Context, from *goquery.Selection, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dom.Element
	from.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, &element{d: d, sel: s})
	})
	return out, nil
}

func (d *Document) click(ctx context.Context, sel *goquery.Selection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.clicks = append(d.clicks, describe(sel))
	var fire []Hook
	for _, h := range d.hooks {
		if sel.Is(h.selector) {
			fire = append(fire, h.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range fire {
		fn(d)
	}
	return nil
}

// describe renders a node as tag#id.class for click logs.
func describe(sel *goquery.Selection) string {
	var b strings.Builder
	b.WriteString(goquery.NodeName(sel))
	if id, ok := sel.Attr("id"); ok && id != "" {
		b.WriteString("#" + id)
	}
	if class, ok := sel.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			b.WriteString("." + c)
		}
	}
	return b.String()
}

type element struct {
	d   *Document
	sel *goquery.Selection
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.sel.Text(), nil
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *element) HasClass(ctx context.Context, class string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.sel.HasClass(class), nil
}

func (e *element) Click(ctx context.Context) error {
	return e.d.click(ctx, e.sel)
}

func (e *element) Query(ctx context.Context, selector string) (dom.Element, error) {
	return e.d.find(ctx, e.sel, selector)
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	return e.d.findAll(ctx, e.sel, selector)
}
