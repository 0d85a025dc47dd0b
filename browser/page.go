package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/ytscribe/dom"
)

// Queries use Has/Elements, which do not wait: a missing node is
// dom.ErrNotFound immediately and the engine does its own polling.

// URL returns location.href.
func (t *Tab) URL(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", fmt.Errorf("browser: url: %w", err)
	}
	return res.Value.Str(), nil
}

// Query returns the first match of selector.
func (t *Tab) Query(ctx context.Context, selector string) (dom.Element, error) {
	ok, el, err := t.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	if !ok {
		return nil, dom.ErrNotFound
	}
	return element{el}, nil
}

// QueryAll returns every match of selector in document order.
func (t *Tab) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := t.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query all %q: %w", selector, err)
	}
	return wrap(els), nil
}

// ClickBackground dispatches a click on document.body, which closes open
// YouTube menus.
func (t *Tab) ClickBackground(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`() => document.body && document.body.click()`)
	if err != nil {
		return fmt.Errorf("browser: background click: %w", err)
	}
	return nil
}

type element struct {
	el *rod.Element
}

func wrap(els rod.Elements) []dom.Element {
	out := make([]dom.Element, 0, len(els))
	for _, el := range els {
		out = append(out, element{el})
	}
	return out
}

func (e element) Text(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`function() { return this.textContent || "" }`)
	if err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return res.Value.Str(), nil
}

func (e element) Attr(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("browser: attr %q: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e element) HasClass(ctx context.Context, class string) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`function(c) { return this.classList.contains(c) }`, class)
	if err != nil {
		return false, fmt.Errorf("browser: class %q: %w", class, err)
	}
	return res.Value.Bool(), nil
}

// Click calls the node's click(); the node need not be visible.
func (e element) Click(ctx context.Context) error {
	if _, err := e.el.Context(ctx).Eval(`function() { this.click() }`); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

func (e element) Query(ctx context.Context, selector string) (dom.Element, error) {
	ok, el, err := e.el.Context(ctx).Has(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	if !ok {
		return nil, dom.ErrNotFound
	}
	return element{el}, nil
}

func (e element) QueryAll(ctx context.Context, selector string) ([]dom.Element, error) {
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query all %q: %w", selector, err)
	}
	return wrap(els), nil
}

var (
	_ dom.Document = (*Tab)(nil)
	_ dom.Element  = element{}
)
