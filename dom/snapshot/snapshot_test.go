package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hazyhaar/ytscribe/dom"
)

const page = `<!DOCTYPE html>
<html><head><link rel="canonical" href="https://www.youtube.com/watch?v=abc"></head>
<body>
<button id="more" class="ytp-button menu" aria-label="More actions">...</button>
<div id="menu"></div>
<ul><li>one</li><li>  two  </li></ul>
</body></html>`

func parse(t *testing.T) *Document {
	t.Helper()
	d, err := Parse(page, "")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return d
}

func TestLoad_CanonicalURL(t *testing.T) {
	d := parse(t)
	u, err := d.URL(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if u != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("URL: got %q", u)
	}

	d2, _ := Parse(page, "https://example.com/x")
	u, _ = d2.URL(context.Background())
	if u != "https://example.com/x" {
		t.Errorf("explicit URL must win: got %q", u)
	}
}

func TestQuery_NotFound(t *testing.T) {
	d := parse(t)
	_, err := d.Query(context.Background(), "#segments-container")
	if !errors.Is(err, dom.ErrNotFound) {
		t.Fatalf("Query missing: got %v, want ErrNotFound", err)
	}
	ok, err := dom.Exists(context.Background(), d, "#segments-container")
	if err != nil || ok {
		t.Errorf("Exists: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestQueryAll_DocumentOrderAndText(t *testing.T) {
	ctx := context.Background()
	d := parse(t)
	items, err := d.QueryAll(ctx, "li")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, it := range items {
		s, _ := it.Text(ctx)
		got = append(got, s)
	}
	if !reflect.DeepEqual(got, []string{"one", "  two  "}) {
		t.Errorf("texts: got %q", got)
	}
}

func TestElement_AttrAndClass(t *testing.T) {
	ctx := context.Background()
	d := parse(t)
	btn, err := d.Query(ctx, "button")
	if err != nil {
		t.Fatal(err)
	}
	label, ok, _ := btn.Attr(ctx, "aria-label")
	if !ok || label != "More actions" {
		t.Errorf("aria-label: got (%q, %v)", label, ok)
	}
	if _, ok, _ := btn.Attr(ctx, "title"); ok {
		t.Error("title attribute should be absent")
	}
	has, _ := btn.HasClass(ctx, "ytp-button")
	if !has {
		t.Error("expected ytp-button class")
	}
}

func TestClick_HooksMutateDocument(t *testing.T) {
	ctx := context.Background()
	d := parse(t)
	d.OnClick("#more", func(d *Document) {
		d.Append("#menu", `<div class="item">Show transcript</div>`)
	})
	d.OnBackgroundClick(func(d *Document) { d.Remove("#menu .item") })

	btn, _ := d.Query(ctx, "#more")
	if err := btn.Click(ctx); err != nil {
		t.Fatal(err)
	}
	item, err := d.Query(ctx, "#menu .item")
	if err != nil {
		t.Fatalf("menu item should exist after click: %v", err)
	}
	if txt, _ := item.Text(ctx); txt != "Show transcript" {
		t.Errorf("item text: got %q", txt)
	}

	if err := d.ClickBackground(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := dom.Exists(ctx, d, "#menu .item"); ok {
		t.Error("background click should have removed the item")
	}

	want := []string{"button#more.ytp-button.menu", "body"}
	if got := d.Clicks(); !reflect.DeepEqual(got, want) {
		t.Errorf("Clicks: got %q, want %q", got, want)
	}
}

func TestCanceledContext(t *testing.T) {
	d := parse(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Query(ctx, "button"); !errors.Is(err, context.Canceled) {
		t.Errorf("Query on canceled ctx: got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.html")
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		t.Fatal(err)
	}
	d, err := LoadFile(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := dom.Exists(context.Background(), d, "#more"); !ok {
		t.Error("loaded page should contain #more")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.html"), ""); err == nil {
		t.Error("missing file should fail")
	}
}
