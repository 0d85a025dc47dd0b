// Package tabs tracks the pages the daemon has open and which one is active.
// It is the Go counterpart of "the active browser tab": the popup asks for
// the active tab and sends its request there.
//
// Every tab serialises DOM work through Do, because an acquisition clicks
// menus open and closed on shared page state.
package tabs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/hazyhaar/ytscribe/dom"
	"github.com/hazyhaar/ytscribe/idgen"
)

// Page is an open document that can be closed.
type Page interface {
	dom.Document
	Close() error
}

// Opener opens a new page at pageURL.
type Opener func(ctx context.Context, pageURL string) (Page, error)

// ErrNoHTML is returned by Tab.HTML when the page cannot render itself.
var ErrNoHTML = errors.New("tabs: page does not expose its HTML")

// ErrNoActiveTab is returned when no tab is open.
var ErrNoActiveTab = errors.New("tabs: no active tab")

// ErrTabNotFound is returned when an operation targets an unknown tab.
type ErrTabNotFound struct {
	ID string
}

func (e *ErrTabNotFound) Error() string {
	return fmt.Sprintf("tabs: tab not found: %s", e.ID)
}

// Info describes a tab.
type Info struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Active   bool      `json:"active"`
	OpenedAt time.Time `json:"opened_at"`
}

// Tab is one open page.
type Tab struct {
	id       string
	seq      uint64
	openedAt time.Time
	page     Page
	sem      chan struct{}
}

// ID returns the tab identifier.
func (t *Tab) ID() string { return t.id }

// Do runs fn with exclusive access to the tab's page. Waiting for the page
// honours ctx.
func (t *Tab) Do(ctx context.Context, fn func(ctx context.Context, doc dom.Document) error) error {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.sem }()
	return fn(ctx, t.page)
}

// HTML returns the page's current markup, waiting its turn like Do.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	r, ok := t.page.(interface {
		HTML(ctx context.Context) (string, error)
	})
	if !ok {
		return "", ErrNoHTML
	}
	var out string
	err := t.Do(ctx, func(ctx context.Context, _ dom.Document) error {
		var err error
		out, err = r.HTML(ctx)
		return err
	})
	return out, err
}

// Config configures a Registry.
type Config struct {
	// Opener opens new pages. Required for Open.
	Opener Opener
	// IDGen mints tab IDs. Default: "tab_" + 8-char NanoID.
	IDGen  idgen.Generator
	Logger *slog.Logger
}

// Registry holds open tabs. Safe for concurrent use.
type Registry struct {
	open   Opener
	newID  idgen.Generator
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	tabs   map[string]*Tab
	order  []string // activation order, most recent last
	active string
}

// New creates an empty Registry.
func New(cfg Config) *Registry {
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.Prefixed("tab_", idgen.NanoID(8))
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		open:   cfg.Opener,
		newID:  cfg.IDGen,
		logger: cfg.Logger,
		tabs:   make(map[string]*Tab),
	}
}

// Open opens pageURL in a new tab and makes it active.
func (r *Registry) Open(ctx context.Context, pageURL string) (Info, error) {
	if r.open == nil {
		return Info{}, errors.New("tabs: no opener configured")
	}
	page, err := r.open(ctx, pageURL)
	if err != nil {
		return Info{}, fmt.Errorf("tabs: open %s: %w", pageURL, err)
	}
	info := r.Add(ctx, page)
	r.logger.Info("tabs: opened", "id", info.ID, "url", pageURL)
	return info, nil
}

// Add registers an already open page and makes it active.
func (r *Registry) Add(ctx context.Context, page Page) Info {
	t := &Tab{
		id:       r.newID(),
		openedAt: time.Now().UTC(),
		page:     page,
		sem:      make(chan struct{}, 1),
	}
	r.mu.Lock()
	r.seq++
	t.seq = r.seq
	r.tabs[t.id] = t
	r.touchLocked(t.id)
	r.mu.Unlock()
	return r.info(ctx, t, true)
}

// Get returns the tab with the given ID.
func (r *Registry) Get(id string) (*Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tabs[id]
	if !ok {
		return nil, &ErrTabNotFound{ID: id}
	}
	return t, nil
}

// Active returns the active tab, or ErrNoActiveTab.
func (r *Registry) Active() (*Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == "" {
		return nil, ErrNoActiveTab
	}
	return r.tabs[r.active], nil
}

// ActiveInfo describes the active tab.
func (r *Registry) ActiveInfo(ctx context.Context) (Info, error) {
	t, err := r.Active()
	if err != nil {
		return Info{}, err
	}
	return r.info(ctx, t, true), nil
}

// Activate makes id the active tab.
func (r *Registry) Activate(ctx context.Context, id string) (Info, error) {
	r.mu.Lock()
	t, ok := r.tabs[id]
	if ok {
		r.touchLocked(id)
	}
	r.mu.Unlock()
	if !ok {
		return Info{}, &ErrTabNotFound{ID: id}
	}
	return r.info(ctx, t, true), nil
}

// List describes every tab, oldest first.
func (r *Registry) List(ctx context.Context) []Info {
	r.mu.Lock()
	all := make([]*Tab, 0, len(r.tabs))
	for _, t := range r.tabs {
		all = append(all, t)
	}
	active := r.active
	r.mu.Unlock()

	slices.SortFunc(all, func(a, b *Tab) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]Info, 0, len(all))
	for _, t := range all {
		out = append(out, r.info(ctx, t, t.id == active))
	}
	return out
}

// Close closes and forgets one tab. If it was active, the most recently
// active remaining tab takes over.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	t, ok := r.tabs[id]
	if ok {
		r.removeLocked(id)
	}
	r.mu.Unlock()
	if !ok {
		return &ErrTabNotFound{ID: id}
	}
	if err := t.page.Close(); err != nil {
		r.logger.Warn("tabs: close page", "id", id, "error", err)
	}
	r.logger.Info("tabs: closed", "id", id)
	return nil
}

// Forget drops every tab without closing its page. Used when the browser
// has been killed underneath the registry.
func (r *Registry) Forget() {
	r.mu.Lock()
	n := len(r.tabs)
	r.tabs = make(map[string]*Tab)
	r.order = nil
	r.active = ""
	r.mu.Unlock()
	if n > 0 {
		r.logger.Info("tabs: forgot all tabs", "count", n)
	}
}

// CloseAll closes every tab.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.Close(id)
	}
}

func (r *Registry) touchLocked(id string) {
	r.dropOrderLocked(id)
	r.order = append(r.order, id)
	r.active = id
}

func (r *Registry) removeLocked(id string) {
	delete(r.tabs, id)
	r.dropOrderLocked(id)
	r.active = ""
	if n := len(r.order); n > 0 {
		r.active = r.order[n-1]
	}
}

func (r *Registry) dropOrderLocked(id string) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *Registry) info(ctx context.Context, t *Tab, active bool) Info {
	u, err := t.page.URL(ctx)
	if err != nil {
		r.logger.Debug("tabs: read url", "id", t.id, "error", err)
	}
	return Info{ID: t.id, URL: u, Active: active, OpenedAt: t.openedAt}
}
