package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/ytscribe/tabs"
)

// Tab is one Chrome page with stealth and resource blocking applied.
// It implements tabs.Page.
type Tab struct {
	page   *rod.Page
	router *rod.HijackRouter
	level  StealthLevel
}

// OpenTab creates a page, applies the stealth level and resource blocking,
// navigates to pageURL and waits for the load event. A load timeout is
// logged, not returned: YouTube keeps long-lived requests open.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string, level StealthLevel) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	log := mgr.cfg.Logger

	var page *rod.Page
	var err error
	if level >= LevelHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	t := &Tab{page: page, level: level}
	if len(mgr.cfg.ResourceBlocking) > 0 {
		t.router, err = blockResources(page, mgr.cfg.ResourceBlocking)
		if err != nil {
			log.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, mgr.cfg.NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	log.Debug("browser: tab open", "url", pageURL, "stealth", level.String())
	return t, nil
}

// Opener adapts OpenTab to the tab registry.
func Opener(mgr *Manager) tabs.Opener {
	return func(ctx context.Context, pageURL string) (tabs.Page, error) {
		return OpenTab(ctx, mgr, pageURL, mgr.Stealth())
	}
}

// HTML serialises the live DOM. Used to save snapshot fixtures.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close stops request interception and closes the page.
func (t *Tab) Close() error {
	if t.router != nil {
		_ = t.router.Stop()
		t.router = nil
	}
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}
