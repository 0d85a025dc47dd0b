package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/ytscribe/dom"
)

// Strategy is one way of making the transcript panel appear. Open returns nil
// once it believes the panel is opening; any error means "try the next one".
type Strategy interface {
	Name() string
	Open(ctx context.Context, doc dom.Document) error
}

// Strategy names, in default priority order.
const (
	NamePlayerMenu      = "player-menu"
	NameBelowPlayerMenu = "below-player-menu"
	NameDirectButton    = "direct-button"
)

// DefaultStrategies returns the opening chain in priority order: player
// overflow menu, below-player "More actions" menu, direct button.
func DefaultStrategies(sel Selectors, tm Timing, logger *slog.Logger) []Strategy {
	if logger == nil {
		logger = slog.Default()
	}
	return []Strategy{
		&PlayerMenu{
			Buttons:    sel.PlayerMenuButtons,
			Items:      sel.PlayerMenuItems,
			Keywords:   sel.PlayerMenuKeywords,
			MenuSettle: tm.MenuSettle,
			Settle:     tm.PanelSettle,
			Logger:     logger,
		},
		&BelowPlayerMenu{
			Buttons:     sel.PageButtons,
			Label:       sel.MoreActionsLabel,
			PlayerClass: sel.PlayerButtonClass,
			Items:       sel.DropdownItems,
			Keywords:    sel.DropdownKeywords,
			MenuSettle:  tm.MenuSettle,
			Settle:      tm.PanelSettle,
			Logger:      logger,
		},
		&DirectButton{
			Buttons:  sel.DirectButtons,
			Keywords: sel.DirectKeywords,
			Settle:   tm.PanelSettle,
			Logger:   logger,
		},
	}
}

// PlayerMenu opens the player's own overflow/settings menu and picks the
// transcript or captions entry.
type PlayerMenu struct {
	Buttons    []string
	Items      string
	Keywords   []string
	MenuSettle time.Duration
	Settle     time.Duration
	Logger     *slog.Logger
}

func (s *PlayerMenu) Name() string { return NamePlayerMenu }

func (s *PlayerMenu) Open(ctx context.Context, doc dom.Document) error {
	log := loggerOr(s.Logger)

	var button dom.Element
	for _, selector := range s.Buttons {
		el, err := doc.Query(ctx, selector)
		if errors.Is(err, dom.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		log.Debug("engine: player menu button found", "selector", selector)
		button = el
		break
	}
	if button == nil {
		return errors.New("more actions button not found in player")
	}

	if err := button.Click(ctx); err != nil {
		return fmt.Errorf("click player menu button: %w", err)
	}
	if err := settle(ctx, s.MenuSettle); err != nil {
		return err
	}

	items, err := doc.QueryAll(ctx, s.Items)
	if err != nil {
		return err
	}
	log.Debug("engine: player menu items", "count", len(items))

	item, err := firstWithText(ctx, items, s.Keywords)
	if err != nil {
		return err
	}
	if item == nil {
		if err := doc.ClickBackground(ctx); err != nil {
			log.Debug("engine: dismiss player menu failed", "error", err)
		}
		return errors.New("transcript option not found in player menu")
	}

	if err := item.Click(ctx); err != nil {
		return fmt.Errorf("click player menu item: %w", err)
	}
	return settle(ctx, s.Settle)
}

// BelowPlayerMenu opens the "More actions" menu under the video (not the
// player's own button) and picks the transcript entry.
type BelowPlayerMenu struct {
	Buttons     string
	Label       string
	PlayerClass string
	Items       string
	Keywords    []string
	MenuSettle  time.Duration
	Settle      time.Duration
	Logger      *slog.Logger
}

func (s *BelowPlayerMenu) Name() string { return NameBelowPlayerMenu }

func (s *BelowPlayerMenu) Open(ctx context.Context, doc dom.Document) error {
	log := loggerOr(s.Logger)

	buttons, err := doc.QueryAll(ctx, s.Buttons)
	if err != nil {
		return err
	}

	var button dom.Element
	for _, b := range buttons {
		label, ok, err := b.Attr(ctx, "aria-label")
		if err != nil {
			return err
		}
		if !ok || !dom.ContainsAny(label, []string{s.Label}) {
			continue
		}
		inPlayer, err := b.HasClass(ctx, s.PlayerClass)
		if err != nil {
			return err
		}
		if inPlayer {
			continue
		}
		button = b
		break
	}
	if button == nil {
		return errors.New("more button not found below video")
	}

	if err := button.Click(ctx); err != nil {
		return fmt.Errorf("click more button: %w", err)
	}
	if err := settle(ctx, s.MenuSettle); err != nil {
		return err
	}

	items, err := doc.QueryAll(ctx, s.Items)
	if err != nil {
		return err
	}
	log.Debug("engine: dropdown items", "count", len(items))

	item, err := firstWithText(ctx, items, s.Keywords)
	if err != nil {
		return err
	}
	if item == nil {
		if err := doc.ClickBackground(ctx); err != nil {
			log.Debug("engine: dismiss dropdown failed", "error", err)
		}
		return errors.New("transcript option not found in dropdown menu")
	}

	if err := item.Click(ctx); err != nil {
		return fmt.Errorf("click dropdown item: %w", err)
	}
	return settle(ctx, s.Settle)
}

// DirectButton clicks a visible "Show transcript" button, found in the
// description area on newer layouts.
type DirectButton struct {
	Buttons  string
	Keywords []string
	Settle   time.Duration
	Logger   *slog.Logger
}

func (s *DirectButton) Name() string { return NameDirectButton }

func (s *DirectButton) Open(ctx context.Context, doc dom.Document) error {
	buttons, err := doc.QueryAll(ctx, s.Buttons)
	if err != nil {
		return err
	}
	button, err := firstWithText(ctx, buttons, s.Keywords)
	if err != nil {
		return err
	}
	if button == nil {
		return errors.New("direct transcript button not found")
	}
	loggerOr(s.Logger).Debug("engine: direct transcript button found", "candidates", len(buttons))

	if err := button.Click(ctx); err != nil {
		return fmt.Errorf("click transcript button: %w", err)
	}
	return settle(ctx, s.Settle)
}

// firstWithText returns the first element whose text content contains any
// keyword (case-insensitive), or nil.
func firstWithText(ctx context.Context, els []dom.Element, keywords []string) (dom.Element, error) {
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if dom.ContainsAny(text, keywords) {
			return el, nil
		}
	}
	return nil, nil
}

// settle waits d or until ctx is done.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
