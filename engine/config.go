package engine

import (
	"log/slog"
	"time"
)

// Selectors lists every DOM hook the engine relies on. YouTube rolls out
// layout variants independently, so each list is tried in order.
type Selectors struct {
	// PanelMarker is present once the transcript panel is open.
	PanelMarker string `yaml:"panel_marker"`

	// Player overflow menu strategy.
	PlayerMenuButtons  []string `yaml:"player_menu_buttons"`
	PlayerMenuItems    string   `yaml:"player_menu_items"`
	PlayerMenuKeywords []string `yaml:"player_menu_keywords"`

	// Below-player "More actions" menu strategy.
	PageButtons       string   `yaml:"page_buttons"`
	MoreActionsLabel  string   `yaml:"more_actions_label"`
	PlayerButtonClass string   `yaml:"player_button_class"`
	DropdownItems     string   `yaml:"dropdown_items"`
	DropdownKeywords  []string `yaml:"dropdown_keywords"`

	// Direct "Show transcript" button strategy.
	DirectButtons  string   `yaml:"direct_buttons"`
	DirectKeywords []string `yaml:"direct_keywords"`

	// Content.
	Container   string `yaml:"container"`
	Segment     string `yaml:"segment"`
	SegmentText string `yaml:"segment_text"`
}

// DefaultSelectors returns the selectors known to work on the desktop watch
// page layouts seen so far.
func DefaultSelectors() Selectors {
	return Selectors{
		PanelMarker: "ytd-transcript-search-panel-renderer",
		PlayerMenuButtons: []string{
			`button.ytp-button[aria-label="More actions"]`,
			`button.ytp-button[data-tooltip-target-id="ytp-autonav-toggle-button"]`,
			`button.ytp-settings-button`,
		},
		PlayerMenuItems:    ".ytp-panel-menu .ytp-menuitem, .ytp-drop-down-menu .ytp-menuitem",
		PlayerMenuKeywords: []string{"transcript", "caption"},
		PageButtons:        "button",
		MoreActionsLabel:   "More actions",
		PlayerButtonClass:  "ytp-button",
		DropdownItems:      "tp-yt-paper-listbox tp-yt-paper-item, ytd-menu-service-item-renderer",
		DropdownKeywords:   []string{"transcript"},
		DirectButtons:      "button, yt-button-renderer, tp-yt-paper-button",
		DirectKeywords:     []string{"transcript", "show transcript"},
		Container:          "#segments-container",
		Segment:            "ytd-transcript-segment-renderer",
		SegmentText:        "div > yt-formatted-string",
	}
}

// Timing holds the heuristic waits. The host page renders menus and panels
// asynchronously with no completion signal, so fixed settles are the only
// option.
type Timing struct {
	// MenuSettle follows a click that should open a menu. Default: 1s.
	MenuSettle time.Duration `yaml:"menu_settle"`
	// PanelSettle follows a click that should open the transcript panel.
	// Default: 1.5s.
	PanelSettle time.Duration `yaml:"panel_settle"`
	// PollInterval is the readiness poll period. Default: 300ms.
	PollInterval time.Duration `yaml:"poll_interval"`
	// ContentTimeout bounds the readiness poll. Default: 10s.
	ContentTimeout time.Duration `yaml:"content_timeout"`
}

// DefaultTiming returns the production waits.
func DefaultTiming() Timing {
	return Timing{
		MenuSettle:     time.Second,
		PanelSettle:    1500 * time.Millisecond,
		PollInterval:   300 * time.Millisecond,
		ContentTimeout: 10 * time.Second,
	}
}

// Config configures an Engine.
type Config struct {
	Selectors Selectors
	Timing    Timing

	// Strategies overrides the opening chain. Nil = DefaultStrategies.
	Strategies []Strategy

	Logger *slog.Logger
}

func (c *Config) defaults() {
	def := DefaultSelectors()
	s := &c.Selectors
	if s.PanelMarker == "" {
		s.PanelMarker = def.PanelMarker
	}
	if len(s.PlayerMenuButtons) == 0 {
		s.PlayerMenuButtons = def.PlayerMenuButtons
	}
	if s.PlayerMenuItems == "" {
		s.PlayerMenuItems = def.PlayerMenuItems
	}
	if len(s.PlayerMenuKeywords) == 0 {
		s.PlayerMenuKeywords = def.PlayerMenuKeywords
	}
	if s.PageButtons == "" {
		s.PageButtons = def.PageButtons
	}
	if s.MoreActionsLabel == "" {
		s.MoreActionsLabel = def.MoreActionsLabel
	}
	if s.PlayerButtonClass == "" {
		s.PlayerButtonClass = def.PlayerButtonClass
	}
	if s.DropdownItems == "" {
		s.DropdownItems = def.DropdownItems
	}
	if len(s.DropdownKeywords) == 0 {
		s.DropdownKeywords = def.DropdownKeywords
	}
	if s.DirectButtons == "" {
		s.DirectButtons = def.DirectButtons
	}
	if len(s.DirectKeywords) == 0 {
		s.DirectKeywords = def.DirectKeywords
	}
	if s.Container == "" {
		s.Container = def.Container
	}
	if s.Segment == "" {
		s.Segment = def.Segment
	}
	if s.SegmentText == "" {
		s.SegmentText = def.SegmentText
	}

	dt := DefaultTiming()
	if c.Timing.MenuSettle <= 0 {
		c.Timing.MenuSettle = dt.MenuSettle
	}
	if c.Timing.PanelSettle <= 0 {
		c.Timing.PanelSettle = dt.PanelSettle
	}
	if c.Timing.PollInterval <= 0 {
		c.Timing.PollInterval = dt.PollInterval
	}
	if c.Timing.ContentTimeout <= 0 {
		c.Timing.ContentTimeout = dt.ContentTimeout
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
