// Package popup is the user-facing side of ytscribe: one button extracts
// the active tab's transcript, another copies it.
//
// Controller holds the popup state and is independent of any rendering;
// Run hosts it in a terminal UI.
package popup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/ytscribe/idgen"
	"github.com/hazyhaar/ytscribe/kit"
	"github.com/hazyhaar/ytscribe/tabs"
	"github.com/hazyhaar/ytscribe/transcript"
)

// Fixed popup texts.
const (
	WorkingMessage = "Opening transcript and extracting text..."
	ErrorMessage   = "Error: Couldn't extract transcript. Make sure you're on a YouTube video page."
	CopyLabel      = "Copy to Clipboard"
	CopiedLabel    = "Copied!"
)

// Messenger reaches the page hosting the engine. channel.Client implements
// it over HTTP.
type Messenger interface {
	ActiveTab(ctx context.Context) (tabs.Info, error)
	Send(ctx context.Context, tabID string, req transcript.Request) (*transcript.Response, error)
}

// Clipboard writes the system clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// State is a snapshot of what the popup shows.
type State struct {
	Display     string
	CopyEnabled bool
	CopyLabel   string
	Busy        bool
}

// Config configures a Controller.
type Config struct {
	Messenger Messenger
	Clipboard Clipboard
	// CopyConfirm is how long CopiedLabel stays up. Default: 2s.
	CopyConfirm time.Duration
	// OnChange is called after every state change, from any goroutine.
	OnChange func()
	Logger   *slog.Logger
}

// Controller implements the two popup actions. Safe for concurrent use.
type Controller struct {
	msgr     Messenger
	clip     Clipboard
	confirm  time.Duration
	logger   *slog.Logger
	newTrace idgen.Generator

	mu          sync.Mutex
	onChange    func()
	display     string
	copyEnabled bool
	copyLabel   string
	extractSeq  uint64
	inFlight    int
	copySeq     uint64
}

// NewController creates a Controller with an empty display and copy
// disabled.
func NewController(cfg Config) *Controller {
	if cfg.CopyConfirm <= 0 {
		cfg.CopyConfirm = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		msgr:      cfg.Messenger,
		clip:      cfg.Clipboard,
		confirm:   cfg.CopyConfirm,
		onChange:  cfg.OnChange,
		logger:    cfg.Logger,
		newTrace:  idgen.Prefixed("popup_", idgen.NanoID(8)),
		copyLabel: CopyLabel,
	}
}

// State returns the current popup state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Display:     c.display,
		CopyEnabled: c.copyEnabled,
		CopyLabel:   c.copyLabel,
		Busy:        c.inFlight > 0,
	}
}

// OnExtractClick asks the active tab for its transcript and blocks until
// the single response arrives or the channel gives up. If clicks overlap,
// only the latest one updates the display.
func (c *Controller) OnExtractClick(ctx context.Context) {
	c.mu.Lock()
	c.extractSeq++
	seq := c.extractSeq
	c.inFlight++
	c.copyEnabled = false
	c.display = WorkingMessage
	c.mu.Unlock()
	c.changed()

	ctx = kit.WithTraceID(ctx, c.newTrace())
	text, ok := c.request(ctx)

	c.mu.Lock()
	c.inFlight--
	if seq == c.extractSeq {
		if ok {
			c.display = text
			c.copyEnabled = true
		} else {
			c.display = ErrorMessage
		}
	}
	c.mu.Unlock()
	c.changed()
}

func (c *Controller) request(ctx context.Context) (string, bool) {
	log := c.logger.With("trace_id", kit.GetTraceID(ctx))
	if c.msgr == nil {
		log.Warn("popup: no messenger configured")
		return "", false
	}
	tab, err := c.msgr.ActiveTab(ctx)
	if err != nil {
		log.Info("popup: no active tab", "error", err)
		return "", false
	}
	resp, err := c.msgr.Send(ctx, tab.ID, transcript.ExtractRequest())
	if err != nil {
		log.Info("popup: no response", "tab", tab.ID, "error", err)
		return "", false
	}
	if resp == nil {
		log.Info("popup: no response", "tab", tab.ID)
		return "", false
	}
	text, ok := resp.Text()
	if !ok {
		log.Info("popup: extraction failed", "tab", tab.ID, "error", resp.Error)
		return "", false
	}
	log.Debug("popup: transcript received", "tab", tab.ID, "length", len(text))
	return text, true
}

// OnCopyClick copies the displayed text and shows CopiedLabel for the
// confirmation period. It does nothing while copy is disabled.
func (c *Controller) OnCopyClick() error {
	c.mu.Lock()
	if !c.copyEnabled {
		c.mu.Unlock()
		return nil
	}
	text := c.display
	c.mu.Unlock()

	if c.clip != nil {
		if err := c.clip.WriteAll(text); err != nil {
			c.logger.Warn("popup: clipboard write", "error", err)
			return err
		}
	}

	c.mu.Lock()
	c.copySeq++
	seq := c.copySeq
	c.copyLabel = CopiedLabel
	c.mu.Unlock()
	c.changed()

	time.AfterFunc(c.confirm, func() {
		c.mu.Lock()
		stale := seq != c.copySeq
		if !stale {
			c.copyLabel = CopyLabel
		}
		c.mu.Unlock()
		if !stale {
			c.changed()
		}
	})
	return nil
}

// SetOnChange replaces the change callback.
func (c *Controller) SetOnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
