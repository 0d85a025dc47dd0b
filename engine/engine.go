// Package engine acquires a YouTube transcript by driving the watch page's
// own UI: open the transcript panel through an ordered chain of fallback
// strategies, wait for the segments to render, then scrape them into one
// string.
//
// All work for one request happens sequentially on one goroutine. Callers
// must not run two acquisitions against the same page concurrently; the
// strategies open and close menus on shared page state.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/ytscribe/dom"
	"github.com/hazyhaar/ytscribe/transcript"
)

// ErrUnknownAction is returned by Handle for any action other than
// transcript.ActionExtract.
var ErrUnknownAction = errors.New("engine: unrecognized action")

// Engine is stateless between requests. One Engine may serve many pages.
type Engine struct {
	sel        Selectors
	timing     Timing
	strategies []Strategy
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Engine. Zero fields in cfg take their defaults.
func New(cfg Config) *Engine {
	cfg.defaults()
	strategies := cfg.Strategies
	if strategies == nil {
		strategies = DefaultStrategies(cfg.Selectors, cfg.Timing, cfg.Logger)
	}
	return &Engine{
		sel:        cfg.Selectors,
		timing:     cfg.Timing,
		strategies: strategies,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Strategies returns the opening chain in priority order.
func (e *Engine) Strategies() []Strategy {
	return append([]Strategy(nil), e.strategies...)
}

// Handle dispatches one channel message. Only transcript.ActionExtract is
// recognised.
func (e *Engine) Handle(ctx context.Context, doc dom.Document, req transcript.Request) (transcript.Result, error) {
	if req.Action != transcript.ActionExtract {
		return transcript.Result{}, ErrUnknownAction
	}
	return e.Acquire(ctx, doc), nil
}

// Acquire runs one extraction and always produces exactly one Result.
func (e *Engine) Acquire(ctx context.Context, doc dom.Document) transcript.Result {
	start := time.Now()
	text, err := e.Extract(ctx, doc)
	if err != nil {
		var f *transcript.Failure
		if !errors.As(err, &f) {
			f = transcript.PageFailed(err)
		}
		e.logger.Info("engine: extraction failed",
			"kind", f.Kind.String(), "error", f.Message, "elapsed", time.Since(start))
		return transcript.Fail(f)
	}
	e.logger.Info("engine: extraction succeeded",
		"length", len(text), "elapsed", time.Since(start))
	return transcript.Success(text)
}

// Extract is Acquire in (string, error) form. Errors are *transcript.Failure.
func (e *Engine) Extract(ctx context.Context, doc dom.Document) (string, error) {
	u, err := doc.URL(ctx)
	if err != nil {
		return "", transcript.PageFailed(err)
	}
	if !transcript.IsWatchURL(u) {
		return "", transcript.NotVideoPage()
	}

	open, err := dom.Exists(ctx, doc, e.sel.PanelMarker)
	if err != nil {
		return "", transcript.PageFailed(err)
	}
	if open {
		e.logger.Debug("engine: transcript panel already open", "url", u, "video", transcript.VideoID(u))
	} else {
		e.logger.Debug("engine: opening transcript panel", "url", u, "video", transcript.VideoID(u))
		if err := e.openPanel(ctx, doc); err != nil {
			return "", err
		}
	}

	if err := e.waitForContent(ctx, doc); err != nil {
		return "", err
	}
	return e.scrape(ctx, doc)
}

// openPanel tries each strategy in order until one succeeds. Individual
// failures are logged and swallowed.
func (e *Engine) openPanel(ctx context.Context, doc dom.Document) error {
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return transcript.PageFailed(err)
		}
		err := s.Open(ctx, doc)
		if err == nil {
			e.logger.Debug("engine: transcript panel opened", "strategy", s.Name())
			return nil
		}
		e.logger.Debug("engine: strategy failed", "strategy", s.Name(), "error", err)
	}
	if err := ctx.Err(); err != nil {
		return transcript.PageFailed(err)
	}
	return transcript.PanelOpenFailed()
}
