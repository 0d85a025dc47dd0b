package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/hazyhaar/ytscribe/dom"
	"github.com/hazyhaar/ytscribe/transcript"
)

// waitForContent polls for the segments container. The first check happens
// immediately; a check that finds the container wins even if it lands on the
// deadline.
func (e *Engine) waitForContent(ctx context.Context, doc dom.Document) error {
	start := e.now()
	deadline := start.Add(e.timing.ContentTimeout)

	for {
		ok, err := dom.Exists(ctx, doc, e.sel.Container)
		if err != nil {
			return transcript.PageFailed(err)
		}
		if ok {
			e.logger.Debug("engine: segments container found",
				"selector", e.sel.Container, "after", e.now().Sub(start))
			return nil
		}
		if e.now().After(deadline) {
			e.logger.Debug("engine: segments container wait timed out",
				"selector", e.sel.Container, "timeout", e.timing.ContentTimeout)
			return transcript.ContentTimeout(nil)
		}
		if err := settle(ctx, e.timing.PollInterval); err != nil {
			return transcript.PageFailed(err)
		}
	}
}

// scrape re-locates the container and flattens its segments. It never reuses
// a handle obtained before the wait.
func (e *Engine) scrape(ctx context.Context, doc dom.Document) (string, error) {
	container, err := doc.Query(ctx, e.sel.Container)
	if errors.Is(err, dom.ErrNotFound) {
		return "", transcript.ContainerGone()
	}
	if err != nil {
		return "", transcript.PageFailed(err)
	}

	segments, err := container.QueryAll(ctx, e.sel.Segment)
	if err != nil {
		return "", transcript.PageFailed(err)
	}
	e.logger.Debug("engine: transcript segments", "count", len(segments))

	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		textEl, err := seg.Query(ctx, e.sel.SegmentText)
		if errors.Is(err, dom.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", transcript.PageFailed(err)
		}
		text, err := textEl.Text(ctx)
		if err != nil {
			return "", transcript.PageFailed(err)
		}
		parts = append(parts, strings.TrimSpace(text))
	}

	if len(parts) == 0 {
		return "", transcript.NoSegments()
	}
	return strings.Join(parts, " "), nil
}
