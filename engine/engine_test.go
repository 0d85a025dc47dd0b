package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/ytscribe/dom"
	"github.com/hazyhaar/ytscribe/dom/snapshot"
	"github.com/hazyhaar/ytscribe/transcript"
)

const watchURL = "https://www.youtube.com/watch?v=abc123"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastTiming() Timing {
	return Timing{
		MenuSettle:     time.Millisecond,
		PanelSettle:    time.Millisecond,
		PollInterval:   2 * time.Millisecond,
		ContentTimeout: 60 * time.Millisecond,
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Config{Timing: fastTiming(), Logger: quietLogger()})
}

// segmentsHTML renders a segments container holding one well-formed segment
// per text.
func segmentsHTML(texts ...string) string {
	var b strings.Builder
	b.WriteString(`<div id="segments-container">`)
	for _, t := range texts {
		b.WriteString(segmentHTML(t))
	}
	b.WriteString(`</div>`)
	return b.String()
}

func segmentHTML(text string) string {
	return `<ytd-transcript-segment-renderer><div class="segment"><div class="segment-timestamp">0:00</div>` +
		`<yt-formatted-string class="segment-text">` + text + `</yt-formatted-string></div></ytd-transcript-segment-renderer>`
}

func panelHTML(inner string) string {
	return `<ytd-transcript-search-panel-renderer>` + inner + `</ytd-transcript-search-panel-renderer>`
}

func watchPage(t *testing.T, body string) *snapshot.Document {
	t.Helper()
	d, err := snapshot.Parse(`<!DOCTYPE html><html><head></head><body><div id="player"></div>`+body+`</body></html>`, watchURL)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	return d
}

// recording wraps a strategy and counts calls.
type recording struct {
	Strategy
	calls *[]string
}

func (r recording) Open(ctx context.Context, doc dom.Document) error {
	*r.calls = append(*r.calls, r.Name())
	return r.Strategy.Open(ctx, doc)
}

func recordedEngine(t *testing.T) (*Engine, *[]string) {
	t.Helper()
	var calls []string
	base := DefaultStrategies(DefaultSelectors(), fastTiming(), quietLogger())
	wrapped := make([]Strategy, len(base))
	for i, s := range base {
		wrapped[i] = recording{Strategy: s, calls: &calls}
	}
	return New(Config{Timing: fastTiming(), Strategies: wrapped, Logger: quietLogger()}), &calls
}

func failureKind(t *testing.T, r transcript.Result) transcript.Kind {
	t.Helper()
	if r.OK() {
		t.Fatalf("expected failure, got transcript %q", r.Transcript)
	}
	return r.Failure.Kind
}

func TestAcquire_NotVideoPage(t *testing.T) {
	// WHAT: A non-watch URL fails before touching the DOM.
	d := watchPage(t, `<button>Show transcript</button>`)
	d.SetURL("https://www.youtube.com/results?search_query=golang")
	before, _ := d.HTML(context.Background())

	eng, calls := recordedEngine(t)
	r := eng.Acquire(context.Background(), d)

	if k := failureKind(t, r); k != transcript.KindPrecondition {
		t.Fatalf("kind: got %v, want precondition", k)
	}
	if r.Failure.Message != transcript.MsgNotVideoPage {
		t.Errorf("message: got %q", r.Failure.Message)
	}
	if len(*calls) != 0 {
		t.Errorf("no strategy should run, got %v", *calls)
	}
	if len(d.Clicks()) != 0 {
		t.Errorf("no click expected, got %v", d.Clicks())
	}
	if after, _ := d.HTML(context.Background()); after != before {
		t.Error("page was mutated")
	}
}

func TestAcquire_PanelAlreadyOpen(t *testing.T) {
	d := watchPage(t, panelHTML(segmentsHTML("hello", "world")))
	eng, calls := recordedEngine(t)

	r := eng.Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "hello world" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	if len(*calls) != 0 {
		t.Errorf("no strategy should run when the panel is open, got %v", *calls)
	}
}

func TestAcquire_JoinsInDOMOrder(t *testing.T) {
	d := watchPage(t, panelHTML(segmentsHTML("  first line ", "second\n", "third")))
	r := testEngine(t).Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "first line second third" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
}

func TestAcquire_MalformedSegmentSkipped(t *testing.T) {
	body := panelHTML(`<div id="segments-container">` +
		segmentHTML("alpha") +
		`<ytd-transcript-segment-renderer><span>no text element</span></ytd-transcript-segment-renderer>` +
		segmentHTML("omega") +
		`</div>`)
	r := testEngine(t).Acquire(context.Background(), watchPage(t, body))
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "alpha omega" {
		t.Errorf("transcript: got %q, want %q", r.Transcript, "alpha omega")
	}
}

func TestAcquire_EmptyTranscript(t *testing.T) {
	r := testEngine(t).Acquire(context.Background(), watchPage(t, panelHTML(segmentsHTML())))
	if k := failureKind(t, r); k != transcript.KindEmptyTranscript {
		t.Fatalf("kind: got %v, want empty_transcript", k)
	}
	if r.Failure.Message != transcript.MsgNoSegments {
		t.Errorf("message: got %q", r.Failure.Message)
	}
}

func TestAcquire_AllSegmentsMalformed(t *testing.T) {
	body := panelHTML(`<div id="segments-container">` +
		`<ytd-transcript-segment-renderer><span>x</span></ytd-transcript-segment-renderer>` +
		`</div>`)
	r := testEngine(t).Acquire(context.Background(), watchPage(t, body))
	if k := failureKind(t, r); k != transcript.KindEmptyTranscript {
		t.Fatalf("kind: got %v, want empty_transcript", k)
	}
}

func TestAcquire_PlayerMenu(t *testing.T) {
	d := watchPage(t, `<button class="ytp-button ytp-settings-button"></button><div class="ytp-popup"></div>`)
	d.OnClick(".ytp-settings-button", func(d *snapshot.Document) {
		d.Append(".ytp-popup", `<div class="ytp-panel-menu">`+
			`<div class="ytp-menuitem">Playback speed</div>`+
			`<div class="ytp-menuitem" id="cc">Subtitles/CC (Captions)</div>`+
			`</div>`)
	})
	d.OnClick("#cc", func(d *snapshot.Document) {
		d.Append("body", panelHTML(segmentsHTML("via", "player")))
	})

	eng, calls := recordedEngine(t)
	r := eng.Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "via player" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	if want := []string{NamePlayerMenu}; !reflect.DeepEqual(*calls, want) {
		t.Errorf("strategies: got %v, want %v", *calls, want)
	}
	want := []string{"button.ytp-button.ytp-settings-button", "div#cc.ytp-menuitem"}
	if got := d.Clicks(); !reflect.DeepEqual(got, want) {
		t.Errorf("clicks: got %v, want %v", got, want)
	}
}

func TestAcquire_BelowPlayerMenuSkipsPlayerButton(t *testing.T) {
	// The player's own "More actions" button opens nothing; strategy (a)
	// fails on it and strategy (b) must pick the other one.
	d := watchPage(t,
		`<button class="ytp-button" aria-label="More actions"></button>`+
			`<ytd-menu-renderer><button id="below" aria-label="More actions"></button></ytd-menu-renderer>`+
			`<ytd-popup-container></ytd-popup-container>`)
	d.OnClick("#below", func(d *snapshot.Document) {
		d.Append("ytd-popup-container", `<tp-yt-paper-listbox>`+
			`<tp-yt-paper-item>Save</tp-yt-paper-item>`+
			`<tp-yt-paper-item id="show">Show transcript</tp-yt-paper-item>`+
			`</tp-yt-paper-listbox>`)
	})
	d.OnClick("#show", func(d *snapshot.Document) {
		d.Append("body", panelHTML(segmentsHTML("below")))
	})

	eng, calls := recordedEngine(t)
	r := eng.Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "below" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	if want := []string{NamePlayerMenu, NameBelowPlayerMenu}; !reflect.DeepEqual(*calls, want) {
		t.Errorf("strategies: got %v, want %v", *calls, want)
	}
	want := []string{"button.ytp-button", "body", "button#below", "tp-yt-paper-item#show"}
	if got := d.Clicks(); !reflect.DeepEqual(got, want) {
		t.Errorf("clicks: got %v, want %v", got, want)
	}
}

func TestAcquire_BelowPlayerMenuLabelIgnoresCase(t *testing.T) {
	d := watchPage(t,
		`<ytd-menu-renderer><button id="below" aria-label="more actions"></button></ytd-menu-renderer>`+
			`<ytd-popup-container></ytd-popup-container>`)
	d.OnClick("#below", func(d *snapshot.Document) {
		d.Append("ytd-popup-container", `<tp-yt-paper-listbox>`+
			`<tp-yt-paper-item id="show">Show transcript</tp-yt-paper-item>`+
			`</tp-yt-paper-listbox>`)
	})
	d.OnClick("#show", func(d *snapshot.Document) {
		d.Append("body", panelHTML(segmentsHTML("lower", "case")))
	})

	eng, calls := recordedEngine(t)
	r := eng.Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "lower case" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	if want := []string{NamePlayerMenu, NameBelowPlayerMenu}; !reflect.DeepEqual(*calls, want) {
		t.Errorf("strategies: got %v, want %v", *calls, want)
	}
}

func TestAcquire_FallsThroughToDirectButton(t *testing.T) {
	d := watchPage(t,
		`<button class="ytp-button ytp-settings-button"></button>`+
			`<div class="ytp-popup"></div>`+
			`<div id="description"><button id="direct">Show transcript</button></div>`)
	d.OnClick(".ytp-settings-button", func(d *snapshot.Document) {
		d.Append(".ytp-popup", `<div class="ytp-panel-menu"><div class="ytp-menuitem">Quality</div></div>`)
	})
	d.OnBackgroundClick(func(d *snapshot.Document) { d.Remove(".ytp-panel-menu") })
	d.OnClick("#direct", func(d *snapshot.Document) {
		d.Append("body", panelHTML(segmentsHTML("direct", "hit")))
	})

	eng, calls := recordedEngine(t)
	r := eng.Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("earlier strategy failures must not surface: %v", r.Failure)
	}
	if r.Transcript != "direct hit" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	if want := []string{NamePlayerMenu, NameBelowPlayerMenu, NameDirectButton}; !reflect.DeepEqual(*calls, want) {
		t.Errorf("strategies: got %v, want %v", *calls, want)
	}
	if ok, _ := dom.Exists(context.Background(), d, ".ytp-panel-menu"); ok {
		t.Error("player menu should have been dismissed")
	}
}

func TestAcquire_AllStrategiesFail(t *testing.T) {
	d := watchPage(t, `<button class="ytp-button ytp-settings-button"></button><div class="ytp-popup"></div>`)
	d.OnClick(".ytp-settings-button", func(d *snapshot.Document) {
		d.Append(".ytp-popup", `<div class="ytp-panel-menu"><div class="ytp-menuitem">Quality</div></div>`)
	})

	eng, calls := recordedEngine(t)
	r := eng.Acquire(context.Background(), d)
	if k := failureKind(t, r); k != transcript.KindPanelOpen {
		t.Fatalf("kind: got %v, want panel_open", k)
	}
	if r.Failure.Message != transcript.MsgPanelOpen {
		t.Errorf("message: got %q", r.Failure.Message)
	}
	if len(*calls) != 3 {
		t.Errorf("all three strategies should run, got %v", *calls)
	}
	want := []string{"button.ytp-button.ytp-settings-button", "body"}
	if got := d.Clicks(); !reflect.DeepEqual(got, want) {
		t.Errorf("clicks: got %v, want %v", got, want)
	}
}

func TestAcquire_ContentTimeout(t *testing.T) {
	d := watchPage(t, `<button id="direct">Show transcript</button>`)
	d.OnClick("#direct", func(d *snapshot.Document) {
		d.Append("body", panelHTML(`<div id="body">loading</div>`))
	})

	start := time.Now()
	r := testEngine(t).Acquire(context.Background(), d)
	if k := failureKind(t, r); k != transcript.KindContentTimeout {
		t.Fatalf("kind: got %v, want content_timeout", k)
	}
	if r.Failure.Message != transcript.MsgContentTimeout {
		t.Errorf("message: got %q", r.Failure.Message)
	}
	if elapsed := time.Since(start); elapsed < fastTiming().ContentTimeout {
		t.Errorf("gave up after %v, before the %v bound", elapsed, fastTiming().ContentTimeout)
	}
}

// lateDoc materialises the segments container on the n-th container query.
type lateDoc struct {
	*snapshot.Document
	n     int
	calls int
}

func (d *lateDoc) Query(ctx context.Context, selector string) (dom.Element, error) {
	if selector == DefaultSelectors().Container {
		d.calls++
		if d.calls == d.n {
			d.Append("ytd-transcript-search-panel-renderer", segmentsHTML("late", "arrival"))
		}
	}
	return d.Document.Query(ctx, selector)
}

func TestAcquire_ContentAppearsBeforeDeadline(t *testing.T) {
	d := &lateDoc{Document: watchPage(t, panelHTML("")), n: 4}
	eng := New(Config{
		Timing: Timing{PollInterval: 5 * time.Millisecond, ContentTimeout: 500 * time.Millisecond},
		Logger: quietLogger(),
	})

	r := eng.Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("unexpected failure: %v", r.Failure)
	}
	if r.Transcript != "late arrival" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	// 4 polls, then one re-query by the scrape step.
	if d.calls != 5 {
		t.Errorf("container queries: got %d, want 5", d.calls)
	}
}

// steppedDoc drives a fake clock from the container checks: the k-th check
// observes start + (k-1)*step. The container materialises on check appear
// (0 = never).
type steppedDoc struct {
	*snapshot.Document
	start  time.Time
	step   time.Duration
	now    time.Time
	appear int
	calls  int

	// appearedAt is the clock reading of the check that created the container.
	appearedAt time.Duration
}

func (d *steppedDoc) Query(ctx context.Context, selector string) (dom.Element, error) {
	if selector == DefaultSelectors().Container {
		d.calls++
		d.now = d.start.Add(time.Duration(d.calls-1) * d.step)
		if d.calls == d.appear {
			d.appearedAt = d.now.Sub(d.start)
			d.Append("ytd-transcript-search-panel-renderer", segmentsHTML("just", "in", "time"))
		}
	}
	return d.Document.Query(ctx, selector)
}

func steppedEngine(t *testing.T, d *steppedDoc, timeout time.Duration) *Engine {
	t.Helper()
	eng := New(Config{
		Timing: Timing{PollInterval: d.step, ContentTimeout: timeout},
		Logger: quietLogger(),
	})
	eng.now = func() time.Time { return d.now }
	return eng
}

func TestAcquire_ContentAppearsOnLastPollBeforeDeadline(t *testing.T) {
	// The check at exactly start+ContentTimeout is the last one within the
	// bound; finding the container there is a success.
	const timeout = 100 * time.Millisecond
	start := time.Unix(1_700_000_000, 0)
	d := &steppedDoc{
		Document: watchPage(t, panelHTML("")),
		start:    start,
		now:      start,
		step:     time.Millisecond,
		appear:   int(timeout/time.Millisecond) + 1,
	}

	r := steppedEngine(t, d, timeout).Acquire(context.Background(), d)
	if !r.OK() {
		t.Fatalf("container found at the bound must succeed, got %v", r.Failure)
	}
	if r.Transcript != "just in time" {
		t.Errorf("transcript: got %q", r.Transcript)
	}
	if d.appearedAt != timeout {
		t.Errorf("container appeared at %v, want exactly %v", d.appearedAt, timeout)
	}
}

func TestAcquire_ContentNeverAppearsTimesOutPastBound(t *testing.T) {
	const timeout = 100 * time.Millisecond
	start := time.Unix(1_700_000_000, 0)
	d := &steppedDoc{
		Document: watchPage(t, panelHTML("")),
		start:    start,
		now:      start,
		step:     time.Millisecond,
	}

	r := steppedEngine(t, d, timeout).Acquire(context.Background(), d)
	if k := failureKind(t, r); k != transcript.KindContentTimeout {
		t.Fatalf("kind: got %v, want content timeout", k)
	}
	// Checks at 0..100ms stay within the bound; the one at 101ms gives up.
	if want := int(timeout/time.Millisecond) + 2; d.calls != want {
		t.Errorf("container checks: got %d, want %d", d.calls, want)
	}
}

// vanishingDoc drops the container right after the readiness check sees it.
type vanishingDoc struct {
	*snapshot.Document
	seen bool
}

func (d *vanishingDoc) Query(ctx context.Context, selector string) (dom.Element, error) {
	if selector == DefaultSelectors().Container && !d.seen {
		d.seen = true
		el, err := d.Document.Query(ctx, selector)
		d.Remove(selector)
		return el, err
	}
	return d.Document.Query(ctx, selector)
}

func TestAcquire_ContainerVanishes(t *testing.T) {
	d := &vanishingDoc{Document: watchPage(t, panelHTML(segmentsHTML("gone")))}
	r := testEngine(t).Acquire(context.Background(), d)
	if k := failureKind(t, r); k != transcript.KindContentRace {
		t.Fatalf("kind: got %v, want content_race", k)
	}
	if r.Failure.Message != transcript.MsgContainerGone {
		t.Errorf("message: got %q", r.Failure.Message)
	}
}

func TestAcquire_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := testEngine(t).Acquire(ctx, watchPage(t, panelHTML(segmentsHTML("x"))))
	if k := failureKind(t, r); k != transcript.KindPage {
		t.Fatalf("kind: got %v, want page", k)
	}
	if !errors.Is(r.Failure, context.Canceled) {
		t.Errorf("failure should wrap context.Canceled: %v", r.Failure.Cause)
	}
}

func TestHandle_UnknownAction(t *testing.T) {
	d := watchPage(t, panelHTML(segmentsHTML("x")))
	_, err := testEngine(t).Handle(context.Background(), d, transcript.Request{Action: "summarize"})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("got %v, want ErrUnknownAction", err)
	}

	r, err := testEngine(t).Handle(context.Background(), d, transcript.ExtractRequest())
	if err != nil || !r.OK() || r.Transcript != "x" {
		t.Errorf("extract: got (%+v, %v)", r, err)
	}
}

func TestExtract_ReturnsFailureError(t *testing.T) {
	d := watchPage(t, "")
	d.SetURL("https://example.com/")
	_, err := testEngine(t).Extract(context.Background(), d)
	if transcript.KindOf(err) != transcript.KindPrecondition {
		t.Errorf("KindOf: got %v", transcript.KindOf(err))
	}
}

func TestDefaultStrategies_Order(t *testing.T) {
	var names []string
	for _, s := range testEngine(t).Strategies() {
		names = append(names, s.Name())
	}
	want := []string{NamePlayerMenu, NameBelowPlayerMenu, NameDirectButton}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("order: got %v, want %v", names, want)
	}
}
