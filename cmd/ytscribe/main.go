// Command ytscribe extracts YouTube transcripts by driving the watch page's
// own transcript panel in Chrome.
//
// Usage:
//
//	ytscribe -serve [-config ytscribe.yaml] [-open URL]   # browser daemon + HTTP channel
//	ytscribe -popup [-server http://127.0.0.1:8765]      # terminal popup
//	ytscribe -mcp [-config ytscribe.yaml]                 # browser + MCP over stdio
//	ytscribe -snapshot page.html -url URL                 # run once on saved HTML
//	ytscribe -capture page.html [-open URL] [-server URL] # save a tab as a fixture
//	ytscribe -tabs [-server URL]                          # list the daemon's tabs
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ytscribe/browser"
	"github.com/hazyhaar/ytscribe/channel"
	"github.com/hazyhaar/ytscribe/config"
	"github.com/hazyhaar/ytscribe/dom/snapshot"
	"github.com/hazyhaar/ytscribe/engine"
	"github.com/hazyhaar/ytscribe/idgen"
	"github.com/hazyhaar/ytscribe/popup"
	"github.com/hazyhaar/ytscribe/tabs"
)

var version = "dev"

type options struct {
	serve, popup, mcp bool
	listTabs          bool
	configPath        string
	addr              string
	openURL           string
	server            string
	snapshotPath      string
	capturePath       string
	pageURL           string
	popupLog          string
}

func main() {
	var o options
	flag.BoolVar(&o.serve, "serve", false, "run the browser daemon and HTTP channel")
	flag.BoolVar(&o.popup, "popup", false, "run the terminal popup")
	flag.BoolVar(&o.mcp, "mcp", false, "run the browser daemon as an MCP server on stdio")
	flag.BoolVar(&o.listTabs, "tabs", false, "print the daemon's tabs as JSON and exit")
	flag.StringVar(&o.configPath, "config", "", "path to ytscribe.yaml")
	flag.StringVar(&o.addr, "addr", "", "listen address (overrides server.addr)")
	flag.StringVar(&o.openURL, "open", "", "with -serve or -mcp: open this URL in a first tab; with -capture: open it and capture that tab")
	flag.StringVar(&o.server, "server", "", "with -popup: daemon base URL (overrides popup.server)")
	flag.StringVar(&o.snapshotPath, "snapshot", "", "extract from a saved HTML page and exit")
	flag.StringVar(&o.capturePath, "capture", "", "save the active tab's cleaned HTML to this file and exit")
	flag.StringVar(&o.pageURL, "url", "", "with -snapshot: the page URL (default: canonical link)")
	flag.StringVar(&o.popupLog, "popup-log", "", "with -popup: write logs to this file instead of discarding them")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("instance", idgen.New())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("ytscribe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return err
		}
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.server != "" {
		cfg.Popup.Server = o.server
	}

	switch {
	case o.snapshotPath != "":
		return runSnapshot(ctx, logger, cfg, o.snapshotPath, o.pageURL, os.Stdout)
	case o.capturePath != "":
		return runCapture(ctx, cfg, o.capturePath, o.openURL)
	case o.listTabs:
		return runTabs(ctx, cfg, os.Stdout)
	case o.popup:
		return runPopup(ctx, logger, cfg, o.popupLog)
	case o.mcp:
		return runMCP(ctx, logger, cfg, o.openURL)
	case o.serve:
		return runServe(ctx, logger, cfg, o.openURL)
	}

	fmt.Fprintln(os.Stderr, "usage: ytscribe -serve | -popup | -mcp | -snapshot <file> [-url <url>] | -capture <file> [-open <url>] | -tabs")
	os.Exit(2)
	return nil
}

func newEngine(cfg *config.Config, logger *slog.Logger) *engine.Engine {
	return engine.New(engine.Config{
		Selectors: cfg.Engine.Selectors,
		Timing:    cfg.Engine.Timing,
		Logger:    logger,
	})
}

func runSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config, path, pageURL string, out io.Writer) error {
	doc, err := snapshot.LoadFile(path, pageURL)
	if err != nil {
		return err
	}
	text, err := newEngine(cfg, logger).Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}
	_, err = fmt.Fprintln(out, text)
	return err
}

// runCapture asks a running daemon for a tab's cleaned HTML and writes a
// fixture that -snapshot can replay. With openURL the daemon opens it first.
func runCapture(ctx context.Context, cfg *config.Config, path, openURL string) error {
	c := channel.NewClient(cfg.PopupURL(), &http.Client{Timeout: cfg.Server.RequestTimeout})
	tabID := channel.ActiveTabID
	if openURL != "" {
		info, err := c.OpenTab(ctx, openURL)
		if err != nil {
			return fmt.Errorf("capture: open: %w", err)
		}
		tabID = info.ID
	}
	page, err := c.Snapshot(ctx, tabID)
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return os.WriteFile(path, []byte(page), 0o644)
}

func runTabs(ctx context.Context, cfg *config.Config, out io.Writer) error {
	c := channel.NewClient(cfg.PopupURL(), &http.Client{Timeout: 10 * time.Second})
	list, err := c.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("tabs: %w", err)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}

// runPopup owns the terminal, so logs go to logPath or nowhere.
func runPopup(ctx context.Context, logger *slog.Logger, cfg *config.Config, logPath string) error {
	popupLogger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("popup log: %w", err)
		}
		defer f.Close()
		popupLogger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	logger.Debug("ytscribe: popup starting", "server", cfg.PopupURL())

	ctrl := popup.NewController(popup.Config{
		Messenger:   channel.NewClient(cfg.PopupURL(), &http.Client{Timeout: cfg.Server.RequestTimeout + 5*time.Second}),
		Clipboard:   popup.SystemClipboard{},
		CopyConfirm: cfg.Popup.CopyConfirm,
		Logger:      popupLogger,
	})
	return popup.Run(ctx, ctrl)
}

// daemon is the browser, its tabs and the channel server.
type daemon struct {
	mgr    *browser.Manager
	tabs   *tabs.Registry
	server *channel.Server
}

func startDaemon(ctx context.Context, logger *slog.Logger, cfg *config.Config, openURL string) (*daemon, error) {
	level, err := browser.ParseStealth(cfg.Browser.Stealth)
	if err != nil {
		return nil, err
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		BinPath:          cfg.Browser.Bin,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		NavigateTimeout:  cfg.Browser.NavigateTimeout,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Stealth:          level,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	reg := tabs.New(tabs.Config{
		Opener: browser.Opener(mgr),
		IDGen:  cfg.TabIDGen(),
		Logger: logger,
	})
	// Pages of a recycled Chrome are gone; the registry must not hand them out.
	mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: reg.Forget,
	})

	if _, err := mgr.Start(ctx); err != nil {
		return nil, err
	}

	srv := channel.NewServer(reg, newEngine(cfg, logger), channel.Config{
		MaxBody:        cfg.Server.MaxBody,
		RequestTimeout: cfg.Server.RequestTimeout,
		RateLimit:      cfg.Server.RateLimit,
		Logger:         logger,
	})

	if openURL != "" {
		if _, err := reg.Open(ctx, openURL); err != nil {
			logger.Warn("ytscribe: open first tab", "url", openURL, "error", err)
		}
	}
	return &daemon{mgr: mgr, tabs: reg, server: srv}, nil
}

func (d *daemon) close() {
	d.tabs.CloseAll()
	d.mgr.Close()
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config, openURL string) error {
	d, err := startDaemon(ctx, logger, cfg, openURL)
	if err != nil {
		return err
	}
	defer d.close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           d.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ytscribe: listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	logger.Info("ytscribe: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, logger *slog.Logger, cfg *config.Config, openURL string) error {
	d, err := startDaemon(ctx, logger, cfg, openURL)
	if err != nil {
		return err
	}
	defer d.close()

	srv := mcp.NewServer(&mcp.Implementation{Name: "ytscribe", Version: version}, nil)
	d.server.RegisterMCP(srv)
	logger.Info("ytscribe: mcp on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
