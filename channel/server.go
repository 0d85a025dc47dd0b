// Package channel carries extraction requests from the popup to the page
// that should serve them. The HTTP API mirrors what a browser gives an
// extension: list tabs, find the active one, send one message to a tab and
// get exactly one response back. The same extraction is exposed as an MCP
// tool.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/ytscribe/dom"
	"github.com/hazyhaar/ytscribe/dom/snapshot"
	"github.com/hazyhaar/ytscribe/engine"
	"github.com/hazyhaar/ytscribe/horosafe"
	"github.com/hazyhaar/ytscribe/kit"
	"github.com/hazyhaar/ytscribe/shield"
	"github.com/hazyhaar/ytscribe/tabs"
	"github.com/hazyhaar/ytscribe/transcript"
)

// ActiveTabID addresses the active tab in message routes and MCP calls.
const ActiveTabID = "active"

// Config configures a Server.
type Config struct {
	// MaxBody caps request bodies. Default: 64KB.
	MaxBody int64
	// RequestTimeout bounds one extraction, queueing on the tab included.
	// Default: 60s.
	RequestTimeout time.Duration
	// RateLimit is message requests per minute per client. 0 = unlimited.
	RateLimit int
	// URLCheck vets URLs before a tab is opened on them.
	// Default: horosafe.ValidateURL.
	URLCheck func(rawURL string) error
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxBody <= 0 {
		c.MaxBody = 64 * 1024
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if c.URLCheck == nil {
		c.URLCheck = horosafe.ValidateURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server routes channel requests to tabs and the engine.
type Server struct {
	tabs    *tabs.Registry
	engine  *engine.Engine
	cfg     Config
	limiter *shield.RateLimiter
	extract kit.Endpoint
}

// NewServer creates a Server.
func NewServer(reg *tabs.Registry, eng *engine.Engine, cfg Config) *Server {
	cfg.defaults()
	s := &Server{
		tabs:    reg,
		engine:  eng,
		cfg:     cfg,
		limiter: shield.NewRateLimiter(cfg.RateLimit, time.Minute),
	}
	s.extract = kit.Chain(
		kit.WithRecovery(cfg.Logger),
		kit.WithLogging(cfg.Logger),
		kit.WithTimeout(cfg.RequestTimeout),
	)(s.extractEndpoint)
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.cfg.MaxBody) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	r.Route("/tabs", func(r chi.Router) {
		r.Get("/", s.handleListTabs)
		r.Post("/", s.handleOpenTab)
		r.Get("/active", s.handleActiveTab)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/activate", s.handleActivate)
			r.Delete("/", s.handleCloseTab)
			r.Get("/snapshot", s.handleSnapshot)
			r.With(s.limiter.Middleware).Post("/messages", s.handleMessage)
		})
	})
	return r
}

// extractCall is the transport-neutral extraction request.
type extractCall struct {
	TabID   string
	Request transcript.Request
}

// extractEndpoint runs one request on one tab and yields the wire
// Response. Channel-level problems (unknown tab, unknown action, queueing
// timeout) are returned as errors; extraction failures are not.
func (s *Server) extractEndpoint(ctx context.Context, req any) (any, error) {
	call := req.(*extractCall)
	tab, err := s.lookup(call.TabID)
	if err != nil {
		return nil, err
	}
	ctx = kit.WithTabID(ctx, tab.ID())

	var res transcript.Result
	err = tab.Do(ctx, func(ctx context.Context, doc dom.Document) error {
		var herr error
		res, herr = s.engine.Handle(ctx, doc, call.Request)
		return herr
	})
	if err != nil {
		return nil, err
	}
	return res.Response(), nil
}

func (s *Server) lookup(id string) (*tabs.Tab, error) {
	if id == "" || id == ActiveTabID {
		return s.tabs.Active()
	}
	return s.tabs.Get(id)
}

type openTabRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tabs.List(r.Context()))
}

func (s *Server) handleOpenTab(w http.ResponseWriter, r *http.Request) {
	var req openTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	info, err := s.openTab(r.Context(), req.URL)
	var bad *badURLError
	if errors.As(err, &bad) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		shield.GetLogger(r.Context()).Warn("channel: open tab", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// badURLError is a URL refused before any navigation.
type badURLError struct{ err error }

func (e *badURLError) Error() string { return "channel: refused url: " + e.err.Error() }
func (e *badURLError) Unwrap() error { return e.err }

func (s *Server) openTab(ctx context.Context, pageURL string) (tabs.Info, error) {
	if err := s.cfg.URLCheck(pageURL); err != nil {
		return tabs.Info{}, &badURLError{err: err}
	}
	return s.tabs.Open(ctx, pageURL)
}

func (s *Server) handleActiveTab(w http.ResponseWriter, r *http.Request) {
	info, err := s.tabs.ActiveInfo(r.Context())
	if err != nil {
		s.writeChannelError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	info, err := s.tabs.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeChannelError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	if err := s.tabs.Close(chi.URLParam(r, "id")); err != nil {
		s.writeChannelError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSnapshot returns the tab's markup cleaned for use as a fixture.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()
	tab, err := s.lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.writeChannelError(w, r, err)
		return
	}
	page, err := tab.HTML(ctx)
	if errors.Is(err, tabs.ErrNoHTML) {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	if err != nil {
		s.writeChannelError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(snapshot.Clean(page)))
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req transcript.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid message")
		return
	}
	ctx := kit.WithTransport(r.Context(), "http")
	resp, err := s.extract(ctx, &extractCall{TabID: chi.URLParam(r, "id"), Request: req})
	if err != nil {
		s.writeChannelError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeChannelError maps channel-level errors to statuses. Each message
// request still gets exactly one reply.
func (s *Server) writeChannelError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *tabs.ErrTabNotFound
	switch {
	case errors.Is(err, engine.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, "unrecognized action")
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tabs.ErrNoActiveTab):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "tab busy")
	default:
		shield.GetLogger(r.Context()).Error("channel: request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
