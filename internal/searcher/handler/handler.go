// Package handler exposes the query engine over HTTP.
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	apperrors "github.com/Adithya-Monish-Kumar-K/positional-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
)

// EngineSource yields the engine to serve a request with. *reload.Holder
// satisfies it.
type EngineSource interface {
	Engine() *query.Engine
}

type Handler struct {
	engines EngineSource
	cache   *cache.LookupCache
	metrics *metrics.Metrics
	radius  int
	logger  *slog.Logger
}

// New creates a Handler. lookupCache may be nil.
func New(engines EngineSource, lookupCache *cache.LookupCache, radius int) *Handler {
	if radius <= 0 {
		radius = 5
	}
	return &Handler{
		engines: engines,
		cache:   lookupCache,
		radius:  radius,
		logger:  slog.Default().With("component", "query-handler"),
	}
}

func (h *Handler) WithMetrics(m *metrics.Metrics) *Handler {
	h.metrics = m
	return h
}

// Register mounts the query API on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/snapshot", h.Snapshot)
		r.Get("/terms/{term}", h.Term)
		r.Get("/terms/{term}/documents/{id}", h.TermInDocument)
		r.Get("/documents/{id}", h.Document)
		r.Get("/documents/{id}/terms", h.DocumentTerms)
		r.Get("/documents/{id}/context", h.Context)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/invalidate", h.CacheInvalidate)
	})
}

// Snapshot describes the snapshot being served.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	s := h.engines.Engine().Snapshot()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"build_id":   s.BuildID.String(),
		"created_at": s.CreatedAt.UTC().Format(time.RFC3339),
		"terms":      len(s.Dictionary),
		"documents":  s.Collection.Distinct(),
		"positions":  s.TrackPositions,
		"analyzer":   s.Analyzer,
	})
}

// Term looks a term up after analyzing it the way the index was built.
func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	e := h.engines.Engine()

	input, err := url.PathUnescape(chi.URLParam(r, "term"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: term is not valid path text", apperrors.ErrInvalidInput))
		return
	}
	term, err := e.Canonical(input)
	if err != nil {
		h.countLookup("miss")
		h.writeError(w, r, err)
		return
	}

	compute := func() (*query.TermResult, error) {
		t, err := e.Lookup(term)
		if err != nil {
			return nil, err
		}
		res := e.Describe(t)
		return &res, nil
	}

	var (
		res         *query.TermResult
		cacheStatus = "none"
	)
	if h.cache != nil {
		var hit bool
		res, hit, err = h.cache.GetOrCompute(ctx, e.Snapshot().BuildID.String(), term, compute)
		cacheStatus = "miss"
		if hit {
			cacheStatus = "hit"
		}
	} else {
		res, err = compute()
	}
	if err != nil {
		h.countLookup("miss")
		h.writeError(w, r, err)
		return
	}

	elapsed := time.Since(start)
	h.countLookup("hit")
	if h.metrics != nil {
		h.metrics.LookupLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}
	logger.FromContext(ctx).Debug("term lookup",
		"input", input,
		"term", term,
		"df", res.DocumentFrequency,
		"cache", cacheStatus,
		"latency", elapsed,
	)
	h.writeJSON(w, http.StatusOK, res)
}

type termInDocumentResponse struct {
	Term      string        `json:"term"`
	DocID     document.ID   `json:"doc_id"`
	Title     string        `json:"title"`
	Frequency int           `json:"term_frequency"`
	Positions []int         `json:"positions,omitempty"`
	Summary   *query.Window `json:"summary,omitempty"`
	Text      string        `json:"summary_text,omitempty"`
}

// TermInDocument returns one posting with a summary around the term's first
// occurrence.
func (h *Handler) TermInDocument(w http.ResponseWriter, r *http.Request) {
	e := h.engines.Engine()
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	radius, err := h.parseRadius(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	input, err := url.PathUnescape(chi.URLParam(r, "term"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: term is not valid path text", apperrors.ErrInvalidInput))
		return
	}
	term, err := e.Canonical(input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := e.TermInDocument(term, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := e.Document(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := termInDocumentResponse{
		Term:      term,
		DocID:     id,
		Title:     doc.Title,
		Frequency: p.Frequency,
		Positions: p.Positions,
	}
	if p.Positional() {
		win, err := e.Summary(term, id, radius)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.Summary = &win
		resp.Text = win.String()
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Document returns a stored document.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, err := h.engines.Engine().Document(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// DocumentTerms lists every term of a document.
func (h *Handler) DocumentTerms(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	terms, err := h.engines.Engine().DocumentTerms(id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if terms == nil {
		terms = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"doc_id": id, "terms": terms})
}

// Context returns the window around ?position= in a document.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	raw := r.URL.Query().Get("position")
	pos, err := strconv.Atoi(raw)
	if err != nil || pos < 0 {
		h.writeError(w, r, fmt.Errorf("%w: position must be a non-negative integer", apperrors.ErrInvalidInput))
		return
	}
	radius, err := h.parseRadius(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	win, err := h.engines.Engine().ContextSummary(id, pos, radius)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":  id,
		"window":  win,
		"summary": win.String(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) parseRadius(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("radius")
	if raw == "" {
		return h.radius, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: radius must be a non-negative integer", apperrors.ErrInvalidInput)
	}
	return n, nil
}

func parseID(raw string) (document.ID, error) {
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: document id %q must be a positive integer", apperrors.ErrInvalidInput, raw)
	}
	return document.ID(n), nil
}

func (h *Handler) countLookup(result string) {
	if h.metrics != nil {
		h.metrics.LookupsTotal.WithLabelValues(result).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}
