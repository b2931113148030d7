package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/grounding-search/pkg/logger"
)

// maxBodyBytes bounds POST /api/v1/context bodies.
const maxBodyBytes = 64 << 10

type contextRequest struct {
	Query string `json:"query"`
	N     int    `json:"n"`
}

type statusResponse struct {
	indexer.Status
	CacheEnabled bool   `json:"cacheEnabled"`
	CacheBreaker string `json:"cacheBreaker"`
}

type Handler struct {
	executor *executor.Executor
	logger   *slog.Logger
}

func New(exec *executor.Executor) *Handler {
	return &Handler{
		executor: exec,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the search API on mux. admin wraps the cache
// invalidation endpoint; nil leaves it unguarded.
func (h *Handler) Register(mux *http.ServeMux, admin func(http.Handler) http.Handler) {
	if admin == nil {
		admin = func(next http.Handler) http.Handler { return next }
	}
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/context", h.Context)
	mux.HandleFunc("POST /api/v1/context", h.Context)
	mux.HandleFunc("GET /api/v1/status", h.Status)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.Handle("DELETE /api/v1/cache", admin(http.HandlerFunc(h.CacheInvalidate)))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, ok := h.intParam(w, r, "limit")
	if !ok {
		return
	}

	result, err := h.executor.Search(r.Context(), query, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("search failed", "query", query, "error", err)
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Context serves GET ?q=&n= and POST {"query","n"}.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		req.Query = r.URL.Query().Get("q")
		n, ok := h.intParam(w, r, "n")
		if !ok {
			return
		}
		req.N = n
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	out, err := h.executor.Context(r.Context(), req.Query, req.N)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	c := h.executor.Cache()
	h.writeJSON(w, http.StatusOK, statusResponse{
		Status:       h.executor.Status(),
		CacheEnabled: c != nil,
		CacheBreaker: c.BreakerState(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.executor.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := c.Stats()
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
		"breaker":  c.BreakerState(),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	c := h.executor.Cache()
	if c == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := c.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

// intParam parses an optional positive integer query parameter, writing a
// 400 and returning false when it is malformed. Absent means 0.
func (h *Handler) intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		h.writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return v, true
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := http.StatusText(status)
	var appErr *apperrors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeError(w, status, msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
