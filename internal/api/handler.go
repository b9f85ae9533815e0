package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nidhogg/giffly/internal/catalog"
	"github.com/nidhogg/giffly/internal/gateway"
	"github.com/nidhogg/giffly/internal/recommend"
	"github.com/nidhogg/giffly/internal/router"
)

const (
	defaultRecent = 10
	maxRecent     = 50
	maxBodyBytes  = 64 << 10
)

// Recommender is the recommendation service as seen by the HTTP layer.
type Recommender interface {
	GetRecommendations(ctx context.Context, query string) *recommend.Result
	Recent(ctx context.Context, n int) ([]catalog.Product, error)
	InvalidateCache(ctx context.Context) error
}

// StateReporter reports the AI analyzer's circuit breaker state.
type StateReporter interface {
	State() string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc         Recommender
	analyzer    StateReporter
	gw          *gateway.Gateway
	restGW      *gateway.RESTAdapter
	broadcaster *gateway.Broadcaster
	origins     []string
	logger      *zap.Logger
}

// NewHandler creates a new API handler. analyzer, gw, restGW and broadcaster
// may be nil; the routes depending on them are then left out or answer 503.
func NewHandler(
	svc Recommender,
	analyzer StateReporter,
	gw *gateway.Gateway,
	restGW *gateway.RESTAdapter,
	broadcaster *gateway.Broadcaster,
	origins []string,
	logger *zap.Logger,
) *Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		svc:         svc,
		analyzer:    analyzer,
		gw:          gw,
		restGW:      restGW,
		broadcaster: broadcaster,
		origins:     origins,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/recommendations", h.getRecommendations)
		r.Post("/recommendations", h.postRecommendations)
		r.Delete("/recommendations/cache", h.invalidateCache)
		r.Get("/products/recent", h.recentProducts)

		// Gateway routes
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
		r.Get("/gateway/status", h.gatewayStatus)
		r.Post("/broadcast/recent", h.broadcastRecent)
		r.Get("/broadcast/history", h.broadcastHistory)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	state := "disabled"
	if h.analyzer != nil {
		state = h.analyzer.State()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"service":  "giffly",
		"analysis": state,
	})
}

type recommendRequest struct {
	Query string `json:"query"`
}

func (h *Handler) postRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.recommend(w, r, req.Query)
}

func (h *Handler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	h.recommend(w, r, r.URL.Query().Get("q"))
}

// recommend always answers with the Result envelope; the status code mirrors
// its outcome.
func (h *Handler) recommend(w http.ResponseWriter, r *http.Request, q string) {
	res := h.svc.GetRecommendations(r.Context(), q)
	writeJSON(w, resultStatus(res), res)
}

func resultStatus(res *recommend.Result) int {
	switch err := res.Err(); {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, recommend.ErrNoKeywords):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InvalidateCache(r.Context()); err != nil {
		h.logger.Error("invalidate cache failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recentProducts(w http.ResponseWriter, r *http.Request) {
	n, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return
	}
	products, err := h.svc.Recent(r.Context(), n)
	if err != nil {
		h.logger.Error("load recent products failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load products"})
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// parseLimit reads ?limit=, defaulting to defaultRecent and capping at maxRecent.
func parseLimit(s string) (int, bool) {
	if s == "" {
		return defaultRecent, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, maxRecent), true
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusOK, []gateway.AdapterStatus{})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

type broadcastRequest struct {
	Limit     int      `json:"limit"`
	Platforms []string `json:"platforms"`
}

// broadcastRecent announces the newest catalog products on the chat platforms.
func (h *Handler) broadcastRecent(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	var req broadcastRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	products, err := h.svc.Recent(r.Context(), min(req.Limit, maxRecent))
	if err != nil {
		h.logger.Error("load recent products failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load products"})
		return
	}
	if len(products) == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "catalog is empty"})
		return
	}

	msg := &gateway.BroadcastMessage{
		Type:      gateway.BroadcastNewArrivals,
		Title:     "Новинки каталога",
		Content:   router.FormatProducts("", products),
		Platforms: req.Platforms,
	}
	if err := h.broadcaster.Send(r.Context(), msg); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

func (h *Handler) broadcastHistory(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		writeJSON(w, http.StatusOK, []gateway.BroadcastRecord{})
		return
	}
	n, ok := parseLimit(r.URL.Query().Get("limit"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		return
	}
	writeJSON(w, http.StatusOK, h.broadcaster.History(n))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
