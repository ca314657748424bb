/*

Read-only HTTP surface for the index controller. Serves pool and category
state, persisted rebalance cycles and Prometheus metrics. All mutation goes
through the controller API; nothing here writes.

*/

package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/indexed-finance/indexed-core-sub000/internal/controller"
	"github.com/indexed-finance/indexed-core-sub000/internal/logger"
	"github.com/indexed-finance/indexed-core-sub000/internal/state"
	"github.com/indexed-finance/indexed-core-sub000/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for controller and cycle data.
type WebServer struct {
	router *mux.Router
	port   string
	ctrl   *controller.Controller
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, ctrl *controller.Controller) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
		ctrl:   ctrl,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/events", ws.handleGetPoolEvents).Methods("GET")
	api.HandleFunc("/categories", ws.handleGetCategories).Methods("GET")
	api.HandleFunc("/categories/{id}", ws.handleGetCategory).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	var lastCycle interface{}
	cycle, err := state.GetLatestCycle()
	if err == nil && cycle != nil {
		lastCycle = map[string]interface{}{
			"cycle_number": cycle.CycleNumber,
			"trace_id":     cycle.TraceID,
			"finished_at":  cycle.FinishedAt,
			"pools_seen":   cycle.PoolsSeen,
		}
	}

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"gc_cycles":        memStats.NumGC,
		},
		"controller": map[string]interface{}{
			"account":          ws.ctrl.Account(),
			"managed_pools":    len(ws.ctrl.ListPools()),
			"database_healthy": dbHealthy,
			"last_cycle":       lastCycle,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns metadata for every managed pool.
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	pools := ws.ctrl.ListPools()
	response := map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// poolTokenView is the per-token slice of the pool detail response.
type poolTokenView struct {
	Denom string `json:"denom"`
	types.TokenRecord
}

// handleGetPool returns the full live state of one pool.
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id := types.PoolID(mux.Vars(r)["id"])

	meta, err := ws.ctrl.GetPoolMeta(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}
	p, err := ws.ctrl.Pool(id)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	var tokens []poolTokenView
	for _, denom := range p.GetCurrentTokens() {
		rec, err := p.GetTokenRecord(denom)
		if err != nil {
			continue
		}
		tokens = append(tokens, poolTokenView{Denom: denom, TokenRecord: rec})
	}

	response := map[string]interface{}{
		"meta":         meta,
		"public_swap":  p.IsPublicSwap(),
		"swap_fee":     p.GetSwapFee(),
		"total_supply": p.GetTotalSupply(),
		"total_weight": p.GetTotalDenormalizedWeight(),
		"tokens":       tokens,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPoolEvents returns recent persisted events for one pool.
func (ws *WebServer) handleGetPoolEvents(w http.ResponseWriter, r *http.Request) {
	id := types.PoolID(mux.Vars(r)["id"])

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	events, err := state.GetPoolEvents(id, limit)
	if err != nil {
		webLogger.Error().Err(err).Str("poolId", string(id)).Msg("Failed to get pool events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve pool events")
		return
	}

	response := map[string]interface{}{
		"pool_id": id,
		"events":  events,
		"count":   len(events),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCategories returns every category with its token list.
func (ws *WebServer) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	var categories []types.Category
	for _, id := range ws.ctrl.CategoryIDs() {
		cat, err := ws.ctrl.GetCategory(id)
		if err != nil {
			continue
		}
		categories = append(categories, cat)
	}

	response := map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCategory returns one category by numeric ID.
func (ws *WebServer) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid category ID")
		return
	}

	cat, err := ws.ctrl.GetCategory(types.CategoryID(id))
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Category not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cat)
}

// handleGetCycles returns paginated cycle data.
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	cycles, err := state.GetRecentCycles(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetLatestCycle returns the most recent cycle.
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := state.GetLatestCycle()
	if err != nil || cycle == nil {
		webLogger.Error().Err(err).Msg("Failed to get latest cycle")
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// writeJSONResponse writes a JSON response.
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response.
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
