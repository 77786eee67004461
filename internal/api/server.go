package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/collector"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/dashboard"
	"github.com/matevzStinjek/distributed-trading-system/trade-dashboard/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() collector.Status
}

type Dashboard interface {
	Live(ctx context.Context, symbol string, minutes int) dashboard.View
	Historical(ctx context.Context, symbol string, minutes int) dashboard.View
	DemoLive() dashboard.View
	DemoHistorical() dashboard.View
	RecentTrades(ctx context.Context, symbol string, windowSec int) dashboard.TradesView
	TopSymbols(ctx context.Context, minutes, limit int) dashboard.ActivityView
	LiveBuySell(ctx context.Context, minutes, top int) dashboard.BuySellView
}

type IngestSource interface {
	Ingested() int64
	ResetIngested()
	LastPoll() time.Time
	Symbols() []string
	Snapshot(symbol string) (dashboard.View, bool)
}

type Server struct {
	baseCtx   context.Context
	collector Collector
	dashboard Dashboard
	ingest    IngestSource
	origins   []string
	logger    *logger.Logger
	router    *mux.Router
}

// NewServer wires the HTTP routes. Collector runs started through the API
// live until ctx is done. ingest may be nil.
func NewServer(
	ctx context.Context,
	coll Collector,
	dash Dashboard,
	ingest IngestSource,
	allowedOrigins []string,
	log *logger.Logger,
) *Server {
	s := &Server{
		baseCtx:   ctx,
		collector: coll,
		dashboard: dash,
		ingest:    ingest,
		origins:   allowedOrigins,
		logger:    log.Component("api"),
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/collector/start", s.handleCollectorStart).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/collector/stop", s.handleCollectorStop).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/collector/status", s.handleCollectorStatus).Methods(http.MethodGet)

	r.HandleFunc("/ohlcv", s.handleBucketSeries).Methods(http.MethodGet)
	r.HandleFunc("/hist_buy_sell", s.handleBucketSeries).Methods(http.MethodGet)
	r.HandleFunc("/buckets", s.handleBuckets).Methods(http.MethodGet)
	r.HandleFunc("/top_symbols", s.handleTopSymbols).Methods(http.MethodGet)
	r.HandleFunc("/live_buy_sell", s.handleLiveBuySell).Methods(http.MethodGet)
	r.HandleFunc("/live_trades", s.handleLiveTrades).Methods(http.MethodGet)

	r.HandleFunc("/ingest", s.handleIngest).Methods(http.MethodGet)
	r.HandleFunc("/ingest/reset", s.handleIngestReset).Methods(http.MethodPost)
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCollectorStart(w http.ResponseWriter, r *http.Request) {
	started := s.collector.Start(s.baseCtx)
	if started && s.ingest != nil {
		s.ingest.ResetIngested()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"started": started,
		"status":  s.collector.Status(),
	})
}

func (s *Server) handleCollectorStop(w http.ResponseWriter, r *http.Request) {
	stopped := s.collector.Stop()
	writeJSON(w, http.StatusOK, map[string]any{
		"stopped": stopped,
		"status":  s.collector.Status(),
	})
}

func (s *Server) handleCollectorStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collector.Status())
}

// handleBucketSeries serves the per-bucket series behind /ohlcv and /hist_buy_sell
func (s *Server) handleBucketSeries(w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireSymbol(w, r)
	if !ok {
		return
	}
	view := s.dashboard.Historical(r.Context(), symbol, intParam(r, "minutes", 60))
	writeJSON(w, http.StatusOK, view.Buckets)
}

func (s *Server) handleBuckets(w http.ResponseWriter, r *http.Request) {
	mode := dashboard.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = dashboard.ModeLive
	}

	var view dashboard.View
	switch mode {
	case dashboard.ModeDemoLive:
		view = s.dashboard.DemoLive()
	case dashboard.ModeDemoHistorical:
		view = s.dashboard.DemoHistorical()
	case dashboard.ModeLive, dashboard.ModeHistorical:
		symbol, ok := requireSymbol(w, r)
		if !ok {
			return
		}
		minutes := intParam(r, "minutes", 0)
		if mode == dashboard.ModeLive {
			view = s.dashboard.Live(r.Context(), symbol, minutes)
		} else {
			view = s.dashboard.Historical(r.Context(), symbol, minutes)
		}
	default:
		writeError(w, http.StatusBadRequest, "mode must be one of live|historical|demo-live|demo-historical")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTopSymbols(w http.ResponseWriter, r *http.Request) {
	view := s.dashboard.TopSymbols(r.Context(), intParam(r, "minutes", 10), intParam(r, "limit", 10))
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLiveBuySell(w http.ResponseWriter, r *http.Request) {
	view := s.dashboard.LiveBuySell(r.Context(), intParam(r, "minutes", 10), intParam(r, "top", 5))
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleLiveTrades(w http.ResponseWriter, r *http.Request) {
	symbol, ok := requireSymbol(w, r)
	if !ok {
		return
	}
	view := s.dashboard.RecentTrades(r.Context(), symbol, intParam(r, "window_sec", 60))
	writeJSON(w, http.StatusOK, view)
}

type ingestResponse struct {
	Ingested int64                     `json:"ingested"`
	LastPoll *time.Time                `json:"last_poll"`
	Views    map[string]dashboard.View `json:"views"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	resp := ingestResponse{Views: map[string]dashboard.View{}}
	if s.ingest != nil {
		resp.Ingested = s.ingest.Ingested()
		if lp := s.ingest.LastPoll(); !lp.IsZero() {
			resp.LastPoll = &lp
		}
		for _, symbol := range s.ingest.Symbols() {
			if v, ok := s.ingest.Snapshot(symbol); ok {
				resp.Views[symbol] = v
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngestReset(w http.ResponseWriter, r *http.Request) {
	if s.ingest != nil {
		s.ingest.ResetIngested()
	}
	writeJSON(w, http.StatusOK, map[string]int64{"ingested": 0})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowAll := len(s.origins) == 0 || slices.Contains(s.origins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(s.origins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request handled",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("duration", time.Since(start)))
	})
}

func requireSymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	return symbol, true
}

// intParam returns the positive integer query param key, or def
func intParam(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
