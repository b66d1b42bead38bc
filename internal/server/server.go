package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"VaultLedger/internal/ingestion"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/persistence"
	"VaultLedger/internal/projection"
	"VaultLedger/internal/query"
)

// Server hosts the gRPC endpoint (health + reflection) and the HTTP/JSON
// API. Queries read from Postgres projections; admin injection feeds the
// same event channel as NATS ingestion.
type Server struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	grpcAddr   string
	httpAddr   string
	deps       *Deps
	log        zerolog.Logger
}

// Deps holds all dependencies needed by the API handlers.
type Deps struct {
	DB            *sql.DB
	QueryService  *query.QueryService
	AdminIngest   *ingestion.AdminIngestService
	SnapshotMgr   *persistence.SnapshotManager
	StartTime     time.Time
	HealthChecker *observability.HealthChecker
}

func New(grpcAddr, httpAddr string, deps *Deps) *Server {
	grpcServer := grpc.NewServer()

	// Health + reflection; the typed API surface is HTTP/JSON.
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	return &Server{
		grpcServer: grpcServer,
		grpcAddr:   grpcAddr,
		httpAddr:   httpAddr,
		deps:       deps,
		log:        observability.NewLogger("server"),
	}
}

// StartGRPC starts the gRPC server (blocking).
func (s *Server) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.grpcAddr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTP starts the HTTP/JSON API (blocking).
func (s *Server) StartHTTP(ctx context.Context) error {
	mux := runtime.NewServeMux()

	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{"GET", "/v1/markets/{market}/vault", s.handleVaultSummary},
		{"GET", "/v1/markets/{market}/instruments", s.handleInstruments},
		{"GET", "/v1/markets/{market}/instruments/{ticker}/rates", s.handleRateHistory},
		{"GET", "/v1/events", s.handleEvents},
		{"GET", "/v1/integrity", s.handleVerifyIntegrity},
		{"GET", "/v1/status", s.handleStatus},
		{"POST", "/v1/admin/prices", s.handleInjectPrice},
		{"POST", "/v1/admin/fees/collect", s.handleInjectFeeCollection},
		{"POST", "/v1/admin/impact", s.handleInjectImpactDelta},
		{"POST", "/v1/admin/projections/rebuild", s.handleRebuildProjections},
	}

	for _, r := range routes {
		if err := mux.HandlePath(r.method, r.pattern, r.handler); err != nil {
			return fmt.Errorf("register %s %s: %w", r.method, r.pattern, err)
		}
	}

	httpMux := http.NewServeMux()
	if hc := s.deps.HealthChecker; hc != nil {
		httpMux.HandleFunc("/healthz", hc.LivenessHandler)
		httpMux.HandleFunc("/readyz", hc.ReadinessHandler)
	}
	httpMux.Handle("/", mux)

	s.httpServer = &http.Server{
		Addr:    s.httpAddr,
		Handler: httpMux,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("HTTP server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.httpAddr).Msg("HTTP API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// --- Query handlers ---

func (s *Server) handleVaultSummary(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	summary, err := s.deps.QueryService.GetVaultSummary(r.Context(), pathParams["market"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	instruments, err := s.deps.QueryService.GetInstruments(r.Context(), pathParams["market"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"instruments": instruments})
}

func (s *Server) handleRateHistory(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	limit := parseLimit(r, 50, 500)
	before := parseCursor(r)

	history, err := s.deps.QueryService.GetRateHistory(
		r.Context(), pathParams["market"], pathParams["ticker"], limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rates": history})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	limit := parseLimit(r, 100, 1000)
	before := parseCursor(r)

	var market *string
	if m := r.URL.Query().Get("market"); m != "" {
		market = &m
	}

	events, err := s.deps.QueryService.GetEvents(r.Context(), market, limit, before)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	report, err := s.deps.QueryService.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	latest, err := s.deps.SnapshotMgr.GetLatestSequence(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	watermark, err := s.deps.QueryService.GetWatermark(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_sequence":        latest,
		"projection_watermark": watermark,
		"uptime_seconds":       int64(time.Since(s.deps.StartTime).Seconds()),
	})
}

// --- Admin handlers ---

type injectPriceRequest struct {
	Market string `json:"market"`
	Ticker string `json:"ticker"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
}

func (s *Server) handleInjectPrice(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req injectPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	bid, ok := new(big.Int).SetString(req.Bid, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed bid: %q", req.Bid))
		return
	}
	ask, ok := new(big.Int).SetString(req.Ask, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed ask: %q", req.Ask))
		return
	}

	if err := s.deps.AdminIngest.InjectPriceUpdate(r.Context(), req.Market, req.Ticker, bid, ask); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type injectFeeCollectionRequest struct {
	Market    string `json:"market"`
	IsLong    bool   `json:"is_long"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleInjectFeeCollection(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req injectFeeCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.deps.AdminIngest.InjectFeeCollection(r.Context(), req.Market, req.IsLong, req.Recipient); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

type injectImpactDeltaRequest struct {
	Market   string `json:"market"`
	Ticker   string `json:"ticker"`
	DeltaUsd string `json:"delta_usd"`
}

func (s *Server) handleInjectImpactDelta(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req injectImpactDeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	delta, ok := new(big.Int).SetString(req.DeltaUsd, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed delta_usd: %q", req.DeltaUsd))
		return
	}

	if err := s.deps.AdminIngest.InjectImpactPoolDelta(r.Context(), req.Market, req.Ticker, delta); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleRebuildProjections(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if err := projection.RebuildProjections(r.Context(), s.deps.DB); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": true})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func parseCursor(r *http.Request) *int64 {
	if raw := r.URL.Query().Get("before"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 {
			return &v
		}
	}
	return nil
}
