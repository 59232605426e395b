package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resonance/internal/api"
	"resonance/internal/config"
	"resonance/internal/logging"
	"resonance/internal/services"
)

const (
	maxRequestBody    = 1 << 20
	defaultScoreLimit = 50
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/users/{id}/config", s.handleConfig)
	mux.HandleFunc("PUT /api/users/{id}/config/thresholds/{indicator}", s.handleThreshold)
	mux.HandleFunc("PUT /api/users/{id}/config/weights/{indicator}/{metric}", s.handleWeight)
	mux.HandleFunc("GET /api/users/{id}/baseline", s.handleBaseline)
	mux.HandleFunc("POST /api/users/{id}/metrics", s.handleMetrics)
	mux.HandleFunc("POST /api/users/{id}/derive", s.handleDerive)
	mux.HandleFunc("POST /api/users/{id}/self-reports", s.handleSelfReport)
	mux.HandleFunc("GET /api/users/{id}/scores", s.handleScores)
	return requestIDMiddleware(authMiddleware(token, mux))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.bind == "" {
		return errors.New("paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	migrations := status.Engine.Migrations
	if migrations == nil {
		migrations = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		StorePath:    status.Engine.StorePath,
		LockFilePath: status.LockFilePath,
		Counts:       api.FromStats(status.Engine.Stats),
		Migrations:   migrations,
	})
}

func (s *apiServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	cfg, err := s.daemon.engine.ResolveConfig(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromEffectiveConfig(userID, cfg))
}

func (s *apiServer) handleThreshold(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	value, ok := s.decodeValue(w, r)
	if !ok {
		return
	}
	if err := s.daemon.engine.UpdateThreshold(r.Context(), userID, r.PathValue("indicator"), value); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.handleConfig(w, r)
}

func (s *apiServer) handleWeight(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	value, ok := s.decodeValue(w, r)
	if !ok {
		return
	}
	if err := s.daemon.engine.UpdateWeight(r.Context(), userID, r.PathValue("indicator"), r.PathValue("metric"), value); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.handleConfig(w, r)
}

func (s *apiServer) handleBaseline(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	ts, err := api.ParseTime("timestamp", query.Get("timestamp"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view, err := s.daemon.engine.Baseline(r.Context(), userID, query.Get("metric"), ts)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBaselineView(view))
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req api.MetricsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	observations, err := req.ToObservations()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	stored, err := s.daemon.engine.IngestMetrics(r.Context(), userID, observations)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.IngestResponse{Stored: stored})
}

func (s *apiServer) handleDerive(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	records, err := s.daemon.engine.DeriveScores(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScoresResponse{UserID: userID, Records: api.FromRecords(records)})
}

func (s *apiServer) handleSelfReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	var req api.SelfReportRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	report, err := req.SelfReport()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.daemon.engine.SubmitSelfReport(r.Context(), userID, report)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromSubmission(result))
}

func (s *apiServer) handleScores(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userID(w, r)
	if !ok {
		return
	}
	limit := defaultScoreLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	records, err := s.daemon.engine.ListScores(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ScoresResponse{UserID: userID, Records: api.FromRecords(records)})
}

func (s *apiServer) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, r, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func (s *apiServer) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) decodeValue(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req api.ValueRequest
	if !s.decodeBody(w, r, &req) {
		return 0, false
	}
	if req.Value == nil {
		s.writeError(w, r, http.StatusBadRequest, "value is required")
		return 0, false
	}
	return *req.Value, true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	requestID, _ := services.RequestIDFromContext(r.Context())
	s.writeJSON(w, status, api.ErrorResponse{Error: message, RequestID: requestID})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	}
	requestID, _ := services.RequestIDFromContext(r.Context())
	s.writeJSON(w, status, api.ErrorResponse{
		Error:     err.Error(),
		Kind:      services.Classification(err),
		RequestID: requestID,
	})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
