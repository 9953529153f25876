// Package server exposes the prediction service over HTTP: a predict
// endpoint consuming the six named passenger fields, health and model
// metadata endpoints, prediction history, a websocket event stream, and
// Prometheus metrics. The server owns the load-state handling around the
// stateless predictor core.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"titanic-predictor/internal/features"
	"titanic-predictor/internal/metrics"
	"titanic-predictor/internal/ml"
	"titanic-predictor/internal/storage"
)

// Server serves prediction requests over HTTP.
type Server struct {
	manager      *ml.Manager
	predictor    *ml.Predictor
	store        *storage.Store
	metrics      *metrics.Metrics
	hub          *Hub
	historyLimit int
	timeout      time.Duration
	server       *http.Server
}

// PredictRequest carries the six named numeric inputs. Age, sibsp, parch
// and fare may be omitted and default to 0.
type PredictRequest struct {
	features.PassengerInput
	RequestID string `json:"request_id,omitempty"`
}

// PredictResponse is the scored outcome.
type PredictResponse struct {
	RequestID    string    `json:"request_id,omitempty"`
	Probability  float64   `json:"probability"`
	Survived     bool      `json:"survived"`
	Threshold    float64   `json:"threshold"`
	ModelVersion string    `json:"model_version"`
	Latency      float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// New creates the HTTP server. store may be nil to disable history.
func New(manager *ml.Manager, predictor *ml.Predictor, store *storage.Store, m *metrics.Metrics, port, historyLimit int, timeout time.Duration) *Server {
	s := &Server{
		manager:      manager,
		predictor:    predictor,
		store:        store,
		metrics:      m,
		hub:          NewHub(m),
		historyLimit: historyLimit,
		timeout:      timeout,
	}

	mux := http.NewServeMux()
	mux.Handle("/predict", s.withTimeout(http.HandlerFunc(s.handlePredict)))
	mux.Handle("/healthz", s.withTimeout(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/model/info", s.withTimeout(http.HandlerFunc(s.handleModelInfo)))
	mux.Handle("/predictions", s.withTimeout(http.HandlerFunc(s.handlePredictions)))
	mux.HandleFunc("/ws", s.hub.handleWS)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.countRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Start begins serving HTTP requests and blocks until shutdown.
func (s *Server) Start() error {
	go s.hub.Run()
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and the event stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.server.Shutdown(ctx)
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// withTimeout caps each request at the configured request timeout. The
// websocket endpoint stays outside it: TimeoutHandler does not support
// connection hijacking.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.timeout <= 0 {
		return next
	}
	return http.TimeoutHandler(next, s.timeout, "request timed out")
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics != nil {
			s.metrics.RequestsTotal.Inc()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if err := req.PassengerInput.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pred, err := s.predictor.Predict(req.PassengerInput)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	info := s.manager.Info()

	resp := PredictResponse{
		RequestID:    req.RequestID,
		Probability:  pred.Probability,
		Survived:     pred.Survived,
		Threshold:    ml.SurvivalThreshold,
		ModelVersion: info.Version,
		Latency:      float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:    time.Now().UTC(),
	}

	rec := storage.PredictionRecord{
		ID:           resp.RequestID,
		Input:        req.PassengerInput,
		Probability:  pred.Probability,
		Survived:     pred.Survived,
		ModelVersion: info.Version,
		Ts:           resp.Timestamp,
	}
	if s.store != nil {
		if err := s.store.StorePrediction(rec); err != nil {
			log.Warn().Err(err).Msg("failed to persist prediction")
			if s.metrics != nil {
				s.metrics.ErrorsTotal.Inc()
			}
		}
	}
	s.hub.Broadcast(rec)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	if s.metrics != nil {
		s.metrics.ErrorsTotal.Inc()
	}

	var loadErr *ml.LoadError
	switch {
	case errors.Is(err, ml.ErrNotReady), errors.As(err, &loadErr):
		log.Warn().Err(err).Msg("prediction rejected, model unavailable")
		http.Error(w, fmt.Sprintf("model unavailable: %v", err), http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Msg("prediction failed")
		http.Error(w, fmt.Sprintf("prediction failed: %v", err), http.StatusInternalServerError)
	}
}

type healthResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state, loadErr := s.manager.State()

	resp := healthResponse{State: state.String()}
	status := http.StatusOK
	if state != ml.StateReady {
		status = http.StatusServiceUnavailable
	}
	if loadErr != nil {
		resp.Error = loadErr.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info := s.manager.Info()
	state, _ := s.manager.State()

	payload := map[string]interface{}{
		"state":        state.String(),
		"source":       info.Source,
		"version":      info.Version,
		"loaded_at":    info.LoadedAt,
		"input_name":   info.InputName,
		"output_name":  info.OutputName,
		"features":     features.Names,
		"training_min": features.TrainMin,
		"training_max": features.TrainMax,
		"threshold":    ml.SurvivalThreshold,
		"input_shape":  []int{1, features.VectorSize},
		"output_shape": []int{1, 1},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "prediction history disabled", http.StatusNotFound)
		return
	}

	limit := s.historyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil && n < limit {
			limit = n
		}
	}

	records, err := s.store.GetRecent(limit)
	if err != nil {
		log.Error().Err(err).Msg("history query failed")
		http.Error(w, "history query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}
