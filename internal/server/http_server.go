package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/config"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

// maxSimulations caps a single HTTP batch
const maxSimulations = 100000

type HTTPServer struct {
	mux      *http.ServeMux
	store    *BatchStore
	Executor *BatchExecutor
}

// NewHTTPServer wires the batch routes. m may be nil, then /metrics serves an empty registry.
func NewHTTPServer(store *BatchStore, executor *BatchExecutor, m *metrics.Manager) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.Handle("/metrics", promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{}))
	s.mux.HandleFunc("/v1/batches", s.handleBatches)
	s.mux.HandleFunc("/v1/batches/", s.handleBatchByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleBatches handles /v1/batches
func (s *HTTPServer) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBatch(w, r)
	case http.MethodGet:
		s.handleListBatches(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleBatchByID handles /v1/batches/{id} and /v1/batches/{id}:stop
func (s *HTTPServer) handleBatchByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "batch ID is required")
		return
	}

	if strings.HasSuffix(path, ":stop") {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopBatch(w, strings.TrimSuffix(path, ":stop"))
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleGetBatch(w, path)
}

type createBatchRequest struct {
	BatchID     string               `json:"batch_id,omitempty"`
	Request     *models.BatchRequest `json:"request"`
	CallbackURL string               `json:"callback_url,omitempty"`
}

// handleCreateBatch handles POST /v1/batches. The batch starts immediately.
func (s *HTTPServer) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var body createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if body.Request == nil {
		s.writeError(w, http.StatusBadRequest, "request is required")
		return
	}
	if err := validateBatchRequest(*body.Request); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.CallbackURL != "" {
		if err := validateCallbackURL(body.CallbackURL); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	b, err := s.store.Create(body.BatchID, *body.Request, body.CallbackURL)
	if err != nil {
		if errors.Is(err, ErrBatchExists) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	started, err := s.Executor.Start(b.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("Batch created (HTTP)", "batch_id", b.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{"batch": started})
}

// handleListBatches handles GET /v1/batches?limit=&offset=&status=
func (s *HTTPServer) handleListBatches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 50
	if parsed, err := strconv.Atoi(q.Get("limit")); err == nil && parsed > 0 {
		limit = min(parsed, 1000)
	}
	offset := 0
	if parsed, err := strconv.Atoi(q.Get("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}
	status := models.BatchStatus(strings.ToLower(q.Get("status")))

	batches := s.store.List(limit, offset, status)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"batches": batches,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(batches),
		},
	})
}

// handleGetBatch handles GET /v1/batches/{id}
func (s *HTTPServer) handleGetBatch(w http.ResponseWriter, id string) {
	b, ok := s.store.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"batch": b})
}

// handleStopBatch handles POST /v1/batches/{id}:stop
func (s *HTTPServer) handleStopBatch(w http.ResponseWriter, id string) {
	updated, err := s.Executor.Stop(id)
	if err != nil {
		switch {
		case errors.Is(err, ErrBatchNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrBatchIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrBatchTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("Batch cancelled (HTTP)", "batch_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{"batch": updated})
}

// validateBatchRequest rejects requests the runner would refuse
func validateBatchRequest(req models.BatchRequest) error {
	if req.Location == "" {
		return errors.New("location is required")
	}
	if req.Simulations <= 0 || req.Simulations > maxSimulations {
		return errors.New("simulations must be between 1 and " + strconv.Itoa(maxSimulations))
	}
	return config.ValidateStrategies(req.Strategies)
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}
