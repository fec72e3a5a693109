package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/logger"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/models"
)

func newTestHTTPServer(runner BatchRunner, m *metrics.Manager) (*HTTPServer, *BatchStore) {
	store := NewBatchStore()
	exec := NewBatchExecutor(store, runner, WithExecutorLogger(logger.Discard()), WithExecutorMetrics(m))
	return NewHTTPServer(store, exec, m), store
}

func doRequest(srv *HTTPServer, method, path, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBatch(t *testing.T, rr *httptest.ResponseRecorder) models.Batch {
	t.Helper()
	var body struct {
		Batch models.Batch `json:"batch"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid json: %v", err)
	}
	return body.Batch
}

func TestHTTPServerHealthz(t *testing.T) {
	srv, _ := newTestHTTPServer(newBlockingRunner(), nil)
	rr := doRequest(srv, http.MethodGet, "/healthz", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("Expected status ok, got %v", body["status"])
	}
}

func TestHTTPServerCreateAndGetBatch(t *testing.T) {
	m := metrics.NewManager()
	srv, _ := newTestHTTPServer(newTestRunner(m), m)

	rr := doRequest(srv, http.MethodPost, "/v1/batches",
		`{"batch_id":"b-1","request":{"season":2019,"location":"Testville","simulations":3,"test_mode":true}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeBatch(t, rr)
	if created.ID != "b-1" {
		t.Fatalf("Expected batch id b-1, got %q", created.ID)
	}

	final := waitForBatch(t, srv.Executor, "b-1")
	if final.Status != models.BatchStatusCompleted {
		t.Fatalf("Expected completed, got %s", final.Status)
	}

	rr = doRequest(srv, http.MethodGet, "/v1/batches/b-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	got := decodeBatch(t, rr)
	if got.Result == nil || got.Result.Trials != 3 {
		t.Fatalf("Expected result with 3 trials, got %+v", got.Result)
	}

	rr = doRequest(srv, http.MethodPost, "/v1/batches",
		`{"batch_id":"b-1","request":{"season":2019,"location":"Testville","simulations":3}}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate id, got %d", rr.Code)
	}

	rr = doRequest(srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected metrics status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `racesim_batches_total{status="completed"} 1`) {
		t.Errorf("Expected completed batch counter in metrics output")
	}
}

func TestHTTPServerCreateBatchValidation(t *testing.T) {
	srv, _ := newTestHTTPServer(newBlockingRunner(), nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "missing request", body: `{}`},
		{name: "missing location", body: `{"request":{"season":2019,"simulations":3}}`},
		{name: "zero simulations", body: `{"request":{"season":2019,"location":"Testville"}}`},
		{name: "invalid strategy", body: `{"request":{"season":2019,"location":"Testville","simulations":1,"strategies":{"Ann Able":{"starting_compound":"A3","stops":[{"compound":"A2","pit_lap":0}]}}}}`},
		{name: "bad callback", body: `{"request":{"season":2019,"location":"Testville","simulations":1},"callback_url":"ftp://x/cb"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(srv, http.MethodPost, "/v1/batches", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("Expected status 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestHTTPServerStopAndList(t *testing.T) {
	runner := newBlockingRunner()
	srv, _ := newTestHTTPServer(runner, nil)

	rr := doRequest(srv, http.MethodPost, "/v1/batches",
		`{"batch_id":"b-1","request":{"season":2019,"location":"Testville","simulations":3}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	<-runner.started

	rr = doRequest(srv, http.MethodPost, "/v1/batches/b-1:stop", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if b := decodeBatch(t, rr); b.Status != models.BatchStatusCancelled {
		t.Fatalf("Expected cancelled, got %s", b.Status)
	}

	rr = doRequest(srv, http.MethodPost, "/v1/batches/b-1:stop", "")
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 on second stop, got %d", rr.Code)
	}
	rr = doRequest(srv, http.MethodPost, "/v1/batches/missing:stop", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
	rr = doRequest(srv, http.MethodGet, "/v1/batches/b-1:stop", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}

	rr = doRequest(srv, http.MethodGet, "/v1/batches?status=cancelled&limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var list struct {
		Batches    []models.Batch `json:"batches"`
		Pagination struct {
			Count int `json:"count"`
		} `json:"pagination"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("Invalid json: %v", err)
	}
	if list.Pagination.Count != 1 || len(list.Batches) != 1 || list.Batches[0].ID != "b-1" {
		t.Fatalf("Expected one cancelled batch, got %+v", list)
	}

	rr = doRequest(srv, http.MethodGet, "/v1/batches/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
	rr = doRequest(srv, http.MethodDelete, "/v1/batches", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}
}
