package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestBatchRouter(h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/query/batch", h)
	return r
}

func TestBatch_EvaluatesEachStartURL(t *testing.T) {
	upstreamA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>a</h1></body></html>`))
	}))
	defer upstreamA.Close()
	upstreamB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>b</h1></body></html>`))
	}))
	defer upstreamB.Close()

	ev := newTestEvaluator()
	router := newTestBatchRouter(Batch(ev, nil))

	body := `{"start_urls": ["` + upstreamA.URL + `", "` + upstreamB.URL + `"], "query": {"start_url": "placeholder", "steps": [{"xpath": "//h1", "name": "heading"}]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Results []struct {
			Success bool `json:"success"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}
	for i, r := range resp.Results {
		if !r.Success {
			t.Fatalf("result %d: expected success", i)
		}
	}
}

func TestBatch_EmptyStartURLsReturns400(t *testing.T) {
	router := newTestBatchRouter(Batch(newTestEvaluator(), nil))

	body := `{"start_urls": [], "query": {"start_url": "placeholder", "steps": []}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/batch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
