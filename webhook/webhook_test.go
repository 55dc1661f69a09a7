package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeliver_Success(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := &Event{Type: "evaluation.completed", EvaluationID: "eval-1", RecordCount: 3}
	if err := Deliver(context.Background(), srv.URL, "", event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if received.EvaluationID != "eval-1" {
		t.Errorf("server did not receive expected payload: %+v", received)
	}
}

func TestDeliver_SignsWhenSecretSet(t *testing.T) {
	var sig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig = r.Header.Get("X-DRWeb-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := &Event{Type: "evaluation.completed"}
	if err := Deliver(context.Background(), srv.URL, "secret", event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig == "" {
		t.Error("expected a signature header when a secret is configured")
	}
}

func TestDeliver_ErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Deliver(context.Background(), srv.URL, "", &Event{Type: "evaluation.failed"})
	if err == nil {
		t.Error("expected an error for a 500 response")
	}
}
