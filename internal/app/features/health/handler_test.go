package health_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/chipdash/internal/app/features/health"
	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type healthBody struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Backend  string `json:"backend"`
	Message  string `json:"message"`
}

func serve(t *testing.T, h *health.Handler) (*httptest.ResponseRecorder, healthBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}
	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return rec, body
}

func backendClient(t *testing.T, url string) *chipapi.Client {
	t.Helper()
	api, err := chipapi.New(url, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("chipapi.New: %v", err)
	}
	return api
}

func TestServe_BackendReachable(t *testing.T) {
	b := testutil.NewBackend(t)
	handler := health.NewHandler(nil, backendClient(t, b.URL()), zap.NewNop())

	rec, body := serve(t, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Backend != "reachable" || body.Database != "disabled" {
		t.Errorf("body: %+v", body)
	}
}

func TestServe_BackendErrorStatusStillReachable(t *testing.T) {
	b := testutil.NewBackend(t)
	handler := health.NewHandler(nil, backendClient(t, b.URL()), zap.NewNop())
	handler.ProbePath = "/users" // answers 401 without a token

	rec, body := serve(t, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Backend != "reachable" {
		t.Errorf("backend: got %q, want reachable", body.Backend)
	}
}

func TestServe_BackendDown(t *testing.T) {
	b := testutil.NewBackend(t)
	api := backendClient(t, b.URL())
	b.Server.Close()
	handler := health.NewHandler(nil, api, zap.NewNop())

	rec, body := serve(t, handler)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if body.Status != "error" || body.Backend != "unreachable" || body.Message != "Backend unavailable" {
		t.Errorf("body: %+v", body)
	}
}

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := health.NewHandler(db.Client(), nil, zap.NewNop())

	rec, body := serve(t, handler)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body.Status != "ok" || body.Database != "connected" {
		t.Errorf("body: %+v", body)
	}
}

func TestServe_DatabaseDisconnected(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// mongo.Connect is lazy; an unroutable server fails at Ping.
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("mongo.Connect: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	handler := health.NewHandler(client, nil, zap.NewNop())

	rec, body := serve(t, handler)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if body.Database != "disconnected" || body.Message != "Database unavailable" {
		t.Errorf("body: %+v", body)
	}
}
