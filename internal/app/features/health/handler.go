package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/chipdash/internal/app/system/chipapi"
	"github.com/dalemusser/chipdash/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// DefaultProbePath is requested to check that the backend answers.
const DefaultProbePath = "/states"

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client    *mongo.Client
	API       *chipapi.Client
	ProbePath string
	Log       *zap.Logger
}

// NewHandler constructs a health Handler. Either dependency may be nil, in
// which case it is reported as "disabled".
func NewHandler(client *mongo.Client, api *chipapi.Client, logger *zap.Logger) *Handler {
	return &Handler{
		Client:    client,
		API:       api,
		ProbePath: DefaultProbePath,
		Log:       logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Backend  string `json:"backend"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "backend":"reachable" }
//
// When either check fails: 503 with "status":"error" and the first failure
// in "message"/"error".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "disabled",
		Backend:  "disabled",
	}
	fail := func(msg string, err error) {
		if resp.Status == "error" {
			return
		}
		resp.Status = "error"
		resp.Message = msg
		resp.Error = err.Error()
	}

	if h.Client != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
		err := h.Client.Ping(ctx, readpref.Primary())
		cancel()
		if err != nil {
			h.Log.Error("health-check: mongo ping failed", zap.Error(err))
			resp.Database = "disconnected"
			fail("Database unavailable", err)
		} else {
			resp.Database = "connected"
		}
	}

	if h.API != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
		err := h.API.Get(ctx, h.ProbePath, nil, nil)
		cancel()
		var ne *chipapi.NetworkError
		if errors.As(err, &ne) {
			h.Log.Error("health-check: backend unreachable", zap.Error(err))
			resp.Backend = "unreachable"
			fail("Backend unavailable", err)
		} else {
			// Any HTTP answer, even an error status, means the backend is up.
			resp.Backend = "reachable"
		}
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
