package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/af-corp/prompt-gateway/internal/config"
	"github.com/af-corp/prompt-gateway/internal/httputil"
	"github.com/af-corp/prompt-gateway/internal/router"
	"github.com/af-corp/prompt-gateway/internal/router/adapters"
	"github.com/af-corp/prompt-gateway/internal/telemetry"
	"github.com/af-corp/prompt-gateway/internal/types"
)

// Dispatcher creates a streaming prediction for a prompt request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *types.PromptRequest) (*adapters.Prediction, types.Route, error)
}

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	dispatcher Dispatcher
	streams    adapters.StreamAdapter
	modelsCfg  func() *config.ModelsConfig
	metrics    *telemetry.Metrics
}

func NewHandler(dispatcher Dispatcher, streams adapters.StreamAdapter, modelsCfg func() *config.ModelsConfig, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		streams:    streams,
		modelsCfg:  modelsCfg,
		metrics:    metrics,
	}
}

// Generate handles POST /api
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req types.PromptRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	req.RequestID = reqID
	req.ReceivedAt = receivedAt

	prediction, route, err := h.dispatcher.Dispatch(r.Context(), &req)
	if err != nil {
		slog.Error("prediction request failed", "request_id", reqID, "route", route.String(), "error", err)
		h.recordDispatch(route, telemetry.StatusUpstreamError)
		writeDispatchError(w, reqID, err)
		return
	}

	chunks, err := h.streams.Stream(r.Context(), prediction)
	if err != nil {
		slog.Error("failed to open prediction stream", "request_id", reqID, "prediction_id", prediction.ID, "error", err)
		h.recordDispatch(route, telemetry.StatusUpstreamError)
		writeDispatchError(w, reqID, err)
		return
	}

	slog.Info("streaming started",
		"request_id", reqID,
		"route", route.String(),
		"prediction_id", prediction.ID,
		"version", prediction.Version,
	)

	res := streamText(w, reqID, chunks)
	totalDuration := time.Since(receivedAt)

	status := telemetry.StatusOK
	if res.err != nil {
		status = telemetry.StatusStreamError
	}
	h.recordDispatch(route, status)
	if h.metrics != nil {
		labels := telemetry.StreamLabels{
			Route:      route.String(),
			Chunks:     res.chunks,
			DurationMs: float64(totalDuration.Milliseconds()),
		}
		if res.chunks > 0 {
			labels.FirstChunkMs = float64(res.firstChunkAt.Sub(receivedAt).Milliseconds())
		}
		h.metrics.RecordStream(labels)
	}

	slog.Info("request completed",
		"request_id", reqID,
		"route", route.String(),
		"prediction_id", prediction.ID,
		"chunks", res.chunks,
		"duration_ms", totalDuration.Milliseconds(),
		"stream_error", res.err != nil,
	)

	// Abort the connection so the client sees a truncated stream rather than a clean end.
	if res.err != nil && res.started && r.Context().Err() == nil {
		panic(http.ErrAbortHandler)
	}
}

// ListModels handles GET /api/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	modelsCfg := h.modelsCfg()

	models := []modelObject{}
	for _, route := range types.AllRoutes {
		spec, ok := modelsCfg.Get(route)
		if !ok {
			continue
		}
		models = append(models, modelObject{
			Route:       route.String(),
			DisplayName: spec.DisplayName,
			Version:     spec.Version,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(modelListResponse{
		Object: "list",
		Data:   models,
	})
}

func (h *Handler) recordDispatch(route types.Route, status string) {
	if h.metrics != nil {
		h.metrics.RecordDispatch(route.String(), status)
	}
}

// writeDispatchError reports a failure that happened before any output was streamed.
func writeDispatchError(w http.ResponseWriter, reqID string, err error) {
	var perr *adapters.ProviderError
	switch {
	case errors.As(err, &perr):
		httputil.WriteUpstreamError(w, reqID, perr.Error())
	case errors.Is(err, router.ErrUnknownRoute):
		httputil.WriteServiceUnavailableError(w, reqID, err.Error())
	case errors.Is(err, adapters.ErrStreamingUnsupported):
		httputil.WriteUpstreamError(w, reqID, err.Error())
	default:
		httputil.WriteUpstreamError(w, reqID, "Provider request failed: "+err.Error())
	}
}

type modelObject struct {
	Route       string `json:"route"`
	DisplayName string `json:"display_name"`
	Version     string `json:"version"`
}

type modelListResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}
