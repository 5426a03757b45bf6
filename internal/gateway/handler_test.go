package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/af-corp/prompt-gateway/internal/config"
	"github.com/af-corp/prompt-gateway/internal/httputil"
	"github.com/af-corp/prompt-gateway/internal/router"
	"github.com/af-corp/prompt-gateway/internal/router/adapters"
	"github.com/af-corp/prompt-gateway/internal/telemetry"
	"github.com/af-corp/prompt-gateway/internal/types"
)

// fakeReplicate serves the predictions API and one SSE stream per prediction.
type fakeReplicate struct {
	server      *httptest.Server
	mu          sync.Mutex
	created     []adapters.PredictionRequest
	createCalls atomic.Int32
	createCode  int
	events      string
}

func newFakeReplicate(t *testing.T, events string) *fakeReplicate {
	t.Helper()
	f := &fakeReplicate{createCode: http.StatusCreated, events: events}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			f.createCalls.Add(1)
			var body adapters.PredictionRequest
			json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.created = append(f.created, body)
			f.mu.Unlock()

			if f.createCode != http.StatusCreated {
				w.WriteHeader(f.createCode)
				fmt.Fprint(w, `{"detail":"Prediction failed upstream"}`)
				return
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"p1","version":%q,"status":"starting","urls":{"stream":"%s/stream/p1"}}`, body.Version, f.server.URL)
		case r.Method == http.MethodGet && r.URL.Path == "/stream/p1":
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, f.events)
			w.(http.Flusher).Flush()
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeReplicate) lastCreated(t *testing.T) adapters.PredictionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.created) == 0 {
		t.Fatal("no prediction created")
	}
	return f.created[len(f.created)-1]
}

func newTestHandler(t *testing.T, f *fakeReplicate, metrics *telemetry.Metrics) *Handler {
	t.Helper()
	adapter, err := adapters.NewReplicateAdapter(config.ReplicateConfig{
		APIToken: "r8_test",
		BaseURL:  f.server.URL + "/v1",
	}, f.server.Client())
	if err != nil {
		t.Fatal(err)
	}
	models := config.DefaultModels()
	modelsFn := func() *config.ModelsConfig { return models }
	return NewHandler(router.NewDispatcher(adapter, modelsFn), adapter, modelsFn, metrics)
}

func TestGenerate_StreamsText(t *testing.T) {
	f := newFakeReplicate(t, "event: output\ndata: Hello\n\nevent: output\ndata:  there\n\nevent: done\ndata: {}\n\n")
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	h := newTestHandler(t, f, metrics)

	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"prompt":"hello","maxTokens":50,"temperature":0.7,"topP":0.9}`))
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req_1")
	h.Generate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "Hello there" {
		t.Errorf("expected streamed text, got %q", got)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected text/plain, got %s", w.Header().Get("Content-Type"))
	}

	sent := f.lastCreated(t)
	if !sent.Stream {
		t.Error("expected stream=true upstream")
	}
	if sent.Version != "0521a0090543fea1a687a871870e8f475d6581a3e6e284e32a2579cfb4433ecf" {
		t.Errorf("unexpected version %s", sent.Version)
	}
	// JSON numbers decode as float64
	if sent.Input["max_new_tokens"] != float64(50) || sent.Input["repetition_penalty"] != float64(1) {
		t.Errorf("unexpected text input: %v", sent.Input)
	}
	if sent.Input["temperature"] != 0.7 || sent.Input["top_p"] != 0.9 {
		t.Errorf("unexpected sampling input: %v", sent.Input)
	}
	if sent.Input["prompt_template"] != config.InstructionTemplate {
		t.Errorf("expected instruction template, got %v", sent.Input["prompt_template"])
	}

	counter, _ := metrics.DispatchTotal.GetMetricWithLabelValues("text", telemetry.StatusOK)
	var m dto.Metric
	counter.Write(&m)
	if *m.Counter.Value != 1 {
		t.Errorf("expected 1 ok dispatch, got %v", *m.Counter.Value)
	}
}

func TestGenerate_RoutesByField(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		version string
		field   string
		value   any
	}{
		{
			name:    "vision",
			body:    `{"prompt":"describe","image":"https://x/img.png","maxTokens":20}`,
			version: "6bc1c7bb0d2a34e413301fee8f7cc728d2d4e75bfab186aa995f63292bda92fc",
			field:   "max_tokens",
			value:   float64(20),
		},
		{
			name:    "audio",
			body:    `{"prompt":"transcribe","audio":"https://x/a.wav","maxTokens":30}`,
			version: "ad1d3f9d2bd683628242b68d890bef7f7bd97f738a7c2ccbf1743a594c723d83",
			field:   "wav_path",
			value:   "https://x/a.wav",
		},
		{
			name:    "image beats audio",
			body:    `{"prompt":"both","image":"https://x/img.png","audio":"https://x/a.wav"}`,
			version: "6bc1c7bb0d2a34e413301fee8f7cc728d2d4e75bfab186aa995f63292bda92fc",
			field:   "image",
			value:   "https://x/img.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeReplicate(t, "event: output\ndata: ok\n\nevent: done\ndata: {}\n\n")
			h := newTestHandler(t, f, nil)

			w := httptest.NewRecorder()
			h.Generate(w, httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(tt.body)))

			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			sent := f.lastCreated(t)
			if sent.Version != tt.version {
				t.Errorf("expected version %s, got %s", tt.version, sent.Version)
			}
			if sent.Input[tt.field] != tt.value {
				t.Errorf("expected %s=%v, got %v", tt.field, tt.value, sent.Input[tt.field])
			}
		})
	}
}

func TestGenerate_InvalidJSON(t *testing.T) {
	f := newFakeReplicate(t, "")
	h := newTestHandler(t, f, nil)

	w := httptest.NewRecorder()
	h.Generate(w, httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"prompt":`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if f.createCalls.Load() != 0 {
		t.Error("provider should not be called for invalid JSON")
	}
}

func TestGenerate_ProviderErrorNoRetry(t *testing.T) {
	f := newFakeReplicate(t, "")
	f.createCode = http.StatusInternalServerError
	h := newTestHandler(t, f, nil)

	w := httptest.NewRecorder()
	h.Generate(w, httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"prompt":"hello"}`)))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var resp httputil.APIError
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.Error.Message, "Prediction failed upstream") {
		t.Errorf("expected provider message in error, got %q", resp.Error.Message)
	}
	if n := f.createCalls.Load(); n != 1 {
		t.Errorf("expected exactly 1 create call, got %d", n)
	}
}

func TestGenerate_MidStreamErrorAbortsResponse(t *testing.T) {
	f := newFakeReplicate(t, "event: output\ndata: partial\n\nevent: error\ndata: {\"detail\":\"model crashed\"}\n\n")
	h := newTestHandler(t, f, nil)

	server := httptest.NewServer(http.HandlerFunc(h.Generate))
	defer server.Close()

	resp, err := http.Post(server.URL, "application/json", strings.NewReader(`{"prompt":"hello"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 headers before stream, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Error("expected truncated stream to surface a read error")
	}
	if string(body) != "partial" {
		t.Errorf("expected partial output before abort, got %q", body)
	}
}

// stubDispatcher lets handler tests control the dispatch result directly.
type stubDispatcher struct {
	err error
}

func (s *stubDispatcher) Dispatch(_ context.Context, req *types.PromptRequest) (*adapters.Prediction, types.Route, error) {
	return nil, router.SelectRoute(req), s.err
}

func TestGenerate_UnconfiguredRoute(t *testing.T) {
	h := NewHandler(&stubDispatcher{err: fmt.Errorf("%w: audio", router.ErrUnknownRoute)}, nil, nil, nil)

	w := httptest.NewRecorder()
	h.Generate(w, httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(`{"audio":"https://x/a.wav"}`)))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestListModels(t *testing.T) {
	models := config.DefaultModels()
	h := NewHandler(nil, nil, func() *config.ModelsConfig { return models }, nil)

	w := httptest.NewRecorder()
	h.ListModels(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	var resp modelListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp.Data) != 3 {
		t.Fatalf("expected 3 models, got %d", len(resp.Data))
	}
	if resp.Data[0].Route != "vision" || resp.Data[2].Route != "text" {
		t.Errorf("expected priority order, got %+v", resp.Data)
	}
}
