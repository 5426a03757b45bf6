package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/af-corp/prompt-gateway/internal/config"
)

// ReplicateAdapter talks to the Replicate predictions API and reads its
// server-sent event streams.
type ReplicateAdapter struct {
	cfg    config.ReplicateConfig
	client *http.Client
}

// NewReplicateAdapter fails when no API token is configured, so a gateway
// without credentials never gets as far as serving.
func NewReplicateAdapter(cfg config.ReplicateConfig, client *http.Client) (*ReplicateAdapter, error) {
	if cfg.APIToken == "" {
		return nil, config.ErrMissingAPIToken
	}
	if client == nil {
		client = http.DefaultClient
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ReplicateAdapter{cfg: cfg, client: client}, nil
}

func (a *ReplicateAdapter) Name() string { return "replicate" }

func (a *ReplicateAdapter) CreatePrediction(ctx context.Context, req *PredictionRequest) (*Prediction, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal replicate request: %w", err)
	}

	url := a.cfg.BaseURL + "/predictions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	a.setHeaders(httpReq)

	resp, err := a.SendRequest(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send replicate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read replicate response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, a.statusError(resp.StatusCode, body)
	}

	var prediction Prediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return nil, fmt.Errorf("unmarshal replicate prediction: %w", err)
	}
	if prediction.URLs.Stream == "" {
		return nil, fmt.Errorf("prediction %s: %w", prediction.ID, ErrStreamingUnsupported)
	}
	return &prediction, nil
}

func (a *ReplicateAdapter) SendRequest(req *http.Request) (*http.Response, error) {
	return a.client.Do(req)
}

// Stream opens the prediction's event stream and forwards output events as chunks.
func (a *ReplicateAdapter) Stream(ctx context.Context, prediction *Prediction) (<-chan Chunk, error) {
	if prediction == nil || prediction.URLs.Stream == "" {
		return nil, ErrStreamingUnsupported
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, prediction.URLs.Stream, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-store")
	a.setHeaders(httpReq)

	resp, err := a.SendRequest(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open replicate stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, a.statusError(resp.StatusCode, body)
	}

	chunks := make(chan Chunk)
	go a.readEvents(ctx, prediction.ID, resp.Body, chunks)
	return chunks, nil
}

type sseEvent struct {
	name string
	id   string
	data []string
}

func (e *sseEvent) empty() bool {
	return e.name == "" && e.id == "" && e.data == nil
}

func (a *ReplicateAdapter) readEvents(ctx context.Context, predictionID string, body io.ReadCloser, out chan<- Chunk) {
	defer close(out)
	defer body.Close()

	send := func(c Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	// Increase scanner buffer for large chunks
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev sseEvent
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if ev.empty() {
				continue
			}
			chunk, done := a.handleEvent(predictionID, ev)
			ev = sseEvent{}
			if chunk != nil && !send(*chunk) {
				return
			}
			if done {
				return
			}
			continue
		}

		// Comment lines are keep-alives
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.name = value
		case "id":
			ev.id = value
		case "data":
			ev.data = append(ev.data, value)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() == nil {
			send(Chunk{Err: fmt.Errorf("read replicate stream: %w", err)})
		}
		return
	}

	// Stream closed without a trailing blank line
	if !ev.empty() {
		if chunk, _ := a.handleEvent(predictionID, ev); chunk != nil {
			send(*chunk)
		}
	}
}

// handleEvent maps one SSE event to an optional chunk and reports whether the
// stream is finished.
func (a *ReplicateAdapter) handleEvent(predictionID string, ev sseEvent) (*Chunk, bool) {
	data := strings.Join(ev.data, "\n")

	switch ev.name {
	case "output":
		if data == "" {
			return nil, false
		}
		return &Chunk{Text: data}, false
	case "error":
		return &Chunk{Err: &ProviderError{Provider: a.Name(), Message: errorDetail([]byte(data))}}, true
	case "done":
		var payload struct {
			Reason string `json:"reason"`
		}
		if json.Unmarshal([]byte(data), &payload) == nil && payload.Reason != "" {
			slog.Info("prediction stream ended", "prediction_id", predictionID, "reason", payload.Reason)
		}
		return nil, true
	default:
		return nil, false
	}
}

func (a *ReplicateAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIToken)
	for k, v := range a.cfg.Headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
}

func (a *ReplicateAdapter) statusError(status int, body []byte) error {
	return &ProviderError{
		Provider:   a.Name(),
		StatusCode: status,
		Message:    errorDetail(body),
	}
}

// errorDetail extracts the human-readable message from a Replicate error payload.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Detail != "" {
			return payload.Detail
		}
		if payload.Title != "" {
			return payload.Title
		}
	}
	return strings.TrimSpace(string(body))
}
