package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrStreamingUnsupported is returned when a prediction comes back without a stream URL.
var ErrStreamingUnsupported = errors.New("prediction does not support streaming")

// ProviderAdapter creates predictions on a hosted inference provider.
type ProviderAdapter interface {
	Name() string
	CreatePrediction(ctx context.Context, req *PredictionRequest) (*Prediction, error)
	// SendRequest sends an HTTP request using the provider's configured client.
	SendRequest(req *http.Request) (*http.Response, error)
}

// StreamAdapter converts a provider's prediction stream into output chunks.
// The channel is closed when the stream ends; a chunk carrying Err is always last.
type StreamAdapter interface {
	Stream(ctx context.Context, prediction *Prediction) (<-chan Chunk, error)
}

type Chunk struct {
	Text string
	Err  error
}

// PredictionRequest is the body of a create-prediction call.
type PredictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
	Stream  bool           `json:"stream"`
}

// Prediction is the provider's handle for a running inference job.
type Prediction struct {
	ID        string         `json:"id"`
	Model     string         `json:"model,omitempty"`
	Version   string         `json:"version"`
	Status    string         `json:"status"`
	URLs      PredictionURLs `json:"urls"`
	Error     any            `json:"error,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
}

type PredictionURLs struct {
	Get    string `json:"get"`
	Cancel string `json:"cancel"`
	Stream string `json:"stream"`
}

// ProviderError is an error reported by the provider, either as a non-2xx
// response (StatusCode set) or as an error event mid-stream.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s stream error: %s", e.Provider, e.Message)
}
