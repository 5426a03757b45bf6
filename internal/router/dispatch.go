package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/af-corp/prompt-gateway/internal/config"
	"github.com/af-corp/prompt-gateway/internal/router/adapters"
	"github.com/af-corp/prompt-gateway/internal/types"
)

// ErrUnknownRoute is returned when no model is configured for a route.
var ErrUnknownRoute = errors.New("no model configured for route")

// SelectRoute picks the model family for a request. Image wins over audio,
// and anything else goes to the text model.
func SelectRoute(req *types.PromptRequest) types.Route {
	switch {
	case req.HasImage():
		return types.RouteVision
	case req.HasAudio():
		return types.RouteAudio
	default:
		return types.RouteText
	}
}

// BuildPrediction shapes the request into the input schema of the route's model.
func BuildPrediction(route types.Route, models *config.ModelsConfig, req *types.PromptRequest) (*adapters.PredictionRequest, error) {
	spec, ok := models.Get(route)
	if !ok || spec.Version == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}

	var input map[string]any
	switch route {
	case types.RouteText:
		input = textInput(spec, req)
	case types.RouteVision:
		input = visionInput(spec, req)
	case types.RouteAudio:
		input = audioInput(spec, req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}

	return &adapters.PredictionRequest{
		Version: spec.Version,
		Input:   input,
		Stream:  true,
	}, nil
}

// textInput wraps the prompt in the instruction template. Replicate fills the
// {prompt} placeholder.
func textInput(spec config.ModelSpec, req *types.PromptRequest) map[string]any {
	template := spec.PromptTemplate
	if template == "" {
		template = config.InstructionTemplate
	}
	input := map[string]any{
		"prompt":             req.Prompt,
		"repetition_penalty": 1,
		"prompt_template":    template,
	}
	putInt(input, "max_new_tokens", req.MaxTokens)
	putFloat(input, "temperature", req.Temperature)
	putFloat(input, "top_p", req.TopP)
	return input
}

func visionInput(spec config.ModelSpec, req *types.PromptRequest) map[string]any {
	input := map[string]any{
		"prompt": req.Prompt,
		"image":  req.Image,
	}
	putInt(input, "max_tokens", req.MaxTokens)
	putFloat(input, "temperature", req.Temperature)
	putFloat(input, "top_p", req.TopP)
	putTemplate(input, spec)
	return input
}

func audioInput(spec config.ModelSpec, req *types.PromptRequest) map[string]any {
	input := map[string]any{
		"prompt":   req.Prompt,
		"wav_path": req.Audio,
	}
	putInt(input, "max_length", req.MaxTokens)
	putFloat(input, "temperature", req.Temperature)
	putFloat(input, "top_p", req.TopP)
	putTemplate(input, spec)
	return input
}

func putInt(input map[string]any, key string, v *int) {
	if v != nil {
		input[key] = *v
	}
}

func putFloat(input map[string]any, key string, v *float64) {
	if v != nil {
		input[key] = *v
	}
}

func putTemplate(input map[string]any, spec config.ModelSpec) {
	if spec.PromptTemplate != "" {
		input["prompt_template"] = spec.PromptTemplate
	}
}

// Dispatcher selects a model for each request and creates a streaming
// prediction for it. It holds no per-request state.
type Dispatcher struct {
	provider adapters.ProviderAdapter
	models   func() *config.ModelsConfig
}

func NewDispatcher(provider adapters.ProviderAdapter, models func() *config.ModelsConfig) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		models:   models,
	}
}

// Dispatch creates exactly one prediction. Provider errors are returned
// wrapped but otherwise unchanged; there is no retry or fallback.
func (d *Dispatcher) Dispatch(ctx context.Context, req *types.PromptRequest) (*adapters.Prediction, types.Route, error) {
	route := SelectRoute(req)
	models := d.models()

	spec, _ := models.Get(route)
	slog.Info("running model",
		"request_id", req.RequestID,
		"route", route.String(),
		"model", spec.DisplayName,
		"version", spec.Version,
	)

	predReq, err := BuildPrediction(route, models, req)
	if err != nil {
		return nil, route, err
	}

	prediction, err := d.provider.CreatePrediction(ctx, predReq)
	if err != nil {
		return nil, route, fmt.Errorf("create %s prediction: %w", route, err)
	}
	return prediction, route, nil
}
