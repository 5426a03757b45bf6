package router

import (
	"net/http"
	"time"

	"github.com/af-corp/prompt-gateway/internal/config"
	"github.com/af-corp/prompt-gateway/internal/router/adapters"
)

// NewProviderClient builds the process-wide HTTP client used for every
// call to the provider. A zero timeout leaves requests without a deadline.
func NewProviderClient(cfg config.ReplicateConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConns,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// BuildFromConfig builds the Replicate adapter from the gateway config.
func BuildFromConfig(cfg *config.Config) (*adapters.ReplicateAdapter, error) {
	return adapters.NewReplicateAdapter(cfg.Replicate, NewProviderClient(cfg.Replicate))
}
