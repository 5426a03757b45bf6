package router

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/af-corp/prompt-gateway/internal/config"
)

func TestNewProviderClient(t *testing.T) {
	client := NewProviderClient(config.ReplicateConfig{Timeout: 15 * time.Second, MaxIdleConns: 7})

	if client.Timeout != 15*time.Second {
		t.Errorf("expected timeout 15s, got %v", client.Timeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConnsPerHost != 7 {
		t.Errorf("expected 7 idle conns per host, got %d", transport.MaxIdleConnsPerHost)
	}
}

func TestBuildFromConfig_RequiresToken(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, err := BuildFromConfig(cfg); !errors.Is(err, config.ErrMissingAPIToken) {
		t.Fatalf("expected ErrMissingAPIToken, got %v", err)
	}

	cfg.Replicate.APIToken = "r8_test"
	adapter, err := BuildFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if adapter.Name() != "replicate" {
		t.Errorf("expected replicate adapter, got %s", adapter.Name())
	}
}
