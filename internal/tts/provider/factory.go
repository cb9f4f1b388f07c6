package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultFactory is the default provider factory
type DefaultFactory struct{}

// NewFactory creates a new provider factory
func NewFactory() *DefaultFactory {
	return &DefaultFactory{}
}

// CreateProvider creates a provider instance by name
func (f *DefaultFactory) CreateProvider(ctx context.Context, providerName string, config map[string]interface{}) (Provider, error) {
	if config == nil {
		config = make(map[string]interface{})
	}

	switch providerName {
	case "pindo":
		if _, exists := config["endpoint"]; !exists {
			if endpoint := os.Getenv("PINDO_TTS_ENDPOINT"); endpoint != "" {
				config["endpoint"] = endpoint
			}
		}
		return PindoProviderFromConfig(config)
	case "polly":
		if _, exists := config["region"]; !exists {
			if region := os.Getenv("AWS_REGION"); region != "" {
				config["region"] = region
			}
		}
		return PollyProviderFromConfig(ctx, config)
	case "gcp":
		return GCPProviderFromConfig(ctx, config)
	default:
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", providerName, strings.Join(f.ListProviders(), ", "))
	}
}

// ListProviders returns available provider names
func (f *DefaultFactory) ListProviders() []string {
	return []string{"pindo", "polly", "gcp"}
}
