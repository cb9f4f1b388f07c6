package provider

import (
	"context"
	"io"
)

// Provider defines the interface for speech synthesis backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// ListVoices returns available voices for this provider
	ListVoices(ctx context.Context) ([]Voice, error)

	// Synthesize generates audio from text and returns an audio stream
	Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error)

	// IsAvailable checks if the provider can currently be used
	IsAvailable(ctx context.Context) bool
}

// Voice represents a voice option
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language"`
	Gender      string `json:"gender,omitempty"`
	Description string `json:"description,omitempty"`
}

// SynthesizeOptions contains options for text synthesis
type SynthesizeOptions struct {
	Voice      string  `json:"voice,omitempty"`
	Language   string  `json:"language,omitempty"`    // BCP-47 code, e.g. rw, en-US
	Format     string  `json:"format,omitempty"`      // mp3, ogg, wav, pcm
	Engine     string  `json:"engine,omitempty"`      // Polly engine
	SampleRate string  `json:"sample_rate,omitempty"` // Hz as string
	Speed      float64 `json:"speed,omitempty"`

	// OnRetry is called before each retry by providers that retry internally
	OnRetry func(attempt int) `json:"-"`
}

// Factory creates provider instances
type Factory interface {
	CreateProvider(ctx context.Context, providerName string, config map[string]interface{}) (Provider, error)
	ListProviders() []string
}
