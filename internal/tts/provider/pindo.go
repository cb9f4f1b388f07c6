package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/r-iradukunda/smart-banana/internal/tts"
	"github.com/rs/zerolog/log"
)

// MaxRetries bounds the retries a Pindo provider may be configured with
const MaxRetries = 10

// PindoProvider synthesizes speech through the Pindo TTS endpoint.
// The endpoint returns a URL; Synthesize downloads the audio behind it.
type PindoProvider struct {
	client     *tts.Client
	httpClient *http.Client
	language   string
}

// NewPindoProvider creates a provider around an existing synthesis client
func NewPindoProvider(client *tts.Client) *PindoProvider {
	return &PindoProvider{
		client: client,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		language: tts.DefaultLanguage,
	}
}

// Name returns the provider name
func (p *PindoProvider) Name() string {
	return "pindo"
}

// Client returns the underlying synthesis client
func (p *PindoProvider) Client() *tts.Client {
	return p.client
}

// Language resolves the language a request is made in: the explicit
// option, else the configured default
func (p *PindoProvider) Language(options SynthesizeOptions) string {
	if options.Language != "" {
		return options.Language
	}
	return p.language
}

// ListVoices returns the single public Kinyarwanda voice
func (p *PindoProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{
			ID:          "rw-public",
			Name:        "Pindo Kinyarwanda",
			Language:    "rw",
			Description: "Public Kinyarwanda voice",
		},
	}, nil
}

// ResolveURL asks the endpoint for an audio URL, retrying transient failures
func (p *PindoProvider) ResolveURL(ctx context.Context, text string, options SynthesizeOptions) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text cannot be empty")
	}

	outcome := p.client.Generate(ctx, tts.NewRequest(text, p.Language(options)), tts.Callbacks{
		OnRetry: options.OnRetry,
	})
	if !outcome.Success() {
		return "", fmt.Errorf("failed to synthesize speech: %w", outcome.Failure)
	}
	return outcome.AudioURL, nil
}

// Synthesize resolves the audio URL and streams the audio file
func (p *PindoProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error) {
	audioURL, err := p.ResolveURL(ctx, text, options)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	log.Debug().Str("audio_url", audioURL).Msg("Downloading Pindo audio")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("audio download error: status %d, body: %s", resp.StatusCode, string(body))
	}

	log.Debug().
		Str("content_type", resp.Header.Get("Content-Type")).
		Msg("Pindo audio download successful")

	return resp.Body, nil
}

// IsAvailable probes the endpoint with a short synthesis request
func (p *PindoProvider) IsAvailable(ctx context.Context) bool {
	return p.client.CheckHealth(ctx)
}

// PindoProviderFromConfig creates a Pindo provider from configuration
func PindoProviderFromConfig(config map[string]interface{}) (*PindoProvider, error) {
	var opts []tts.Option

	if endpoint, ok := config["endpoint"].(string); ok && endpoint != "" {
		opts = append(opts, tts.WithEndpoint(strings.TrimSuffix(endpoint, "/")))
	}

	if apiKey, ok := config["api_key"].(string); ok && apiKey != "" {
		opts = append(opts, tts.WithAPIKey(apiKey))
	}

	if timeout, err := durationValue(config, "timeout"); err != nil {
		return nil, err
	} else if timeout > 0 {
		opts = append(opts, tts.WithTimeout(timeout))
	}

	if delay, err := durationValue(config, "retry_delay"); err != nil {
		return nil, err
	} else if delay > 0 {
		opts = append(opts, tts.WithBaseDelay(delay))
	}

	if retries, ok := intValue(config, "max_retries"); ok {
		if retries < 0 || retries > MaxRetries {
			return nil, fmt.Errorf("max_retries must be between 0 and %d, got %d", MaxRetries, retries)
		}
		opts = append(opts, tts.WithMaxAttempts(retries+1))
	}

	p := NewPindoProvider(tts.NewClient(opts...))
	if language, ok := config["language"].(string); ok && language != "" {
		p.language = language
	}

	return p, nil
}

// durationValue reads a duration given as a string ("10s") or time.Duration
func durationValue(config map[string]interface{}, key string) (time.Duration, error) {
	switch v := config[key].(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		if v == "" {
			return 0, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid %s: unsupported type %T", key, v)
	}
}

// intValue reads an integer that may have been decoded from JSON as float64
func intValue(config map[string]interface{}, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
