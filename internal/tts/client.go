package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// maxResponseBytes caps how much of a response body is read
	maxResponseBytes = 1 << 20

	maxBackoff = time.Duration(math.MaxInt64)
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client turns text into a spoken-audio URL through a remote synthesis
// endpoint, retrying transient failures with exponential backoff.
// A Client holds no per-call state and is safe for concurrent use.
type Client struct {
	endpoint    string
	apiKey      string
	httpClient  Doer
	timeout     time.Duration
	baseDelay   time.Duration
	maxAttempts int
	sleep       SleepFunc
	logger      zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithEndpoint overrides the synthesis endpoint
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithAPIKey sends the key as a bearer token on every attempt
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHTTPClient sets the transport used for every attempt
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithBaseDelay sets the delay before the first retry
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = delay
	}
}

// WithMaxAttempts sets the total number of attempts, including the first
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
	}
}

// WithSleep replaces the backoff delay primitive
func WithSleep(sleep SleepFunc) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithLogger sets the logger used for attempt traces
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a synthesis client with defaults for anything not set
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:    DefaultEndpoint,
		httpClient:  http.DefaultClient,
		timeout:     DefaultTimeout,
		baseDelay:   DefaultBaseDelay,
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
		logger:      log.Logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}

	return c
}

// Endpoint returns the synthesis endpoint
func (c *Client) Endpoint() string {
	return c.endpoint
}

// MaxAttempts returns the total attempt bound
func (c *Client) MaxAttempts() int {
	return c.maxAttempts
}

// Backoff returns the delay after the failed attempt with the given
// zero-based index: baseDelay, 2*baseDelay, 4*baseDelay, ...
// The result saturates at maxBackoff instead of overflowing.
func (c *Client) Backoff(attempt int) time.Duration {
	if c.baseDelay <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 63 || c.baseDelay > maxBackoff>>uint(attempt) {
		return maxBackoff
	}
	return c.baseDelay << uint(attempt)
}

// Generate synthesizes req.Text and returns exactly one terminal outcome.
// OnRetry fires before each backoff delay, then exactly one of OnSuccess
// and OnError fires. Generate never panics on remote errors and never
// returns a Go error; every failure is in Outcome.Failure.
func (c *Client) Generate(ctx context.Context, req Request, cb Callbacks) Outcome {
	req = NewRequest(req.Text, req.Language)
	logger := c.logger.With().
		Str("language", req.Language).
		Int("text_len", len(req.Text)).
		Logger()

	for attempt := 0; ; attempt++ {
		logger.Debug().Int("attempt", attempt+1).Msg("TTS attempt")

		audioURL, failure := c.attempt(ctx, req.Text)
		if failure == nil {
			logger.Debug().Str("audio_url", audioURL).Msg("TTS success")
			cb.success(audioURL)
			return Outcome{AudioURL: audioURL}
		}

		logger.Debug().
			Int("attempt", attempt+1).
			Str("kind", failure.Kind.String()).
			Int("code", failure.Code).
			Str("message", failure.Message).
			Msg("TTS attempt failed")

		if !failure.Retryable() || attempt >= c.maxAttempts-1 {
			return c.finish(logger, cb, failure)
		}

		delay := c.Backoff(attempt)
		cb.retry(attempt + 1)
		logger.Debug().
			Int("next_attempt", attempt+2).
			Dur("delay", delay).
			Msg("Retrying TTS request")

		if err := c.sleep(ctx, delay); err != nil {
			return c.finish(logger, cb, canceledFailure(err))
		}
	}
}

func (c *Client) finish(logger zerolog.Logger, cb Callbacks, failure *Failure) Outcome {
	logger.Debug().
		Int("code", failure.Code).
		Str("details", failure.Details).
		Msg("TTS request failed")
	cb.fail(failure)
	return Outcome{Failure: failure}
}

// AudioURL is a shorthand for Generate without callbacks.
// The returned error is a *Failure.
func (c *Client) AudioURL(ctx context.Context, text, language string) (string, error) {
	outcome := c.Generate(ctx, NewRequest(text, language), Callbacks{})
	if !outcome.Success() {
		return "", outcome.Failure
	}
	return outcome.AudioURL, nil
}

// CheckHealth reports whether the service can synthesize a short probe text
func (c *Client) CheckHealth(ctx context.Context) bool {
	return c.Generate(ctx, NewRequest("test", DefaultLanguage), Callbacks{}).Success()
}

type synthesisBody struct {
	Text string `json:"text"`
}

type synthesisResponse struct {
	Status string `json:"status"`
	Code   *int   `json:"code"`
	Error  *struct {
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	Data *struct {
		GeneratedAudioURL string `json:"generated_audio_url"`
	} `json:"data"`
}

// attempt performs one request under the per-attempt timeout
func (c *Client) attempt(ctx context.Context, text string) (string, *Failure) {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(synthesisBody{Text: text})
	if err != nil {
		return "", &Failure{Kind: KindAPI, Code: 0, Message: "Invalid request", Details: err.Error()}
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Failure{Kind: KindAPI, Code: 0, Message: "Invalid request", Details: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportFailure(ctx, err)
	}

	return c.parseResponse(resp.StatusCode, data)
}

func (c *Client) parseResponse(statusCode int, data []byte) (string, *Failure) {
	var payload synthesisResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			c.logger.Debug().Err(err).Int("status", statusCode).Msg("Undecodable TTS response body")
			payload = synthesisResponse{}
		}
	}

	ok := statusCode >= 200 && statusCode < 300
	apiError := payload.Status == "error" || (payload.Code != nil && *payload.Code != http.StatusOK)
	if !ok || apiError {
		failure := &Failure{
			Kind:    KindAPI,
			Code:    statusCode,
			Message: fmt.Sprintf("HTTP %d", statusCode),
			Details: "Unknown error occurred",
		}
		if payload.Code != nil && *payload.Code != 0 {
			failure.Code = *payload.Code
		}
		if payload.Error != nil {
			if payload.Error.Message != "" {
				failure.Message = payload.Error.Message
			}
			if payload.Error.Details != "" {
				failure.Details = payload.Error.Details
			}
		}
		return "", failure
	}

	if payload.Data == nil || payload.Data.GeneratedAudioURL == "" {
		return "", &Failure{
			Kind:    KindAPI,
			Code:    http.StatusOK,
			Message: "No audio URL in response",
			Details: "Invalid response format",
		}
	}

	return payload.Data.GeneratedAudioURL, nil
}

// transportFailure classifies an error raised before a full response was read.
// ctx is the caller's context, not the per-attempt one.
func transportFailure(ctx context.Context, err error) *Failure {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return canceledFailure(ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return timeoutFailure()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutFailure()
	}
	return networkFailure(err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
