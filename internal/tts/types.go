package tts

import (
	"fmt"
	"time"
)

// Synthesis endpoint defaults
const (
	DefaultEndpoint    = "https://api.pindo.io/ai/tts/rw/public"
	DefaultLanguage    = "rw"
	DefaultMaxAttempts = 4 // 1 initial + 3 retries
	DefaultBaseDelay   = 10 * time.Second
	DefaultTimeout     = 100 * time.Second
)

// Request is a single piece of text to synthesize
type Request struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// NewRequest creates a request, falling back to DefaultLanguage
func NewRequest(text, language string) Request {
	if language == "" {
		language = DefaultLanguage
	}
	return Request{Text: text, Language: language}
}

// Kind tags the origin of a failure
type Kind int

const (
	// KindAPI is a structured error reported by the synthesis service
	KindAPI Kind = iota
	// KindNetwork covers connection failures and timeouts
	KindNetwork
	// KindCanceled means the caller's context ended the call
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindNetwork:
		return "network"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Failure is the structured terminal error of a synthesis call
type Failure struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (code %d): %s", f.Message, f.Code, f.Details)
}

// Retryable reports whether an identical request might succeed later.
// Network failures always are; API failures only for 5xx codes.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindNetwork:
		return true
	case KindAPI:
		return f.Code >= 500 && f.Code < 600
	default:
		return false
	}
}

// Outcome is the terminal result of Generate.
// Exactly one of AudioURL and Failure is set.
type Outcome struct {
	AudioURL string   `json:"audioUrl,omitempty"`
	Failure  *Failure `json:"error,omitempty"`
}

// Success reports whether the outcome carries an audio URL
func (o Outcome) Success() bool {
	return o.Failure == nil
}

// Callbacks receive progress for a single Generate call. All are optional.
type Callbacks struct {
	OnRetry   func(attempt int)
	OnSuccess func(audioURL string)
	OnError   func(failure *Failure)
}

func (cb Callbacks) retry(attempt int) {
	if cb.OnRetry != nil {
		cb.OnRetry(attempt)
	}
}

func (cb Callbacks) success(audioURL string) {
	if cb.OnSuccess != nil {
		cb.OnSuccess(audioURL)
	}
}

func (cb Callbacks) fail(failure *Failure) {
	if cb.OnError != nil {
		cb.OnError(failure)
	}
}

func timeoutFailure() *Failure {
	return &Failure{
		Kind:    KindNetwork,
		Code:    408,
		Message: "Request timeout",
		Details: "The request took too long to complete",
	}
}

func networkFailure(err error) *Failure {
	details := "Unable to connect to audio service"
	if err != nil && err.Error() != "" {
		details = err.Error()
	}
	return &Failure{
		Kind:    KindNetwork,
		Code:    0,
		Message: "Network error",
		Details: details,
	}
}

func canceledFailure(err error) *Failure {
	return &Failure{
		Kind:    KindCanceled,
		Code:    499,
		Message: "Request canceled",
		Details: err.Error(),
	}
}
