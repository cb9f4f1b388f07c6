package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/r-iradukunda/smart-banana/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// pindoServer serves the synthesis endpoint at /tts and audio at /audio/x.mp3
func pindoServer(t *testing.T, failures int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)

	mux.HandleFunc("/tts", func(w http.ResponseWriter, r *http.Request) {
		if int(atomic.AddInt32(&calls, 1)) <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","code":503}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","code":200,"data":{"generated_audio_url":"%s/audio/x.mp3"}}`, server.URL)
	})
	mux.HandleFunc("/audio/x.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mock audio data"))
	})

	t.Cleanup(server.Close)
	return server, &calls
}

func newTestPindo(endpoint string) *PindoProvider {
	return NewPindoProvider(tts.NewClient(
		tts.WithEndpoint(endpoint),
		tts.WithSleep(noSleep),
	))
}

func TestPindoProvider_Name(t *testing.T) {
	p := newTestPindo("http://localhost")
	assert.Equal(t, "pindo", p.Name())
}

func TestPindoProvider_ListVoices(t *testing.T) {
	p := newTestPindo("http://localhost")

	voices, err := p.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "rw", voices[0].Language)
}

func TestPindoProvider_Synthesize(t *testing.T) {
	t.Run("returns error for empty text", func(t *testing.T) {
		p := newTestPindo("http://localhost")

		_, err := p.Synthesize(context.Background(), "  ", SynthesizeOptions{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "text cannot be empty")
	})

	t.Run("downloads audio after retries", func(t *testing.T) {
		server, calls := pindoServer(t, 2)
		p := newTestPindo(server.URL + "/tts")

		var retries []int
		reader, err := p.Synthesize(context.Background(), "Sigatoka is a fungal disease", SynthesizeOptions{
			OnRetry: func(attempt int) { retries = append(retries, attempt) },
		})
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "mock audio data", string(data))
		assert.Equal(t, []int{1, 2}, retries)
		assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	})

	t.Run("wraps synthesis failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":"error","code":400,"error":{"message":"Text too long"}}`))
		}))
		defer server.Close()

		p := newTestPindo(server.URL)
		_, err := p.Synthesize(context.Background(), "text", SynthesizeOptions{})
		require.Error(t, err)

		var failure *tts.Failure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, 400, failure.Code)
		assert.Equal(t, "Text too long", failure.Message)
	})

	t.Run("handles audio download error", func(t *testing.T) {
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()
		mux.HandleFunc("/tts", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"code":200,"data":{"generated_audio_url":"%s/missing.mp3"}}`, server.URL)
		})

		p := newTestPindo(server.URL + "/tts")
		_, err := p.Synthesize(context.Background(), "text", SynthesizeOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 404")
	})
}

func TestPindoProvider_ResolveURL(t *testing.T) {
	server, _ := pindoServer(t, 0)
	p := newTestPindo(server.URL + "/tts")

	audioURL, err := p.ResolveURL(context.Background(), "Muraho", SynthesizeOptions{Language: "rw"})
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/audio/x.mp3", audioURL)
}

func TestPindoProvider_Language(t *testing.T) {
	p, err := PindoProviderFromConfig(map[string]interface{}{"language": "en"})
	require.NoError(t, err)

	assert.Equal(t, "en", p.Language(SynthesizeOptions{}))
	assert.Equal(t, "fr", p.Language(SynthesizeOptions{Language: "fr"}))
	assert.Equal(t, "rw", newTestPindo("http://localhost").Language(SynthesizeOptions{}))
}

func TestPindoProvider_IsAvailable(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		server, _ := pindoServer(t, 0)
		p := newTestPindo(server.URL + "/tts")
		assert.True(t, p.IsAvailable(context.Background()))
	})

	t.Run("unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		p := newTestPindo(server.URL)
		assert.False(t, p.IsAvailable(context.Background()))
	})
}

func TestPindoProviderFromConfig(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		p, err := PindoProviderFromConfig(map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, tts.DefaultEndpoint, p.Client().Endpoint())
		assert.Equal(t, tts.DefaultMaxAttempts, p.Client().MaxAttempts())
		assert.Equal(t, "rw", p.language)
	})

	t.Run("applies overrides", func(t *testing.T) {
		p, err := PindoProviderFromConfig(map[string]interface{}{
			"endpoint":    "https://tts.example.com/v1/",
			"timeout":     "30s",
			"retry_delay": "2s",
			"max_retries": float64(5),
			"language":    "en",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://tts.example.com/v1", p.Client().Endpoint())
		assert.Equal(t, 6, p.Client().MaxAttempts())
		assert.Equal(t, 2*time.Second, p.Client().Backoff(0))
		assert.Equal(t, "en", p.language)
	})

	t.Run("rejects invalid duration", func(t *testing.T) {
		_, err := PindoProviderFromConfig(map[string]interface{}{"timeout": "soon"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid timeout")
	})

	t.Run("rejects retries out of range", func(t *testing.T) {
		for _, retries := range []int{-1, MaxRetries + 1, 30} {
			_, err := PindoProviderFromConfig(map[string]interface{}{"max_retries": retries})
			require.Error(t, err, "retries=%d", retries)
			assert.Contains(t, err.Error(), "max_retries must be between 0 and 10")
		}
	})

	t.Run("accepts the retry limit", func(t *testing.T) {
		p, err := PindoProviderFromConfig(map[string]interface{}{"max_retries": MaxRetries})
		require.NoError(t, err)
		assert.Equal(t, MaxRetries+1, p.Client().MaxAttempts())
	})
}
