package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configDirPath := filepath.Join(dir, configDir)
	require.NoError(t, os.MkdirAll(configDirPath, 0755))
	path := filepath.Join(configDirPath, configName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_PINDO_KEY", "pk-test-12345")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand ${VAR} pattern",
			input:    `{"apiKey": "${TEST_PINDO_KEY}"}`,
			expected: `{"apiKey": "pk-test-12345"}`,
		},
		{
			name:     "missing env var returns empty",
			input:    `{"apiKey": "${NONEXISTENT_VAR_FOR_TEST}"}`,
			expected: `{"apiKey": ""}`,
		},
		{
			name:     "no variables to expand",
			input:    `{"apiKey": "literal-value"}`,
			expected: `{"apiKey": "literal-value"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestLoader_Load(t *testing.T) {
	t.Run("load project config", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("TEST_PINDO_ENDPOINT", "https://tts.example.com")
		writeConfig(t, tmpDir, `{
			"defaultProvider": "pindo",
			"providers": {
				"pindo": {
					"endpoint": "${TEST_PINDO_ENDPOINT}",
					"retryDelay": "2s",
					"maxRetries": 2
				}
			}
		}`)

		loader := NewLoader()
		loader.globalPath = filepath.Join(t.TempDir(), configName)
		config, err := loader.Load(tmpDir)

		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "pindo", config.DefaultProvider)
		assert.Equal(t, "https://tts.example.com", config.Providers["pindo"].Endpoint)
		require.NotNil(t, config.Providers["pindo"].MaxRetries)
		assert.Equal(t, 2, *config.Providers["pindo"].MaxRetries)
	})

	t.Run("falls back to global config", func(t *testing.T) {
		globalDir := t.TempDir()
		globalPath := writeConfig(t, globalDir, `{"defaultProvider": "polly"}`)

		loader := NewLoader()
		loader.globalPath = globalPath
		config, err := loader.Load(t.TempDir())

		require.NoError(t, err)
		require.NotNil(t, config)
		assert.Equal(t, "polly", config.DefaultProvider)
	})

	t.Run("no config returns nil", func(t *testing.T) {
		loader := NewLoader()
		loader.globalPath = filepath.Join(t.TempDir(), configName)
		config, err := loader.Load(t.TempDir())

		require.NoError(t, err)
		assert.Nil(t, config)
	})

	t.Run("invalid JSON is an error", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeConfig(t, tmpDir, `{"defaultProvider": `)

		loader := NewLoader()
		_, err := loader.Load(tmpDir)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestLoader_LoadFromPath(t *testing.T) {
	loader := NewLoader()

	t.Run("rejects traversal", func(t *testing.T) {
		_, err := loader.LoadFromPath("../../etc/speech.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "path traversal")
	})

	t.Run("rejects other file names", func(t *testing.T) {
		_, err := loader.LoadFromPath("/tmp/config.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be a speech.json file")
	})

	t.Run("loads explicit path", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `{"defaultProvider": "gcp"}`)
		config, err := loader.LoadFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, "gcp", config.DefaultProvider)
	})
}

func TestFile_GetProviderConfig(t *testing.T) {
	config := &File{
		Providers: map[string]ProviderConfig{
			"pindo": {Endpoint: "https://tts.example.com"},
		},
	}

	assert.NotNil(t, config.GetProviderConfig("pindo"))
	assert.Nil(t, config.GetProviderConfig("polly"))

	var nilConfig *File
	assert.Nil(t, nilConfig.GetProviderConfig("pindo"))
}

func TestFile_GetEffectiveProvider(t *testing.T) {
	config := &File{DefaultProvider: "polly"}

	assert.Equal(t, "gcp", config.GetEffectiveProvider("gcp"))
	assert.Equal(t, "polly", config.GetEffectiveProvider(""))

	var nilConfig *File
	assert.Equal(t, "pindo", nilConfig.GetEffectiveProvider(""))
}

func TestProviderConfig_Settings(t *testing.T) {
	retries := 2
	pc := &ProviderConfig{
		Endpoint:   "https://tts.example.com",
		APIKey:     "secret",
		RetryDelay: "2s",
		MaxRetries: &retries,
		Region:     "",
	}

	settings := pc.Settings()
	assert.Equal(t, "https://tts.example.com", settings["endpoint"])
	assert.Equal(t, "secret", settings["api_key"])
	assert.Equal(t, "2s", settings["retry_delay"])
	assert.Equal(t, 2, settings["max_retries"])
	assert.NotContains(t, settings, "region")

	var nilConfig *ProviderConfig
	assert.Empty(t, nilConfig.Settings())
}

func TestFile_Validate(t *testing.T) {
	negative := -1
	tests := []struct {
		name     string
		config   *File
		expected []string
	}{
		{
			name:     "nil config",
			config:   nil,
			expected: nil,
		},
		{
			name: "valid config",
			config: &File{
				DefaultProvider: "pindo",
				Providers: map[string]ProviderConfig{
					"pindo": {Endpoint: "https://api.pindo.io/ai/tts/rw/public", Timeout: "100s"},
					"polly": {Region: "eu-west-1"},
				},
			},
			expected: nil,
		},
		{
			name:     "unknown default provider",
			config:   &File{DefaultProvider: "espeak"},
			expected: []string{"defaultProvider: unknown provider 'espeak'"},
		},
		{
			name: "bad pindo endpoint",
			config: &File{Providers: map[string]ProviderConfig{
				"pindo": {Endpoint: "ftp://example.com"},
			}},
			expected: []string{"pindo: endpoint must be an http(s) URL"},
		},
		{
			name: "bad retry delay",
			config: &File{Providers: map[string]ProviderConfig{
				"pindo": {RetryDelay: "soon"},
			}},
			expected: []string{"pindo: retryDelay must be a positive duration like 10s"},
		},
		{
			name: "negative retries",
			config: &File{Providers: map[string]ProviderConfig{
				"pindo": {MaxRetries: &negative},
			}},
			expected: []string{"pindo: maxRetries must be between 0 and 10"},
		},
		{
			name: "unusual polly region",
			config: &File{Providers: map[string]ProviderConfig{
				"polly": {Region: "mars-north-1"},
			}},
			expected: []string{"polly: region 'mars-north-1' may not be valid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.Validate())
		})
	}
}

func TestGenerateExampleConfig(t *testing.T) {
	example := GenerateExampleConfig()

	var config File
	require.NoError(t, json.Unmarshal([]byte(example), &config))
	assert.Equal(t, "pindo", config.DefaultProvider)
	assert.Contains(t, config.Providers, "pindo")
	assert.Contains(t, config.Providers, "polly")
	assert.Contains(t, config.Providers, "gcp")
	assert.Empty(t, config.Validate())
}

func TestFile_MaskSecrets(t *testing.T) {
	config := &File{
		DefaultProvider: "pindo",
		Providers: map[string]ProviderConfig{
			"pindo": {APIKey: "pk-secret-key"},
			"polly": {Region: "eu-west-1"},
		},
	}

	masked := config.MaskSecrets()

	assert.Equal(t, "[set, 13 chars]", masked.Providers["pindo"].APIKey)
	assert.Empty(t, masked.Providers["polly"].APIKey)
	assert.Equal(t, "pk-secret-key", config.Providers["pindo"].APIKey)

	var nilConfig *File
	assert.Nil(t, nilConfig.MaskSecrets())
}
