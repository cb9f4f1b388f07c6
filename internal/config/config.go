package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	configDir  = ".smart-banana"
	configName = "speech.json"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// File represents the speech configuration file structure
type File struct {
	DefaultProvider string                    `json:"defaultProvider,omitempty"`
	Providers       map[string]ProviderConfig `json:"providers,omitempty"`
}

// ProviderConfig represents provider-specific configuration
type ProviderConfig struct {
	// Common options
	Voice    string `json:"voice,omitempty"`
	Language string `json:"language,omitempty"`
	Format   string `json:"format,omitempty"`

	// Pindo options
	Endpoint   string `json:"endpoint,omitempty"`
	APIKey     string `json:"apiKey,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RetryDelay string `json:"retryDelay,omitempty"`
	MaxRetries *int   `json:"maxRetries,omitempty"`

	// Amazon Polly options
	Region     string `json:"region,omitempty"`
	Engine     string `json:"engine,omitempty"`
	SampleRate string `json:"sampleRate,omitempty"`
}

// Loader handles loading speech configuration from files
type Loader struct {
	projectPath string
	globalPath  string
}

// NewLoader creates a new config loader
func NewLoader() *Loader {
	homeDir, _ := os.UserHomeDir()
	return &Loader{
		projectPath: filepath.Join(configDir, configName),
		globalPath:  filepath.Join(homeDir, configDir, configName),
	}
}

// Load loads configuration with priority:
// 1. Project-local config (.smart-banana/speech.json)
// 2. Global config (~/.smart-banana/speech.json)
// Returns nil if no config file found
func (l *Loader) Load(workDir string) (*File, error) {
	projectConfigPath := filepath.Join(workDir, l.projectPath)
	config, err := l.loadFromFile(projectConfigPath)
	if err == nil {
		log.Debug().Str("path", projectConfigPath).Msg("Loaded project speech config")
		return config, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	config, err = l.loadFromFile(l.globalPath)
	if err == nil {
		log.Debug().Str("path", l.globalPath).Msg("Loaded global speech config")
		return config, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	log.Debug().Msg("No speech config file found")
	return nil, nil
}

// LoadFromPath loads configuration from a specific path
func (l *Loader) LoadFromPath(path string) (*File, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}
	return l.loadFromFile(path)
}

// validatePath rejects traversal and anything that is not a speech.json file
func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("invalid config path: path traversal not allowed")
	}

	if filepath.Base(filepath.Clean(path)) != configName {
		return fmt.Errorf("invalid config path: must be a %s file", configName)
	}

	return nil
}

func (l *Loader) loadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := expandEnvVars(string(data))

	var config File
	if err := json.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	checkFilePermissions(path)

	return &config, nil
}

// expandEnvVars replaces ${VAR} patterns with environment variable values
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := match[2 : len(match)-1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Variable names are not logged; they may hint at secrets
		log.Debug().Msg("Referenced environment variable not set in config")
		return ""
	})
}

func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	mode := info.Mode().Perm()
	if mode&0077 != 0 {
		log.Warn().
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Speech config file may contain secrets but has permissive permissions. Consider: chmod 600")
	}
}

// GetProviderConfig returns configuration for a specific provider
func (c *File) GetProviderConfig(providerName string) *ProviderConfig {
	if c == nil || c.Providers == nil {
		return nil
	}
	if config, exists := c.Providers[providerName]; exists {
		return &config
	}
	return nil
}

// GetEffectiveProvider returns the provider to use: explicit, then file default, then pindo
func (c *File) GetEffectiveProvider(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if c != nil && c.DefaultProvider != "" {
		return c.DefaultProvider
	}
	return "pindo"
}

// Settings converts the provider config into the factory's settings map
func (pc *ProviderConfig) Settings() map[string]interface{} {
	settings := make(map[string]interface{})
	if pc == nil {
		return settings
	}

	set := func(key, value string) {
		if value != "" {
			settings[key] = value
		}
	}
	set("voice", pc.Voice)
	set("language", pc.Language)
	set("format", pc.Format)
	set("endpoint", pc.Endpoint)
	set("api_key", pc.APIKey)
	set("timeout", pc.Timeout)
	set("retry_delay", pc.RetryDelay)
	set("region", pc.Region)
	set("engine", pc.Engine)
	set("sample_rate", pc.SampleRate)
	if pc.MaxRetries != nil {
		settings["max_retries"] = *pc.MaxRetries
	}

	return settings
}

// Validate validates the configuration
func (c *File) Validate() []string {
	var errors []string

	if c == nil {
		return errors
	}

	switch c.DefaultProvider {
	case "", "pindo", "polly", "gcp":
	default:
		errors = append(errors, fmt.Sprintf("defaultProvider: unknown provider '%s'", c.DefaultProvider))
	}

	for name, provider := range c.Providers {
		errors = append(errors, validateProviderConfig(name, &provider)...)
	}

	return errors
}

func validateProviderConfig(name string, config *ProviderConfig) []string {
	var errors []string

	switch name {
	case "pindo":
		if config.Endpoint != "" && !strings.HasPrefix(config.Endpoint, "http://") && !strings.HasPrefix(config.Endpoint, "https://") {
			errors = append(errors, fmt.Sprintf("%s: endpoint must be an http(s) URL", name))
		}
		for field, value := range map[string]string{"timeout": config.Timeout, "retryDelay": config.RetryDelay} {
			if value == "" {
				continue
			}
			if d, err := time.ParseDuration(value); err != nil || d <= 0 {
				errors = append(errors, fmt.Sprintf("%s: %s must be a positive duration like 10s", name, field))
			}
		}
		if config.MaxRetries != nil && (*config.MaxRetries < 0 || *config.MaxRetries > 10) {
			errors = append(errors, fmt.Sprintf("%s: maxRetries must be between 0 and 10", name))
		}
	case "polly":
		validRegions := []string{"us-east-1", "us-west-2", "eu-west-1", "eu-central-1", "ap-northeast-1", "ap-southeast-1", "af-south-1"}
		if config.Region != "" && !contains(validRegions, config.Region) {
			errors = append(errors, fmt.Sprintf("%s: region '%s' may not be valid", name, config.Region))
		}
	case "gcp":
	default:
		errors = append(errors, fmt.Sprintf("%s: unknown provider", name))
	}

	return errors
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GenerateExampleConfig generates an example configuration
func GenerateExampleConfig() string {
	maxRetries := 3
	example := File{
		DefaultProvider: "pindo",
		Providers: map[string]ProviderConfig{
			"pindo": {
				Endpoint:   "https://api.pindo.io/ai/tts/rw/public",
				Language:   "rw",
				Timeout:    "100s",
				RetryDelay: "10s",
				MaxRetries: &maxRetries,
			},
			"polly": {
				Region:   "eu-west-1",
				Voice:    "Joanna",
				Engine:   "neural",
				Language: "en",
			},
			"gcp": {
				Voice:    "en-US-Neural2-C",
				Language: "en-US",
			},
		},
	}

	data, _ := json.MarshalIndent(example, "", "  ")
	return string(data)
}

// MaskSecrets masks sensitive values in config for display
func (c *File) MaskSecrets() *File {
	if c == nil {
		return nil
	}

	masked := &File{
		DefaultProvider: c.DefaultProvider,
		Providers:       make(map[string]ProviderConfig),
	}

	for name, provider := range c.Providers {
		maskedProvider := provider
		if provider.APIKey != "" {
			maskedProvider.APIKey = fmt.Sprintf("[set, %d chars]", len(provider.APIKey))
		}
		masked.Providers[name] = maskedProvider
	}

	return masked
}
