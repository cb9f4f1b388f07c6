package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/r-iradukunda/smart-banana/internal/audiocache"
	"github.com/r-iradukunda/smart-banana/internal/config"
	"github.com/r-iradukunda/smart-banana/internal/tts"
	"github.com/r-iradukunda/smart-banana/internal/tts/provider"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// loadSpeechConfig loads the config file unless disabled
func loadSpeechConfig(c *cli.Command) (*config.File, error) {
	if c.Bool("no-config") {
		return nil, nil
	}

	loader := config.NewLoader()
	if path := c.String("config"); path != "" {
		return loader.LoadFromPath(path)
	}
	return loader.Load(".")
}

var providerFactory provider.Factory = provider.NewFactory()

// providerSettings resolves the provider name and settings from file and flags.
// Flags override file values.
func providerSettings(c *cli.Command) (string, map[string]interface{}, error) {
	fileConfig, err := loadSpeechConfig(c)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load speech config: %w", err)
	}
	for _, problem := range fileConfig.Validate() {
		log.Warn().Str("problem", problem).Msg("Speech config validation")
	}

	name := fileConfig.GetEffectiveProvider(c.String("provider"))
	settings := fileConfig.GetProviderConfig(name).Settings()

	overrides := map[string]string{
		"endpoint":    c.String("endpoint"),
		"timeout":     c.String("timeout"),
		"retry_delay": c.String("retry-delay"),
		"region":      c.String("region"),
	}
	for key, value := range overrides {
		if value != "" {
			settings[key] = value
		}
	}
	if c.IsSet("max-retries") {
		settings["max_retries"] = int(c.Int("max-retries"))
	}

	return name, settings, nil
}

func buildProvider(ctx context.Context, c *cli.Command) (provider.Provider, error) {
	name, settings, err := providerSettings(c)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("provider", name).Msg("Creating speech provider")
	return providerFactory.CreateProvider(ctx, name, settings)
}

// synthesizeOptions builds request options from flags. Unset flags stay
// empty so the provider's configured defaults apply.
func synthesizeOptions(c *cli.Command) provider.SynthesizeOptions {
	options := provider.SynthesizeOptions{
		Voice:      c.String("voice"),
		Format:     c.String("format"),
		Engine:     c.String("engine"),
		SampleRate: c.String("sample-rate"),
		Speed:      c.Float("speed"),
	}
	if c.IsSet("lang") {
		options.Language = c.String("lang")
	}
	return options
}

func readText(c *cli.Command) (string, error) {
	if c.Args().Len() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func handleSpeak(ctx context.Context, c *cli.Command) error {
	text, err := readText(c)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("text is required")
	}

	name, settings, err := providerSettings(c)
	if err != nil {
		return err
	}
	p, err := providerFactory.CreateProvider(ctx, name, settings)
	if err != nil {
		return err
	}

	options := synthesizeOptions(c)
	options.OnRetry = func(attempt int) {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Service busy, retrying (attempt %d)...\n", attempt+1)
	}

	output := c.String("output")
	if pindo, ok := p.(*provider.PindoProvider); ok && output == "" {
		audioURL, err := resolveCachedURL(ctx, c, pindo, text, options)
		if err != nil {
			return reportFailure(err)
		}
		color.New(color.FgGreen).Fprintln(os.Stderr, "Audio ready")
		fmt.Println(audioURL)
		return nil
	}

	if output == "" {
		format := options.Format
		if format == "" {
			format, _ = settings["format"].(string)
		}
		output = "speech." + audioExtension(format)
	}

	reader, err := p.Synthesize(ctx, text, options)
	if err != nil {
		return reportFailure(err)
	}
	defer reader.Close()

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}

	log.Debug().Int64("bytes", written).Str("path", output).Msg("Audio written")
	color.New(color.FgGreen).Fprintf(os.Stderr, "Audio saved to %s\n", output)
	return nil
}

// resolveCachedURL reuses a recently resolved URL for the same text unless --no-cache is set
func resolveCachedURL(ctx context.Context, c *cli.Command, pindo *provider.PindoProvider, text string, options provider.SynthesizeOptions) (string, error) {
	if c.Bool("no-cache") {
		return pindo.ResolveURL(ctx, text, options)
	}

	cache := audiocache.New(audiocache.DefaultTTL)
	if removed := cache.Cleanup(); removed > 0 {
		log.Debug().Int("removed", removed).Msg("Cleaned up stale audio cache entries")
	}

	language := pindo.Language(options)
	if audioURL, ok := cache.Lookup(language, text); ok {
		log.Debug().Msg("Using cached audio URL")
		return audioURL, nil
	}

	audioURL, err := pindo.ResolveURL(ctx, text, options)
	if err != nil {
		return "", err
	}
	cache.Store(language, text, audioURL)
	return audioURL, nil
}

// reportFailure prints the structured service failure and exits non-zero
func reportFailure(err error) error {
	var failure *tts.Failure
	if errors.As(err, &failure) {
		red := color.New(color.FgRed, color.Bold)
		red.Fprintln(os.Stderr, "Audio service unavailable")
		fmt.Fprintf(os.Stderr, "  code:    %d\n", failure.Code)
		fmt.Fprintf(os.Stderr, "  message: %s\n", failure.Message)
		fmt.Fprintf(os.Stderr, "  details: %s\n", failure.Details)
		return cli.Exit("", 1)
	}
	return err
}

func audioExtension(format string) string {
	switch strings.ToLower(format) {
	case "ogg", "ogg_opus":
		return "ogg"
	case "wav", "linear16":
		return "wav"
	case "pcm":
		return "pcm"
	default:
		return "mp3"
	}
}

func handleHealth(ctx context.Context, c *cli.Command) error {
	p, err := buildProvider(ctx, c)
	if err != nil {
		return err
	}

	if !p.IsAvailable(ctx) {
		color.New(color.FgRed).Printf("%s: unavailable\n", p.Name())
		return cli.Exit("", 1)
	}

	color.New(color.FgGreen).Printf("%s: available\n", p.Name())
	return nil
}

func handleVoices(ctx context.Context, c *cli.Command) error {
	p, err := buildProvider(ctx, c)
	if err != nil {
		return err
	}

	voices, err := p.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	if len(voices) == 0 {
		fmt.Println("No voices available")
		return nil
	}

	fmt.Printf("Available voices for provider '%s':\n", p.Name())
	for _, v := range voices {
		fmt.Printf("  - %s (%s) - %s\n", v.ID, v.Language, v.Description)
	}
	return nil
}

func handleConfig(ctx context.Context, c *cli.Command) error {
	if c.Bool("example") {
		fmt.Println(config.GenerateExampleConfig())
		return nil
	}

	fileConfig, err := loadSpeechConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load speech config: %w", err)
	}
	if fileConfig == nil {
		fmt.Println("No speech.json found. Print one with 'smart-banana config --example'")
		return nil
	}

	data, err := json.MarshalIndent(fileConfig.MaskSecrets(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}
	fmt.Println(string(data))

	problems := fileConfig.Validate()
	if len(problems) == 0 {
		color.New(color.FgGreen).Println("Configuration is valid")
		return nil
	}

	yellow := color.New(color.FgYellow)
	for _, problem := range problems {
		yellow.Printf("  ! %s\n", problem)
	}
	return nil
}
