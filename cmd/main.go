package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var (
	version  = "dev"
	revision = "none"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("Failed to run application")
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "smart-banana",
		Usage: "Read banana disease results aloud",
		Description: `smart-banana turns disease descriptions into speech.
The default provider is the Pindo Kinyarwanda TTS service, called with
automatic retry and exponential backoff; Amazon Polly and Google Cloud
TTS are available for other languages.`,
		Version: fmt.Sprintf("%s (rev: %s)", version, revision),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"V"},
				Usage:   "Enable verbose logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "speak",
				Aliases:   []string{"s"},
				Usage:     "Synthesize speech for text (arguments or stdin)",
				ArgsUsage: "[text]",
				Action:    handleSpeak,
				Flags:     append(providerFlags(), speakFlags()...),
			},
			{
				Name:   "health",
				Usage:  "Check whether the synthesis service answers",
				Action: handleHealth,
				Flags:  providerFlags(),
			},
			{
				Name:    "voices",
				Aliases: []string{"ls"},
				Usage:   "List voices for a provider",
				Action:  handleVoices,
				Flags:   providerFlags(),
			},
			{
				Name:   "config",
				Usage:  "Show the speech configuration",
				Action: handleConfig,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "example",
						Usage: "Print an example speech.json",
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to a speech.json file",
					},
				},
			},
		},
		Before: func(ctx context.Context, c *cli.Command) error {
			if c.Bool("verbose") {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			return nil
		},
	}
}

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Usage:   "TTS provider: " + strings.Join(providerFactory.ListProviders(), ", ") + " (default from config, else pindo)",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to a speech.json file",
		},
		&cli.BoolFlag{
			Name:  "no-config",
			Usage: "Ignore speech.json files",
		},
		&cli.StringFlag{
			Name:  "endpoint",
			Usage: "Pindo synthesis endpoint",
		},
		&cli.StringFlag{
			Name:  "timeout",
			Usage: "Per-attempt timeout, e.g. 30s",
		},
		&cli.StringFlag{
			Name:  "retry-delay",
			Usage: "Delay before the first retry, doubled on each further retry",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retries after the first attempt",
			Value: 3,
		},
		&cli.StringFlag{
			Name:  "region",
			Usage: "AWS region for Polly",
		},
	}
}

func speakFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "lang",
			Aliases: []string{"l"},
			Usage:   "Language code (default from config, else the provider default)",
		},
		&cli.StringFlag{
			Name:  "voice",
			Usage: "Voice ID or name (provider-specific)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Audio format: mp3, ogg, wav, pcm (default from config)",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Polly engine: standard, neural, long-form, generative",
		},
		&cli.StringFlag{
			Name:  "sample-rate",
			Usage: "Polly sample rate in Hz: 8000, 16000, 22050, 24000",
		},
		&cli.FloatFlag{
			Name:  "speed",
			Usage: "GCP speaking rate (0.25-4.0, 0 for the service default)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write audio to this file (pindo prints the audio URL when omitted)",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Always call the service instead of reusing a recently resolved audio URL",
		},
	}
}
