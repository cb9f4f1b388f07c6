package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// pollyVoices maps a base language to the default neural voice.
// Polly has no Kinyarwanda voice, so rw readouts fall back to English.
var pollyVoices = map[string]string{
	"en": "Joanna",
	"fr": "Lea",
	"sw": "Joanna",
	"rw": "Joanna",
}

// PollyClient defines the methods we need from the Polly client
type PollyClient interface {
	DescribeVoices(ctx context.Context, params *polly.DescribeVoicesInput, optFns ...func(*polly.Options)) (*polly.DescribeVoicesOutput, error)
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements the Provider interface for Amazon Polly
type PollyProvider struct {
	client     PollyClient
	region     string
	voice      string
	engine     string
	format     string
	sampleRate string
}

// NewPollyProvider creates a Polly provider using the default AWS credential chain
func NewPollyProvider(ctx context.Context, region string) (*PollyProvider, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewPollyProviderWithClient(polly.NewFromConfig(cfg), region), nil
}

// NewPollyProviderWithClient creates a Polly provider around an existing client
func NewPollyProviderWithClient(client PollyClient, region string) *PollyProvider {
	return &PollyProvider{
		client: client,
		region: region,
		engine: "neural",
	}
}

// Name returns the provider name
func (p *PollyProvider) Name() string {
	return "polly"
}

// ListVoices returns available Amazon Polly voices
func (p *PollyProvider) ListVoices(ctx context.Context) ([]Voice, error) {
	result, err := p.client.DescribeVoices(ctx, &polly.DescribeVoicesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list Polly voices: %w", err)
	}

	title := cases.Title(language.English)
	voices := make([]Voice, 0, len(result.Voices))
	for _, v := range result.Voices {
		voice := Voice{
			ID:       string(v.Id),
			Name:     aws.ToString(v.Name),
			Language: string(v.LanguageCode),
			Description: fmt.Sprintf("%s voice, %s engine supported",
				title.String(strings.ToLower(string(v.Gender))),
				formatSupportedEngines(v.SupportedEngines)),
		}

		switch v.Gender {
		case types.GenderFemale:
			voice.Gender = "female"
		case types.GenderMale:
			voice.Gender = "male"
		}

		voices = append(voices, voice)
	}

	return voices, nil
}

// Synthesize generates audio from text using Amazon Polly
func (p *PollyProvider) Synthesize(ctx context.Context, text string, options SynthesizeOptions) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	voiceID := options.Voice
	if voiceID == "" {
		voiceID = p.voice
	}
	if voiceID == "" {
		voiceID = pollyVoiceFor(options.Language)
	}

	formatName := options.Format
	if formatName == "" {
		formatName = p.format
	}
	format, err := pollyOutputFormat(formatName)
	if err != nil {
		return nil, err
	}

	engineName := options.Engine
	if engineName == "" {
		engineName = p.engine
	}

	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voiceID),
		OutputFormat: format,
		Engine:       pollyEngine(engineName),
		TextType:     types.TextTypeText,
	}

	if isSSML(text) {
		input.TextType = types.TextTypeSsml
	}

	sampleRate := options.SampleRate
	if sampleRate == "" {
		sampleRate = p.sampleRate
	}
	switch sampleRate {
	case "":
	case "8000", "16000", "22050", "24000":
		input.SampleRate = aws.String(sampleRate)
	default:
		log.Warn().Str("sample_rate", sampleRate).Msg("Invalid sample rate, using default")
	}

	log.Debug().
		Str("voice_id", voiceID).
		Str("output_format", string(format)).
		Str("engine", string(input.Engine)).
		Str("text_type", string(input.TextType)).
		Msg("Making Polly synthesis request")

	result, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	log.Debug().
		Str("content_type", aws.ToString(result.ContentType)).
		Msg("Polly synthesis request successful")

	return result.AudioStream, nil
}

// IsAvailable checks whether the Polly API answers within a short timeout
func (p *PollyProvider) IsAvailable(ctx context.Context) bool {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.DescribeVoices(checkCtx, &polly.DescribeVoicesInput{})
	return err == nil
}

// PollyProviderFromConfig creates a Polly provider from configuration
func PollyProviderFromConfig(ctx context.Context, cfg map[string]interface{}) (*PollyProvider, error) {
	region, _ := cfg["region"].(string)

	p, err := NewPollyProvider(ctx, region)
	if err != nil {
		return nil, err
	}

	if voice, ok := cfg["voice"].(string); ok {
		p.voice = voice
	}
	if engine, ok := cfg["engine"].(string); ok && engine != "" {
		p.engine = engine
	}
	if format, ok := cfg["format"].(string); ok {
		if _, err := pollyOutputFormat(format); err != nil {
			return nil, err
		}
		p.format = format
	}
	if sampleRate, ok := cfg["sample_rate"].(string); ok {
		p.sampleRate = sampleRate
	}

	return p, nil
}

func pollyOutputFormat(format string) (types.OutputFormat, error) {
	switch strings.ToLower(format) {
	case "", "mp3":
		return types.OutputFormatMp3, nil
	case "ogg":
		return types.OutputFormatOggVorbis, nil
	case "pcm":
		return types.OutputFormatPcm, nil
	default:
		return "", fmt.Errorf("unsupported audio format: %s", format)
	}
}

func pollyEngine(name string) types.Engine {
	switch strings.ToLower(name) {
	case "standard":
		return types.EngineStandard
	case "neural", "":
		return types.EngineNeural
	case "long-form":
		return types.EngineLongForm
	case "generative":
		return types.EngineGenerative
	default:
		log.Warn().Str("engine", name).Msg("Unknown engine, using neural")
		return types.EngineNeural
	}
}

// pollyVoiceFor picks a default voice for a language code
func pollyVoiceFor(code string) string {
	if voice, ok := pollyVoices[baseLanguage(code)]; ok {
		return voice
	}
	return "Joanna"
}

func formatSupportedEngines(engines []types.Engine) string {
	if len(engines) == 0 {
		return "unknown"
	}

	names := make([]string, len(engines))
	for i, engine := range engines {
		names[i] = string(engine)
	}

	return strings.Join(names, ", ")
}

// baseLanguage returns the ISO 639 base of a language code, or "" if it does not parse
func baseLanguage(code string) string {
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// isSSML checks if the text contains SSML tags
func isSSML(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "<speak") ||
		strings.Contains(trimmed, "<prosody") ||
		strings.Contains(trimmed, "<break")
}
