// Package whisper transcribes audio segments with the OpenAI audio API or
// any compatible server.
package whisper

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/text/language"

	"github.com/hpungsan/murmur/internal/speech"
)

// DefaultModel is the transcription model used when none is configured.
const DefaultModel = "whisper-1"

// Option configures a Transcriber.
type Option func(*settings)

type settings struct {
	model   string
	baseURL string
}

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(url string) Option {
	return func(s *settings) {
		s.baseURL = url
	}
}

// Transcriber implements spool.Transcriber.
type Transcriber struct {
	client openai.Client
	model  string
}

// New creates a Transcriber. An empty apiKey falls back to OPENAI_API_KEY.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required (openai_api_key or OPENAI_API_KEY)", speech.ErrUnsupported)
	}

	s := settings{model: DefaultModel}
	for _, opt := range opts {
		opt(&s)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}

	return &Transcriber{
		client: openai.NewClient(reqOpts...),
		model:  s.model,
	}, nil
}

// Model returns the configured model name.
func (t *Transcriber) Model() string {
	return t.model
}

// Transcribe uploads the file at path and returns its text.
func (t *Transcriber) Transcribe(ctx context.Context, path string, cfg speech.Config) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open segment: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  f,
		Model: openai.AudioModel(t.model),
	}
	if lang := Language(cfg.Locale); lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Language returns the ISO-639-1 base language of a BCP 47 locale
// ("pt-BR" → "pt"), or "" if the locale cannot be parsed.
func Language(locale string) string {
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
