// Package openai implements the OpenAI provider backend.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rsclarke/aiconnect/internal/prompt"
	"github.com/rsclarke/aiconnect/internal/provider"
)

const maxAudio = 25 << 20

var (
	ErrNoAPIKey  = errors.New("openai: api key missing from credentials")
	ErrNoChoices = errors.New("openai: completion returned no choices")
)

// Config selects endpoints and models.
type Config struct {
	BaseURL         string
	Model           string
	TTSModel        string
	TranscribeModel string
	HTTPClient      *http.Client
}

// Backend calls the OpenAI API with the session's API key.
type Backend struct {
	cfg Config
}

// New creates a backend. Empty models fall back to gpt-4o-mini, tts-1 and whisper-1.
func New(cfg Config) *Backend {
	if cfg.Model == "" {
		cfg.Model = oai.ChatModelGPT4oMini
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = oai.SpeechModelTTS1
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = oai.AudioModelWhisper1
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Backend{cfg: cfg}
}

func (b *Backend) Platform() provider.Platform { return provider.OpenAI }

func (b *Backend) client(creds provider.Credentials) (oai.Client, error) {
	if creds.APISecretKey == "" {
		return oai.Client{}, ErrNoAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(creds.APISecretKey),
		option.WithHTTPClient(b.cfg.HTTPClient),
		option.WithMaxRetries(2),
	}
	if b.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(b.cfg.BaseURL, "/")+"/"))
	}
	return oai.NewClient(opts...), nil
}

// Generate runs a single-turn chat completion.
func (b *Backend) Generate(ctx context.Context, creds provider.Credentials, text string) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	resp, err := c.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model:       b.cfg.Model,
		Messages:    []oai.ChatCompletionMessageParamUnion{oai.UserMessage(text)},
		Temperature: oai.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Translate prompts the chat model to translate.
func (b *Backend) Translate(ctx context.Context, creds provider.Credentials, req provider.TranslateRequest) (string, error) {
	return b.Generate(ctx, creds, prompt.Translation(req.Text, req.To, req.From))
}

// Synthesize converts text to speech.
func (b *Backend) Synthesize(ctx context.Context, creds provider.Credentials, req provider.SpeechRequest) (*provider.Audio, error) {
	c, err := b.client(creds)
	if err != nil {
		return nil, err
	}
	format := req.Format
	if format == "" {
		format = "mp3"
	}
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	resp, err := c.Audio.Speech.New(ctx, oai.AudioSpeechNewParams{
		Input:          req.Text,
		Model:          b.cfg.TTSModel,
		Voice:          oai.AudioSpeechNewParamsVoice(req.Voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormat(format),
		Speed:          oai.Float(speed),
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudio))
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	return &provider.Audio{Data: data, Format: format}, nil
}

// Transcribe sends the audio as a multipart transcription request.
func (b *Backend) Transcribe(ctx context.Context, creds provider.Credentials, req provider.TranscribeRequest) (string, error) {
	c, err := b.client(creds)
	if err != nil {
		return "", err
	}
	name := req.FileName
	if name == "" {
		name = "audio.mp3"
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(req.Audio), name, contentType),
		Model: b.cfg.TranscribeModel,
	}
	if lang := isoLanguage(req.LanguageCode); lang != "" {
		params.Language = oai.String(lang)
	}

	resp, err := c.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// isoLanguage reduces a BCP-47 tag such as en-US to its ISO-639-1 part.
func isoLanguage(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}
