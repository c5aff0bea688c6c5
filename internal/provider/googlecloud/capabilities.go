package googlecloud

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rsclarke/aiconnect/internal/provider"
)

var (
	ErrNoProject   = errors.New("googlecloud: project id required")
	ErrEmptyResult = errors.New("googlecloud: response contained no result")
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig"`
	SafetySettings   []safetySetting `json:"safetySettings"`
}

// Generate calls Vertex AI generateContent.
func (b *Backend) Generate(ctx context.Context, creds provider.Credentials, prompt string) (string, error) {
	if creds.ProjectId == "" {
		return "", ErrNoProject
	}
	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		b.cfg.Endpoints.Vertex, creds.ProjectId, b.cfg.Location, b.cfg.Model)

	raw, err := b.post(ctx, creds, url, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: map[string]any{
			"maxOutputTokens": b.cfg.MaxOutputTokens,
			"temperature":     0.3,
		},
		SafetySettings: []safetySetting{{
			Category:  "HARM_CATEGORY_DANGEROUS_CONTENT",
			Threshold: "BLOCK_MEDIUM_AND_ABOVE",
		}},
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() {
		return "", ErrEmptyResult
	}
	return strings.TrimSpace(text.String()), nil
}

// Translate calls the Cloud Translation v2 API.
func (b *Backend) Translate(ctx context.Context, creds provider.Credentials, req provider.TranslateRequest) (string, error) {
	body := map[string]string{
		"q":      req.Text,
		"target": req.To,
		"format": "text",
	}
	if req.From != "" {
		body["source"] = req.From
	}

	raw, err := b.post(ctx, creds, b.cfg.Endpoints.Translate+"/language/translate/v2", body)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	text := gjson.GetBytes(raw, "data.translations.0.translatedText")
	if !text.Exists() {
		return "", ErrEmptyResult
	}
	return text.String(), nil
}

// Transcribe calls speech:recognize with the encoding inferred from the file name.
func (b *Backend) Transcribe(ctx context.Context, creds provider.Credentials, req provider.TranscribeRequest) (string, error) {
	lang := req.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	body := map[string]any{
		"config": map[string]any{
			"encoding":     speechEncoding(req.FileName),
			"languageCode": lang,
		},
		"audio": map[string]string{
			"content": base64.StdEncoding.EncodeToString(req.Audio),
		},
	}

	raw, err := b.post(ctx, creds, b.cfg.Endpoints.Speech+"/v1/speech:recognize", body)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}

	var parts []string
	for _, t := range gjson.GetBytes(raw, "results.#.alternatives.0.transcript").Array() {
		if s := strings.TrimSpace(t.String()); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}

func speechEncoding(name string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "mp3":
		return "MP3"
	case "flac":
		return "FLAC"
	case "mulaw", "ulaw":
		return "MULAW"
	case "ogg", "opus":
		return "OGG_OPUS"
	default:
		return "LINEAR16"
	}
}

// Synthesize calls text:synthesize.
func (b *Backend) Synthesize(ctx context.Context, creds provider.Credentials, req provider.SpeechRequest) (*provider.Audio, error) {
	lang := req.LanguageCode
	if lang == "" {
		lang = "en-US"
	}
	voice := map[string]string{"languageCode": lang}
	// Google voice names look like en-US-Wavenet-D.
	if strings.Count(req.Voice, "-") >= 2 {
		voice["name"] = req.Voice
	}
	format, encoding := audioEncoding(req.Format)
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}

	body := map[string]any{
		"input":       map[string]string{"text": req.Text},
		"voice":       voice,
		"audioConfig": map[string]any{"audioEncoding": encoding, "speakingRate": speed},
	}
	raw, err := b.post(ctx, creds, b.cfg.Endpoints.TextToSpeech+"/v1/text:synthesize", body)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	encoded := gjson.GetBytes(raw, "audioContent")
	if !encoded.Exists() {
		return nil, ErrEmptyResult
	}
	data, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return &provider.Audio{Data: data, Format: format}, nil
}

func audioEncoding(format string) (string, string) {
	switch strings.ToLower(format) {
	case "wav":
		return "wav", "LINEAR16"
	case "opus", "ogg":
		return "ogg", "OGG_OPUS"
	default:
		return "mp3", "MP3"
	}
}
