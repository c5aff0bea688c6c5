// Package provider defines the AI backend capability interfaces and the
// per-capability dispatch tables that route calls by platform.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Platform identifies an AI backend.
type Platform string

// Supported platforms.
const (
	OpenAI      Platform = "openai"
	GoogleCloud Platform = "googlecloud"
)

var platforms = []Platform{OpenAI, GoogleCloud}

// ErrUnsupportedPlatform is returned when no backend serves a platform.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// ParsePlatform matches name against the supported platforms, ignoring case.
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	if slices.Contains(platforms, p) {
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, name)
}

// Credentials are the per-tenant provider secrets carried in the session.
type Credentials struct {
	APISecretKey string `json:"APISecretKey,omitempty"`
	ClientEmail  string `json:"ClientEmail,omitempty"`
	ProjectId    string `json:"ProjectId,omitempty"`
}

// ParseCredentials decodes the credential bundle JSON.
func ParseCredentials(raw string) (Credentials, error) {
	var c Credentials
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Credentials{}, fmt.Errorf("parse credentials: %w", err)
	}
	return c, nil
}

// Backend is the base interface every provider backend implements.
type Backend interface {
	Platform() Platform
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, creds Credentials, prompt string) (string, error)
}

// TranslateRequest is the input to Translator.
type TranslateRequest struct {
	Text string
	From string
	To   string
}

// Translator translates text between languages.
type Translator interface {
	Translate(ctx context.Context, creds Credentials, req TranslateRequest) (string, error)
}

// SpeechRequest is the input to Synthesizer.
type SpeechRequest struct {
	Text         string
	Voice        string
	LanguageCode string
	Format       string
	Speed        float64
}

// Audio is synthesized speech.
type Audio struct {
	Data   []byte
	Format string
}

// Synthesizer converts text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, creds Credentials, req SpeechRequest) (*Audio, error)
}

// TranscribeRequest is the input to Transcriber.
type TranscribeRequest struct {
	Audio        []byte
	FileName     string
	LanguageCode string
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, creds Credentials, req TranscribeRequest) (string, error)
}

// AssistantSpec describes an assistant to create or update.
type AssistantSpec struct {
	Name          string
	Instructions  string
	VectorStoreID string
}

// Run is an assistant run on a thread.
type Run struct {
	ID     string `json:"RunId"`
	Status string `json:"Status"`
}

// Terminal reports whether the run has stopped progressing.
func (r Run) Terminal() bool {
	switch r.Status {
	case "completed", "failed", "cancelled", "expired", "incomplete", "requires_action":
		return true
	}
	return false
}

// Message is a thread message.
type Message struct {
	ID        string `json:"Id"`
	Role      string `json:"Role"`
	Text      string `json:"Text"`
	CreatedAt int64  `json:"CreatedAt"`
}

// Assistants manages hosted assistants, threads, runs, files and vector stores.
type Assistants interface {
	CreateVectorStore(ctx context.Context, creds Credentials, name string) (string, error)
	DeleteVectorStore(ctx context.Context, creds Credentials, id string) error
	UploadFile(ctx context.Context, creds Credentials, name string, data []byte) (string, error)
	DeleteFile(ctx context.Context, creds Credentials, id string) error
	AttachFile(ctx context.Context, creds Credentials, vectorStoreID, fileID string) error
	DetachFile(ctx context.Context, creds Credentials, vectorStoreID, fileID string) error
	CreateAssistant(ctx context.Context, creds Credentials, spec AssistantSpec) (string, error)
	UpdateAssistant(ctx context.Context, creds Credentials, id string, spec AssistantSpec) error
	DeleteAssistant(ctx context.Context, creds Credentials, id string) error
	CreateThread(ctx context.Context, creds Credentials) (string, error)
	AddMessage(ctx context.Context, creds Credentials, threadID, content string) (string, error)
	CreateRun(ctx context.Context, creds Credentials, threadID, assistantID string) (Run, error)
	GetRun(ctx context.Context, creds Credentials, threadID, runID string) (Run, error)
	ListMessages(ctx context.Context, creds Credentials, threadID string) ([]Message, error)
}

// Capability names.
const (
	CapGenerate   = "generate"
	CapTranslate  = "translate"
	CapSynthesize = "synthesize"
	CapTranscribe = "transcribe"
	CapAssistants = "assistants"
)

// BackendInfo describes a registered backend.
type BackendInfo struct {
	Platform     Platform `json:"platform"`
	Capabilities []string `json:"capabilities"`
}
