// Package googlecloud implements the Google Cloud provider backend over the
// Vertex AI, Translation, Speech-to-Text and Text-to-Speech REST APIs.
package googlecloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/rsclarke/aiconnect/internal/provider"
)

const (
	tokenURL      = "https://oauth2.googleapis.com/token"
	cloudPlatform = "https://www.googleapis.com/auth/cloud-platform"
	maxResponse   = 32 << 20

	// maxTokenSources bounds the per-account token sources kept warm.
	maxTokenSources = 256
)

var ErrNoServiceAccount = errors.New("googlecloud: client email and private key required")

// Endpoints are the API base URLs. Empty fields use the public endpoints.
type Endpoints struct {
	Vertex       string
	Translate    string
	Speech       string
	TextToSpeech string
}

// Config selects the Vertex model and region.
type Config struct {
	Model           string
	Location        string
	MaxOutputTokens int
	Endpoints       Endpoints
	HTTPClient      *http.Client
}

// Backend authenticates with the session's service account.
type Backend struct {
	cfg     Config
	sources *lru.Cache[string, oauth2.TokenSource]

	authClient func(ctx context.Context, creds provider.Credentials) (*http.Client, error)
}

// New creates a backend.
func New(cfg Config) *Backend {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Location == "" {
		cfg.Location = "us-central1"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	e := &cfg.Endpoints
	if e.Vertex == "" {
		e.Vertex = fmt.Sprintf("https://%s-aiplatform.googleapis.com", cfg.Location)
	}
	if e.Translate == "" {
		e.Translate = "https://translation.googleapis.com"
	}
	if e.Speech == "" {
		e.Speech = "https://speech.googleapis.com"
	}
	if e.TextToSpeech == "" {
		e.TextToSpeech = "https://texttospeech.googleapis.com"
	}

	sources, _ := lru.New[string, oauth2.TokenSource](maxTokenSources)
	b := &Backend{cfg: cfg, sources: sources}
	b.authClient = b.serviceAccountClient
	return b
}

func (b *Backend) Platform() provider.Platform { return provider.GoogleCloud }

// serviceAccountClient returns an HTTP client that signs requests with an
// OAuth2 token for the service account. Token sources are reused per account,
// up to maxTokenSources recently used accounts.
func (b *Backend) serviceAccountClient(ctx context.Context, creds provider.Credentials) (*http.Client, error) {
	if creds.ClientEmail == "" || creds.APISecretKey == "" {
		return nil, ErrNoServiceAccount
	}
	sum := sha256.Sum256([]byte(creds.ClientEmail + "\x00" + creds.APISecretKey))
	key := hex.EncodeToString(sum[:])

	ts, ok := b.sources.Get(key)
	if !ok {
		conf := &jwt.Config{
			Email:      creds.ClientEmail,
			PrivateKey: []byte(strings.ReplaceAll(creds.APISecretKey, `\n`, "\n")),
			Scopes:     []string{cloudPlatform},
			TokenURL:   tokenURL,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, b.cfg.HTTPClient)
		ts = oauth2.ReuseTokenSource(nil, conf.TokenSource(tokenCtx))
		b.sources.Add(key, ts)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.cfg.HTTPClient)
	return oauth2.NewClient(ctx, ts), nil
}

// post sends body as JSON and returns the raw response.
func (b *Backend) post(ctx context.Context, creds provider.Credentials, url string, body any) ([]byte, error) {
	client, err := b.authClient(ctx, creds)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if creds.ProjectId != "" {
		req.Header.Set("x-goog-user-project", creds.ProjectId)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("googlecloud: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResponse))
}
