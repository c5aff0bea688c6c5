package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/cache"
	"github.com/rsclarke/aiconnect/internal/config"
	"github.com/rsclarke/aiconnect/internal/envelope"
	"github.com/rsclarke/aiconnect/internal/provider"
	"github.com/rsclarke/aiconnect/internal/tenant"
)

// fakeBackend implements every capability and records the calls it receives.
type fakeBackend struct {
	mu       sync.Mutex
	platform provider.Platform
	calls    map[string]int
	prompts  []string

	generate   func(prompt string) (string, error)
	translate  func(provider.TranslateRequest) (string, error)
	speech     []provider.SpeechRequest
	transcribe func(provider.TranscribeRequest) (string, error)

	runs      []provider.Run
	messages  []provider.Message
	failAsst  error
	nextID    int
	deleted   []string
	attached  []string
	updated   []provider.AssistantSpec
	uploaded  map[string][]byte
	assistant []provider.AssistantSpec
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{platform: provider.OpenAI, calls: map[string]int{}, uploaded: map[string][]byte{}}
}

func (f *fakeBackend) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) id(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("%s_%d", prefix, f.nextID)
}

func (f *fakeBackend) Platform() provider.Platform { return f.platform }

func (f *fakeBackend) Generate(_ context.Context, _ provider.Credentials, prompt string) (string, error) {
	f.count("generate")
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.generate == nil {
		return "0.6", nil
	}
	return f.generate(prompt)
}

func (f *fakeBackend) Translate(_ context.Context, _ provider.Credentials, req provider.TranslateRequest) (string, error) {
	f.count("translate")
	if f.translate == nil {
		return "bonjour", nil
	}
	return f.translate(req)
}

func (f *fakeBackend) Synthesize(_ context.Context, _ provider.Credentials, req provider.SpeechRequest) (*provider.Audio, error) {
	f.count("synthesize")
	f.mu.Lock()
	f.speech = append(f.speech, req)
	f.mu.Unlock()
	return &provider.Audio{Data: []byte("ID3audio"), Format: req.Format}, nil
}

func (f *fakeBackend) Transcribe(_ context.Context, _ provider.Credentials, req provider.TranscribeRequest) (string, error) {
	f.count("transcribe")
	if f.transcribe == nil {
		return " hello there ", nil
	}
	return f.transcribe(req)
}

func (f *fakeBackend) CreateVectorStore(context.Context, provider.Credentials, string) (string, error) {
	f.count("create_vector_store")
	return f.id("vs"), f.failAsst
}

func (f *fakeBackend) DeleteVectorStore(_ context.Context, _ provider.Credentials, id string) error {
	f.count("delete_vector_store")
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) UploadFile(_ context.Context, _ provider.Credentials, name string, data []byte) (string, error) {
	f.count("upload_file")
	id := f.id("file")
	f.mu.Lock()
	f.uploaded[name] = data
	f.mu.Unlock()
	return id, f.failAsst
}

func (f *fakeBackend) DeleteFile(_ context.Context, _ provider.Credentials, id string) error {
	f.count("delete_file")
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) AttachFile(_ context.Context, _ provider.Credentials, vs, file string) error {
	f.count("attach_file")
	f.mu.Lock()
	f.attached = append(f.attached, vs+"/"+file)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) DetachFile(context.Context, provider.Credentials, string, string) error {
	f.count("detach_file")
	return nil
}

func (f *fakeBackend) CreateAssistant(_ context.Context, _ provider.Credentials, spec provider.AssistantSpec) (string, error) {
	f.count("create_assistant")
	f.mu.Lock()
	f.assistant = append(f.assistant, spec)
	f.mu.Unlock()
	return f.id("asst"), f.failAsst
}

func (f *fakeBackend) UpdateAssistant(_ context.Context, _ provider.Credentials, _ string, spec provider.AssistantSpec) error {
	f.count("update_assistant")
	f.mu.Lock()
	f.updated = append(f.updated, spec)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) DeleteAssistant(_ context.Context, _ provider.Credentials, id string) error {
	f.count("delete_assistant")
	f.mu.Lock()
	f.deleted = append(f.deleted, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) CreateThread(context.Context, provider.Credentials) (string, error) {
	f.count("create_thread")
	return f.id("thread"), f.failAsst
}

func (f *fakeBackend) AddMessage(context.Context, provider.Credentials, string, string) (string, error) {
	f.count("add_message")
	return f.id("msg"), nil
}

func (f *fakeBackend) CreateRun(context.Context, provider.Credentials, string, string) (provider.Run, error) {
	f.count("create_run")
	return provider.Run{ID: "run_1", Status: "queued"}, nil
}

// GetRun replays runs in order and then repeats the last one.
func (f *fakeBackend) GetRun(context.Context, provider.Credentials, string, string) (provider.Run, error) {
	f.count("get_run")
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runs) == 0 {
		return provider.Run{ID: "run_1", Status: "completed"}, nil
	}
	r := f.runs[0]
	if len(f.runs) > 1 {
		f.runs = f.runs[1:]
	}
	return r, nil
}

func (f *fakeBackend) ListMessages(context.Context, provider.Credentials, string) ([]provider.Message, error) {
	f.count("list_messages")
	return f.messages, nil
}

// generatorOnly serves text generation and nothing else.
type generatorOnly struct{}

func (generatorOnly) Platform() provider.Platform { return provider.GoogleCloud }

func (generatorOnly) Generate(context.Context, provider.Credentials, string) (string, error) {
	return "Sale\n", nil
}

func newTestService(t *testing.T, backends ...provider.Backend) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.AudioDir = t.TempDir()
	cfg.AudioPublicURL = "https://cdn.example.com/audio"
	cfg.ProviderTimeout = 5 * time.Second

	reg := provider.NewRegistry(cfg.ProviderTimeout, zap.NewNop())
	for _, b := range backends {
		reg.Register(b)
	}

	tenants, err := tenant.OpenRegistry(context.Background(), tenant.StaticLister{"acme"}, t.TempDir(), "aiconnect", zap.NewNop())
	if err != nil {
		t.Fatalf("OpenRegistry failed: %v", err)
	}
	t.Cleanup(func() { _ = tenants.Close() })

	s := New(Deps{
		Config:    cfg,
		Providers: reg,
		Cache:     cache.New(cache.NewMemoryStore(), time.Hour, zap.NewNop()),
		Tenants:   tenants,
		Logger:    zap.NewNop(),
	})
	s.pollBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func testSession(platform, sids string) *auth.Session {
	return &auth.Session{
		XPlatformID:  platform,
		XPlatformSID: sids,
		XPlatformUA:  provider.Credentials{APISecretKey: "sk-test"},
		TenantCode:   "acme",
		Token:        "tok",
	}
}

func requireFailure(t *testing.T, err error, status int, code string) *envelope.Error {
	t.Helper()
	var e *envelope.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected envelope error, got %v", err)
	}
	if e.Status != status {
		t.Errorf("expected status %d, got %d", status, e.Status)
	}
	if e.Envelope.EvCode != code {
		t.Errorf("expected code %s, got %s", code, e.Envelope.EvCode)
	}
	if e.Envelope.EvType != envelope.EvFailed {
		t.Errorf("expected EvType Failed, got %s", e.Envelope.EvType)
	}
	return e
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{}\n```":            "{}",
		"  {\"b\":2}  ":           `{"b":2}`,
		"plain":                   "plain",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	s := newTestService(t, newFakeBackend())
	_, err := s.Translate(context.Background(), testSession("bedrock", auth.LanguageTranslation), translateReq())
	requireFailure(t, err, 400, envelope.CodePlatformUnsupported)
}
