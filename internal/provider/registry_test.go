package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mockGenerator struct {
	platform Platform
	reply    string
	err      error
	panics   bool
	calls    int
}

func (m *mockGenerator) Platform() Platform { return m.platform }

func (m *mockGenerator) Generate(ctx context.Context, _ Credentials, prompt string) (string, error) {
	m.calls++
	if m.panics {
		panic("boom")
	}
	if m.err != nil {
		return "", m.err
	}
	return m.reply + prompt, nil
}

type mockFull struct {
	mockGenerator
}

func (m *mockFull) Translate(_ context.Context, _ Credentials, req TranslateRequest) (string, error) {
	return req.To + ":" + req.Text, nil
}

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		in      string
		want    Platform
		wantErr bool
	}{
		{"openai", OpenAI, false},
		{"OpenAI", OpenAI, false},
		{" GoogleCloud ", GoogleCloud, false},
		{"azure", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePlatform(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRegisterDetectsCapabilities(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	r.Register(&mockGenerator{platform: GoogleCloud})
	r.Register(&mockFull{mockGenerator{platform: OpenAI}})

	if got := r.Generators.Platforms(); len(got) != 2 {
		t.Errorf("expected 2 generators, got %v", got)
	}
	if got := r.Translators.Platforms(); len(got) != 1 || got[0] != OpenAI {
		t.Errorf("expected only openai translator, got %v", got)
	}
	if got := r.Assistants.Platforms(); len(got) != 0 {
		t.Errorf("expected no assistants, got %v", got)
	}

	infos := r.ListBackends()
	if len(infos) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(infos))
	}
	if got := strings.Join(infos[1].Capabilities, ","); got != "generate,translate" {
		t.Errorf("expected generate,translate, got %s", got)
	}
}

func TestCallDispatches(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	r.Register(&mockGenerator{platform: OpenAI, reply: "openai:"})
	r.Register(&mockGenerator{platform: GoogleCloud, reply: "google:"})

	got, err := Call(context.Background(), r.Generators, "GOOGLECLOUD", func(ctx context.Context, g Generator) (string, error) {
		return g.Generate(ctx, Credentials{}, "hi")
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != "google:hi" {
		t.Errorf("expected google:hi, got %s", got)
	}
}

func TestCallUnsupportedPlatform(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	r.Register(&mockGenerator{platform: OpenAI})

	call := func(ctx context.Context, tr Translator) (string, error) {
		return tr.Translate(ctx, Credentials{}, TranslateRequest{})
	}

	for _, platform := range []string{"azure", "", "openai"} {
		_, err := Call(context.Background(), r.Translators, platform, call)
		if !errors.Is(err, ErrUnsupportedPlatform) {
			t.Errorf("%q: expected ErrUnsupportedPlatform, got %v", platform, err)
		}
	}
}

func TestCallHidesHandlerErrors(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	g := &mockGenerator{platform: OpenAI, err: errors.New("api key sk-secret rejected")}
	r.Register(g)

	_, err := Call(context.Background(), r.Generators, "openai", func(ctx context.Context, g Generator) (string, error) {
		return g.Generate(ctx, Credentials{}, "hi")
	})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if strings.Contains(err.Error(), "sk-secret") {
		t.Error("expected provider error detail to be hidden")
	}
}

func TestCallRecoversPanic(t *testing.T) {
	r := NewRegistry(time.Second, zap.NewNop())
	r.Register(&mockGenerator{platform: OpenAI, panics: true})

	_, err := Call(context.Background(), r.Generators, "openai", func(ctx context.Context, g Generator) (string, error) {
		return g.Generate(ctx, Credentials{}, "hi")
	})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestCallAppliesDeadline(t *testing.T) {
	r := NewRegistry(50*time.Millisecond, zap.NewNop())
	r.Register(&mockGenerator{platform: OpenAI})

	_, err := Call(context.Background(), r.Generators, "openai", func(ctx context.Context, _ Generator) (string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected context deadline")
		}
		<-ctx.Done()
		return "", ctx.Err()
	})
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestParseCredentials(t *testing.T) {
	c, err := ParseCredentials(`{"APISecretKey":"k","ClientEmail":"a@b","ProjectId":"p"}`)
	if err != nil {
		t.Fatalf("ParseCredentials failed: %v", err)
	}
	if c.APISecretKey != "k" || c.ClientEmail != "a@b" || c.ProjectId != "p" {
		t.Errorf("unexpected credentials %+v", c)
	}
	if _, err := ParseCredentials("nope"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestRunTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		"queued": false, "in_progress": false, "completed": true, "failed": true, "expired": true,
	} {
		if got := (Run{Status: status}).Terminal(); got != want {
			t.Errorf("%s: expected %v, got %v", status, want, got)
		}
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("audio"))
		case "/big":
			w.Header().Set("Content-Length", "26214401")
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	data, err := Download(context.Background(), srv.Client(), srv.URL+"/ok")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("expected audio, got %q", data)
	}

	if _, err := Download(context.Background(), srv.Client(), srv.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
	if _, err := Download(context.Background(), srv.Client(), srv.URL+"/missing"); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", err)
	}
	for _, bad := range []string{"file:///etc/passwd", "ftp://x/y", "not a url", "/relative"} {
		if _, err := Download(context.Background(), nil, bad); !errors.Is(err, ErrBadURL) {
			t.Errorf("%q: expected ErrBadURL, got %v", bad, err)
		}
	}
}
