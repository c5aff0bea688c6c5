package capability

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rsclarke/aiconnect/internal/api"
	"github.com/rsclarke/aiconnect/internal/auth"
	"github.com/rsclarke/aiconnect/internal/envelope"
)

func dispositionReq() api.DispositionRequest {
	return api.DispositionRequest{
		UXID: "ux1", ProcessCode: "PC", ConversationID: "conv1",
		Conversation:    "agent: can I help?\ncustomer: I'd like to buy the premium plan",
		DispositionList: []string{"Sale", "NoSale", "Callback"},
	}
}

func TestAutoDisposition(t *testing.T) {
	s := newTestService(t, generatorOnly{})
	sess := testSession("googlecloud", auth.AutoDisposition)

	resp, err := s.AutoDisposition(context.Background(), sess, dispositionReq())
	if err != nil {
		t.Fatalf("AutoDisposition failed: %v", err)
	}
	if resp.Disposition != "Sale" {
		t.Errorf("expected Sale, got %q", resp.Disposition)
	}
}

func TestAutoDispositionCachesPerInteraction(t *testing.T) {
	fb := newFakeBackend()
	fb.generate = func(p string) (string, error) {
		if !strings.Contains(p, "Sale,NoSale,Callback") {
			t.Errorf("expected dispositions in prompt, got %q", p)
		}
		return "Callback", nil
	}
	s := newTestService(t, fb)
	sess := testSession("openai", auth.AutoDisposition)

	for range 2 {
		resp, err := s.AutoDisposition(context.Background(), sess, dispositionReq())
		if err != nil {
			t.Fatalf("AutoDisposition failed: %v", err)
		}
		if resp.Disposition != "Callback" {
			t.Errorf("expected Callback, got %q", resp.Disposition)
		}
	}
	if n := fb.Calls("generate"); n != 1 {
		t.Errorf("expected 1 provider call, got %d", n)
	}
}

func TestAutoDispositionValidation(t *testing.T) {
	s := newTestService(t, newFakeBackend())
	b := dispositionReq()
	b.DispositionList = nil
	_, err := s.AutoDisposition(context.Background(), testSession("openai", auth.AutoDisposition), b)
	requireFailure(t, err, 400, envelope.CodeSessionInitFailed)
}

func TestAutoDispositionUpstreamFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.generate = func(string) (string, error) { return "", errors.New("boom") }
	s := newTestService(t, fb)
	_, err := s.AutoDisposition(context.Background(), testSession("openai", auth.AutoDisposition), dispositionReq())
	requireFailure(t, err, 502, CodeAutoDispositionError)
}

func TestCleanLine(t *testing.T) {
	tests := map[string]string{
		"Sale\n":             "Sale",
		"  No\r\nSale  ":     "No Sale",
		"Call\nback\n\nnow": "Call back now",
	}
	for in, want := range tests {
		if got := cleanLine(in); got != want {
			t.Errorf("cleanLine(%q): expected %q, got %q", in, want, got)
		}
	}
}
